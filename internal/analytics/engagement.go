package analytics

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

const stageEngagement = "engagement"

// EngagementScore is the activity of one user in one course during one bucket
type EngagementScore struct {
	UserID        int64     `json:"user_id"`
	CourseID      string    `json:"course_id"`
	Bucket        time.Time `json:"bucket"`
	TotalActions  int       `json:"total_actions"`
	Submissions   int       `json:"submissions"`
	ActiveMinutes float64   `json:"active_minutes"`
	Score         float64   `json:"engagement_score"`
	Normalized    float64   `json:"engagement_score_normalized"`
}

type engagementKey struct {
	userID   int64
	courseID string
	bucket   int64
}

// BuildEngagement groups events by (user, course, bucket) and scores each group.
// Scores are min-max normalized to [0,100] across the whole result.
func BuildEngagement(events []Event, opts Options, rep *Report) []EngagementScore {
	groups := make(map[engagementKey]*EngagementScore)
	for _, e := range events {
		if e.Time == nil {
			rep.Add(stageEngagement, AnomalyUnbucketedEvent, fmt.Sprintf("event %d", e.EventID))
			continue
		}
		start := bucketStart(*e.Time, opts.Bucket)
		key := engagementKey{userID: e.UserID, courseID: e.CourseID, bucket: start.Unix()}
		g, ok := groups[key]
		if !ok {
			g = &EngagementScore{UserID: e.UserID, CourseID: e.CourseID, Bucket: start}
			groups[key] = g
		}
		g.TotalActions++
		if isSubmission(e.Category, opts) {
			g.Submissions++
		}
	}

	out := make([]EngagementScore, 0, len(groups))
	for _, g := range groups {
		g.ActiveMinutes = float64(g.TotalActions) * opts.MinutesPerAction
		g.Score = opts.Weighting.Actions*float64(g.TotalActions) +
			opts.Weighting.Submissions*float64(g.Submissions) +
			opts.Weighting.Minutes*g.ActiveMinutes
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if a.CourseID != b.CourseID {
			return a.CourseID < b.CourseID
		}
		return a.Bucket.Before(b.Bucket)
	})

	scores := make([]float64, len(out))
	for i, s := range out {
		scores[i] = s.Score
	}
	for i, n := range minMaxScale(scores, 100) {
		out[i].Normalized = n
	}
	return out
}

// bucketStart truncates t to the start of its bucket in t's location.
// Weeks start on Monday.
func bucketStart(t time.Time, b Bucket) time.Time {
	y, m, d := t.Date()
	loc := t.Location()
	switch b {
	case BucketHour:
		return time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
	case BucketWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case BucketMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
}

// StudentEngagement summarises one user's buckets in one course
type StudentEngagement struct {
	UserID         int64    `json:"user_id"`
	CourseID       string   `json:"course_id"`
	Buckets        int      `json:"buckets"`
	TotalActions   int      `json:"total_actions"`
	MeanActions    float64  `json:"mean_actions"`
	StdActions     *float64 `json:"std_actions"`
	Submissions    int      `json:"submissions"`
	ActiveMinutes  float64  `json:"active_minutes"`
	MeanScore      float64  `json:"mean_engagement_score"`
	MeanNormalized float64  `json:"mean_engagement_score_normalized"`
}

type pairKey struct {
	userID   int64
	courseID string
}

// SummarizeStudents rolls engagement buckets up per (user, course).
// StdActions is the sample deviation and is nil for a single bucket.
func SummarizeStudents(scores []EngagementScore) []StudentEngagement {
	type acc struct {
		summary    StudentEngagement
		actions    []float64
		scores     []float64
		normalized []float64
	}
	groups := make(map[pairKey]*acc)
	var order []pairKey
	for _, s := range scores {
		key := pairKey{s.UserID, s.CourseID}
		a, ok := groups[key]
		if !ok {
			a = &acc{summary: StudentEngagement{UserID: s.UserID, CourseID: s.CourseID}}
			groups[key] = a
			order = append(order, key)
		}
		a.summary.Buckets++
		a.summary.TotalActions += s.TotalActions
		a.summary.Submissions += s.Submissions
		a.summary.ActiveMinutes += s.ActiveMinutes
		a.actions = append(a.actions, float64(s.TotalActions))
		a.scores = append(a.scores, s.Score)
		a.normalized = append(a.normalized, s.Normalized)
	}

	out := make([]StudentEngagement, 0, len(order))
	for _, key := range order {
		a := groups[key]
		mean, std := stat.MeanStdDev(a.actions, nil)
		a.summary.MeanActions = mean
		if len(a.actions) > 1 {
			a.summary.StdActions = floatPtr(std)
		}
		a.summary.MeanScore = stat.Mean(a.scores, nil)
		a.summary.MeanNormalized = stat.Mean(a.normalized, nil)
		out = append(out, a.summary)
	}
	return out
}
