package analytics

import (
	"sort"
	"time"
)

// StudentProfile is the per-user feature set used for clustering and segmenting
type StudentProfile struct {
	UserID         int64      `json:"user_id"`
	Courses        int        `json:"courses"`
	TotalActions   int        `json:"total_actions"`
	ActiveDays     int        `json:"active_days"`
	Submissions    int        `json:"submissions"`
	QuizAttempts   int        `json:"quiz_attempts"`
	AvgQuizScore   *float64   `json:"avg_quiz_score"`
	ForumPosts     int        `json:"forum_posts"`
	ForumReplies   int        `json:"forum_replies"`
	WeekdayActions [7]float64 `json:"weekday_actions"`
}

// weekdayIndex maps Monday to 0 and Sunday to 6
func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// BuildProfiles merges activity, quiz and forum features per user, ordered by user id
func BuildProfiles(events []Event, quizzes []QuizResult, posts []ForumResult, opts Options) []StudentProfile {
	type acc struct {
		profile StudentProfile
		courses map[string]struct{}
		days    map[string]struct{}
		grades  []float64
	}
	users := make(map[int64]*acc)
	get := func(id int64) *acc {
		a, ok := users[id]
		if !ok {
			a = &acc{
				profile: StudentProfile{UserID: id},
				courses: make(map[string]struct{}),
				days:    make(map[string]struct{}),
			}
			users[id] = a
		}
		return a
	}

	for _, e := range events {
		a := get(e.UserID)
		a.profile.TotalActions++
		a.courses[e.CourseID] = struct{}{}
		if isSubmission(e.Category, opts) {
			a.profile.Submissions++
		}
		if e.Time != nil {
			a.days[e.Date] = struct{}{}
			a.profile.WeekdayActions[weekdayIndex(e.Weekday)]++
		}
	}
	for _, q := range quizzes {
		a := get(q.UserID)
		a.profile.QuizAttempts++
		if q.FinalGrade != nil {
			a.grades = append(a.grades, *q.FinalGrade)
		}
	}
	for _, p := range posts {
		a := get(p.UserID)
		a.profile.ForumPosts++
		if p.IsReply {
			a.profile.ForumReplies++
		}
	}

	ids := make([]int64, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]StudentProfile, 0, len(ids))
	for _, id := range ids {
		a := users[id]
		a.profile.Courses = len(a.courses)
		a.profile.ActiveDays = len(a.days)
		if len(a.grades) > 0 {
			a.profile.AvgQuizScore = floatPtr(mean(a.grades))
		}
		out = append(out, a.profile)
	}
	return out
}
