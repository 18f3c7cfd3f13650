package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

const stageCourse = "course"

// CourseSummary rolls activity and completion up to one course
type CourseSummary struct {
	CourseID                string   `json:"course_id"`
	CourseName              string   `json:"course_name"`
	Students                int      `json:"students"`
	TotalActions            int      `json:"total_actions"`
	Submissions             int      `json:"submissions"`
	FirstActivity           string   `json:"first_activity"`
	LastActivity            string   `json:"last_activity"`
	ActivitySpanDays        int      `json:"activity_span_days"`
	Enrollments             int      `json:"enrollments"`
	Completions             int      `json:"completions"`
	CompletionRate          float64  `json:"completion_rate"`
	AvgCompletionPercentage *float64 `json:"avg_completion_percentage"`
}

type courseAcc struct {
	summary     CourseSummary
	students    map[int64]struct{}
	enrolled    map[int64]struct{}
	completed   map[int64]struct{}
	percentages []float64
	first, last *time.Time
}

// AggregateCourses summarises every course seen in events, completions or
// course metadata, ordered by course id. Courses without enrollments get a
// completion rate of 0.
func AggregateCourses(events []Event, completions []domain.CompletionRecord, courses []domain.Course, opts Options, rep *Report) []CourseSummary {
	accs := make(map[string]*courseAcc)
	get := func(id string) *courseAcc {
		a, ok := accs[id]
		if !ok {
			a = &courseAcc{
				summary:   CourseSummary{CourseID: id},
				students:  make(map[int64]struct{}),
				enrolled:  make(map[int64]struct{}),
				completed: make(map[int64]struct{}),
			}
			accs[id] = a
		}
		return a
	}

	metadata := make(map[string]domain.Course, len(courses))
	for _, c := range courses {
		metadata[c.CourseID] = c
		get(c.CourseID)
	}

	for _, e := range events {
		a := get(e.CourseID)
		a.students[e.UserID] = struct{}{}
		a.summary.TotalActions++
		if isSubmission(e.Category, opts) {
			a.summary.Submissions++
		}
		if e.Time == nil {
			continue
		}
		if a.first == nil || e.Time.Before(*a.first) {
			a.first = e.Time
		}
		if a.last == nil || e.Time.After(*a.last) {
			a.last = e.Time
		}
	}

	if len(completions) == 0 {
		rep.Add(stageCourse, AnomalyEmptyTable, "completions")
	}
	for _, c := range completions {
		a := get(c.CourseID)
		a.enrolled[c.UserID] = struct{}{}
		if c.Completed != nil {
			a.completed[c.UserID] = struct{}{}
		}
		if c.CompletionPercentage == nil {
			continue
		}
		if p := *c.CompletionPercentage; p < 0 || p > 100 {
			rep.Add(stageCourse, AnomalyCompletionOutOfRange, fmt.Sprintf("user %d course %s value %.2f", c.UserID, c.CourseID, p))
			continue
		}
		a.percentages = append(a.percentages, *c.CompletionPercentage)
	}

	ids := make([]string, 0, len(accs))
	for id := range accs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]CourseSummary, 0, len(ids))
	for _, id := range ids {
		a := accs[id]
		s := a.summary
		s.CourseName = metadata[id].FullName
		s.Students = len(a.students)
		if a.first != nil {
			s.FirstActivity = a.first.Format(time.DateOnly)
			s.LastActivity = a.last.Format(time.DateOnly)
			s.ActivitySpanDays = calendarDays(*a.first, *a.last) + 1
		}
		s.Enrollments = max(len(a.enrolled), metadata[id].EnrolledUsers)
		s.Completions = len(a.completed)
		if s.Enrollments > 0 {
			s.CompletionRate = float64(s.Completions) / float64(s.Enrollments)
		}
		if len(a.percentages) > 0 {
			s.AvgCompletionPercentage = floatPtr(mean(a.percentages))
		}
		out = append(out, s)
	}
	return out
}

// calendarDays counts whole calendar days between the dates of a and b
func calendarDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
