package analytics

import (
	"fmt"
	"sort"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

const stageQuiz = "quiz"

// QuizResult is a quiz attempt with its derived sequencing and grade features
type QuizResult struct {
	domain.QuizAttempt

	DurationMinutes         *float64 `json:"duration_minutes"`
	FinalGrade              *float64 `json:"final_grade"`
	IsFirstAttempt          bool     `json:"is_first_attempt"`
	IsLastAttempt           bool     `json:"is_last_attempt"`
	Passed                  bool     `json:"passed"`
	ImprovementFromPrevious *float64 `json:"improvement_from_previous"`
	ImprovementFromFirst    *float64 `json:"improvement_from_first"`
}

type quizKey struct {
	userID int64
	quizID string
}

// ProcessQuiz sequences attempts per (user, quiz) and derives grade features.
// Output is ordered by user, quiz and ordinal.
func ProcessQuiz(attempts []domain.QuizAttempt, opts Options, rep *Report) []QuizResult {
	if len(attempts) == 0 {
		rep.Add(stageQuiz, AnomalyEmptyTable, "quizzes")
		return []QuizResult{}
	}

	groups := make(map[quizKey][]domain.QuizAttempt)
	var keys []quizKey
	for _, a := range attempts {
		key := quizKey{a.UserID, a.QuizID}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], a)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].userID != keys[j].userID {
			return keys[i].userID < keys[j].userID
		}
		return keys[i].quizID < keys[j].quizID
	})

	out := make([]QuizResult, 0, len(attempts))
	for _, key := range keys {
		group := append([]domain.QuizAttempt(nil), groups[key]...)
		if !validOrdinals(group) {
			rep.Add(stageQuiz, AnomalyOrdinalReassigned, fmt.Sprintf("user %d quiz %s", key.userID, key.quizID))
			sort.SliceStable(group, func(i, j int) bool { return chronological(group[i], group[j]) })
			for i := range group {
				group[i].Ordinal = i + 1
			}
		} else {
			sort.Slice(group, func(i, j int) bool { return group[i].Ordinal < group[j].Ordinal })
		}

		var first, previous *float64
		for i, a := range group {
			r := QuizResult{
				QuizAttempt:    a,
				IsFirstAttempt: i == 0,
				IsLastAttempt:  i == len(group)-1,
			}

			if a.StartTime != nil && a.FinishTime != nil {
				d := float64(*a.FinishTime-*a.StartTime) / 60
				if d < 0 {
					rep.Add(stageQuiz, AnomalyNegativeDuration, fmt.Sprintf("attempt %d", a.AttemptID))
				}
				r.DurationMinutes = &d
			}

			if a.RawGrade != nil {
				g := *a.RawGrade * 100
				if a.MaxGrade > 0 {
					g = *a.RawGrade / a.MaxGrade * 100
				}
				if g < 0 || g > 100 {
					rep.Add(stageQuiz, AnomalyGradeOutOfRange, fmt.Sprintf("attempt %d grade %.2f", a.AttemptID, g))
				}
				r.FinalGrade = &g
				r.Passed = g >= opts.PassGrade
			}

			if i == 0 {
				first = r.FinalGrade
			} else {
				r.ImprovementFromPrevious = diff(r.FinalGrade, previous)
				r.ImprovementFromFirst = diff(r.FinalGrade, first)
			}
			previous = r.FinalGrade
			out = append(out, r)
		}
	}
	return out
}

// validOrdinals reports whether the supplied ordinals are a permutation of 1..N
func validOrdinals(group []domain.QuizAttempt) bool {
	seen := make(map[int]bool, len(group))
	for _, a := range group {
		if a.Ordinal < 1 || a.Ordinal > len(group) || seen[a.Ordinal] {
			return false
		}
		seen[a.Ordinal] = true
	}
	return true
}

// chronological orders by start time, missing starts last, then attempt id
func chronological(a, b domain.QuizAttempt) bool {
	switch {
	case a.StartTime == nil && b.StartTime == nil:
	case a.StartTime == nil:
		return false
	case b.StartTime == nil:
		return true
	case *a.StartTime != *b.StartTime:
		return *a.StartTime < *b.StartTime
	}
	return a.AttemptID < b.AttemptID
}

func diff(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	return floatPtr(*a - *b)
}

// StudentQuizSummary aggregates one user's graded attempts
type StudentQuizSummary struct {
	UserID             int64    `json:"user_id"`
	Attempts           int      `json:"attempts"`
	AvgGrade           *float64 `json:"avg_grade"`
	MaxGrade           *float64 `json:"max_grade"`
	MinGrade           *float64 `json:"min_grade"`
	AvgDurationMinutes *float64 `json:"avg_duration_minutes"`
	MaxAttemptOrdinal  int      `json:"max_attempt_ordinal"`
}

// SummarizeQuizzes aggregates quiz results per user, ordered by user id
func SummarizeQuizzes(results []QuizResult) []StudentQuizSummary {
	type acc struct {
		summary   StudentQuizSummary
		grades    []float64
		durations []float64
	}
	groups := make(map[int64]*acc)
	var users []int64
	for _, r := range results {
		a, ok := groups[r.UserID]
		if !ok {
			a = &acc{summary: StudentQuizSummary{UserID: r.UserID}}
			groups[r.UserID] = a
			users = append(users, r.UserID)
		}
		a.summary.Attempts++
		if r.Ordinal > a.summary.MaxAttemptOrdinal {
			a.summary.MaxAttemptOrdinal = r.Ordinal
		}
		if r.FinalGrade != nil {
			a.grades = append(a.grades, *r.FinalGrade)
		}
		if r.DurationMinutes != nil {
			a.durations = append(a.durations, *r.DurationMinutes)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	out := make([]StudentQuizSummary, 0, len(users))
	for _, u := range users {
		a := groups[u]
		if len(a.grades) > 0 {
			sorted := append([]float64(nil), a.grades...)
			sort.Float64s(sorted)
			a.summary.MinGrade = floatPtr(sorted[0])
			a.summary.MaxGrade = floatPtr(sorted[len(sorted)-1])
			a.summary.AvgGrade = floatPtr(mean(a.grades))
		}
		if len(a.durations) > 0 {
			a.summary.AvgDurationMinutes = floatPtr(mean(a.durations))
		}
		out = append(out, a.summary)
	}
	return out
}
