package analytics

import (
	"fmt"
	"sort"
)

const stageRisk = "risk"

// RiskLevel is a coarse risk tier
type RiskLevel string

const (
	RiskHigh    RiskLevel = "High Risk"
	RiskMedium  RiskLevel = "Medium Risk"
	RiskLow     RiskLevel = "Low Risk"
	RiskVeryLow RiskLevel = "Very Low Risk"
)

// RiskAssessment classifies one user in one course.
// EngagementPercentile and GradeRisk are independent signals.
type RiskAssessment struct {
	UserID               int64      `json:"user_id"`
	CourseID             string     `json:"course_id"`
	EngagementScore      float64    `json:"engagement_score"`
	EngagementPercentile float64    `json:"engagement_percentile"`
	RiskLevel            RiskLevel  `json:"risk_level"`
	AvgQuizGrade         *float64   `json:"avg_quiz_grade"`
	GradeRisk            *RiskLevel `json:"grade_risk"`
}

// PercentileRisk maps an engagement percentile onto right-inclusive bins:
// [0,25] High, (25,50] Medium, (50,75] Low, (75,100] Very Low.
func PercentileRisk(percentile float64) RiskLevel {
	switch {
	case percentile <= 25:
		return RiskHigh
	case percentile <= 50:
		return RiskMedium
	case percentile <= 75:
		return RiskLow
	default:
		return RiskVeryLow
	}
}

// GradeRisk maps a 0-100 grade onto [0,50] High, (50,70] Medium,
// (70,85] Low, (85,100] Very Low. Grades outside [0,100] are clamped.
func GradeRisk(grade float64) RiskLevel {
	switch {
	case grade <= 50:
		return RiskHigh
	case grade <= 70:
		return RiskMedium
	case grade <= 85:
		return RiskLow
	default:
		return RiskVeryLow
	}
}

// AssessRisk ranks every (user, course) pair by its mean normalized engagement
// and tiers the resulting percentile. Grade risk comes from the pair's mean
// quiz grade when any graded attempt exists.
func AssessRisk(scores []EngagementScore, quizzes []QuizResult, rep *Report) []RiskAssessment {
	if len(scores) == 0 {
		return []RiskAssessment{}
	}

	type acc struct {
		sum   float64
		count int
	}
	engagement := make(map[pairKey]*acc)
	var keys []pairKey
	for _, s := range scores {
		key := pairKey{s.UserID, s.CourseID}
		a, ok := engagement[key]
		if !ok {
			a = &acc{}
			engagement[key] = a
			keys = append(keys, key)
		}
		a.sum += s.Normalized
		a.count++
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].userID != keys[j].userID {
			return keys[i].userID < keys[j].userID
		}
		return keys[i].courseID < keys[j].courseID
	})

	grades := make(map[pairKey]*acc)
	for _, q := range quizzes {
		if q.FinalGrade == nil {
			continue
		}
		key := pairKey{q.UserID, q.CourseID}
		a, ok := grades[key]
		if !ok {
			a = &acc{}
			grades[key] = a
		}
		a.sum += *q.FinalGrade
		a.count++
	}

	values := make([]float64, len(keys))
	for i, key := range keys {
		a := engagement[key]
		values[i] = a.sum / float64(a.count)
	}
	percentiles := percentileRanks(values)

	out := make([]RiskAssessment, len(keys))
	for i, key := range keys {
		r := RiskAssessment{
			UserID:               key.userID,
			CourseID:             key.courseID,
			EngagementScore:      values[i],
			EngagementPercentile: percentiles[i],
			RiskLevel:            PercentileRisk(percentiles[i]),
		}
		if g, ok := grades[key]; ok {
			avg := g.sum / float64(g.count)
			if avg < 0 || avg > 100 {
				rep.Add(stageRisk, AnomalyAverageGradeOutOfRange, fmt.Sprintf("user %d course %s grade %.2f", key.userID, key.courseID, avg))
			}
			level := GradeRisk(avg)
			r.AvgQuizGrade = &avg
			r.GradeRisk = &level
		}
		out[i] = r
	}
	return out
}
