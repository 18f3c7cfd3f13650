package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

func TestActivityPatterns_Distributions(t *testing.T) {
	quiz := activity(3, 1, "A", nil, eventSubmitted)
	quiz.Component = "mod_quiz"
	events := Clean([]domain.ActivityEvent{
		// 2024-01-01 is a Monday in ISO week 1
		activity(1, 1, "A", unix(2024, time.January, 1, 9), eventViewed),
		activity(2, 2, "A", unix(2024, time.January, 1, 9), eventViewed),
		quiz,
	}, testOptions(), nil)

	p := ActivityPatterns(events)

	require.Len(t, p.Hourly, 24)
	assert.Equal(t, 2, p.Hourly[9].Actions)
	assert.Equal(t, 2, p.Hourly[9].Users)
	assert.Equal(t, 0, p.Hourly[10].Actions)

	require.Len(t, p.Daily, 7)
	assert.Equal(t, "Monday", p.Daily[0].Weekday)
	assert.Equal(t, 2, p.Daily[0].Actions)
	assert.Equal(t, "Sunday", p.Daily[6].Weekday)

	require.Len(t, p.Weekly, 1)
	assert.Equal(t, WeeklyActivity{ISOYear: 2024, ISOWeek: 1, Actions: 2, Users: 2}, p.Weekly[0])

	require.Len(t, p.Heatmap, 7*24)
	assert.Equal(t, HeatmapCell{Weekday: "Monday", Hour: 9, Actions: 2}, p.Heatmap[9])

	require.Len(t, p.Components, 2)
	assert.Equal(t, "mod_page", p.Components[0].Component)
	assert.InDelta(t, 2.0/3, p.Components[0].Share, 1e-9)
	assert.Equal(t, "mod_quiz", p.Components[1].Component)
	assert.Equal(t, 1, p.Components[1].Users)
}

func TestActivityPatterns_NoTimedEvents(t *testing.T) {
	events := Clean([]domain.ActivityEvent{activity(1, 1, "A", nil, eventViewed)}, testOptions(), nil)

	p := ActivityPatterns(events)

	assert.Empty(t, p.Hourly)
	assert.Empty(t, p.Daily)
	assert.Empty(t, p.Weekly)
	assert.Empty(t, p.Heatmap)
	assert.Len(t, p.Components, 1)
}

func TestActivityPatterns_Empty(t *testing.T) {
	p := ActivityPatterns(nil)

	assert.NotNil(t, p.Hourly)
	assert.Empty(t, p.Hourly)
	assert.Empty(t, p.Components)
}

func TestEngagementLevels_Bands(t *testing.T) {
	var raw []domain.ActivityEvent
	add := func(user int64, n int) {
		for i := 0; i < n; i++ {
			raw = append(raw, activity(int64(len(raw)+1), user, "A", unix(2024, time.January, 2, 8), eventViewed))
		}
	}
	add(1, 101)
	add(2, 100)
	add(3, 51)
	add(4, 50)
	add(5, 1)

	levels := EngagementLevels(Clean(raw, testOptions(), nil))

	assert.Equal(t, []EngagementLevel{
		{Level: "High", Students: 1},
		{Level: "Medium", Students: 2},
		{Level: "Low", Students: 2},
	}, levels)
}

func TestEngagementLevels_Empty(t *testing.T) {
	assert.Empty(t, EngagementLevels(nil))
}

func TestBuildOverview(t *testing.T) {
	opts := testOptions()
	events := Clean([]domain.ActivityEvent{
		activity(1, 1, "A", unix(2024, time.February, 20, 12), eventViewed),
		activity(2, 1, "A", unix(2024, time.February, 21, 12), eventViewed),
		activity(3, 2, "A", unix(2024, time.January, 1, 12), eventViewed),
		activity(4, 2, "B", nil, eventViewed),
	}, opts, nil)
	quizzes := []QuizResult{{FinalGrade: f64(80)}, {FinalGrade: f64(60)}, {}}

	o := BuildOverview(events, quizzes, nil, 4, 2, opts)

	assert.Equal(t, 4, o.TotalStudents)
	assert.Equal(t, 2, o.ActiveCourses)
	assert.Equal(t, 4, o.TotalEvents)
	assert.Equal(t, 1, o.ActiveStudents)
	assert.Equal(t, 25.0, o.EngagementRate)
	assert.Equal(t, 2.0, o.AvgActionsPerUser)
	assert.Equal(t, 3, o.QuizAttempts)
	require.NotNil(t, o.AvgQuizGrade)
	assert.Equal(t, 70.0, *o.AvgQuizGrade)
	assert.Equal(t, "2024-03-01T00:00:00Z", o.GeneratedAt)
}

func TestBuildOverview_NoUsers(t *testing.T) {
	o := BuildOverview(nil, nil, nil, 0, 0, testOptions())

	assert.Equal(t, 0.0, o.EngagementRate)
	assert.Equal(t, 0.0, o.AvgActionsPerUser)
	assert.Nil(t, o.AvgQuizGrade)
}
