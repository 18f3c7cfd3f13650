package analytics

import (
	"sort"
	"time"
)

// HourlyActivity counts actions per hour of day
type HourlyActivity struct {
	Hour    int `json:"hour"`
	Actions int `json:"actions"`
	Users   int `json:"users"`
}

// DailyActivity counts actions per weekday, Monday first
type DailyActivity struct {
	Weekday string `json:"weekday"`
	Actions int    `json:"actions"`
	Users   int    `json:"users"`
}

// WeeklyActivity counts actions per ISO week
type WeeklyActivity struct {
	ISOYear int `json:"iso_year"`
	ISOWeek int `json:"iso_week"`
	Actions int `json:"actions"`
	Users   int `json:"users"`
}

// ComponentActivity counts actions per Moodle component
type ComponentActivity struct {
	Component string  `json:"component"`
	Actions   int     `json:"actions"`
	Users     int     `json:"users"`
	Share     float64 `json:"share"`
}

// HeatmapCell counts actions for one weekday and hour
type HeatmapCell struct {
	Weekday string `json:"weekday"`
	Hour    int    `json:"hour"`
	Actions int    `json:"actions"`
}

// EngagementLevel counts users per activity band
type EngagementLevel struct {
	Level    string `json:"level"`
	Students int    `json:"students"`
}

// Overview holds the headline numbers of a snapshot
type Overview struct {
	TotalStudents     int      `json:"total_students"`
	ActiveCourses     int      `json:"active_courses"`
	TotalEvents       int      `json:"total_events"`
	ActiveStudents    int      `json:"active_students"`
	EngagementRate    float64  `json:"engagement_rate"`
	AvgActionsPerUser float64  `json:"avg_actions_per_user"`
	QuizAttempts      int      `json:"quiz_attempts"`
	AvgQuizGrade      *float64 `json:"avg_quiz_grade"`
	ForumPosts        int      `json:"forum_posts"`
	GeneratedAt       string   `json:"generated_at"`
}

// Patterns groups the temporal and component distributions of activity
type Patterns struct {
	Hourly     []HourlyActivity
	Daily      []DailyActivity
	Weekly     []WeeklyActivity
	Components []ComponentActivity
	Heatmap    []HeatmapCell
}

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

type counter struct {
	actions int
	users   map[int64]struct{}
}

func (c *counter) add(userID int64) {
	if c.users == nil {
		c.users = make(map[int64]struct{})
	}
	c.actions++
	c.users[userID] = struct{}{}
}

// ActivityPatterns computes hourly, daily, weekly, component and heatmap
// distributions. Events without a time only count toward components.
// All tables are empty when no event carries a time.
func ActivityPatterns(events []Event) Patterns {
	var (
		hourly     [24]counter
		daily      [7]counter
		heatmap    [7][24]int
		weekly     = make(map[[2]int]*counter)
		components = make(map[string]*counter)
		timed      int
	)

	for _, e := range events {
		c, ok := components[e.Component]
		if !ok {
			c = &counter{}
			components[e.Component] = c
		}
		c.add(e.UserID)

		if e.Time == nil {
			continue
		}
		timed++
		day := weekdayIndex(e.Weekday)
		hourly[e.Hour].add(e.UserID)
		daily[day].add(e.UserID)
		heatmap[day][e.Hour]++
		wk := [2]int{e.ISOYear, e.ISOWeek}
		w, ok := weekly[wk]
		if !ok {
			w = &counter{}
			weekly[wk] = w
		}
		w.add(e.UserID)
	}

	p := Patterns{
		Hourly:     []HourlyActivity{},
		Daily:      []DailyActivity{},
		Weekly:     []WeeklyActivity{},
		Components: []ComponentActivity{},
		Heatmap:    []HeatmapCell{},
	}

	for name, c := range components {
		p.Components = append(p.Components, ComponentActivity{
			Component: name,
			Actions:   c.actions,
			Users:     len(c.users),
			Share:     float64(c.actions) / float64(len(events)),
		})
	}
	sort.Slice(p.Components, func(i, j int) bool {
		a, b := p.Components[i], p.Components[j]
		if a.Actions != b.Actions {
			return a.Actions > b.Actions
		}
		return a.Component < b.Component
	})

	if timed == 0 {
		return p
	}

	for h := range hourly {
		p.Hourly = append(p.Hourly, HourlyActivity{Hour: h, Actions: hourly[h].actions, Users: len(hourly[h].users)})
	}
	for d := range daily {
		p.Daily = append(p.Daily, DailyActivity{Weekday: weekdayNames[d], Actions: daily[d].actions, Users: len(daily[d].users)})
		for h := 0; h < 24; h++ {
			p.Heatmap = append(p.Heatmap, HeatmapCell{Weekday: weekdayNames[d], Hour: h, Actions: heatmap[d][h]})
		}
	}
	for wk, c := range weekly {
		p.Weekly = append(p.Weekly, WeeklyActivity{ISOYear: wk[0], ISOWeek: wk[1], Actions: c.actions, Users: len(c.users)})
	}
	sort.Slice(p.Weekly, func(i, j int) bool {
		if p.Weekly[i].ISOYear != p.Weekly[j].ISOYear {
			return p.Weekly[i].ISOYear < p.Weekly[j].ISOYear
		}
		return p.Weekly[i].ISOWeek < p.Weekly[j].ISOWeek
	})
	return p
}

// EngagementLevels bands users by total actions: more than 100 is High,
// more than 50 is Medium, anything else Low
func EngagementLevels(events []Event) []EngagementLevel {
	perUser := make(map[int64]int)
	for _, e := range events {
		perUser[e.UserID]++
	}
	if len(perUser) == 0 {
		return []EngagementLevel{}
	}

	levels := []EngagementLevel{{Level: "High"}, {Level: "Medium"}, {Level: "Low"}}
	for _, n := range perUser {
		switch {
		case n > 100:
			levels[0].Students++
		case n > 50:
			levels[1].Students++
		default:
			levels[2].Students++
		}
	}
	return levels
}

// BuildOverview computes the headline numbers. A student is active when they
// have an event within opts.ActiveWindow before opts.Now.
func BuildOverview(events []Event, quizzes []QuizResult, posts []ForumResult, users, courses int, opts Options) Overview {
	o := Overview{
		TotalStudents: users,
		ActiveCourses: courses,
		TotalEvents:   len(events),
		QuizAttempts:  len(quizzes),
		ForumPosts:    len(posts),
		GeneratedAt:   opts.Now.Format(time.RFC3339),
	}

	since := opts.Now.Add(-opts.ActiveWindow)
	active := make(map[int64]struct{})
	distinct := make(map[int64]struct{})
	for _, e := range events {
		distinct[e.UserID] = struct{}{}
		if e.Time != nil && e.Time.After(since) {
			active[e.UserID] = struct{}{}
		}
	}
	o.ActiveStudents = len(active)
	if users > 0 {
		o.EngagementRate = float64(len(active)) / float64(users) * 100
	}
	if len(distinct) > 0 {
		o.AvgActionsPerUser = float64(len(events)) / float64(len(distinct))
	}

	var grades []float64
	for _, q := range quizzes {
		if q.FinalGrade != nil {
			grades = append(grades, *q.FinalGrade)
		}
	}
	if len(grades) > 0 {
		o.AvgQuizGrade = floatPtr(mean(grades))
	}
	return o
}
