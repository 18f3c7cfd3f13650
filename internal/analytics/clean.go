package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// Category is the coarse action class of a log event
type Category string

const (
	CategoryView   Category = "view"
	CategorySubmit Category = "submit"
	CategoryCreate Category = "create"
	CategoryUpdate Category = "update"
	CategoryOther  Category = "other"
)

const stageClean = "clean"

// Event is an activity event with its derived temporal and categorical fields.
// Time is nil when the source timestamp is missing; the other temporal fields
// are then zero.
type Event struct {
	domain.ActivityEvent

	Time       *time.Time   `json:"time"`
	Hour       int          `json:"hour"`
	Weekday    time.Weekday `json:"weekday"`
	Date       string       `json:"date"`
	ISOYear    int          `json:"iso_year"`
	ISOWeek    int          `json:"iso_week"`
	ActionType string       `json:"action_type"`
	Category   Category     `json:"action_category"`
}

// Clean enriches raw log rows into analysis-ready events
func Clean(raw []domain.ActivityEvent, opts Options, rep *Report) []Event {
	events := make([]Event, len(raw))
	for i, r := range raw {
		events[i] = Event{ActivityEvent: r}
	}
	return Enrich(events, opts, rep)
}

// Enrich recomputes every derived field from the raw fields of events.
// Derived values already present are ignored, so enriching twice is a no-op.
func Enrich(events []Event, opts Options, rep *Report) []Event {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	if len(events) == 0 {
		rep.Add(stageClean, AnomalyEmptyTable, "events")
	}

	out := make([]Event, len(events))
	for i, e := range events {
		enriched := Event{ActivityEvent: e.ActivityEvent}
		enriched.ActionType = actionType(e.EventName)
		enriched.Category = categorize(enriched.ActionType)

		if e.Timestamp == nil {
			rep.Add(stageClean, AnomalyMissingTimestamp, fmt.Sprintf("event %d", e.EventID))
			out[i] = enriched
			continue
		}

		t := time.Unix(*e.Timestamp, 0).In(loc)
		enriched.Time = &t
		enriched.Hour = t.Hour()
		enriched.Weekday = t.Weekday()
		enriched.Date = t.Format(time.DateOnly)
		enriched.ISOYear, enriched.ISOWeek = t.ISOWeek()
		out[i] = enriched
	}
	return out
}

// actionType returns the last backslash separated segment of a Moodle event name
func actionType(eventName string) string {
	if i := strings.LastIndex(eventName, `\`); i >= 0 {
		return eventName[i+1:]
	}
	return eventName
}

func categorize(action string) Category {
	lower := strings.ToLower(action)
	switch {
	case strings.Contains(lower, "viewed"):
		return CategoryView
	case strings.Contains(lower, "submitted"):
		return CategorySubmit
	case strings.Contains(lower, "created"):
		return CategoryCreate
	case strings.Contains(lower, "updated"):
		return CategoryUpdate
	default:
		return CategoryOther
	}
}

// isSubmission reports whether c counts toward submission totals
func isSubmission(c Category, opts Options) bool {
	return c == CategorySubmit || (opts.CountCreateAsSubmission && c == CategoryCreate)
}
