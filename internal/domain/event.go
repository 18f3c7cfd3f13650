package domain

import "time"

// ActivityEvent is one row of the Moodle standard log store
type ActivityEvent struct {
	EventID   int64  `ch:"event_id" db:"event_id" json:"event_id"`
	UserID    int64  `ch:"user_id" db:"user_id" json:"user_id"`
	CourseID  string `ch:"course_id" db:"course_id" json:"course_id"`
	Timestamp *int64 `ch:"timestamp" db:"timestamp" json:"timestamp"`
	EventName string `ch:"event_name" db:"event_name" json:"event_name"`
	Component string `ch:"component" db:"component" json:"component"`

	// Ingestion bookkeeping, only set on the ClickHouse path
	ProcessedAt time.Time `ch:"processed_at" db:"-" json:"-"`
	Version     uint64    `ch:"version" db:"-" json:"-"`
}
