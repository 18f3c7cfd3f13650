package repository

import (
	"context"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// Supported metrics groupings
const (
	GroupByCourse    = "course"
	GroupByComponent = "component"
	GroupByHour      = "hour"
	GroupByDay       = "day"
)

// MetricsQuery represents a metrics query parameters
type MetricsQuery struct {
	EventName string
	CourseID  string
	From      int64
	To        int64
	GroupBy   string
}

// MetricsGroupResult represents aggregated metrics for a specific group
type MetricsGroupResult struct {
	GroupValue string
	TotalCount uint64
}

// MetricsResult represents the result of a metrics query
type MetricsResult struct {
	TotalCount  uint64
	UniqueCount uint64
	Groups      []MetricsGroupResult
}

// EventRepository defines the interface for activity event storage operations
type EventRepository interface {
	// InsertBatch inserts a batch of events into the storage
	InsertBatch(ctx context.Context, events []*domain.ActivityEvent) (int, error)

	// InitSchema initializes the database schema (creates tables if they don't exist)
	InitSchema(ctx context.Context) error

	// Ping checks if the database connection is alive
	Ping(ctx context.Context) error

	// Close closes the repository and releases resources
	Close() error

	// GetMetrics retrieves aggregated metrics based on the query
	GetMetrics(ctx context.Context, query MetricsQuery) (*MetricsResult, error)

	// LoadEvents returns every stored activity event, deduplicated by event id
	LoadEvents(ctx context.Context) ([]domain.ActivityEvent, error)
}

// DatasetReader loads a full Moodle dataset from one source
type DatasetReader interface {
	Load(ctx context.Context) (*domain.Dataset, error)
}
