package service

import (
	"context"

	"github.com/maysaraadmin/moodle-analytics/internal/analytics"
	"github.com/maysaraadmin/moodle-analytics/internal/dto"
	"github.com/maysaraadmin/moodle-analytics/internal/snapshot"
)

// EventServicer defines the interface for event service operations
type EventServicer interface {
	ProcessEvent(ctx context.Context, event *dto.PublishEventRequest) (int64, error)
	ProcessBulkEvents(ctx context.Context, events []dto.PublishEventRequest) ([]int64, []string, error)
	GetMetrics(ctx context.Context, req *dto.GetMetricsRequest) (*dto.GetMetricsResponse, error)
}

// AnalyticsServicer defines the interface for analysis operations
type AnalyticsServicer interface {
	Analyze(ctx context.Context, overrides OptionOverrides) (*Analysis, error)
	Table(ctx context.Context, name string, overrides OptionOverrides) (*Analysis, analytics.Table, error)
	Refresh(ctx context.Context) (*snapshot.Snapshot, error)
}

// SnapshotProvider hands out the dataset snapshot analyses run on
type SnapshotProvider interface {
	Get(ctx context.Context) (*snapshot.Snapshot, error)
	Refresh(ctx context.Context) (*snapshot.Snapshot, error)
}
