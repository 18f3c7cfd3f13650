package dto

import (
	"time"

	"github.com/maysaraadmin/moodle-analytics/internal/analytics"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"validation_error"`
	Message string `json:"message,omitempty" example:"event_name is required"`
}

// HealthResponse reports service and dependency status
type HealthResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// PublishEventResponse represents a successful event ingestion response
type PublishEventResponse struct {
	EventID int64  `json:"event_id" example:"4611686018427387904"`
	Status  string `json:"status" example:"accepted"`
}

// PublishBulkEventsResponse represents a successful bulk event ingestion response
type PublishBulkEventsResponse struct {
	Accepted int      `json:"accepted" example:"5"`
	Rejected int      `json:"rejected" example:"0"`
	EventIDs []int64  `json:"event_ids,omitempty"`
	Errors   []string `json:"errors,omitempty" example:"validation error on event 3"`
}

// MetricsGroupData represents aggregated metrics for a specific group
type MetricsGroupData struct {
	GroupValue string `json:"group_value" example:"MATH101"`
	TotalCount uint64 `json:"total_count" example:"1500"`
}

// GetMetricsResponse represents the metrics query response
type GetMetricsResponse struct {
	EventName   string             `json:"event_name,omitempty"`
	CourseID    string             `json:"course_id,omitempty"`
	From        int64              `json:"from" example:"1723475612"`
	To          int64              `json:"to" example:"1723562012"`
	TotalCount  uint64             `json:"total_count" example:"5000"`
	UniqueCount uint64             `json:"unique_count" example:"2500"`
	GroupBy     string             `json:"group_by,omitempty" example:"course"`
	Groups      []MetricsGroupData `json:"groups,omitempty"`
}

// SnapshotResponse describes the snapshot an analysis ran on
type SnapshotResponse struct {
	SnapshotID string         `json:"snapshot_id"`
	LoadedAt   time.Time      `json:"loaded_at"`
	Counts     map[string]int `json:"counts,omitempty"`
}

// TableResponse is one analysis table
type TableResponse struct {
	SnapshotID string              `json:"snapshot_id"`
	LoadedAt   time.Time           `json:"loaded_at"`
	Table      string              `json:"table"`
	Rows       any                 `json:"rows"`
	Anomalies  []analytics.Anomaly `json:"anomalies"`
}

// AnalysisResponse holds every analysis table in order
type AnalysisResponse struct {
	SnapshotID string              `json:"snapshot_id"`
	LoadedAt   time.Time           `json:"loaded_at"`
	Tables     []analytics.Table   `json:"tables"`
	Anomalies  []analytics.Anomaly `json:"anomalies"`
}

// GraphResponse is the forum reply network
type GraphResponse struct {
	SnapshotID string                     `json:"snapshot_id"`
	LoadedAt   time.Time                  `json:"loaded_at"`
	Nodes      []int64                    `json:"nodes"`
	Edges      []analytics.GraphEdge      `json:"edges"`
	Metrics    analytics.GraphMetrics     `json:"metrics"`
	Centrality []analytics.NodeCentrality `json:"centrality"`
}
