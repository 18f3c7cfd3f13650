package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
	"github.com/maysaraadmin/moodle-analytics/internal/repository"
)

const eventsTable = "activity_events"

// Repository implements EventRepository for ClickHouse
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// InitSchema initializes the ClickHouse schema with ReplacingMergeTree engine.
// Re-delivered events share an event_id and collapse to the highest version.
func (r *Repository) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS activity_events (
		event_id Int64,
		user_id Int64,
		course_id String,
		timestamp Nullable(Int64),
		event_name LowCardinality(String),
		component LowCardinality(String),
		processed_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (event_id)
	ORDER BY (event_id)
	PARTITION BY toYYYYMM(processed_at)
	SETTINGS index_granularity = 8192
	`

	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s table: %w", eventsTable, err)
	}

	r.log.Info("ClickHouse schema initialized successfully")
	return nil
}

// InsertBatch inserts a batch of activity events into ClickHouse
func (r *Repository) InsertBatch(ctx context.Context, events []*domain.ActivityEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO "+eventsTable)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	insertedCount := 0
	for _, event := range events {
		if event.Version == 0 {
			event.Version = uint64(time.Now().UnixNano())
		}
		if event.ProcessedAt.IsZero() {
			event.ProcessedAt = time.Now().UTC()
		}

		err := batch.Append(
			event.EventID,
			event.UserID,
			event.CourseID,
			event.Timestamp,
			event.EventName,
			event.Component,
			event.ProcessedAt,
			event.Version,
		)

		if err != nil {
			return 0, fmt.Errorf("failed to append event to batch: %w", err)
		}
		insertedCount++
	}

	if insertedCount == 0 {
		return 0, fmt.Errorf("no events could be appended to batch")
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}

	return insertedCount, nil
}

// LoadEvents reads every ingested event, collapsed to its latest version
func (r *Repository) LoadEvents(ctx context.Context) ([]domain.ActivityEvent, error) {
	query := `
		SELECT event_id, user_id, course_id, timestamp, event_name, component, processed_at, version
		FROM activity_events FINAL
		ORDER BY event_id
	`

	var events []domain.ActivityEvent
	if err := r.client.Conn().Select(ctx, &events, query); err != nil {
		return nil, fmt.Errorf("failed to load activity events: %w", err)
	}

	r.log.Debug("Loaded activity events from ClickHouse", zap.Int("count", len(events)))
	return events, nil
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.client.Close()
}

// GetMetrics retrieves aggregated metrics from ClickHouse
func (r *Repository) GetMetrics(ctx context.Context, query repository.MetricsQuery) (*repository.MetricsResult, error) {
	result := &repository.MetricsResult{
		Groups: []repository.MetricsGroupResult{},
	}

	whereClause, args := metricsFilter(query)

	// Get overall metrics
	overallQuery := fmt.Sprintf(`
		SELECT
			count() as total_count,
			uniq(user_id) as unique_count
		FROM activity_events FINAL
		%s
	`, whereClause)

	row := r.client.Conn().QueryRow(ctx, overallQuery, args...)
	if err := row.Scan(&result.TotalCount, &result.UniqueCount); err != nil {
		return nil, fmt.Errorf("failed to query overall metrics: %w", err)
	}

	// If groupBy is specified, get grouped metrics
	if query.GroupBy != "" {
		selectField, groupByClause, orderBy, err := groupExpression(query.GroupBy)
		if err != nil {
			return nil, err
		}

		groupedQuery := fmt.Sprintf(`
			SELECT
				%s as group_value,
				count() as total_count
			FROM activity_events FINAL
			%s
			%s
			%s
		`, selectField, whereClause, groupByClause, orderBy)

		rows, err := r.client.Conn().Query(ctx, groupedQuery, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query grouped metrics: %w", err)
		}
		defer func(rows driver.Rows) {
			err := rows.Close()
			if err != nil {
				r.log.Error("Failed to close grouped metrics rows", zap.Error(err))
			}
		}(rows)

		for rows.Next() {
			var group repository.MetricsGroupResult
			if err := rows.Scan(&group.GroupValue, &group.TotalCount); err != nil {
				return nil, fmt.Errorf("failed to scan grouped metrics row: %w", err)
			}
			result.Groups = append(result.Groups, group)
		}

		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating grouped metrics rows: %w", err)
		}
	}

	return result, nil
}

// metricsFilter builds the WHERE clause shared by the overall and grouped queries.
// Events without a timestamp never match a time range.
func metricsFilter(query repository.MetricsQuery) (string, []interface{}) {
	conditions := []string{"timestamp >= ?", "timestamp <= ?"}
	args := []interface{}{query.From, query.To}

	if query.EventName != "" {
		conditions = append(conditions, "event_name = ?")
		args = append(args, query.EventName)
	}
	if query.CourseID != "" {
		conditions = append(conditions, "course_id = ?")
		args = append(args, query.CourseID)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

func groupExpression(groupBy string) (selectField, groupByClause, orderBy string, err error) {
	switch groupBy {
	case repository.GroupByCourse:
		return "course_id", "GROUP BY course_id", "ORDER BY total_count DESC", nil
	case repository.GroupByComponent:
		return "component", "GROUP BY component", "ORDER BY total_count DESC", nil
	case repository.GroupByHour:
		return "formatDateTime(toStartOfHour(toDateTime(assumeNotNull(timestamp))), '%Y-%m-%d %H:00:00')",
			"GROUP BY toStartOfHour(toDateTime(assumeNotNull(timestamp)))",
			"ORDER BY group_value ASC", nil
	case repository.GroupByDay:
		return "formatDateTime(toStartOfDay(toDateTime(assumeNotNull(timestamp))), '%Y-%m-%d')",
			"GROUP BY toStartOfDay(toDateTime(assumeNotNull(timestamp)))",
			"ORDER BY group_value ASC", nil
	}
	return "", "", "", fmt.Errorf("unsupported group_by value: %s (supported: course, component, hour, day)", groupBy)
}
