package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
	"github.com/maysaraadmin/moodle-analytics/internal/dto"
	"github.com/maysaraadmin/moodle-analytics/internal/queue"
	"github.com/maysaraadmin/moodle-analytics/internal/repository"
)

const maxHourlyRangeDays = 90

// EventService represents event service
type EventService struct {
	publisher  queue.QueuePublisher
	repository repository.EventRepository
	log        *zap.Logger
	now        func() time.Time
}

// NewEventService creates a new event service
func NewEventService(publisher queue.QueuePublisher, repo repository.EventRepository, log *zap.Logger) *EventService {
	return &EventService{
		publisher:  publisher,
		repository: repo,
		log:        log,
		now:        time.Now,
	}
}

// computeEventID derives a deterministic positive id from the event content.
// Uses the first 8 bytes of SHA-256 over user_id|course_id|event_name|component|timestamp
func computeEventID(event *dto.PublishEventRequest) int64 {
	data := fmt.Sprintf("%d|%s|%s|%s|%d",
		event.UserID,
		event.CourseID,
		event.EventName,
		event.Component,
		event.Timestamp,
	)

	hash := sha256.Sum256([]byte(data))
	return int64(binary.BigEndian.Uint64(hash[:8]) & math.MaxInt64)
}

// activity validates a request and converts it into the queued event
func (s *EventService) activity(event *dto.PublishEventRequest) (*domain.ActivityEvent, error) {
	currentTime := s.now().Unix()
	if event.Timestamp > currentTime+1 {
		s.log.Warn("Timestamp validation failed: future timestamp",
			zap.Int64("event_timestamp", event.Timestamp),
			zap.Int64("current_time", currentTime),
			zap.String("event_name", event.EventName))
		return nil, fmt.Errorf("%w: timestamp cannot be in the future: %d > %d", ErrValidation, event.Timestamp, currentTime)
	}

	timestamp := event.Timestamp
	return &domain.ActivityEvent{
		EventID:   computeEventID(event),
		UserID:    event.UserID,
		CourseID:  event.CourseID,
		Timestamp: &timestamp,
		EventName: event.EventName,
		Component: event.Component,
	}, nil
}

// ProcessEvent validates a single event and publishes it to the queue
func (s *EventService) ProcessEvent(ctx context.Context, event *dto.PublishEventRequest) (int64, error) {
	activity, err := s.activity(event)
	if err != nil {
		return 0, err
	}

	if err := s.publisher.PublishEvent(ctx, activity); err != nil {
		return 0, fmt.Errorf("failed to publish event to queue: %w", err)
	}

	return activity.EventID, nil
}

// ProcessBulkEvents validates every event, then publishes the valid ones in
// queue batches. Per-event failures are collected in request order rather
// than aborting the request.
func (s *EventService) ProcessBulkEvents(ctx context.Context, events []dto.PublishEventRequest) ([]int64, []string, error) {
	failures := make(map[int]string)
	pending := make([]*domain.ActivityEvent, 0, len(events))
	positions := make([]int, 0, len(events))

	for i := range events {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		activity, err := s.activity(&events[i])
		if err != nil {
			failures[i] = err.Error()
			continue
		}
		pending = append(pending, activity)
		positions = append(positions, i)
	}

	accepted := make(map[int]int64, len(pending))
	if len(pending) > 0 {
		for j, err := range s.publisher.PublishEvents(ctx, pending) {
			if err != nil {
				failures[positions[j]] = fmt.Sprintf("failed to publish event to queue: %v", err)
				continue
			}
			accepted[positions[j]] = pending[j].EventID
		}
	}

	var eventIDs []int64
	var errors []string
	for i := range events {
		if id, ok := accepted[i]; ok {
			eventIDs = append(eventIDs, id)
			continue
		}
		if msg, ok := failures[i]; ok {
			errors = append(errors, fmt.Sprintf("event %d: %s", i, msg))
			s.log.Warn("Failed to process event in bulk",
				zap.Int("index", i),
				zap.String("error", msg),
				zap.String("event_name", events[i].EventName))
		}
	}

	return eventIDs, errors, nil
}

// GetMetrics retrieves aggregated metrics from the repository
func (s *EventService) GetMetrics(ctx context.Context, req *dto.GetMetricsRequest) (*dto.GetMetricsResponse, error) {
	if req.From > req.To {
		s.log.Warn("Invalid time range for metrics",
			zap.Int64("from", req.From),
			zap.Int64("to", req.To),
			zap.String("event_name", req.EventName))
		return nil, fmt.Errorf("%w: from timestamp must be less than or equal to to timestamp", ErrValidation)
	}

	if req.GroupBy != "" {
		switch req.GroupBy {
		case repository.GroupByCourse, repository.GroupByComponent, repository.GroupByHour, repository.GroupByDay:
		default:
			s.log.Warn("Invalid group_by value",
				zap.String("group_by", req.GroupBy))
			return nil, fmt.Errorf("%w: invalid group_by value: %s (supported: course, component, hour, day)", ErrValidation, req.GroupBy)
		}

		rangeSeconds := req.To - req.From
		if req.GroupBy == repository.GroupByHour && rangeSeconds > maxHourlyRangeDays*24*3600 {
			s.log.Warn("Large time range for hourly grouping",
				zap.Int64("range_days", rangeSeconds/(24*3600)))
			return nil, fmt.Errorf("%w: time range too large for hourly grouping (max %d days, got %d days)",
				ErrValidation, maxHourlyRangeDays, rangeSeconds/(24*3600))
		}
	}

	query := repository.MetricsQuery{
		EventName: req.EventName,
		CourseID:  req.CourseID,
		From:      req.From,
		To:        req.To,
		GroupBy:   req.GroupBy,
	}

	s.log.Info("Querying metrics",
		zap.String("event_name", req.EventName),
		zap.String("course_id", req.CourseID),
		zap.Int64("from", req.From),
		zap.Int64("to", req.To),
		zap.String("group_by", req.GroupBy))

	result, err := s.repository.GetMetrics(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics from repository: %w", err)
	}

	response := &dto.GetMetricsResponse{
		EventName:   req.EventName,
		CourseID:    req.CourseID,
		From:        req.From,
		To:          req.To,
		TotalCount:  result.TotalCount,
		UniqueCount: result.UniqueCount,
		GroupBy:     req.GroupBy,
		Groups:      make([]dto.MetricsGroupData, 0, len(result.Groups)),
	}

	for _, group := range result.Groups {
		response.Groups = append(response.Groups, dto.MetricsGroupData{
			GroupValue: group.GroupValue,
			TotalCount: group.TotalCount,
		})
	}

	return response, nil
}
