package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// EventLoader is the read side of an EventRepository
type EventLoader interface {
	LoadEvents(ctx context.Context) ([]domain.ActivityEvent, error)
}

// CompositeReader takes activity events from the ingestion store and every
// other table from a base reader
type CompositeReader struct {
	base   DatasetReader
	events EventLoader
	log    *zap.Logger
}

// NewCompositeReader creates a reader combining base and events
func NewCompositeReader(base DatasetReader, events EventLoader, log *zap.Logger) *CompositeReader {
	return &CompositeReader{base: base, events: events, log: log}
}

// Load reads the base dataset and replaces its events
func (r *CompositeReader) Load(ctx context.Context) (*domain.Dataset, error) {
	ds, err := r.base.Load(ctx)
	if err != nil {
		return nil, err
	}

	events, err := r.events.LoadEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load ingested events: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	r.log.Debug("Replaced base events with ingested events",
		zap.Int("base_events", len(ds.Events)),
		zap.Int("ingested_events", len(events)))
	ds.Events = events
	return ds, nil
}
