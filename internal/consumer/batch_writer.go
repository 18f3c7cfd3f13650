package consumer

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
	"github.com/maysaraadmin/moodle-analytics/internal/repository"
)

const finalFlushTimeout = 10 * time.Second

// BatchWriterConfig sets the size and age thresholds that trigger a flush
type BatchWriterConfig struct {
	MaxBatchSize int
	FlushTimeout time.Duration
}

// BatchStats are cumulative counters since the writer started
type BatchStats struct {
	Batches    uint64 `json:"batches"`
	Inserted   uint64 `json:"inserted"`
	Duplicates uint64 `json:"duplicates"`
	Failed     uint64 `json:"failed"`
}

// BatchWriter buffers envelopes and inserts them into the event store.
// Messages are only acked once the whole batch is stored.
type BatchWriter struct {
	repository repository.EventRepository
	config     BatchWriterConfig
	log        *zap.Logger

	batches    atomic.Uint64
	inserted   atomic.Uint64
	duplicates atomic.Uint64
	failed     atomic.Uint64
}

func NewBatchWriter(repo repository.EventRepository, config BatchWriterConfig, log *zap.Logger) *BatchWriter {
	return &BatchWriter{
		repository: repo,
		config:     config,
		log:        log,
	}
}

// Stats returns a snapshot of the counters
func (w *BatchWriter) Stats() BatchStats {
	return BatchStats{
		Batches:    w.batches.Load(),
		Inserted:   w.inserted.Load(),
		Duplicates: w.duplicates.Load(),
		Failed:     w.failed.Load(),
	}
}

// Start consumes envelopes until ctx is cancelled or in is closed. Whatever
// is buffered at that point is flushed once more.
func (w *BatchWriter) Start(ctx context.Context, in <-chan *Envelope) {
	ticker := time.NewTicker(w.config.FlushTimeout)
	defer ticker.Stop()

	batch := make([]*Envelope, 0, w.config.MaxBatchSize)
	flush := func(ctx context.Context, reason string) {
		if len(batch) == 0 {
			return
		}
		w.log.Info("Flushing batch",
			zap.String("reason", reason),
			zap.Int("envelope_count", len(batch)))
		w.processBatch(ctx, batch)
		batch = make([]*Envelope, 0, w.config.MaxBatchSize)
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Batch writer shutting down")
			// The queue still holds these messages, so a short detached
			// flush is enough to avoid redelivering them.
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
			flush(flushCtx, "shutdown")
			cancel()
			return

		case envelope, ok := <-in:
			if !ok {
				w.log.Info("Batch writer input channel closed")
				flush(ctx, "input closed")
				return
			}

			batch = append(batch, envelope)
			if len(batch) >= w.config.MaxBatchSize {
				flush(ctx, "size")
				ticker.Reset(w.config.FlushTimeout)
			}

		case <-ticker.C:
			flush(ctx, "timeout")
		}
	}
}

// processBatch inserts the distinct events of a batch, then acks every
// envelope on success or nacks every envelope otherwise
func (w *BatchWriter) processBatch(ctx context.Context, envelopes []*Envelope) {
	if len(envelopes) == 0 {
		return
	}
	w.batches.Add(1)

	events := distinctEvents(envelopes)
	if dup := len(envelopes) - len(events); dup > 0 {
		w.duplicates.Add(uint64(dup))
		w.log.Debug("Dropped duplicate events from batch", zap.Int("duplicates", dup))
	}

	insertedCount, err := w.repository.InsertBatch(ctx, events)
	if err != nil {
		w.failed.Add(uint64(len(envelopes)))
		w.log.Error("Failed to insert batch",
			zap.Error(err),
			zap.Int("event_count", len(events)),
			zap.String("first_message_id", envelopes[0].MessageID))
		w.nackAll(ctx, envelopes)
		return
	}

	if insertedCount != len(events) {
		w.failed.Add(uint64(len(envelopes)))
		w.log.Warn("Partial insert success",
			zap.Int("inserted", insertedCount),
			zap.Int("expected", len(events)))
		w.nackAll(ctx, envelopes)
		return
	}

	w.inserted.Add(uint64(insertedCount))
	w.log.Info("Successfully inserted events", zap.Int("count", insertedCount))
	w.ackAll(ctx, envelopes)
}

// distinctEvents keeps the first event per event id. The same Moodle event
// published twice carries the same content derived id.
func distinctEvents(envelopes []*Envelope) []*domain.ActivityEvent {
	seen := make(map[int64]struct{}, len(envelopes))
	events := make([]*domain.ActivityEvent, 0, len(envelopes))
	for _, env := range envelopes {
		if _, dup := seen[env.Event.EventID]; dup {
			continue
		}
		seen[env.Event.EventID] = struct{}{}
		events = append(events, env.Event)
	}
	return events
}

func (w *BatchWriter) ackAll(ctx context.Context, envelopes []*Envelope) {
	for _, env := range envelopes {
		if err := env.Ack(ctx); err != nil {
			w.log.Error("Failed to ack envelope",
				zap.String("message_id", env.MessageID),
				zap.Error(err))
		}
	}
}

func (w *BatchWriter) nackAll(ctx context.Context, envelopes []*Envelope) {
	for _, env := range envelopes {
		if err := env.Nack(ctx); err != nil {
			w.log.Error("Failed to nack envelope",
				zap.String("message_id", env.MessageID),
				zap.Error(err))
		}
	}
}
