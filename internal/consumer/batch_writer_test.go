package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
	"github.com/maysaraadmin/moodle-analytics/internal/repository"
)

// MockEventRepository is a mock implementation of repository.EventRepository
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) InsertBatch(ctx context.Context, events []*domain.ActivityEvent) (int, error) {
	args := m.Called(ctx, events)
	return args.Int(0), args.Error(1)
}

func (m *MockEventRepository) InitSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEventRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockEventRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockEventRepository) GetMetrics(ctx context.Context, query repository.MetricsQuery) (*repository.MetricsResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.MetricsResult), args.Error(1)
}

func (m *MockEventRepository) LoadEvents(ctx context.Context) ([]domain.ActivityEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ActivityEvent), args.Error(1)
}

// ackCounter records envelope acknowledgments
type ackCounter struct {
	acks  atomic.Int32
	nacks atomic.Int32
}

func (c *ackCounter) envelope(eventID int64) *Envelope {
	timestamp := testTimestamp
	event := &domain.ActivityEvent{
		EventID:   eventID,
		UserID:    42,
		CourseID:  "MATH101",
		Timestamp: &timestamp,
		EventName: `\core\event\course_viewed`,
		Component: "core",
	}

	ack := func(ctx context.Context) error {
		c.acks.Add(1)
		return nil
	}

	nack := func(ctx context.Context) error {
		c.nacks.Add(1)
		return nil
	}

	return NewEnvelope(fmt.Sprintf("msg-%d", eventID), event, ack, nack)
}

func batchOf(n int) interface{} {
	return mock.MatchedBy(func(events []*domain.ActivityEvent) bool {
		return len(events) == n
	})
}

func TestBatchWriter_Start_BatchSizeThreshold(t *testing.T) {
	mockRepo := new(MockEventRepository)
	counter := &ackCounter{}

	writer := NewBatchWriter(mockRepo, BatchWriterConfig{
		MaxBatchSize: 3,
		FlushTimeout: 10 * time.Second,
	}, zap.NewNop())

	mockRepo.On("InsertBatch", mock.Anything, batchOf(3)).Return(3, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *Envelope, 5)
	go writer.Start(ctx, in)

	// Send 3 envelopes to trigger batch size threshold
	in <- counter.envelope(1)
	in <- counter.envelope(2)
	in <- counter.envelope(3)

	assert.Eventually(t, func() bool { return counter.acks.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), counter.nacks.Load())
	mockRepo.AssertExpectations(t)
}

func TestBatchWriter_Start_TimeoutFlush(t *testing.T) {
	mockRepo := new(MockEventRepository)
	counter := &ackCounter{}

	writer := NewBatchWriter(mockRepo, BatchWriterConfig{
		MaxBatchSize: 10,
		FlushTimeout: 50 * time.Millisecond,
	}, zap.NewNop())

	mockRepo.On("InsertBatch", mock.Anything, batchOf(2)).Return(2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *Envelope, 5)
	go writer.Start(ctx, in)

	// Send 2 envelopes (less than max batch size)
	in <- counter.envelope(1)
	in <- counter.envelope(2)

	assert.Eventually(t, func() bool { return counter.acks.Load() == 2 }, time.Second, 5*time.Millisecond)
	mockRepo.AssertExpectations(t)
}

func TestBatchWriter_Start_InsertFailure(t *testing.T) {
	mockRepo := new(MockEventRepository)
	counter := &ackCounter{}

	writer := NewBatchWriter(mockRepo, BatchWriterConfig{
		MaxBatchSize: 2,
		FlushTimeout: 10 * time.Second,
	}, zap.NewNop())

	insertErr := errors.New("database connection error")
	mockRepo.On("InsertBatch", mock.Anything, mock.Anything).Return(0, insertErr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *Envelope, 5)
	go writer.Start(ctx, in)

	in <- counter.envelope(1)
	in <- counter.envelope(2)

	// Failed batches stay in the queue for redelivery
	assert.Eventually(t, func() bool { return counter.nacks.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), counter.acks.Load())
	mockRepo.AssertExpectations(t)
}

func TestBatchWriter_Start_PartialInsert(t *testing.T) {
	mockRepo := new(MockEventRepository)
	counter := &ackCounter{}

	writer := NewBatchWriter(mockRepo, BatchWriterConfig{
		MaxBatchSize: 3,
		FlushTimeout: 10 * time.Second,
	}, zap.NewNop())

	// Repository inserts only 2 out of 3 events
	mockRepo.On("InsertBatch", mock.Anything, batchOf(3)).Return(2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *Envelope, 5)
	go writer.Start(ctx, in)

	in <- counter.envelope(1)
	in <- counter.envelope(2)
	in <- counter.envelope(3)

	assert.Eventually(t, func() bool { return counter.nacks.Load() == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), counter.acks.Load())
	mockRepo.AssertExpectations(t)
}

func TestBatchWriter_Start_GracefulShutdown(t *testing.T) {
	mockRepo := new(MockEventRepository)
	counter := &ackCounter{}

	writer := NewBatchWriter(mockRepo, BatchWriterConfig{
		MaxBatchSize: 10,
		FlushTimeout: 10 * time.Second,
	}, zap.NewNop())

	// The final flush must not inherit the cancelled context
	mockRepo.On("InsertBatch", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), batchOf(2)).Return(2, nil)

	ctx, cancel := context.WithCancel(context.Background())

	in := make(chan *Envelope, 5)
	done := make(chan bool)

	go func() {
		writer.Start(ctx, in)
		done <- true
	}()

	in <- counter.envelope(1)
	in <- counter.envelope(2)

	// Give time for messages to be received
	time.Sleep(10 * time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Graceful shutdown took too long")
	}

	assert.Equal(t, int32(2), counter.acks.Load())
	mockRepo.AssertExpectations(t)
}

func TestBatchWriter_Start_InputChannelClosed(t *testing.T) {
	mockRepo := new(MockEventRepository)
	counter := &ackCounter{}

	writer := NewBatchWriter(mockRepo, BatchWriterConfig{
		MaxBatchSize: 10,
		FlushTimeout: 10 * time.Second,
	}, zap.NewNop())

	mockRepo.On("InsertBatch", mock.Anything, batchOf(2)).Return(2, nil)

	in := make(chan *Envelope, 5)
	done := make(chan bool)

	go func() {
		writer.Start(context.Background(), in)
		done <- true
	}()

	in <- counter.envelope(1)
	in <- counter.envelope(2)
	close(in)

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("Shutdown took too long after input channel closed")
	}

	assert.Equal(t, int32(2), counter.acks.Load())
	mockRepo.AssertExpectations(t)
}

func TestBatchWriter_Start_EmptyBatchNotFlushed(t *testing.T) {
	mockRepo := new(MockEventRepository)

	writer := NewBatchWriter(mockRepo, BatchWriterConfig{
		MaxBatchSize: 10,
		FlushTimeout: 20 * time.Millisecond,
	}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	in := make(chan *Envelope, 5)
	done := make(chan struct{})
	go func() {
		writer.Start(ctx, in)
		close(done)
	}()

	<-done

	// InsertBatch should not be called for empty batch
	mockRepo.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
}

func TestBatchWriter_Start_MultipleBatches(t *testing.T) {
	mockRepo := new(MockEventRepository)
	counter := &ackCounter{}

	writer := NewBatchWriter(mockRepo, BatchWriterConfig{
		MaxBatchSize: 2,
		FlushTimeout: 10 * time.Second,
	}, zap.NewNop())

	// Expect two batches of 2 events each
	mockRepo.On("InsertBatch", mock.Anything, batchOf(2)).Return(2, nil).Times(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *Envelope, 10)
	go writer.Start(ctx, in)

	for id := int64(1); id <= 4; id++ {
		in <- counter.envelope(id)
	}

	assert.Eventually(t, func() bool { return counter.acks.Load() == 4 }, time.Second, 5*time.Millisecond)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNumberOfCalls(t, "InsertBatch", 2)
}

func TestBatchWriter_Start_DuplicateEventsInsertedOnce(t *testing.T) {
	mockRepo := new(MockEventRepository)
	counter := &ackCounter{}

	writer := NewBatchWriter(mockRepo, BatchWriterConfig{
		MaxBatchSize: 3,
		FlushTimeout: 10 * time.Second,
	}, zap.NewNop())

	// Redelivered copies share the event id and are stored once
	mockRepo.On("InsertBatch", mock.Anything, batchOf(2)).Return(2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *Envelope, 5)
	go writer.Start(ctx, in)

	in <- counter.envelope(1)
	in <- counter.envelope(2)
	in <- counter.envelope(1)

	// Every copy is acked, including the dropped duplicate
	assert.Eventually(t, func() bool { return counter.acks.Load() == 3 }, time.Second, 5*time.Millisecond)
	mockRepo.AssertExpectations(t)

	stats := writer.Stats()
	assert.Equal(t, uint64(1), stats.Batches)
	assert.Equal(t, uint64(2), stats.Inserted)
	assert.Equal(t, uint64(1), stats.Duplicates)
	assert.Equal(t, uint64(0), stats.Failed)
}

func TestBatchWriter_Stats_CountsFailures(t *testing.T) {
	mockRepo := new(MockEventRepository)
	counter := &ackCounter{}

	writer := NewBatchWriter(mockRepo, BatchWriterConfig{
		MaxBatchSize: 2,
		FlushTimeout: 10 * time.Second,
	}, zap.NewNop())

	mockRepo.On("InsertBatch", mock.Anything, mock.Anything).Return(0, errors.New("clickhouse unavailable"))

	writer.processBatch(context.Background(), []*Envelope{counter.envelope(1), counter.envelope(2)})

	assert.Equal(t, int32(2), counter.nacks.Load())
	assert.Equal(t, BatchStats{Batches: 1, Failed: 2}, writer.Stats())
}

func TestDistinctEvents(t *testing.T) {
	counter := &ackCounter{}
	envelopes := []*Envelope{counter.envelope(3), counter.envelope(1), counter.envelope(3), counter.envelope(2)}

	events := distinctEvents(envelopes)

	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.EventID
	}
	assert.Equal(t, []int64{3, 1, 2}, ids)
}
