package snapshot

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/repository"
)

// Manager serves the current snapshot, loading it from the source on a miss
type Manager struct {
	source repository.DatasetReader
	cache  Cache
	log    *zap.Logger

	// loads are serialized so concurrent misses hit the source once
	mu  sync.Mutex
	now func() time.Time
}

// NewManager creates a snapshot manager
func NewManager(source repository.DatasetReader, cache Cache, log *zap.Logger) *Manager {
	return &Manager{
		source: source,
		cache:  cache,
		log:    log,
		now:    time.Now,
	}
}

// Get returns the cached snapshot, loading a new one on a miss.
// Cache failures are logged and fall through to the source.
func (m *Manager) Get(ctx context.Context) (*Snapshot, error) {
	if s, ok := m.cached(ctx); ok {
		return s, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.cached(ctx); ok {
		return s, nil
	}
	return m.load(ctx)
}

// Refresh invalidates the cache and loads a new snapshot
func (m *Manager) Refresh(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.cache.Invalidate(ctx); err != nil {
		m.log.Error("Failed to invalidate snapshot cache", zap.Error(err))
		return nil, err
	}
	return m.load(ctx)
}

func (m *Manager) cached(ctx context.Context) (*Snapshot, bool) {
	s, err := m.cache.Get(ctx)
	if err == nil {
		return s, true
	}
	if !errors.Is(err, ErrCacheMiss) {
		m.log.Warn("Snapshot cache unavailable, loading from source", zap.Error(err))
	}
	return nil, false
}

func (m *Manager) load(ctx context.Context) (*Snapshot, error) {
	start := m.now()
	ds, err := m.source.Load(ctx)
	if err != nil {
		m.log.Error("Failed to load snapshot", zap.Error(err))
		return nil, err
	}

	s := New(ds, m.now())
	if err := m.cache.Set(ctx, s); err != nil {
		m.log.Warn("Failed to cache snapshot", zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("snapshot_id", s.ID.String()),
		zap.Duration("duration", m.now().Sub(start)),
	}
	for table, n := range ds.Counts() {
		fields = append(fields, zap.Int(table, n))
	}
	m.log.Info("Snapshot loaded", fields...)
	return s, nil
}
