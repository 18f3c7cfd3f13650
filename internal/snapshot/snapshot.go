package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// ErrCacheMiss is returned by a Cache holding no usable snapshot
var ErrCacheMiss = errors.New("snapshot cache miss")

// Snapshot is an immutable dataset loaded at a point in time
type Snapshot struct {
	ID       uuid.UUID       `json:"id"`
	LoadedAt time.Time       `json:"loaded_at"`
	Dataset  *domain.Dataset `json:"dataset"`
}

// New wraps ds in a snapshot with a fresh id
func New(ds *domain.Dataset, loadedAt time.Time) *Snapshot {
	return &Snapshot{
		ID:       uuid.New(),
		LoadedAt: loadedAt.UTC(),
		Dataset:  ds,
	}
}

// Cache stores at most one current snapshot
type Cache interface {
	// Get returns the cached snapshot or ErrCacheMiss
	Get(ctx context.Context) (*Snapshot, error)

	// Set replaces the cached snapshot
	Set(ctx context.Context, s *Snapshot) error

	// Invalidate drops the cached snapshot
	Invalidate(ctx context.Context) error
}
