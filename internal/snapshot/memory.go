package snapshot

import (
	"context"
	"sync"
	"time"
)

// MemoryCache keeps the snapshot in process. A zero ttl never expires.
type MemoryCache struct {
	mu       sync.RWMutex
	snapshot *Snapshot
	storedAt time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryCache creates an in-process cache
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context) (*Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snapshot == nil {
		return nil, ErrCacheMiss
	}
	if c.ttl > 0 && c.now().Sub(c.storedAt) >= c.ttl {
		return nil, ErrCacheMiss
	}
	return c.snapshot, nil
}

func (c *MemoryCache) Set(_ context.Context, s *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = s
	c.storedAt = c.now()
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshot = nil
	return nil
}
