package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/config"
	"github.com/maysaraadmin/moodle-analytics/internal/domain"
)

// OpenRedis connects to the Redis instance described by cfg
func OpenRedis(ctx context.Context, cfg config.Redis, log *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		log.Error("Failed to ping Redis", zap.String("addr", cfg.Addr), zap.Error(err))
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	log.Info("Redis connection established successfully", zap.String("addr", cfg.Addr))
	return client, nil
}

// RedisCache stores the snapshot as JSON under a single key with a TTL, so
// every API replica serves the same snapshot
type RedisCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisCache creates a cache storing under "<keyPrefix>:snapshot"
func NewRedisCache(client *redis.Client, keyPrefix string, ttl time.Duration, log *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		key:    keyPrefix + ":snapshot",
		ttl:    ttl,
		log:    log,
	}
}

func (c *RedisCache) Get(ctx context.Context) (*Snapshot, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot from Redis: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		c.log.Warn("Discarding undecodable cached snapshot", zap.String("key", c.key), zap.Error(err))
		return nil, ErrCacheMiss
	}
	return &s, nil
}

func (c *RedisCache) Set(ctx context.Context, s *Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot to Redis: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	c.log.Debug("Snapshot cached in Redis",
		zap.String("key", c.key),
		zap.String("snapshot_id", s.ID.String()),
		zap.Int("bytes", len(data)))
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate snapshot in Redis: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}
