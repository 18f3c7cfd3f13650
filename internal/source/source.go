// Package source builds the dataset reader, event store and snapshot cache
// selected by configuration.
package source

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/config"
	"github.com/maysaraadmin/moodle-analytics/internal/repository"
	"github.com/maysaraadmin/moodle-analytics/internal/repository/clickhouse"
	"github.com/maysaraadmin/moodle-analytics/internal/repository/csvfile"
	"github.com/maysaraadmin/moodle-analytics/internal/repository/moodle"
	"github.com/maysaraadmin/moodle-analytics/internal/snapshot"
)

// Pinger is a dependency that can report whether it is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Source holds every opened backend. Events is nil unless ClickHouse is enabled.
type Source struct {
	Reader repository.DatasetReader
	Events *clickhouse.Repository
	Cache  snapshot.Cache

	pingers map[string]Pinger
	closers []func() error
}

// Open connects the backends named by cfg. On error everything opened so
// far is closed again.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Source, error) {
	s := &Source{pingers: make(map[string]Pinger)}
	if err := s.open(ctx, cfg, log); err != nil {
		if closeErr := s.Close(); closeErr != nil {
			log.Warn("Failed to close partially opened source", zap.Error(closeErr))
		}
		return nil, err
	}

	log.Info("Data source ready",
		zap.String("kind", cfg.Source.Kind),
		zap.Bool("clickhouse", s.Events != nil),
		zap.Bool("redis", cfg.Redis.Addr != ""))

	return s, nil
}

func (s *Source) open(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.ClickHouse.Enabled {
		client, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
		if err != nil {
			return fmt.Errorf("failed to create ClickHouse client: %w", err)
		}
		s.Events = clickhouse.NewRepository(client, log)
		s.closers = append(s.closers, s.Events.Close)
		s.pingers["clickhouse"] = s.Events
	}

	switch cfg.Source.Kind {
	case config.SourceCSV:
		s.Reader = csvfile.NewReader(cfg.Source.CSVDir, log)
	case config.SourceMoodle, config.SourceComposite:
		reader, err := moodle.Open(ctx, cfg.Moodle, log)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, reader.Close)
		s.pingers["moodle"] = reader
		s.Reader = reader

		if cfg.Source.Kind == config.SourceComposite {
			if s.Events == nil {
				return fmt.Errorf("source %q requires ClickHouse", cfg.Source.Kind)
			}
			s.Reader = repository.NewCompositeReader(reader, s.Events, log)
		}
	default:
		return fmt.Errorf("unsupported source kind %q", cfg.Source.Kind)
	}

	if cfg.Redis.Addr == "" {
		s.Cache = snapshot.NewMemoryCache(cfg.Redis.TTL)
		log.Info("Using in-memory snapshot cache", zap.Duration("ttl", cfg.Redis.TTL))
	} else {
		client, err := snapshot.OpenRedis(ctx, cfg.Redis, log)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, client.Close)
		s.pingers["redis"] = redisPinger{client: client}
		s.Cache = snapshot.NewRedisCache(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL, log)
	}

	return nil
}

// Pingers returns the health-checkable backends keyed by name
func (s *Source) Pingers() map[string]Pinger {
	out := make(map[string]Pinger, len(s.pingers))
	for name, p := range s.pingers {
		out[name] = p
	}
	return out
}

// Close releases every backend in reverse opening order
func (s *Source) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
