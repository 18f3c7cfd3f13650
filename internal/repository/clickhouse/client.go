package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/maysaraadmin/moodle-analytics/internal/config"
)

const (
	clientProduct = "moodle-analytics"
	dialTimeout   = 5 * time.Second

	// LoadEvents scans the whole activity table
	maxExecutionSeconds = 120
)

// Client owns the connection to the activity event store
type Client struct {
	connection driver.Conn
	log        *zap.Logger
}

// connOptions maps the ClickHouse section onto driver options
func connOptions(cfg *config.ClickHouse) *clickhouse.Options {
	opts := &clickhouse.Options{
		Addr: []string{net.JoinHostPort(cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: clientProduct, Version: "1"}},
		},
		Settings: clickhouse.Settings{
			"max_execution_time": maxExecutionSeconds,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:      dialTimeout,
		MaxOpenConns:     cfg.MaxOpenConns,
		MaxIdleConns:     cfg.MaxIdleConns,
		ConnMaxLifetime:  time.Duration(cfg.ConnMaxLifetimeSec) * time.Second,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		BlockBufferSize:  10,
	}
	if cfg.UseTLS {
		opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewClient opens and pings the event store
func NewClient(ctx context.Context, cfg *config.ClickHouse, log *zap.Logger) (*Client, error) {
	log.Info("Connecting to ClickHouse",
		zap.String("host", cfg.Host),
		zap.String("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.Bool("useTLS", cfg.UseTLS))

	connection, err := clickhouse.Open(connOptions(cfg))
	if err != nil {
		log.Error("Failed to connect to ClickHouse", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := connection.Ping(ctx); err != nil {
		_ = connection.Close()
		log.Error("Failed to ping ClickHouse", zap.Error(err))
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Info("ClickHouse connection established")
	return &Client{connection: connection, log: log}, nil
}

func (c *Client) Conn() driver.Conn {
	return c.connection
}

func (c *Client) Close() error {
	if err := c.connection.Close(); err != nil {
		c.log.Error("Error closing ClickHouse connection", zap.Error(err))
		return err
	}
	c.log.Info("ClickHouse connection closed")
	return nil
}
