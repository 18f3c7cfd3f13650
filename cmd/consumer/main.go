package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/internal/config"
	"github.com/maysaraadmin/moodle-analytics/internal/consumer"
	"github.com/maysaraadmin/moodle-analytics/internal/logger"
	"github.com/maysaraadmin/moodle-analytics/internal/queue/sqs"
	"github.com/maysaraadmin/moodle-analytics/internal/repository/clickhouse"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment, "consumer", cfg.Service.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting consumer service",
		zap.String("environment", cfg.Service.Environment))

	if !cfg.ClickHouse.Enabled || !cfg.SQS.Enabled {
		log.Fatal("Consumer requires CLICKHOUSE_ENABLED=true and SQS_ENABLED=true")
	}

	ctx := context.Background()

	// Initialize ClickHouse client
	chClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
	if err != nil {
		log.Fatal("Failed to create ClickHouse client", zap.Error(err))
	}

	// Initialize repository
	repo := clickhouse.NewRepository(chClient, log)
	defer func() {
		if err := repo.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}()

	// Initialize schema (create tables if not exist)
	if err := repo.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}
	log.Info("Database schema initialized")

	// Initialize SQS client
	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	// Initialize consumer
	c := consumer.NewConsumer(cfg, sqsClient, repo, log)

	// Start health check endpoint
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			status, code := "ok", http.StatusOK
			if err := repo.Ping(r.Context()); err != nil {
				log.Warn("Health check failed", zap.Error(err))
				status, code = "degraded", http.StatusServiceUnavailable
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			_ = json.NewEncoder(w).Encode(struct {
				Status string              `json:"status"`
				Stats  consumer.BatchStats `json:"stats"`
			}{status, c.Stats()})
		})

		addr := ":" + cfg.Consumer.HealthCheckPort
		log.Info("Health check server starting", zap.String("address", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("Health check server error", zap.Error(err))
		}
	}()

	// Start consumer
	consumerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info("Consumer starting")

	done := make(chan error, 1)
	go func() {
		done <- c.Start(consumerCtx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info("Shutting down consumer gracefully")
		cancel()
		if err := <-done; err != nil {
			log.Error("Consumer stopped with error", zap.Error(err))
		}
	case err := <-done:
		if err != nil {
			log.Error("Consumer error", zap.Error(err))
		}
	}
	log.Info("Consumer stopped")
}
