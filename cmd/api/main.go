package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/maysaraadmin/moodle-analytics/docs"
	"github.com/maysaraadmin/moodle-analytics/internal/config"
	"github.com/maysaraadmin/moodle-analytics/internal/handler"
	"github.com/maysaraadmin/moodle-analytics/internal/logger"
	"github.com/maysaraadmin/moodle-analytics/internal/queue/sqs"
	"github.com/maysaraadmin/moodle-analytics/internal/service"
	"github.com/maysaraadmin/moodle-analytics/internal/snapshot"
	"github.com/maysaraadmin/moodle-analytics/internal/source"
)

const shutdownTimeout = 15 * time.Second

// @title Moodle Analytics API
// @version 1.0
// @description Learning analytics over Moodle activity, quiz, forum and completion data
// @host localhost:8080
// @BasePath /
// @schemes http https
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment, "api", cfg.Service.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting API service",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.APIPort),
		zap.String("source", cfg.Source.Kind))

	docs.SwaggerInfo.Host = cfg.Service.Host

	ctx := context.Background()

	opts, err := cfg.Analytics.Options()
	if err != nil {
		log.Fatal("Invalid analytics options", zap.Error(err))
	}

	// Open the data source, event store and snapshot cache
	src, err := source.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open data source", zap.Error(err))
	}
	defer func(src *source.Source) {
		if err := src.Close(); err != nil {
			log.Error("Failed to close data source", zap.Error(err))
		}
	}(src)

	snapshots := snapshot.NewManager(src.Reader, src.Cache, log)
	analyticsService := service.NewAnalyticsService(snapshots, opts, log)

	// Ingestion needs both the queue and the event store
	var eventService service.EventServicer
	if src.Events != nil && cfg.SQS.Enabled {
		sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
		if err != nil {
			log.Fatal("Failed to create SQS client", zap.Error(err))
		}
		if err := src.Events.InitSchema(ctx); err != nil {
			log.Fatal("Failed to initialize schema", zap.Error(err))
		}
		eventService = service.NewEventService(sqsClient, src.Events, log)
	} else {
		log.Info("Event ingestion disabled, ClickHouse and SQS are both required")
	}

	checks := make(map[string]handler.HealthChecker)
	for name, p := range src.Pingers() {
		checks[name] = p
	}

	h := handler.NewHandler(analyticsService, eventService, checks, cfg.Service.CORSOrigins, log)

	addr := fmt.Sprintf(":%s", cfg.Service.APIPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("API server starting", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down API server gracefully")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
}
