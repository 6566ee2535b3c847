package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/emberwatch/firesync/internal/adapter/firms"
	"github.com/emberwatch/firesync/internal/adapter/httpapi"
	kafkaadapter "github.com/emberwatch/firesync/internal/adapter/kafka"
	"github.com/emberwatch/firesync/internal/config"
	"github.com/emberwatch/firesync/internal/match"
	"github.com/emberwatch/firesync/internal/observability"
	"github.com/emberwatch/firesync/internal/pipeline"
	"github.com/emberwatch/firesync/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("database connect failed", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Init(ctx); err != nil {
		logger.Error("schema init failed", "error", err)
		os.Exit(1)
	}

	client := firms.NewClient(cfg.FirmsMapKey, cfg.FirmsBaseURL, cfg.FetchTimeout, logger)
	matcher := match.New(logger)

	// Alert publishing is feature-flagged via KAFKA_BROKERS.
	var alerts pipeline.AlertPublisher
	var publisher *kafkaadapter.Publisher
	if cfg.AlertsEnabled() {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		alerts = publisher
		logger.Info("fire alerts enabled", "topic", cfg.KafkaAlertTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("fire alerts disabled")
	}

	p := pipeline.New(client, st, matcher, alerts, cfg.AreaBBox, cfg.RecencyDays, logger, metrics)

	srv := httpapi.NewServer(cfg.HTTPAddr, st, p, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start periodic sync.
	go func() {
		if err := p.RunPeriodic(ctx, cfg.SyncInterval); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
