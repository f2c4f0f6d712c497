package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/storm-data-flood-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-data-flood-service/internal/adapter/kafka"
	"github.com/couchcryptid/storm-data-flood-service/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-data-flood-service/internal/config"
	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	"github.com/couchcryptid/storm-data-flood-service/internal/observability"
	"github.com/couchcryptid/storm-data-flood-service/internal/simulation"
	"github.com/couchcryptid/storm-data-flood-service/internal/swmm"
	"github.com/couchcryptid/storm-data-flood-service/internal/vulnerability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.TracingEnabled, os.Stdout)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	// Vulnerability labels are optional (MODEL_PATH).
	var classifier domain.Classifier
	if cfg.ModelPath != "" {
		model, err := vulnerability.Load(cfg.ModelPath)
		if err != nil {
			logger.Error("failed to load vulnerability model", "path", cfg.ModelPath, "error", err)
			os.Exit(1)
		}
		classifier = model
		metrics.ModelLoaded.Set(1)
		logger.Info("vulnerability model loaded", "version", model.Version, "clusters", model.Clusters())
	} else {
		logger.Info("vulnerability model disabled")
	}

	engine := swmm.NewCLIEngine(cfg.SWMMBinary, cfg.EngineTimeout, logger)
	if err := engine.Available(); err != nil {
		logger.Warn("swmm engine not found, simulations will fail until it is installed", "error", err)
	}

	var runner simulation.Runner = simulation.NewSimulator(engine, classifier, simulation.Options{
		NetworkPath:   cfg.NetworkPath,
		RainSeries:    cfg.RainSeries,
		WorkDir:       cfg.WorkDir,
		KeepArtifacts: cfg.KeepArtifacts,
	}, metrics, logger)
	if cfg.CacheSize > 0 {
		runner = simulation.NewCachedSimulator(runner, cfg.CacheSize, metrics)
		logger.Info("result cache enabled", "size", cfg.CacheSize)
	}

	var store simulation.RunStore
	var db *sqlite.Store
	if cfg.RunStorePath != "" {
		db, err = sqlite.Open(ctx, cfg.RunStorePath, logger)
		if err != nil {
			logger.Error("failed to open run store", "path", cfg.RunStorePath, "error", err)
			os.Exit(1)
		}
		store = db
	} else {
		logger.Info("run history disabled")
	}

	var publisher simulation.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	svc := simulation.NewService(runner, store, publisher, metrics, logger)
	srv := httpadapter.NewServer(cfg, svc, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("run store close error", "error", err)
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
