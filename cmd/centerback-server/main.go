// Package main runs the CenterBack detection backend: the HTTP API, the
// ingestion pipeline worker and the live alert stream.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/centerback/centerback-go/internal/classifier"
	"github.com/centerback/centerback-go/internal/config"
	"github.com/centerback/centerback-go/internal/db"
	"github.com/centerback/centerback-go/internal/metrics"
	"github.com/centerback/centerback-go/internal/server"
	"github.com/centerback/centerback-go/internal/service"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()
	slog.SetDefault(logger)

	logger.Info("starting centerback-server", "addr", cfg.ListenAddr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	client, err := db.NewClient(ctx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		cancel()
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := client.InitSchema(ctx); err != nil {
		cancel()
		logger.Error("failed to initialize schema", "error", err)
		os.Exit(1)
	}

	if *wipeDB || os.Getenv("CENTERBACK_WIPE_DB") == "true" {
		if err := client.ResetData(ctx); err != nil {
			cancel()
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
	}
	cancel()

	defer func() {
		if err := client.Close(context.Background()); err != nil {
			logger.Error("failed to close database connection", "error", err)
		}
	}()

	cls, err := buildClassifier(cfg)
	if err != nil {
		logger.Error("failed to build classifier", "error", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector()
	audit := service.NewAudit(client, logger)
	hub := server.NewHub(logger)
	dispatcher := service.NewDispatcher(cfg, hub, collector, logger)
	defer dispatcher.Close()

	canary := service.NewCanarySampler(cfg.FeatureWidth, logger)
	if cfg.CanaryEnabled && cfg.CanaryModelPath != "" {
		if err := canary.Enable(cfg.CanaryModelPath, cfg.CanaryTrafficPercent); err != nil {
			logger.Error("failed to enable canary from config", "error", err)
			os.Exit(1)
		}
	}

	detection := service.NewDetectionService(client, canary, dispatcher, audit, collector, cfg, logger)
	ingest := service.NewIngestService(client, audit, collector, cfg, logger)
	drift := service.NewDriftDetector(client, cfg)
	registry := service.NewModelRegistry(client, audit, logger)
	worker := service.NewWorker(client, cls, detection, collector, cfg, logger)

	if cfg.PipelineEnabled {
		if err := worker.Start(); err != nil {
			logger.Error("failed to start pipeline worker", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("pipeline worker disabled by configuration")
	}

	srv := server.New(cfg.ListenAddr, server.Deps{
		Ingest:     ingest,
		Detection:  detection,
		Drift:      drift,
		Canary:     canary,
		Worker:     worker,
		Dispatcher: dispatcher,
		Registry:   registry,
		Audit:      audit,
		Collector:  collector,
		Hub:        hub,
	}, logger)

	go func() {
		if err := srv.Run(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the worker first so the in-flight batch drains before the store
	// connection goes away.
	if err := worker.Stop(shutdownCtx); err != nil {
		logger.Error("worker shutdown failed", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// buildClassifier picks a remote inference endpoint when configured, falling
// back to a local artifact.
func buildClassifier(cfg config.Config) (classifier.Classifier, error) {
	if cfg.InferenceURL != "" {
		return classifier.NewHTTPClassifier(cfg.InferenceURL, 0), nil
	}
	return classifier.NewArtifactClassifier(cfg.ModelArtifact)
}
