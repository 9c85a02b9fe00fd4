// Package server exposes the HTTP API of the detection backend: ingestion,
// alert triage, dashboard statistics, model management and the live alert
// stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/centerback/centerback-go/internal/metrics"
	"github.com/centerback/centerback-go/internal/service"
)

// Server wires the HTTP API over the service layer.
type Server struct {
	ingest     *service.IngestService
	detection  *service.DetectionService
	drift      *service.DriftDetector
	canary     *service.CanarySampler
	worker     *service.Worker
	dispatcher *service.Dispatcher
	registry   *service.ModelRegistry
	audit      *service.Audit
	collector  *metrics.Collector
	hub        *Hub
	logger     *slog.Logger

	http *http.Server
}

// Deps carries the constructed services into the server.
type Deps struct {
	Ingest     *service.IngestService
	Detection  *service.DetectionService
	Drift      *service.DriftDetector
	Canary     *service.CanarySampler
	Worker     *service.Worker
	Dispatcher *service.Dispatcher
	Registry   *service.ModelRegistry
	Audit      *service.Audit
	Collector  *metrics.Collector
	Hub        *Hub
}

// New creates the server listening on addr.
func New(addr string, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		ingest:     deps.Ingest,
		detection:  deps.Detection,
		drift:      deps.Drift,
		canary:     deps.Canary,
		worker:     deps.Worker,
		dispatcher: deps.Dispatcher,
		registry:   deps.Registry,
		audit:      deps.Audit,
		collector:  deps.Collector,
		hub:        deps.Hub,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest/flows", s.handleIngestFlows)
		r.Get("/ingest/queue", s.handleQueueSummary)
		r.Get("/ingest/dlq", s.handleDeadLetters)
		r.Post("/ingest/retry/{id}", s.handleRetry)

		r.Get("/alerts", s.handleListAlerts)
		r.Get("/alerts/{id}", s.handleGetAlert)
		r.Patch("/alerts/{id}/status", s.handleAlertStatus)

		r.Get("/stats/dashboard", s.handleDashboard)
		r.Get("/stats/attack-distribution", s.handleAttackDistribution)
		r.Get("/stats/timeline", s.handleTimeline)

		r.Get("/model/drift", s.handleDrift)
		r.Get("/model/canary", s.handleCanaryStatus)
		r.Post("/model/canary", s.handleCanaryEnable)
		r.Delete("/model/canary", s.handleCanaryDisable)

		r.Get("/model/versions", s.handleListVersions)
		r.Post("/model/versions", s.handleRegisterVersion)
		r.Post("/model/versions/{version}/activate", s.handleActivateVersion)

		r.Get("/health", s.handleHealth)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/alerts", s.hub.ServeHTTP)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Run starts serving and blocks until the listener closes.
func (s *Server) Run() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and disconnects stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.http.Shutdown(ctx)
}
