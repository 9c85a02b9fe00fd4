package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/centerback/centerback-go/internal/db"
	"github.com/centerback/centerback-go/internal/models"
	"github.com/centerback/centerback-go/internal/service"
)

type ingestRequest struct {
	Source string               `json:"source"`
	Flows  []models.FlowPayload `json:"flows"`
}

func (s *Server) handleIngestFlows(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Flows) == 0 {
		respondError(w, http.StatusBadRequest, "flows must not be empty")
		return
	}

	result, err := s.ingest.Enqueue(r.Context(), req.Source, req.Flows)
	if err != nil {
		if errors.Is(err, service.ErrBackpressure) {
			respondError(w, http.StatusTooManyRequests, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondOK(w, result)
}

func (s *Server) handleQueueSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ingest.QueueSummary(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, summary)
}

func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	letters, err := s.ingest.DeadLetters(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, letters)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	msg, err := s.ingest.Retry(r.Context(), id, actorFrom(r))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "message not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, msg)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	var severity *models.AlertSeverity
	if raw := r.URL.Query().Get("severity"); raw != "" {
		sev := models.AlertSeverity(raw)
		switch sev {
		case models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
			severity = &sev
		default:
			respondError(w, http.StatusBadRequest, "unknown severity")
			return
		}
	}

	alerts, err := s.detection.RecentAlerts(r.Context(), queryInt(r, "limit", 50), severity)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, alerts)
}

func (s *Server) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := s.detection.GetAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "alert not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, alert)
}

func (s *Server) handleAlertStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.AlertStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	alert, err := s.detection.UpdateAlertStatus(r.Context(), chi.URLParam(r, "id"), req.Status, actorFrom(r))
	if err != nil {
		var invalid *service.InvalidTransitionError
		switch {
		case errors.Is(err, db.ErrNotFound):
			respondError(w, http.StatusNotFound, "alert not found")
		case errors.As(err, &invalid):
			respondError(w, http.StatusBadRequest, invalid.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondOK(w, alert)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.detection.DashboardStats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, stats)
}

func (s *Server) handleAttackDistribution(w http.ResponseWriter, r *http.Request) {
	shares, err := s.detection.AttackDistribution(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, shares)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.detection.TrafficTimeline(r.Context(), queryInt(r, "hours", 24))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, buckets)
}

func (s *Server) handleDrift(w http.ResponseWriter, r *http.Request) {
	report, err := s.drift.Report(r.Context(), queryInt(r, "window", 0))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, report)
}

func (s *Server) handleCanaryStatus(w http.ResponseWriter, _ *http.Request) {
	respondOK(w, s.canary.Status())
}

func (s *Server) handleCanaryEnable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModelPath      string `json:"model_path"`
		TrafficPercent int    `json:"traffic_percent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.canary.Enable(req.ModelPath, req.TrafficPercent); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.audit.Log(r.Context(), "canary.enable", "canary", nil, actorFrom(r), map[string]any{
		"model_path":      req.ModelPath,
		"traffic_percent": req.TrafficPercent,
	})
	respondOK(w, s.canary.Status())
}

func (s *Server) handleCanaryDisable(w http.ResponseWriter, r *http.Request) {
	s.canary.Disable()
	s.audit.Log(r.Context(), "canary.disable", "canary", nil, actorFrom(r), nil)
	respondOK(w, s.canary.Status())
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.registry.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, versions)
}

func (s *Server) handleRegisterVersion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Version  string   `json:"version"`
		Path     string   `json:"path"`
		Accuracy *float64 `json:"accuracy,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mv, err := s.registry.Register(r.Context(), req.Version, req.Path, req.Accuracy, actorFrom(r))
	if err != nil {
		if errors.Is(err, db.ErrDuplicateKey) {
			respondError(w, http.StatusConflict, "version already registered")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, mv)
}

func (s *Server) handleActivateVersion(w http.ResponseWriter, r *http.Request) {
	mv, err := s.registry.Activate(r.Context(), chi.URLParam(r, "version"), actorFrom(r))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			respondError(w, http.StatusNotFound, "version not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(w, mv)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	summary, err := s.ingest.QueueSummary(r.Context())
	status := map[string]any{
		"worker":        s.worker.Status(),
		"notifications": s.dispatcher.Status(),
		"canary":        s.canary.Status(),
		"metrics":       s.collector.Snapshot(),
	}
	if err != nil {
		status["database"] = "unreachable"
		writeJSON(w, http.StatusServiceUnavailable, envelope{Success: false, Data: status, Message: err.Error()})
		return
	}

	status["database"] = "ok"
	status["queue"] = summary
	respondOK(w, status)
}

// queryInt parses an integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// actorFrom reads the caller identity header set by the fronting proxy.
// Authentication itself lives outside this service.
func actorFrom(r *http.Request) *string {
	if actor := r.Header.Get("X-Actor"); actor != "" {
		return &actor
	}
	return nil
}
