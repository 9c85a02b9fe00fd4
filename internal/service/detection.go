package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/centerback/centerback-go/internal/classifier"
	"github.com/centerback/centerback-go/internal/config"
	"github.com/centerback/centerback-go/internal/db"
	"github.com/centerback/centerback-go/internal/metrics"
	"github.com/centerback/centerback-go/internal/models"
)

// InvalidTransitionError rejects an alert status change the state machine
// does not allow.
type InvalidTransitionError struct {
	From models.AlertStatus
	To   models.AlertStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid alert transition from %q to %q", e.From, e.To)
}

// allowedTransitions is the alert triage state machine. Resolved and
// false-positive alerts re-open only through triaged.
var allowedTransitions = map[models.AlertStatus][]models.AlertStatus{
	models.AlertStatusNew:           {models.AlertStatusTriaged, models.AlertStatusInvestigating, models.AlertStatusResolved, models.AlertStatusFalsePositive},
	models.AlertStatusTriaged:       {models.AlertStatusInvestigating, models.AlertStatusResolved, models.AlertStatusFalsePositive},
	models.AlertStatusInvestigating: {models.AlertStatusResolved, models.AlertStatusFalsePositive},
	models.AlertStatusResolved:      {models.AlertStatusTriaged},
	models.AlertStatusFalsePositive: {models.AlertStatusTriaged},
}

func transitionAllowed(from, to models.AlertStatus) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// severityFor maps classification confidence to alert severity.
func severityFor(confidence float64) models.AlertSeverity {
	switch {
	case confidence >= 0.95:
		return models.SeverityCritical
	case confidence >= 0.90:
		return models.SeverityHigh
	case confidence >= 0.80:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// ClassificationInput is one classification outcome handed to the engine.
type ClassificationInput struct {
	Source        string
	SourceIP      string
	DestinationIP string
	// MessageID ties the event to its ingestion message; the store settles
	// that message in the same transaction as the event insert.
	MessageID  *string
	FlowID     *string
	Prediction classifier.Prediction
	Features   []float64
	Metadata   map[string]any
}

// DetectionService persists classification events, derives deduplicated
// alerts and drives canary shadow evaluation and notifications.
type DetectionService struct {
	store      DetectionStore
	canary     *CanarySampler
	dispatcher *Dispatcher
	audit      *Audit
	collector  *metrics.Collector
	cfg        config.Config
	logger     *slog.Logger
}

// NewDetectionService wires the detection engine.
func NewDetectionService(store DetectionStore, canary *CanarySampler, dispatcher *Dispatcher, audit *Audit, collector *metrics.Collector, cfg config.Config, logger *slog.Logger) *DetectionService {
	return &DetectionService{
		store:      store,
		canary:     canary,
		dispatcher: dispatcher,
		audit:      audit,
		collector:  collector,
		cfg:        cfg,
		logger:     logger,
	}
}

// RecordClassification persists the event, shadow-evaluates a sample of
// traffic, and derives an alert when the prediction is a threat. The
// returned alert is nil for benign traffic.
func (s *DetectionService) RecordClassification(ctx context.Context, in ClassificationInput) (*models.ClassificationEvent, *models.Alert, error) {
	start := time.Now()
	defer func() {
		s.collector.RecordTiming(metrics.OpDetection, time.Since(start))
	}()

	var modelVersion *string
	if in.Prediction.ModelVersion != "" {
		modelVersion = &in.Prediction.ModelVersion
	}

	event, err := s.store.CreateClassificationEvent(ctx, db.EventInput{
		Source:        in.Source,
		SourceIP:      in.SourceIP,
		DestinationIP: in.DestinationIP,
		MessageID:     in.MessageID,
		FlowID:        in.FlowID,
		ModelVersion:  modelVersion,
		Prediction:    in.Prediction.Label,
		Confidence:    in.Prediction.Confidence,
		IsThreat:      in.Prediction.IsThreat,
		Features:      in.Features,
		Metadata:      in.Metadata,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to persist classification event: %w", err)
	}

	if len(in.Features) > 0 && s.canary != nil && s.canary.ShouldSample() {
		s.shadowEvaluate(ctx, in)
	}

	if !in.Prediction.IsThreat {
		return event, nil, nil
	}

	alert, err := s.upsertAlert(ctx, event, in)
	if err != nil {
		return nil, nil, err
	}
	return event, alert, nil
}

// shadowEvaluate runs the canary model and records the divergence outcome.
// Evaluation errors are logged only; they never affect the production path.
func (s *DetectionService) shadowEvaluate(ctx context.Context, in ClassificationInput) {
	canaryPred, err := s.canary.Evaluate(in.Features)
	if err != nil {
		s.logger.Error("canary evaluation failed", "source", in.Source, "error", err)
		return
	}
	if canaryPred == nil {
		return
	}

	diverged := canaryPred.Label != in.Prediction.Label
	metrics.CanaryEvaluations.WithLabelValues(fmt.Sprintf("%t", diverged)).Inc()

	var prodVersion, canaryVersion *string
	if in.Prediction.ModelVersion != "" {
		prodVersion = &in.Prediction.ModelVersion
	}
	if canaryPred.ModelVersion != "" {
		canaryVersion = &canaryPred.ModelVersion
	}

	_, err = s.store.CreateEvaluationEvent(ctx, db.EvaluationInput{
		Source:                 in.Source,
		ProductionModelVersion: prodVersion,
		CanaryModelVersion:     canaryVersion,
		ProductionPrediction:   in.Prediction.Label,
		CanaryPrediction:       canaryPred.Label,
		ProductionConfidence:   in.Prediction.Confidence,
		CanaryConfidence:       canaryPred.Confidence,
		Diverged:               diverged,
	})
	if err != nil {
		s.logger.Error("failed to persist evaluation event", "source", in.Source, "error", err)
	}
}

// upsertAlert merges the threat into an open alert with the same dedup key,
// or creates a new one and fires notifications.
func (s *DetectionService) upsertAlert(ctx context.Context, event *models.ClassificationEvent, in ClassificationInput) (*models.Alert, error) {
	dedupKey := fmt.Sprintf("%s:%s:%s", in.Prediction.Label, in.SourceIP, in.DestinationIP)
	severity := severityFor(in.Prediction.Confidence)
	cutoff := time.Now().UTC().Add(-s.cfg.DedupWindow)

	open, err := s.store.FindOpenAlert(ctx, dedupKey, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to look up open alert: %w", err)
	}

	if open != nil {
		raise := in.Prediction.Confidence > open.Confidence
		alert, err := s.store.MergeAlert(ctx, models.MustRecordIDString(open.ID), in.Prediction.Confidence, severity, raise)
		if err != nil {
			return nil, fmt.Errorf("failed to merge alert: %w", err)
		}
		metrics.AlertsMerged.Inc()
		s.logger.Debug("threat merged into open alert",
			"alert_id", models.MustRecordIDString(alert.ID),
			"dedup_key", dedupKey,
			"confidence_raised", raise)
		return alert, nil
	}

	eventID := models.MustRecordIDString(event.ID)
	alert, err := s.store.CreateAlert(ctx, db.AlertInput{
		EventID:       &eventID,
		DedupKey:      dedupKey,
		Type:          in.Prediction.Label,
		Severity:      severity,
		SourceIP:      in.SourceIP,
		DestinationIP: in.DestinationIP,
		Confidence:    in.Prediction.Confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	metrics.AlertsCreated.WithLabelValues(string(severity)).Inc()

	alertID := models.MustRecordIDString(alert.ID)
	s.logger.Info("alert created",
		"alert_id", alertID,
		"type", alert.Type,
		"severity", alert.Severity,
		"source_ip", alert.SourceIP)

	if s.dispatcher != nil {
		s.dispatcher.NotifyAlert(AlertSummary{
			AlertID:       alertID,
			Type:          alert.Type,
			Severity:      alert.Severity,
			SourceIP:      alert.SourceIP,
			DestinationIP: alert.DestinationIP,
			Confidence:    alert.Confidence,
			CreatedAt:     alert.CreatedAt,
		})
	}

	return alert, nil
}

// UpdateAlertStatus applies one operator-driven triage transition. A
// same-state change is a no-op success.
func (s *DetectionService) UpdateAlertStatus(ctx context.Context, id string, target models.AlertStatus, actor *string) (*models.Alert, error) {
	alert, err := s.store.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	if alert.Status == target {
		return alert, nil
	}
	if !transitionAllowed(alert.Status, target) {
		return nil, &InvalidTransitionError{From: alert.Status, To: target}
	}

	updated, err := s.store.UpdateAlertStatus(ctx, id, target)
	if err != nil {
		return nil, fmt.Errorf("failed to update alert status: %w", err)
	}

	s.audit.Log(ctx, "alert.status_change", "alert", &id, actor, map[string]any{
		"from": alert.Status,
		"to":   target,
	})
	s.logger.Info("alert status changed",
		"alert_id", id,
		"from", alert.Status,
		"to", target)

	return updated, nil
}

// GetAlert returns one alert by id.
func (s *DetectionService) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	return s.store.GetAlert(ctx, id)
}

// RecentAlerts lists the newest alerts, optionally filtered by severity.
func (s *DetectionService) RecentAlerts(ctx context.Context, limit int, severity *models.AlertSeverity) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.RecentAlerts(ctx, limit, severity)
}
