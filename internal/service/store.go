// Package service provides the business logic of the detection backend:
// ingestion queueing, the pipeline worker, detection and alerting, canary
// evaluation, drift analytics and notifications.
package service

import (
	"context"
	"time"

	"github.com/centerback/centerback-go/internal/db"
	"github.com/centerback/centerback-go/internal/models"
)

// QueueStore is the persistence surface of the ingestion queue.
// Implemented by *db.Client; faked in unit tests.
type QueueStore interface {
	QueueDepth(ctx context.Context) (int, error)
	ExistingIdempotencyKeys(ctx context.Context, source string, cutoff time.Time) (map[string]struct{}, error)
	CreateMessage(ctx context.Context, source, idempotencyKey string, payload models.FlowPayload) (*models.IngestionMessage, error)
	ClaimBatch(ctx context.Context, limit, maxAttempts int) ([]models.IngestionMessage, error)
	RequeueStaleProcessing(ctx context.Context, olderThan time.Duration) (int, error)
	FailMessage(ctx context.Context, id, errText string, maxAttempts int) (*models.IngestionMessage, error)
	RetryMessage(ctx context.Context, id string) (*models.IngestionMessage, error)
	GetMessage(ctx context.Context, id string) (*models.IngestionMessage, error)
	QueueSummary(ctx context.Context) (map[models.QueueStatus]int, error)
	ListDeadLetters(ctx context.Context, limit int) ([]models.IngestionMessage, error)
}

// DetectionStore is the persistence surface of events, alerts and
// evaluation records.
type DetectionStore interface {
	CreateClassificationEvent(ctx context.Context, in db.EventInput) (*models.ClassificationEvent, error)
	CreateEvaluationEvent(ctx context.Context, in db.EvaluationInput) (*models.ModelEvaluationEvent, error)
	FindOpenAlert(ctx context.Context, dedupKey string, cutoff time.Time) (*models.Alert, error)
	CreateAlert(ctx context.Context, in db.AlertInput) (*models.Alert, error)
	MergeAlert(ctx context.Context, id string, confidence float64, severity models.AlertSeverity, raiseConfidence bool) (*models.Alert, error)
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus) (*models.Alert, error)
	RecentAlerts(ctx context.Context, limit int, severity *models.AlertSeverity) ([]models.Alert, error)
	CountOpenCritical(ctx context.Context) (int, error)
	EventCounts(ctx context.Context) (total, threats int, lastUpdated *time.Time, err error)
	ThreatDistribution(ctx context.Context) ([]db.PredictionCount, error)
	EventsSince(ctx context.Context, cutoff time.Time) ([]db.EventSample, error)
	RecentPredictions(ctx context.Context, limit int) ([]string, error)
	RecentEvaluationDivergence(ctx context.Context, limit int) ([]bool, error)
}

// AuditStore is the write-once audit trail surface.
type AuditStore interface {
	CreateAuditLog(ctx context.Context, action, targetType string, targetID, actor *string, details map[string]any) error
}

// Compile-time checks that *db.Client satisfies every store interface.
var (
	_ QueueStore     = (*db.Client)(nil)
	_ DetectionStore = (*db.Client)(nil)
	_ AuditStore     = (*db.Client)(nil)
)
