// Package models defines the persisted data structures for the CenterBack
// detection backend.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// QueueStatus represents the lifecycle state of an ingestion message.
type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusDone       QueueStatus = "done"
	QueueStatusFailed     QueueStatus = "failed"
	QueueStatusDeadLetter QueueStatus = "dead_letter"
)

// AlertStatus represents the triage state of an alert.
type AlertStatus string

const (
	AlertStatusNew           AlertStatus = "new"
	AlertStatusTriaged       AlertStatus = "triaged"
	AlertStatusInvestigating AlertStatus = "investigating"
	AlertStatusResolved      AlertStatus = "resolved"
	AlertStatusFalsePositive AlertStatus = "false_positive"
)

// AlertSeverity is derived from classification confidence.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// OpenAlertStatuses are the statuses an alert can hold while still being
// merged into by new matching threats.
var OpenAlertStatuses = []AlertStatus{
	AlertStatusNew,
	AlertStatusTriaged,
	AlertStatusInvestigating,
}

// FlowPayload is the structured payload of one ingestion message. It is
// validated at the queue boundary so the worker never sees a malformed shape.
type FlowPayload struct {
	FlowID        string         `json:"flow_id,omitempty"`
	Source        string         `json:"source"`
	SourceIP      string         `json:"source_ip"`
	DestinationIP string         `json:"destination_ip"`
	Features      []float64      `json:"features"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// IngestionMessage is one queued flow awaiting classification. Rows are
// mutated only by the pipeline worker (or an explicit operator retry) and
// are never deleted, so terminal states remain inspectable.
type IngestionMessage struct {
	ID             surrealmodels.RecordID `json:"id"`
	Source         string                 `json:"source"`
	Payload        FlowPayload            `json:"payload"`
	Status         QueueStatus            `json:"status"`
	Attempts       int                    `json:"attempts"`
	IdempotencyKey string                 `json:"idempotency_key"`
	LastError      *string                `json:"last_error,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// ClassificationEvent is the immutable record of one classification outcome.
// MessageID and FlowID point back to the ingestion message the flow arrived
// on, when it went through the queue.
type ClassificationEvent struct {
	ID            surrealmodels.RecordID `json:"id"`
	Source        string                 `json:"source"`
	SourceIP      string                 `json:"source_ip"`
	DestinationIP string                 `json:"destination_ip"`
	MessageID     *string                `json:"message_id,omitempty"`
	FlowID        *string                `json:"flow_id,omitempty"`
	ModelVersion  *string                `json:"model_version,omitempty"`
	Prediction    string                 `json:"prediction"`
	Confidence    float64                `json:"confidence"`
	IsThreat      bool                   `json:"is_threat"`
	Features      []float64              `json:"features,omitempty"`
	Metadata      map[string]any         `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// Alert is the deduplicated, mutable view of an ongoing incident. At most
// one open alert exists per dedup key within the dedup window.
type Alert struct {
	ID            surrealmodels.RecordID `json:"id"`
	EventID       *string                `json:"event_id,omitempty"`
	DedupKey      string                 `json:"dedup_key"`
	Type          string                 `json:"type"`
	Severity      AlertSeverity          `json:"severity"`
	SourceIP      string                 `json:"source_ip"`
	DestinationIP string                 `json:"destination_ip"`
	Confidence    float64                `json:"confidence"`
	Status        AlertStatus            `json:"status"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// ModelEvaluationEvent pairs a production prediction with a canary
// prediction for the same input.
type ModelEvaluationEvent struct {
	ID                     surrealmodels.RecordID `json:"id"`
	Source                 string                 `json:"source"`
	ProductionModelVersion *string                `json:"production_model_version,omitempty"`
	CanaryModelVersion     *string                `json:"canary_model_version,omitempty"`
	ProductionPrediction   string                 `json:"production_prediction"`
	CanaryPrediction       string                 `json:"canary_prediction"`
	ProductionConfidence   float64                `json:"production_confidence"`
	CanaryConfidence       float64                `json:"canary_confidence"`
	Diverged               bool                   `json:"diverged"`
	CreatedAt              time.Time              `json:"created_at"`
}

// AuditLog is one write-once audit trail entry.
type AuditLog struct {
	ID         surrealmodels.RecordID `json:"id"`
	Actor      *string                `json:"actor,omitempty"`
	Action     string                 `json:"action"`
	TargetType string                 `json:"target_type"`
	TargetID   *string                `json:"target_id,omitempty"`
	Details    map[string]any         `json:"details,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ModelVersion is a registered classifier artifact.
type ModelVersion struct {
	ID        surrealmodels.RecordID `json:"id"`
	Version   string                 `json:"version"`
	Path      string                 `json:"path"`
	Accuracy  *float64               `json:"accuracy,omitempty"`
	Status    string                 `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// ModelVersion statuses.
const (
	ModelStatusActive  = "active"
	ModelStatusRetired = "retired"
)
