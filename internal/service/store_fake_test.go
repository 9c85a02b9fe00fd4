package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/centerback/centerback-go/internal/db"
	"github.com/centerback/centerback-go/internal/models"
)

// fakeStore is an in-memory stand-in for the SurrealDB client, implementing
// every store interface the services consume.
type fakeStore struct {
	mu sync.Mutex

	seq      int
	messages []*models.IngestionMessage
	events   []*models.ClassificationEvent
	alerts   []*models.Alert
	evals    []*models.ModelEvaluationEvent
	audits   []string
	versions []*models.ModelVersion
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (f *fakeStore) nextID(table string) surrealmodels.RecordID {
	f.seq++
	return surrealmodels.RecordID{Table: table, ID: fmt.Sprintf("%s%d", table[:1], f.seq)}
}

func (f *fakeStore) findMessage(id string) *models.IngestionMessage {
	for _, msg := range f.messages {
		if msg.ID.ID == id {
			return msg
		}
	}
	return nil
}

func (f *fakeStore) QueueDepth(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	depth := 0
	for _, msg := range f.messages {
		switch msg.Status {
		case models.QueueStatusQueued, models.QueueStatusProcessing, models.QueueStatusFailed:
			depth++
		}
	}
	return depth, nil
}

func (f *fakeStore) ExistingIdempotencyKeys(_ context.Context, source string, cutoff time.Time) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make(map[string]struct{})
	for _, msg := range f.messages {
		if msg.Source == source && msg.CreatedAt.After(cutoff) {
			keys[msg.IdempotencyKey] = struct{}{}
		}
	}
	return keys, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, source, key string, payload models.FlowPayload) (*models.IngestionMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	msg := &models.IngestionMessage{
		ID:             f.nextID("ingestion_message"),
		Source:         source,
		Payload:        payload,
		Status:         models.QueueStatusQueued,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeStore) ClaimBatch(_ context.Context, limit, maxAttempts int) ([]models.IngestionMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var claimed []models.IngestionMessage
	for _, msg := range f.messages {
		if len(claimed) >= limit {
			break
		}
		claimable := msg.Status == models.QueueStatusQueued || msg.Status == models.QueueStatusFailed
		if claimable && msg.Attempts < maxAttempts {
			msg.Status = models.QueueStatusProcessing
			msg.Attempts++
			msg.UpdatedAt = time.Now().UTC()
			claimed = append(claimed, *msg)
		}
	}
	return claimed, nil
}

func (f *fakeStore) RequeueStaleProcessing(_ context.Context, olderThan time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	count := 0
	for _, msg := range f.messages {
		if msg.Status == models.QueueStatusProcessing && msg.UpdatedAt.Before(cutoff) {
			msg.Status = models.QueueStatusQueued
			msg.UpdatedAt = time.Now().UTC()
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) FailMessage(_ context.Context, id, errText string, maxAttempts int) (*models.IngestionMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg := f.findMessage(id)
	if msg == nil {
		return nil, db.ErrNotFound
	}
	if msg.Attempts >= maxAttempts {
		msg.Status = models.QueueStatusDeadLetter
	} else {
		msg.Status = models.QueueStatusFailed
	}
	msg.LastError = &errText
	msg.UpdatedAt = time.Now().UTC()
	copied := *msg
	return &copied, nil
}

func (f *fakeStore) RetryMessage(_ context.Context, id string) (*models.IngestionMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg := f.findMessage(id)
	if msg == nil {
		return nil, db.ErrNotFound
	}
	msg.Status = models.QueueStatusQueued
	msg.Attempts = 0
	msg.LastError = nil
	msg.UpdatedAt = time.Now().UTC()
	copied := *msg
	return &copied, nil
}

func (f *fakeStore) GetMessage(_ context.Context, id string) (*models.IngestionMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg := f.findMessage(id)
	if msg == nil {
		return nil, db.ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

func (f *fakeStore) QueueSummary(context.Context) (map[models.QueueStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	summary := make(map[models.QueueStatus]int)
	for _, msg := range f.messages {
		summary[msg.Status]++
	}
	return summary, nil
}

func (f *fakeStore) ListDeadLetters(_ context.Context, limit int) ([]models.IngestionMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var letters []models.IngestionMessage
	for _, msg := range f.messages {
		if msg.Status == models.QueueStatusDeadLetter && len(letters) < limit {
			letters = append(letters, *msg)
		}
	}
	return letters, nil
}

// CreateClassificationEvent mirrors the real store's transaction: when the
// input names an ingestion message, that message settles to done together
// with the event insert.
func (f *fakeStore) CreateClassificationEvent(_ context.Context, in db.EventInput) (*models.ClassificationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if in.MessageID != nil {
		msg := f.findMessage(*in.MessageID)
		if msg == nil {
			return nil, db.ErrNotFound
		}
		msg.Status = models.QueueStatusDone
		msg.LastError = nil
		msg.UpdatedAt = time.Now().UTC()
	}

	event := &models.ClassificationEvent{
		ID:            f.nextID("classification_event"),
		Source:        in.Source,
		SourceIP:      in.SourceIP,
		DestinationIP: in.DestinationIP,
		MessageID:     in.MessageID,
		FlowID:        in.FlowID,
		ModelVersion:  in.ModelVersion,
		Prediction:    in.Prediction,
		Confidence:    in.Confidence,
		IsThreat:      in.IsThreat,
		Features:      in.Features,
		Metadata:      in.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	f.events = append(f.events, event)
	return event, nil
}

func (f *fakeStore) CreateEvaluationEvent(_ context.Context, in db.EvaluationInput) (*models.ModelEvaluationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	eval := &models.ModelEvaluationEvent{
		ID:                     f.nextID("model_evaluation_event"),
		Source:                 in.Source,
		ProductionModelVersion: in.ProductionModelVersion,
		CanaryModelVersion:     in.CanaryModelVersion,
		ProductionPrediction:   in.ProductionPrediction,
		CanaryPrediction:       in.CanaryPrediction,
		ProductionConfidence:   in.ProductionConfidence,
		CanaryConfidence:       in.CanaryConfidence,
		Diverged:               in.Diverged,
		CreatedAt:              time.Now().UTC(),
	}
	f.evals = append(f.evals, eval)
	return eval, nil
}

func (f *fakeStore) FindOpenAlert(_ context.Context, dedupKey string, cutoff time.Time) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var found *models.Alert
	for _, alert := range f.alerts {
		open := false
		for _, status := range models.OpenAlertStatuses {
			if alert.Status == status {
				open = true
				break
			}
		}
		if alert.DedupKey == dedupKey && open && alert.CreatedAt.After(cutoff) {
			if found == nil || alert.CreatedAt.After(found.CreatedAt) {
				found = alert
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	copied := *found
	return &copied, nil
}

func (f *fakeStore) CreateAlert(_ context.Context, in db.AlertInput) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	alert := &models.Alert{
		ID:            f.nextID("alert"),
		EventID:       in.EventID,
		DedupKey:      in.DedupKey,
		Type:          in.Type,
		Severity:      in.Severity,
		SourceIP:      in.SourceIP,
		DestinationIP: in.DestinationIP,
		Confidence:    in.Confidence,
		Status:        models.AlertStatusNew,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	f.alerts = append(f.alerts, alert)
	copied := *alert
	return &copied, nil
}

func (f *fakeStore) MergeAlert(_ context.Context, id string, confidence float64, severity models.AlertSeverity, raise bool) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, alert := range f.alerts {
		if alert.ID.ID == id {
			if raise {
				alert.Confidence = confidence
				alert.Severity = severity
			}
			alert.UpdatedAt = time.Now().UTC()
			copied := *alert
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) GetAlert(_ context.Context, id string) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, alert := range f.alerts {
		if alert.ID.ID == id {
			copied := *alert
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) UpdateAlertStatus(_ context.Context, id string, status models.AlertStatus) (*models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, alert := range f.alerts {
		if alert.ID.ID == id {
			alert.Status = status
			alert.UpdatedAt = time.Now().UTC()
			copied := *alert
			return &copied, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeStore) RecentAlerts(_ context.Context, limit int, severity *models.AlertSeverity) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var alerts []models.Alert
	for i := len(f.alerts) - 1; i >= 0 && len(alerts) < limit; i-- {
		if severity != nil && f.alerts[i].Severity != *severity {
			continue
		}
		alerts = append(alerts, *f.alerts[i])
	}
	return alerts, nil
}

func (f *fakeStore) CountOpenCritical(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, alert := range f.alerts {
		if alert.Severity != models.SeverityCritical {
			continue
		}
		for _, status := range models.OpenAlertStatuses {
			if alert.Status == status {
				count++
				break
			}
		}
	}
	return count, nil
}

func (f *fakeStore) EventCounts(context.Context) (int, int, *time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	threats := 0
	var last *time.Time
	for _, event := range f.events {
		if event.IsThreat {
			threats++
		}
		if last == nil || event.CreatedAt.After(*last) {
			t := event.CreatedAt
			last = &t
		}
	}
	return len(f.events), threats, last, nil
}

func (f *fakeStore) ThreatDistribution(context.Context) ([]db.PredictionCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := make(map[string]int)
	for _, event := range f.events {
		if event.IsThreat {
			counts[event.Prediction]++
		}
	}

	var result []db.PredictionCount
	for prediction, count := range counts {
		result = append(result, db.PredictionCount{Prediction: prediction, Count: count})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Count > result[j].Count })
	return result, nil
}

func (f *fakeStore) EventsSince(_ context.Context, cutoff time.Time) ([]db.EventSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var samples []db.EventSample
	for _, event := range f.events {
		if !event.CreatedAt.Before(cutoff) {
			samples = append(samples, db.EventSample{CreatedAt: event.CreatedAt, IsThreat: event.IsThreat})
		}
	}
	return samples, nil
}

func (f *fakeStore) RecentPredictions(_ context.Context, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var predictions []string
	for i := len(f.events) - 1; i >= 0 && len(predictions) < limit; i-- {
		predictions = append(predictions, f.events[i].Prediction)
	}
	return predictions, nil
}

func (f *fakeStore) RecentEvaluationDivergence(_ context.Context, limit int) ([]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var flags []bool
	for i := len(f.evals) - 1; i >= 0 && len(flags) < limit; i-- {
		flags = append(flags, f.evals[i].Diverged)
	}
	return flags, nil
}

func (f *fakeStore) CreateAuditLog(_ context.Context, action, targetType string, _, _ *string, _ map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.audits = append(f.audits, strings.Join([]string{action, targetType}, "/"))
	return nil
}

var (
	_ QueueStore     = (*fakeStore)(nil)
	_ DetectionStore = (*fakeStore)(nil)
	_ AuditStore     = (*fakeStore)(nil)
)
