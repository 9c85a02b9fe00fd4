package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"github.com/centerback/centerback-go/internal/models"
)

// EventInput carries the fields of a new classification event. MessageID
// and FlowID link the event back to the raw ingestion message it came from;
// both are nil for direct API classifications.
type EventInput struct {
	Source        string
	SourceIP      string
	DestinationIP string
	MessageID     *string
	FlowID        *string
	ModelVersion  *string
	Prediction    string
	Confidence    float64
	IsThreat      bool
	Features      []float64
	Metadata      map[string]any
}

// CreateClassificationEvent persists one immutable classification outcome.
// When MessageID is set, the source message's terminal update to done runs
// in the same transaction as the event insert, so the event never exists
// without the message settling and vice versa.
func (c *Client) CreateClassificationEvent(ctx context.Context, in EventInput) (*models.ClassificationEvent, error) {
	query := `
		CREATE type::record("classification_event", $id) SET
			source = $source,
			source_ip = $source_ip,
			destination_ip = $destination_ip,
			message_id = $message_id,
			flow_id = $flow_id,
			model_version = $model_version,
			prediction = $prediction,
			confidence = $confidence,
			is_threat = $is_threat,
			features = $features,
			metadata = $metadata
		RETURN AFTER`
	if in.MessageID != nil {
		query = `
		BEGIN TRANSACTION;
		UPDATE type::record("ingestion_message", $message_id) SET
			status = "done",
			last_error = NONE,
			updated_at = time::now()
		RETURN NONE;
		` + query + `;
		COMMIT TRANSACTION;`
	}

	results, err := surrealdb.Query[[]models.ClassificationEvent](ctx, c.db, query, map[string]any{
		"id":             uuid.New().String(),
		"source":         in.Source,
		"source_ip":      in.SourceIP,
		"destination_ip": in.DestinationIP,
		"message_id":     in.MessageID,
		"flow_id":        in.FlowID,
		"model_version":  in.ModelVersion,
		"prediction":     in.Prediction,
		"confidence":     in.Confidence,
		"is_threat":      in.IsThreat,
		"features":       in.Features,
		"metadata":       in.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("create classification event: %w", err)
	}

	// The CREATE is the last statement carrying a result
	if results != nil {
		for i := len(*results) - 1; i >= 0; i-- {
			if len((*results)[i].Result) > 0 {
				return &(*results)[i].Result[0], nil
			}
		}
	}
	return nil, fmt.Errorf("create classification event: no result returned")
}

// EvaluationInput carries the fields of a new canary evaluation event.
type EvaluationInput struct {
	Source                 string
	ProductionModelVersion *string
	CanaryModelVersion     *string
	ProductionPrediction   string
	CanaryPrediction       string
	ProductionConfidence   float64
	CanaryConfidence       float64
	Diverged               bool
}

// CreateEvaluationEvent persists one production-vs-canary comparison.
func (c *Client) CreateEvaluationEvent(ctx context.Context, in EvaluationInput) (*models.ModelEvaluationEvent, error) {
	results, err := surrealdb.Query[[]models.ModelEvaluationEvent](ctx, c.db, `
		CREATE type::record("model_evaluation_event", $id) SET
			source = $source,
			production_model_version = $production_model_version,
			canary_model_version = $canary_model_version,
			production_prediction = $production_prediction,
			canary_prediction = $canary_prediction,
			production_confidence = $production_confidence,
			canary_confidence = $canary_confidence,
			diverged = $diverged
		RETURN AFTER
	`, map[string]any{
		"id":                       uuid.New().String(),
		"source":                   in.Source,
		"production_model_version": in.ProductionModelVersion,
		"canary_model_version":     in.CanaryModelVersion,
		"production_prediction":    in.ProductionPrediction,
		"canary_prediction":        in.CanaryPrediction,
		"production_confidence":    in.ProductionConfidence,
		"canary_confidence":        in.CanaryConfidence,
		"diverged":                 in.Diverged,
	})
	if err != nil {
		return nil, fmt.Errorf("create evaluation event: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create evaluation event: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// RecentPredictions returns the prediction labels of the most recent events,
// newest first.
func (c *Client) RecentPredictions(ctx context.Context, limit int) ([]string, error) {
	results, err := surrealdb.Query[[]struct {
		Prediction string `json:"prediction"`
	}](ctx, c.db, `
		SELECT prediction FROM classification_event
		ORDER BY created_at DESC
		LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent predictions: %w", err)
	}

	var predictions []string
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			predictions = append(predictions, row.Prediction)
		}
	}
	return predictions, nil
}

// RecentEvaluationDivergence returns the diverged flags of the most recent
// evaluation events, newest first.
func (c *Client) RecentEvaluationDivergence(ctx context.Context, limit int) ([]bool, error) {
	results, err := surrealdb.Query[[]struct {
		Diverged bool `json:"diverged"`
	}](ctx, c.db, `
		SELECT diverged FROM model_evaluation_event
		ORDER BY created_at DESC
		LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent evaluation divergence: %w", err)
	}

	var flags []bool
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			flags = append(flags, row.Diverged)
		}
	}
	return flags, nil
}

// EventCounts returns total and threat event counts plus the newest event
// timestamp (nil when the table is empty).
func (c *Client) EventCounts(ctx context.Context) (total, threats int, lastUpdated *time.Time, err error) {
	results, err := surrealdb.Query[[]struct {
		Total       int        `json:"total"`
		Threats     int        `json:"threats"`
		LastUpdated *time.Time `json:"last_updated"`
	}](ctx, c.db, `
		SELECT
			count() AS total,
			count(is_threat) AS threats,
			math::max(created_at) AS last_updated
		FROM classification_event
		GROUP ALL
	`, nil)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("event counts: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, 0, nil, nil
	}
	row := (*results)[0].Result[0]
	return row.Total, row.Threats, row.LastUpdated, nil
}

// PredictionCount is one attack-distribution row.
type PredictionCount struct {
	Prediction string `json:"prediction"`
	Count      int    `json:"count"`
}

// ThreatDistribution returns threat counts per prediction label, most
// frequent first.
func (c *Client) ThreatDistribution(ctx context.Context) ([]PredictionCount, error) {
	results, err := surrealdb.Query[[]PredictionCount](ctx, c.db, `
		SELECT prediction, count() AS count FROM classification_event
		WHERE is_threat = true
		GROUP BY prediction
		ORDER BY count DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("threat distribution: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []PredictionCount{}, nil
	}
	return (*results)[0].Result, nil
}

// EventSample is the slice of an event used for timeline bucketing.
type EventSample struct {
	CreatedAt time.Time `json:"created_at"`
	IsThreat  bool      `json:"is_threat"`
}

// EventsSince returns timestamp/threat pairs for events created at or after
// the cutoff.
func (c *Client) EventsSince(ctx context.Context, cutoff time.Time) ([]EventSample, error) {
	results, err := surrealdb.Query[[]EventSample](ctx, c.db, `
		SELECT created_at, is_threat FROM classification_event
		WHERE created_at >= <datetime>$cutoff
	`, map[string]any{"cutoff": cutoff.UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return nil, fmt.Errorf("events since: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []EventSample{}, nil
	}
	return (*results)[0].Result, nil
}
