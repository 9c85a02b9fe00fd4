package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"github.com/centerback/centerback-go/internal/models"
)

// StatusCount is one row of the per-status queue summary.
type StatusCount struct {
	Status models.QueueStatus `json:"status"`
	Count  int                `json:"count"`
}

// QueueDepth returns the number of messages occupying queue capacity:
// everything in queued, processing or failed.
func (c *Client) QueueDepth(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, c.db, `
		SELECT count() AS count FROM ingestion_message
		WHERE status IN ["queued", "processing", "failed"]
		GROUP ALL
	`, nil)
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}

// ExistingIdempotencyKeys returns the idempotency keys of messages from the
// given source created at or after the cutoff.
func (c *Client) ExistingIdempotencyKeys(ctx context.Context, source string, cutoff time.Time) (map[string]struct{}, error) {
	results, err := surrealdb.Query[[]struct {
		IdempotencyKey string `json:"idempotency_key"`
	}](ctx, c.db, `
		SELECT idempotency_key FROM ingestion_message
		WHERE source = $source AND created_at >= <datetime>$cutoff
	`, map[string]any{
		"source": source,
		"cutoff": cutoff.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("existing idempotency keys: %w", err)
	}

	keys := make(map[string]struct{})
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			keys[row.IdempotencyKey] = struct{}{}
		}
	}
	return keys, nil
}

// CreateMessage inserts a new queued ingestion message.
func (c *Client) CreateMessage(ctx context.Context, source, idempotencyKey string, payload models.FlowPayload) (*models.IngestionMessage, error) {
	results, err := surrealdb.Query[[]models.IngestionMessage](ctx, c.db, `
		CREATE type::record("ingestion_message", $id) SET
			source = $source,
			payload = $payload,
			status = "queued",
			attempts = 0,
			idempotency_key = $key
		RETURN AFTER
	`, map[string]any{
		"id":      uuid.New().String(),
		"source":  source,
		"payload": payload,
		"key":     idempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create message: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create message: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// ClaimBatch atomically claims up to limit of the oldest claimable messages.
// A message is claimable when its status is queued or failed and it has
// attempts left. Each claim is a single conditional UPDATE, so a message
// already grabbed by a concurrent claimer fails the condition and is
// silently skipped.
func (c *Client) ClaimBatch(ctx context.Context, limit, maxAttempts int) ([]models.IngestionMessage, error) {
	candidates, err := surrealdb.Query[[]struct {
		ID string `json:"id"`
	}](ctx, c.db, `
		SELECT record::id(id) AS id FROM ingestion_message
		WHERE status IN ["queued", "failed"] AND attempts < $max
		ORDER BY created_at ASC
		LIMIT $limit
	`, map[string]any{
		"max":   maxAttempts,
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("claim candidates: %w", err)
	}
	if candidates == nil || len(*candidates) == 0 {
		return nil, nil
	}

	var claimed []models.IngestionMessage
	for _, candidate := range (*candidates)[0].Result {
		results, err := surrealdb.Query[[]models.IngestionMessage](ctx, c.db, `
			UPDATE type::record("ingestion_message", $id) SET
				status = "processing",
				attempts += 1,
				updated_at = time::now()
			WHERE status IN ["queued", "failed"] AND attempts < $max
			RETURN AFTER
		`, map[string]any{
			"id":  candidate.ID,
			"max": maxAttempts,
		})
		if err != nil {
			return claimed, fmt.Errorf("claim message %s: %w", candidate.ID, wrapQueryError(err))
		}
		if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
			// Lost the race to another claimer
			continue
		}
		claimed = append(claimed, (*results)[0].Result[0])
	}
	return claimed, nil
}

// RequeueStaleProcessing returns messages abandoned mid-claim (a crashed
// worker) to the queue. Only rows whose claim is older than olderThan move;
// attempts are kept so a poison message still dead-letters.
func (c *Client) RequeueStaleProcessing(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	results, err := surrealdb.Query[[]models.IngestionMessage](ctx, c.db, `
		UPDATE ingestion_message SET
			status = "queued",
			updated_at = time::now()
		WHERE status = "processing" AND updated_at < <datetime>$cutoff
		RETURN AFTER
	`, map[string]any{
		"cutoff": cutoff.Format(time.RFC3339Nano),
	})
	if err != nil {
		return 0, fmt.Errorf("requeue stale processing: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

// FailMessage records a processing failure. While attempts remain below
// maxAttempts the message returns to failed (claimable again); once they
// are exhausted it moves to dead_letter.
func (c *Client) FailMessage(ctx context.Context, id, errText string, maxAttempts int) (*models.IngestionMessage, error) {
	results, err := surrealdb.Query[[]models.IngestionMessage](ctx, c.db, `
		UPDATE type::record("ingestion_message", $id) SET
			last_error = $error,
			status = (IF attempts >= $max THEN "dead_letter" ELSE "failed" END),
			updated_at = time::now()
		RETURN AFTER
	`, map[string]any{
		"id":    id,
		"error": errText,
		"max":   maxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("fail message: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// RetryMessage is the explicit operator action that requeues a message:
// status back to queued, attempts reset, error cleared.
func (c *Client) RetryMessage(ctx context.Context, id string) (*models.IngestionMessage, error) {
	results, err := surrealdb.Query[[]models.IngestionMessage](ctx, c.db, `
		UPDATE type::record("ingestion_message", $id) SET
			status = "queued",
			attempts = 0,
			last_error = NONE,
			updated_at = time::now()
		RETURN AFTER
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("retry message: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// GetMessage retrieves a message by ID. Returns ErrNotFound if missing.
func (c *Client) GetMessage(ctx context.Context, id string) (*models.IngestionMessage, error) {
	results, err := surrealdb.Query[[]models.IngestionMessage](ctx, c.db, `
		SELECT * FROM type::record("ingestion_message", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// QueueSummary returns the message count per status.
func (c *Client) QueueSummary(ctx context.Context) (map[models.QueueStatus]int, error) {
	results, err := surrealdb.Query[[]StatusCount](ctx, c.db, `
		SELECT status, count() AS count FROM ingestion_message
		GROUP BY status
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("queue summary: %w", err)
	}

	summary := make(map[models.QueueStatus]int)
	if results != nil && len(*results) > 0 {
		for _, row := range (*results)[0].Result {
			summary[row.Status] = row.Count
		}
	}
	return summary, nil
}

// ListDeadLetters returns dead-lettered messages, most recently updated first.
func (c *Client) ListDeadLetters(ctx context.Context, limit int) ([]models.IngestionMessage, error) {
	results, err := surrealdb.Query[[]models.IngestionMessage](ctx, c.db, `
		SELECT * FROM ingestion_message
		WHERE status = "dead_letter"
		ORDER BY updated_at DESC
		LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.IngestionMessage{}, nil
	}
	return (*results)[0].Result, nil
}
