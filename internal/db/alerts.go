package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"github.com/centerback/centerback-go/internal/models"
)

// FindOpenAlert returns the most recent open alert for the dedup key created
// at or after the cutoff, or nil when no open alert matches. Open means
// status in {new, triaged, investigating}.
func (c *Client) FindOpenAlert(ctx context.Context, dedupKey string, cutoff time.Time) (*models.Alert, error) {
	results, err := surrealdb.Query[[]models.Alert](ctx, c.db, `
		SELECT * FROM alert
		WHERE dedup_key = $dedup_key
			AND created_at >= <datetime>$cutoff
			AND status IN ["new", "triaged", "investigating"]
		ORDER BY created_at DESC
		LIMIT 1
	`, map[string]any{
		"dedup_key": dedupKey,
		"cutoff":    cutoff.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("find open alert: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// AlertInput carries the fields of a new alert.
type AlertInput struct {
	EventID       *string
	DedupKey      string
	Type          string
	Severity      models.AlertSeverity
	SourceIP      string
	DestinationIP string
	Confidence    float64
}

// CreateAlert inserts a new alert with status "new".
func (c *Client) CreateAlert(ctx context.Context, in AlertInput) (*models.Alert, error) {
	results, err := surrealdb.Query[[]models.Alert](ctx, c.db, `
		CREATE type::record("alert", $id) SET
			event_id = $event_id,
			dedup_key = $dedup_key,
			type = $type,
			severity = $severity,
			source_ip = $source_ip,
			destination_ip = $destination_ip,
			confidence = $confidence,
			status = "new"
		RETURN AFTER
	`, map[string]any{
		"id":             uuid.New().String(),
		"event_id":       in.EventID,
		"dedup_key":      in.DedupKey,
		"type":           in.Type,
		"severity":       string(in.Severity),
		"source_ip":      in.SourceIP,
		"destination_ip": in.DestinationIP,
		"confidence":     in.Confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create alert: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// MergeAlert refreshes an open alert hit by another matching threat.
// Confidence and severity are overwritten only when the new confidence is
// higher; updated_at is always refreshed.
func (c *Client) MergeAlert(ctx context.Context, id string, confidence float64, severity models.AlertSeverity, raiseConfidence bool) (*models.Alert, error) {
	var sql string
	vars := map[string]any{"id": id}
	if raiseConfidence {
		sql = `
			UPDATE type::record("alert", $id) SET
				confidence = $confidence,
				severity = $severity,
				updated_at = time::now()
			RETURN AFTER
		`
		vars["confidence"] = confidence
		vars["severity"] = string(severity)
	} else {
		sql = `
			UPDATE type::record("alert", $id) SET
				updated_at = time::now()
			RETURN AFTER
		`
	}

	results, err := surrealdb.Query[[]models.Alert](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("merge alert: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// GetAlert retrieves an alert by ID. Returns ErrNotFound if missing.
func (c *Client) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	results, err := surrealdb.Query[[]models.Alert](ctx, c.db, `
		SELECT * FROM type::record("alert", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// UpdateAlertStatus sets the alert status. Transition validation happens in
// the detection service before this is called.
func (c *Client) UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus) (*models.Alert, error) {
	results, err := surrealdb.Query[[]models.Alert](ctx, c.db, `
		UPDATE type::record("alert", $id) SET
			status = $status,
			updated_at = time::now()
		RETURN AFTER
	`, map[string]any{
		"id":     id,
		"status": string(status),
	})
	if err != nil {
		return nil, fmt.Errorf("update alert status: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return &(*results)[0].Result[0], nil
}

// RecentAlerts returns alerts newest first, optionally filtered by severity.
func (c *Client) RecentAlerts(ctx context.Context, limit int, severity *models.AlertSeverity) ([]models.Alert, error) {
	severityClause := ""
	vars := map[string]any{"limit": limit}
	if severity != nil {
		severityClause = "WHERE severity = $severity"
		vars["severity"] = string(*severity)
	}

	sql := fmt.Sprintf(`
		SELECT * FROM alert %s
		ORDER BY created_at DESC
		LIMIT $limit
	`, severityClause)

	results, err := surrealdb.Query[[]models.Alert](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("recent alerts: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.Alert{}, nil
	}
	return (*results)[0].Result, nil
}

// CountOpenCritical counts critical alerts still in an open status;
// resolved and false_positive alerts are settled and excluded.
func (c *Client) CountOpenCritical(ctx context.Context) (int, error) {
	results, err := surrealdb.Query[[]struct {
		Count int `json:"count"`
	}](ctx, c.db, `
		SELECT count() AS count FROM alert
		WHERE severity = "critical"
			AND status IN ["new", "triaged", "investigating"]
		GROUP ALL
	`, nil)
	if err != nil {
		return 0, fmt.Errorf("count open critical: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return 0, nil
	}
	return (*results)[0].Result[0].Count, nil
}
