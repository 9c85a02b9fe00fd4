package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"github.com/centerback/centerback-go/internal/models"
)

// CreateAuditLog writes one audit trail entry. Entries are never updated.
func (c *Client) CreateAuditLog(ctx context.Context, action, targetType string, targetID, actor *string, details map[string]any) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		CREATE type::record("audit_log", $id) SET
			actor = $actor,
			action = $action,
			target_type = $target_type,
			target_id = $target_id,
			details = $details
	`, map[string]any{
		"id":          uuid.New().String(),
		"actor":       actor,
		"action":      action,
		"target_type": targetType,
		"target_id":   targetID,
		"details":     details,
	})
	if err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

// RecentAuditLogs returns audit entries newest first.
func (c *Client) RecentAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	results, err := surrealdb.Query[[]models.AuditLog](ctx, c.db, `
		SELECT * FROM audit_log
		ORDER BY created_at DESC
		LIMIT $limit
	`, map[string]any{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("recent audit logs: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.AuditLog{}, nil
	}
	return (*results)[0].Result, nil
}
