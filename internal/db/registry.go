package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"

	"github.com/centerback/centerback-go/internal/models"
)

// RegisterModelVersion inserts a new registry entry. The unique index on
// version rejects re-registration (ErrDuplicateKey).
func (c *Client) RegisterModelVersion(ctx context.Context, version, path string, accuracy *float64) (*models.ModelVersion, error) {
	results, err := surrealdb.Query[[]models.ModelVersion](ctx, c.db, `
		CREATE type::record("model_version", $id) SET
			version = $version,
			path = $path,
			accuracy = $accuracy,
			status = "retired"
		RETURN AFTER
	`, map[string]any{
		"id":       uuid.New().String(),
		"version":  version,
		"path":     path,
		"accuracy": accuracy,
	})
	if err != nil {
		return nil, fmt.Errorf("register model version: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("register model version: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// ListModelVersions returns all registered versions, newest first.
func (c *Client) ListModelVersions(ctx context.Context) ([]models.ModelVersion, error) {
	results, err := surrealdb.Query[[]models.ModelVersion](ctx, c.db, `
		SELECT * FROM model_version
		ORDER BY created_at DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list model versions: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.ModelVersion{}, nil
	}
	return (*results)[0].Result, nil
}

// ActivateModelVersion marks the named version active and retires every
// other version in the same statement batch.
func (c *Client) ActivateModelVersion(ctx context.Context, version string) (*models.ModelVersion, error) {
	results, err := surrealdb.Query[[]models.ModelVersion](ctx, c.db, `
		UPDATE model_version SET status = "retired", updated_at = time::now()
			WHERE status = "active" AND version != $version;
		UPDATE model_version SET status = "active", updated_at = time::now()
			WHERE version = $version
		RETURN AFTER;
	`, map[string]any{"version": version})
	if err != nil {
		return nil, fmt.Errorf("activate model version: %w", err)
	}

	// The RETURN AFTER of the second statement is the last query result
	if results == nil || len(*results) == 0 {
		return nil, ErrNotFound
	}
	last := (*results)[len(*results)-1].Result
	if len(last) == 0 {
		return nil, ErrNotFound
	}
	return &last[0], nil
}
