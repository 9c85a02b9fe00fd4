package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/centerback/centerback-go/internal/models"
)

// ModelRegistryStore is the persistence surface of registered model versions.
type ModelRegistryStore interface {
	RegisterModelVersion(ctx context.Context, version, path string, accuracy *float64) (*models.ModelVersion, error)
	ListModelVersions(ctx context.Context) ([]models.ModelVersion, error)
	ActivateModelVersion(ctx context.Context, version string) (*models.ModelVersion, error)
}

// ModelRegistry tracks classifier artifacts and which one is active.
type ModelRegistry struct {
	store  ModelRegistryStore
	audit  *Audit
	logger *slog.Logger
}

// NewModelRegistry creates the registry service.
func NewModelRegistry(store ModelRegistryStore, audit *Audit, logger *slog.Logger) *ModelRegistry {
	return &ModelRegistry{store: store, audit: audit, logger: logger}
}

// Register records a new model version. The artifact must exist on disk;
// versions are unique.
func (r *ModelRegistry) Register(ctx context.Context, version, path string, accuracy *float64, actor *string) (*models.ModelVersion, error) {
	if version == "" {
		return nil, errors.New("version must not be empty")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model artifact not found at %s: %w", path, err)
	}

	mv, err := r.store.RegisterModelVersion(ctx, version, path, accuracy)
	if err != nil {
		return nil, err
	}

	r.audit.Log(ctx, "model.register", "model_version", &version, actor, map[string]any{
		"path": path,
	})
	r.logger.Info("model version registered", "version", version, "path", path)
	return mv, nil
}

// List returns all registered versions, newest first.
func (r *ModelRegistry) List(ctx context.Context) ([]models.ModelVersion, error) {
	return r.store.ListModelVersions(ctx)
}

// Activate makes the named version active, retiring the previous one.
func (r *ModelRegistry) Activate(ctx context.Context, version string, actor *string) (*models.ModelVersion, error) {
	mv, err := r.store.ActivateModelVersion(ctx, version)
	if err != nil {
		return nil, err
	}

	r.audit.Log(ctx, "model.activate", "model_version", &version, actor, nil)
	r.logger.Info("model version activated", "version", version)
	return mv, nil
}
