package service

import (
	"context"
	"log/slog"
)

// Audit writes one trail entry per mutating operation. Failures are logged
// and never propagated; a lost audit row must not fail the operation itself.
type Audit struct {
	store  AuditStore
	logger *slog.Logger
}

// NewAudit creates an audit sink backed by the given store.
func NewAudit(store AuditStore, logger *slog.Logger) *Audit {
	return &Audit{store: store, logger: logger}
}

// Log records one action against a target.
func (a *Audit) Log(ctx context.Context, action, targetType string, targetID, actor *string, details map[string]any) {
	if a == nil || a.store == nil {
		return
	}
	if err := a.store.CreateAuditLog(ctx, action, targetType, targetID, actor, details); err != nil {
		a.logger.Error("failed to write audit log",
			"action", action,
			"target_type", targetType,
			"error", err)
	}
}
