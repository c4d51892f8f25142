package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/repositories"
	"github.com/brickfolio/investment-service/internal/utils"
)

// AuditWriter records before/after snapshots for every mutation. A failed
// append is returned as ErrAuditWriteFailed and the caller must treat it
// as failure of the whole operation; auditability is not best-effort.
type AuditWriter struct {
	repo repositories.AuditLogRepository
}

func NewAuditWriter(repo repositories.AuditLogRepository) *AuditWriter {
	return &AuditWriter{repo: repo}
}

func (w *AuditWriter) Record(
	ctx context.Context,
	action models.AuditAction,
	targetType models.AuditTargetType,
	targetID, actorID uuid.UUID,
	oldValues, newValues any,
) error {
	entry := &models.AuditLogEntry{
		ID:         uuid.New(),
		Action:     action,
		TargetID:   targetID,
		TargetType: targetType,
		ActorID:    actorID,
	}

	var err error
	if entry.OldValues, err = marshalSnapshot(oldValues); err != nil {
		return fmt.Errorf("marshal old values: %v: %w", err, utils.ErrAuditWriteFailed)
	}
	if entry.NewValues, err = marshalSnapshot(newValues); err != nil {
		return fmt.Errorf("marshal new values: %v: %w", err, utils.ErrAuditWriteFailed)
	}

	if err := w.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry for %s %s: %v: %w", targetType, targetID, err, utils.ErrAuditWriteFailed)
	}
	return nil
}

func marshalSnapshot(v any) (*json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	raw := json.RawMessage(b)
	return &raw, nil
}
