package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/brickfolio/investment-service/internal/models"
)

// AuditLogRepository is append-only. There is deliberately no update or
// delete; a failed append must fail the operation that caused it.
type AuditLogRepository interface {
	Append(ctx context.Context, e *models.AuditLogEntry) error
	FindByTarget(ctx context.Context, targetType models.AuditTargetType, targetID uuid.UUID) ([]*models.AuditLogEntry, error)
}

type auditLogRepo struct {
	db DB
}

// NewAuditLogRepository creates a new instance of the repository.
func NewAuditLogRepository(db DB) AuditLogRepository {
	return &auditLogRepo{db: db}
}

func (r *auditLogRepo) Append(ctx context.Context, e *models.AuditLogEntry) error {
	q := `
		INSERT INTO audit_log (
			id, action, target_id, target_type, actor_id, old_values, new_values, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := r.db.Exec(ctx, q, e.ID, e.Action, e.TargetID, e.TargetType, e.ActorID, e.OldValues, e.NewValues)
	return err
}

func (r *auditLogRepo) FindByTarget(ctx context.Context, targetType models.AuditTargetType, targetID uuid.UUID) ([]*models.AuditLogEntry, error) {
	q := `
		SELECT id, action, target_id, target_type, actor_id, old_values, new_values, created_at
		FROM audit_log
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, q, targetType, targetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.Action, &e.TargetID, &e.TargetType, &e.ActorID, &e.OldValues, &e.NewValues, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
