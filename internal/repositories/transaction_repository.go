package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/utils"
)

// TransactionRepository defines the interface for ledger transactions.
// The ledger is append-only: rows are inserted once and only their status,
// failure reason and metadata ever change, one-way out of PENDING.
type TransactionRepository interface {
	Create(ctx context.Context, t *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetByReferenceID(ctx context.Context, referenceID string) (*models.Transaction, error)
	// UpdateStatus enforces the one-way machine in SQL: the row is only
	// touched while still PENDING. ErrNoRowsUpdated signals a lost race
	// or an illegal transition.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.TransactionStatusType, failureReason *string) error
	SetMetadata(ctx context.Context, id uuid.UUID, metadata []byte) error
	FindByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error)
	FindRentalIncomeTotal(ctx context.Context, userID uuid.UUID) (int64, error)
	FindPendingOlderThan(ctx context.Context, txType models.TransactionType, cutoff time.Time) ([]*models.Transaction, error)
	FindNeedingReconciliation(ctx context.Context) ([]*models.Transaction, error)
}

type transactionRepo struct {
	db DB
}

// NewTransactionRepository creates a new instance of the repository.
func NewTransactionRepository(db DB) TransactionRepository {
	return &transactionRepo{db: db}
}

func baseSelectTransaction() string {
	return `
		SELECT
			id, user_id, property_id, type, amount_cents, token_amount, status,
			reference_id, failure_reason, metadata, created_at, updated_at
		FROM transactions
	`
}

func (r *transactionRepo) scanTransaction(row pgx.Row) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(
		&t.ID, &t.UserID, &t.PropertyID, &t.Type, &t.AmountCents, &t.TokenAmount, &t.Status,
		&t.ReferenceID, &t.FailureReason, &t.Metadata, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepo) Create(ctx context.Context, t *models.Transaction) error {
	q := `
		INSERT INTO transactions (
			id, user_id, property_id, type, amount_cents, token_amount, status,
			reference_id, failure_reason, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (reference_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, q, t.ID, t.UserID, t.PropertyID, t.Type, t.AmountCents,
		t.TokenAmount, t.Status, t.ReferenceID, t.FailureReason, t.Metadata)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrDuplicateReference
	}
	return nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	row := r.db.QueryRow(ctx, baseSelectTransaction()+" WHERE id = $1", id)
	return r.scanTransaction(row)
}

func (r *transactionRepo) GetByReferenceID(ctx context.Context, referenceID string) (*models.Transaction, error) {
	row := r.db.QueryRow(ctx, baseSelectTransaction()+" WHERE reference_id = $1", referenceID)
	return r.scanTransaction(row)
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TransactionStatusType, failureReason *string) error {
	q := `
		UPDATE transactions SET
			status = $1,
			failure_reason = $2,
			updated_at = NOW()
		WHERE id = $3 AND status = 'PENDING'
	`
	tag, err := r.db.Exec(ctx, q, status, failureReason, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrNoRowsUpdated
	}
	return nil
}

func (r *transactionRepo) SetMetadata(ctx context.Context, id uuid.UUID, metadata []byte) error {
	q := `UPDATE transactions SET metadata = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.Exec(ctx, q, metadata, id)
	return err
}

func (r *transactionRepo) FindByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Transaction, error) {
	q := baseSelectTransaction() + " WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2"
	rows, err := r.db.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *transactionRepo) FindRentalIncomeTotal(ctx context.Context, userID uuid.UUID) (int64, error) {
	q := `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM transactions
		WHERE user_id = $1 AND type = 'RENTAL_INCOME' AND status = 'COMPLETED'
	`
	var total int64
	if err := r.db.QueryRow(ctx, q, userID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *transactionRepo) FindPendingOlderThan(ctx context.Context, txType models.TransactionType, cutoff time.Time) ([]*models.Transaction, error) {
	q := baseSelectTransaction() + " WHERE type = $1 AND status = 'PENDING' AND updated_at < $2 ORDER BY created_at"
	rows, err := r.db.Query(ctx, q, txType, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *transactionRepo) FindNeedingReconciliation(ctx context.Context) ([]*models.Transaction, error) {
	q := baseSelectTransaction() + ` WHERE metadata ? '` + models.MetadataKeyNeedsReconciliation + `' ORDER BY created_at`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *transactionRepo) collect(rows pgx.Rows) ([]*models.Transaction, error) {
	var txns []*models.Transaction
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
