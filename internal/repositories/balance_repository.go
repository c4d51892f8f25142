package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/utils"
)

// BalanceRepository defines the interface for internal cash balances.
// Debits and credits both go through the row_version CAS loop; a debit
// that would overdraw returns ErrInsufficientFunds without writing.
type BalanceRepository interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.AccountBalance, error)
	// GetOrCreate ensures the row exists and keeps the contact email
	// current when a non-empty one is supplied.
	GetOrCreate(ctx context.Context, userID uuid.UUID, currency, email string) (*models.AccountBalance, error)
	Credit(ctx context.Context, userID uuid.UUID, amountCents int64) error
	Debit(ctx context.Context, userID uuid.UUID, amountCents int64) error
}

type balanceRepo struct {
	*BaseVersionedRepo[*models.AccountBalance]
	db DB
}

// NewBalanceRepository creates a new instance of the repository.
func NewBalanceRepository(db DB) BalanceRepository {
	r := &balanceRepo{db: db}
	selectStmt := baseSelectBalance() + " WHERE user_id = $1"
	r.BaseVersionedRepo = NewBaseRepo(db, selectStmt, r.scanBalance)
	return r
}

func baseSelectBalance() string {
	return `
		SELECT id, user_id, email, currency, balance_cents, created_at, updated_at, row_version
		FROM account_balances
	`
}

func (r *balanceRepo) scanBalance(row pgx.Row) (*models.AccountBalance, error) {
	var b models.AccountBalance
	err := row.Scan(&b.ID, &b.UserID, &b.Email, &b.Currency, &b.BalanceCents, &b.CreatedAt, &b.UpdatedAt, &b.RowVersion)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *balanceRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*models.AccountBalance, error) {
	return r.BaseVersionedRepo.GetByID(ctx, userID.String())
}

func (r *balanceRepo) GetOrCreate(ctx context.Context, userID uuid.UUID, currency, email string) (*models.AccountBalance, error) {
	q := `
		INSERT INTO account_balances (id, user_id, email, currency, balance_cents, created_at, updated_at, row_version)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW(), 1)
		ON CONFLICT (user_id) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), account_balances.email)
	`
	if _, err := r.db.Exec(ctx, q, uuid.New(), userID, email, currency); err != nil {
		return nil, err
	}
	return r.GetByUser(ctx, userID)
}

func (r *balanceRepo) updateIfVersion(ctx context.Context, b *models.AccountBalance, expectedVersion int64) (pgconn.CommandTag, error) {
	q := `
		UPDATE account_balances SET
			balance_cents = $1,
			updated_at = NOW(),
			row_version = row_version + 1
		WHERE user_id = $2 AND row_version = $3
	`
	return r.db.Exec(ctx, q, b.BalanceCents, b.UserID, expectedVersion)
}

func (r *balanceRepo) Credit(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, userID.String(), func(b *models.AccountBalance) error {
		b.BalanceCents += amountCents
		return nil
	}, r.updateIfVersion)
}

func (r *balanceRepo) Debit(ctx context.Context, userID uuid.UUID, amountCents int64) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, userID.String(), func(b *models.AccountBalance) error {
		if b.BalanceCents < amountCents {
			return utils.ErrInsufficientFunds
		}
		b.BalanceCents -= amountCents
		return nil
	}, r.updateIfVersion)
}
