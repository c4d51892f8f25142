package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/brickfolio/investment-service/internal/models"
)

// ShareRepository defines the interface for share (holding) data operations.
type ShareRepository interface {
	GetByUserAndProperty(ctx context.Context, userID, propertyID uuid.UUID) (*models.Share, error)
	// Upsert merges deltaTokens/deltaCostCents into the user's holding,
	// creating it on first investment. Negative deltas reverse a failed
	// investment; the stored values never go below zero.
	Upsert(ctx context.Context, userID, propertyID uuid.UUID, deltaTokens, deltaCostCents int64) (*models.Share, error)
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Share, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Share, error)
}

type shareRepo struct {
	db DB
}

// NewShareRepository creates a new instance of the repository.
func NewShareRepository(db DB) ShareRepository {
	return &shareRepo{db: db}
}

func baseSelectShare() string {
	return `
		SELECT
			id, user_id, property_id, tokens_owned, purchase_price_cents,
			current_value_cents, created_at, updated_at, row_version
		FROM shares
	`
}

func (r *shareRepo) scanShare(row pgx.Row) (*models.Share, error) {
	var s models.Share
	err := row.Scan(
		&s.ID, &s.UserID, &s.PropertyID, &s.TokensOwned, &s.PurchasePriceCents,
		&s.CurrentValueCents, &s.CreatedAt, &s.UpdatedAt, &s.RowVersion,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *shareRepo) GetByUserAndProperty(ctx context.Context, userID, propertyID uuid.UUID) (*models.Share, error) {
	q := baseSelectShare() + " WHERE user_id = $1 AND property_id = $2"
	row := r.db.QueryRow(ctx, q, userID, propertyID)
	return r.scanShare(row)
}

func (r *shareRepo) Upsert(ctx context.Context, userID, propertyID uuid.UUID, deltaTokens, deltaCostCents int64) (*models.Share, error) {
	q := `
		INSERT INTO shares (
			id, user_id, property_id, tokens_owned, purchase_price_cents,
			current_value_cents, created_at, updated_at, row_version
		) VALUES ($1, $2, $3, GREATEST($4, 0), GREATEST($5, 0), GREATEST($5, 0), NOW(), NOW(), 1)
		ON CONFLICT (user_id, property_id) DO UPDATE SET
			tokens_owned = GREATEST(shares.tokens_owned + $4, 0),
			purchase_price_cents = GREATEST(shares.purchase_price_cents + $5, 0),
			current_value_cents = GREATEST(shares.current_value_cents + $5, 0),
			updated_at = NOW(),
			row_version = shares.row_version + 1
		RETURNING id, user_id, property_id, tokens_owned, purchase_price_cents,
			current_value_cents, created_at, updated_at, row_version
	`
	row := r.db.QueryRow(ctx, q, uuid.New(), userID, propertyID, deltaTokens, deltaCostCents)
	return r.scanShare(row)
}

func (r *shareRepo) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]*models.Share, error) {
	q := baseSelectShare() + " WHERE property_id = $1 AND tokens_owned > 0 ORDER BY tokens_owned DESC, user_id"
	rows, err := r.db.Query(ctx, q, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []*models.Share
	for rows.Next() {
		s, err := r.scanShare(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, s)
	}
	return shares, rows.Err()
}

func (r *shareRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Share, error) {
	q := baseSelectShare() + " WHERE user_id = $1 AND tokens_owned > 0 ORDER BY created_at"
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []*models.Share
	for rows.Next() {
		s, err := r.scanShare(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, s)
	}
	return shares, rows.Err()
}
