package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/brickfolio/investment-service/internal/models"
)

// PropertyRepository defines the interface for property data operations.
// AvailableTokens is only mutated through UpdateWithRetry so that the
// token-conservation invariant survives concurrent investors.
type PropertyRepository interface {
	Create(ctx context.Context, p *models.Property) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error)
	List(ctx context.Context) ([]*models.Property, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Property) error) error
}

type propertyRepo struct {
	*BaseVersionedRepo[*models.Property]
	db DB
}

// NewPropertyRepository creates a new instance of the repository.
func NewPropertyRepository(db DB) PropertyRepository {
	r := &propertyRepo{db: db}
	selectStmt := baseSelectProperty() + " WHERE id = $1"
	r.BaseVersionedRepo = NewBaseRepo(db, selectStmt, r.scanProperty)
	return r
}

func baseSelectProperty() string {
	return `
		SELECT
			id, name, address, city, state, total_tokens, available_tokens,
			price_per_token_cents, status, created_at, updated_at, row_version
		FROM properties
	`
}

func (r *propertyRepo) scanProperty(row pgx.Row) (*models.Property, error) {
	var p models.Property
	err := row.Scan(
		&p.ID, &p.Name, &p.Address, &p.City, &p.State, &p.TotalTokens, &p.AvailableTokens,
		&p.PricePerTokenCents, &p.Status, &p.CreatedAt, &p.UpdatedAt, &p.RowVersion,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *propertyRepo) Create(ctx context.Context, p *models.Property) error {
	q := `
		INSERT INTO properties (
			id, name, address, city, state, total_tokens, available_tokens,
			price_per_token_cents, status, created_at, updated_at, row_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW(), 1)
	`
	_, err := r.db.Exec(ctx, q, p.ID, p.Name, p.Address, p.City, p.State,
		p.TotalTokens, p.AvailableTokens, p.PricePerTokenCents, p.Status)
	return err
}

func (r *propertyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	return r.BaseVersionedRepo.GetByID(ctx, id.String())
}

func (r *propertyRepo) List(ctx context.Context) ([]*models.Property, error) {
	q := baseSelectProperty() + " ORDER BY created_at"
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []*models.Property
	for rows.Next() {
		p, err := r.scanProperty(rows)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

func (r *propertyRepo) UpdateIfVersion(ctx context.Context, p *models.Property, expectedVersion int64) (pgconn.CommandTag, error) {
	q := `
		UPDATE properties SET
			available_tokens = $1,
			price_per_token_cents = $2,
			status = $3,
			updated_at = NOW(),
			row_version = row_version + 1
		WHERE id = $4 AND row_version = $5
	`
	return r.db.Exec(ctx, q, p.AvailableTokens, p.PricePerTokenCents, p.Status, p.ID, expectedVersion)
}

func (r *propertyRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Property) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, id.String(), mutate, r.UpdateIfVersion)
}
