package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/utils"
)

// RentalRecordRepository defines the interface for monthly rental records.
type RentalRecordRepository interface {
	Create(ctx context.Context, rec *models.RentalRecord) error
	GetByPropertyAndMonth(ctx context.Context, propertyID uuid.UUID, monthYear string) (*models.RentalRecord, error)
	// Claim sets distributed_at exactly once. A second claim for the same
	// record returns ErrAlreadyDistributed, which is what makes concurrent
	// distribution runs safe.
	Claim(ctx context.Context, id uuid.UUID) error
	FindDistributedWithoutPayouts(ctx context.Context) ([]*models.RentalRecord, error)
}

type rentalRecordRepo struct {
	db DB
}

// NewRentalRecordRepository creates a new instance of the repository.
func NewRentalRecordRepository(db DB) RentalRecordRepository {
	return &rentalRecordRepo{db: db}
}

func baseSelectRentalRecord() string {
	return `
		SELECT
			id, property_id, month_year, total_income_cents, expenses_cents,
			net_income_cents, distributed_at, created_at
		FROM rental_records
	`
}

func (r *rentalRecordRepo) scanRecord(row pgx.Row) (*models.RentalRecord, error) {
	var rec models.RentalRecord
	err := row.Scan(
		&rec.ID, &rec.PropertyID, &rec.MonthYear, &rec.TotalIncomeCents, &rec.ExpensesCents,
		&rec.NetIncomeCents, &rec.DistributedAt, &rec.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *rentalRecordRepo) Create(ctx context.Context, rec *models.RentalRecord) error {
	q := `
		INSERT INTO rental_records (
			id, property_id, month_year, total_income_cents, expenses_cents,
			net_income_cents, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (property_id, month_year) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, q, rec.ID, rec.PropertyID, rec.MonthYear,
		rec.TotalIncomeCents, rec.ExpensesCents, rec.NetIncomeCents)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrDuplicateReference
	}
	return nil
}

func (r *rentalRecordRepo) GetByPropertyAndMonth(ctx context.Context, propertyID uuid.UUID, monthYear string) (*models.RentalRecord, error) {
	q := baseSelectRentalRecord() + " WHERE property_id = $1 AND month_year = $2"
	row := r.db.QueryRow(ctx, q, propertyID, monthYear)
	return r.scanRecord(row)
}

func (r *rentalRecordRepo) Claim(ctx context.Context, id uuid.UUID) error {
	q := `
		UPDATE rental_records SET distributed_at = NOW()
		WHERE id = $1 AND distributed_at IS NULL
	`
	tag, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrAlreadyDistributed
	}
	return nil
}

// FindDistributedWithoutPayouts surfaces claimed records whose payout
// transactions fell short of the holder count: a crash right after the
// claim, or a run that stopped partway through the holders. The
// reconciliation sweep reports them; re-invoking the distribution
// resumes the missing payouts.
func (r *rentalRecordRepo) FindDistributedWithoutPayouts(ctx context.Context) ([]*models.RentalRecord, error) {
	q := baseSelectRentalRecord() + `
		WHERE distributed_at IS NOT NULL
		  AND (
			SELECT COUNT(*) FROM transactions t
			WHERE t.property_id = rental_records.property_id
			  AND t.type = 'RENTAL_INCOME'
			  AND t.status = 'COMPLETED'
			  AND t.metadata->>'month_year' = rental_records.month_year
		  ) < GREATEST(1, (
			SELECT COUNT(*) FROM shares s
			WHERE s.property_id = rental_records.property_id
			  AND s.tokens_owned > 0
		  ))
	`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.RentalRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
