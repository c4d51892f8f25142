package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/notifications"
	"github.com/brickfolio/investment-service/internal/repositories"
	"github.com/brickfolio/investment-service/internal/utils"
)

// DistributionService pays out a property's monthly rental income to its
// token holders, pro-rata by tokens owned, exactly once per
// (property, month).
type DistributionService struct {
	rentalRepo  repositories.RentalRecordRepository
	shareRepo   repositories.ShareRepository
	txnRepo     repositories.TransactionRepository
	balanceRepo repositories.BalanceRepository
	propRepo    repositories.PropertyRepository
	audit       *AuditWriter
	notifier    notifications.Notifier

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDistributionService(
	rentalRepo repositories.RentalRecordRepository,
	shareRepo repositories.ShareRepository,
	txnRepo repositories.TransactionRepository,
	balanceRepo repositories.BalanceRepository,
	propRepo repositories.PropertyRepository,
	audit *AuditWriter,
	notifier notifications.Notifier,
) *DistributionService {
	return &DistributionService{
		rentalRepo:  rentalRepo,
		shareRepo:   shareRepo,
		txnRepo:     txnRepo,
		balanceRepo: balanceRepo,
		propRepo:    propRepo,
		audit:       audit,
		notifier:    notifier,
		locks:       make(map[string]*sync.Mutex),
	}
}

// DistributionResult summarizes one completed distribution.
type DistributionResult struct {
	RentalRecordID   uuid.UUID `json:"rental_record_id"`
	PropertyID       uuid.UUID `json:"property_id"`
	MonthYear        string    `json:"month_year"`
	NetIncomeCents   int64     `json:"net_income_cents"`
	HoldersPaid      int       `json:"holders_paid"`
	DistributedCents int64     `json:"distributed_cents"`
}

// Payout is one holder's slice of a distribution.
type Payout struct {
	UserID      uuid.UUID
	TokensOwned int64
	AmountCents int64
}

// lockFor serializes distributions of the same (property, month) within
// this process. The database claim remains the real exactly-once guard;
// the lock just keeps concurrent local callers from wasting a round-trip.
func (s *DistributionService) lockFor(propertyID uuid.UUID, monthYear string) *sync.Mutex {
	key := propertyID.String() + "|" + monthYear
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.locks[key] = l
	return l
}

// DistributeRentalIncome pays the named month's net income to every
// holder of the property. Re-invoking for an already distributed month
// returns ErrAlreadyDistributed.
func (s *DistributionService) DistributeRentalIncome(ctx context.Context, propertyID uuid.UUID, monthYear string) (*DistributionResult, error) {
	if propertyID == uuid.Nil {
		return nil, fmt.Errorf("property id is required: %w", utils.ErrValidation)
	}
	if _, err := time.Parse(models.MonthYearLayout, monthYear); err != nil {
		return nil, fmt.Errorf("month %q is not in YYYY-MM form: %w", monthYear, utils.ErrValidation)
	}

	lock := s.lockFor(propertyID, monthYear)
	lock.Lock()
	defer lock.Unlock()

	prop, err := s.propRepo.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, fmt.Errorf("property %s: %w", propertyID, utils.ErrNotFound)
	}

	rec, err := s.rentalRepo.GetByPropertyAndMonth(ctx, propertyID, monthYear)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("no rental record for property %s month %s: %w", propertyID, monthYear, utils.ErrNotFound)
	}

	shares, err := s.shareRepo.ListByProperty(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	payouts, totalTokens := computePayouts(rec.NetIncomeCents, shares)
	if totalTokens == 0 {
		return nil, fmt.Errorf("property %s has no token holders for %s: %w", propertyID, monthYear, utils.ErrValidation)
	}

	if rec.DistributedAt != nil {
		// A prior run claimed this month. If every holder's payout landed
		// there is nothing to do; otherwise finish the remainder, which
		// the per-holder reference ids make safe to retry.
		missing, err := s.missingPayouts(ctx, rec, payouts)
		if err != nil {
			return nil, err
		}
		if len(missing) == 0 {
			return nil, fmt.Errorf("month %s for property %s: %w", monthYear, propertyID, utils.ErrAlreadyDistributed)
		}
		utils.Logger.Warnf("Resuming interrupted distribution %s/%s: %d of %d payouts missing",
			propertyID, monthYear, len(missing), len(payouts))
		payouts = missing
	} else {
		// Claim before paying: the conditional update is what makes a
		// concurrent double-invoke lose cleanly instead of double-paying.
		if err := s.rentalRepo.Claim(ctx, rec.ID); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		if err := s.audit.Record(ctx, models.AuditUpdate, models.TargetRentalRecord, rec.ID, uuid.Nil,
			map[string]any{"distributed_at": nil},
			map[string]any{"distributed_at": now},
		); err != nil {
			// The month is claimed but unpaid. The orphan check surfaces
			// it and a re-invocation resumes the payouts.
			return nil, err
		}
	}

	result := &DistributionResult{
		RentalRecordID: rec.ID,
		PropertyID:     propertyID,
		MonthYear:      monthYear,
		NetIncomeCents: rec.NetIncomeCents,
	}
	for _, p := range payouts {
		if err := s.payHolder(ctx, rec, p); err != nil {
			// Holders already paid stay paid. The payout count now trails
			// the holder count, so the sweep reports this month and a
			// re-invocation resumes the remainder.
			utils.Logger.WithError(err).Errorf("CRITICAL: distribution %s/%s stopped at holder %s after paying %d holders",
				propertyID, monthYear, p.UserID, result.HoldersPaid)
			return result, err
		}
		if p.AmountCents > 0 {
			result.HoldersPaid++
			result.DistributedCents += p.AmountCents
		}
	}

	utils.Logger.Infof("Distributed %d cents of %s rental income for property %s to %d holders",
		result.DistributedCents, monthYear, propertyID, result.HoldersPaid)
	return result, nil
}

// missingPayouts returns the payouts not yet settled: no ledger
// transaction at all, or one still PENDING because a prior run stopped
// before crediting the holder.
func (s *DistributionService) missingPayouts(ctx context.Context, rec *models.RentalRecord, payouts []Payout) ([]Payout, error) {
	var missing []Payout
	for _, p := range payouts {
		existing, err := s.txnRepo.GetByReferenceID(ctx, rentalReference(rec, p.UserID))
		if err != nil {
			return nil, err
		}
		if existing == nil || existing.Status == models.TransactionStatusPending {
			missing = append(missing, p)
		}
	}
	return missing, nil
}

// payHolder settles one holder's payout: a PENDING ledger row, then the
// balance credit, then COMPLETED. The credit only ever happens behind a
// PENDING row, so an interrupted payout is resumed by finishing the row
// rather than guessing whether money moved. A zero-amount payout still
// gets its ledger row so the month's payout count stays auditable
// against the holder count.
func (s *DistributionService) payHolder(ctx context.Context, rec *models.RentalRecord, p Payout) error {
	meta, _ := json.Marshal(map[string]string{
		"month_year":       rec.MonthYear,
		"rental_record_id": rec.ID.String(),
	})
	propertyID := rec.PropertyID
	tokens := p.TokensOwned
	txn := &models.Transaction{
		ID:          uuid.New(),
		UserID:      p.UserID,
		PropertyID:  &propertyID,
		Type:        models.TransactionTypeRentalIncome,
		AmountCents: p.AmountCents,
		TokenAmount: &tokens,
		Status:      models.TransactionStatusPending,
		ReferenceID: rentalReference(rec, p.UserID),
		Metadata:    meta,
	}
	if err := s.txnRepo.Create(ctx, txn); err != nil {
		if !errors.Is(err, utils.ErrDuplicateReference) {
			return err
		}
		existing, gerr := s.txnRepo.GetByReferenceID(ctx, txn.ReferenceID)
		if gerr != nil {
			return gerr
		}
		if existing == nil || existing.Status != models.TransactionStatusPending {
			// A previous run already paid this holder.
			return nil
		}
		// Adopt the interrupted payout and finish it.
		txn = existing
	}

	if p.AmountCents > 0 {
		if err := s.balanceRepo.Credit(ctx, p.UserID, p.AmountCents); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, models.AuditCredit, models.TargetBalance, p.UserID, uuid.Nil,
			nil,
			map[string]any{"delta_cents": p.AmountCents, "month_year": rec.MonthYear, "property_id": rec.PropertyID},
		); err != nil {
			return err
		}
	}
	if err := s.txnRepo.UpdateStatus(ctx, txn.ID, models.TransactionStatusCompleted, nil); err != nil {
		return err
	}
	if p.AmountCents == 0 {
		return nil
	}

	var email string
	if balance, err := s.balanceRepo.GetByUser(ctx, p.UserID); err == nil && balance != nil {
		email = balance.Email
	}
	s.notifier.Notify(ctx, notifications.Event{
		UserID:      p.UserID.String(),
		Email:       email,
		Type:        notifications.EventRentalIncomePaid,
		AmountCents: p.AmountCents,
		Detail:      fmt.Sprintf("Rental income for %s has been credited to your balance.", rec.MonthYear),
	})
	return nil
}

func rentalReference(rec *models.RentalRecord, userID uuid.UUID) string {
	return fmt.Sprintf("rental-%s-%s-%s", rec.PropertyID, rec.MonthYear, userID)
}

// computePayouts splits net income pro-rata by tokens, flooring each
// holder's slice to whole cents and handing the residual to the largest
// stake. Shares arrive ordered tokens DESC then user id ASC, so the first
// entry is the residual winner and ties break to the lowest user id.
func computePayouts(netIncomeCents int64, shares []*models.Share) ([]Payout, int64) {
	var totalTokens int64
	for _, sh := range shares {
		totalTokens += sh.TokensOwned
	}
	if totalTokens == 0 || netIncomeCents <= 0 {
		return nil, totalTokens
	}

	payouts := make([]Payout, 0, len(shares))
	var distributed int64
	for _, sh := range shares {
		if sh.TokensOwned == 0 {
			continue
		}
		amount := netIncomeCents * sh.TokensOwned / totalTokens
		payouts = append(payouts, Payout{
			UserID:      sh.UserID,
			TokensOwned: sh.TokensOwned,
			AmountCents: amount,
		})
		distributed += amount
	}
	if residual := netIncomeCents - distributed; residual > 0 && len(payouts) > 0 {
		payouts[0].AmountCents += residual
	}
	return payouts, totalTokens
}
