package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brickfolio/investment-service/internal/constants"
	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/payments"
	"github.com/brickfolio/investment-service/internal/repositories"
	"github.com/brickfolio/investment-service/internal/utils"
)

// CreatePropertyRequest lists a new property in DRAFT.
type CreatePropertyRequest struct {
	Name               string
	Address            string
	City               string
	State              string
	TotalTokens        int64
	PricePerTokenCents int64
}

// RentalRecordRequest reports one month of rental income for a property.
type RentalRecordRequest struct {
	PropertyID       uuid.UUID
	MonthYear        string
	TotalIncomeCents int64
	ExpensesCents    int64
}

// DepositRequest funds a user's internal balance from an external source.
type DepositRequest struct {
	UserID           uuid.UUID
	Email            string
	AmountCents      int64
	PaymentMethodRef string
	RequestID        string
}

// PropertyService owns the property lifecycle, rental record intake, and
// deposits.
type PropertyService struct {
	propRepo    repositories.PropertyRepository
	rentalRepo  repositories.RentalRecordRepository
	txnRepo     repositories.TransactionRepository
	balanceRepo repositories.BalanceRepository
	audit       *AuditWriter
	rail        payments.PaymentRail
}

func NewPropertyService(
	propRepo repositories.PropertyRepository,
	rentalRepo repositories.RentalRecordRepository,
	txnRepo repositories.TransactionRepository,
	balanceRepo repositories.BalanceRepository,
	audit *AuditWriter,
	rail payments.PaymentRail,
) *PropertyService {
	return &PropertyService{
		propRepo:    propRepo,
		rentalRepo:  rentalRepo,
		txnRepo:     txnRepo,
		balanceRepo: balanceRepo,
		audit:       audit,
		rail:        rail,
	}
}

// CreateProperty lists a property in DRAFT, with the full token supply
// available. Tokens cannot be bought until the property is activated.
func (s *PropertyService) CreateProperty(ctx context.Context, req CreatePropertyRequest, actorID uuid.UUID) (*models.Property, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required: %w", utils.ErrValidation)
	}
	if req.TotalTokens <= 0 {
		return nil, fmt.Errorf("total tokens must be positive: %w", utils.ErrValidation)
	}
	if req.PricePerTokenCents <= 0 {
		return nil, fmt.Errorf("price per token must be positive: %w", utils.ErrValidation)
	}

	p := &models.Property{
		ID:                 uuid.New(),
		Name:               req.Name,
		Address:            req.Address,
		City:               req.City,
		State:              req.State,
		TotalTokens:        req.TotalTokens,
		AvailableTokens:    req.TotalTokens,
		PricePerTokenCents: req.PricePerTokenCents,
		Status:             models.PropertyStatusDraft,
	}
	if err := s.propRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	if err := s.audit.Record(ctx, models.AuditCreate, models.TargetProperty, p.ID, actorID, nil, p); err != nil {
		return nil, err
	}
	utils.Logger.Infof("Listed property %s (%s) with %d tokens at %d cents", p.ID, p.Name, p.TotalTokens, p.PricePerTokenCents)
	return p, nil
}

// SetPropertyStatus moves a property between lifecycle states. DRAFT and
// SUSPENDED can go ACTIVE; ACTIVE can go SUSPENDED. Other moves are
// rejected.
func (s *PropertyService) SetPropertyStatus(ctx context.Context, id uuid.UUID, next models.PropertyStatusType, actorID uuid.UUID) (*models.Property, error) {
	var before, after models.PropertyStatusType
	err := s.propRepo.UpdateWithRetry(ctx, id, func(p *models.Property) error {
		if !validStatusMove(p.Status, next) {
			return fmt.Errorf("property %s cannot move %s -> %s: %w", id, p.Status, next, utils.ErrValidation)
		}
		before, after = p.Status, next
		p.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.audit.Record(ctx, models.AuditUpdate, models.TargetProperty, id, actorID,
		map[string]string{"status": string(before)},
		map[string]string{"status": string(after)},
	); err != nil {
		return nil, err
	}
	return s.propRepo.GetByID(ctx, id)
}

func validStatusMove(from, to models.PropertyStatusType) bool {
	switch from {
	case models.PropertyStatusDraft:
		return to == models.PropertyStatusActive
	case models.PropertyStatusActive:
		return to == models.PropertyStatusSuspended
	case models.PropertyStatusSuspended:
		return to == models.PropertyStatusActive
	}
	return false
}

// ListProperties returns every listed property, regardless of status.
func (s *PropertyService) ListProperties(ctx context.Context) ([]*models.Property, error) {
	return s.propRepo.List(ctx)
}

// GetProperty fetches one property or ErrNotFound.
func (s *PropertyService) GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	p, err := s.propRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("property %s: %w", id, utils.ErrNotFound)
	}
	return p, nil
}

// RecordRentalIncome files one month of income for a property. Net income
// must come out non-negative; a month can only be filed once.
func (s *PropertyService) RecordRentalIncome(ctx context.Context, req RentalRecordRequest, actorID uuid.UUID) (*models.RentalRecord, error) {
	if req.PropertyID == uuid.Nil {
		return nil, fmt.Errorf("property id is required: %w", utils.ErrValidation)
	}
	if _, err := time.Parse(models.MonthYearLayout, req.MonthYear); err != nil {
		return nil, fmt.Errorf("month %q is not in YYYY-MM form: %w", req.MonthYear, utils.ErrValidation)
	}
	if req.TotalIncomeCents < 0 || req.ExpensesCents < 0 {
		return nil, fmt.Errorf("income and expenses must be non-negative: %w", utils.ErrValidation)
	}
	net := req.TotalIncomeCents - req.ExpensesCents
	if net < 0 {
		return nil, fmt.Errorf("expenses %d exceed income %d: %w", req.ExpensesCents, req.TotalIncomeCents, utils.ErrValidation)
	}

	prop, err := s.propRepo.GetByID(ctx, req.PropertyID)
	if err != nil {
		return nil, err
	}
	if prop == nil {
		return nil, fmt.Errorf("property %s: %w", req.PropertyID, utils.ErrNotFound)
	}

	rec := &models.RentalRecord{
		ID:               uuid.New(),
		PropertyID:       req.PropertyID,
		MonthYear:        req.MonthYear,
		TotalIncomeCents: req.TotalIncomeCents,
		ExpensesCents:    req.ExpensesCents,
		NetIncomeCents:   net,
	}
	if err := s.rentalRepo.Create(ctx, rec); err != nil {
		return nil, err
	}
	if err := s.audit.Record(ctx, models.AuditCreate, models.TargetRentalRecord, rec.ID, actorID, nil, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Deposit charges the external payment method and credits the internal
// balance, recording a completed DEPOSIT transaction. RequestID is the
// idempotency key.
func (s *PropertyService) Deposit(ctx context.Context, req DepositRequest) (uuid.UUID, error) {
	if req.RequestID == "" {
		return uuid.Nil, fmt.Errorf("request id is required: %w", utils.ErrValidation)
	}
	if req.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("user id is required: %w", utils.ErrValidation)
	}
	if req.AmountCents <= 0 {
		return uuid.Nil, fmt.Errorf("amount must be positive: %w", utils.ErrValidation)
	}

	referenceID := "deposit-" + req.RequestID
	if existing, err := s.txnRepo.GetByReferenceID(ctx, referenceID); err != nil {
		return uuid.Nil, err
	} else if existing != nil {
		return existing.ID, nil
	}

	railCtx, cancel := context.WithTimeout(ctx, constants.RailCallTimeout)
	defer cancel()
	if err := s.rail.Collect(railCtx, req.PaymentMethodRef, req.AmountCents, referenceID); err != nil {
		return uuid.Nil, err
	}

	if _, err := s.balanceRepo.GetOrCreate(ctx, req.UserID, constants.DefaultCurrency, req.Email); err != nil {
		return uuid.Nil, err
	}
	if err := s.balanceRepo.Credit(ctx, req.UserID, req.AmountCents); err != nil {
		return uuid.Nil, err
	}
	if err := s.audit.Record(ctx, models.AuditCredit, models.TargetBalance, req.UserID, req.UserID,
		nil, map[string]int64{"delta_cents": req.AmountCents},
	); err != nil {
		return uuid.Nil, err
	}

	meta, _ := json.Marshal(map[string]string{"payment_method_ref": req.PaymentMethodRef})
	txn := &models.Transaction{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Type:        models.TransactionTypeDeposit,
		AmountCents: req.AmountCents,
		Status:      models.TransactionStatusCompleted,
		ReferenceID: referenceID,
		Metadata:    meta,
	}
	if err := s.txnRepo.Create(ctx, txn); err != nil {
		if errors.Is(err, utils.ErrDuplicateReference) {
			if existing, gerr := s.txnRepo.GetByReferenceID(ctx, referenceID); gerr == nil && existing != nil {
				return existing.ID, nil
			}
		}
		return uuid.Nil, err
	}
	return txn.ID, nil
}
