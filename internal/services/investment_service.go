package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/brickfolio/investment-service/internal/constants"
	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/notifications"
	"github.com/brickfolio/investment-service/internal/payments"
	"github.com/brickfolio/investment-service/internal/repositories"
	"github.com/brickfolio/investment-service/internal/utils"
)

// InvestmentRequest is a validated purchase order for property tokens.
// RequestID is the caller-supplied idempotency key: replays of the same
// request return the original transaction untouched.
type InvestmentRequest struct {
	UserID           uuid.UUID
	Email            string
	PropertyID       uuid.UUID
	TokenAmount      int64
	TotalCostCents   int64
	PaymentMethodRef string
	RequestID        string
}

// InvestmentService executes purchases as a compensated sequence:
// pending transaction → CAS token decrement → share upsert → balance
// debit → rail authorize → completed. Any failure after the decrement
// reverses what was applied and marks the transaction FAILED; if even the
// reversal fails, the transaction is flagged for the reconciliation
// sweep. Token conservation holds after every committed outcome.
type InvestmentService struct {
	propertyRepo repositories.PropertyRepository
	shareRepo    repositories.ShareRepository
	txnRepo      repositories.TransactionRepository
	balanceRepo  repositories.BalanceRepository
	audit        *AuditWriter
	fees         *FeeCalculator
	rail         payments.PaymentRail
	notifier     notifications.Notifier
}

func NewInvestmentService(
	propertyRepo repositories.PropertyRepository,
	shareRepo repositories.ShareRepository,
	txnRepo repositories.TransactionRepository,
	balanceRepo repositories.BalanceRepository,
	audit *AuditWriter,
	fees *FeeCalculator,
	rail payments.PaymentRail,
	notifier notifications.Notifier,
) *InvestmentService {
	return &InvestmentService{
		propertyRepo: propertyRepo,
		shareRepo:    shareRepo,
		txnRepo:      txnRepo,
		balanceRepo:  balanceRepo,
		audit:        audit,
		fees:         fees,
		rail:         rail,
		notifier:     notifier,
	}
}

// ProcessInvestment validates and executes a purchase, returning the
// ledger transaction id. Validation failures mutate nothing. A rail
// timeout leaves the transaction PENDING and returns ErrExternalTimeout
// alongside the id; the sweep resolves it later.
func (s *InvestmentService) ProcessInvestment(ctx context.Context, req InvestmentRequest) (uuid.UUID, error) {
	if err := s.validate(req); err != nil {
		return uuid.Nil, err
	}

	referenceID := purchaseReference(req.RequestID)
	if existing, err := s.txnRepo.GetByReferenceID(ctx, referenceID); err != nil {
		return uuid.Nil, err
	} else if existing != nil {
		utils.Logger.Infof("Replay of investment request %s; returning transaction %s (%s)", req.RequestID, existing.ID, existing.Status)
		return existing.ID, nil
	}

	property, err := s.propertyRepo.GetByID(ctx, req.PropertyID)
	if err != nil {
		return uuid.Nil, err
	}
	if property == nil {
		return uuid.Nil, fmt.Errorf("property %s: %w", req.PropertyID, utils.ErrNotFound)
	}
	if property.Status != models.PropertyStatusActive {
		return uuid.Nil, fmt.Errorf("property %s is %s: %w", req.PropertyID, property.Status, utils.ErrValidation)
	}

	breakdown, err := s.fees.CalculateFees(req.TotalCostCents)
	if err != nil {
		return uuid.Nil, err
	}
	feeMeta, _ := json.Marshal(map[string]any{
		"platform_fee_cents":   breakdown.PlatformFeeCents,
		"processing_fee_cents": breakdown.ProcessingFeeCents,
		"net_amount_cents":     breakdown.NetAmountCents,
	})

	txn := &models.Transaction{
		ID:          uuid.New(),
		UserID:      req.UserID,
		PropertyID:  &req.PropertyID,
		Type:        models.TransactionTypePurchase,
		AmountCents: req.TotalCostCents,
		TokenAmount: &req.TokenAmount,
		Status:      models.TransactionStatusPending,
		ReferenceID: referenceID,
		Metadata:    feeMeta,
	}
	if err := s.txnRepo.Create(ctx, txn); err != nil {
		if errors.Is(err, utils.ErrDuplicateReference) {
			// Lost a creation race with a replay; defer to the winner.
			if existing, gerr := s.txnRepo.GetByReferenceID(ctx, referenceID); gerr == nil && existing != nil {
				return existing.ID, nil
			}
		}
		return uuid.Nil, err
	}

	// Step 1: claim the tokens. The mutate runs inside the CAS loop, so
	// the availability check and the decrement are a single atomic unit.
	var before, after int64
	err = s.propertyRepo.UpdateWithRetry(ctx, req.PropertyID, func(p *models.Property) error {
		if p.Status != models.PropertyStatusActive {
			return fmt.Errorf("property %s is %s: %w", p.ID, p.Status, utils.ErrValidation)
		}
		if p.AvailableTokens < req.TokenAmount {
			return fmt.Errorf("requested %d tokens, %d available: %w", req.TokenAmount, p.AvailableTokens, utils.ErrInsufficientTokens)
		}
		before = p.AvailableTokens
		p.AvailableTokens -= req.TokenAmount
		after = p.AvailableTokens
		return nil
	})
	if err != nil {
		s.markFailed(ctx, txn.ID, reasonFor(err))
		return uuid.Nil, err
	}

	if err := s.audit.Record(ctx, models.AuditUpdate, models.TargetProperty, req.PropertyID, req.UserID,
		map[string]int64{"available_tokens": before},
		map[string]int64{"available_tokens": after},
	); err != nil {
		s.compensate(ctx, txn, req, compensateTokens, constants.ReasonAuditWriteFailed)
		return uuid.Nil, err
	}

	// Step 2: credit the buyer's holding.
	oldShare, err := s.shareRepo.GetByUserAndProperty(ctx, req.UserID, req.PropertyID)
	if err != nil {
		s.compensate(ctx, txn, req, compensateTokens, constants.ReasonShareUpsertFailed)
		return uuid.Nil, err
	}
	newShare, err := s.shareRepo.Upsert(ctx, req.UserID, req.PropertyID, req.TokenAmount, req.TotalCostCents)
	if err != nil {
		s.compensate(ctx, txn, req, compensateTokens, constants.ReasonShareUpsertFailed)
		return uuid.Nil, fmt.Errorf("%s: %w", constants.ReasonShareUpsertFailed, err)
	}
	if err := s.audit.Record(ctx, models.AuditUpdate, models.TargetShare, newShare.ID, req.UserID, oldShare, newShare); err != nil {
		s.compensate(ctx, txn, req, compensateTokens|compensateShare, constants.ReasonAuditWriteFailed)
		return uuid.Nil, err
	}

	// Step 3: take the money.
	if err := s.balanceRepo.Debit(ctx, req.UserID, req.TotalCostCents); err != nil {
		s.compensate(ctx, txn, req, compensateTokens|compensateShare, reasonFor(err))
		return uuid.Nil, err
	}
	if err := s.audit.Record(ctx, models.AuditDebit, models.TargetBalance, req.UserID, req.UserID,
		map[string]int64{"delta_cents": -req.TotalCostCents}, nil,
	); err != nil {
		s.compensate(ctx, txn, req, compensateTokens|compensateShare|compensateBalance, constants.ReasonAuditWriteFailed)
		return uuid.Nil, err
	}

	railCtx, cancel := context.WithTimeout(ctx, constants.RailCallTimeout)
	defer cancel()
	if err := s.rail.Authorize(railCtx, req.PaymentMethodRef, req.TotalCostCents, txn.ID.String()); err != nil {
		if errors.Is(err, utils.ErrExternalTimeout) {
			// The rail may or may not have authorized. Do not guess:
			// keep everything applied, leave the transaction PENDING and
			// let the sweep resolve it against the idempotent rail.
			s.flagForReconciliation(ctx, txn)
			return txn.ID, err
		}
		s.compensate(ctx, txn, req, compensateTokens|compensateShare|compensateBalance, constants.ReasonPaymentDeclined)
		return uuid.Nil, err
	}

	// Step 4: finalize.
	if err := s.txnRepo.UpdateStatus(ctx, txn.ID, models.TransactionStatusCompleted, nil); err != nil {
		s.compensate(ctx, txn, req, compensateTokens|compensateShare|compensateBalance, constants.ReasonCompensationSucceeded)
		return uuid.Nil, err
	}
	if err := s.audit.Record(ctx, models.AuditUpdate, models.TargetTransaction, txn.ID, req.UserID,
		map[string]string{"status": string(models.TransactionStatusPending)},
		map[string]string{"status": string(models.TransactionStatusCompleted)},
	); err != nil {
		// The purchase has committed; reversing a completed transaction
		// would forge ledger history. Flag it and fail loudly instead.
		s.flagForReconciliation(ctx, txn)
		return uuid.Nil, err
	}

	s.notifier.Notify(ctx, notifications.Event{
		UserID:      req.UserID.String(),
		Email:       req.Email,
		Type:        notifications.EventInvestmentCompleted,
		AmountCents: req.TotalCostCents,
		Detail:      fmt.Sprintf("You now hold %d more tokens of property %s.", req.TokenAmount, req.PropertyID),
	})

	return txn.ID, nil
}

func (s *InvestmentService) validate(req InvestmentRequest) error {
	if req.RequestID == "" {
		return fmt.Errorf("request id is required: %w", utils.ErrValidation)
	}
	if req.UserID == uuid.Nil || req.PropertyID == uuid.Nil {
		return fmt.Errorf("user id and property id are required: %w", utils.ErrValidation)
	}
	if req.TokenAmount <= 0 {
		return fmt.Errorf("token amount must be positive: %w", utils.ErrValidation)
	}
	if req.TotalCostCents < constants.MinInvestmentCents || req.TotalCostCents > constants.MaxInvestmentCents {
		return fmt.Errorf("total cost %d outside [%d, %d]: %w",
			req.TotalCostCents, constants.MinInvestmentCents, constants.MaxInvestmentCents, utils.ErrValidation)
	}
	return nil
}

type compensationSteps int

const (
	compensateTokens compensationSteps = 1 << iota
	compensateShare
	compensateBalance
)

// compensate reverses applied steps in the opposite order of application
// and marks the transaction FAILED with the given reason. If any reversal
// fails the transaction is flagged for the sweep instead; tokens must
// never stay decremented without a share credit or a recorded failure.
func (s *InvestmentService) compensate(ctx context.Context, txn *models.Transaction, req InvestmentRequest, steps compensationSteps, reason string) {
	ok := true

	if steps&compensateBalance != 0 {
		if err := s.balanceRepo.Credit(ctx, req.UserID, req.TotalCostCents); err != nil {
			utils.Logger.WithError(err).Errorf("CRITICAL: failed to refund balance for transaction %s", txn.ID)
			ok = false
		}
	}
	if steps&compensateShare != 0 {
		if _, err := s.shareRepo.Upsert(ctx, req.UserID, req.PropertyID, -req.TokenAmount, -req.TotalCostCents); err != nil {
			utils.Logger.WithError(err).Errorf("CRITICAL: failed to reverse share credit for transaction %s", txn.ID)
			ok = false
		}
	}
	if steps&compensateTokens != 0 {
		err := s.propertyRepo.UpdateWithRetry(ctx, req.PropertyID, func(p *models.Property) error {
			p.AvailableTokens += req.TokenAmount
			if p.AvailableTokens > p.TotalTokens {
				return fmt.Errorf("compensation would exceed total supply on property %s: %w", p.ID, utils.ErrConcurrencyConflict)
			}
			return nil
		})
		if err != nil {
			utils.Logger.WithError(err).Errorf("CRITICAL: failed to return %d tokens to property %s for transaction %s", req.TokenAmount, req.PropertyID, txn.ID)
			ok = false
		}
	}

	if !ok {
		s.flagForReconciliation(ctx, txn)
		return
	}
	s.markFailed(ctx, txn.ID, reason)
}

func (s *InvestmentService) markFailed(ctx context.Context, id uuid.UUID, reason string) {
	if err := s.txnRepo.UpdateStatus(ctx, id, models.TransactionStatusFailed, &reason); err != nil {
		utils.Logger.WithError(err).Errorf("Failed to mark transaction %s FAILED (%s)", id, reason)
	}
}

func (s *InvestmentService) flagForReconciliation(ctx context.Context, txn *models.Transaction) {
	merged := map[string]any{}
	if len(txn.Metadata) > 0 {
		_ = json.Unmarshal(txn.Metadata, &merged)
	}
	merged[models.MetadataKeyNeedsReconciliation] = true

	meta, err := json.Marshal(merged)
	if err == nil {
		err = s.txnRepo.SetMetadata(ctx, txn.ID, meta)
	}
	if err != nil {
		utils.Logger.WithError(err).Errorf("CRITICAL: failed to flag transaction %s for reconciliation", txn.ID)
	}
}

func purchaseReference(requestID string) string {
	return "purchase-" + requestID
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, utils.ErrInsufficientTokens):
		return constants.ReasonInsufficientTokens
	case errors.Is(err, utils.ErrInsufficientFunds):
		return constants.ReasonInsufficientFunds
	case errors.Is(err, utils.ErrValidation):
		return constants.ReasonPropertyNotActive
	default:
		return err.Error()
	}
}
