package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brickfolio/investment-service/internal/constants"
	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/notifications"
	"github.com/brickfolio/investment-service/internal/payments"
	"github.com/brickfolio/investment-service/internal/repositories"
	"github.com/brickfolio/investment-service/internal/utils"
)

// WithdrawalRequest asks to move internal balance out to an external
// account. RequestID is the idempotency key. Currency is optional; when
// given it must match the balance's currency.
type WithdrawalRequest struct {
	UserID           uuid.UUID
	Email            string
	AmountCents      int64
	Currency         string
	PaymentMethodRef string
	RequestID        string
}

// WithdrawalService executes payouts. The balance is debited only after
// the rail confirms the transfer; a rail timeout leaves the transaction
// PENDING for the reconciliation sweep instead of guessing the outcome.
type WithdrawalService struct {
	txnRepo     repositories.TransactionRepository
	balanceRepo repositories.BalanceRepository
	rentalRepo  repositories.RentalRecordRepository
	audit       *AuditWriter
	rail        payments.PaymentRail
	notifier    notifications.Notifier
}

func NewWithdrawalService(
	txnRepo repositories.TransactionRepository,
	balanceRepo repositories.BalanceRepository,
	rentalRepo repositories.RentalRecordRepository,
	audit *AuditWriter,
	rail payments.PaymentRail,
	notifier notifications.Notifier,
) *WithdrawalService {
	return &WithdrawalService{
		txnRepo:     txnRepo,
		balanceRepo: balanceRepo,
		rentalRepo:  rentalRepo,
		audit:       audit,
		rail:        rail,
		notifier:    notifier,
	}
}

// ProcessWithdrawal validates and executes a payout, returning the ledger
// transaction id. On rail timeout the id is returned with
// ErrExternalTimeout and the transaction stays PENDING.
func (s *WithdrawalService) ProcessWithdrawal(ctx context.Context, req WithdrawalRequest) (uuid.UUID, error) {
	if req.RequestID == "" {
		return uuid.Nil, fmt.Errorf("request id is required: %w", utils.ErrValidation)
	}
	if req.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("user id is required: %w", utils.ErrValidation)
	}
	if req.AmountCents < constants.MinWithdrawalCents {
		return uuid.Nil, fmt.Errorf("amount %d below minimum %d: %w", req.AmountCents, constants.MinWithdrawalCents, utils.ErrValidation)
	}
	if req.PaymentMethodRef == "" {
		return uuid.Nil, fmt.Errorf("payment method is required: %w", utils.ErrValidation)
	}

	referenceID := "withdrawal-" + req.RequestID
	if existing, err := s.txnRepo.GetByReferenceID(ctx, referenceID); err != nil {
		return uuid.Nil, err
	} else if existing != nil {
		return existing.ID, nil
	}

	balance, err := s.balanceRepo.GetByUser(ctx, req.UserID)
	if err != nil {
		return uuid.Nil, err
	}
	if balance == nil {
		return uuid.Nil, fmt.Errorf("no balance for user %s: %w", req.UserID, utils.ErrNotFound)
	}
	if req.Currency != "" && !strings.EqualFold(req.Currency, balance.Currency) {
		return uuid.Nil, fmt.Errorf("requested currency %s but balance is held in %s: %w", req.Currency, balance.Currency, utils.ErrValidation)
	}
	if balance.BalanceCents < req.AmountCents {
		return uuid.Nil, fmt.Errorf("balance %d below requested %d: %w", balance.BalanceCents, req.AmountCents, utils.ErrInsufficientFunds)
	}
	if req.Email != "" && req.Email != balance.Email {
		// Keep the address on file current; the sweep may settle this
		// withdrawal long after the request is gone.
		if _, err := s.balanceRepo.GetOrCreate(ctx, req.UserID, balance.Currency, req.Email); err != nil {
			return uuid.Nil, err
		}
	}

	meta, _ := json.Marshal(map[string]string{"payment_method_ref": req.PaymentMethodRef})
	txn := &models.Transaction{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Type:        models.TransactionTypeWithdrawal,
		AmountCents: req.AmountCents,
		Status:      models.TransactionStatusPending,
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

	railCtx, cancel := context.WithTimeout(ctx, constants.RailCallTimeout)
	defer cancel()
	err = s.rail.Transfer(railCtx, req.PaymentMethodRef, req.AmountCents, txn.ID.String())
	switch {
	case err == nil:
		return txn.ID, s.settle(ctx, txn, req.UserID, req.AmountCents)
	case errors.Is(err, utils.ErrExternalTimeout):
		utils.Logger.Warnf("Rail timed out for withdrawal %s; leaving PENDING for the sweep", txn.ID)
		return txn.ID, err
	default:
		reason := constants.ReasonPaymentDeclined
		s.markFailed(ctx, txn, reason)
		return uuid.Nil, err
	}
}

// settle debits the balance and completes the transaction after the rail
// has confirmed the money moved.
func (s *WithdrawalService) settle(ctx context.Context, txn *models.Transaction, userID uuid.UUID, amountCents int64) error {
	if err := s.balanceRepo.Debit(ctx, userID, amountCents); err != nil {
		// The transfer went out but the internal debit failed; this must
		// be repaired by hand, never hidden.
		utils.Logger.WithError(err).Errorf("CRITICAL: rail transfer for withdrawal %s succeeded but balance debit failed", txn.ID)
		meta, merr := json.Marshal(map[string]any{models.MetadataKeyNeedsReconciliation: true})
		if merr == nil {
			_ = s.txnRepo.SetMetadata(ctx, txn.ID, meta)
		}
		return err
	}
	if err := s.audit.Record(ctx, models.AuditDebit, models.TargetBalance, userID, userID,
		map[string]int64{"delta_cents": -amountCents}, nil,
	); err != nil {
		return err
	}
	if err := s.txnRepo.UpdateStatus(ctx, txn.ID, models.TransactionStatusCompleted, nil); err != nil {
		return err
	}
	if err := s.audit.Record(ctx, models.AuditUpdate, models.TargetTransaction, txn.ID, userID,
		map[string]string{"status": string(models.TransactionStatusPending)},
		map[string]string{"status": string(models.TransactionStatusCompleted)},
	); err != nil {
		return err
	}

	s.notifier.Notify(ctx, notifications.Event{
		UserID:      userID.String(),
		Email:       s.emailFor(ctx, userID),
		Type:        notifications.EventWithdrawalCompleted,
		AmountCents: amountCents,
		Detail:      "Your withdrawal is on its way to your bank.",
	})
	return nil
}

func (s *WithdrawalService) markFailed(ctx context.Context, txn *models.Transaction, reason string) {
	if err := s.txnRepo.UpdateStatus(ctx, txn.ID, models.TransactionStatusFailed, &reason); err != nil {
		utils.Logger.WithError(err).Errorf("Failed to mark withdrawal %s FAILED", txn.ID)
		return
	}
	s.notifier.Notify(ctx, notifications.Event{
		UserID:      txn.UserID.String(),
		Email:       s.emailFor(ctx, txn.UserID),
		Type:        notifications.EventWithdrawalFailed,
		AmountCents: txn.AmountCents,
		Detail:      "Your withdrawal could not be processed. Reason: " + reason,
	})
}

// emailFor reads the contact email off the balance row. The sweep settles
// withdrawals long after the request, so the address on file is the only
// one available.
func (s *WithdrawalService) emailFor(ctx context.Context, userID uuid.UUID) string {
	balance, err := s.balanceRepo.GetByUser(ctx, userID)
	if err != nil || balance == nil {
		return ""
	}
	return balance.Email
}

// RunReconciliationSweep resolves withdrawals stuck PENDING past the
// cutoff by asking the rail for the authoritative outcome, and reports
// transactions and rental records flagged for manual repair. It is safe
// to run concurrently with live traffic and with itself: settlement goes
// through the same one-way status update, so a race settles exactly once.
func (s *WithdrawalService) RunReconciliationSweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-constants.PendingWithdrawalCutoff)
	stuck, err := s.txnRepo.FindPendingOlderThan(ctx, models.TransactionTypeWithdrawal, cutoff)
	if err != nil {
		return fmt.Errorf("could not list pending withdrawals: %w", err)
	}
	if len(stuck) > 0 {
		utils.Logger.Infof("Reconciliation sweep: %d pending withdrawals to re-check", len(stuck))
	}

	for _, txn := range stuck {
		ref := paymentMethodRefFrom(txn)
		state, err := s.rail.TransferStatus(ctx, ref, txn.AmountCents, txn.ID.String())
		if err != nil {
			utils.Logger.WithError(err).Warnf("Sweep could not resolve withdrawal %s; will retry next run", txn.ID)
			continue
		}
		switch state {
		case payments.TransferStateSucceeded:
			if err := s.settle(ctx, txn, txn.UserID, txn.AmountCents); err != nil {
				utils.Logger.WithError(err).Errorf("Sweep failed to settle withdrawal %s", txn.ID)
			} else {
				utils.Logger.Infof("Sweep settled withdrawal %s", txn.ID)
			}
		case payments.TransferStateFailed:
			s.markFailed(ctx, txn, constants.ReasonPaymentDeclined)
			utils.Logger.Infof("Sweep marked withdrawal %s FAILED", txn.ID)
		default:
			utils.Logger.Warnf("Withdrawal %s still unresolved on the rail", txn.ID)
		}
	}

	// Flagged work is reported, not auto-repaired; money already moved
	// and fixing it needs a human decision.
	flagged, err := s.txnRepo.FindNeedingReconciliation(ctx)
	if err != nil {
		return fmt.Errorf("could not list flagged transactions: %w", err)
	}
	for _, txn := range flagged {
		utils.Logger.Errorf("RECONCILE: transaction %s (type=%s, status=%s, amount_cents=%d) needs manual repair",
			txn.ID, txn.Type, txn.Status, txn.AmountCents)
	}

	orphaned, err := s.rentalRepo.FindDistributedWithoutPayouts(ctx)
	if err != nil {
		return fmt.Errorf("could not list orphaned rental claims: %w", err)
	}
	for _, rec := range orphaned {
		utils.Logger.Errorf("RECONCILE: rental record %s (property=%s, month=%s) is claimed but has no payouts",
			rec.ID, rec.PropertyID, rec.MonthYear)
	}
	return nil
}

func paymentMethodRefFrom(txn *models.Transaction) string {
	if txn.Metadata == nil {
		return ""
	}
	var meta map[string]any
	if err := json.Unmarshal(txn.Metadata, &meta); err != nil {
		return ""
	}
	ref, _ := meta["payment_method_ref"].(string)
	return ref
}
