package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/brickfolio/investment-service/internal/constants"
	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/notifications"
	"github.com/brickfolio/investment-service/internal/payments"
	"github.com/brickfolio/investment-service/internal/utils"
)

func withdrawReq(userID uuid.UUID, cents int64, requestID string) WithdrawalRequest {
	return WithdrawalRequest{
		UserID:           userID,
		AmountCents:      cents,
		PaymentMethodRef: "acct_investor",
		RequestID:        requestID,
	}
}

func TestProcessWithdrawalSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.seedBalance(t, user, 50_000)

	txnID, err := env.withdrawals.ProcessWithdrawal(ctx, withdrawReq(user, 20_000, "wd-1"))
	require.NoError(t, err)

	txn, err := env.store.Transactions().GetByID(ctx, txnID)
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusCompleted, txn.Status)
	require.Equal(t, models.TransactionTypeWithdrawal, txn.Type)

	bal, err := env.store.Balances().GetByUser(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(30_000), bal.BalanceCents)

	events := env.notifier.Events()
	require.Len(t, events, 1)
	require.Equal(t, notifications.EventWithdrawalCompleted, events[0].Type)
}

func TestProcessWithdrawalBelowMinimum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.seedBalance(t, user, 50_000)

	_, err := env.withdrawals.ProcessWithdrawal(ctx, withdrawReq(user, constants.MinWithdrawalCents-1, "wd-min"))
	require.ErrorIs(t, err, utils.ErrValidation)

	bal, err := env.store.Balances().GetByUser(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(50_000), bal.BalanceCents)
}

func TestProcessWithdrawalInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.seedBalance(t, user, 5_000)

	_, err := env.withdrawals.ProcessWithdrawal(ctx, withdrawReq(user, 20_000, "wd-poor"))
	require.ErrorIs(t, err, utils.ErrInsufficientFunds)
}

func TestProcessWithdrawalCurrencyMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.seedBalance(t, user, 50_000)

	req := withdrawReq(user, 20_000, "wd-eur")
	req.Currency = "eur"

	_, err := env.withdrawals.ProcessWithdrawal(ctx, req)
	require.ErrorIs(t, err, utils.ErrValidation)

	// Nothing written: no transaction, balance untouched.
	txn, err := env.store.Transactions().GetByReferenceID(ctx, "withdrawal-wd-eur")
	require.NoError(t, err)
	require.Nil(t, txn)

	bal, err := env.store.Balances().GetByUser(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(50_000), bal.BalanceCents)
}

func TestProcessWithdrawalMatchingCurrencyIsAccepted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.seedBalance(t, user, 50_000)

	req := withdrawReq(user, 20_000, "wd-usd")
	req.Currency = "USD" // case-insensitive against the balance's "usd"

	_, err := env.withdrawals.ProcessWithdrawal(ctx, req)
	require.NoError(t, err)
}

func TestProcessWithdrawalCarriesEmailIntoNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.seedBalance(t, user, 50_000)

	req := withdrawReq(user, 20_000, "wd-email")
	req.Email = "investor@example.com"

	_, err := env.withdrawals.ProcessWithdrawal(ctx, req)
	require.NoError(t, err)

	events := env.notifier.Events()
	require.Len(t, events, 1)
	require.Equal(t, notifications.EventWithdrawalCompleted, events[0].Type)
	require.Equal(t, "investor@example.com", events[0].Email)

	// The address sticks to the balance row for later sweep settlements.
	bal, err := env.store.Balances().GetByUser(ctx, user)
	require.NoError(t, err)
	require.Equal(t, "investor@example.com", bal.Email)
}

func TestProcessWithdrawalIdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.seedBalance(t, user, 50_000)

	first, err := env.withdrawals.ProcessWithdrawal(ctx, withdrawReq(user, 10_000, "wd-replay"))
	require.NoError(t, err)

	second, err := env.withdrawals.ProcessWithdrawal(ctx, withdrawReq(user, 10_000, "wd-replay"))
	require.NoError(t, err)
	require.Equal(t, first, second)

	bal, err := env.store.Balances().GetByUser(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(40_000), bal.BalanceCents, "the replay must not debit twice")
}

func TestProcessWithdrawalDeclineLeavesBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	env.seedBalance(t, user, 50_000)

	req := withdrawReq(user, 20_000, "wd-decline")
	req.PaymentMethodRef = payments.FakeAccountDeclined

	_, err := env.withdrawals.ProcessWithdrawal(ctx, req)
	require.ErrorIs(t, err, utils.ErrExternalServiceFailure)

	txn, err := env.store.Transactions().GetByReferenceID(ctx, "withdrawal-wd-decline")
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusFailed, txn.Status)

	bal, err := env.store.Balances().GetByUser(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(50_000), bal.BalanceCents)

	events := env.notifier.Events()
	require.Len(t, events, 1)
	require.Equal(t, notifications.EventWithdrawalFailed, events[0].Type)
}

func TestProcessWithdrawalTimeoutThenSweepSettles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	// Run the timed-out withdrawal on a clock old enough for the sweep's
	// cutoff to pick it up.
	past := time.Now().UTC().Add(-2 * constants.PendingWithdrawalCutoff)
	env.store.SetClock(func() time.Time { return past })
	env.seedBalance(t, user, 50_000)

	req := withdrawReq(user, 20_000, "wd-timeout")
	req.PaymentMethodRef = payments.FakeAccountTimeout

	txnID, err := env.withdrawals.ProcessWithdrawal(ctx, req)
	require.ErrorIs(t, err, utils.ErrExternalTimeout)
	require.NotEqual(t, uuid.Nil, txnID)

	txn, err := env.store.Transactions().GetByID(ctx, txnID)
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusPending, txn.Status)

	// Balance untouched until the outcome is known.
	bal, err := env.store.Balances().GetByUser(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(50_000), bal.BalanceCents)

	env.store.SetClock(func() time.Time { return time.Now().UTC() })
	require.NoError(t, env.withdrawals.RunReconciliationSweep(ctx))

	// The rail reports the transfer landed, so the sweep settles it.
	txn, err = env.store.Transactions().GetByID(ctx, txnID)
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusCompleted, txn.Status)

	bal, err = env.store.Balances().GetByUser(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(30_000), bal.BalanceCents)
}

func TestReconciliationSweepIsReEntrant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	past := time.Now().UTC().Add(-2 * constants.PendingWithdrawalCutoff)
	env.store.SetClock(func() time.Time { return past })
	env.seedBalance(t, user, 50_000)

	req := withdrawReq(user, 20_000, "wd-sweep-twice")
	req.PaymentMethodRef = payments.FakeAccountTimeout
	_, err := env.withdrawals.ProcessWithdrawal(ctx, req)
	require.ErrorIs(t, err, utils.ErrExternalTimeout)

	env.store.SetClock(func() time.Time { return time.Now().UTC() })
	require.NoError(t, env.withdrawals.RunReconciliationSweep(ctx))
	require.NoError(t, env.withdrawals.RunReconciliationSweep(ctx))

	bal, err := env.store.Balances().GetByUser(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(30_000), bal.BalanceCents, "a second sweep must not debit again")
}
