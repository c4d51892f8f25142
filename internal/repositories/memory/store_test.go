package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/utils"
)

func TestShareUpsertClampsAtZero(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	user, prop := uuid.New(), uuid.New()

	sh, err := store.Shares().Upsert(ctx, user, prop, 100, 10_000)
	require.NoError(t, err)
	require.Equal(t, int64(100), sh.TokensOwned)

	// Over-reversal clamps instead of going negative.
	sh, err = store.Shares().Upsert(ctx, user, prop, -150, -15_000)
	require.NoError(t, err)
	require.Zero(t, sh.TokensOwned)
	require.Zero(t, sh.PurchasePriceCents)
}

func TestTransactionCreateRejectsDuplicateReference(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	txn := &models.Transaction{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Type:        models.TransactionTypeDeposit,
		AmountCents: 100,
		Status:      models.TransactionStatusPending,
		ReferenceID: "dup-ref",
	}
	require.NoError(t, store.Transactions().Create(ctx, txn))

	clone := *txn
	clone.ID = uuid.New()
	require.ErrorIs(t, store.Transactions().Create(ctx, &clone), utils.ErrDuplicateReference)
}

func TestTransactionStatusIsOneWay(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	txn := &models.Transaction{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Type:        models.TransactionTypeWithdrawal,
		AmountCents: 100,
		Status:      models.TransactionStatusPending,
		ReferenceID: "one-way",
	}
	require.NoError(t, store.Transactions().Create(ctx, txn))
	require.NoError(t, store.Transactions().UpdateStatus(ctx, txn.ID, models.TransactionStatusCompleted, nil))

	err := store.Transactions().UpdateStatus(ctx, txn.ID, models.TransactionStatusFailed, nil)
	require.ErrorIs(t, err, utils.ErrNoRowsUpdated)

	got, err := store.Transactions().GetByID(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, models.TransactionStatusCompleted, got.Status)
}

func TestRentalClaimIsExactlyOnce(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	rec := &models.RentalRecord{
		ID:             uuid.New(),
		PropertyID:     uuid.New(),
		MonthYear:      "2026-07",
		NetIncomeCents: 1000,
	}
	require.NoError(t, store.RentalRecords().Create(ctx, rec))

	require.NoError(t, store.RentalRecords().Claim(ctx, rec.ID))
	require.ErrorIs(t, store.RentalRecords().Claim(ctx, rec.ID), utils.ErrAlreadyDistributed)
}

func TestBalanceDebitNeverOverdraws(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	user := uuid.New()

	_, err := store.Balances().GetOrCreate(ctx, user, "usd", "investor@example.com")
	require.NoError(t, err)
	require.NoError(t, store.Balances().Credit(ctx, user, 500))

	require.ErrorIs(t, store.Balances().Debit(ctx, user, 501), utils.ErrInsufficientFunds)
	require.NoError(t, store.Balances().Debit(ctx, user, 500))

	b, err := store.Balances().GetByUser(ctx, user)
	require.NoError(t, err)
	require.Zero(t, b.BalanceCents)
}
