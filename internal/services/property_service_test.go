package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/payments"
	"github.com/brickfolio/investment-service/internal/utils"
)

func TestCreatePropertyStartsDraft(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := uuid.New()

	p, err := env.properties.CreateProperty(ctx, CreatePropertyRequest{
		Name:               "12 Maple St",
		Address:            "12 Maple St",
		City:               "Austin",
		State:              "TX",
		TotalTokens:        1000,
		PricePerTokenCents: 100,
	}, admin)
	require.NoError(t, err)
	require.Equal(t, models.PropertyStatusDraft, p.Status)
	require.Equal(t, p.TotalTokens, p.AvailableTokens)

	audits, err := env.store.AuditLog().FindByTarget(ctx, models.TargetProperty, p.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	require.Equal(t, models.AuditCreate, audits[0].Action)
	require.Equal(t, admin, audits[0].ActorID)
}

func TestSetPropertyStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := uuid.New()

	p, err := env.properties.CreateProperty(ctx, CreatePropertyRequest{
		Name: "12 Maple St", Address: "a", City: "c", State: "TX",
		TotalTokens: 1000, PricePerTokenCents: 100,
	}, admin)
	require.NoError(t, err)

	// DRAFT cannot be suspended, only activated.
	_, err = env.properties.SetPropertyStatus(ctx, p.ID, models.PropertyStatusSuspended, admin)
	require.ErrorIs(t, err, utils.ErrValidation)

	active, err := env.properties.SetPropertyStatus(ctx, p.ID, models.PropertyStatusActive, admin)
	require.NoError(t, err)
	require.Equal(t, models.PropertyStatusActive, active.Status)

	suspended, err := env.properties.SetPropertyStatus(ctx, p.ID, models.PropertyStatusSuspended, admin)
	require.NoError(t, err)
	require.Equal(t, models.PropertyStatusSuspended, suspended.Status)

	// And back to ACTIVE.
	reactivated, err := env.properties.SetPropertyStatus(ctx, p.ID, models.PropertyStatusActive, admin)
	require.NoError(t, err)
	require.Equal(t, models.PropertyStatusActive, reactivated.Status)
}

func TestRecordRentalIncome(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := uuid.New()
	prop := env.seedProperty(t, 1000, 100)

	rec, err := env.properties.RecordRentalIncome(ctx, RentalRecordRequest{
		PropertyID:       prop.ID,
		MonthYear:        "2026-07",
		TotalIncomeCents: 10_000,
		ExpensesCents:    2_500,
	}, admin)
	require.NoError(t, err)
	require.Equal(t, int64(7_500), rec.NetIncomeCents)
	require.Nil(t, rec.DistributedAt)

	// Same month again is rejected.
	_, err = env.properties.RecordRentalIncome(ctx, RentalRecordRequest{
		PropertyID:       prop.ID,
		MonthYear:        "2026-07",
		TotalIncomeCents: 9_000,
	}, admin)
	require.ErrorIs(t, err, utils.ErrDuplicateReference)
}

func TestRecordRentalIncomeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := uuid.New()
	prop := env.seedProperty(t, 1000, 100)

	cases := []RentalRecordRequest{
		{PropertyID: prop.ID, MonthYear: "07/2026", TotalIncomeCents: 1000},
		{PropertyID: prop.ID, MonthYear: "2026-07", TotalIncomeCents: -1},
		{PropertyID: prop.ID, MonthYear: "2026-07", TotalIncomeCents: 1000, ExpensesCents: 2000},
		{PropertyID: uuid.Nil, MonthYear: "2026-07", TotalIncomeCents: 1000},
	}
	for _, req := range cases {
		_, err := env.properties.RecordRentalIncome(ctx, req, admin)
		require.ErrorIs(t, err, utils.ErrValidation)
	}

	_, err := env.properties.RecordRentalIncome(ctx, RentalRecordRequest{
		PropertyID: uuid.New(), MonthYear: "2026-07", TotalIncomeCents: 1000,
	}, admin)
	require.ErrorIs(t, err, utils.ErrNotFound)
}

func TestDeposit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	txnID, err := env.properties.Deposit(ctx, DepositRequest{
		UserID:           user,
		Email:            "funder@example.com",
		AmountCents:      25_000,
		PaymentMethodRef: "pm_card_visa",
		RequestID:        "dep-1",
	})
	require.NoError(t, err)

	txn, err := env.store.Transactions().GetByID(ctx, txnID)
	require.NoError(t, err)
	require.Equal(t, models.TransactionTypeDeposit, txn.Type)
	require.Equal(t, models.TransactionStatusCompleted, txn.Status)

	// Deposits are the one flow that actually charges the rail.
	require.Equal(t, int64(25_000), env.rail.CollectedCents("deposit-dep-1"))

	bal, err := env.store.Balances().GetByUser(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(25_000), bal.BalanceCents)
	require.Equal(t, "funder@example.com", bal.Email)

	// Replay credits nothing.
	replay, err := env.properties.Deposit(ctx, DepositRequest{
		UserID:           user,
		AmountCents:      25_000,
		PaymentMethodRef: "pm_card_visa",
		RequestID:        "dep-1",
	})
	require.NoError(t, err)
	require.Equal(t, txnID, replay)

	bal, err = env.store.Balances().GetByUser(ctx, user)
	require.NoError(t, err)
	require.Equal(t, int64(25_000), bal.BalanceCents)
}

func TestDepositDeclined(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := env.properties.Deposit(ctx, DepositRequest{
		UserID:           user,
		AmountCents:      25_000,
		PaymentMethodRef: payments.FakeAccountDeclined,
		RequestID:        "dep-decline",
	})
	require.ErrorIs(t, err, utils.ErrExternalServiceFailure)

	bal, err := env.store.Balances().GetByUser(ctx, user)
	require.NoError(t, err)
	require.Nil(t, bal)
}
