package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/utils"
)

func TestGetPortfolioSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()

	propA := env.seedProperty(t, 1000, 100)
	propB := env.seedProperty(t, 500, 200)
	env.seedBalance(t, user, 100_000)

	_, err := env.investments.ProcessInvestment(ctx, investReq(propA.ID, user, 200, 20_000, "pf-a"))
	require.NoError(t, err)
	_, err = env.investments.ProcessInvestment(ctx, investReq(propB.ID, user, 100, 20_000, "pf-b"))
	require.NoError(t, err)

	env.seedRental(t, propA.ID, "2026-07", 4_000)
	_, err = env.distributions.DistributeRentalIncome(ctx, propA.ID, "2026-07")
	require.NoError(t, err)

	summary, err := env.portfolio.GetPortfolioSummary(ctx, user)
	require.NoError(t, err)
	require.Equal(t, 2, summary.PropertiesCount)
	require.Equal(t, int64(40_000), summary.TotalInvestedCents)
	require.Equal(t, int64(40_000), summary.CurrentValueCents)
	require.Zero(t, summary.TotalReturnCents)
	require.Equal(t, int64(4_000), summary.TotalRentalIncomeCents)
	// 100k seeded - 40k invested + 4k rental income.
	require.Equal(t, int64(64_000), summary.BalanceCents)
}

func TestGetPortfolioSummaryEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	summary, err := env.portfolio.GetPortfolioSummary(ctx, uuid.New())
	require.NoError(t, err)
	require.Zero(t, summary.PropertiesCount)
	require.Zero(t, summary.CurrentValueCents)
	require.Zero(t, summary.BalanceCents)

	_, err = env.portfolio.GetPortfolioSummary(ctx, uuid.Nil)
	require.ErrorIs(t, err, utils.ErrValidation)
}

func TestGetTransactionHistoryNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := uuid.New()
	prop := env.seedProperty(t, 1000, 100)
	env.seedBalance(t, user, 100_000)

	_, err := env.investments.ProcessInvestment(ctx, investReq(prop.ID, user, 100, 10_000, "h-1"))
	require.NoError(t, err)
	_, err = env.withdrawals.ProcessWithdrawal(ctx, withdrawReq(user, 5_000, "h-2"))
	require.NoError(t, err)

	txns, err := env.portfolio.GetTransactionHistory(ctx, user)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	for _, txn := range txns {
		require.Equal(t, models.TransactionStatusCompleted, txn.Status)
	}
}
