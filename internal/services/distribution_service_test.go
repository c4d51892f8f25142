package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/brickfolio/investment-service/internal/models"
	"github.com/brickfolio/investment-service/internal/notifications"
	"github.com/brickfolio/investment-service/internal/utils"
)

func (e *testEnv) seedRental(t *testing.T, propertyID uuid.UUID, monthYear string, netCents int64) *models.RentalRecord {
	t.Helper()
	rec := &models.RentalRecord{
		ID:               uuid.New(),
		PropertyID:       propertyID,
		MonthYear:        monthYear,
		TotalIncomeCents: netCents,
		NetIncomeCents:   netCents,
	}
	require.NoError(t, e.store.RentalRecords().Create(context.Background(), rec))
	return rec
}

func (e *testEnv) seedHolding(t *testing.T, userID, propertyID uuid.UUID, tokens int64) {
	t.Helper()
	e.seedBalance(t, userID, 0)
	_, err := e.store.Shares().Upsert(context.Background(), userID, propertyID, tokens, tokens*100)
	require.NoError(t, err)
}

func TestDistributeRentalIncomeExactSplit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	prop := env.seedProperty(t, 1000, 100)

	alice, bob := uuid.New(), uuid.New()
	env.seedHolding(t, alice, prop.ID, 300)
	env.seedHolding(t, bob, prop.ID, 700)
	env.seedRental(t, prop.ID, "2026-07", 10_000)

	result, err := env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
	require.NoError(t, err)
	require.Equal(t, 2, result.HoldersPaid)
	require.Equal(t, int64(10_000), result.DistributedCents)

	aliceBal, err := env.store.Balances().GetByUser(ctx, alice)
	require.NoError(t, err)
	require.Equal(t, int64(3_000), aliceBal.BalanceCents)

	bobBal, err := env.store.Balances().GetByUser(ctx, bob)
	require.NoError(t, err)
	require.Equal(t, int64(7_000), bobBal.BalanceCents)

	// Each holder gets a completed RENTAL_INCOME ledger entry stamped with
	// the month.
	for _, u := range []uuid.UUID{alice, bob} {
		txns, err := env.store.Transactions().FindByUser(ctx, u, 10)
		require.NoError(t, err)
		require.Len(t, txns, 1)
		require.Equal(t, models.TransactionTypeRentalIncome, txns[0].Type)
		require.Equal(t, models.TransactionStatusCompleted, txns[0].Status)
		require.Contains(t, string(txns[0].Metadata), "2026-07")
	}

	events := env.notifier.Events()
	require.Len(t, events, 2)
	for _, ev := range events {
		require.Equal(t, notifications.EventRentalIncomePaid, ev.Type)
	}
}

func TestDistributeRentalIncomeResidualToLargestStake(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	prop := env.seedProperty(t, 1000, 100)

	big, small := uuid.New(), uuid.New()
	env.seedHolding(t, big, prop.ID, 2)
	env.seedHolding(t, small, prop.ID, 1)
	env.seedRental(t, prop.ID, "2026-07", 100)

	result, err := env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
	require.NoError(t, err)
	require.Equal(t, int64(100), result.DistributedCents, "every cent must land somewhere")

	// floor(100*2/3)=66 plus the residual 1 cent; floor(100*1/3)=33.
	bigBal, err := env.store.Balances().GetByUser(ctx, big)
	require.NoError(t, err)
	require.Equal(t, int64(67), bigBal.BalanceCents)

	smallBal, err := env.store.Balances().GetByUser(ctx, small)
	require.NoError(t, err)
	require.Equal(t, int64(33), smallBal.BalanceCents)
}

func TestDistributeRentalIncomeResidualTieBreaksLowestUserID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	prop := env.seedProperty(t, 1000, 100)

	low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	high := uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")
	env.seedHolding(t, low, prop.ID, 1)
	env.seedHolding(t, high, prop.ID, 1)
	env.seedRental(t, prop.ID, "2026-07", 101)

	_, err := env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
	require.NoError(t, err)

	lowBal, err := env.store.Balances().GetByUser(ctx, low)
	require.NoError(t, err)
	require.Equal(t, int64(51), lowBal.BalanceCents)

	highBal, err := env.store.Balances().GetByUser(ctx, high)
	require.NoError(t, err)
	require.Equal(t, int64(50), highBal.BalanceCents)
}

func TestDistributeRentalIncomeExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	prop := env.seedProperty(t, 1000, 100)

	holder := uuid.New()
	env.seedHolding(t, holder, prop.ID, 100)
	env.seedRental(t, prop.ID, "2026-07", 5_000)

	_, err := env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
	require.NoError(t, err)

	_, err = env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
	require.ErrorIs(t, err, utils.ErrAlreadyDistributed)

	bal, err := env.store.Balances().GetByUser(ctx, holder)
	require.NoError(t, err)
	require.Equal(t, int64(5_000), bal.BalanceCents)
}

func TestDistributeRentalIncomeConcurrentInvokes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	prop := env.seedProperty(t, 1000, 100)

	holder := uuid.New()
	env.seedHolding(t, holder, prop.ID, 100)
	env.seedRental(t, prop.ID, "2026-07", 5_000)

	const callers = 6
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, utils.ErrAlreadyDistributed)
		}
	}
	require.Equal(t, 1, succeeded)

	bal, err := env.store.Balances().GetByUser(ctx, holder)
	require.NoError(t, err)
	require.Equal(t, int64(5_000), bal.BalanceCents, "holders are paid exactly once")
}

func TestDistributeRentalIncomeClaimAuditFailureAborts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	prop := env.seedProperty(t, 1000, 100)

	holder := uuid.New()
	env.seedHolding(t, holder, prop.ID, 100)
	env.seedRental(t, prop.ID, "2026-07", 5_000)

	env.store.FailNextAuditAppend()

	_, err := env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
	require.ErrorIs(t, err, utils.ErrAuditWriteFailed)

	// Nobody was paid, and the claimed-but-unpaid month is visible to the
	// sweep's orphan check.
	bal, err := env.store.Balances().GetByUser(ctx, holder)
	require.NoError(t, err)
	require.Zero(t, bal.BalanceCents)

	orphaned, err := env.store.RentalRecords().FindDistributedWithoutPayouts(ctx)
	require.NoError(t, err)
	require.Len(t, orphaned, 1)

	// Re-invoking finishes the month.
	result, err := env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
	require.NoError(t, err)
	require.Equal(t, int64(5_000), result.DistributedCents)

	bal, err = env.store.Balances().GetByUser(ctx, holder)
	require.NoError(t, err)
	require.Equal(t, int64(5_000), bal.BalanceCents)
}

func TestDistributeRentalIncomeResumesAfterPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	prop := env.seedProperty(t, 1000, 100)

	paid, stranded := uuid.New(), uuid.New()
	env.seedHolding(t, paid, prop.ID, 700)
	// The second holder has a share but no balance row yet, so their
	// credit fails partway through the run.
	_, err := env.store.Shares().Upsert(ctx, stranded, prop.ID, 300, 30_000)
	require.NoError(t, err)
	env.seedRental(t, prop.ID, "2026-07", 10_000)

	_, err = env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
	require.ErrorIs(t, err, utils.ErrNotFound)

	paidBal, err := env.store.Balances().GetByUser(ctx, paid)
	require.NoError(t, err)
	require.Equal(t, int64(7_000), paidBal.BalanceCents)

	// The partially paid month shows up in the orphan check.
	orphaned, err := env.store.RentalRecords().FindDistributedWithoutPayouts(ctx)
	require.NoError(t, err)
	require.Len(t, orphaned, 1)

	// Once the holder's balance exists, re-invoking pays the remainder
	// without touching the holder already paid.
	env.seedBalance(t, stranded, 0)
	result, err := env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
	require.NoError(t, err)
	require.Equal(t, 1, result.HoldersPaid)
	require.Equal(t, int64(3_000), result.DistributedCents)

	strandedBal, err := env.store.Balances().GetByUser(ctx, stranded)
	require.NoError(t, err)
	require.Equal(t, int64(3_000), strandedBal.BalanceCents)

	paidBal, err = env.store.Balances().GetByUser(ctx, paid)
	require.NoError(t, err)
	require.Equal(t, int64(7_000), paidBal.BalanceCents, "the resume must not double-pay")

	orphaned, err = env.store.RentalRecords().FindDistributedWithoutPayouts(ctx)
	require.NoError(t, err)
	require.Empty(t, orphaned)

	// Fully settled now: a further invoke is a clean already-distributed.
	_, err = env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
	require.ErrorIs(t, err, utils.ErrAlreadyDistributed)
}

func TestDistributeRentalIncomeNotifiesAddressOnFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	prop := env.seedProperty(t, 1000, 100)

	holder := uuid.New()
	_, err := env.store.Balances().GetOrCreate(ctx, holder, "usd", "holder@example.com")
	require.NoError(t, err)
	_, err = env.store.Shares().Upsert(ctx, holder, prop.ID, 100, 10_000)
	require.NoError(t, err)
	env.seedRental(t, prop.ID, "2026-07", 5_000)

	_, err = env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
	require.NoError(t, err)

	events := env.notifier.Events()
	require.Len(t, events, 1)
	require.Equal(t, "holder@example.com", events[0].Email)
}

func TestDistributeRentalIncomeNoHolders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	prop := env.seedProperty(t, 1000, 100)
	env.seedRental(t, prop.ID, "2026-07", 5_000)

	_, err := env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
	require.ErrorIs(t, err, utils.ErrValidation)

	// A failed pre-check must not claim the month.
	rec, err := env.store.RentalRecords().GetByPropertyAndMonth(ctx, prop.ID, "2026-07")
	require.NoError(t, err)
	require.Nil(t, rec.DistributedAt)
}

func TestDistributeRentalIncomeUnknownMonth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	prop := env.seedProperty(t, 1000, 100)

	_, err := env.distributions.DistributeRentalIncome(ctx, prop.ID, "2026-07")
	require.ErrorIs(t, err, utils.ErrNotFound)

	_, err = env.distributions.DistributeRentalIncome(ctx, prop.ID, "July 2026")
	require.ErrorIs(t, err, utils.ErrValidation)
}

func TestComputePayoutsConservation(t *testing.T) {
	shares := []*models.Share{
		{UserID: uuid.New(), TokensOwned: 333},
		{UserID: uuid.New(), TokensOwned: 333},
		{UserID: uuid.New(), TokensOwned: 334},
	}
	// Order as ListByProperty would return: tokens DESC.
	shares[0], shares[2] = shares[2], shares[0]

	payouts, total := computePayouts(9_999, shares)
	require.Equal(t, int64(1000), total)

	var sum int64
	for _, p := range payouts {
		sum += p.AmountCents
	}
	require.Equal(t, int64(9_999), sum)
	require.Equal(t, int64(334), payouts[0].TokensOwned, "residual goes to the largest stake")
}
