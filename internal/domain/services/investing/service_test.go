package investing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainerrors "github.com/yacqub6996/Apex-v2-sub000/internal/domain/errors"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/repositories/repotest"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/notify"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(store *repotest.Store, clock Clock) *Service {
	logger := zap.NewNop()
	emitter := notify.NewEmitter(notify.NewLogNotifier(logger), logger)
	return NewService(store, nil, emitter, clock, logger)
}

func seedUser(store *repotest.Store, main, ltAllocated, ltWallet float64) uuid.UUID {
	userID := uuid.New()
	account := entities.NewLedgerAccount(userID)
	account.MainBalance = decimal.NewFromFloat(main)
	account.LongTermAllocated = decimal.NewFromFloat(ltAllocated)
	account.LongTermWallet = decimal.NewFromFloat(ltWallet)
	store.SeedAccount(account)
	return userID
}

func seedPlan(store *repotest.Store, minimum float64, maximum *float64) *entities.Plan {
	plan := &entities.Plan{
		ID:             uuid.New(),
		Name:           "Growth Fund",
		MinimumDeposit: decimal.NewFromFloat(minimum),
		CreatedAt:      time.Now().UTC(),
	}
	if maximum != nil {
		max := decimal.NewFromFloat(*maximum)
		plan.MaximumDeposit = &max
	}
	store.SeedPlan(plan)
	return plan
}

func seedInvestment(store *repotest.Store, userID, planID uuid.UUID, allocation float64, due time.Time) *entities.LongTermInvestment {
	inv := &entities.LongTermInvestment{
		ID:         uuid.New(),
		UserID:     userID,
		PlanID:     planID,
		Allocation: decimal.NewFromFloat(allocation),
		Status:     entities.InvestmentStatusActive,
		StartedAt:  due.AddDate(0, -3, 0),
		DueDate:    due,
		UpdatedAt:  time.Now().UTC(),
	}
	store.SeedInvestment(inv)
	return inv
}

func TestSubscribeCapacityGuard(t *testing.T) {
	store := repotest.NewStore()
	clock := &fakeClock{now: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)
	max := 10000.0
	plan := seedPlan(store, 100, &max)

	// Another investor already holds 9500 of the 10000 ceiling.
	other := seedUser(store, 0, 9500, 0)
	seedInvestment(store, other, plan.ID, 9500, clock.now.AddDate(0, 2, 0))

	userID := seedUser(store, 5000, 0, 0)

	_, err := svc.Subscribe(context.Background(), userID, &entities.SubscribeRequest{
		PlanID:     plan.ID,
		Amount:     decimal.NewFromInt(600),
		LockMonths: 3,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.IsCapacityExceeded(err))
	de, ok := domainerrors.AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, "9500.00", de.Details["current"])
	assert.Equal(t, "10000.00", de.Details["limit"])

	inv, err := svc.Subscribe(context.Background(), userID, &entities.SubscribeRequest{
		PlanID:     plan.ID,
		Amount:     decimal.NewFromInt(500),
		LockMonths: 3,
	})
	require.NoError(t, err)
	assert.True(t, inv.Allocation.Equal(decimal.NewFromInt(500)))

	account := store.Account(userID)
	assert.True(t, account.MainBalance.Equal(decimal.NewFromInt(4500)))
	assert.True(t, account.LongTermAllocated.Equal(decimal.NewFromInt(500)))
}

func TestSubscribeUnlimitedPlanHasNoCeiling(t *testing.T) {
	store := repotest.NewStore()
	clock := &fakeClock{now: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)
	plan := seedPlan(store, 100, nil)
	userID := seedUser(store, 1000000, 0, 0)

	_, err := svc.Subscribe(context.Background(), userID, &entities.SubscribeRequest{
		PlanID:     plan.ID,
		Amount:     decimal.NewFromInt(500000),
		LockMonths: 6,
	})
	require.NoError(t, err)
}

func TestSubscribeDueDateClampsToMonthEnd(t *testing.T) {
	store := repotest.NewStore()
	clock := &fakeClock{now: time.Date(2026, 1, 31, 9, 30, 0, 0, time.UTC)}
	svc := newTestService(store, clock)
	plan := seedPlan(store, 100, nil)
	userID := seedUser(store, 5000, 0, 0)

	inv, err := svc.Subscribe(context.Background(), userID, &entities.SubscribeRequest{
		PlanID:     plan.ID,
		Amount:     decimal.NewFromInt(1000),
		LockMonths: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 28, 9, 30, 0, 0, time.UTC), inv.DueDate)
}

func TestSubscribeLockBounds(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, &fakeClock{now: time.Now().UTC()})
	plan := seedPlan(store, 100, nil)
	userID := seedUser(store, 5000, 0, 0)

	for _, months := range []int{0, 7, -1} {
		_, err := svc.Subscribe(context.Background(), userID, &entities.SubscribeRequest{
			PlanID:     plan.ID,
			Amount:     decimal.NewFromInt(500),
			LockMonths: months,
		})
		require.Error(t, err, "lock of %d months must be rejected", months)
		assert.True(t, domainerrors.IsValidation(err))
	}
}

func TestSubscribeBelowPlanMinimum(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, &fakeClock{now: time.Now().UTC()})
	plan := seedPlan(store, 1000, nil)
	userID := seedUser(store, 5000, 0, 0)

	_, err := svc.Subscribe(context.Background(), userID, &entities.SubscribeRequest{
		PlanID:     plan.ID,
		Amount:     decimal.NewFromInt(500),
		LockMonths: 2,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.IsValidation(err))
}

func TestSubscribeRejectsSecondActiveInSamePlan(t *testing.T) {
	store := repotest.NewStore()
	clock := &fakeClock{now: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)
	plan := seedPlan(store, 100, nil)
	userID := seedUser(store, 10000, 0, 0)

	first, err := svc.Subscribe(context.Background(), userID, &entities.SubscribeRequest{
		PlanID:     plan.ID,
		Amount:     decimal.NewFromInt(1000),
		LockMonths: 3,
	})
	require.NoError(t, err)

	_, err = svc.Subscribe(context.Background(), userID, &entities.SubscribeRequest{
		PlanID:     plan.ID,
		Amount:     decimal.NewFromInt(500),
		LockMonths: 3,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.IsStateConflict(err))

	// No second position and no money moved for the rejected attempt.
	account := store.Account(userID)
	assert.True(t, account.MainBalance.Equal(decimal.NewFromInt(9000)))
	assert.True(t, account.LongTermAllocated.Equal(decimal.NewFromInt(1000)))

	// A second position in a different plan is still allowed.
	otherPlan := seedPlan(store, 100, nil)
	_, err = svc.Subscribe(context.Background(), userID, &entities.SubscribeRequest{
		PlanID:     otherPlan.ID,
		Amount:     decimal.NewFromInt(500),
		LockMonths: 2,
	})
	require.NoError(t, err)

	// Once the first position matures, the plan opens up again.
	clock.now = first.DueDate.Add(time.Hour)
	_, err = svc.Mature(context.Background(), first.ID)
	require.NoError(t, err)

	_, err = svc.Subscribe(context.Background(), userID, &entities.SubscribeRequest{
		PlanID:     plan.ID,
		Amount:     decimal.NewFromInt(500),
		LockMonths: 3,
	})
	require.NoError(t, err)
}

func TestIncreaseEquityDebitsLongTermWalletOnly(t *testing.T) {
	store := repotest.NewStore()
	clock := &fakeClock{now: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)
	plan := seedPlan(store, 100, nil)
	userID := seedUser(store, 1000, 2000, 800)
	inv := seedInvestment(store, userID, plan.ID, 2000, clock.now.AddDate(0, 2, 0))

	updated, err := svc.IncreaseEquity(context.Background(), userID, inv.ID, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, updated.Allocation.Equal(decimal.NewFromInt(2500)))

	account := store.Account(userID)
	assert.True(t, account.LongTermWallet.Equal(decimal.NewFromInt(300)))
	assert.True(t, account.MainBalance.Equal(decimal.NewFromInt(1000)), "main balance must not fund increases")
}

func TestIncreaseEquityRejectsWhenWalletShort(t *testing.T) {
	store := repotest.NewStore()
	clock := &fakeClock{now: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)
	plan := seedPlan(store, 100, nil)

	// A large main balance is no substitute for the long-term wallet.
	userID := seedUser(store, 5000, 2000, 0)
	inv := seedInvestment(store, userID, plan.ID, 2000, clock.now.AddDate(0, 2, 0))

	_, err := svc.IncreaseEquity(context.Background(), userID, inv.ID, decimal.NewFromInt(500))
	require.Error(t, err)
	assert.True(t, domainerrors.IsInsufficientFunds(err))

	account := store.Account(userID)
	assert.True(t, account.MainBalance.Equal(decimal.NewFromInt(5000)))
	assert.True(t, account.LongTermAllocated.Equal(decimal.NewFromInt(2000)))
	assert.True(t, store.Investment(inv.ID).Allocation.Equal(decimal.NewFromInt(2000)))
}

func TestMatureIsIdempotent(t *testing.T) {
	store := repotest.NewStore()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)
	plan := seedPlan(store, 100, nil)
	userID := seedUser(store, 0, 3000, 0)
	inv := seedInvestment(store, userID, plan.ID, 3000, clock.now.AddDate(0, 0, -1))

	matured, err := svc.Mature(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.InvestmentStatusStopped, matured.Status)

	account := store.Account(userID)
	assert.True(t, account.LongTermAllocated.IsZero())
	assert.True(t, account.LongTermWallet.Equal(decimal.NewFromInt(3000)))

	// A second pass must not release anything again.
	_, err = svc.Mature(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.True(t, store.Account(userID).LongTermWallet.Equal(decimal.NewFromInt(3000)))
}

func TestMatureBeforeDueDateRejected(t *testing.T) {
	store := repotest.NewStore()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)
	plan := seedPlan(store, 100, nil)
	userID := seedUser(store, 0, 1000, 0)
	inv := seedInvestment(store, userID, plan.ID, 1000, clock.now.AddDate(0, 1, 0))

	_, err := svc.Mature(context.Background(), inv.ID)
	require.Error(t, err)
	assert.True(t, domainerrors.IsStateConflict(err))
}

func TestMatureDueSweepsOnlyDuePositions(t *testing.T) {
	store := repotest.NewStore()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)
	plan := seedPlan(store, 100, nil)

	dueUser := seedUser(store, 0, 1000, 0)
	seedInvestment(store, dueUser, plan.ID, 1000, clock.now.AddDate(0, 0, -2))
	lockedUser := seedUser(store, 0, 2000, 0)
	locked := seedInvestment(store, lockedUser, plan.ID, 2000, clock.now.AddDate(0, 1, 0))

	count, err := svc.MatureDue(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, entities.InvestmentStatusActive, store.Investment(locked.ID).Status)
}

func TestRequestWithdrawalEarlyNeedsAcknowledgement(t *testing.T) {
	store := repotest.NewStore()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)
	plan := seedPlan(store, 100, nil)
	userID := seedUser(store, 0, 1500, 0)
	inv := seedInvestment(store, userID, plan.ID, 1500, clock.now.AddDate(0, 2, 0))

	_, err := svc.RequestWithdrawal(context.Background(), userID, inv.ID, &entities.InvestmentWithdrawalRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrPolicyAckRequired)

	tx, err := svc.RequestWithdrawal(context.Background(), userID, inv.ID, &entities.InvestmentWithdrawalRequest{
		AcknowledgeEarlyExit: true,
	})
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusPending, tx.Status)
	assert.True(t, tx.EarlyWithdrawal)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(1500)), "nil amount means full allocation")

	// Filing the request moves no money.
	account := store.Account(userID)
	assert.True(t, account.LongTermAllocated.Equal(decimal.NewFromInt(1500)))
}

func TestRequestWithdrawalDuplicatePendingRejected(t *testing.T) {
	store := repotest.NewStore()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)
	plan := seedPlan(store, 100, nil)
	userID := seedUser(store, 0, 1500, 0)
	inv := seedInvestment(store, userID, plan.ID, 1500, clock.now.AddDate(0, 0, -1))

	_, err := svc.RequestWithdrawal(context.Background(), userID, inv.ID, &entities.InvestmentWithdrawalRequest{})
	require.NoError(t, err)

	_, err = svc.RequestWithdrawal(context.Background(), userID, inv.ID, &entities.InvestmentWithdrawalRequest{})
	require.Error(t, err)
	assert.True(t, domainerrors.IsStateConflict(err))
}

func TestPlanCapacityReport(t *testing.T) {
	store := repotest.NewStore()
	clock := &fakeClock{now: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	svc := newTestService(store, clock)
	max := 10000.0
	plan := seedPlan(store, 100, &max)
	userID := seedUser(store, 0, 4000, 0)
	seedInvestment(store, userID, plan.ID, 4000, clock.now.AddDate(0, 2, 0))

	capacity, err := svc.PlanCapacity(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.True(t, capacity.Allocated.Equal(decimal.NewFromInt(4000)))
	require.NotNil(t, capacity.Remaining)
	assert.True(t, capacity.Remaining.Equal(decimal.NewFromInt(6000)))
}
