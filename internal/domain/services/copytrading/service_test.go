package copytrading

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
	"github.com/yacqub6996/Apex-v2-sub000/pkg/ratelimit"
)

func newTestService(store *repotest.Store, throttle *ratelimit.SlidingWindow) *Service {
	logger := zap.NewNop()
	emitter := notify.NewEmitter(notify.NewLogNotifier(logger), logger)
	return NewService(store, throttle, emitter, logger)
}

func seedUser(store *repotest.Store, main, copyAllocated, copyWallet float64) uuid.UUID {
	userID := uuid.New()
	account := entities.NewLedgerAccount(userID)
	account.MainBalance = decimal.NewFromFloat(main)
	account.CopyAllocated = decimal.NewFromFloat(copyAllocated)
	account.CopyWallet = decimal.NewFromFloat(copyWallet)
	store.SeedAccount(account)
	return userID
}

func seedTrader(store *repotest.Store, tolerance entities.RiskTolerance) *entities.Trader {
	trader := &entities.Trader{
		ID:            uuid.New(),
		DisplayName:   "Test Trader",
		Status:        entities.TraderStatusActive,
		RiskTolerance: tolerance,
		CreatedAt:     time.Now().UTC(),
	}
	store.SeedTrader(trader)
	return trader
}

func TestStartSplitsFundingAcrossWallets(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, nil)
	userID := seedUser(store, 1000, 0, 300)
	trader := seedTrader(store, entities.RiskToleranceMedium)

	rel, err := svc.Start(context.Background(), userID, &entities.StartCopyRequest{
		TraderID: trader.ID,
		Amount:   decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, entities.CopyStatusActive, rel.Status)

	account := store.Account(userID)
	assert.True(t, account.CopyWallet.IsZero(), "copy wallet should be drained first")
	assert.True(t, account.MainBalance.Equal(decimal.NewFromInt(800)), "main should cover the remainder")
	assert.True(t, account.CopyAllocated.Equal(decimal.NewFromInt(500)))

	updated := store.Trader(trader.ID)
	assert.Equal(t, 1, updated.CopierCount)
	assert.True(t, updated.AUM.Equal(decimal.NewFromInt(500)))

	assert.True(t, store.LineSum(userID).Equal(account.TotalEquity()), "journal must reconcile with equity")
}

func TestStartRejectsInsufficientFunds(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, nil)
	userID := seedUser(store, 100, 0, 50)
	trader := seedTrader(store, entities.RiskToleranceLow)

	_, err := svc.Start(context.Background(), userID, &entities.StartCopyRequest{
		TraderID: trader.ID,
		Amount:   decimal.NewFromInt(500),
	})
	require.Error(t, err)
	assert.True(t, domainerrors.IsInsufficientFunds(err))

	account := store.Account(userID)
	assert.True(t, account.MainBalance.Equal(decimal.NewFromInt(100)), "no partial debit on failure")
}

func TestStartRejectsBelowMinimum(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, nil)
	userID := seedUser(store, 1000, 0, 0)
	trader := seedTrader(store, entities.RiskToleranceLow)

	_, err := svc.Start(context.Background(), userID, &entities.StartCopyRequest{
		TraderID: trader.ID,
		Amount:   decimal.NewFromInt(50),
	})
	require.Error(t, err)
	assert.True(t, domainerrors.IsValidation(err))
}

func TestStartRejectsDuplicateRelationship(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, nil)
	userID := seedUser(store, 2000, 0, 0)
	trader := seedTrader(store, entities.RiskToleranceMedium)

	_, err := svc.Start(context.Background(), userID, &entities.StartCopyRequest{
		TraderID: trader.ID,
		Amount:   decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), userID, &entities.StartCopyRequest{
		TraderID: trader.ID,
		Amount:   decimal.NewFromInt(500),
	})
	require.Error(t, err)
	assert.True(t, domainerrors.IsStateConflict(err))
}

func TestStopReleasesEquityProportionalShare(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, nil)
	// Allocation pool has grown to 1200 against a 1000 copy amount, so
	// the stop releases the grown share, not the face value.
	userID := seedUser(store, 0, 1200, 0)
	trader := seedTrader(store, entities.RiskToleranceHigh)
	rel := &entities.CopyRelationship{
		ID:         uuid.New(),
		UserID:     userID,
		TraderID:   trader.ID,
		CopyAmount: decimal.NewFromInt(1000),
		Status:     entities.CopyStatusActive,
		StartedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	store.SeedRelationship(rel)

	stopped, err := svc.Stop(context.Background(), userID, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CopyStatusStopped, stopped.Status)
	require.NotNil(t, stopped.StoppedAt)

	account := store.Account(userID)
	assert.True(t, account.CopyAllocated.IsZero())
	assert.True(t, account.CopyWallet.Equal(decimal.NewFromInt(1200)))
	assert.True(t, store.LineSum(userID).Equal(account.TotalEquity()))
}

func TestStopReleasesNominalWeightedShareAcrossRelationships(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, nil)
	// Two positions, 1000 and 3000 nominal, against a pool that has
	// grown to 4800. Stopping the 1000 releases its weighted share,
	// 4800 * 1000/4000 = 1200, and leaves the rest allocated.
	userID := seedUser(store, 0, 4800, 0)
	traderA := seedTrader(store, entities.RiskToleranceMedium)
	traderB := seedTrader(store, entities.RiskToleranceMedium)

	small := &entities.CopyRelationship{
		ID:         uuid.New(),
		UserID:     userID,
		TraderID:   traderA.ID,
		CopyAmount: decimal.NewFromInt(1000),
		Status:     entities.CopyStatusActive,
		StartedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	large := &entities.CopyRelationship{
		ID:         uuid.New(),
		UserID:     userID,
		TraderID:   traderB.ID,
		CopyAmount: decimal.NewFromInt(3000),
		Status:     entities.CopyStatusActive,
		StartedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	store.SeedRelationship(small)
	store.SeedRelationship(large)

	stopped, err := svc.Stop(context.Background(), userID, small.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CopyStatusStopped, stopped.Status)

	account := store.Account(userID)
	assert.True(t, account.CopyWallet.Equal(decimal.NewFromInt(1200)), "released share was %s", account.CopyWallet)
	assert.True(t, account.CopyAllocated.Equal(decimal.NewFromInt(3600)), "remaining pool was %s", account.CopyAllocated)

	// The surviving relationship is untouched.
	survivor := store.Relationship(large.ID)
	assert.Equal(t, entities.CopyStatusActive, survivor.Status)
	assert.True(t, survivor.CopyAmount.Equal(decimal.NewFromInt(3000)))

	assert.True(t, store.LineSum(userID).Equal(account.TotalEquity()))
}

func TestStopTwiceIsNoop(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, nil)
	userID := seedUser(store, 0, 500, 0)
	trader := seedTrader(store, entities.RiskToleranceMedium)
	rel := &entities.CopyRelationship{
		ID:         uuid.New(),
		UserID:     userID,
		TraderID:   trader.ID,
		CopyAmount: decimal.NewFromInt(500),
		Status:     entities.CopyStatusActive,
		StartedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	store.SeedRelationship(rel)

	_, err := svc.Stop(context.Background(), userID, rel.ID)
	require.NoError(t, err)
	walletAfterFirst := store.Account(userID).CopyWallet

	again, err := svc.Stop(context.Background(), userID, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CopyStatusStopped, again.Status)
	assert.True(t, store.Account(userID).CopyWallet.Equal(walletAfterFirst), "second stop must not release again")
}

func TestPauseResumeTransitions(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, nil)
	userID := seedUser(store, 0, 500, 0)
	trader := seedTrader(store, entities.RiskToleranceMedium)
	trader.CopierCount = 1
	trader.AUM = decimal.NewFromInt(500)
	store.SeedTrader(trader)
	rel := &entities.CopyRelationship{
		ID:         uuid.New(),
		UserID:     userID,
		TraderID:   trader.ID,
		CopyAmount: decimal.NewFromInt(500),
		Status:     entities.CopyStatusActive,
		StartedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	store.SeedRelationship(rel)

	paused, err := svc.Pause(context.Background(), userID, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CopyStatusPaused, paused.Status)
	assert.Equal(t, 0, store.Trader(trader.ID).CopierCount)

	_, err = svc.Pause(context.Background(), userID, rel.ID)
	require.Error(t, err)
	assert.True(t, domainerrors.IsStateConflict(err))

	resumed, err := svc.Resume(context.Background(), userID, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.CopyStatusActive, resumed.Status)
	assert.Equal(t, 1, store.Trader(trader.ID).CopierCount)
}

func TestReduceEnforcesRemainderFloor(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, nil)
	userID := seedUser(store, 0, 1000, 0)
	trader := seedTrader(store, entities.RiskToleranceMedium)
	rel := &entities.CopyRelationship{
		ID:         uuid.New(),
		UserID:     userID,
		TraderID:   trader.ID,
		CopyAmount: decimal.NewFromInt(1000),
		Status:     entities.CopyStatusActive,
		StartedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	store.SeedRelationship(rel)

	// Remainder of 50 falls below the floor of max($100, 10% of $1000).
	_, err := svc.Reduce(context.Background(), userID, rel.ID, decimal.NewFromInt(950))
	require.Error(t, err)
	assert.True(t, domainerrors.IsValidation(err))

	// Remainder of exactly 100 sits on the floor and passes.
	reduced, err := svc.Reduce(context.Background(), userID, rel.ID, decimal.NewFromInt(900))
	require.NoError(t, err)
	assert.True(t, reduced.CopyAmount.Equal(decimal.NewFromInt(100)))

	account := store.Account(userID)
	assert.True(t, account.CopyWallet.Equal(decimal.NewFromInt(900)), "reduce releases at face value")
	assert.True(t, account.CopyAllocated.Equal(decimal.NewFromInt(100)))
}

func TestReduceToZeroBecomesStop(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, nil)
	userID := seedUser(store, 0, 800, 0)
	trader := seedTrader(store, entities.RiskToleranceMedium)
	rel := &entities.CopyRelationship{
		ID:         uuid.New(),
		UserID:     userID,
		TraderID:   trader.ID,
		CopyAmount: decimal.NewFromInt(800),
		Status:     entities.CopyStatusActive,
		StartedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	store.SeedRelationship(rel)

	result, err := svc.Reduce(context.Background(), userID, rel.ID, decimal.NewFromInt(800))
	require.NoError(t, err)
	assert.Equal(t, entities.CopyStatusStopped, result.Status)
	assert.True(t, store.Account(userID).CopyWallet.Equal(decimal.NewFromInt(800)))
}

func TestReduceOnStoppedIsConflict(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, nil)
	userID := seedUser(store, 0, 0, 0)
	trader := seedTrader(store, entities.RiskToleranceMedium)
	now := time.Now().UTC()
	rel := &entities.CopyRelationship{
		ID:         uuid.New(),
		UserID:     userID,
		TraderID:   trader.ID,
		CopyAmount: decimal.NewFromInt(500),
		Status:     entities.CopyStatusStopped,
		StartedAt:  now,
		StoppedAt:  &now,
		UpdatedAt:  now,
	}
	store.SeedRelationship(rel)

	_, err := svc.Reduce(context.Background(), userID, rel.ID, decimal.NewFromInt(100))
	require.Error(t, err)
	assert.True(t, domainerrors.IsStateConflict(err))
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestMutationThrottle(t *testing.T) {
	store := repotest.NewStore()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	throttle := ratelimit.NewSlidingWindow(2, time.Minute, clock)
	svc := newTestService(store, throttle)
	userID := seedUser(store, 10000, 0, 0)
	trader := seedTrader(store, entities.RiskToleranceHigh)

	_, err := svc.Start(context.Background(), userID, &entities.StartCopyRequest{TraderID: trader.ID, Amount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	rels, err := svc.ListRelationships(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, rels, 1)

	_, err = svc.Pause(context.Background(), userID, rels[0].ID)
	require.NoError(t, err)

	_, err = svc.Resume(context.Background(), userID, rels[0].ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrThrottled)
	assert.True(t, domainerrors.IsRetryable(err))

	// The window slides past the first hit and the call goes through.
	clock.now = clock.now.Add(2 * time.Minute)
	_, err = svc.Resume(context.Background(), userID, rels[0].ID)
	require.NoError(t, err)
}
