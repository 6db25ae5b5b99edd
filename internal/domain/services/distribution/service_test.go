package distribution

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

func newTestService(store *repotest.Store) *Service {
	logger := zap.NewNop()
	emitter := notify.NewEmitter(notify.NewLogNotifier(logger), logger)
	return NewService(store, emitter, logger)
}

func seedFollower(store *repotest.Store, traderID uuid.UUID, copyAmount float64, status entities.CopyStatus) (uuid.UUID, *entities.CopyRelationship) {
	userID := uuid.New()
	account := entities.NewLedgerAccount(userID)
	account.CopyAllocated = decimal.NewFromFloat(copyAmount)
	store.SeedAccount(account)
	rel := &entities.CopyRelationship{
		ID:         uuid.New(),
		UserID:     userID,
		TraderID:   traderID,
		CopyAmount: decimal.NewFromFloat(copyAmount),
		Status:     status,
		StartedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	store.SeedRelationship(rel)
	return userID, rel
}

func seedTrader(store *repotest.Store, tolerance entities.RiskTolerance) *entities.Trader {
	trader := &entities.Trader{
		ID:            uuid.New(),
		DisplayName:   "Momentum Max",
		Status:        entities.TraderStatusActive,
		RiskTolerance: tolerance,
		CreatedAt:     time.Now().UTC(),
	}
	store.SeedTrader(trader)
	return trader
}

func TestDistributeScalesByCopyAmount(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	trader := seedTrader(store, entities.RiskToleranceMedium)
	userID, rel := seedFollower(store, trader.ID, 1000, entities.CopyStatusActive)
	otherID, _ := seedFollower(store, trader.ID, 400, entities.CopyStatusActive)

	result, err := svc.Distribute(context.Background(), &entities.ProfitEvent{
		SourceID:   trader.ID,
		SourceKind: entities.ProfitSourceTrader,
		PnlPercent: decimal.NewFromFloat(2.5),
		Symbol:     "AAPL",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.AffectedUsers)
	assert.True(t, result.TotalApplied.Equal(decimal.NewFromInt(35)))

	assert.True(t, store.Account(userID).CopyAllocated.Equal(decimal.NewFromInt(1025)))
	assert.True(t, store.Relationship(rel.ID).CopyAmount.Equal(decimal.NewFromInt(1025)))
	assert.True(t, store.Account(otherID).CopyAllocated.Equal(decimal.NewFromInt(410)))
	assert.True(t, store.Trader(trader.ID).AUM.Equal(decimal.NewFromInt(35)))

	assert.True(t, store.LineSum(userID).Equal(store.Account(userID).TotalEquity()))
}

func TestDistributeSkipsPausedFollowers(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	trader := seedTrader(store, entities.RiskToleranceMedium)
	activeID, _ := seedFollower(store, trader.ID, 1000, entities.CopyStatusActive)
	pausedID, pausedRel := seedFollower(store, trader.ID, 1000, entities.CopyStatusPaused)

	result, err := svc.Distribute(context.Background(), &entities.ProfitEvent{
		SourceID:   trader.ID,
		SourceKind: entities.ProfitSourceTrader,
		PnlPercent: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.AffectedUsers)

	assert.True(t, store.Account(activeID).CopyAllocated.Equal(decimal.NewFromInt(1100)))
	assert.True(t, store.Account(pausedID).CopyAllocated.Equal(decimal.NewFromInt(1000)))
	assert.True(t, store.Relationship(pausedRel.ID).CopyAmount.Equal(decimal.NewFromInt(1000)))
}

func TestDistributeRejectsOutOfBandPnl(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	trader := seedTrader(store, entities.RiskToleranceLow)
	userID, _ := seedFollower(store, trader.ID, 1000, entities.CopyStatusActive)

	for _, pnl := range []float64{60, -15} {
		_, err := svc.Distribute(context.Background(), &entities.ProfitEvent{
			SourceID:   trader.ID,
			SourceKind: entities.ProfitSourceTrader,
			PnlPercent: decimal.NewFromFloat(pnl),
		})
		require.Error(t, err, "pnl of %v must be outside the low band", pnl)
		assert.True(t, domainerrors.IsValidation(err))
	}
	assert.True(t, store.Account(userID).CopyAllocated.Equal(decimal.NewFromInt(1000)), "rejected events must not move balances")
}

func TestLossClampsPositionAtZero(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	trader := seedTrader(store, entities.RiskToleranceHigh)
	userID, rel := seedFollower(store, trader.ID, 100, entities.CopyStatusActive)

	_, err := svc.Distribute(context.Background(), &entities.ProfitEvent{
		SourceID:   trader.ID,
		SourceKind: entities.ProfitSourceTrader,
		PnlPercent: decimal.NewFromInt(-150),
	})
	require.NoError(t, err)

	assert.True(t, store.Account(userID).CopyAllocated.IsZero())
	assert.True(t, store.Relationship(rel.ID).CopyAmount.IsZero())
	assert.True(t, store.LineSum(userID).Equal(store.Account(userID).TotalEquity()))
}

func TestDistributePlanReturns(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	plan := &entities.Plan{
		ID:             uuid.New(),
		Name:           "Growth Fund",
		MinimumDeposit: decimal.NewFromInt(100),
		CreatedAt:      time.Now().UTC(),
	}
	store.SeedPlan(plan)

	userID := uuid.New()
	account := entities.NewLedgerAccount(userID)
	account.LongTermAllocated = decimal.NewFromInt(2000)
	store.SeedAccount(account)
	inv := &entities.LongTermInvestment{
		ID:         uuid.New(),
		UserID:     userID,
		PlanID:     plan.ID,
		Allocation: decimal.NewFromInt(2000),
		Status:     entities.InvestmentStatusActive,
		StartedAt:  time.Now().UTC(),
		DueDate:    time.Now().UTC().AddDate(0, 3, 0),
		UpdatedAt:  time.Now().UTC(),
	}
	store.SeedInvestment(inv)

	result, err := svc.Distribute(context.Background(), &entities.ProfitEvent{
		SourceID:   plan.ID,
		SourceKind: entities.ProfitSourcePlan,
		PnlPercent: decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.AffectedUsers)
	assert.True(t, store.Account(userID).LongTermAllocated.Equal(decimal.NewFromInt(2020)))
	assert.True(t, store.Investment(inv.ID).Allocation.Equal(decimal.NewFromInt(2020)))
}

func TestDistributeRejectsZeroPnl(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	trader := seedTrader(store, entities.RiskToleranceMedium)

	_, err := svc.Distribute(context.Background(), &entities.ProfitEvent{
		SourceID:   trader.ID,
		SourceKind: entities.ProfitSourceTrader,
		PnlPercent: decimal.Zero,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.IsValidation(err))
}
