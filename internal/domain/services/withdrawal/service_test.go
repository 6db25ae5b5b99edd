package withdrawal

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
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/investing"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/notify"
)

func newTestService(store *repotest.Store) *Service {
	logger := zap.NewNop()
	emitter := notify.NewEmitter(notify.NewLogNotifier(logger), logger)
	return NewService(store, emitter, logger)
}

func seedUser(store *repotest.Store, main, copyWallet, ltAllocated float64) uuid.UUID {
	userID := uuid.New()
	account := entities.NewLedgerAccount(userID)
	account.MainBalance = decimal.NewFromFloat(main)
	account.CopyWallet = decimal.NewFromFloat(copyWallet)
	account.LongTermAllocated = decimal.NewFromFloat(ltAllocated)
	store.SeedAccount(account)
	return userID
}

// requestAllocation files an allocation-sourced withdrawal through the
// investing service, the same path production traffic takes.
func requestAllocation(t *testing.T, store *repotest.Store, userID uuid.UUID, allocation, amount float64) (*entities.LongTermInvestment, *entities.Transaction) {
	t.Helper()
	plan := &entities.Plan{
		ID:             uuid.New(),
		Name:           "Income Fund",
		MinimumDeposit: decimal.NewFromInt(100),
		CreatedAt:      time.Now().UTC(),
	}
	store.SeedPlan(plan)
	inv := &entities.LongTermInvestment{
		ID:         uuid.New(),
		UserID:     userID,
		PlanID:     plan.ID,
		Allocation: decimal.NewFromFloat(allocation),
		Status:     entities.InvestmentStatusActive,
		StartedAt:  time.Now().UTC().AddDate(0, -2, 0),
		DueDate:    time.Now().UTC().AddDate(0, -1, 0),
		UpdatedAt:  time.Now().UTC(),
	}
	store.SeedInvestment(inv)

	logger := zap.NewNop()
	emitter := notify.NewEmitter(notify.NewLogNotifier(logger), logger)
	invSvc := investing.NewService(store, nil, emitter, nil, logger)
	amt := decimal.NewFromFloat(amount)
	tx, err := invSvc.RequestWithdrawal(context.Background(), userID, inv.ID, &entities.InvestmentWithdrawalRequest{Amount: &amt})
	require.NoError(t, err)
	return inv, tx
}

func TestWalletRequestHoldsFunds(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	userID := seedUser(store, 0, 500, 0)

	tx, err := svc.RequestFromWallet(context.Background(), userID, &entities.WalletWithdrawalRequest{
		Amount: decimal.NewFromInt(200),
		Source: entities.SourceCopyWallet,
	})
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusPending, tx.Status)

	account := store.Account(userID)
	assert.True(t, account.CopyWallet.Equal(decimal.NewFromInt(300)), "the hold debits the wallet immediately")
	assert.True(t, account.MainBalance.IsZero())
}

func TestWalletRequestInsufficientFunds(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	userID := seedUser(store, 0, 100, 0)

	_, err := svc.RequestFromWallet(context.Background(), userID, &entities.WalletWithdrawalRequest{
		Amount: decimal.NewFromInt(200),
		Source: entities.SourceCopyWallet,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.IsInsufficientFunds(err))
	assert.True(t, store.Account(userID).CopyWallet.Equal(decimal.NewFromInt(100)))
}

func TestWalletRequestRejectsAllocationSource(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	userID := seedUser(store, 0, 500, 0)

	_, err := svc.RequestFromWallet(context.Background(), userID, &entities.WalletWithdrawalRequest{
		Amount: decimal.NewFromInt(200),
		Source: entities.SourceActiveAllocation,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.IsValidation(err))
}

func TestApproveWalletCreditsMain(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	userID := seedUser(store, 0, 500, 0)

	tx, err := svc.RequestFromWallet(context.Background(), userID, &entities.WalletWithdrawalRequest{
		Amount: decimal.NewFromInt(200),
		Source: entities.SourceCopyWallet,
	})
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusCompleted, approved.Status)
	require.NotNil(t, approved.ResolvedAt)

	account := store.Account(userID)
	assert.True(t, account.CopyWallet.Equal(decimal.NewFromInt(300)))
	assert.True(t, account.MainBalance.Equal(decimal.NewFromInt(200)))
	assert.True(t, store.LineSum(userID).Equal(account.TotalEquity()))
}

func TestRejectRefundsWalletHold(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	userID := seedUser(store, 0, 500, 0)

	tx, err := svc.RequestFromWallet(context.Background(), userID, &entities.WalletWithdrawalRequest{
		Amount: decimal.NewFromInt(200),
		Source: entities.SourceCopyWallet,
	})
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), tx.ID, "compliance hold")
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusFailed, rejected.Status)

	account := store.Account(userID)
	assert.True(t, account.CopyWallet.Equal(decimal.NewFromInt(500)), "the hold is returned to the source pool")
	assert.True(t, account.MainBalance.IsZero())
}

func TestRejectAllocationRefundsNothing(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	userID := seedUser(store, 0, 0, 1500)
	inv, tx := requestAllocation(t, store, userID, 1500, 200)

	rejected, err := svc.Reject(context.Background(), tx.ID, "compliance hold")
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusFailed, rejected.Status)

	// No money ever moved, so there is nothing to refund.
	account := store.Account(userID)
	assert.True(t, account.LongTermAllocated.Equal(decimal.NewFromInt(1500)))
	assert.True(t, account.MainBalance.IsZero())
	assert.Equal(t, entities.InvestmentStatusActive, store.Investment(inv.ID).Status)
}

func TestApproveAllocationSettlesUnderLock(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	userID := seedUser(store, 0, 0, 1500)
	inv, tx := requestAllocation(t, store, userID, 1500, 200)

	approved, err := svc.Approve(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusCompleted, approved.Status)

	account := store.Account(userID)
	assert.True(t, account.LongTermAllocated.Equal(decimal.NewFromInt(1300)))
	assert.True(t, account.MainBalance.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, entities.InvestmentStatusActive, store.Investment(inv.ID).Status)
	assert.True(t, store.Investment(inv.ID).Allocation.Equal(decimal.NewFromInt(1300)))
}

func TestApproveFullAllocationStopsInvestment(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	userID := seedUser(store, 0, 0, 1500)
	inv, tx := requestAllocation(t, store, userID, 1500, 1500)

	_, err := svc.Approve(context.Background(), tx.ID)
	require.NoError(t, err)

	settled := store.Investment(inv.ID)
	assert.Equal(t, entities.InvestmentStatusStopped, settled.Status)
	assert.True(t, settled.Allocation.IsZero())
	assert.True(t, store.Account(userID).MainBalance.Equal(decimal.NewFromInt(1500)))
}

func TestResolveIsSingleShot(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	userID := seedUser(store, 0, 500, 0)

	tx, err := svc.RequestFromWallet(context.Background(), userID, &entities.WalletWithdrawalRequest{
		Amount: decimal.NewFromInt(200),
		Source: entities.SourceCopyWallet,
	})
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), tx.ID)
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), tx.ID, "too late")
	require.Error(t, err)
	assert.True(t, domainerrors.IsStateConflict(err))

	_, err = svc.Approve(context.Background(), tx.ID)
	require.Error(t, err)
	assert.True(t, domainerrors.IsStateConflict(err))
}

func TestCancelOnlyOwnTransactions(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store)
	userID := seedUser(store, 0, 500, 0)
	stranger := seedUser(store, 0, 0, 0)

	tx, err := svc.RequestFromWallet(context.Background(), userID, &entities.WalletWithdrawalRequest{
		Amount: decimal.NewFromInt(200),
		Source: entities.SourceCopyWallet,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), stranger, tx.ID)
	require.Error(t, err)
	assert.True(t, domainerrors.IsNotFound(err))

	cancelled, err := svc.Cancel(context.Background(), userID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TransactionStatusCancelled, cancelled.Status)
	assert.True(t, store.Account(userID).CopyWallet.Equal(decimal.NewFromInt(500)))
}
