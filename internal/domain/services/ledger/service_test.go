package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainerrors "github.com/yacqub6996/Apex-v2-sub000/internal/domain/errors"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/repositories"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/repositories/repotest"
)

func TestCreateAccountAndDeposit(t *testing.T) {
	store := repotest.NewStore()
	svc := NewService(store, zap.NewNop())
	userID := uuid.New()

	account, err := svc.CreateAccount(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, account.TotalEquity().IsZero())

	account, err = svc.Deposit(context.Background(), userID, decimal.NewFromInt(1000), "initial funding")
	require.NoError(t, err)
	assert.True(t, account.MainBalance.Equal(decimal.NewFromInt(1000)))

	require.NoError(t, svc.VerifyConservation(context.Background(), userID))
}

func TestApplyBatchIsAtomic(t *testing.T) {
	store := repotest.NewStore()
	userID := uuid.New()
	account := entities.NewLedgerAccount(userID)
	account.MainBalance = decimal.NewFromInt(100)
	store.SeedAccount(account)

	// The second delta overdraws, so the first must not survive either.
	err := store.WithTx(context.Background(), func(uow repositories.UnitOfWork) error {
		_, err := Apply(context.Background(), uow, userID, []Delta{
			{Pool: entities.PoolCopyAllocated, Amount: decimal.NewFromInt(50)},
			{Pool: entities.PoolMain, Amount: decimal.NewFromInt(-500)},
		}, "overdraw attempt", nil)
		return err
	})
	require.Error(t, err)
	assert.True(t, domainerrors.IsInsufficientFunds(err))

	after := store.Account(userID)
	assert.True(t, after.MainBalance.Equal(decimal.NewFromInt(100)))
	assert.True(t, after.CopyAllocated.IsZero())
	assert.True(t, store.LineSum(userID).Equal(after.TotalEquity()))
}

func TestApplyPairsEveryDeltaWithALine(t *testing.T) {
	store := repotest.NewStore()
	userID := uuid.New()
	account := entities.NewLedgerAccount(userID)
	account.MainBalance = decimal.NewFromInt(500)
	store.SeedAccount(account)

	err := store.WithTx(context.Background(), func(uow repositories.UnitOfWork) error {
		_, err := Apply(context.Background(), uow, userID, []Delta{
			{Pool: entities.PoolMain, Amount: decimal.NewFromInt(-200)},
			{Pool: entities.PoolCopyAllocated, Amount: decimal.NewFromInt(200)},
			{Pool: entities.PoolCopyWallet, Amount: decimal.Zero}, // zero deltas are dropped
		}, "allocation", nil)
		return err
	})
	require.NoError(t, err)

	svc := NewService(store, zap.NewNop())
	lines, err := svc.ListLines(context.Background(), userID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, lines, 3, "seed line plus one per non-zero delta")
	require.NoError(t, svc.VerifyConservation(context.Background(), userID))
}

func TestSnapshotReportsEquityAndLines(t *testing.T) {
	store := repotest.NewStore()
	svc := NewService(store, zap.NewNop())
	userID := uuid.New()
	account := entities.NewLedgerAccount(userID)
	account.MainBalance = decimal.NewFromInt(300)
	account.CopyAllocated = decimal.NewFromInt(700)
	store.SeedAccount(account)

	snapshot, err := svc.Snapshot(context.Background(), userID, 10)
	require.NoError(t, err)
	assert.True(t, snapshot.TotalEquity.Equal(decimal.NewFromInt(1000)))
	assert.NotEmpty(t, snapshot.RecentLines)
}

func TestVerifyConservationDetectsDrift(t *testing.T) {
	store := repotest.NewStore()
	svc := NewService(store, zap.NewNop())
	userID := uuid.New()
	account := entities.NewLedgerAccount(userID)
	account.MainBalance = decimal.NewFromInt(500)
	store.SeedAccount(account)

	// Mutate the account without a matching journal line.
	err := store.WithTx(context.Background(), func(uow repositories.UnitOfWork) error {
		acc, err := uow.Ledger().GetAccountForUpdate(context.Background(), userID)
		if err != nil {
			return err
		}
		if _, err := acc.ApplyDelta(entities.PoolMain, decimal.NewFromInt(100)); err != nil {
			return err
		}
		return uow.Ledger().UpdateAccount(context.Background(), acc)
	})
	require.NoError(t, err)

	err = svc.VerifyConservation(context.Background(), userID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrConservationBreach)
}
