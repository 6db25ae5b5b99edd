// Package withdrawal coordinates the two-phase withdrawal flow. Wallet
// sources hold funds at request time and refund on rejection; allocation
// sources move nothing until approval, so rejection touches no balance.
package withdrawal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainerrors "github.com/yacqub6996/Apex-v2-sub000/internal/domain/errors"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/repositories"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/ledger"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/notify"
)

// Service drives withdrawal requests through PENDING to a terminal state
type Service struct {
	store   repositories.Store
	emitter *notify.Emitter
	logger  *zap.Logger
}

// NewService creates a withdrawal service
func NewService(store repositories.Store, emitter *notify.Emitter, logger *zap.Logger) *Service {
	return &Service{store: store, emitter: emitter, logger: logger}
}

// RequestFromWallet files a wallet-sourced withdrawal. The source pool is
// debited immediately so the held funds cannot be spent twice while the
// request is pending.
func (s *Service) RequestFromWallet(ctx context.Context, userID uuid.UUID, req *entities.WalletWithdrawalRequest) (*entities.Transaction, error) {
	amount := entities.Round2(req.Amount)
	if !amount.IsPositive() {
		return nil, domainerrors.NewValidationError("withdrawal amount must be positive", nil)
	}
	if err := req.Source.Validate(); err != nil {
		return nil, domainerrors.NewValidationError(err.Error(), nil)
	}
	if !req.Source.IsWalletSourced() {
		return nil, domainerrors.NewValidationError("allocation withdrawals go through the investment endpoint", nil)
	}
	pool, err := req.Source.Pool()
	if err != nil {
		return nil, domainerrors.NewValidationError(err.Error(), nil)
	}

	var (
		tx    *entities.Transaction
		event *entities.SettlementEvent
	)
	err = s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		source := req.Source
		tx = &entities.Transaction{
			ID:               uuid.New(),
			UserID:           userID,
			Amount:           amount,
			Type:             entities.TransactionTypeWithdrawal,
			Status:           entities.TransactionStatusPending,
			WithdrawalSource: &source,
			Description:      "wallet withdrawal request",
			CreatedAt:        time.Now().UTC(),
		}

		deltas := []ledger.Delta{{Pool: pool, Amount: amount.Neg()}}
		if _, err := ledger.Apply(ctx, uow, userID, deltas, "withdrawal hold", &tx.ID); err != nil {
			return err
		}
		if err := uow.Transactions().Create(ctx, tx); err != nil {
			return err
		}

		event = entities.NewSettlementEvent(userID, entities.SettlementWithdrawalRequest, amount,
			"wallet withdrawal requested, funds held",
			map[string]string{"transaction_id": tx.ID.String(), "source": string(source)})
		return uow.Settlements().Create(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal requested",
		zap.String("user_id", userID.String()),
		zap.String("transaction_id", tx.ID.String()),
		zap.String("source", string(req.Source)),
		zap.String("amount", amount.StringFixed(2)))
	s.emitter.Dispatch(event)
	return tx, nil
}

// Approve completes a pending withdrawal. Wallet-sourced funds were held
// at request time, so approval just lands them in the main balance.
// Allocation-sourced requests are re-validated against the live
// allocation under lock before any money moves.
func (s *Service) Approve(ctx context.Context, transactionID uuid.UUID) (*entities.Transaction, error) {
	var (
		tx    *entities.Transaction
		event *entities.SettlementEvent
	)
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		tx, err = s.lockPending(ctx, uow, transactionID)
		if err != nil {
			return err
		}

		if tx.WithdrawalSource != nil && !tx.WithdrawalSource.IsWalletSourced() {
			if err := s.settleAllocation(ctx, uow, tx); err != nil {
				return err
			}
		} else {
			deltas := []ledger.Delta{{Pool: entities.PoolMain, Amount: tx.Amount}}
			if _, err := ledger.Apply(ctx, uow, tx.UserID, deltas, "withdrawal approved", &tx.ID); err != nil {
				return err
			}
		}

		if err := tx.Resolve(entities.TransactionStatusCompleted); err != nil {
			return domainerrors.NewStateConflictError("transaction", string(tx.Status), "approve")
		}
		if err := uow.Transactions().Update(ctx, tx); err != nil {
			return err
		}

		event = entities.NewSettlementEvent(tx.UserID, entities.SettlementWithdrawalApproved, tx.Amount,
			"withdrawal approved",
			map[string]string{"transaction_id": tx.ID.String()})
		return uow.Settlements().Create(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal approved",
		zap.String("transaction_id", transactionID.String()),
		zap.String("amount", tx.Amount.StringFixed(2)))
	s.emitter.Dispatch(event)
	return tx, nil
}

// settleAllocation moves an approved allocation withdrawal out of the
// investment. The allocation may have shrunk since the request; approval
// fails if the requested amount no longer fits, and stops the investment
// when settlement drains it.
func (s *Service) settleAllocation(ctx context.Context, uow repositories.UnitOfWork, tx *entities.Transaction) error {
	if tx.RelatedInvestmentID == nil {
		return domainerrors.NewValidationError("allocation withdrawal has no related investment", nil)
	}
	inv, err := uow.Investments().GetByIDForUpdate(ctx, *tx.RelatedInvestmentID)
	if err != nil {
		return err
	}
	if inv.Status != entities.InvestmentStatusActive {
		return domainerrors.NewStateConflictError("investment", string(inv.Status), "settle withdrawal")
	}
	if tx.Amount.GreaterThan(inv.Allocation) {
		return domainerrors.NewInsufficientFundsError(string(entities.PoolLongTermAllocated), tx.Amount, inv.Allocation)
	}

	deltas := []ledger.Delta{
		{Pool: entities.PoolLongTermAllocated, Amount: tx.Amount.Neg()},
		{Pool: entities.PoolMain, Amount: tx.Amount},
	}
	if _, err := ledger.Apply(ctx, uow, tx.UserID, deltas, "allocation withdrawal settled", &tx.ID); err != nil {
		return err
	}

	now := time.Now().UTC()
	inv.Allocation = entities.Round2(inv.Allocation.Sub(tx.Amount))
	if inv.Allocation.IsZero() {
		inv.Status = entities.InvestmentStatusStopped
		inv.StoppedAt = &now
	}
	inv.UpdatedAt = now
	return uow.Investments().Update(ctx, inv)
}

// Reject fails a pending withdrawal. Wallet-sourced holds are refunded
// to the source pool; allocation-sourced requests never moved money, so
// nothing is refunded.
func (s *Service) Reject(ctx context.Context, transactionID uuid.UUID, reason string) (*entities.Transaction, error) {
	return s.resolveNegative(ctx, transactionID, uuid.Nil, entities.TransactionStatusFailed, reason)
}

// Cancel cancels a user's own pending withdrawal with the same refund
// rules as a rejection.
func (s *Service) Cancel(ctx context.Context, userID, transactionID uuid.UUID) (*entities.Transaction, error) {
	return s.resolveNegative(ctx, transactionID, userID, entities.TransactionStatusCancelled, "cancelled by user")
}

// resolveNegative moves a pending withdrawal to a negative terminal
// state. A non-nil ownerID restricts the resolution to that user's own
// transactions.
func (s *Service) resolveNegative(ctx context.Context, transactionID, ownerID uuid.UUID, status entities.TransactionStatus, reason string) (*entities.Transaction, error) {
	var (
		tx       *entities.Transaction
		event    *entities.SettlementEvent
		refunded decimal.Decimal
	)
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		tx, err = s.lockPending(ctx, uow, transactionID)
		if err != nil {
			return err
		}
		if ownerID != uuid.Nil && tx.UserID != ownerID {
			return domainerrors.NewNotFoundError("transaction")
		}

		refunded = decimal.Zero
		if tx.WithdrawalSource != nil && tx.WithdrawalSource.IsWalletSourced() {
			pool, err := tx.WithdrawalSource.Pool()
			if err != nil {
				return err
			}
			deltas := []ledger.Delta{{Pool: pool, Amount: tx.Amount}}
			if _, err := ledger.Apply(ctx, uow, tx.UserID, deltas, "withdrawal hold refunded", &tx.ID); err != nil {
				return err
			}
			refunded = tx.Amount
		}

		if err := tx.Resolve(status); err != nil {
			return domainerrors.NewStateConflictError("transaction", string(tx.Status), "resolve")
		}
		if err := uow.Transactions().Update(ctx, tx); err != nil {
			return err
		}

		event = entities.NewSettlementEvent(tx.UserID, entities.SettlementWithdrawalRejected, tx.Amount,
			reason,
			map[string]string{
				"transaction_id": tx.ID.String(),
				"status":         string(status),
				"refunded":       refunded.StringFixed(2),
			})
		return uow.Settlements().Create(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal resolved",
		zap.String("transaction_id", transactionID.String()),
		zap.String("status", string(status)),
		zap.String("refunded", refunded.StringFixed(2)))
	s.emitter.Dispatch(event)
	return tx, nil
}

func (s *Service) lockPending(ctx context.Context, uow repositories.UnitOfWork, transactionID uuid.UUID) (*entities.Transaction, error) {
	tx, err := uow.Transactions().GetByIDForUpdate(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Type != entities.TransactionTypeWithdrawal {
		return nil, domainerrors.NewValidationError("transaction is not a withdrawal", nil)
	}
	if tx.Status != entities.TransactionStatusPending {
		return nil, domainerrors.NewStateConflictError("transaction", string(tx.Status), "resolve")
	}
	return tx, nil
}

// ListByUser returns a user's withdrawal history
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []*entities.Transaction
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		out, err = uow.Transactions().ListByUser(ctx, userID, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPending returns pending withdrawals for operator review
func (s *Service) ListPending(ctx context.Context, limit, offset int) ([]*entities.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []*entities.Transaction
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		out, err = uow.Transactions().ListByStatus(ctx, entities.TransactionStatusPending, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
