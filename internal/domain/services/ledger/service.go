// Package ledger owns the five-pool account model and the append-only
// journal behind it. Every balance mutation in the engine flows through
// Apply so the account and its lines can never drift apart.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainerrors "github.com/yacqub6996/Apex-v2-sub000/internal/domain/errors"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/repositories"
)

// Delta is one signed pool mutation inside a unit of work
type Delta struct {
	Pool   entities.Pool
	Amount decimal.Decimal
}

// Apply applies a set of pool deltas to a user's account under the
// transaction's row lock and appends one journal line per non-zero delta.
// Either every delta lands or none do; a delta that would drive a pool
// negative fails the whole batch with an insufficient-funds error.
func Apply(ctx context.Context, uow repositories.UnitOfWork, userID uuid.UUID, deltas []Delta, description string, referenceID *uuid.UUID) (*entities.LedgerAccount, error) {
	account, err := uow.Ledger().GetAccountForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock ledger account: %w", err)
	}

	for _, d := range deltas {
		amount := entities.Round2(d.Amount)
		if amount.IsZero() {
			continue
		}
		if _, err := account.ApplyDelta(d.Pool, amount); err != nil {
			if amount.IsNegative() {
				return nil, domainerrors.NewInsufficientFundsError(string(d.Pool), amount.Neg(), account.Balance(d.Pool))
			}
			return nil, err
		}
		line := entities.NewLedgerLine(userID, d.Pool, amount, description, referenceID)
		if err := uow.Ledger().AppendLine(ctx, line); err != nil {
			return nil, fmt.Errorf("failed to append ledger line: %w", err)
		}
	}

	if err := uow.Ledger().UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update ledger account: %w", err)
	}
	return account, nil
}

// Service exposes account reads and lifecycle operations
type Service struct {
	store  repositories.Store
	logger *zap.Logger
}

// NewService creates a ledger service
func NewService(store repositories.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateAccount provisions an empty five-pool account for a new user
func (s *Service) CreateAccount(ctx context.Context, userID uuid.UUID) (*entities.LedgerAccount, error) {
	if userID == uuid.Nil {
		return nil, domainerrors.NewValidationError("user ID is required", nil)
	}
	account := entities.NewLedgerAccount(userID)
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		return uow.Ledger().CreateAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ledger account created", zap.String("user_id", userID.String()))
	return account, nil
}

// Deposit credits the main balance. Used by test fixtures and the admin
// adjustment path; external funding rails are out of scope here.
func (s *Service) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, description string) (*entities.LedgerAccount, error) {
	if !amount.IsPositive() {
		return nil, domainerrors.NewValidationError("deposit amount must be positive", nil)
	}
	var account *entities.LedgerAccount
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		account, err = Apply(ctx, uow, userID, []Delta{{Pool: entities.PoolMain, Amount: amount}}, description, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Snapshot returns a user's balances, total equity, and recent journal lines
func (s *Service) Snapshot(ctx context.Context, userID uuid.UUID, recentLimit int) (*entities.LedgerSnapshot, error) {
	if recentLimit <= 0 {
		recentLimit = 20
	}
	var snapshot *entities.LedgerSnapshot
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		account, err := uow.Ledger().GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		lines, err := uow.Ledger().ListLines(ctx, userID, recentLimit, 0)
		if err != nil {
			return err
		}
		snapshot = &entities.LedgerSnapshot{
			UserID:      userID,
			Account:     account,
			TotalEquity: account.TotalEquity(),
			RecentLines: lines,
			AsOf:        time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// VerifyConservation checks that the signed sum of a user's journal lines
// equals the user's total equity. A mismatch means a mutation bypassed
// Apply and is reported as a conservation breach.
func (s *Service) VerifyConservation(ctx context.Context, userID uuid.UUID) error {
	var lineSum, equity decimal.Decimal
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		account, err := uow.Ledger().GetAccount(ctx, userID)
		if err != nil {
			return err
		}
		equity = account.TotalEquity()
		lineSum, err = uow.Ledger().SumLines(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}
	if !lineSum.Equal(equity) {
		s.logger.Error("ledger conservation breach",
			zap.String("user_id", userID.String()),
			zap.String("line_sum", lineSum.StringFixed(2)),
			zap.String("total_equity", equity.StringFixed(2)))
		return &domainerrors.DomainError{
			Err:     domainerrors.ErrConservationBreach,
			Code:    "CONSERVATION_BREACH",
			Message: "journal lines do not reconcile with account equity",
			Details: map[string]interface{}{
				"user_id":      userID.String(),
				"line_sum":     lineSum.StringFixed(2),
				"total_equity": equity.StringFixed(2),
			},
		}
	}
	return nil
}

// ListLines returns a page of a user's journal
func (s *Service) ListLines(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.LedgerLine, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var lines []*entities.LedgerLine
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		lines, err = uow.Ledger().ListLines(ctx, userID, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// ListSettlements returns a page of a user's settlement audit trail
func (s *Service) ListSettlements(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.SettlementEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var events []*entities.SettlementEvent
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		events, err = uow.Settlements().ListByUser(ctx, userID, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
