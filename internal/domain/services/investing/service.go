// Package investing implements long-term plan subscriptions: locked
// allocations with calendar-month due dates, a shared plan capacity
// ceiling enforced under lock, and idempotent maturation back into the
// long-term wallet.
package investing

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
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/ledger"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/notify"
	"github.com/yacqub6996/Apex-v2-sub000/pkg/ratelimit"
)

// Clock abstracts time so due-date math is testable
type Clock = ratelimit.Clock

// Service drives the long-term investment lifecycle
type Service struct {
	store    repositories.Store
	throttle *ratelimit.SlidingWindow
	emitter  *notify.Emitter
	clock    Clock
	logger   *zap.Logger
}

// NewService creates an investing service
func NewService(store repositories.Store, throttle *ratelimit.SlidingWindow, emitter *notify.Emitter, clock Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = ratelimit.SystemClock{}
	}
	return &Service{
		store:    store,
		throttle: throttle,
		emitter:  emitter,
		clock:    clock,
		logger:   logger,
	}
}

func (s *Service) checkThrottle(userID uuid.UUID, operation string) error {
	if s.throttle == nil {
		return nil
	}
	allowed, retryAfter := s.throttle.Allow(userID.String())
	if !allowed {
		return domainerrors.NewThrottledError(operation, int(retryAfter.Seconds())+1)
	}
	return nil
}

// guardCapacity enforces the plan ceiling under the plan's row lock.
// The caller must already hold the lock via GetByIDForUpdate; summing
// active allocations inside the same transaction makes the check safe
// against concurrent subscriptions.
func guardCapacity(ctx context.Context, uow repositories.UnitOfWork, plan *entities.Plan, additional decimal.Decimal) error {
	if plan.MaximumDeposit == nil {
		return nil
	}
	current, err := uow.Plans().SumActiveAllocations(ctx, plan.ID)
	if err != nil {
		return fmt.Errorf("failed to sum plan allocations: %w", err)
	}
	if current.Add(additional).GreaterThan(*plan.MaximumDeposit) {
		return domainerrors.NewCapacityExceededError(plan.ID.String(), current, additional, *plan.MaximumDeposit)
	}
	return nil
}

// Subscribe opens a locked allocation into a plan. Funding draws from
// the long-term wallet first, then the main balance.
func (s *Service) Subscribe(ctx context.Context, userID uuid.UUID, req *entities.SubscribeRequest) (*entities.LongTermInvestment, error) {
	if err := req.Validate(); err != nil {
		return nil, domainerrors.NewValidationError(err.Error(), nil)
	}
	amount := entities.Round2(req.Amount)
	if err := s.checkThrottle(userID, "subscribe"); err != nil {
		return nil, err
	}

	var (
		inv   *entities.LongTermInvestment
		event *entities.SettlementEvent
	)
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		plan, err := uow.Plans().GetByIDForUpdate(ctx, req.PlanID)
		if err != nil {
			return err
		}
		if amount.LessThan(plan.MinimumDeposit) {
			return domainerrors.NewValidationError("amount is below the plan minimum",
				map[string]interface{}{"minimum_deposit": plan.MinimumDeposit.StringFixed(2)})
		}
		if err := guardCapacity(ctx, uow, plan, amount); err != nil {
			return err
		}

		existing, err := uow.Investments().GetActiveByUserAndPlan(ctx, userID, plan.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domainerrors.NewStateConflictError("investment", string(existing.Status), "subscribe")
		}

		account, err := uow.Ledger().GetAccountForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		available := account.LongTermWallet.Add(account.MainBalance)
		if available.LessThan(amount) {
			return domainerrors.NewInsufficientFundsError("main+long_term_wallet", amount, available)
		}
		fromWallet := account.LongTermWallet
		if fromWallet.GreaterThan(amount) {
			fromWallet = amount
		}
		fromMain := amount.Sub(fromWallet)

		now := s.clock.Now()
		inv = &entities.LongTermInvestment{
			ID:         uuid.New(),
			UserID:     userID,
			PlanID:     plan.ID,
			Allocation: amount,
			Status:     entities.InvestmentStatusActive,
			StartedAt:  now,
			DueDate:    entities.AddCalendarMonths(now, req.LockMonths),
			UpdatedAt:  now,
		}

		deltas := []ledger.Delta{
			{Pool: entities.PoolLongTermWallet, Amount: fromWallet.Neg()},
			{Pool: entities.PoolMain, Amount: fromMain.Neg()},
			{Pool: entities.PoolLongTermAllocated, Amount: amount},
		}
		if _, err := ledger.Apply(ctx, uow, userID, deltas, fmt.Sprintf("subscribed to plan %s", plan.Name), &inv.ID); err != nil {
			return err
		}
		if err := uow.Investments().Create(ctx, inv); err != nil {
			return err
		}

		event = entities.NewSettlementEvent(userID, entities.SettlementInvestmentOpened, amount,
			fmt.Sprintf("subscribed to %s, locked until %s", plan.Name, inv.DueDate.Format("2006-01-02")),
			map[string]string{"plan_id": plan.ID.String(), "investment_id": inv.ID.String()})
		return uow.Settlements().Create(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("investment opened",
		zap.String("user_id", userID.String()),
		zap.String("plan_id", req.PlanID.String()),
		zap.String("amount", amount.StringFixed(2)),
		zap.Time("due_date", inv.DueDate))
	s.emitter.Dispatch(event)
	return inv, nil
}

// IncreaseEquity adds capital to an active investment from the long-term
// wallet. The plan ceiling applies to the increase; the due date is
// unchanged.
func (s *Service) IncreaseEquity(ctx context.Context, userID, investmentID uuid.UUID, amount decimal.Decimal) (*entities.LongTermInvestment, error) {
	amount = entities.Round2(amount)
	if !amount.IsPositive() {
		return nil, domainerrors.NewValidationError("amount must be positive", nil)
	}
	if err := s.checkThrottle(userID, "increase"); err != nil {
		return nil, err
	}

	var (
		inv   *entities.LongTermInvestment
		event *entities.SettlementEvent
	)
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		inv, err = s.lockOwned(ctx, uow, userID, investmentID)
		if err != nil {
			return err
		}
		if inv.Status != entities.InvestmentStatusActive {
			return domainerrors.NewStateConflictError("investment", string(inv.Status), "increase")
		}

		plan, err := uow.Plans().GetByIDForUpdate(ctx, inv.PlanID)
		if err != nil {
			return err
		}
		if err := guardCapacity(ctx, uow, plan, amount); err != nil {
			return err
		}

		account, err := uow.Ledger().GetAccountForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if account.LongTermWallet.LessThan(amount) {
			return domainerrors.NewInsufficientFundsError(string(entities.PoolLongTermWallet), amount, account.LongTermWallet)
		}

		deltas := []ledger.Delta{
			{Pool: entities.PoolLongTermWallet, Amount: amount.Neg()},
			{Pool: entities.PoolLongTermAllocated, Amount: amount},
		}
		if _, err := ledger.Apply(ctx, uow, userID, deltas, "investment equity increased", &inv.ID); err != nil {
			return err
		}

		inv.Allocation = entities.Round2(inv.Allocation.Add(amount))
		inv.UpdatedAt = s.clock.Now()
		if err := uow.Investments().Update(ctx, inv); err != nil {
			return err
		}

		event = entities.NewSettlementEvent(userID, entities.SettlementInvestmentIncrease, amount,
			"investment equity increased",
			map[string]string{"investment_id": inv.ID.String()})
		return uow.Settlements().Create(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	s.emitter.Dispatch(event)
	return inv, nil
}

// RequestWithdrawal files a PENDING allocation-sourced withdrawal against
// an investment. No balances move until an operator resolves it. A nil
// amount means the full current allocation; withdrawing before the due
// date requires an explicit early-exit acknowledgement.
func (s *Service) RequestWithdrawal(ctx context.Context, userID, investmentID uuid.UUID, req *entities.InvestmentWithdrawalRequest) (*entities.Transaction, error) {
	if err := s.checkThrottle(userID, "withdraw"); err != nil {
		return nil, err
	}

	var (
		tx    *entities.Transaction
		event *entities.SettlementEvent
	)
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		inv, err := s.lockOwned(ctx, uow, userID, investmentID)
		if err != nil {
			return err
		}
		if inv.Status != entities.InvestmentStatusActive {
			return domainerrors.NewStateConflictError("investment", string(inv.Status), "withdraw")
		}

		pending, err := uow.Transactions().HasPendingForInvestment(ctx, inv.ID)
		if err != nil {
			return err
		}
		if pending {
			return domainerrors.NewStateConflictError("investment", "pending_withdrawal", "withdraw")
		}

		amount := inv.Allocation
		if req.Amount != nil {
			amount = entities.Round2(*req.Amount)
		}
		if !amount.IsPositive() {
			return domainerrors.NewValidationError("withdrawal amount must be positive", nil)
		}
		if amount.GreaterThan(inv.Allocation) {
			return domainerrors.NewValidationError("withdrawal amount exceeds allocation",
				map[string]interface{}{"allocation": inv.Allocation.StringFixed(2)})
		}

		early := !inv.IsDue(s.clock.Now())
		if early && !req.AcknowledgeEarlyExit {
			return domainerrors.NewPolicyAckError("early exit terms")
		}

		source := entities.SourceActiveAllocation
		tx = &entities.Transaction{
			ID:                  uuid.New(),
			UserID:              userID,
			Amount:              amount,
			Type:                entities.TransactionTypeWithdrawal,
			Status:              entities.TransactionStatusPending,
			WithdrawalSource:    &source,
			RelatedInvestmentID: &inv.ID,
			EarlyWithdrawal:     early,
			Description:         "withdrawal from investment allocation",
			CreatedAt:           time.Now().UTC(),
		}
		if err := uow.Transactions().Create(ctx, tx); err != nil {
			return err
		}

		event = entities.NewSettlementEvent(userID, entities.SettlementWithdrawalRequest, amount,
			"allocation withdrawal requested, pending review",
			map[string]string{"transaction_id": tx.ID.String(), "investment_id": inv.ID.String()})
		return uow.Settlements().Create(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	s.emitter.Dispatch(event)
	return tx, nil
}

// Mature releases a due investment's full allocation into the long-term
// wallet and stops it. Maturing an already stopped investment is a no-op
// success, so the sweep can be retried safely.
func (s *Service) Mature(ctx context.Context, investmentID uuid.UUID) (*entities.LongTermInvestment, error) {
	var (
		inv   *entities.LongTermInvestment
		event *entities.SettlementEvent
	)
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		inv, err = uow.Investments().GetByIDForUpdate(ctx, investmentID)
		if err != nil {
			return err
		}
		if inv.Status == entities.InvestmentStatusStopped {
			return nil
		}
		if !inv.IsDue(s.clock.Now()) {
			return domainerrors.NewStateConflictError("investment", "locked", "mature")
		}

		pending, err := uow.Transactions().HasPendingForInvestment(ctx, inv.ID)
		if err != nil {
			return err
		}
		if pending {
			return domainerrors.NewStateConflictError("investment", "pending_withdrawal", "mature")
		}

		release := inv.Allocation
		now := time.Now().UTC()
		inv.Status = entities.InvestmentStatusStopped
		inv.Allocation = decimal.Zero
		inv.StoppedAt = &now
		inv.UpdatedAt = now

		if release.IsPositive() {
			deltas := []ledger.Delta{
				{Pool: entities.PoolLongTermAllocated, Amount: release.Neg()},
				{Pool: entities.PoolLongTermWallet, Amount: release},
			}
			if _, err := ledger.Apply(ctx, uow, inv.UserID, deltas, "investment matured", &inv.ID); err != nil {
				return err
			}
		}
		if err := uow.Investments().Update(ctx, inv); err != nil {
			return err
		}

		event = entities.NewSettlementEvent(inv.UserID, entities.SettlementInvestmentMatured, release,
			"investment matured, funds released to long-term wallet",
			map[string]string{"investment_id": inv.ID.String()})
		return uow.Settlements().Create(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	if event != nil {
		s.logger.Info("investment matured",
			zap.String("investment_id", investmentID.String()),
			zap.String("released", event.Amount.StringFixed(2)))
		s.emitter.Dispatch(event)
	}
	return inv, nil
}

// MatureDue matures every due investment, logging and skipping failures
// so one bad position cannot stall the sweep. Returns the matured count.
func (s *Service) MatureDue(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	var due []*entities.LongTermInvestment
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		due, err = uow.Investments().ListDue(ctx, s.clock.Now(), batchSize)
		return err
	})
	if err != nil {
		return 0, err
	}

	matured := 0
	for _, inv := range due {
		if _, err := s.Mature(ctx, inv.ID); err != nil {
			s.logger.Warn("failed to mature investment, skipping",
				zap.String("investment_id", inv.ID.String()),
				zap.Error(err))
			continue
		}
		matured++
	}
	return matured, nil
}

// PlanCapacity reports live utilisation of a plan's ceiling
func (s *Service) PlanCapacity(ctx context.Context, planID uuid.UUID) (*entities.PlanCapacity, error) {
	var capacity *entities.PlanCapacity
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		plan, err := uow.Plans().GetByID(ctx, planID)
		if err != nil {
			return err
		}
		allocated, err := uow.Plans().SumActiveAllocations(ctx, planID)
		if err != nil {
			return err
		}
		capacity = &entities.PlanCapacity{
			PlanID:    planID,
			Allocated: allocated,
			Limit:     plan.MaximumDeposit,
		}
		if plan.MaximumDeposit != nil {
			remaining := plan.MaximumDeposit.Sub(allocated)
			capacity.Remaining = &remaining
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return capacity, nil
}

// ListInvestments returns a user's investments with plan details
func (s *Service) ListInvestments(ctx context.Context, userID uuid.UUID) ([]*entities.LongTermInvestment, error) {
	var out []*entities.LongTermInvestment
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		out, err = uow.Investments().ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePlan registers an investment plan
func (s *Service) CreatePlan(ctx context.Context, req *entities.CreatePlanRequest) (*entities.Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, domainerrors.NewValidationError(err.Error(), nil)
	}

	plan := &entities.Plan{
		ID:             uuid.New(),
		Name:           req.Name,
		MinimumDeposit: entities.Round2(req.MinimumDeposit),
		CreatedAt:      s.clock.Now().UTC(),
	}
	if req.MaximumDeposit != nil {
		max := entities.Round2(*req.MaximumDeposit)
		plan.MaximumDeposit = &max
	}

	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		return uow.Plans().Create(ctx, plan)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan registered",
		zap.String("plan_id", plan.ID.String()),
		zap.String("name", plan.Name))
	return plan, nil
}

// ListPlans returns available plans
func (s *Service) ListPlans(ctx context.Context, limit, offset int) ([]*entities.Plan, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var out []*entities.Plan
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		out, err = uow.Plans().List(ctx, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) lockOwned(ctx context.Context, uow repositories.UnitOfWork, userID, investmentID uuid.UUID) (*entities.LongTermInvestment, error) {
	inv, err := uow.Investments().GetByIDForUpdate(ctx, investmentID)
	if err != nil {
		return nil, err
	}
	if inv.UserID != userID {
		return nil, domainerrors.NewNotFoundError("investment")
	}
	return inv, nil
}
