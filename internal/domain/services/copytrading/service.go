// Package copytrading implements the copy relationship lifecycle: a user
// allocates capital against a trader, the allocation tracks distributed
// profit and loss, and capital is released back through the copy wallet.
package copytrading

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

// Service drives copy relationship state transitions. Every mutation runs
// in one transaction covering the relationship row, the follower's ledger
// account, and the trader's aggregate counters.
type Service struct {
	store    repositories.Store
	throttle *ratelimit.SlidingWindow
	emitter  *notify.Emitter
	logger   *zap.Logger
}

// NewService creates a copy trading service
func NewService(store repositories.Store, throttle *ratelimit.SlidingWindow, emitter *notify.Emitter, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		throttle: throttle,
		emitter:  emitter,
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

// Start opens a new relationship against a trader. The allocation is
// funded from the copy wallet first and the main balance for the
// remainder, then committed into the copy_allocated pool.
func (s *Service) Start(ctx context.Context, userID uuid.UUID, req *entities.StartCopyRequest) (*entities.CopyRelationship, error) {
	amount := entities.Round2(req.Amount)
	if !amount.IsPositive() {
		return nil, domainerrors.NewValidationError("copy amount must be positive", nil)
	}
	if amount.LessThan(entities.MinimumCopyRemainder) {
		return nil, domainerrors.NewValidationError(
			fmt.Sprintf("copy amount must be at least %s", entities.MinimumCopyRemainder.StringFixed(2)),
			map[string]interface{}{"minimum": entities.MinimumCopyRemainder.StringFixed(2)})
	}
	if err := s.checkThrottle(userID, "start"); err != nil {
		return nil, err
	}

	var (
		rel   *entities.CopyRelationship
		event *entities.SettlementEvent
	)
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		trader, err := uow.Traders().GetByIDForUpdate(ctx, req.TraderID)
		if err != nil {
			return err
		}
		if trader.Status != entities.TraderStatusActive {
			return domainerrors.NewStateConflictError("trader", string(trader.Status), "copy")
		}

		existing, err := uow.CopyRelationships().GetActiveByUserAndTrader(ctx, userID, req.TraderID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domainerrors.NewStateConflictError("copy relationship", string(existing.Status), "start")
		}

		account, err := uow.Ledger().GetAccountForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		available := account.CopyWallet.Add(account.MainBalance)
		if available.LessThan(amount) {
			return domainerrors.NewInsufficientFundsError("main+copy_wallet", amount, available)
		}
		fromWallet := account.CopyWallet
		if fromWallet.GreaterThan(amount) {
			fromWallet = amount
		}
		fromMain := amount.Sub(fromWallet)

		now := time.Now().UTC()
		rel = &entities.CopyRelationship{
			ID:         uuid.New(),
			UserID:     userID,
			TraderID:   req.TraderID,
			CopyAmount: amount,
			Status:     entities.CopyStatusActive,
			StartedAt:  now,
			UpdatedAt:  now,
		}

		deltas := []ledger.Delta{
			{Pool: entities.PoolCopyWallet, Amount: fromWallet.Neg()},
			{Pool: entities.PoolMain, Amount: fromMain.Neg()},
			{Pool: entities.PoolCopyAllocated, Amount: amount},
		}
		if _, err := ledger.Apply(ctx, uow, userID, deltas, fmt.Sprintf("start copying %s", trader.DisplayName), &rel.ID); err != nil {
			return err
		}
		if err := uow.CopyRelationships().Create(ctx, rel); err != nil {
			return err
		}
		if err := uow.Traders().AdjustCounters(ctx, trader.ID, 1, amount); err != nil {
			return err
		}

		event = entities.NewSettlementEvent(userID, entities.SettlementCopyStarted, amount,
			fmt.Sprintf("started copying %s", trader.DisplayName),
			map[string]string{"trader_id": trader.ID.String(), "relationship_id": rel.ID.String()})
		return uow.Settlements().Create(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("copy relationship started",
		zap.String("user_id", userID.String()),
		zap.String("trader_id", req.TraderID.String()),
		zap.String("amount", amount.StringFixed(2)))
	s.emitter.Dispatch(event)
	return rel, nil
}

// Pause suspends distributions to an active relationship. Capital stays
// in copy_allocated; the trader's live counters drop the follower.
func (s *Service) Pause(ctx context.Context, userID, relationshipID uuid.UUID) (*entities.CopyRelationship, error) {
	if err := s.checkThrottle(userID, "pause"); err != nil {
		return nil, err
	}
	var rel *entities.CopyRelationship
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		rel, err = s.lockOwned(ctx, uow, userID, relationshipID)
		if err != nil {
			return err
		}
		if rel.Status != entities.CopyStatusActive {
			return domainerrors.NewStateConflictError("copy relationship", string(rel.Status), "pause")
		}
		rel.Status = entities.CopyStatusPaused
		rel.UpdatedAt = time.Now().UTC()
		if err := uow.CopyRelationships().Update(ctx, rel); err != nil {
			return err
		}
		return uow.Traders().AdjustCounters(ctx, rel.TraderID, -1, rel.CopyAmount.Neg())
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("copy relationship paused",
		zap.String("user_id", userID.String()),
		zap.String("relationship_id", relationshipID.String()))
	return rel, nil
}

// Resume reactivates a paused relationship
func (s *Service) Resume(ctx context.Context, userID, relationshipID uuid.UUID) (*entities.CopyRelationship, error) {
	if err := s.checkThrottle(userID, "resume"); err != nil {
		return nil, err
	}
	var rel *entities.CopyRelationship
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		rel, err = s.lockOwned(ctx, uow, userID, relationshipID)
		if err != nil {
			return err
		}
		if rel.Status != entities.CopyStatusPaused {
			return domainerrors.NewStateConflictError("copy relationship", string(rel.Status), "resume")
		}
		rel.Status = entities.CopyStatusActive
		rel.UpdatedAt = time.Now().UTC()
		if err := uow.CopyRelationships().Update(ctx, rel); err != nil {
			return err
		}
		return uow.Traders().AdjustCounters(ctx, rel.TraderID, 1, rel.CopyAmount)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("copy relationship resumed",
		zap.String("user_id", userID.String()),
		zap.String("relationship_id", relationshipID.String()))
	return rel, nil
}

// Stop terminates a relationship and releases its equity-proportional
// share of the copy_allocated pool into the copy wallet. Stopping an
// already stopped relationship is a no-op success.
func (s *Service) Stop(ctx context.Context, userID, relationshipID uuid.UUID) (*entities.CopyRelationship, error) {
	if err := s.checkThrottle(userID, "stop"); err != nil {
		return nil, err
	}
	var (
		rel   *entities.CopyRelationship
		event *entities.SettlementEvent
	)
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		rel, err = s.lockOwned(ctx, uow, userID, relationshipID)
		if err != nil {
			return err
		}
		if rel.IsTerminal() {
			return nil
		}
		event, err = s.stopLocked(ctx, uow, rel)
		return err
	})
	if err != nil {
		return nil, err
	}
	if event != nil {
		s.emitter.Dispatch(event)
	}
	return rel, nil
}

// stopLocked performs the stop against an already locked, non-terminal
// relationship. The release is the relationship's share of the user's
// copy_allocated pool, weighted by copy amount across non-stopped
// relationships. The ratio is 1 unless paused relationships skipped
// distributions that moved the pool.
func (s *Service) stopLocked(ctx context.Context, uow repositories.UnitOfWork, rel *entities.CopyRelationship) (*entities.SettlementEvent, error) {
	account, err := uow.Ledger().GetAccountForUpdate(ctx, rel.UserID)
	if err != nil {
		return nil, err
	}

	open, err := uow.CopyRelationships().ListByUser(ctx, rel.UserID)
	if err != nil {
		return nil, err
	}
	totalCopy := decimal.Zero
	for _, r := range open {
		if !r.IsTerminal() {
			totalCopy = totalCopy.Add(r.CopyAmount)
		}
	}

	release := decimal.Zero
	if totalCopy.IsPositive() {
		release = entities.Round2(rel.CopyAmount.Mul(account.CopyAllocated).Div(totalCopy))
	}
	if release.GreaterThan(account.CopyAllocated) {
		release = account.CopyAllocated
	}

	wasActive := rel.Status == entities.CopyStatusActive
	now := time.Now().UTC()
	rel.Status = entities.CopyStatusStopped
	rel.StoppedAt = &now
	rel.UpdatedAt = now

	if release.IsPositive() {
		deltas := []ledger.Delta{
			{Pool: entities.PoolCopyAllocated, Amount: release.Neg()},
			{Pool: entities.PoolCopyWallet, Amount: release},
		}
		if _, err := ledger.Apply(ctx, uow, rel.UserID, deltas, "copy relationship stopped", &rel.ID); err != nil {
			return nil, err
		}
	}
	if err := uow.CopyRelationships().Update(ctx, rel); err != nil {
		return nil, err
	}
	if wasActive {
		if err := uow.Traders().AdjustCounters(ctx, rel.TraderID, -1, rel.CopyAmount.Neg()); err != nil {
			return nil, err
		}
	}

	event := entities.NewSettlementEvent(rel.UserID, entities.SettlementCopyStopped, release,
		"stopped copying, funds released to copy wallet",
		map[string]string{"trader_id": rel.TraderID.String(), "relationship_id": rel.ID.String()})
	if err := uow.Settlements().Create(ctx, event); err != nil {
		return nil, err
	}

	s.logger.Info("copy relationship stopped",
		zap.String("user_id", rel.UserID.String()),
		zap.String("relationship_id", rel.ID.String()),
		zap.String("released", release.StringFixed(2)))
	return event, nil
}

// Reduce releases part of a relationship's allocation into the copy
// wallet at face value. The remainder must stay at or above the floor:
// the larger of $100 and 10% of the pre-reduce amount. A reduce that
// would leave exactly zero becomes a stop.
func (s *Service) Reduce(ctx context.Context, userID, relationshipID uuid.UUID, amount decimal.Decimal) (*entities.CopyRelationship, error) {
	amount = entities.Round2(amount)
	if !amount.IsPositive() {
		return nil, domainerrors.NewValidationError("reduce amount must be positive", nil)
	}
	if err := s.checkThrottle(userID, "reduce"); err != nil {
		return nil, err
	}

	var (
		rel   *entities.CopyRelationship
		event *entities.SettlementEvent
	)
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		rel, err = s.lockOwned(ctx, uow, userID, relationshipID)
		if err != nil {
			return err
		}
		if rel.IsTerminal() {
			return domainerrors.NewStateConflictError("copy relationship", string(rel.Status), "reduce")
		}
		if amount.GreaterThan(rel.CopyAmount) {
			return domainerrors.NewValidationError("reduce amount exceeds copy amount",
				map[string]interface{}{"copy_amount": rel.CopyAmount.StringFixed(2)})
		}

		remainder := rel.CopyAmount.Sub(amount)
		if remainder.IsZero() {
			event, err = s.stopLocked(ctx, uow, rel)
			return err
		}

		floor := entities.ReduceFloor(rel.CopyAmount)
		if remainder.LessThan(floor) {
			return domainerrors.NewValidationError("remaining copy amount would fall below the minimum",
				map[string]interface{}{
					"remainder": remainder.StringFixed(2),
					"minimum":   floor.StringFixed(2),
				})
		}

		deltas := []ledger.Delta{
			{Pool: entities.PoolCopyAllocated, Amount: amount.Neg()},
			{Pool: entities.PoolCopyWallet, Amount: amount},
		}
		if _, err := ledger.Apply(ctx, uow, userID, deltas, "copy allocation reduced", &rel.ID); err != nil {
			return err
		}

		wasActive := rel.Status == entities.CopyStatusActive
		rel.CopyAmount = remainder
		rel.UpdatedAt = time.Now().UTC()
		if err := uow.CopyRelationships().Update(ctx, rel); err != nil {
			return err
		}
		if wasActive {
			if err := uow.Traders().AdjustCounters(ctx, rel.TraderID, 0, amount.Neg()); err != nil {
				return err
			}
		}

		event = entities.NewSettlementEvent(userID, entities.SettlementCopyReduced, amount,
			"copy allocation reduced, funds released to copy wallet",
			map[string]string{"relationship_id": rel.ID.String()})
		return uow.Settlements().Create(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	if event != nil {
		s.emitter.Dispatch(event)
	}
	return rel, nil
}

// lockOwned loads a relationship under lock and verifies ownership
func (s *Service) lockOwned(ctx context.Context, uow repositories.UnitOfWork, userID, relationshipID uuid.UUID) (*entities.CopyRelationship, error) {
	rel, err := uow.CopyRelationships().GetByIDForUpdate(ctx, relationshipID)
	if err != nil {
		return nil, err
	}
	if rel.UserID != userID {
		return nil, domainerrors.NewNotFoundError("copy relationship")
	}
	return rel, nil
}

// ListRelationships returns a user's relationships as summaries
func (s *Service) ListRelationships(ctx context.Context, userID uuid.UUID) ([]*entities.CopyRelationshipSummary, error) {
	var rels []*entities.CopyRelationship
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		rels, err = uow.CopyRelationships().ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	summaries := make([]*entities.CopyRelationshipSummary, 0, len(rels))
	for _, r := range rels {
		summary := &entities.CopyRelationshipSummary{
			ID:         r.ID,
			TraderID:   r.TraderID,
			CopyAmount: r.CopyAmount,
			Status:     r.Status,
			StartedAt:  r.StartedAt,
		}
		if r.Trader != nil {
			summary.TraderName = r.Trader.DisplayName
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetRelationship returns one relationship owned by the user
func (s *Service) GetRelationship(ctx context.Context, userID, relationshipID uuid.UUID) (*entities.CopyRelationship, error) {
	var rel *entities.CopyRelationship
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		rel, err = uow.CopyRelationships().GetByID(ctx, relationshipID)
		if err != nil {
			return err
		}
		if rel.UserID != userID {
			return domainerrors.NewNotFoundError("copy relationship")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// CreateTrader registers a trader that users may copy
func (s *Service) CreateTrader(ctx context.Context, req *entities.CreateTraderRequest) (*entities.Trader, error) {
	if err := req.Validate(); err != nil {
		return nil, domainerrors.NewValidationError(err.Error(), nil)
	}

	now := time.Now().UTC()
	trader := &entities.Trader{
		ID:            uuid.New(),
		DisplayName:   req.DisplayName,
		Status:        entities.TraderStatusActive,
		RiskTolerance: req.RiskTolerance,
		CopierCount:   0,
		AUM:           decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		return uow.Traders().Create(ctx, trader)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trader registered",
		zap.String("trader_id", trader.ID.String()),
		zap.String("risk_tolerance", string(trader.RiskTolerance)))
	return trader, nil
}

// ListTraders returns copyable traders
func (s *Service) ListTraders(ctx context.Context, limit, offset int) ([]*entities.Trader, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var traders []*entities.Trader
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		traders, err = uow.Traders().List(ctx, entities.TraderStatusActive, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return traders, nil
}
