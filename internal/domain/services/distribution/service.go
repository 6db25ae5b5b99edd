// Package distribution applies profit and loss events fan-out: a trader
// event scales into every active follower's allocation, a plan event into
// every active investment. One event is one transaction; a failure rolls
// back the whole fan-out rather than leaving some followers settled.
package distribution

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainerrors "github.com/yacqub6996/Apex-v2-sub000/internal/domain/errors"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/repositories"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/ledger"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/services/notify"
)

var hundred = decimal.NewFromInt(100)

// Service distributes profit events across followers and investors
type Service struct {
	store   repositories.Store
	emitter *notify.Emitter
	logger  *zap.Logger
}

// NewService creates a distribution service
func NewService(store repositories.Store, emitter *notify.Emitter, logger *zap.Logger) *Service {
	return &Service{store: store, emitter: emitter, logger: logger}
}

// Distribute applies one profit event. Trader events are bounded by the
// trader's risk tolerance band; plan events are unbounded below zero but
// never push an allocation negative.
func (s *Service) Distribute(ctx context.Context, event *entities.ProfitEvent) (*entities.DistributionResult, error) {
	if err := event.Validate(); err != nil {
		return nil, domainerrors.NewValidationError(err.Error(), nil)
	}

	var (
		result *entities.DistributionResult
		events []*entities.SettlementEvent
	)
	err := s.store.WithTx(ctx, func(uow repositories.UnitOfWork) error {
		var err error
		switch event.SourceKind {
		case entities.ProfitSourceTrader:
			result, events, err = s.distributeTrader(ctx, uow, event)
		case entities.ProfitSourcePlan:
			result, events, err = s.distributePlan(ctx, uow, event)
		default:
			err = domainerrors.NewValidationError("unknown profit source kind", nil)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("profit event distributed",
		zap.String("source_id", event.SourceID.String()),
		zap.String("source_kind", string(event.SourceKind)),
		zap.String("pnl_percent", event.PnlPercent.String()),
		zap.Int("affected_users", result.AffectedUsers),
		zap.String("total_applied", result.TotalApplied.StringFixed(2)))
	s.emitter.Dispatch(events...)
	return result, nil
}

func (s *Service) distributeTrader(ctx context.Context, uow repositories.UnitOfWork, event *entities.ProfitEvent) (*entities.DistributionResult, []*entities.SettlementEvent, error) {
	trader, err := uow.Traders().GetByIDForUpdate(ctx, event.SourceID)
	if err != nil {
		return nil, nil, err
	}
	if min, max, bounded := trader.RiskTolerance.PnlBounds(); bounded {
		if event.PnlPercent.LessThan(min) || event.PnlPercent.GreaterThan(max) {
			return nil, nil, domainerrors.NewValidationError("pnl percent outside trader risk band",
				map[string]interface{}{
					"risk_tolerance": string(trader.RiskTolerance),
					"min":            min.String(),
					"max":            max.String(),
					"pnl_percent":    event.PnlPercent.String(),
				})
		}
	}

	followers, err := uow.CopyRelationships().ListFollowersForUpdate(ctx, trader.ID, []entities.CopyStatus{entities.CopyStatusActive})
	if err != nil {
		return nil, nil, err
	}

	result := &entities.DistributionResult{SourceID: event.SourceID, TotalApplied: decimal.Zero}
	var settlements []*entities.SettlementEvent
	aumDelta := decimal.Zero

	for _, rel := range followers {
		scaled := entities.Round2(rel.CopyAmount.Mul(event.PnlPercent).Div(hundred))
		if scaled.IsZero() {
			continue
		}
		applied, err := s.applyScaled(ctx, uow, rel.UserID, entities.PoolCopyAllocated, scaled, rel.CopyAmount,
			fmt.Sprintf("profit distribution from %s", trader.DisplayName), &rel.ID)
		if err != nil {
			return nil, nil, err
		}
		if applied.IsZero() {
			continue
		}

		rel.CopyAmount = entities.Round2(rel.CopyAmount.Add(applied))
		if err := uow.CopyRelationships().Update(ctx, rel); err != nil {
			return nil, nil, err
		}
		aumDelta = aumDelta.Add(applied)

		se := entities.NewSettlementEvent(rel.UserID, entities.SettlementProfitDistributed, applied,
			fmt.Sprintf("%s%% from %s", event.PnlPercent.String(), trader.DisplayName),
			map[string]string{"trader_id": trader.ID.String(), "symbol": event.Symbol})
		if err := uow.Settlements().Create(ctx, se); err != nil {
			return nil, nil, err
		}
		settlements = append(settlements, se)

		result.AffectedUsers++
		result.TotalApplied = result.TotalApplied.Add(applied)
	}

	if !aumDelta.IsZero() {
		if err := uow.Traders().AdjustCounters(ctx, trader.ID, 0, aumDelta); err != nil {
			return nil, nil, err
		}
	}
	return result, settlements, nil
}

func (s *Service) distributePlan(ctx context.Context, uow repositories.UnitOfWork, event *entities.ProfitEvent) (*entities.DistributionResult, []*entities.SettlementEvent, error) {
	plan, err := uow.Plans().GetByIDForUpdate(ctx, event.SourceID)
	if err != nil {
		return nil, nil, err
	}

	investments, err := uow.Investments().ListActiveByPlanForUpdate(ctx, plan.ID)
	if err != nil {
		return nil, nil, err
	}

	result := &entities.DistributionResult{SourceID: event.SourceID, TotalApplied: decimal.Zero}
	var settlements []*entities.SettlementEvent

	for _, inv := range investments {
		scaled := entities.Round2(inv.Allocation.Mul(event.PnlPercent).Div(hundred))
		if scaled.IsZero() {
			continue
		}
		applied, err := s.applyScaled(ctx, uow, inv.UserID, entities.PoolLongTermAllocated, scaled, inv.Allocation,
			fmt.Sprintf("return on plan %s", plan.Name), &inv.ID)
		if err != nil {
			return nil, nil, err
		}
		if applied.IsZero() {
			continue
		}

		inv.Allocation = entities.Round2(inv.Allocation.Add(applied))
		if err := uow.Investments().Update(ctx, inv); err != nil {
			return nil, nil, err
		}

		se := entities.NewSettlementEvent(inv.UserID, entities.SettlementProfitDistributed, applied,
			fmt.Sprintf("%s%% return on %s", event.PnlPercent.String(), plan.Name),
			map[string]string{"plan_id": plan.ID.String(), "symbol": event.Symbol})
		if err := uow.Settlements().Create(ctx, se); err != nil {
			return nil, nil, err
		}
		settlements = append(settlements, se)

		result.AffectedUsers++
		result.TotalApplied = result.TotalApplied.Add(applied)
	}
	return result, settlements, nil
}

// applyScaled applies a scaled profit or loss to one user's pool and
// returns the amount actually applied. Losses are clamped so neither the
// position nor the pool goes negative.
func (s *Service) applyScaled(ctx context.Context, uow repositories.UnitOfWork, userID uuid.UUID, pool entities.Pool, scaled, position decimal.Decimal, description string, refID *uuid.UUID) (decimal.Decimal, error) {
	applied := scaled
	if applied.IsNegative() {
		account, err := uow.Ledger().GetAccountForUpdate(ctx, userID)
		if err != nil {
			return decimal.Zero, err
		}
		maxLoss := position
		if account.Balance(pool).LessThan(maxLoss) {
			maxLoss = account.Balance(pool)
		}
		if applied.Neg().GreaterThan(maxLoss) {
			applied = maxLoss.Neg()
		}
		if applied.IsZero() {
			return decimal.Zero, nil
		}
	}
	if _, err := ledger.Apply(ctx, uow, userID, []ledger.Delta{{Pool: pool, Amount: applied}}, description, refID); err != nil {
		return decimal.Zero, err
	}
	return applied, nil
}
