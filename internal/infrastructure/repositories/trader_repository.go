package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	domainerrors "github.com/yacqub6996/Apex-v2-sub000/internal/domain/errors"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
)

type traderRepository struct {
	tx *sqlx.Tx
}

const traderColumns = `id, display_name, status, risk_tolerance, copier_count, aum, created_at, updated_at`

func (r *traderRepository) Create(ctx context.Context, trader *entities.Trader) error {
	query := `
		INSERT INTO traders (` + traderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	now := time.Now().UTC()
	trader.CreatedAt = now
	trader.UpdatedAt = now
	_, err := r.tx.ExecContext(ctx, query,
		trader.ID,
		trader.DisplayName,
		trader.Status,
		trader.RiskTolerance,
		trader.CopierCount,
		trader.AUM,
		trader.CreatedAt,
		trader.UpdatedAt,
	)
	if err != nil {
		return wrapInsertErr("create trader", err)
	}
	return nil
}

func (r *traderRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Trader, error) {
	return r.get(ctx, id, false)
}

func (r *traderRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Trader, error) {
	return r.get(ctx, id, true)
}

func (r *traderRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*entities.Trader, error) {
	query := `SELECT ` + traderColumns + ` FROM traders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var trader entities.Trader
	err := r.tx.GetContext(ctx, &trader, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NewNotFoundError("trader")
		}
		return nil, fmt.Errorf("get trader: %w", err)
	}
	return &trader, nil
}

func (r *traderRepository) List(ctx context.Context, status entities.TraderStatus, limit, offset int) ([]*entities.Trader, error) {
	traders := []*entities.Trader{}
	if status == "" {
		query := `SELECT ` + traderColumns + ` FROM traders ORDER BY created_at LIMIT $1 OFFSET $2`
		if err := r.tx.SelectContext(ctx, &traders, query, limit, offset); err != nil {
			return nil, fmt.Errorf("list traders: %w", err)
		}
		return traders, nil
	}
	query := `SELECT ` + traderColumns + ` FROM traders WHERE status = $1 ORDER BY created_at LIMIT $2 OFFSET $3`
	if err := r.tx.SelectContext(ctx, &traders, query, status, limit, offset); err != nil {
		return nil, fmt.Errorf("list traders: %w", err)
	}
	return traders, nil
}

func (r *traderRepository) AdjustCounters(ctx context.Context, id uuid.UUID, copierDelta int, aumDelta decimal.Decimal) error {
	query := `
		UPDATE traders
		SET copier_count = copier_count + $2,
		    aum = aum + $3,
		    updated_at = $4
		WHERE id = $1
	`
	result, err := r.tx.ExecContext(ctx, query, id, copierDelta, aumDelta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("adjust trader counters: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domainerrors.NewNotFoundError("trader")
	}
	return nil
}
