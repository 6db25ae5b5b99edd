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

type planRepository struct {
	tx *sqlx.Tx
}

const planColumns = `id, name, minimum_deposit, maximum_deposit, created_at`

func (r *planRepository) Create(ctx context.Context, plan *entities.Plan) error {
	query := `
		INSERT INTO plans (` + planColumns + `)
		VALUES ($1, $2, $3, $4, $5)
	`
	plan.CreatedAt = time.Now().UTC()
	_, err := r.tx.ExecContext(ctx, query,
		plan.ID,
		plan.Name,
		plan.MinimumDeposit,
		plan.MaximumDeposit,
		plan.CreatedAt,
	)
	if err != nil {
		return wrapInsertErr("create plan", err)
	}
	return nil
}

func (r *planRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Plan, error) {
	return r.get(ctx, id, false)
}

// GetByIDForUpdate locks the plan row. Capacity checks hold this lock so
// two concurrent subscriptions cannot both pass the ceiling.
func (r *planRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Plan, error) {
	return r.get(ctx, id, true)
}

func (r *planRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*entities.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var plan entities.Plan
	err := r.tx.GetContext(ctx, &plan, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NewNotFoundError("plan")
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &plan, nil
}

func (r *planRepository) List(ctx context.Context, limit, offset int) ([]*entities.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans ORDER BY created_at LIMIT $1 OFFSET $2`
	plans := []*entities.Plan{}
	if err := r.tx.SelectContext(ctx, &plans, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

func (r *planRepository) SumActiveAllocations(ctx context.Context, planID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(allocation), 0)
		FROM long_term_investments
		WHERE plan_id = $1 AND status = $2
	`
	var sum decimal.Decimal
	if err := r.tx.GetContext(ctx, &sum, query, planID, entities.InvestmentStatusActive); err != nil {
		return decimal.Zero, fmt.Errorf("sum plan allocations: %w", err)
	}
	return sum, nil
}
