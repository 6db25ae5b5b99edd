package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	domainerrors "github.com/yacqub6996/Apex-v2-sub000/internal/domain/errors"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
)

type investmentRepository struct {
	tx *sqlx.Tx
}

const investmentColumns = `id, user_id, plan_id, allocation, status, started_at, due_date, stopped_at, updated_at`

func (r *investmentRepository) Create(ctx context.Context, inv *entities.LongTermInvestment) error {
	query := `
		INSERT INTO long_term_investments (` + investmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.tx.ExecContext(ctx, query,
		inv.ID,
		inv.UserID,
		inv.PlanID,
		inv.Allocation,
		inv.Status,
		inv.StartedAt,
		inv.DueDate,
		inv.StoppedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		return wrapInsertErr("create investment", err)
	}
	return nil
}

func (r *investmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.LongTermInvestment, error) {
	return r.get(ctx, id, false)
}

func (r *investmentRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.LongTermInvestment, error) {
	return r.get(ctx, id, true)
}

func (r *investmentRepository) GetActiveByUserAndPlan(ctx context.Context, userID, planID uuid.UUID) (*entities.LongTermInvestment, error) {
	query := `
		SELECT ` + investmentColumns + `
		FROM long_term_investments
		WHERE user_id = $1 AND plan_id = $2 AND status = $3
		LIMIT 1
	`
	var inv entities.LongTermInvestment
	err := r.tx.GetContext(ctx, &inv, query, userID, planID, entities.InvestmentStatusActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active investment: %w", err)
	}
	return &inv, nil
}

func (r *investmentRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*entities.LongTermInvestment, error) {
	query := `SELECT ` + investmentColumns + ` FROM long_term_investments WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var inv entities.LongTermInvestment
	err := r.tx.GetContext(ctx, &inv, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NewNotFoundError("investment")
		}
		return nil, fmt.Errorf("get investment: %w", err)
	}
	if err := r.attachPlan(ctx, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *investmentRepository) attachPlan(ctx context.Context, inv *entities.LongTermInvestment) error {
	var plan entities.Plan
	err := r.tx.GetContext(ctx, &plan,
		`SELECT `+planColumns+` FROM plans WHERE id = $1`, inv.PlanID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("load plan for investment: %w", err)
	}
	inv.Plan = &plan
	return nil
}

func (r *investmentRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.LongTermInvestment, error) {
	query := `
		SELECT ` + investmentColumns + `
		FROM long_term_investments
		WHERE user_id = $1
		ORDER BY started_at
	`
	investments := []*entities.LongTermInvestment{}
	if err := r.tx.SelectContext(ctx, &investments, query, userID); err != nil {
		return nil, fmt.Errorf("list investments: %w", err)
	}
	for _, inv := range investments {
		if err := r.attachPlan(ctx, inv); err != nil {
			return nil, err
		}
	}
	return investments, nil
}

func (r *investmentRepository) ListActiveByPlanForUpdate(ctx context.Context, planID uuid.UUID) ([]*entities.LongTermInvestment, error) {
	query := `
		SELECT ` + investmentColumns + `
		FROM long_term_investments
		WHERE plan_id = $1 AND status = $2
		ORDER BY started_at
		FOR UPDATE
	`
	investments := []*entities.LongTermInvestment{}
	if err := r.tx.SelectContext(ctx, &investments, query, planID, entities.InvestmentStatusActive); err != nil {
		return nil, fmt.Errorf("list plan investments: %w", err)
	}
	return investments, nil
}

func (r *investmentRepository) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*entities.LongTermInvestment, error) {
	query := `
		SELECT ` + investmentColumns + `
		FROM long_term_investments
		WHERE status = $1 AND due_date <= $2
		ORDER BY due_date
		LIMIT $3
	`
	investments := []*entities.LongTermInvestment{}
	if err := r.tx.SelectContext(ctx, &investments, query, entities.InvestmentStatusActive, asOf, limit); err != nil {
		return nil, fmt.Errorf("list due investments: %w", err)
	}
	return investments, nil
}

func (r *investmentRepository) Update(ctx context.Context, inv *entities.LongTermInvestment) error {
	query := `
		UPDATE long_term_investments
		SET allocation = $2,
		    status = $3,
		    stopped_at = $4,
		    updated_at = $5
		WHERE id = $1
	`
	result, err := r.tx.ExecContext(ctx, query,
		inv.ID,
		inv.Allocation,
		inv.Status,
		inv.StoppedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update investment: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domainerrors.NewNotFoundError("investment")
	}
	return nil
}
