package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	domainerrors "github.com/yacqub6996/Apex-v2-sub000/internal/domain/errors"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
)

type copyRelationshipRepository struct {
	tx *sqlx.Tx
}

const copyRelationshipColumns = `id, user_id, trader_id, copy_amount, status, started_at, stopped_at, updated_at`

func (r *copyRelationshipRepository) Create(ctx context.Context, rel *entities.CopyRelationship) error {
	query := `
		INSERT INTO copy_relationships (` + copyRelationshipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.tx.ExecContext(ctx, query,
		rel.ID,
		rel.UserID,
		rel.TraderID,
		rel.CopyAmount,
		rel.Status,
		rel.StartedAt,
		rel.StoppedAt,
		rel.UpdatedAt,
	)
	if err != nil {
		return wrapInsertErr("create copy relationship", err)
	}
	return nil
}

func (r *copyRelationshipRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.CopyRelationship, error) {
	return r.get(ctx, id, false)
}

func (r *copyRelationshipRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.CopyRelationship, error) {
	return r.get(ctx, id, true)
}

func (r *copyRelationshipRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*entities.CopyRelationship, error) {
	query := `SELECT ` + copyRelationshipColumns + ` FROM copy_relationships WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var rel entities.CopyRelationship
	err := r.tx.GetContext(ctx, &rel, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NewNotFoundError("copy relationship")
		}
		return nil, fmt.Errorf("get copy relationship: %w", err)
	}
	if err := r.attachTrader(ctx, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (r *copyRelationshipRepository) attachTrader(ctx context.Context, rel *entities.CopyRelationship) error {
	var trader entities.Trader
	err := r.tx.GetContext(ctx, &trader,
		`SELECT `+traderColumns+` FROM traders WHERE id = $1`, rel.TraderID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("load trader for relationship: %w", err)
	}
	rel.Trader = &trader
	return nil
}

func (r *copyRelationshipRepository) GetActiveByUserAndTrader(ctx context.Context, userID, traderID uuid.UUID) (*entities.CopyRelationship, error) {
	query := `
		SELECT ` + copyRelationshipColumns + `
		FROM copy_relationships
		WHERE user_id = $1 AND trader_id = $2 AND status != $3
		LIMIT 1
	`
	var rel entities.CopyRelationship
	err := r.tx.GetContext(ctx, &rel, query, userID, traderID, entities.CopyStatusStopped)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get active relationship: %w", err)
	}
	return &rel, nil
}

func (r *copyRelationshipRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.CopyRelationship, error) {
	query := `
		SELECT ` + copyRelationshipColumns + `
		FROM copy_relationships
		WHERE user_id = $1
		ORDER BY started_at
	`
	rels := []*entities.CopyRelationship{}
	if err := r.tx.SelectContext(ctx, &rels, query, userID); err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	for _, rel := range rels {
		if err := r.attachTrader(ctx, rel); err != nil {
			return nil, err
		}
	}
	return rels, nil
}

func (r *copyRelationshipRepository) ListFollowersForUpdate(ctx context.Context, traderID uuid.UUID, statuses []entities.CopyStatus) ([]*entities.CopyRelationship, error) {
	args := make([]string, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, string(s))
	}
	query := `
		SELECT ` + copyRelationshipColumns + `
		FROM copy_relationships
		WHERE trader_id = $1 AND status = ANY($2)
		ORDER BY started_at
		FOR UPDATE
	`
	rels := []*entities.CopyRelationship{}
	if err := r.tx.SelectContext(ctx, &rels, query, traderID, pq.Array(args)); err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}
	return rels, nil
}

func (r *copyRelationshipRepository) Update(ctx context.Context, rel *entities.CopyRelationship) error {
	query := `
		UPDATE copy_relationships
		SET copy_amount = $2,
		    status = $3,
		    stopped_at = $4,
		    updated_at = $5
		WHERE id = $1
	`
	result, err := r.tx.ExecContext(ctx, query,
		rel.ID,
		rel.CopyAmount,
		rel.Status,
		rel.StoppedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update copy relationship: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domainerrors.NewNotFoundError("copy relationship")
	}
	return nil
}
