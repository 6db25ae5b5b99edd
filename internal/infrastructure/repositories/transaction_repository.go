package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	domainerrors "github.com/yacqub6996/Apex-v2-sub000/internal/domain/errors"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
)

type transactionRepository struct {
	tx *sqlx.Tx
}

const transactionColumns = `id, user_id, amount, type, status, withdrawal_source, related_investment_id, early_withdrawal, description, created_at, resolved_at`

func (r *transactionRepository) Create(ctx context.Context, tx *entities.Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}

	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.tx.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Amount,
		tx.Type,
		tx.Status,
		tx.WithdrawalSource,
		tx.RelatedInvestmentID,
		tx.EarlyWithdrawal,
		tx.Description,
		tx.CreatedAt,
		tx.ResolvedAt,
	)
	if err != nil {
		return wrapInsertErr("create transaction", err)
	}
	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	return r.get(ctx, id, false)
}

func (r *transactionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Transaction, error) {
	return r.get(ctx, id, true)
}

func (r *transactionRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*entities.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var tx entities.Transaction
	err := r.tx.GetContext(ctx, &tx, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NewNotFoundError("transaction")
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &tx, nil
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	transactions := []*entities.Transaction{}
	if err := r.tx.SelectContext(ctx, &transactions, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, nil
}

func (r *transactionRepository) ListByStatus(ctx context.Context, status entities.TransactionStatus, limit, offset int) ([]*entities.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`
	transactions := []*entities.Transaction{}
	if err := r.tx.SelectContext(ctx, &transactions, query, status, limit, offset); err != nil {
		return nil, fmt.Errorf("list transactions by status: %w", err)
	}
	return transactions, nil
}

func (r *transactionRepository) HasPendingForInvestment(ctx context.Context, investmentID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE related_investment_id = $1 AND status = $2
		)
	`
	var exists bool
	if err := r.tx.GetContext(ctx, &exists, query, investmentID, entities.TransactionStatusPending); err != nil {
		return false, fmt.Errorf("check pending transactions: %w", err)
	}
	return exists, nil
}

func (r *transactionRepository) Update(ctx context.Context, tx *entities.Transaction) error {
	query := `
		UPDATE transactions
		SET status = $2,
		    resolved_at = $3
		WHERE id = $1
	`
	result, err := r.tx.ExecContext(ctx, query, tx.ID, tx.Status, tx.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domainerrors.NewNotFoundError("transaction")
	}
	return nil
}
