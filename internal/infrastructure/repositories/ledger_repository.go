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

type ledgerRepository struct {
	tx *sqlx.Tx
}

const ledgerAccountColumns = `user_id, main_balance, copy_allocated, copy_wallet, long_term_allocated, long_term_wallet, created_at, updated_at`

func (r *ledgerRepository) CreateAccount(ctx context.Context, account *entities.LedgerAccount) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("validate account: %w", err)
	}

	query := `
		INSERT INTO ledger_accounts (` + ledgerAccountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.tx.ExecContext(ctx, query,
		account.UserID,
		account.MainBalance,
		account.CopyAllocated,
		account.CopyWallet,
		account.LongTermAllocated,
		account.LongTermWallet,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return wrapInsertErr("create ledger account", err)
	}
	return nil
}

func (r *ledgerRepository) GetAccount(ctx context.Context, userID uuid.UUID) (*entities.LedgerAccount, error) {
	return r.getAccount(ctx, userID, false)
}

func (r *ledgerRepository) GetAccountForUpdate(ctx context.Context, userID uuid.UUID) (*entities.LedgerAccount, error) {
	return r.getAccount(ctx, userID, true)
}

func (r *ledgerRepository) getAccount(ctx context.Context, userID uuid.UUID, forUpdate bool) (*entities.LedgerAccount, error) {
	query := `SELECT ` + ledgerAccountColumns + ` FROM ledger_accounts WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var account entities.LedgerAccount
	err := r.tx.GetContext(ctx, &account, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domainerrors.NewNotFoundError("ledger account")
		}
		return nil, fmt.Errorf("get ledger account: %w", err)
	}
	return &account, nil
}

func (r *ledgerRepository) UpdateAccount(ctx context.Context, account *entities.LedgerAccount) error {
	query := `
		UPDATE ledger_accounts
		SET main_balance = $2,
		    copy_allocated = $3,
		    copy_wallet = $4,
		    long_term_allocated = $5,
		    long_term_wallet = $6,
		    updated_at = $7
		WHERE user_id = $1
	`
	result, err := r.tx.ExecContext(ctx, query,
		account.UserID,
		account.MainBalance,
		account.CopyAllocated,
		account.CopyWallet,
		account.LongTermAllocated,
		account.LongTermWallet,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update ledger account: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domainerrors.NewNotFoundError("ledger account")
	}
	return nil
}

func (r *ledgerRepository) AppendLine(ctx context.Context, line *entities.LedgerLine) error {
	if err := line.Validate(); err != nil {
		return fmt.Errorf("validate ledger line: %w", err)
	}

	query := `
		INSERT INTO ledger_lines (id, user_id, pool, amount, description, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.tx.ExecContext(ctx, query,
		line.ID,
		line.UserID,
		line.Pool,
		line.Amount,
		line.Description,
		line.ReferenceID,
		line.CreatedAt,
	)
	if err != nil {
		return wrapInsertErr("append ledger line", err)
	}
	return nil
}

func (r *ledgerRepository) ListLines(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.LedgerLine, error) {
	query := `
		SELECT id, user_id, pool, amount, description, reference_id, created_at
		FROM ledger_lines
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	lines := []*entities.LedgerLine{}
	if err := r.tx.SelectContext(ctx, &lines, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("list ledger lines: %w", err)
	}
	return lines, nil
}

func (r *ledgerRepository) SumLines(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM ledger_lines WHERE user_id = $1`
	var sum decimal.Decimal
	if err := r.tx.GetContext(ctx, &sum, query, userID); err != nil {
		return decimal.Zero, fmt.Errorf("sum ledger lines: %w", err)
	}
	return sum, nil
}
