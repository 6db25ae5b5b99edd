// Package repositories implements the domain repository interfaces over
// postgres with sqlx. Locking reads use SELECT ... FOR UPDATE so the
// services' pessimistic guards hold across concurrent requests.
package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	domainerrors "github.com/yacqub6996/Apex-v2-sub000/internal/domain/errors"
	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/repositories"
	"github.com/yacqub6996/Apex-v2-sub000/internal/infrastructure/database"
)

// Store is the sqlx-backed repositories.Store
type Store struct {
	db *sqlx.DB
}

// NewStore creates a store over the connection pool
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// WithTx runs fn in one database transaction
func (s *Store) WithTx(ctx context.Context, fn func(uow repositories.UnitOfWork) error) error {
	return database.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&unitOfWork{tx: tx})
	})
}

type unitOfWork struct {
	tx *sqlx.Tx
}

func (u *unitOfWork) Ledger() repositories.LedgerRepository {
	return &ledgerRepository{tx: u.tx}
}

func (u *unitOfWork) Traders() repositories.TraderRepository {
	return &traderRepository{tx: u.tx}
}

func (u *unitOfWork) CopyRelationships() repositories.CopyRelationshipRepository {
	return &copyRelationshipRepository{tx: u.tx}
}

func (u *unitOfWork) Plans() repositories.PlanRepository {
	return &planRepository{tx: u.tx}
}

func (u *unitOfWork) Investments() repositories.InvestmentRepository {
	return &investmentRepository{tx: u.tx}
}

func (u *unitOfWork) Transactions() repositories.TransactionRepository {
	return &transactionRepository{tx: u.tx}
}

func (u *unitOfWork) Settlements() repositories.SettlementRepository {
	return &settlementRepository{tx: u.tx}
}

// wrapInsertErr maps unique violations onto the duplicate sentinel
func wrapInsertErr(op string, err error) error {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, domainerrors.ErrDuplicateResource)
	}
	return fmt.Errorf("%s: %w", op, err)
}
