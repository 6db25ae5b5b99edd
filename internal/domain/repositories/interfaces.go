package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yacqub6996/Apex-v2-sub000/internal/domain/entities"
)

// Store opens transactional units of work against the ledger datastore.
// All balance mutations run inside WithTx so a failure anywhere rolls
// back every pool delta and ledger line together.
type Store interface {
	WithTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

// UnitOfWork exposes the repositories bound to a single transaction
type UnitOfWork interface {
	Ledger() LedgerRepository
	Traders() TraderRepository
	CopyRelationships() CopyRelationshipRepository
	Plans() PlanRepository
	Investments() InvestmentRepository
	Transactions() TransactionRepository
	Settlements() SettlementRepository
}

// LedgerRepository persists per-user pool balances and the append-only
// line journal backing them.
type LedgerRepository interface {
	CreateAccount(ctx context.Context, account *entities.LedgerAccount) error
	GetAccount(ctx context.Context, userID uuid.UUID) (*entities.LedgerAccount, error)
	GetAccountForUpdate(ctx context.Context, userID uuid.UUID) (*entities.LedgerAccount, error)
	UpdateAccount(ctx context.Context, account *entities.LedgerAccount) error
	AppendLine(ctx context.Context, line *entities.LedgerLine) error
	ListLines(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.LedgerLine, error)
	SumLines(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// TraderRepository persists trader profiles and aggregate counters
type TraderRepository interface {
	Create(ctx context.Context, trader *entities.Trader) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Trader, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Trader, error)
	List(ctx context.Context, status entities.TraderStatus, limit, offset int) ([]*entities.Trader, error)
	AdjustCounters(ctx context.Context, id uuid.UUID, copierDelta int, aumDelta decimal.Decimal) error
}

// CopyRelationshipRepository persists copy-trading relationships
type CopyRelationshipRepository interface {
	Create(ctx context.Context, rel *entities.CopyRelationship) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.CopyRelationship, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.CopyRelationship, error)
	GetActiveByUserAndTrader(ctx context.Context, userID, traderID uuid.UUID) (*entities.CopyRelationship, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.CopyRelationship, error)
	ListFollowersForUpdate(ctx context.Context, traderID uuid.UUID, statuses []entities.CopyStatus) ([]*entities.CopyRelationship, error)
	Update(ctx context.Context, rel *entities.CopyRelationship) error
}

// PlanRepository persists long-term investment plans
type PlanRepository interface {
	Create(ctx context.Context, plan *entities.Plan) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Plan, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Plan, error)
	List(ctx context.Context, limit, offset int) ([]*entities.Plan, error)
	SumActiveAllocations(ctx context.Context, planID uuid.UUID) (decimal.Decimal, error)
}

// InvestmentRepository persists long-term investment positions
type InvestmentRepository interface {
	Create(ctx context.Context, inv *entities.LongTermInvestment) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.LongTermInvestment, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.LongTermInvestment, error)
	// GetActiveByUserAndPlan returns (nil, nil) when the user holds no
	// active investment in the plan.
	GetActiveByUserAndPlan(ctx context.Context, userID, planID uuid.UUID) (*entities.LongTermInvestment, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.LongTermInvestment, error)
	ListActiveByPlanForUpdate(ctx context.Context, planID uuid.UUID) ([]*entities.LongTermInvestment, error)
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]*entities.LongTermInvestment, error)
	Update(ctx context.Context, inv *entities.LongTermInvestment) error
}

// TransactionRepository persists withdrawal and adjustment transactions
type TransactionRepository interface {
	Create(ctx context.Context, tx *entities.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Transaction, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Transaction, error)
	ListByStatus(ctx context.Context, status entities.TransactionStatus, limit, offset int) ([]*entities.Transaction, error)
	HasPendingForInvestment(ctx context.Context, investmentID uuid.UUID) (bool, error)
	Update(ctx context.Context, tx *entities.Transaction) error
}

// SettlementRepository persists the settlement audit trail
type SettlementRepository interface {
	Create(ctx context.Context, event *entities.SettlementEvent) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.SettlementEvent, error)
}
