package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementKind labels the engine operation that produced a settlement event
type SettlementKind string

const (
	SettlementCopyStarted        SettlementKind = "copy_started"
	SettlementCopyStopped        SettlementKind = "copy_stopped"
	SettlementCopyReduced        SettlementKind = "copy_reduced"
	SettlementProfitDistributed  SettlementKind = "profit_distributed"
	SettlementInvestmentOpened   SettlementKind = "investment_opened"
	SettlementInvestmentIncrease SettlementKind = "investment_increased"
	SettlementInvestmentMatured  SettlementKind = "investment_matured"
	SettlementWithdrawalRequest  SettlementKind = "withdrawal_requested"
	SettlementWithdrawalApproved SettlementKind = "withdrawal_approved"
	SettlementWithdrawalRejected SettlementKind = "withdrawal_rejected"
)

// SettlementEvent is the immutable audit/notification payload emitted once
// per committed mutation. Delivery to the notification collaborator is
// fire-and-forget; the persisted row is the system of record.
type SettlementEvent struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	UserID      uuid.UUID         `json:"user_id" db:"user_id"`
	Kind        SettlementKind    `json:"kind" db:"kind"`
	Amount      decimal.Decimal   `json:"amount" db:"amount"`
	Description string            `json:"description" db:"description"`
	Metadata    map[string]string `json:"metadata,omitempty" db:"-"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
}

// NewSettlementEvent creates a settlement event for a committed mutation
func NewSettlementEvent(userID uuid.UUID, kind SettlementKind, amount decimal.Decimal, description string, metadata map[string]string) *SettlementEvent {
	return &SettlementEvent{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        kind,
		Amount:      Round2(amount),
		Description: description,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
}

// ProfitSourceKind identifies what emitted a profit/loss event
type ProfitSourceKind string

const (
	ProfitSourceTrader ProfitSourceKind = "trader"
	ProfitSourcePlan   ProfitSourceKind = "plan"
)

// ProfitEvent is the input consumed by the distributor. The engine never
// generates these; they arrive from the price/simulation collaborator or
// an admin push.
type ProfitEvent struct {
	SourceID   uuid.UUID        `json:"source_id" binding:"required"`
	SourceKind ProfitSourceKind `json:"source_kind" binding:"required"`
	PnlPercent decimal.Decimal  `json:"pnl_percent" binding:"required"`
	Symbol     string           `json:"symbol"`
}

// Validate validates the profit event
func (e *ProfitEvent) Validate() error {
	if e.SourceID == uuid.Nil {
		return fmt.Errorf("source ID is required")
	}
	switch e.SourceKind {
	case ProfitSourceTrader, ProfitSourcePlan:
	default:
		return fmt.Errorf("invalid profit source kind: %s", e.SourceKind)
	}
	if e.PnlPercent.IsZero() {
		return fmt.Errorf("pnl percent cannot be zero")
	}
	return nil
}

// DistributionResult summarises one distribution pass
type DistributionResult struct {
	SourceID      uuid.UUID       `json:"source_id"`
	AffectedUsers int             `json:"affected_users"`
	TotalApplied  decimal.Decimal `json:"total_applied"`
}

// ErrorResponse is the standard error payload returned by the API
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
