package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TraderStatus represents the status of a trader
type TraderStatus string

const (
	TraderStatusActive    TraderStatus = "active"
	TraderStatusSuspended TraderStatus = "suspended"
)

// RiskTolerance bounds the profit/loss pushes a trader may emit
type RiskTolerance string

const (
	RiskToleranceLow    RiskTolerance = "low"
	RiskToleranceMedium RiskTolerance = "medium"
	RiskToleranceHigh   RiskTolerance = "high"
)

// PnlBounds returns the admissible pnl percent range for the tolerance.
// The bool is false when the tolerance is unbounded.
func (r RiskTolerance) PnlBounds() (min, max decimal.Decimal, bounded bool) {
	switch r {
	case RiskToleranceLow:
		return decimal.NewFromInt(-10), decimal.NewFromInt(50), true
	case RiskToleranceMedium:
		return decimal.NewFromInt(-25), decimal.NewFromInt(100), true
	default:
		return decimal.Zero, decimal.Zero, false
	}
}

// Trader is the aggregate followers copy; it references relationships but
// does not own them.
type Trader struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	DisplayName   string          `json:"display_name" db:"display_name"`
	Status        TraderStatus    `json:"status" db:"status"`
	RiskTolerance RiskTolerance   `json:"risk_tolerance" db:"risk_tolerance"`
	CopierCount   int             `json:"copier_count" db:"copier_count"`
	AUM           decimal.Decimal `json:"aum" db:"aum"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// CopyStatus represents the lifecycle state of a copy relationship
type CopyStatus string

const (
	CopyStatusActive  CopyStatus = "active"
	CopyStatusPaused  CopyStatus = "paused"
	CopyStatusStopped CopyStatus = "stopped" // terminal
)

// Validate checks if the status is valid
func (s CopyStatus) Validate() error {
	switch s {
	case CopyStatusActive, CopyStatusPaused, CopyStatusStopped:
		return nil
	default:
		return fmt.Errorf("invalid copy status: %s", s)
	}
}

// CopyRelationship is a user's live allocation tracking a trader.
// CopyAmount carries accrued profit/loss pushed by the distributor.
type CopyRelationship struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     uuid.UUID       `json:"user_id" db:"user_id"`
	TraderID   uuid.UUID       `json:"trader_id" db:"trader_id"`
	CopyAmount decimal.Decimal `json:"copy_amount" db:"copy_amount"`
	Status     CopyStatus      `json:"status" db:"status"`
	StartedAt  time.Time       `json:"started_at" db:"started_at"`
	StoppedAt  *time.Time      `json:"stopped_at,omitempty" db:"stopped_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`

	// Joined for API responses
	Trader *Trader `json:"trader,omitempty" db:"-"`
}

// IsTerminal reports whether the relationship can no longer transition
func (r *CopyRelationship) IsTerminal() bool {
	return r.Status == CopyStatusStopped
}

// MinimumCopyRemainder is the absolute floor a reduce must leave behind
var MinimumCopyRemainder = decimal.NewFromInt(100)

// ReduceFloor returns the minimum remainder for a reduce against the given
// pre-reduce amount: max($100, 10% of the pre-reduce amount).
func ReduceFloor(preReduce decimal.Decimal) decimal.Decimal {
	tenPct := Round2(preReduce.Div(decimal.NewFromInt(10)))
	if tenPct.GreaterThan(MinimumCopyRemainder) {
		return tenPct
	}
	return MinimumCopyRemainder
}

// StartCopyRequest is a request to start copying a trader
type StartCopyRequest struct {
	TraderID uuid.UUID       `json:"trader_id" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
}

// CreateTraderRequest registers a trader that users may copy
type CreateTraderRequest struct {
	DisplayName   string        `json:"display_name" binding:"required"`
	RiskTolerance RiskTolerance `json:"risk_tolerance" binding:"required"`
}

// Validate checks the trader registration fields
func (r *CreateTraderRequest) Validate() error {
	if r.DisplayName == "" {
		return fmt.Errorf("display_name is required")
	}
	switch r.RiskTolerance {
	case RiskToleranceLow, RiskToleranceMedium, RiskToleranceHigh:
		return nil
	default:
		return fmt.Errorf("invalid risk_tolerance: %s", r.RiskTolerance)
	}
}

// ReduceCopyRequest is a request to release part of a copy allocation
type ReduceCopyRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// CopyRelationshipSummary is a condensed view for listing
type CopyRelationshipSummary struct {
	ID         uuid.UUID       `json:"id"`
	TraderID   uuid.UUID       `json:"trader_id"`
	TraderName string          `json:"trader_name"`
	CopyAmount decimal.Decimal `json:"copy_amount"`
	Status     CopyStatus      `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
}
