package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lock duration bounds for long-term subscriptions, in calendar months
const (
	MinLockMonths = 1
	MaxLockMonths = 6
)

// Plan is a shared long-term investment product with an optional capacity
// ceiling across all investors.
type Plan struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	Name           string           `json:"name" db:"name"`
	MinimumDeposit decimal.Decimal  `json:"minimum_deposit" db:"minimum_deposit"`
	MaximumDeposit *decimal.Decimal `json:"maximum_deposit,omitempty" db:"maximum_deposit"` // nil = unlimited
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// InvestmentStatus represents the lifecycle state of a long-term investment
type InvestmentStatus string

const (
	InvestmentStatusActive  InvestmentStatus = "active"
	InvestmentStatusStopped InvestmentStatus = "stopped" // terminal
)

// LongTermInvestment is a locked-duration allocation into a plan.
// Allocation carries ROI pushed by the distributor; DueDate is the lock
// boundary.
type LongTermInvestment struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	UserID     uuid.UUID        `json:"user_id" db:"user_id"`
	PlanID     uuid.UUID        `json:"plan_id" db:"plan_id"`
	Allocation decimal.Decimal  `json:"allocation" db:"allocation"`
	Status     InvestmentStatus `json:"status" db:"status"`
	StartedAt  time.Time        `json:"started_at" db:"started_at"`
	DueDate    time.Time        `json:"due_date" db:"due_date"`
	StoppedAt  *time.Time       `json:"stopped_at,omitempty" db:"stopped_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`

	// Joined for API responses
	Plan *Plan `json:"plan,omitempty" db:"-"`
}

// IsDue reports whether the lock period has elapsed
func (i *LongTermInvestment) IsDue(now time.Time) bool {
	return !i.DueDate.After(now)
}

// AddCalendarMonths advances t by the given number of calendar months,
// clamping the day to the last valid day of the target month
// (Jan 31 + 1 month = Feb 28/29, not Mar 2/3).
func AddCalendarMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// SubscribeRequest is a request to open a long-term investment
type SubscribeRequest struct {
	PlanID     uuid.UUID       `json:"plan_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	LockMonths int             `json:"lock_months" binding:"required"`
}

// CreatePlanRequest registers an investment plan. MaximumDeposit nil
// means the plan accepts allocations without a ceiling.
type CreatePlanRequest struct {
	Name           string           `json:"name" binding:"required"`
	MinimumDeposit decimal.Decimal  `json:"minimum_deposit" binding:"required"`
	MaximumDeposit *decimal.Decimal `json:"maximum_deposit,omitempty"`
}

// Validate checks the plan registration fields
func (r *CreatePlanRequest) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.MinimumDeposit.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("minimum_deposit must be positive")
	}
	if r.MaximumDeposit != nil && r.MaximumDeposit.LessThan(r.MinimumDeposit) {
		return fmt.Errorf("maximum_deposit must not be below minimum_deposit")
	}
	return nil
}

// IncreaseEquityRequest is a request to add capital to an active investment
type IncreaseEquityRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// InvestmentWithdrawalRequest asks to withdraw from an investment's
// allocation. Amount nil means the full current allocation. Early
// withdrawals require the acknowledgement flag.
type InvestmentWithdrawalRequest struct {
	Amount               *decimal.Decimal `json:"amount,omitempty"`
	AcknowledgeEarlyExit bool             `json:"acknowledge_early_exit"`
}

// PlanCapacity reports live utilisation of a plan's ceiling
type PlanCapacity struct {
	PlanID    uuid.UUID        `json:"plan_id"`
	Allocated decimal.Decimal  `json:"allocated"`
	Limit     *decimal.Decimal `json:"limit,omitempty"`
	Remaining *decimal.Decimal `json:"remaining,omitempty"`
}

// Validate validates a subscribe request up front, before any lock is taken
func (r *SubscribeRequest) Validate() error {
	if r.PlanID == uuid.Nil {
		return fmt.Errorf("plan ID is required")
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if r.LockMonths < MinLockMonths || r.LockMonths > MaxLockMonths {
		return fmt.Errorf("lock duration must be between %d and %d months", MinLockMonths, MaxLockMonths)
	}
	return nil
}
