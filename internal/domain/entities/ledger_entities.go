package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Pool identifies one of the five segregated balance pools of a ledger account
type Pool string

const (
	PoolMain              Pool = "main"                // Freely spendable balance
	PoolCopyAllocated     Pool = "copy_allocated"      // Capital committed to copy relationships
	PoolCopyWallet        Pool = "copy_wallet"         // Released copy-trading funds
	PoolLongTermAllocated Pool = "long_term_allocated" // Capital locked in long-term plans
	PoolLongTermWallet    Pool = "long_term_wallet"    // Matured/released long-term funds
)

// Validate checks if the pool is valid
func (p Pool) Validate() error {
	switch p {
	case PoolMain, PoolCopyAllocated, PoolCopyWallet, PoolLongTermAllocated, PoolLongTermWallet:
		return nil
	default:
		return fmt.Errorf("invalid pool: %s", p)
	}
}

// Round2 rounds a monetary amount to 2 decimal places
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LedgerAccount holds the five segregated pools for one user.
// All pools are non-negative; mutations go through ApplyDelta so the
// invariant cannot be bypassed.
type LedgerAccount struct {
	UserID            uuid.UUID       `json:"user_id" db:"user_id"`
	MainBalance       decimal.Decimal `json:"main_balance" db:"main_balance"`
	CopyAllocated     decimal.Decimal `json:"copy_allocated" db:"copy_allocated"`
	CopyWallet        decimal.Decimal `json:"copy_wallet" db:"copy_wallet"`
	LongTermAllocated decimal.Decimal `json:"long_term_allocated" db:"long_term_allocated"`
	LongTermWallet    decimal.Decimal `json:"long_term_wallet" db:"long_term_wallet"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// NewLedgerAccount creates an empty account for a new user
func NewLedgerAccount(userID uuid.UUID) *LedgerAccount {
	now := time.Now().UTC()
	return &LedgerAccount{
		UserID:            userID,
		MainBalance:       decimal.Zero,
		CopyAllocated:     decimal.Zero,
		CopyWallet:        decimal.Zero,
		LongTermAllocated: decimal.Zero,
		LongTermWallet:    decimal.Zero,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Balance returns the current balance of a pool
func (a *LedgerAccount) Balance(pool Pool) decimal.Decimal {
	switch pool {
	case PoolMain:
		return a.MainBalance
	case PoolCopyAllocated:
		return a.CopyAllocated
	case PoolCopyWallet:
		return a.CopyWallet
	case PoolLongTermAllocated:
		return a.LongTermAllocated
	case PoolLongTermWallet:
		return a.LongTermWallet
	}
	return decimal.Zero
}

// ApplyDelta applies a signed amount to a pool and returns the new balance.
// A delta that would drive the pool negative is rejected; no pool in this
// system is permitted to go negative.
func (a *LedgerAccount) ApplyDelta(pool Pool, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := pool.Validate(); err != nil {
		return decimal.Zero, err
	}
	amount = Round2(amount)
	newBalance := a.Balance(pool).Add(amount)
	if newBalance.IsNegative() {
		return decimal.Zero, fmt.Errorf("pool %s would go negative: balance=%s, delta=%s",
			pool, a.Balance(pool).String(), amount.String())
	}

	switch pool {
	case PoolMain:
		a.MainBalance = newBalance
	case PoolCopyAllocated:
		a.CopyAllocated = newBalance
	case PoolCopyWallet:
		a.CopyWallet = newBalance
	case PoolLongTermAllocated:
		a.LongTermAllocated = newBalance
	case PoolLongTermWallet:
		a.LongTermWallet = newBalance
	}
	a.UpdatedAt = time.Now().UTC()
	return newBalance, nil
}

// TotalEquity returns the sum across all five pools
func (a *LedgerAccount) TotalEquity() decimal.Decimal {
	return a.MainBalance.
		Add(a.CopyAllocated).
		Add(a.CopyWallet).
		Add(a.LongTermAllocated).
		Add(a.LongTermWallet)
}

// Validate checks the account invariants
func (a *LedgerAccount) Validate() error {
	if a.UserID == uuid.Nil {
		return fmt.Errorf("user ID is required")
	}
	for _, p := range []Pool{PoolMain, PoolCopyAllocated, PoolCopyWallet, PoolLongTermAllocated, PoolLongTermWallet} {
		if a.Balance(p).IsNegative() {
			return fmt.Errorf("pool %s balance cannot be negative", p)
		}
	}
	return nil
}

// LedgerLine is one signed, append-only record of a balance mutation.
// The sum of all lines for a user always equals the user's total equity.
type LedgerLine struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	Pool        Pool            `json:"pool" db:"pool"`
	Amount      decimal.Decimal `json:"amount" db:"amount"` // signed net change
	Description string          `json:"description" db:"description"`
	ReferenceID *uuid.UUID      `json:"reference_id,omitempty" db:"reference_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// NewLedgerLine creates a signed ledger record for a committed pool mutation
func NewLedgerLine(userID uuid.UUID, pool Pool, amount decimal.Decimal, description string, referenceID *uuid.UUID) *LedgerLine {
	return &LedgerLine{
		ID:          uuid.New(),
		UserID:      userID,
		Pool:        pool,
		Amount:      Round2(amount),
		Description: description,
		ReferenceID: referenceID,
		CreatedAt:   time.Now().UTC(),
	}
}

// Validate validates the ledger line
func (l *LedgerLine) Validate() error {
	if l.ID == uuid.Nil {
		return fmt.Errorf("line ID is required")
	}
	if l.UserID == uuid.Nil {
		return fmt.Errorf("user ID is required")
	}
	if err := l.Pool.Validate(); err != nil {
		return err
	}
	if l.Amount.IsZero() {
		return fmt.Errorf("line amount cannot be zero")
	}
	return nil
}

// LedgerSnapshot is a read-only view of a user's balances plus recent activity
type LedgerSnapshot struct {
	UserID      uuid.UUID       `json:"user_id"`
	Account     *LedgerAccount  `json:"account"`
	TotalEquity decimal.Decimal `json:"total_equity"`
	RecentLines []*LedgerLine   `json:"recent_lines"`
	AsOf        time.Time       `json:"as_of"`
}
