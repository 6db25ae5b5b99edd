package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the type of a transaction record
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeAdjustment TransactionType = "adjustment"
	TransactionTypeROI        TransactionType = "roi"
)

// Validate checks if the transaction type is valid
func (t TransactionType) Validate() error {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeAdjustment, TransactionTypeROI:
		return nil
	default:
		return fmt.Errorf("invalid transaction type: %s", t)
	}
}

// TransactionStatus represents the status of a transaction.
// PENDING is the only mutable state; exactly one terminal transition
// is permitted.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// IsTerminal reports whether the status permits no further transition
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed || s == TransactionStatusCancelled
}

// WithdrawalSource is a tagged variant identifying where withdrawal funds
// come from. Every dispatch over it must be exhaustive; an unknown source
// is an error, never a silent default.
type WithdrawalSource string

const (
	SourceCopyWallet       WithdrawalSource = "copy_trading_wallet"
	SourceLongTermWallet   WithdrawalSource = "long_term_wallet"
	SourceActiveAllocation WithdrawalSource = "active_allocation"
)

// Validate checks if the withdrawal source is valid
func (s WithdrawalSource) Validate() error {
	switch s {
	case SourceCopyWallet, SourceLongTermWallet, SourceActiveAllocation:
		return nil
	default:
		return fmt.Errorf("invalid withdrawal source: %s", s)
	}
}

// IsWalletSourced reports whether the source pre-debits at request time.
// Wallet sources hold funds immediately; allocation sources defer all
// balance effects to resolution.
func (s WithdrawalSource) IsWalletSourced() bool {
	return s == SourceCopyWallet || s == SourceLongTermWallet
}

// Pool returns the ledger pool a wallet source draws from
func (s WithdrawalSource) Pool() (Pool, error) {
	switch s {
	case SourceCopyWallet:
		return PoolCopyWallet, nil
	case SourceLongTermWallet:
		return PoolLongTermWallet, nil
	default:
		return "", fmt.Errorf("source %s is not wallet-backed", s)
	}
}

// Transaction is an append-only money-movement record. Immutable once
// terminal.
type Transaction struct {
	ID                  uuid.UUID         `json:"id" db:"id"`
	UserID              uuid.UUID         `json:"user_id" db:"user_id"`
	Amount              decimal.Decimal   `json:"amount" db:"amount"`
	Type                TransactionType   `json:"type" db:"type"`
	Status              TransactionStatus `json:"status" db:"status"`
	WithdrawalSource    *WithdrawalSource `json:"withdrawal_source,omitempty" db:"withdrawal_source"`
	RelatedInvestmentID *uuid.UUID        `json:"related_investment_id,omitempty" db:"related_investment_id"`
	EarlyWithdrawal     bool              `json:"early_withdrawal" db:"early_withdrawal"`
	Description         string            `json:"description" db:"description"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
	ResolvedAt          *time.Time        `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Validate validates the transaction
func (t *Transaction) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("transaction ID is required")
	}
	if t.UserID == uuid.Nil {
		return fmt.Errorf("user ID is required")
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if t.WithdrawalSource != nil {
		if err := t.WithdrawalSource.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Resolve moves a PENDING transaction to a terminal status. Any other
// transition is rejected.
func (t *Transaction) Resolve(status TransactionStatus) error {
	if t.Status != TransactionStatusPending {
		return fmt.Errorf("transaction %s is already %s", t.ID, t.Status)
	}
	if !status.IsTerminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}
	now := time.Now().UTC()
	t.Status = status
	t.ResolvedAt = &now
	return nil
}

// WalletWithdrawalRequest asks to move wallet funds back to the main balance
type WalletWithdrawalRequest struct {
	Amount decimal.Decimal  `json:"amount" binding:"required"`
	Source WithdrawalSource `json:"source" binding:"required"`
}
