package errors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for the allocation and settlement engine
var (
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrCapacityExceeded    = errors.New("plan capacity exceeded")
	ErrStateConflict       = errors.New("operation not allowed in current state")
	ErrLockTimeout         = errors.New("lock acquisition timed out")
	ErrNotFound            = errors.New("resource not found")
	ErrPolicyAckRequired   = errors.New("policy acknowledgement required")
	ErrThrottled           = errors.New("operation rate limit exceeded")
	ErrConservationBreach  = errors.New("ledger conservation breached")
	ErrDuplicateResource   = errors.New("resource already exists")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvariantViolation  = errors.New("invariant violation")
	ErrDependencyExhausted = errors.New("dependency unavailable")
)

// DomainError wraps a sentinel with an API-facing code, a human message,
// structured details, and a retryability hint for callers.
type DomainError struct {
	Err       error
	Code      string
	Message   string
	Details   map[string]interface{}
	Retryable bool
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation error with a field detail
func NewValidationError(message string, details map[string]interface{}) *DomainError {
	return &DomainError{
		Err:     ErrValidation,
		Code:    "VALIDATION_ERROR",
		Message: message,
		Details: details,
	}
}

// NewInsufficientFundsError reports a shortfall on a specific pool
func NewInsufficientFundsError(pool string, requested, available decimal.Decimal) *DomainError {
	return &DomainError{
		Err:     ErrInsufficientFunds,
		Code:    "INSUFFICIENT_FUNDS",
		Message: fmt.Sprintf("insufficient funds in %s", pool),
		Details: map[string]interface{}{
			"pool":      pool,
			"requested": requested.StringFixed(2),
			"available": available.StringFixed(2),
			"shortfall": requested.Sub(available).StringFixed(2),
		},
	}
}

// NewCapacityExceededError reports a plan capacity rejection with the
// numbers the caller needs to size a retry.
func NewCapacityExceededError(planID string, current, attempted, limit decimal.Decimal) *DomainError {
	return &DomainError{
		Err:     ErrCapacityExceeded,
		Code:    "CAPACITY_EXCEEDED",
		Message: "plan deposit limit would be exceeded",
		Details: map[string]interface{}{
			"plan_id":   planID,
			"current":   current.StringFixed(2),
			"attempted": attempted.StringFixed(2),
			"limit":     limit.StringFixed(2),
			"headroom":  limit.Sub(current).StringFixed(2),
		},
	}
}

// NewStateConflictError reports an operation attempted in a state that
// does not permit it.
func NewStateConflictError(resource, state, operation string) *DomainError {
	return &DomainError{
		Err:     ErrStateConflict,
		Code:    "STATE_CONFLICT",
		Message: fmt.Sprintf("cannot %s %s in state %s", operation, resource, state),
		Details: map[string]interface{}{
			"resource":  resource,
			"state":     state,
			"operation": operation,
		},
	}
}

// NewLockTimeoutError reports a pessimistic lock that could not be
// acquired in time. Safe to retry.
func NewLockTimeoutError(resource string) *DomainError {
	return &DomainError{
		Err:       ErrLockTimeout,
		Code:      "LOCK_TIMEOUT",
		Message:   fmt.Sprintf("could not lock %s", resource),
		Details:   map[string]interface{}{"resource": resource},
		Retryable: true,
	}
}

// NewNotFoundError reports a missing resource
func NewNotFoundError(resource string) *DomainError {
	return &DomainError{
		Err:     ErrNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewPolicyAckError reports a mutation that needs an explicit user
// acknowledgement before it can proceed.
func NewPolicyAckError(policy string) *DomainError {
	return &DomainError{
		Err:     ErrPolicyAckRequired,
		Code:    "POLICY_ACK_REQUIRED",
		Message: fmt.Sprintf("acknowledgement of %s is required", policy),
		Details: map[string]interface{}{"policy": policy},
	}
}

// NewThrottledError reports an engine-level rate rejection
func NewThrottledError(operation string, retryAfterSeconds int) *DomainError {
	return &DomainError{
		Err:     ErrThrottled,
		Code:    "RATE_LIMITED",
		Message: fmt.Sprintf("too many %s operations, slow down", operation),
		Details: map[string]interface{}{
			"operation":   operation,
			"retry_after": retryAfterSeconds,
		},
		Retryable: true,
	}
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsInsufficientFunds reports whether err is a funds shortfall
func IsInsufficientFunds(err error) bool { return errors.Is(err, ErrInsufficientFunds) }

// IsCapacityExceeded reports whether err is a capacity rejection
func IsCapacityExceeded(err error) bool { return errors.Is(err, ErrCapacityExceeded) }

// IsStateConflict reports whether err is a state machine conflict
func IsStateConflict(err error) bool { return errors.Is(err, ErrStateConflict) }

// IsNotFound reports whether err is a missing resource
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsRetryable reports whether the caller may safely retry the operation
func IsRetryable(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Retryable
	}
	return false
}

// AsDomainError extracts a DomainError when present
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
