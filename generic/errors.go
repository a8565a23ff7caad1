/*
errors.go - Centralized error types for the generic engine

PURPOSE:
  All ledger-level error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Ledger errors - Transaction persistence failures
  2. Hold errors - Invalid state transitions on pending holds
  3. Validation errors - Business rule violations

USAGE:
  Domain packages can wrap generic errors:

    if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
        return ErrAlreadyResolved
    }

SEE ALSO:
  - ledger.go: Uses these errors
  - hold.go: Uses these errors
  - rewards/errors.go: Domain errors layered on top
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrTransactionFailed is returned when a transaction cannot be persisted.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrInsufficientBalance is returned when a debit exceeds the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrEntityNotFound is returned when a referenced entity doesn't exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrHoldNotPending is returned when settling or releasing a hold that
	// already reached a terminal state.
	ErrHoldNotPending = errors.New("hold is not pending")

	// ErrInvalidAmount is returned for zero or negative hold/credit amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidDate is returned for unparseable dates, months and cadences.
	ErrInvalidDate = errors.New("invalid date")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EntityID  EntityID
	AccountID AccountID
	Available Amount
	Requested Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %v, requested %v, shortfall %v",
		e.Available.Value, e.Requested.Value, e.Requested.Sub(e.Available).Value)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// HoldStateError reports an illegal hold transition.
type HoldStateError struct {
	HoldID string
	Status HoldStatus
	Action string
}

func (e *HoldStateError) Error() string {
	return fmt.Sprintf("can only %s pending holds, hold %s is %s", e.Action, e.HoldID, e.Status)
}

func (e *HoldStateError) Unwrap() error {
	return ErrHoldNotPending
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrHoldNotPending) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidDate)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntityNotFound)
}
