/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is / errors.As; no failure is ever reduced
  to a generic message at this layer.

ERROR CATEGORIES:
  1. Not-found errors  - Unknown personnel or absence identifiers
  2. Validation errors - Malformed input (date range, missing reason)
  3. Balance errors    - Insufficient balance, invariant violations

SEE ALSO:
  - ledger.go: Produces balance errors
  - service.go: Produces validation errors, propagates everything unchanged
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPersonnelNotFound is returned when a personnel id does not resolve.
	ErrPersonnelNotFound = errors.New("personnel not found")

	// ErrAbsenceNotFound is returned when an absence id does not resolve.
	ErrAbsenceNotFound = errors.New("absence not found")

	// ErrInsufficientBalance is returned when an annual-leave charge exceeds
	// the available balance.
	ErrInsufficientBalance = errors.New("insufficient leave balance")

	// ErrInvalidState is returned when an operation would violate an internal
	// invariant: a balance going negative outside the penalty clamp, a
	// double-applied penalty, or an edit the ledger cannot reconcile.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports a balance shortage.
type InsufficientBalanceError struct {
	PersonnelID PersonnelID
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance for personnel %d: available %s, requested %s",
		e.PersonnelID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// Shortfall returns how many days are missing.
func (e *InsufficientBalanceError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// ValidationError reports malformed input on a specific field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InvalidStateError reports an invariant violation with context.
type InvalidStateError struct {
	Op      string
	Message string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state in %s: %s", e.Op, e.Message)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPersonnelNotFound) || errors.Is(err, ErrAbsenceNotFound)
}

// IsClientError returns true if the error is due to invalid caller input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidState)
}
