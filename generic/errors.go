/*
errors.go - Centralized error types for the absence engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every rejection carries enough context for the caller to explain which
  rule failed. None of these errors is fatal to the process.

ERROR CATEGORIES:
  1. Validation   - Malformed input (end before start, unknown type)
  2. Overlap      - Conflicting existing request
  3. Balance      - Entitlement exceeded, at reserve time or commit time
  4. State        - Transition attempted on a terminal request
  5. Not found    - Unknown employee, request or region
  6. Forbidden    - Actor may not act on the target

USAGE:
  Match categories with errors.Is, details with errors.As:

    if errors.Is(err, generic.ErrInsufficientBalance) {
        var ib *generic.InsufficientBalanceError
        errors.As(err, &ib)
        fmt.Println(ib.Remaining())
    }

SEE ALSO:
  - absence/ledger.go: Raises InsufficientBalanceError
  - absence/request.go: Raises InvalidStateError, OverlapError
  - api/handlers.go: Maps categories to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input. Nothing is coerced.
	ErrValidation = errors.New("validation failed")

	// ErrOverlap is returned when a request conflicts with an existing one.
	ErrOverlap = errors.New("overlapping request")

	// ErrInsufficientBalance is returned when a debit would exceed the entitlement.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidState is returned when a transition is not legal from the current status.
	ErrInvalidState = errors.New("invalid state transition")

	// ErrNotFound is returned when a referenced employee, request or region doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the actor may not perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned by stores for uniqueness violations (duplicate ID or name).
	ErrConflict = errors.New("conflict")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field and why it was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// OverlapError lists the existing requests that conflict with Period.
type OverlapError struct {
	EmployeeID string
	Period     Period
	Conflicts  []string // request IDs
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("request %s for employee %s overlaps existing request(s) %s",
		e.Period, e.EmployeeID, strings.Join(e.Conflicts, ", "))
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// BalancePhase tells whether a balance check was advisory or authoritative.
type BalancePhase string

const (
	PhaseReserve BalancePhase = "reserve"
	PhaseCommit  BalancePhase = "commit"
)

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID string
	Year       int
	Total      int
	Used       int
	Requested  int
	Phase      BalancePhase
}

// Remaining is what was left when the check failed.
func (e *InsufficientBalanceError) Remaining() int { return e.Total - e.Used }

// Shortfall is how many days were missing.
func (e *InsufficientBalanceError) Shortfall() int { return e.Used + e.Requested - e.Total }

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance (%s) for employee %s in %d: remaining %d, requested %d, shortfall %d",
		e.Phase, e.EmployeeID, e.Year, e.Remaining(), e.Requested, e.Shortfall())
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidStateError is returned when Action is not allowed from status From.
type InvalidStateError struct {
	RequestID string
	From      string
	Action    string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s request %s: status is %s", e.Action, e.RequestID, e.From)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// NotFoundError names the kind of record and the ID that was looked up.
type NotFoundError struct {
	Kind string // "employee", "request", "region", "holiday"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ForbiddenError explains why an actor was refused.
type ForbiddenError struct {
	ActorID string
	Action  string
	Reason  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s may not %s: %s", e.ActorID, e.Action, e.Reason)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the caller's input or
// the current state of the records, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrConflict)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Kind returns a stable machine-readable code for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrOverlap):
		return "overlap"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
