/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store-level failures are always wrapped in one of these, never leaked
  raw, so callers branch on kind rather than message text.

ERROR CATEGORIES:
  1. Validation errors - bad input (e.g. paying for an unworked day)
  2. Partial-write errors - a multi-step write failed partway and a
     rollback was attempted
  3. Manual-intervention errors - the rollback itself failed; residual
     inconsistency persists and carries full identifying detail

NOT AN ERROR:
  A guarded unmark that needs caller consent returns a structured
  UnmarkResult with RequiresConfirmation set. Confirmation is a pause,
  not a failure, so it does not appear in this taxonomy.

RETRIES:
  Nothing is retried inside the engine; retries are a caller policy.
  The only self-healing path is the explicit RepairIntegrity operation.

SEE ALSO:
  - engine.go, unmark.go: produce these errors
  - integrity.go: finds and fixes what ManualInterventionError reports
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for bad input, e.g. an unworked or
	// unknown day targeted for payment.
	ErrValidation = errors.New("validation failed")

	// ErrPartialWrite is returned when a multi-step write failed partway
	// and the completed steps were rolled back.
	ErrPartialWrite = errors.New("partial write")

	// ErrPaymentCreate is returned when the payment record write failed
	// after all work records were already marked paid; the marks were
	// rolled back before returning.
	ErrPaymentCreate = errors.New("payment create failed")

	// ErrManualIntervention is returned when a rollback itself failed.
	// The store is left inconsistent; RepairIntegrity is the fix.
	ErrManualIntervention = errors.New("manual intervention required")

	// ErrRecordNotFound is returned by stores for unknown ids.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateDay is returned by stores that enforce the one-record-
	// per-employee-per-day rule when a second record targets the same day.
	ErrDuplicateDay = errors.New("work record already exists for that employee and day")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError lists the work record ids that made the request
// invalid, keyed by what was wrong with them.
type ValidationError struct {
	Missing       []string // referenced ids that do not exist
	NotWorked     []string // ids with worked == false
	WrongEmployee []string // ids belonging to a different employee
	Duplicate     []string // ids listed more than once in the request
	Message       string   // optional extra context (empty input, etc.)
}

func (e *ValidationError) Error() string {
	var parts []string
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing work records: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.NotWorked) > 0 {
		parts = append(parts, fmt.Sprintf("days not worked: %s", strings.Join(e.NotWorked, ", ")))
	}
	if len(e.WrongEmployee) > 0 {
		parts = append(parts, fmt.Sprintf("days for a different employee: %s", strings.Join(e.WrongEmployee, ", ")))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, fmt.Sprintf("days listed more than once: %s", strings.Join(e.Duplicate, ", ")))
	}
	if len(parts) == 0 {
		parts = append(parts, "invalid input")
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PartialWriteError reports exactly which steps completed and which were
// rolled back. This is the only signal the integrity scanner will later
// need, so it must never be silently dropped.
type PartialWriteError struct {
	Completed  []string // work record ids successfully written before the failure
	RolledBack []string // ids restored to their original value
	Cause      error    // the underlying store failure
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write: %d completed, %d rolled back: %v",
		len(e.Completed), len(e.RolledBack), e.Cause)
}

func (e *PartialWriteError) Unwrap() error { return ErrPartialWrite }

// PaymentCreateError means every work record was marked paid but the
// payment record write failed; the marks were rolled back in full.
type PaymentCreateError struct {
	WorkDayIDs []string
	Cause      error
}

func (e *PaymentCreateError) Error() string {
	return fmt.Sprintf("payment create failed after marking %d days (rolled back): %v",
		len(e.WorkDayIDs), e.Cause)
}

func (e *PaymentCreateError) Unwrap() error { return ErrPaymentCreate }

// ManualInterventionError is the worst case: a rollback failed, so the
// store holds residual inconsistency. It carries every id involved so
// the condition can be logged in full and found by ValidateIntegrity.
type ManualInterventionError struct {
	WorkDayIDs   []string // ids whose paid flag may be wrong
	RolledBack   []string // ids the rollback did manage to restore
	Cause        error    // the failure that triggered the rollback
	RollbackErrs []error  // the failures of the rollback itself
}

func (e *ManualInterventionError) Error() string {
	return fmt.Sprintf("manual intervention required: rollback failed for %d of %d days (cause: %v; rollback errors: %v)",
		len(e.WorkDayIDs)-len(e.RolledBack), len(e.WorkDayIDs), e.Cause, errors.Join(e.RollbackErrs...))
}

func (e *ManualInterventionError) Unwrap() error { return ErrManualIntervention }

// NotFoundError identifies which record in which collection was missing.
type NotFoundError struct {
	Collection string // "work_records" or "payment_records" or "employees"
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: no record with id %q", e.Collection, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrRecordNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrDuplicateDay)
}

// IsConflict returns true if a multi-record write ended in a state the
// caller should surface (rolled back or not). Retrying is a caller policy.
func IsConflict(err error) bool {
	return errors.Is(err, ErrPartialWrite) ||
		errors.Is(err, ErrPaymentCreate) ||
		errors.Is(err, ErrManualIntervention)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}
