/*
unmark.go - Guarded unmark and the confirmed force-unmark

PURPOSE:
  Unmarking a paid day is destructive when a payment still claims it, so
  it is split into two operations. UnmarkAsPaid is the guard: it never
  mutates anything while a payment references a target day, and instead
  returns the affected payments with a human-readable summary so the
  caller can ask for explicit confirmation. ForceUnmarkAsPaid is the
  confirmed path: it resolves every affected payment (delete or shrink)
  and then clears the paid flags.

FORCE SEMANTICS:
  The force path is explicitly best-effort, not atomic. No snapshot or
  rollback is taken; failures midway are surfaced in a partial-results
  structure recording what succeeded and what failed, so the caller can
  decide whether to retry or trigger the repair scan.

SEE ALSO:
  - engine.go: the compensated create path (the contrast is deliberate)
  - integrity.go: the recovery path after a partial force failure
*/
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// GUARDED UNMARK
// =============================================================================

// UnmarkResult reports what a guarded unmark did - or why it paused.
type UnmarkResult struct {
	// Applied is true when the paid flags were actually cleared.
	Applied bool

	// RequiresConfirmation is true when existing payments reference the
	// target days. Nothing was mutated; call ForceUnmarkAsPaid after
	// the caller consents. This is a structured pause, not an error.
	RequiresConfirmation bool

	// AffectedPayments lists every payment claiming at least one
	// target day (populated only when RequiresConfirmation is set).
	AffectedPayments []PaymentRecord

	// Message is a human-readable summary of the affected payments,
	// suitable for a confirmation prompt.
	Message string
}

// UnmarkAsPaid clears the paid flag on the given work records, unless
// any current payment claims one of them - in which case it mutates
// nothing and asks for confirmation instead.
func (e *Engine) UnmarkAsPaid(ctx context.Context, workDayIDs []string) (*UnmarkResult, error) {
	if len(workDayIDs) == 0 {
		return nil, &ValidationError{Message: "workDayIds must be non-empty"}
	}
	workDayIDs = dedupeIDs(workDayIDs)

	affected, err := e.paymentsCovering(ctx, workDayIDs)
	if err != nil {
		return nil, err
	}
	if len(affected) > 0 {
		return &UnmarkResult{
			RequiresConfirmation: true,
			AffectedPayments:     affected,
			Message:              summarizePayments(affected),
		}, nil
	}

	// No payment claims any target day: safe to proceed. Every record is
	// resolved before the first write, so an unknown id fails the whole
	// call with nothing mutated; only store failures can leave a partial
	// result, and those report exactly what completed.
	recs := make([]WorkRecord, 0, len(workDayIDs))
	verr := &ValidationError{}
	for _, id := range workDayIDs {
		rec, err := e.work.Get(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				verr.Missing = append(verr.Missing, id)
				continue
			}
			return nil, fmt.Errorf("reading work record %s: %w", id, err)
		}
		recs = append(recs, *rec)
	}
	if len(verr.Missing) > 0 {
		return nil, verr
	}

	var completed []string
	for _, rec := range recs {
		rec.Paid = false
		if err := e.work.Put(ctx, rec); err != nil {
			return nil, &PartialWriteError{Completed: completed, Cause: err}
		}
		completed = append(completed, rec.ID)
	}

	return &UnmarkResult{Applied: true}, nil
}

func (e *Engine) paymentsCovering(ctx context.Context, workDayIDs []string) ([]PaymentRecord, error) {
	all, err := e.payments.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing payment records: %w", err)
	}
	var affected []PaymentRecord
	for _, p := range all {
		if p.CoversAny(workDayIDs) {
			affected = append(affected, p)
		}
	}
	return affected, nil
}

// summarizePayments renders amounts, dates and payment types for a
// confirmation prompt.
func summarizePayments(payments []PaymentRecord) string {
	lines := make([]string, len(payments))
	for i, p := range payments {
		lines[i] = fmt.Sprintf("%s payment of %s on %s covering %d day(s)",
			p.PaymentType, p.Amount.StringFixed(2), p.Date, len(p.WorkDayIDs))
	}
	return fmt.Sprintf("%d payment(s) reference the selected day(s): %s. Confirm to delete or shrink them.",
		len(payments), strings.Join(lines, "; "))
}

// =============================================================================
// FORCE UNMARK (confirmed)
// =============================================================================

// ResolutionPolicy says what to do with a payment that still claims
// days beyond the ones being unmarked.
type ResolutionPolicy string

const (
	// ResolutionDelete removes every affected payment entirely.
	ResolutionDelete ResolutionPolicy = "delete"

	// ResolutionShrink rewrites affected payments to cover only their
	// remaining days, scaling the amount proportionally. Payments left
	// with no remaining days are deleted regardless.
	ResolutionShrink ResolutionPolicy = "shrink"
)

// StepFailure records one failed write in a best-effort operation.
type StepFailure struct {
	Kind string // "payment_delete", "payment_update", "work_unmark"
	ID   string
	Err  error
}

func (f StepFailure) String() string {
	return fmt.Sprintf("%s %s: %v", f.Kind, f.ID, f.Err)
}

// ForceUnmarkResult is a partial-results structure: it records what
// succeeded and what failed rather than collapsing into one exception.
type ForceUnmarkResult struct {
	DeletedPaymentIDs []string
	UpdatedPayments   []PaymentRecord
	UnmarkedDayIDs    []string
	Failures          []StepFailure

	// Advisories flags silent drift, e.g. a shrunk payment whose
	// remaining days carry custom amounts (the proportional scale does
	// not re-resolve per-day wages).
	Advisories []string
}

// Ok reports whether every step succeeded.
func (r *ForceUnmarkResult) Ok() bool { return len(r.Failures) == 0 }

// ForceUnmarkAsPaid is the confirmed unmark. For every payment claiming
// a target day it computes the remaining covered set; the payment is
// deleted when the set is empty or the policy is Delete, otherwise it
// is rewritten with the remaining days and a proportionally scaled
// amount. Afterwards every target work record is written paid=false.
//
// Amount recomputation deliberately scales the original total by
// remaining/original instead of re-resolving each day's wage; custom
// per-day amounts can therefore drift, which is surfaced in Advisories.
func (e *Engine) ForceUnmarkAsPaid(ctx context.Context, workDayIDs []string, policy ResolutionPolicy) (*ForceUnmarkResult, error) {
	if len(workDayIDs) == 0 {
		return nil, &ValidationError{Message: "workDayIds must be non-empty"}
	}
	if policy != ResolutionDelete && policy != ResolutionShrink {
		return nil, &ValidationError{Message: fmt.Sprintf("unknown resolution policy %q", policy)}
	}
	workDayIDs = dedupeIDs(workDayIDs)

	affected, err := e.paymentsCovering(ctx, workDayIDs)
	if err != nil {
		return nil, err
	}

	removing := make(map[string]bool, len(workDayIDs))
	for _, id := range workDayIDs {
		removing[id] = true
	}

	result := &ForceUnmarkResult{}
	for _, p := range affected {
		var remaining []string
		for _, id := range p.WorkDayIDs {
			if !removing[id] {
				remaining = append(remaining, id)
			}
		}

		if len(remaining) == 0 || policy == ResolutionDelete {
			if err := e.payments.Delete(ctx, p.ID); err != nil {
				result.Failures = append(result.Failures, StepFailure{Kind: "payment_delete", ID: p.ID, Err: err})
				continue
			}
			result.DeletedPaymentIDs = append(result.DeletedPaymentIDs, p.ID)
			continue
		}

		shrunk := p
		shrunk.WorkDayIDs = remaining
		shrunk.Amount = scaleProportionally(p.Amount, len(remaining), len(p.WorkDayIDs))
		if err := e.payments.Put(ctx, shrunk); err != nil {
			result.Failures = append(result.Failures, StepFailure{Kind: "payment_update", ID: p.ID, Err: err})
			continue
		}
		result.UpdatedPayments = append(result.UpdatedPayments, shrunk)
		if note := e.customAmountAdvisory(ctx, shrunk); note != "" {
			result.Advisories = append(result.Advisories, note)
		}
	}

	// Clear the paid flags last, best effort across all of them.
	for _, id := range workDayIDs {
		rec, err := e.work.Get(ctx, id)
		if err != nil {
			result.Failures = append(result.Failures, StepFailure{Kind: "work_unmark", ID: id, Err: err})
			continue
		}
		rec.Paid = false
		if err := e.work.Put(ctx, *rec); err != nil {
			result.Failures = append(result.Failures, StepFailure{Kind: "work_unmark", ID: id, Err: err})
			continue
		}
		result.UnmarkedDayIDs = append(result.UnmarkedDayIDs, id)
	}

	return result, nil
}

// scaleProportionally computes amount * remaining / original.
func scaleProportionally(amount decimal.Decimal, remaining, original int) decimal.Decimal {
	return amount.
		Mul(decimal.NewFromInt(int64(remaining))).
		Div(decimal.NewFromInt(int64(original)))
}

// customAmountAdvisory checks whether any remaining day overrides its
// wage, in which case the proportional scale may have drifted from the
// true per-day sum. Read failures here are ignored: the advisory is a
// hint, not a guarantee.
func (e *Engine) customAmountAdvisory(ctx context.Context, p PaymentRecord) string {
	for _, id := range p.WorkDayIDs {
		rec, err := e.work.Get(ctx, id)
		if err != nil {
			continue
		}
		if rec.CustomAmount != nil {
			return fmt.Sprintf("payment %s: remaining day %s has a custom amount; the scaled total may not equal the per-day sum", p.ID, id)
		}
	}
	return ""
}
