/*
integrity.go - Cross-record scan and the asymmetric repair

PURPOSE:
  The paid flag and the payment records are stored independently, so
  after a crash, a failed rollback, or two racing callers they can
  disagree. ValidateIntegrity finds the disagreements; RepairIntegrity
  fixes them. Repair is never invoked implicitly.

FINDING KINDS:
  - Orphaned work day: paid == true but no payment claims the record.
  - Orphaned payment: a payment references a record with paid == false.
  - Multiply-claimed day: paid == true and more than one payment claims
    the record. Detected and reported, but never auto-repaired: there
    is no principled way to pick the surviving claim.

REPAIR ASYMMETRY (intentional, must be preserved):
  Payment records are trusted as the source of truth. An unclaimed paid
  flag is treated as stale UI state, not an undocumented cash payment,
  and is cleared. A payment with unmatched flags wins: its days are
  re-marked paid rather than the payment being deleted.

SEE ALSO:
  - unmark.go: the force path whose partial failures this scan finds
*/
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// INTEGRITY SCAN
// =============================================================================

// IntegrityReport is the result of a full scan.
type IntegrityReport struct {
	// IsValid is true iff every finding list is empty.
	IsValid bool

	// OrphanedWorkDays lists work record ids with paid == true that no
	// payment claims.
	OrphanedWorkDays []string

	// OrphanedPayments lists payment ids referencing at least one work
	// record with paid == false (or a record that no longer exists).
	OrphanedPayments []string

	// MultiplyClaimedDays lists paid work record ids claimed by more
	// than one payment. A day is either unpaid or paid by exactly one
	// payment; repair cannot pick a winner here, so these stay flagged
	// until resolved by hand.
	MultiplyClaimedDays []string

	// Issues holds one human-readable line per finding.
	Issues []string
}

// ValidateIntegrity loads all work records and all payment records and
// cross-checks them. Side-effect free and safe to call at any time,
// including concurrently with other operations - it may then report
// transient false positives for writes in flight.
func (e *Engine) ValidateIntegrity(ctx context.Context) (*IntegrityReport, error) {
	works, payments, err := e.loadBoth(ctx)
	if err != nil {
		return nil, err
	}

	claimed := make(map[string][]string) // work day id -> claiming payment ids
	for _, p := range payments {
		for _, id := range p.WorkDayIDs {
			claimed[id] = append(claimed[id], p.ID)
		}
	}
	paid := make(map[string]bool, len(works))
	exists := make(map[string]bool, len(works))
	for _, w := range works {
		exists[w.ID] = true
		paid[w.ID] = w.Paid
	}

	report := &IntegrityReport{}

	for _, w := range works {
		switch {
		case w.Paid && len(claimed[w.ID]) == 0:
			report.OrphanedWorkDays = append(report.OrphanedWorkDays, w.ID)
			report.Issues = append(report.Issues, fmt.Sprintf(
				"work record %s (%s, employee %s) is marked paid but no payment covers it",
				w.ID, w.Date, w.EmployeeID))
		case w.Paid && len(claimed[w.ID]) > 1:
			report.MultiplyClaimedDays = append(report.MultiplyClaimedDays, w.ID)
			report.Issues = append(report.Issues, fmt.Sprintf(
				"work record %s (%s, employee %s) is claimed by %d payments: %s",
				w.ID, w.Date, w.EmployeeID, len(claimed[w.ID]), strings.Join(claimed[w.ID], ", ")))
		}
	}

	for _, p := range payments {
		orphaned := false
		for _, id := range p.WorkDayIDs {
			if !exists[id] {
				orphaned = true
				report.Issues = append(report.Issues, fmt.Sprintf(
					"payment %s references missing work record %s", p.ID, id))
				continue
			}
			if !paid[id] {
				orphaned = true
				report.Issues = append(report.Issues, fmt.Sprintf(
					"payment %s (%s of %s on %s) covers work record %s which is not marked paid",
					p.ID, p.PaymentType, p.Amount.StringFixed(2), p.Date, id))
			}
		}
		if orphaned {
			report.OrphanedPayments = append(report.OrphanedPayments, p.ID)
		}
	}

	report.IsValid = len(report.OrphanedWorkDays) == 0 &&
		len(report.OrphanedPayments) == 0 &&
		len(report.MultiplyClaimedDays) == 0
	return report, nil
}

// loadBoth reads the two collections concurrently; they are independent
// queries, unlike the write sequences which must stay sequential.
func (e *Engine) loadBoth(ctx context.Context) ([]WorkRecord, []PaymentRecord, error) {
	var (
		wg       sync.WaitGroup
		works    []WorkRecord
		payments []PaymentRecord
		workErr  error
		payErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		works, workErr = e.work.ListAll(ctx)
	}()
	go func() {
		defer wg.Done()
		payments, payErr = e.payments.ListAll(ctx)
	}()
	wg.Wait()

	if workErr != nil {
		return nil, nil, fmt.Errorf("listing work records: %w", workErr)
	}
	if payErr != nil {
		return nil, nil, fmt.Errorf("listing payment records: %w", payErr)
	}
	return works, payments, nil
}

// =============================================================================
// REPAIR
// =============================================================================

// RepairAction is one applied (or skipped) fix.
type RepairAction struct {
	Action    string `json:"action"` // "none", "cleared_paid_flag", "restored_paid_flag", "skipped_missing_day", "skipped_double_claim", "failed"
	WorkDayID string `json:"workDayId,omitempty"`
	PaymentID string `json:"paymentId,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// RepairResult lists every action taken, in order.
type RepairResult struct {
	Actions []RepairAction
}

// RepairIntegrity validates first; when the ledger is already
// consistent it returns a single "no repair needed" action, which also
// makes repair idempotent. Otherwise it applies the asymmetric fix:
// unclaimed paid flags are cleared, and each orphaned payment's days
// are written back to paid=true.
//
// Repair is itself a sequence of per-document writes with no rollback;
// individual write failures are recorded as "failed" actions and left
// for the next scan rather than aborting the remaining fixes.
func (e *Engine) RepairIntegrity(ctx context.Context) (*RepairResult, error) {
	report, err := e.ValidateIntegrity(ctx)
	if err != nil {
		return nil, err
	}
	if report.IsValid {
		return &RepairResult{Actions: []RepairAction{{Action: "none", Detail: "no repair needed"}}}, nil
	}

	result := &RepairResult{}

	// Unclaimed paid flags are stale state: clear them.
	for _, id := range report.OrphanedWorkDays {
		result.Actions = append(result.Actions, e.setPaid(ctx, id, false, ""))
	}

	// A day claimed by several payments has no automatic winner; flipping
	// the flag either way would bless one claim arbitrarily.
	for _, id := range report.MultiplyClaimedDays {
		result.Actions = append(result.Actions, RepairAction{
			Action: "skipped_double_claim", WorkDayID: id,
			Detail: "day is claimed by more than one payment; resolve the extra payment manually",
		})
	}

	// Payments win: bring their days back into agreement.
	for _, paymentID := range report.OrphanedPayments {
		p, err := e.payments.Get(ctx, paymentID)
		if err != nil {
			result.Actions = append(result.Actions, RepairAction{
				Action: "failed", PaymentID: paymentID,
				Detail: fmt.Sprintf("reading payment: %v", err),
			})
			continue
		}
		for _, dayID := range p.WorkDayIDs {
			rec, err := e.work.Get(ctx, dayID)
			if err != nil {
				if IsNotFound(err) {
					result.Actions = append(result.Actions, RepairAction{
						Action: "skipped_missing_day", WorkDayID: dayID, PaymentID: paymentID,
						Detail: "payment references a work record that no longer exists",
					})
					continue
				}
				result.Actions = append(result.Actions, RepairAction{
					Action: "failed", WorkDayID: dayID, PaymentID: paymentID,
					Detail: fmt.Sprintf("reading work record: %v", err),
				})
				continue
			}
			if rec.Paid {
				continue
			}
			result.Actions = append(result.Actions, e.setPaid(ctx, dayID, true, paymentID))
		}
	}

	return result, nil
}

func (e *Engine) setPaid(ctx context.Context, workDayID string, paid bool, paymentID string) RepairAction {
	action := "cleared_paid_flag"
	if paid {
		action = "restored_paid_flag"
	}

	rec, err := e.work.Get(ctx, workDayID)
	if err != nil {
		return RepairAction{Action: "failed", WorkDayID: workDayID, PaymentID: paymentID,
			Detail: fmt.Sprintf("reading work record: %v", err)}
	}
	rec.Paid = paid
	if err := e.work.Put(ctx, *rec); err != nil {
		return RepairAction{Action: "failed", WorkDayID: workDayID, PaymentID: paymentID,
			Detail: fmt.Sprintf("writing work record: %v", err)}
	}
	return RepairAction{Action: action, WorkDayID: workDayID, PaymentID: paymentID}
}
