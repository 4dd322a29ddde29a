/*
engine.go - The ledger engine and its create-payment operation

PURPOSE:
  Orchestrates multi-record operations on top of two stores that only
  offer per-document writes. The engine tracks enough state to
  compensate (undo) partial writes on failure.

OPERATIONS (public surface, each returns a structured result):
  CreatePaymentAndMark   engine.go    create a payment and mark its days
  UnmarkAsPaid           unmark.go    guarded unmark, asks for consent
  ForceUnmarkAsPaid      unmark.go    confirmed unmark with resolution
  ValidateIntegrity      integrity.go full cross-record scan
  RepairIntegrity        integrity.go asymmetric repair

ORDERING RATIONALE (mark days first, then create payment):
  A work record incorrectly left paid=true with no payment is detectable
  and repairable by the integrity scanner. A payment record existing
  with no days actually marked paid is a worse, silent-looking
  inconsistency. The design biases toward the cheaper failure mode.

KNOWN LIMITATION:
  Concurrency safety across different callers is NOT guaranteed. Two
  concurrent CreatePaymentAndMark calls touching overlapping work record
  ids can race and leave an inconsistent state that only
  ValidateIntegrity/RepairIntegrity will later detect and fix. The store
  offers no locks and no optimistic-concurrency tokens; within one call,
  steps execute sequentially because rollback correctness depends on
  knowing exactly which prior steps succeeded.

SEE ALSO:
  - saga.go: the compensating-transaction runner
  - errors.go: the error taxonomy these operations produce
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine keeps work records and payment records in agreement. It holds
// no state of its own beyond its collaborators; every operation reads
// what it needs fresh from the stores.
type Engine struct {
	work     WorkRecordStore
	payments PaymentRecordStore

	now   func() time.Time
	newID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's notion of "today" (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides payment id generation (tests).
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// NewEngine creates an engine over the two record stores.
func NewEngine(work WorkRecordStore, payments PaymentRecordStore, opts ...Option) *Engine {
	e := &Engine{
		work:     work,
		payments: payments,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// CREATE PAYMENT AND MARK
// =============================================================================

// CreatePaymentInput is the request to pay for a set of worked days.
type CreatePaymentInput struct {
	EmployeeID  string
	WorkDayIDs  []string
	Amount      decimal.Decimal
	PaymentType PaymentType
	Notes       string // included on the payment only if non-empty
	Date        *Date  // defaults to today
}

// CreatePaymentAndMark marks every referenced work record paid, then
// creates the payment record claiming them.
//
// Preconditions: WorkDayIDs non-empty; every referenced record exists,
// belongs to the employee, and has worked == true. Violations fail with
// a ValidationError listing the offending ids before anything is written.
//
// Failure semantics: if a mark write fails partway, every record
// already flipped is restored and the call fails with PartialWriteError.
// If the payment write fails, all marks are rolled back and the call
// fails with PaymentCreateError. If a rollback itself fails, the call
// fails with ManualInterventionError carrying the ids involved - the
// residual state is exactly what ValidateIntegrity looks for.
func (e *Engine) CreatePaymentAndMark(ctx context.Context, in CreatePaymentInput) (*PaymentRecord, error) {
	if len(in.WorkDayIDs) == 0 {
		return nil, &ValidationError{Message: "workDayIds must be non-empty"}
	}

	// Step 1: read current state and snapshot original paid values.
	// workDayIds is a set: a duplicated id would be stored on the payment
	// and skew every later per-day computation (shrink scaling, repair).
	originals := make([]WorkRecord, 0, len(in.WorkDayIDs))
	verr := &ValidationError{Duplicate: duplicateIDs(in.WorkDayIDs)}
	for _, id := range in.WorkDayIDs {
		rec, err := e.work.Get(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				verr.Missing = append(verr.Missing, id)
				continue
			}
			return nil, fmt.Errorf("reading work record %s: %w", id, err)
		}
		if rec.EmployeeID != in.EmployeeID {
			verr.WrongEmployee = append(verr.WrongEmployee, id)
			continue
		}
		if !rec.Worked {
			verr.NotWorked = append(verr.NotWorked, id)
			continue
		}
		originals = append(originals, *rec)
	}
	if len(verr.Missing) > 0 || len(verr.NotWorked) > 0 || len(verr.WrongEmployee) > 0 || len(verr.Duplicate) > 0 {
		return nil, verr
	}

	payment := e.buildPayment(in)

	// Steps 2-3 as a saga: one mark per work record, payment write last.
	var sg saga
	for _, orig := range originals {
		orig := orig
		marked := orig
		marked.Paid = true
		sg.add(orig.ID,
			func(ctx context.Context) error { return e.work.Put(ctx, marked) },
			func(ctx context.Context) error { return e.work.Put(ctx, orig) },
		)
	}
	sg.add("payment:"+payment.ID,
		func(ctx context.Context) error { return e.payments.Put(ctx, payment) },
		nil, // never compensated: it is the last step
	)

	if f := sg.run(ctx); f != nil {
		return nil, e.mapCreateFailure(in.WorkDayIDs, payment.ID, f)
	}
	return &payment, nil
}

func (e *Engine) buildPayment(in CreatePaymentInput) PaymentRecord {
	date := DateOf(e.now())
	if in.Date != nil {
		date = *in.Date
	}
	ids := make([]string, len(in.WorkDayIDs))
	copy(ids, in.WorkDayIDs)
	return PaymentRecord{
		ID:          e.newID(),
		EmployeeID:  in.EmployeeID,
		WorkDayIDs:  ids,
		Amount:      in.Amount,
		PaymentType: in.PaymentType,
		Date:        date,
		Notes:       in.Notes,
		CreatedAt:   e.now().UTC(),
	}
}

// duplicateIDs returns each id that appears more than once, once,
// in first-seen order.
func duplicateIDs(ids []string) []string {
	seen := make(map[string]int, len(ids))
	var dups []string
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}
	}
	return dups
}

// dedupeIDs drops repeated ids, preserving first-seen order.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// mapCreateFailure turns a saga failure into the public taxonomy. A
// rollback failure always wins: residual inconsistency is the one thing
// that must never be reported as anything milder.
func (e *Engine) mapCreateFailure(workDayIDs []string, paymentID string, f *sagaFailure) error {
	if !f.fullyCompensated() {
		return &ManualInterventionError{
			WorkDayIDs:   workDayIDs,
			RolledBack:   f.compensated,
			Cause:        f.cause,
			RollbackErrs: f.compErrs,
		}
	}
	if f.failedLabel == "payment:"+paymentID {
		return &PaymentCreateError{WorkDayIDs: workDayIDs, Cause: f.cause}
	}
	return &PartialWriteError{
		Completed:  f.completed,
		RolledBack: f.compensated,
		Cause:      f.cause,
	}
}
