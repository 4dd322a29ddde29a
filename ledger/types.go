/*
Package ledger keeps two independently-stored facts in agreement: each
work record's paid flag, and the set of payment records that claim to
cover specific work records.

PURPOSE:
  The surrounding product is a work-day/payroll tracker. A calendar UI
  marks whether an employee worked on a given day and whether that day
  has been paid. The storage layer offers per-document writes only - no
  multi-document transactions, no locking - so the cross-record invariant
  "a day is either unpaid, or paid by exactly one payment" cannot be
  enforced by the store. This package maintains it procedurally.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee:      wage data the engine reads (owned by the caller)
  - WorkRecord:    one calendar day for one employee (worked/paid flags)
  - PaymentRecord: a payment claiming a set of work records
  - Date:          a calendar day (day granularity, UTC)

TARGET INVARIANT:
  WorkRecord.Paid == true  =>  exactly one current PaymentRecord lists
  that record's id in its WorkDayIDs. The engine's job is to detect and
  correct violations, not merely assume them true.

DESIGN PRINCIPLES:
  1. Precision: amounts are decimal.Decimal, never float64
  2. Compatibility: JSON field names match the stored document schema
     (id, employeeId, workDayIds, amount, paid, worked, customAmount,
     wageChangeDate, previousWage) and must not change
  3. Explicit dependencies: the engine takes its stores as arguments,
     no ambient store handle

SEE ALSO:
  - engine.go: the five engine operations
  - store.go: store interfaces the engine consumes
  - errors.go: error taxonomy
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// EMPLOYEE - Wage data (read-only from the engine's perspective)
// =============================================================================

// Employee carries the wage information the resolver needs. The engine
// never writes employees; they are owned by the caller.
//
// Wage history is a single point: at most one prior rate is remembered.
// Days before WageChangeDate resolve to PreviousWage, days on or after
// it resolve to DailyWage.
type Employee struct {
	ID             string           `json:"id"`
	Name           string           `json:"name,omitempty"`
	DailyWage      decimal.Decimal  `json:"dailyWage"`
	PreviousWage   *decimal.Decimal `json:"previousWage,omitempty"`
	WageChangeDate *Date            `json:"wageChangeDate,omitempty"`
}

// =============================================================================
// WORK RECORD - One employee, one calendar day
// =============================================================================

// WorkRecord is a single calendar day for a single employee. One record
// per employee per day.
//
// Worked distinguishes a logged/completed day from a merely scheduled
// future day. Paid is the flag this package exists to keep honest: it
// must only move through the engine, never through direct edits.
type WorkRecord struct {
	ID           string           `json:"id"`
	EmployeeID   string           `json:"employeeId"`
	Date         Date             `json:"date"`
	Worked       bool             `json:"worked"`
	Paid         bool             `json:"paid"`
	CustomAmount *decimal.Decimal `json:"customAmount,omitempty"`
	Notes        string           `json:"notes,omitempty"`
}

// =============================================================================
// PAYMENT RECORD - A payment claiming a set of work days
// =============================================================================

type PaymentType string

const (
	PaymentCash         PaymentType = "cash"
	PaymentBankTransfer PaymentType = "bank_transfer"
	PaymentOther        PaymentType = "other"
)

// PaymentRecord claims the work records listed in WorkDayIDs. The set is
// non-empty while the record exists; when a force-unmark shrinks it to
// empty the record is deleted instead.
//
// Amount should equal the sum of each covered day's resolved pay. After
// a Shrink resolution it is a proportional scale of the original total,
// which can drift from per-day re-resolution when custom amounts are
// present (see ForceUnmarkAsPaid).
type PaymentRecord struct {
	ID          string          `json:"id"`
	EmployeeID  string          `json:"employeeId"`
	WorkDayIDs  []string        `json:"workDayIds"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentType PaymentType     `json:"paymentType"`
	Date        Date            `json:"date"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Covers reports whether the payment claims the given work record id.
func (p PaymentRecord) Covers(workDayID string) bool {
	for _, id := range p.WorkDayIDs {
		if id == workDayID {
			return true
		}
	}
	return false
}

// CoversAny reports whether the payment claims any of the given ids.
func (p PaymentRecord) CoversAny(workDayIDs []string) bool {
	for _, id := range workDayIDs {
		if p.Covers(id) {
			return true
		}
	}
	return false
}
