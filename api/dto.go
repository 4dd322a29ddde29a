/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  Wire types between the HTTP surface and the ledger engine. Records
  (Employee, WorkRecord, PaymentRecord) are returned as-is: their JSON
  tags already carry the canonical stored field names (employeeId,
  workDayIds, customAmount, ...), so no parallel DTO layer is needed
  for them. Engine results get explicit DTOs because they mix records
  with flags and per-step failure detail.

VALIDATION:
  Request structs carry go-playground/validator tags; handlers.go runs
  them through a shared *validator.Validate before touching the engine.
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/workday-ledger/ledger"
)

// =============================================================================
// REQUESTS
// =============================================================================

// CreateEmployeeRequest creates or replaces an employee.
type CreateEmployeeRequest struct {
	ID             string           `json:"id" validate:"required"`
	Name           string           `json:"name"`
	DailyWage      decimal.Decimal  `json:"dailyWage"`
	PreviousWage   *decimal.Decimal `json:"previousWage,omitempty"`
	WageChangeDate *string          `json:"wageChangeDate,omitempty"` // YYYY-MM-DD
}

// CreateWorkRecordRequest logs or schedules one day. The paid flag is
// absent on purpose: paid only moves through the engine.
type CreateWorkRecordRequest struct {
	EmployeeID   string           `json:"employeeId" validate:"required"`
	Date         string           `json:"date" validate:"required"` // YYYY-MM-DD
	Worked       bool             `json:"worked"`
	CustomAmount *decimal.Decimal `json:"customAmount,omitempty"`
	Notes        string           `json:"notes,omitempty"`
}

// UpdateWorkRecordRequest mutates the caller-owned fields of a work
// record. Absent fields are left unchanged. Decoded with
// DisallowUnknownFields so a stray "paid" key is rejected outright.
// A JSON null for customAmount is indistinguishable from an absent
// key, so clearing the override takes the explicit flag.
type UpdateWorkRecordRequest struct {
	Worked            *bool            `json:"worked,omitempty"`
	CustomAmount      *decimal.Decimal `json:"customAmount,omitempty"`
	ClearCustomAmount bool             `json:"clearCustomAmount,omitempty"`
	Notes             *string          `json:"notes,omitempty"`
}

// UpdateEmployeeRequest mutates an existing employee; absent fields
// are left unchanged. The id comes from the URL.
type UpdateEmployeeRequest struct {
	Name           *string          `json:"name,omitempty"`
	DailyWage      *decimal.Decimal `json:"dailyWage,omitempty"`
	PreviousWage   *decimal.Decimal `json:"previousWage,omitempty"`
	WageChangeDate *string          `json:"wageChangeDate,omitempty"` // YYYY-MM-DD
}

// CreatePaymentRequest is the payload for CreatePaymentAndMark. When
// amount is omitted (or zero) the server resolves it: the sum of each
// day's wage per the employee's rates and any custom per-day amounts.
type CreatePaymentRequest struct {
	EmployeeID  string           `json:"employeeId" validate:"required"`
	WorkDayIDs  []string         `json:"workDayIds" validate:"required,min=1,dive,required"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	PaymentType string           `json:"paymentType" validate:"required,oneof=cash bank_transfer other"`
	Date        *string          `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
	Notes       string           `json:"notes,omitempty"`
}

// UnmarkRequest targets a set of work records for unmarking.
type UnmarkRequest struct {
	WorkDayIDs []string `json:"workDayIds" validate:"required,min=1,dive,required"`
}

// ForceUnmarkRequest is the confirmed unmark with its resolution policy.
type ForceUnmarkRequest struct {
	WorkDayIDs []string `json:"workDayIds" validate:"required,min=1,dive,required"`
	Resolution string   `json:"resolution" validate:"required,oneof=delete shrink"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// UnmarkResponse mirrors ledger.UnmarkResult for the wire.
type UnmarkResponse struct {
	Applied              bool                   `json:"applied"`
	RequiresConfirmation bool                   `json:"requiresConfirmation,omitempty"`
	AffectedPayments     []ledger.PaymentRecord `json:"affectedPayments,omitempty"`
	Message              string                 `json:"message,omitempty"`
}

// StepFailureDTO flattens a ledger.StepFailure for the wire.
type StepFailureDTO struct {
	Kind  string `json:"kind"`
	ID    string `json:"id"`
	Error string `json:"error"`
}

// ForceUnmarkResponse is the partial-results body of a force unmark.
type ForceUnmarkResponse struct {
	Ok                bool                   `json:"ok"`
	DeletedPaymentIDs []string               `json:"deletedPaymentIds,omitempty"`
	UpdatedPayments   []ledger.PaymentRecord `json:"updatedPayments,omitempty"`
	UnmarkedDayIDs    []string               `json:"unmarkedDayIds,omitempty"`
	Failures          []StepFailureDTO       `json:"failures,omitempty"`
	Advisories        []string               `json:"advisories,omitempty"`
}

// IntegrityResponse mirrors ledger.IntegrityReport.
type IntegrityResponse struct {
	IsValid             bool     `json:"isValid"`
	OrphanedWorkDays    []string `json:"orphanedWorkDays,omitempty"`
	OrphanedPayments    []string `json:"orphanedPayments,omitempty"`
	MultiplyClaimedDays []string `json:"multiplyClaimedDays,omitempty"`
	Issues              []string `json:"issues,omitempty"`
}

// RepairResponse lists the actions a repair took.
type RepairResponse struct {
	Actions []ledger.RepairAction `json:"repairActions"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"` // validation, partial_write, payment_create, manual_intervention, not_found, duplicate_day
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toForceUnmarkResponse(r *ledger.ForceUnmarkResult) ForceUnmarkResponse {
	resp := ForceUnmarkResponse{
		Ok:                r.Ok(),
		DeletedPaymentIDs: r.DeletedPaymentIDs,
		UpdatedPayments:   r.UpdatedPayments,
		UnmarkedDayIDs:    r.UnmarkedDayIDs,
		Advisories:        r.Advisories,
	}
	for _, f := range r.Failures {
		resp.Failures = append(resp.Failures, StepFailureDTO{
			Kind:  f.Kind,
			ID:    f.ID,
			Error: f.Err.Error(),
		})
	}
	return resp
}

func toIntegrityResponse(r *ledger.IntegrityReport) IntegrityResponse {
	return IntegrityResponse{
		IsValid:             r.IsValid,
		OrphanedWorkDays:    r.OrphanedWorkDays,
		OrphanedPayments:    r.OrphanedPayments,
		MultiplyClaimedDays: r.MultiplyClaimedDays,
		Issues:              r.Issues,
	}
}
