/*
handlers.go - HTTP handlers over the ledger engine

PURPOSE:
  Exposes the ledger engine and the three record collections via REST.
  Handles HTTP request/response, JSON serialization and validation, and
  delegates every cross-record decision to the engine - no handler ever
  writes a paid flag or a payment record directly.

ENDPOINTS:
  Employees:
    GET    /api/employees                     List employees
    POST   /api/employees                     Create/replace employee
    GET    /api/employees/{id}                Get employee
    PUT    /api/employees/{id}                Update name/wage data
    GET    /api/employees/{id}/work-records   Work records in a date range

  Work records:
    POST   /api/work-records                  Log/schedule a day
    GET    /api/work-records/{id}             Get one record
    PUT    /api/work-records/{id}             Update worked/customAmount/notes

  Payments (the engine's surface):
    GET    /api/payments                      List payments (?employeeId=)
    GET    /api/payments/{id}                 Get one payment
    POST   /api/payments                      CreatePaymentAndMark
    POST   /api/payments/unmark               Guarded unmark
    POST   /api/payments/force-unmark         Confirmed unmark + resolution

  Integrity:
    GET    /api/integrity                     ValidateIntegrity
    POST   /api/integrity/repair              RepairIntegrity

ERROR HANDLING:
  Engine errors map onto statuses by kind, never by message text:
  - 400 validation        - 404 not_found
  - 409 partial_write / payment_create / duplicate_day
  - 500 manual_intervention (logged in full) and everything else
  A guarded unmark that needs consent is a 200 with
  requiresConfirmation=true, not an error.

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: router and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/workday-ledger/ledger"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *ledger.Engine
	Work      ledger.WorkRecordStore
	Payments  ledger.PaymentRecordStore
	Employees ledger.EmployeeStore

	validate *validator.Validate
	newID    func() string
}

// NewHandler wires the handler. The engine must be built over the same
// two record stores.
func NewHandler(engine *ledger.Engine, work ledger.WorkRecordStore, payments ledger.PaymentRecordStore, employees ledger.EmployeeStore) *Handler {
	return &Handler{
		Engine:    engine,
		Work:      work,
		Payments:  payments,
		Employees: employees,
		validate:  validator.New(),
		newID:     uuid.NewString,
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Employees.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}
	writeJSON(w, http.StatusOK, employees)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Employees.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// CreateEmployee creates or replaces an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	emp := ledger.Employee{
		ID:           req.ID,
		Name:         req.Name,
		DailyWage:    req.DailyWage,
		PreviousWage: req.PreviousWage,
	}
	if req.WageChangeDate != nil {
		d, err := ledger.ParseDate(*req.WageChangeDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid wageChangeDate", err)
			return
		}
		emp.WageChangeDate = &d
	}

	if err := h.Employees.Put(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, emp)
}

// UpdateEmployee mutates an existing employee's wage data and name.
func (h *Handler) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Employees.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	var req UpdateEmployeeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if req.Name != nil {
		emp.Name = *req.Name
	}
	if req.DailyWage != nil {
		emp.DailyWage = *req.DailyWage
	}
	if req.PreviousWage != nil {
		emp.PreviousWage = req.PreviousWage
	}
	if req.WageChangeDate != nil {
		d, err := ledger.ParseDate(*req.WageChangeDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid wageChangeDate", err)
			return
		}
		emp.WageChangeDate = &d
	}

	if err := h.Employees.Put(r.Context(), *emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusOK, emp)
}

// workRangeLister is an optional store capability. The sqlite store
// implements it; other stores fall back to filtering ListAll.
type workRangeLister interface {
	ListByEmployee(ctx context.Context, employeeID string, from, to ledger.Date) ([]ledger.WorkRecord, error)
}

// ListEmployeeWorkRecords returns an employee's work records; from/to
// query params (YYYY-MM-DD) bound the range when present.
func (h *Handler) ListEmployeeWorkRecords(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	from, to, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}

	if rl, ok := h.Work.(workRangeLister); ok && !from.IsZero() && !to.IsZero() {
		records, err := rl.ListByEmployee(r.Context(), employeeID, from, to)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list work records", err)
			return
		}
		writeJSON(w, http.StatusOK, records)
		return
	}

	all, err := h.Work.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list work records", err)
		return
	}

	var records []ledger.WorkRecord
	for _, rec := range all {
		if rec.EmployeeID != employeeID {
			continue
		}
		if !from.IsZero() && rec.Date.Before(from) {
			continue
		}
		if !to.IsZero() && rec.Date.After(to) {
			continue
		}
		records = append(records, rec)
	}
	writeJSON(w, http.StatusOK, records)
}

// =============================================================================
// WORK RECORD HANDLERS
// =============================================================================

// CreateWorkRecord logs or schedules a single day. The paid flag always
// starts false; it only moves through the payment operations.
func (h *Handler) CreateWorkRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkRecordRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	date, err := ledger.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	rec := ledger.WorkRecord{
		ID:           h.newID(),
		EmployeeID:   req.EmployeeID,
		Date:         date,
		Worked:       req.Worked,
		CustomAmount: req.CustomAmount,
		Notes:        req.Notes,
	}
	if err := h.Work.Put(r.Context(), rec); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GetWorkRecord returns a single work record.
func (h *Handler) GetWorkRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Work.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateWorkRecord mutates the caller-owned fields of a record. Unknown
// keys (notably "paid") are rejected by the strict decoder.
func (h *Handler) UpdateWorkRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Work.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var req UpdateWorkRecordRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body (paid is not directly editable)", err)
		return
	}

	if req.Worked != nil {
		rec.Worked = *req.Worked
	}
	switch {
	case req.ClearCustomAmount:
		rec.CustomAmount = nil
	case req.CustomAmount != nil:
		rec.CustomAmount = req.CustomAmount
	}
	if req.Notes != nil {
		rec.Notes = *req.Notes
	}

	if err := h.Work.Put(r.Context(), *rec); err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// =============================================================================
// PAYMENT HANDLERS (the engine's five operations)
// =============================================================================

// ListPayments returns payments, optionally filtered by employee.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Payments.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}

	if employeeID := r.URL.Query().Get("employeeId"); employeeID != "" {
		filtered := payments[:0]
		for _, p := range payments {
			if p.EmployeeID == employeeID {
				filtered = append(filtered, p)
			}
		}
		payments = filtered
	}
	writeJSON(w, http.StatusOK, payments)
}

// GetPayment returns a single payment record.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreatePayment runs CreatePaymentAndMark. An omitted amount is
// resolved server-side from the employee's wage rates.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	in := ledger.CreatePaymentInput{
		EmployeeID:  req.EmployeeID,
		WorkDayIDs:  req.WorkDayIDs,
		PaymentType: ledger.PaymentType(req.PaymentType),
		Notes:       req.Notes,
	}
	if req.Date != nil {
		d, err := ledger.ParseDate(*req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		in.Date = &d
	}

	if req.Amount != nil && !req.Amount.IsZero() {
		in.Amount = *req.Amount
	} else {
		amount, err := h.resolveAmount(r, req.EmployeeID, req.WorkDayIDs)
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		in.Amount = amount
	}

	payment, err := h.Engine.CreatePaymentAndMark(r.Context(), in)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (h *Handler) resolveAmount(r *http.Request, employeeID string, workDayIDs []string) (decimal.Decimal, error) {
	emp, err := h.Employees.Get(r.Context(), employeeID)
	if err != nil {
		return decimal.Zero, err
	}
	var records []ledger.WorkRecord
	for _, id := range workDayIDs {
		rec, err := h.Work.Get(r.Context(), id)
		if err != nil {
			return decimal.Zero, err
		}
		records = append(records, *rec)
	}
	return ledger.ResolveTotal(*emp, records), nil
}

// UnmarkPayments runs the guarded unmark.
func (h *Handler) UnmarkPayments(w http.ResponseWriter, r *http.Request) {
	var req UnmarkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.Engine.UnmarkAsPaid(r.Context(), req.WorkDayIDs)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UnmarkResponse{
		Applied:              res.Applied,
		RequiresConfirmation: res.RequiresConfirmation,
		AffectedPayments:     res.AffectedPayments,
		Message:              res.Message,
	})
}

// ForceUnmarkPayments runs the confirmed unmark. Partial failures stay
// in the 200 body; the caller inspects ok/failures.
func (h *Handler) ForceUnmarkPayments(w http.ResponseWriter, r *http.Request) {
	var req ForceUnmarkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.Engine.ForceUnmarkAsPaid(r.Context(), req.WorkDayIDs, ledger.ResolutionPolicy(req.Resolution))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if !res.Ok() {
		for _, f := range res.Failures {
			log.Printf("force-unmark partial failure: %s", f)
		}
	}
	writeJSON(w, http.StatusOK, toForceUnmarkResponse(res))
}

// =============================================================================
// INTEGRITY HANDLERS
// =============================================================================

// GetIntegrity runs the full scan.
func (h *Handler) GetIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.Engine.ValidateIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Integrity scan failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toIntegrityResponse(report))
}

// RepairIntegrity applies the asymmetric repair and logs every action.
func (h *Handler) RepairIntegrity(w http.ResponseWriter, r *http.Request) {
	result, err := h.Engine.RepairIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Repair failed", err)
		return
	}
	for _, a := range result.Actions {
		log.Printf("repair: %s work_day=%s payment=%s %s", a.Action, a.WorkDayID, a.PaymentID, a.Detail)
	}
	writeJSON(w, http.StatusOK, RepairResponse{Actions: result.Actions})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fmt.Sprintf("failed %q validation", fe.Tag())
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: "Validation failed", Kind: "validation", Details: details,
			})
			return false
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "validation"})
	case ledger.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Kind: "not_found"})
	case errors.Is(err, ledger.ErrDuplicateDay):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Kind: "duplicate_day"})
	case errors.Is(err, ledger.ErrPaymentCreate):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Kind: "payment_create"})
	case errors.Is(err, ledger.ErrPartialWrite):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Kind: "partial_write"})
	case errors.Is(err, ledger.ErrManualIntervention):
		// The one condition that must never be dropped: log in full.
		log.Printf("MANUAL INTERVENTION REQUIRED: %v", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Kind: "manual_intervention"})
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func parseRange(fromStr, toStr string) (from, to ledger.Date, err error) {
	if fromStr != "" {
		if from, err = ledger.ParseDate(fromStr); err != nil {
			return
		}
	}
	if toStr != "" {
		if to, err = ledger.ParseDate(toStr); err != nil {
			return
		}
	}
	return
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
