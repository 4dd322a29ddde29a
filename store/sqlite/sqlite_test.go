package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workday-ledger/ledger"
	"github.com/warp/workday-ledger/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// =============================================================================
// WORK RECORDS
// =============================================================================

func TestWorkRecords_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	custom := decimal.RequireFromString("75.50")
	rec := ledger.WorkRecord{
		ID:           "d1",
		EmployeeID:   "emp-1",
		Date:         ledger.NewDate(2025, time.June, 1),
		Worked:       true,
		Paid:         true,
		CustomAmount: &custom,
		Notes:        "overtime",
	}
	require.NoError(t, store.WorkRecords().Put(ctx, rec))

	got, err := store.WorkRecords().Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.EmployeeID, got.EmployeeID)
	assert.True(t, got.Date.Equal(rec.Date))
	assert.True(t, got.Worked)
	assert.True(t, got.Paid)
	require.NotNil(t, got.CustomAmount)
	assert.True(t, got.CustomAmount.Equal(custom))
	assert.Equal(t, "overtime", got.Notes)
}

func TestWorkRecords_PutIsUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := ledger.WorkRecord{ID: "d1", EmployeeID: "emp-1", Date: ledger.NewDate(2025, time.June, 1), Worked: true}
	require.NoError(t, store.WorkRecords().Put(ctx, rec))

	rec.Paid = true
	require.NoError(t, store.WorkRecords().Put(ctx, rec), "re-writing the same id updates in place")

	got, err := store.WorkRecords().Get(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, got.Paid)
}

func TestWorkRecords_GetUnknown_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.WorkRecords().Get(context.Background(), "d-ghost")
	assert.True(t, ledger.IsNotFound(err))
}

func TestWorkRecords_DuplicateEmployeeDay_Rejected(t *testing.T) {
	// GIVEN: emp-1 already has a record on June 1
	// WHEN: Writing a second record (different id) for the same day
	// THEN: Rejected with ErrDuplicateDay

	store := newTestStore(t)
	ctx := context.Background()

	june1 := ledger.NewDate(2025, time.June, 1)
	require.NoError(t, store.WorkRecords().Put(ctx, ledger.WorkRecord{ID: "d1", EmployeeID: "emp-1", Date: june1, Worked: true}))

	err := store.WorkRecords().Put(ctx, ledger.WorkRecord{ID: "d2", EmployeeID: "emp-1", Date: june1, Worked: true})
	assert.ErrorIs(t, err, ledger.ErrDuplicateDay)
	assert.True(t, ledger.IsClientError(err))

	// A different employee on the same day is fine.
	assert.NoError(t, store.WorkRecords().Put(ctx, ledger.WorkRecord{ID: "d3", EmployeeID: "emp-2", Date: june1, Worked: true}))
}

func TestWorkRecords_ListByEmployee_RangeFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	june1 := ledger.NewDate(2025, time.June, 1)
	for i, id := range []string{"d1", "d2", "d3"} {
		require.NoError(t, store.WorkRecords().Put(ctx, ledger.WorkRecord{
			ID: id, EmployeeID: "emp-1", Date: june1.AddDays(i * 7), Worked: true,
		}))
	}
	require.NoError(t, store.WorkRecords().Put(ctx, ledger.WorkRecord{
		ID: "other", EmployeeID: "emp-2", Date: june1, Worked: true,
	}))

	got, err := store.WorkRecords().ListByEmployee(ctx, "emp-1", june1, june1.AddDays(10))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "d1", got[0].ID)
	assert.Equal(t, "d2", got[1].ID)
}

// =============================================================================
// PAYMENT RECORDS
// =============================================================================

func TestPayments_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := ledger.PaymentRecord{
		ID:          "pay-1",
		EmployeeID:  "emp-1",
		WorkDayIDs:  []string{"d1", "d2"},
		Amount:      decimal.RequireFromString("100.00"),
		PaymentType: ledger.PaymentBankTransfer,
		Date:        ledger.NewDate(2025, time.June, 15),
		Notes:       "June wages",
		CreatedAt:   time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Payments().Put(ctx, rec))

	got, err := store.Payments().Get(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, got.WorkDayIDs)
	assert.True(t, got.Amount.Equal(rec.Amount))
	assert.Equal(t, ledger.PaymentBankTransfer, got.PaymentType)
	assert.Equal(t, "2025-06-15", got.Date.String())
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
}

func TestPayments_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := ledger.PaymentRecord{
		ID: "pay-1", EmployeeID: "emp-1", WorkDayIDs: []string{"d1"},
		Amount: decimal.RequireFromString("50"), PaymentType: ledger.PaymentCash,
		Date: ledger.NewDate(2025, time.June, 15), CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Payments().Put(ctx, rec))
	require.NoError(t, store.Payments().Delete(ctx, "pay-1"))

	_, err := store.Payments().Get(ctx, "pay-1")
	assert.True(t, ledger.IsNotFound(err))
}

func TestPayments_DeleteUnknown_NotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.Payments().Delete(context.Background(), "pay-ghost")
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestEmployees_RoundTripWithWageHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	prev := decimal.RequireFromString("40")
	change := ledger.NewDate(2025, time.June, 1)
	emp := ledger.Employee{
		ID:             "emp-1",
		Name:           "Ana",
		DailyWage:      decimal.RequireFromString("50"),
		PreviousWage:   &prev,
		WageChangeDate: &change,
	}
	require.NoError(t, store.Employees().Put(ctx, emp))

	got, err := store.Employees().Get(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.True(t, got.DailyWage.Equal(emp.DailyWage))
	require.NotNil(t, got.PreviousWage)
	assert.True(t, got.PreviousWage.Equal(prev))
	require.NotNil(t, got.WageChangeDate)
	assert.True(t, got.WageChangeDate.Equal(change))
}

// =============================================================================
// ENGINE OVER SQLITE
// =============================================================================

func TestEngine_CreatePaymentAndMark_OverSQLite(t *testing.T) {
	// The engine's contract holds identically over the persistent store.

	store := newTestStore(t)
	ctx := context.Background()

	engine := ledger.NewEngine(store.WorkRecords(), store.Payments())

	june1 := ledger.NewDate(2025, time.June, 1)
	require.NoError(t, store.WorkRecords().Put(ctx, ledger.WorkRecord{ID: "d1", EmployeeID: "emp-1", Date: june1, Worked: true}))
	require.NoError(t, store.WorkRecords().Put(ctx, ledger.WorkRecord{ID: "d2", EmployeeID: "emp-1", Date: june1.AddDays(1), Worked: true}))

	payment, err := engine.CreatePaymentAndMark(ctx, ledger.CreatePaymentInput{
		EmployeeID:  "emp-1",
		WorkDayIDs:  []string{"d1", "d2"},
		Amount:      decimal.RequireFromString("100"),
		PaymentType: ledger.PaymentCash,
	})
	require.NoError(t, err)

	for _, id := range []string{"d1", "d2"} {
		got, err := store.WorkRecords().Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Paid)
	}

	report, err := engine.ValidateIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.IsValid)

	res, err := engine.ForceUnmarkAsPaid(ctx, []string{"d2"}, ledger.ResolutionShrink)
	require.NoError(t, err)
	require.True(t, res.Ok())

	got, err := store.Payments().Get(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, got.WorkDayIDs)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("50")))
}
