package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workday-ledger/ledger"
	"github.com/warp/workday-ledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testStores struct {
	work     *store.MemoryWorkRecords
	flaky    *store.FlakyWorkRecords
	payments *store.MemoryPayments
	flakyPay *store.FlakyPayments
}

// newTestEngine wires an engine over in-memory stores with fault
// injectors in front of both, a fixed clock, and sequential ids.
func newTestEngine(t *testing.T) (*ledger.Engine, *testStores) {
	t.Helper()

	st := &testStores{
		work:     store.NewMemoryWorkRecords(),
		payments: store.NewMemoryPayments(),
	}
	st.flaky = store.NewFlakyWorkRecords(st.work)
	st.flakyPay = store.NewFlakyPayments(st.payments)

	seq := 0
	engine := ledger.NewEngine(st.flaky, st.flakyPay,
		ledger.WithClock(func() time.Time {
			return time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)
		}),
		ledger.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("pay-%d", seq)
		}),
	)
	return engine, st
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func workedDay(id, employeeID string, date ledger.Date) ledger.WorkRecord {
	return ledger.WorkRecord{
		ID:         id,
		EmployeeID: employeeID,
		Date:       date,
		Worked:     true,
	}
}

func seedDays(t *testing.T, st *testStores, recs ...ledger.WorkRecord) {
	t.Helper()
	ctx := context.Background()
	for _, rec := range recs {
		require.NoError(t, st.work.Put(ctx, rec))
	}
}

func mustGetDay(t *testing.T, st *testStores, id string) ledger.WorkRecord {
	t.Helper()
	rec, err := st.work.Get(context.Background(), id)
	require.NoError(t, err)
	return *rec
}

func paymentInput(employeeID string, amount string, dayIDs ...string) ledger.CreatePaymentInput {
	return ledger.CreatePaymentInput{
		EmployeeID:  employeeID,
		WorkDayIDs:  dayIDs,
		Amount:      dec(amount),
		PaymentType: ledger.PaymentCash,
	}
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestCreatePaymentAndMark_MarksDaysAndStoresPayment(t *testing.T) {
	// GIVEN: Three worked, unpaid days for emp-1
	// WHEN: Creating a 150.00 cash payment covering all three
	// THEN: Every day is paid, the payment claims all three, and the
	//       ledger passes the integrity scan

	engine, st := newTestEngine(t)
	ctx := context.Background()

	june1 := ledger.NewDate(2025, time.June, 1)
	seedDays(t, st,
		workedDay("d1", "emp-1", june1),
		workedDay("d2", "emp-1", june1.AddDays(1)),
		workedDay("d3", "emp-1", june1.AddDays(2)),
	)

	payment, err := engine.CreatePaymentAndMark(ctx, paymentInput("emp-1", "150.00", "d1", "d2", "d3"))
	require.NoError(t, err)
	require.NotNil(t, payment)

	assert.Equal(t, "pay-1", payment.ID)
	assert.Equal(t, "emp-1", payment.EmployeeID)
	assert.Equal(t, []string{"d1", "d2", "d3"}, payment.WorkDayIDs)
	assert.True(t, payment.Amount.Equal(dec("150.00")))
	assert.Equal(t, ledger.PaymentCash, payment.PaymentType)
	assert.Equal(t, time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC), payment.CreatedAt)
	assert.Equal(t, "2025-06-15", payment.Date.String(), "date defaults to the clock's today")

	for _, id := range []string{"d1", "d2", "d3"} {
		assert.True(t, mustGetDay(t, st, id).Paid, "day %s should be paid", id)
	}

	stored, err := st.payments.Get(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.WorkDayIDs, stored.WorkDayIDs)

	report, err := engine.ValidateIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.IsValid)
}

func TestCreatePaymentAndMark_ExplicitDateAndNotes(t *testing.T) {
	engine, st := newTestEngine(t)
	ctx := context.Background()

	seedDays(t, st, workedDay("d1", "emp-1", ledger.NewDate(2025, time.May, 5)))

	date := ledger.NewDate(2025, time.May, 31)
	in := paymentInput("emp-1", "50", "d1")
	in.Date = &date
	in.Notes = "May wages"

	payment, err := engine.CreatePaymentAndMark(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "2025-05-31", payment.Date.String())
	assert.Equal(t, "May wages", payment.Notes)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestCreatePaymentAndMark_EmptyDayList_Rejected(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.CreatePaymentAndMark(context.Background(), paymentInput("emp-1", "50"))
	assert.ErrorIs(t, err, ledger.ErrValidation)
	assert.True(t, ledger.IsClientError(err))
}

func TestCreatePaymentAndMark_InvalidDays_RejectedBeforeAnyWrite(t *testing.T) {
	// GIVEN: One worked day, one unworked day, one unknown id, one day
	//        belonging to someone else
	// WHEN: Paying for all four
	// THEN: Rejected with every offender listed, and nothing was written

	engine, st := newTestEngine(t)
	ctx := context.Background()

	notWorked := workedDay("d-future", "emp-1", ledger.NewDate(2025, time.July, 1))
	notWorked.Worked = false
	seedDays(t, st,
		workedDay("d-ok", "emp-1", ledger.NewDate(2025, time.June, 1)),
		notWorked,
		workedDay("d-other", "emp-2", ledger.NewDate(2025, time.June, 1)),
	)

	_, err := engine.CreatePaymentAndMark(ctx, paymentInput("emp-1", "200", "d-ok", "d-future", "d-ghost", "d-other"))

	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"d-ghost"}, verr.Missing)
	assert.Equal(t, []string{"d-future"}, verr.NotWorked)
	assert.Equal(t, []string{"d-other"}, verr.WrongEmployee)

	assert.False(t, mustGetDay(t, st, "d-ok").Paid, "valid day must not be marked when the batch fails validation")
	payments, err := st.payments.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestCreatePaymentAndMark_DuplicateDayIDs_Rejected(t *testing.T) {
	// GIVEN: A request listing the same worked day twice
	// WHEN: Creating the payment
	// THEN: Rejected naming the duplicate, nothing written - workDayIds
	//       is a set, and a stored duplicate would skew every per-day
	//       computation downstream (shrink scaling, repair)

	engine, st := newTestEngine(t)
	ctx := context.Background()

	seedDays(t, st,
		workedDay("d1", "emp-1", ledger.NewDate(2025, time.June, 1)),
		workedDay("d2", "emp-1", ledger.NewDate(2025, time.June, 2)),
	)

	_, err := engine.CreatePaymentAndMark(ctx, paymentInput("emp-1", "150", "d1", "d1", "d2"))

	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"d1"}, verr.Duplicate)

	assert.False(t, mustGetDay(t, st, "d1").Paid)
	assert.False(t, mustGetDay(t, st, "d2").Paid)
	payments, err := st.payments.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

// =============================================================================
// FAILURE AND ROLLBACK
// =============================================================================

func TestCreatePaymentAndMark_PaymentWriteFails_MarksRolledBack(t *testing.T) {
	// GIVEN: Two days, one of them already paid by an earlier payment
	// WHEN: The payment record write fails after both marks succeed
	// THEN: PaymentCreateError, and each day's paid flag is back to its
	//       exact pre-call value

	engine, st := newTestEngine(t)
	ctx := context.Background()

	alreadyPaid := workedDay("d-paid", "emp-1", ledger.NewDate(2025, time.June, 2))
	alreadyPaid.Paid = true
	seedDays(t, st,
		workedDay("d-new", "emp-1", ledger.NewDate(2025, time.June, 1)),
		alreadyPaid,
	)

	boom := errors.New("disk full")
	st.flakyPay.FailPuts(boom)

	_, err := engine.CreatePaymentAndMark(ctx, paymentInput("emp-1", "100", "d-new", "d-paid"))

	var perr *ledger.PaymentCreateError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, ledger.ErrPaymentCreate)
	assert.ErrorIs(t, perr.Cause, boom)
	assert.Equal(t, []string{"d-new", "d-paid"}, perr.WorkDayIDs)

	assert.False(t, mustGetDay(t, st, "d-new").Paid, "mark must be rolled back")
	assert.True(t, mustGetDay(t, st, "d-paid").Paid, "pre-existing paid flag must be restored, not cleared")

	payments, err := st.payments.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments, "no payment record may survive a failed create")
}

func TestCreatePaymentAndMark_MarkFailsMidway_CompletedMarksRolledBack(t *testing.T) {
	// GIVEN: Three days; the second mark write fails (transiently)
	// WHEN: Creating the payment
	// THEN: PartialWriteError naming the completed step, first day's
	//       flag restored, no payment written

	engine, st := newTestEngine(t)
	ctx := context.Background()

	june1 := ledger.NewDate(2025, time.June, 1)
	seedDays(t, st,
		workedDay("d1", "emp-1", june1),
		workedDay("d2", "emp-1", june1.AddDays(1)),
		workedDay("d3", "emp-1", june1.AddDays(2)),
	)

	boom := errors.New("connection reset")
	st.flaky.FailOnce(1, boom) // first Put succeeds, second fails, rollback Puts succeed

	_, err := engine.CreatePaymentAndMark(ctx, paymentInput("emp-1", "150", "d1", "d2", "d3"))

	var pwerr *ledger.PartialWriteError
	require.ErrorAs(t, err, &pwerr)
	assert.Equal(t, []string{"d1"}, pwerr.Completed)
	assert.Equal(t, []string{"d1"}, pwerr.RolledBack)
	assert.ErrorIs(t, pwerr.Cause, boom)
	assert.True(t, ledger.IsConflict(err))

	for _, id := range []string{"d1", "d2", "d3"} {
		assert.False(t, mustGetDay(t, st, id).Paid, "day %s must be unpaid after rollback", id)
	}
	payments, err := st.payments.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestCreatePaymentAndMark_RollbackFails_ManualIntervention(t *testing.T) {
	// GIVEN: The work record store starts failing after the first write
	//        and stays down, so the rollback write fails too
	// WHEN: Creating a payment over two days
	// THEN: ManualInterventionError carrying the full context, and the
	//       residual inconsistency is visible to the integrity scan

	engine, st := newTestEngine(t)
	ctx := context.Background()

	seedDays(t, st,
		workedDay("d1", "emp-1", ledger.NewDate(2025, time.June, 1)),
		workedDay("d2", "emp-1", ledger.NewDate(2025, time.June, 2)),
	)

	boom := errors.New("store unavailable")
	st.flaky.FailFrom(1, boom) // d1 marks, d2 fails, rollback of d1 fails too

	_, err := engine.CreatePaymentAndMark(ctx, paymentInput("emp-1", "100", "d1", "d2"))

	var merr *ledger.ManualInterventionError
	require.ErrorAs(t, err, &merr)
	assert.ErrorIs(t, err, ledger.ErrManualIntervention)
	assert.Equal(t, []string{"d1", "d2"}, merr.WorkDayIDs)
	assert.Empty(t, merr.RolledBack)
	assert.ErrorIs(t, merr.Cause, boom)
	require.Len(t, merr.RollbackErrs, 1)

	// d1 is stuck paid=true with no payment claiming it.
	st.flaky.Disarm()
	assert.True(t, mustGetDay(t, st, "d1").Paid)

	report, err := engine.ValidateIntegrity(ctx)
	require.NoError(t, err)
	assert.False(t, report.IsValid)
	assert.Equal(t, []string{"d1"}, report.OrphanedWorkDays)
}

func TestCreatePaymentAndMark_RollbackFailureOutranksPaymentFailure(t *testing.T) {
	// GIVEN: The payment write fails AND the rollback write fails
	// WHEN: Creating a payment
	// THEN: ManualInterventionError wins over PaymentCreateError; the
	//       residual state must never be reported as cleanly rolled back

	engine, st := newTestEngine(t)
	ctx := context.Background()

	seedDays(t, st, workedDay("d1", "emp-1", ledger.NewDate(2025, time.June, 1)))

	st.flakyPay.FailPuts(errors.New("payment store down"))
	st.flaky.FailFrom(1, errors.New("work store down")) // mark succeeds, rollback fails

	_, err := engine.CreatePaymentAndMark(ctx, paymentInput("emp-1", "50", "d1"))
	assert.ErrorIs(t, err, ledger.ErrManualIntervention)
	assert.NotErrorIs(t, err, ledger.ErrPaymentCreate)
}
