package ledger

import "github.com/shopspring/decimal"

// =============================================================================
// WAGE RESOLVER - What is one day of work worth?
// =============================================================================

// ResolveAmount returns the pay amount that applies to a single work
// record. Pure function, no failure modes.
//
// Precedence:
//  1. The record's own CustomAmount, when set.
//  2. The employee's PreviousWage, when the day predates WageChangeDate.
//  3. The employee's current DailyWage.
func ResolveAmount(emp Employee, rec WorkRecord) decimal.Decimal {
	if rec.CustomAmount != nil {
		return *rec.CustomAmount
	}
	if emp.WageChangeDate != nil && emp.PreviousWage != nil && rec.Date.Before(*emp.WageChangeDate) {
		return *emp.PreviousWage
	}
	return emp.DailyWage
}

// ResolveTotal sums ResolveAmount over a set of work records.
func ResolveTotal(emp Employee, recs []WorkRecord) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range recs {
		total = total.Add(ResolveAmount(emp, rec))
	}
	return total
}
