// Package billmath holds the pure proration and period arithmetic used by
// invoice and subscription-bill generation. Everything here is side-effect
// free so the money math can be tested without a database.
package billmath

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultProrationBasisDays is the day basis a monthly price is spread over
// when billing daily.
const DefaultProrationBasisDays = 30

// Prorate computes the charge for validityDays of service at the given
// monthly price: monthly / basis * days, rounded to 2 decimal places.
func Prorate(monthlyPrice decimal.Decimal, basisDays, validityDays int) decimal.Decimal {
	if basisDays <= 0 {
		basisDays = DefaultProrationBasisDays
	}
	days := decimal.NewFromInt(int64(validityDays))
	basis := decimal.NewFromInt(int64(basisDays))
	return monthlyPrice.Div(basis).Mul(days).Round(2)
}

// MonthlyPeriod returns the inclusive billing period covering one calendar
// month from the anchor date.
func MonthlyPeriod(anchor time.Time) (start, end time.Time) {
	start = truncateToDay(anchor)
	end = start.AddDate(0, 1, 0).AddDate(0, 0, -1)
	return start, end
}

// DailyPeriod returns the inclusive billing period covering validityDays
// starting at the given date. A 7-day period starting on the 1st ends on
// the 7th.
func DailyPeriod(anchor time.Time, validityDays int) (start, end time.Time) {
	start = truncateToDay(anchor)
	end = start.AddDate(0, 0, validityDays-1)
	return start, end
}

// DueDate adds the grace period to the billing period end.
func DueDate(periodEnd time.Time, graceDays int) time.Time {
	return periodEnd.AddDate(0, 0, graceDays)
}

// Total computes the fixed invoice total: amount + tax - discount.
func Total(amount, tax, discount decimal.Decimal) decimal.Decimal {
	return amount.Add(tax).Sub(discount)
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
