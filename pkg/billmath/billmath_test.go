package billmath

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestProrateExactSevenDays(t *testing.T) {
	monthly := decimal.RequireFromString("300.00")
	got := Prorate(monthly, 30, 7)
	if !got.Equal(decimal.RequireFromString("70.00")) {
		t.Fatalf("expected 70.00, got %s", got)
	}
}

func TestProrateRoundsToTwoPlaces(t *testing.T) {
	monthly := decimal.RequireFromString("1000.00")
	got := Prorate(monthly, 30, 1)
	if !got.Equal(decimal.RequireFromString("33.33")) {
		t.Fatalf("expected 33.33, got %s", got)
	}
}

func TestProrateFullBasisEqualsMonthlyPrice(t *testing.T) {
	monthly := decimal.RequireFromString("499.99")
	got := Prorate(monthly, 30, 30)
	if !got.Equal(monthly) {
		t.Fatalf("expected %s, got %s", monthly, got)
	}
}

func TestMonthlyPeriod(t *testing.T) {
	anchor := time.Date(2025, 1, 15, 13, 45, 0, 0, time.UTC)
	start, end := MonthlyPeriod(anchor)
	if !start.Equal(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", start)
	}
	if !end.Equal(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %s", end)
	}
}

func TestDailyPeriodInclusive(t *testing.T) {
	anchor := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	start, end := DailyPeriod(anchor, 7)
	if !start.Equal(anchor) {
		t.Fatalf("unexpected start %s", start)
	}
	if !end.Equal(time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected period to end on day 7, got %s", end)
	}
}

func TestDueDateAddsGracePeriod(t *testing.T) {
	periodEnd := time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)
	due := DueDate(periodEnd, 7)
	if !due.Equal(time.Date(2025, 2, 21, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected due date 2025-02-21, got %s", due)
	}
}

func TestTotal(t *testing.T) {
	amount := decimal.RequireFromString("500.00")
	tax := decimal.RequireFromString("25.00")
	discount := decimal.RequireFromString("50.00")
	got := Total(amount, tax, discount)
	if !got.Equal(decimal.RequireFromString("475.00")) {
		t.Fatalf("expected 475.00, got %s", got)
	}
}
