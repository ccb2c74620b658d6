package ledger

import (
	"testing"
	"time"

	"registro/internal/core"
)

func TestTrendTotalsMonthly(t *testing.T) {
	l, groceries, salary := newTestLedger(t)
	l.RecordTransaction(core.NewDate(2024, 1, 10), -4200, groceries.ID, 0, "")
	l.RecordTransaction(core.NewDate(2024, 1, 15), 10000, salary.ID, 0, "")
	l.RecordTransaction(core.NewDate(2024, 3, 5), -300, groceries.ID, 0, "")

	buckets := l.TrendTotals(core.NewDate(2024, 1, 1), core.NewDate(2024, 3, 31), GranularityMonth)
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d: %+v", len(buckets), buckets)
	}
	if buckets[0].Label != "2024-01" || buckets[0].IncomeCents != 10000 || buckets[0].ExpenseCents != -4200 {
		t.Fatalf("january bucket wrong: %+v", buckets[0])
	}
	// February has no transactions but still appears, zeroed.
	if buckets[1].Label != "2024-02" || buckets[1].IncomeCents != 0 || buckets[1].ExpenseCents != 0 {
		t.Fatalf("empty february not zero-filled: %+v", buckets[1])
	}
	if buckets[2].Label != "2024-03" || buckets[2].ExpenseCents != -300 {
		t.Fatalf("march bucket wrong: %+v", buckets[2])
	}
}

func TestTrendTotalsWeekLabels(t *testing.T) {
	l, groceries, _ := newTestLedger(t)
	// 2023-12-31 is a Sunday and still belongs to ISO week 2023-W52;
	// 2024-01-01 is a Monday and opens 2024-W01.
	l.RecordTransaction(core.NewDate(2023, 12, 31), -100, groceries.ID, 0, "")
	l.RecordTransaction(core.NewDate(2024, 1, 1), -200, groceries.ID, 0, "")

	buckets := l.TrendTotals(core.NewDate(2023, 12, 31), core.NewDate(2024, 1, 7), GranularityWeek)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d: %+v", len(buckets), buckets)
	}
	if buckets[0].Label != "2023-W52" || buckets[0].ExpenseCents != -100 {
		t.Fatalf("week across year boundary wrong: %+v", buckets[0])
	}
	if buckets[1].Label != "2024-W01" || buckets[1].ExpenseCents != -200 {
		t.Fatalf("first week of year wrong: %+v", buckets[1])
	}
}

func TestTrendTotalsDailyDefault(t *testing.T) {
	l, groceries, _ := newTestLedger(t)
	l.RecordTransaction(core.NewDate(2024, 1, 5), -100, groceries.ID, 0, "")

	buckets := l.TrendTotals(core.NewDate(2024, 1, 4), core.NewDate(2024, 1, 6), GranularityDay)
	if len(buckets) != 3 {
		t.Fatalf("expected one bucket per day, got %d", len(buckets))
	}
	if buckets[1].Label != "2024-01-05" || buckets[1].ExpenseCents != -100 {
		t.Fatalf("day bucket wrong: %+v", buckets[1])
	}
}

func TestTrendTotalsRejectsBadRange(t *testing.T) {
	l, _, _ := newTestLedger(t)
	if got := l.TrendTotals(core.Date{}, core.NewDate(2024, 1, 31), GranularityDay); got != nil {
		t.Fatalf("zero from: %+v", got)
	}
	if got := l.TrendTotals(core.NewDate(2024, 2, 1), core.NewDate(2024, 1, 1), GranularityDay); got != nil {
		t.Fatalf("inverted range: %+v", got)
	}
}

func TestMonthOverMonth(t *testing.T) {
	l, groceries, salary := newTestLedger(t)
	l.RecordTransaction(core.NewDate(2024, 1, 10), 100000, salary.ID, 0, "")
	l.RecordTransaction(core.NewDate(2024, 1, 12), -5000, groceries.ID, 0, "")
	l.RecordTransaction(core.NewDate(2024, 2, 10), 120000, salary.ID, 0, "")
	l.RecordTransaction(core.NewDate(2024, 2, 12), -4000, groceries.ID, 0, "")

	now := time.Date(2024, 2, 15, 12, 0, 0, 0, time.UTC)
	m := l.MonthOverMonth(now)
	if m.Current.IncomeCents != 120000 || m.Previous.IncomeCents != 100000 {
		t.Fatalf("income totals wrong: %+v", m)
	}
	if m.IncomeChangeCents != 20000 || m.IncomeChangePct != 20 {
		t.Fatalf("income change = %d cents %.1f%%, want 20000 cents 20.0%%", m.IncomeChangeCents, m.IncomeChangePct)
	}
	// Spending fell from -5000 to -4000: change is +1000, 20% of the
	// previous month's magnitude.
	if m.ExpenseChangeCents != 1000 || m.ExpenseChangePct != 20 {
		t.Fatalf("expense change = %d cents %.1f%%, want 1000 cents 20.0%%", m.ExpenseChangeCents, m.ExpenseChangePct)
	}
}

func TestMonthOverMonthEmptyPreviousMonth(t *testing.T) {
	l, groceries, _ := newTestLedger(t)
	l.RecordTransaction(core.NewDate(2024, 2, 10), -4000, groceries.ID, 0, "")

	m := l.MonthOverMonth(time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))
	if m.ExpenseChangeCents != -4000 {
		t.Fatalf("expense change = %d, want -4000", m.ExpenseChangeCents)
	}
	// Nothing to compare against: percentages stay zero.
	if m.IncomeChangePct != 0 || m.ExpenseChangePct != 0 {
		t.Fatalf("percentages with empty previous month: %+v", m)
	}
}
