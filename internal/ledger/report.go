package ledger

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"registro/internal/core"
)

// BalanceAsOf returns the signed sum of all committed transaction amounts
// dated on or before the given date. Insertion order never affects it.
func (l *Ledger) BalanceAsOf(date core.Date) int64 {
	var sum int64
	for _, t := range l.txs.byID {
		if !t.Deleted && t.Date.OnOrBefore(date) {
			sum += t.Amount.Cents
		}
	}
	return sum
}

// TotalsByCategory sums amounts per category over an inclusive date
// range. Categories with no matching transactions are absent.
func (l *Ledger) TotalsByCategory(from, to core.Date) map[int64]int64 {
	totals := make(map[int64]int64)
	for t := range l.Transactions(Filter{From: from, To: to}) {
		totals[t.CategoryID] += t.Amount.Cents
	}
	return totals
}

// CategoryReport is TotalsByCategory joined with category names, ordered
// by descending absolute amount for display.
func (l *Ledger) CategoryReport(from, to core.Date) []core.CategoryTotal {
	totals := l.TotalsByCategory(from, to)
	out := make([]core.CategoryTotal, 0, len(totals))
	for id, cents := range totals {
		ct := core.CategoryTotal{CategoryID: id, Cents: cents}
		if c, ok := l.cats.Get(id); ok {
			ct.Name = c.Name
		}
		out = append(out, ct)
	}
	slices.SortFunc(out, func(a, b core.CategoryTotal) int {
		if c := cmp.Compare(abs64(b.Cents), abs64(a.Cents)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Summarize splits a range's totals into income and expense by the kind
// of each transaction's category. Expense totals keep their sign.
func (l *Ledger) Summarize(from, to core.Date) core.PeriodSummary {
	var s core.PeriodSummary
	for t := range l.Transactions(Filter{From: from, To: to}) {
		c, ok := l.cats.Get(t.CategoryID)
		if ok && c.Kind == core.KindIncome {
			s.IncomeCents += t.Amount.Cents
		} else {
			s.ExpenseCents += t.Amount.Cents
		}
	}
	return s
}

// DailyTotals returns per-day income/expense pairs over a range, date
// ordered, for trend views. Days without transactions are skipped.
func (l *Ledger) DailyTotals(from, to core.Date) []core.DailyTotal {
	byDay := make(map[string]*core.DailyTotal)
	var order []string
	for t := range l.Transactions(Filter{From: from, To: to}) {
		key := t.Date.String()
		dt, ok := byDay[key]
		if !ok {
			dt = &core.DailyTotal{Date: t.Date}
			byDay[key] = dt
			order = append(order, key)
		}
		c, found := l.cats.Get(t.CategoryID)
		if found && c.Kind == core.KindIncome {
			dt.IncomeCents += t.Amount.Cents
		} else {
			dt.ExpenseCents += t.Amount.Cents
		}
	}
	// Transactions already arrive date-ordered, so order is sorted.
	out := make([]core.DailyTotal, 0, len(order))
	for _, key := range order {
		out = append(out, *byDay[key])
	}
	return out
}

// Granularity selects the bucket size of a trend series.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

func (g Granularity) Valid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityYear:
		return true
	}
	return false
}

// label names the bucket a date falls into. Weeks use the ISO week
// calendar, so a week key can carry a different year than the date.
func (g Granularity) label(d core.Date) string {
	switch g {
	case GranularityWeek:
		year, week := d.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case GranularityMonth:
		return d.Format("2006-01")
	case GranularityYear:
		return d.Format("2006")
	default:
		return d.String()
	}
}

// TrendTotals buckets income/expense pairs over an inclusive range at
// the given granularity. Buckets without transactions are emitted with
// zero totals so the series is continuous.
func (l *Ledger) TrendTotals(from, to core.Date, g Granularity) []core.PeriodTotal {
	if from.IsZero() || to.IsZero() || !from.OnOrBefore(to) {
		return nil
	}

	byLabel := make(map[string]*core.PeriodTotal)
	for t := range l.Transactions(Filter{From: from, To: to}) {
		key := g.label(t.Date)
		pt, ok := byLabel[key]
		if !ok {
			pt = &core.PeriodTotal{Label: key}
			byLabel[key] = pt
		}
		c, found := l.cats.Get(t.CategoryID)
		if found && c.Kind == core.KindIncome {
			pt.IncomeCents += t.Amount.Cents
		} else {
			pt.ExpenseCents += t.Amount.Cents
		}
	}

	// Walk the range day by day so every bucket appears exactly once,
	// in order, including empty ones.
	var out []core.PeriodTotal
	seen := make(map[string]bool)
	for d := from; d.OnOrBefore(to); d = (core.Date{Time: d.AddDate(0, 0, 1)}) {
		key := g.label(d)
		if seen[key] {
			continue
		}
		seen[key] = true
		if pt, ok := byLabel[key]; ok {
			out = append(out, *pt)
		} else {
			out = append(out, core.PeriodTotal{Label: key})
		}
	}
	return out
}

// MonthOverMonth summarizes the month containing now against the month
// before it.
func (l *Ledger) MonthOverMonth(now time.Time) core.MonthOverMonth {
	curFrom, curTo := MonthRange(now.Year(), int(now.Month()))
	prevFirst := curFrom.AddDate(0, -1, 0)
	prevFrom, prevTo := MonthRange(prevFirst.Year(), int(prevFirst.Month()))

	m := core.MonthOverMonth{
		Current:  l.Summarize(curFrom, curTo),
		Previous: l.Summarize(prevFrom, prevTo),
	}
	m.IncomeChangeCents = m.Current.IncomeCents - m.Previous.IncomeCents
	m.ExpenseChangeCents = m.Current.ExpenseCents - m.Previous.ExpenseCents
	if m.Previous.IncomeCents != 0 {
		m.IncomeChangePct = float64(m.IncomeChangeCents) / float64(abs64(m.Previous.IncomeCents)) * 100
	}
	if m.Previous.ExpenseCents != 0 {
		m.ExpenseChangePct = float64(m.ExpenseChangeCents) / float64(abs64(m.Previous.ExpenseCents)) * 100
	}
	return m
}

// MonthRange returns the inclusive first and last day of a month.
func MonthRange(year, month int) (core.Date, core.Date) {
	first := core.NewDate(year, month, 1)
	last := core.Date{Time: first.AddDate(0, 1, -1)}
	return first, last
}

// YearRange returns the inclusive first and last day of a year.
func YearRange(year int) (core.Date, core.Date) {
	return core.NewDate(year, 1, 1), core.NewDate(year, 12, 31)
}

// LastFullMonthsRange returns the range covering the n calendar months
// before the current one. The running month is excluded because it is
// not complete yet.
func LastFullMonthsRange(now time.Time, n int) (core.Date, core.Date) {
	firstOfCurrent := core.NewDate(now.Year(), int(now.Month()), 1)
	start := core.Date{Time: firstOfCurrent.AddDate(0, -n, 0)}
	end := core.Date{Time: firstOfCurrent.AddDate(0, 0, -1)}
	return start, end
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
