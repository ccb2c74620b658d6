package core

// CategoryTotal is an amount aggregated under one category.
type CategoryTotal struct {
	CategoryID int64
	Name       string
	Cents      int64
}

// PeriodSummary aggregates income and expense over a date range.
type PeriodSummary struct {
	IncomeCents  int64
	ExpenseCents int64
}

// NetCents is income plus expense; expense amounts are already negative.
func (p PeriodSummary) NetCents() int64 {
	return p.IncomeCents + p.ExpenseCents
}

// DailyTotal is one day's income/expense pair, used for trend views.
type DailyTotal struct {
	Date         Date
	IncomeCents  int64
	ExpenseCents int64
}

// PeriodTotal is one bucket of a trend series. The label names the
// bucket: a date, an ISO week, a month or a year.
type PeriodTotal struct {
	Label        string
	IncomeCents  int64
	ExpenseCents int64
}

// MonthOverMonth compares the running month against the previous one.
// Percentages are relative to the previous month's absolute totals and
// zero when there is nothing to compare against.
type MonthOverMonth struct {
	Current  PeriodSummary
	Previous PeriodSummary

	IncomeChangeCents  int64
	ExpenseChangeCents int64
	IncomeChangePct    float64
	ExpenseChangePct   float64
}
