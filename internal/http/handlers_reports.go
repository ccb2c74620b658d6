package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"registro/internal/core"
	"registro/internal/ledger"
)

type balanceResponse struct {
	AsOf         string `json:"as_of"`
	BalanceCents int64  `json:"balance_cents"`
	Balance      string `json:"balance"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	asOf := core.Date{Time: time.Now().UTC().Truncate(24 * time.Hour)}
	if v := r.URL.Query().Get("asof"); v != "" {
		date, err := core.ParseDate(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		asOf = date
	}

	cents := s.svc.BalanceAsOf(asOf)
	writeJSON(w, http.StatusOK, balanceResponse{
		AsOf:         asOf.String(),
		BalanceCents: cents,
		Balance:      core.FormatCents(cents),
	})
}

// rangeFromQuery resolves the reporting period. Accepted forms:
// from+to, year+month, year alone, last_months=n. Default is the
// current calendar month.
func rangeFromQuery(r *http.Request) (core.Date, core.Date, error) {
	q := r.URL.Query()

	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		if from == "" || to == "" {
			return core.Date{}, core.Date{}, fmt.Errorf("%w: from and to must be given together", core.ErrInvalidDate)
		}
		fromDate, err := core.ParseDate(from)
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		toDate, err := core.ParseDate(to)
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		return fromDate, toDate, nil
	}

	if v := q.Get("last_months"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return core.Date{}, core.Date{}, fmt.Errorf("%w: last_months must be a positive number", core.ErrInvalidDate)
		}
		from, to := ledger.LastFullMonthsRange(time.Now(), n)
		return from, to, nil
	}

	now := time.Now()
	year, month := now.Year(), int(now.Month())
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.Date{}, core.Date{}, fmt.Errorf("%w: bad year", core.ErrInvalidDate)
		}
		year = y
		if q.Get("month") == "" {
			from, to := ledger.YearRange(year)
			return from, to, nil
		}
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return core.Date{}, core.Date{}, fmt.Errorf("%w: bad month", core.ErrInvalidDate)
		}
		month = m
	}
	from, to := ledger.MonthRange(year, month)
	return from, to, nil
}

// serveReport answers from the cache when possible, otherwise builds the
// payload and caches it.
func (s *Server) serveReport(w http.ResponseWriter, r *http.Request, build func() any) {
	key := r.URL.Path + "?" + r.URL.RawQuery

	if body, found := s.reportCache.Get(key); found {
		slog.DebugContext(r.Context(), "Report cache hit", "key", key)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	body, err := json.Marshal(build())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.reportCache.Set(key, body)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type categoryTotalJSON struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	TotalCents int64  `json:"total_cents"`
	Total      string `json:"total"`
}

type categoryReportResponse struct {
	From       string              `json:"from"`
	To         string              `json:"to"`
	Categories []categoryTotalJSON `json:"categories"`
}

func (s *Server) handleCategoryReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := rangeFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.serveReport(w, r, func() any {
		totals := s.svc.CategoryReport(from, to)
		resp := categoryReportResponse{
			From:       from.String(),
			To:         to.String(),
			Categories: make([]categoryTotalJSON, 0, len(totals)),
		}
		for _, ct := range totals {
			resp.Categories = append(resp.Categories, categoryTotalJSON{
				CategoryID: ct.CategoryID,
				Name:       ct.Name,
				TotalCents: ct.Cents,
				Total:      core.FormatCents(ct.Cents),
			})
		}
		return resp
	})
}

type summaryResponse struct {
	From         string `json:"from"`
	To           string `json:"to"`
	IncomeCents  int64  `json:"income_cents"`
	ExpenseCents int64  `json:"expense_cents"`
	NetCents     int64  `json:"net_cents"`
	Net          string `json:"net"`
}

func (s *Server) handleSummaryReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := rangeFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.serveReport(w, r, func() any {
		sum := s.svc.Summarize(from, to)
		return summaryResponse{
			From:         from.String(),
			To:           to.String(),
			IncomeCents:  sum.IncomeCents,
			ExpenseCents: sum.ExpenseCents,
			NetCents:     sum.NetCents(),
			Net:          core.FormatCents(sum.NetCents()),
		}
	})
}

type dailyTotalJSON struct {
	Date         string `json:"date"`
	IncomeCents  int64  `json:"income_cents"`
	ExpenseCents int64  `json:"expense_cents"`
}

type dailyReportResponse struct {
	From string           `json:"from"`
	To   string           `json:"to"`
	Days []dailyTotalJSON `json:"days"`
}

type trendBucketJSON struct {
	Label        string `json:"label"`
	IncomeCents  int64  `json:"income_cents"`
	ExpenseCents int64  `json:"expense_cents"`
}

type trendReportResponse struct {
	From        string            `json:"from"`
	To          string            `json:"to"`
	Granularity string            `json:"granularity"`
	Buckets     []trendBucketJSON `json:"buckets"`
}

// handleTrendReport buckets income/expense over the period at the
// requested granularity (day, week, month or year).
func (s *Server) handleTrendReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := rangeFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	g := ledger.Granularity(r.URL.Query().Get("granularity"))
	if g == "" {
		g = ledger.GranularityDay
	}
	if !g.Valid() {
		writeBadRequest(w, fmt.Sprintf("invalid granularity %q: must be day, week, month or year", g))
		return
	}

	s.serveReport(w, r, func() any {
		buckets := s.svc.TrendTotals(from, to, g)
		resp := trendReportResponse{
			From:        from.String(),
			To:          to.String(),
			Granularity: string(g),
			Buckets:     make([]trendBucketJSON, 0, len(buckets)),
		}
		for _, b := range buckets {
			resp.Buckets = append(resp.Buckets, trendBucketJSON{
				Label:        b.Label,
				IncomeCents:  b.IncomeCents,
				ExpenseCents: b.ExpenseCents,
			})
		}
		return resp
	})
}

type monthOverMonthResponse struct {
	CurrentIncomeCents  int64   `json:"current_income_cents"`
	CurrentExpenseCents int64   `json:"current_expense_cents"`
	PrevIncomeCents     int64   `json:"previous_income_cents"`
	PrevExpenseCents    int64   `json:"previous_expense_cents"`
	IncomeChangeCents   int64   `json:"income_change_cents"`
	ExpenseChangeCents  int64   `json:"expense_change_cents"`
	IncomeChangePct     float64 `json:"income_change_pct"`
	ExpenseChangePct    float64 `json:"expense_change_pct"`
}

func (s *Server) handleMonthOverMonth(w http.ResponseWriter, r *http.Request) {
	m := s.svc.MonthOverMonth(time.Now())
	writeJSON(w, http.StatusOK, monthOverMonthResponse{
		CurrentIncomeCents:  m.Current.IncomeCents,
		CurrentExpenseCents: m.Current.ExpenseCents,
		PrevIncomeCents:     m.Previous.IncomeCents,
		PrevExpenseCents:    m.Previous.ExpenseCents,
		IncomeChangeCents:   m.IncomeChangeCents,
		ExpenseChangeCents:  m.ExpenseChangeCents,
		IncomeChangePct:     m.IncomeChangePct,
		ExpenseChangePct:    m.ExpenseChangePct,
	})
}

func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	from, to, err := rangeFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.serveReport(w, r, func() any {
		days := s.svc.DailyTotals(from, to)
		resp := dailyReportResponse{
			From: from.String(),
			To:   to.String(),
			Days: make([]dailyTotalJSON, 0, len(days)),
		}
		for _, d := range days {
			resp.Days = append(resp.Days, dailyTotalJSON{
				Date:         d.Date.String(),
				IncomeCents:  d.IncomeCents,
				ExpenseCents: d.ExpenseCents,
			})
		}
		return resp
	})
}
