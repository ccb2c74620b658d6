package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"registro/internal/persist"
	"registro/internal/services"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	svc, err := services.NewLedgerService(context.Background(), persist.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("NewLedgerService: %v", err)
	}
	s := NewServer(":0", svc)
	ts := httptest.NewServer(s.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = s.Shutdown(context.Background())
	})
	return s, ts
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createCategory(t *testing.T, baseURL, name, kind string) categoryJSON {
	t.Helper()
	resp := doJSON(t, http.MethodPost, baseURL+"/api/categories", map[string]any{
		"name": name, "kind": kind,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create category %s: status %d", name, resp.StatusCode)
	}
	var c categoryJSON
	decodeInto(t, resp, &c)
	return c
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCreateTransactionAndBalance(t *testing.T) {
	_, ts := newTestServer(t)
	groceries := createCategory(t, ts.URL, "Groceries", "expense")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/transactions", map[string]any{
		"date":        "2024-01-05",
		"amount":      "-42,00",
		"category_id": groceries.ID,
		"note":        "weekly shop",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create transaction: status %d", resp.StatusCode)
	}
	var tx transactionJSON
	decodeInto(t, resp, &tx)
	if tx.AmountCents != -4200 {
		t.Fatalf("AmountCents = %d, want -4200", tx.AmountCents)
	}
	if tx.Date != "2024-01-05" {
		t.Fatalf("Date = %s, want 2024-01-05", tx.Date)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/balance?asof=2024-01-31", nil)
	var bal balanceResponse
	decodeInto(t, resp, &bal)
	if bal.BalanceCents != -4200 {
		t.Fatalf("BalanceCents = %d, want -4200", bal.BalanceCents)
	}
}

func TestCreateTransactionErrors(t *testing.T) {
	_, ts := newTestServer(t)
	groceries := createCategory(t, ts.URL, "Groceries", "expense")

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
	}{
		{
			name:       "zero amount rejected",
			body:       map[string]any{"date": "2024-01-05", "amount": "0", "category_id": groceries.ID},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "bad date rejected",
			body:       map[string]any{"date": "05/01/2024", "amount": "-1,00", "category_id": groceries.ID},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "unknown category",
			body:       map[string]any{"date": "2024-01-05", "amount": "-1,00", "category_id": 9999},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, ts.URL+"/api/transactions", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestDuplicateCategoryConflict(t *testing.T) {
	_, ts := newTestServer(t)
	createCategory(t, ts.URL, "Food", "expense")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/categories", map[string]any{
		"name": "Food", "kind": "expense",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate category: status = %d, want 409", resp.StatusCode)
	}
}

func TestDeleteCategoryInUse(t *testing.T) {
	_, ts := newTestServer(t)
	groceries := createCategory(t, ts.URL, "Groceries", "expense")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/transactions", map[string]any{
		"date": "2024-01-05", "amount": "-1,00", "category_id": groceries.ID,
	})
	var tx transactionJSON
	decodeInto(t, resp, &tx)

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/categories/%d", ts.URL, groceries.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("delete in-use category: status = %d, want 409", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/transactions/%d", ts.URL, tx.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete transaction: status = %d, want 204", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodDelete, fmt.Sprintf("%s/api/categories/%d", ts.URL, groceries.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete dereferenced category: status = %d, want 204", resp.StatusCode)
	}
}

func TestListTransactionsFilter(t *testing.T) {
	_, ts := newTestServer(t)
	groceries := createCategory(t, ts.URL, "Groceries", "expense")
	salary := createCategory(t, ts.URL, "Salary", "income")

	for _, tx := range []map[string]any{
		{"date": "2024-01-05", "amount": "-42,00", "category_id": groceries.ID},
		{"date": "2024-01-10", "amount": "1500,00", "category_id": salary.ID},
		{"date": "2024-02-01", "amount": "-10,00", "category_id": groceries.ID},
	} {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/transactions", tx)
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed transaction: status %d", resp.StatusCode)
		}
	}

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/transactions?from=2024-01-01&to=2024-01-31", nil)
	var january []transactionJSON
	decodeInto(t, resp, &january)
	if len(january) != 2 {
		t.Fatalf("january count = %d, want 2", len(january))
	}
	if january[0].Date != "2024-01-05" || january[1].Date != "2024-01-10" {
		t.Fatalf("january not date-ordered: %+v", january)
	}

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/api/transactions?category_id=%d", ts.URL, groceries.ID), nil)
	var byCat []transactionJSON
	decodeInto(t, resp, &byCat)
	if len(byCat) != 2 {
		t.Fatalf("groceries count = %d, want 2", len(byCat))
	}
}

func TestUpdateTransaction(t *testing.T) {
	_, ts := newTestServer(t)
	groceries := createCategory(t, ts.URL, "Groceries", "expense")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/transactions", map[string]any{
		"date": "2024-01-05", "amount": "-42,00", "category_id": groceries.ID,
	})
	var tx transactionJSON
	decodeInto(t, resp, &tx)

	resp = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/api/transactions/%d", ts.URL, tx.ID), map[string]any{
		"amount": "-50,00",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update: status = %d, want 200", resp.StatusCode)
	}
	var updated transactionJSON
	decodeInto(t, resp, &updated)
	if updated.AmountCents != -5000 {
		t.Fatalf("AmountCents = %d, want -5000", updated.AmountCents)
	}
	if updated.Version != tx.Version+1 {
		t.Fatalf("Version = %d, want %d", updated.Version, tx.Version+1)
	}
}

func TestCategoryReportReflectsMutations(t *testing.T) {
	_, ts := newTestServer(t)
	groceries := createCategory(t, ts.URL, "Groceries", "expense")

	reportURL := ts.URL + "/api/reports/categories?from=2024-01-01&to=2024-01-31"

	resp := doJSON(t, http.MethodGet, reportURL, nil)
	var before categoryReportResponse
	decodeInto(t, resp, &before)
	if len(before.Categories) != 0 {
		t.Fatalf("empty ledger report has %d categories", len(before.Categories))
	}

	// A mutation must invalidate the cached report.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/transactions", map[string]any{
		"date": "2024-01-05", "amount": "-42,00", "category_id": groceries.ID,
	})
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, reportURL, nil)
	var after categoryReportResponse
	decodeInto(t, resp, &after)
	if len(after.Categories) != 1 || after.Categories[0].TotalCents != -4200 {
		t.Fatalf("report after mutation: %+v", after.Categories)
	}
	if after.Categories[0].Name != "Groceries" {
		t.Fatalf("report name = %q, want Groceries", after.Categories[0].Name)
	}
}

func TestSummaryReport(t *testing.T) {
	_, ts := newTestServer(t)
	groceries := createCategory(t, ts.URL, "Groceries", "expense")
	salary := createCategory(t, ts.URL, "Salary", "income")

	for _, tx := range []map[string]any{
		{"date": "2024-01-05", "amount": "-42,00", "category_id": groceries.ID},
		{"date": "2024-01-10", "amount": "1500,00", "category_id": salary.ID},
	} {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/transactions", tx)
		resp.Body.Close()
	}

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/reports/summary?year=2024&month=1", nil)
	var sum summaryResponse
	decodeInto(t, resp, &sum)
	if sum.IncomeCents != 150000 || sum.ExpenseCents != -4200 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.NetCents != 145800 {
		t.Fatalf("NetCents = %d, want 145800", sum.NetCents)
	}
}

func TestTrendReport(t *testing.T) {
	_, ts := newTestServer(t)
	groceries := createCategory(t, ts.URL, "Groceries", "expense")
	salary := createCategory(t, ts.URL, "Salary", "income")

	for _, tx := range []map[string]any{
		{"date": "2024-01-05", "amount": "-42,00", "category_id": groceries.ID},
		{"date": "2024-01-10", "amount": "1500,00", "category_id": salary.ID},
		{"date": "2024-03-02", "amount": "-3,00", "category_id": groceries.ID},
	} {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/transactions", tx)
		resp.Body.Close()
	}

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/reports/trend?from=2024-01-01&to=2024-03-31&granularity=month", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("trend: status = %d, want 200", resp.StatusCode)
	}
	var trend trendReportResponse
	decodeInto(t, resp, &trend)
	if trend.Granularity != "month" || len(trend.Buckets) != 3 {
		t.Fatalf("trend = %+v", trend)
	}
	if trend.Buckets[0].Label != "2024-01" || trend.Buckets[0].IncomeCents != 150000 || trend.Buckets[0].ExpenseCents != -4200 {
		t.Fatalf("january bucket = %+v", trend.Buckets[0])
	}
	// February is empty but still present in the series.
	if trend.Buckets[1].Label != "2024-02" || trend.Buckets[1].IncomeCents != 0 || trend.Buckets[1].ExpenseCents != 0 {
		t.Fatalf("february bucket = %+v", trend.Buckets[1])
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/reports/trend?from=2024-01-01&to=2024-03-31&granularity=hourly", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad granularity: status = %d, want 400", resp.StatusCode)
	}
}

func TestUpdateCategoryAllOrNothing(t *testing.T) {
	_, ts := newTestServer(t)
	bills := createCategory(t, ts.URL, "Bills", "expense")

	// Valid rename plus an unknown parent: the whole patch must fail.
	resp := doJSON(t, http.MethodPatch, fmt.Sprintf("%s/api/categories/%d", ts.URL, bills.ID), map[string]any{
		"name": "Utilities", "parent_id": 9999,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("patch with unknown parent: status = %d, want 404", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/categories", nil)
	var cats []categoryJSON
	decodeInto(t, resp, &cats)
	if len(cats) != 1 || cats[0].Name != "Bills" || cats[0].ParentID != 0 {
		t.Fatalf("failed patch left a partial edit: %+v", cats)
	}

	home := createCategory(t, ts.URL, "Home", "expense")
	resp = doJSON(t, http.MethodPatch, fmt.Sprintf("%s/api/categories/%d", ts.URL, bills.ID), map[string]any{
		"name": "Utilities", "parent_id": home.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch: status = %d, want 200", resp.StatusCode)
	}
	var updated categoryJSON
	decodeInto(t, resp, &updated)
	if updated.Name != "Utilities" || updated.ParentID != home.ID {
		t.Fatalf("both edits not applied: %+v", updated)
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := newLRUCache[string](2, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3") // evicts a

	if _, found := c.Get("a"); found {
		t.Fatal("oldest entry survived eviction")
	}
	if v, found := c.Get("c"); !found || v != "3" {
		t.Fatalf("newest entry missing: %q %v", v, found)
	}

	c.Purge()
	if _, found := c.Get("b"); found {
		t.Fatal("entry survived purge")
	}
}
