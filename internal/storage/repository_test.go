package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"registro/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)
	want := core.EmptySnapshot()
	want.Categories = []core.Category{
		{ID: 1, Name: "Groceries", Kind: core.KindExpense, CreatedAt: created},
		{ID: 2, Name: "Salary", Kind: core.KindIncome, CreatedAt: created},
	}
	want.Accounts = []core.Account{
		{ID: 1, Name: "Wallet", Type: core.AccountCash, CreatedAt: created},
	}
	want.Transactions = []core.Transaction{
		{ID: 1, Date: core.NewDate(2024, 1, 5), Amount: core.Money{Cents: -4200}, CategoryID: 1, AccountID: 1, Note: "shop", CreatedAt: created, Version: 1},
		{ID: 2, Date: core.NewDate(2024, 1, 6), Amount: core.Money{Cents: 150000}, CategoryID: 2, Note: "pay", CreatedAt: created, Version: 2, Deleted: true},
	}

	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(got.Transactions) != 2 || len(got.Categories) != 2 || len(got.Accounts) != 1 {
		t.Fatalf("record counts differ: %+v", got)
	}
	for i := range want.Transactions {
		if got.Transactions[i] != want.Transactions[i] {
			t.Fatalf("transaction %d differs:\n got %+v\nwant %+v", i, got.Transactions[i], want.Transactions[i])
		}
	}
	for i := range want.Categories {
		if got.Categories[i] != want.Categories[i] {
			t.Fatalf("category %d differs:\n got %+v\nwant %+v", i, got.Categories[i], want.Categories[i])
		}
	}
}

func TestSQLiteSaveReplacesState(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	created := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	first := core.EmptySnapshot()
	first.Categories = []core.Category{{ID: 1, Name: "A", Kind: core.KindExpense, CreatedAt: created}}
	first.Transactions = []core.Transaction{
		{ID: 1, Date: core.NewDate(2024, 1, 5), Amount: core.Money{Cents: -100}, CategoryID: 1, CreatedAt: created, Version: 1},
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	second := core.EmptySnapshot()
	second.Categories = []core.Category{{ID: 2, Name: "B", Kind: core.KindIncome, CreatedAt: created}}
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Transactions) != 0 {
		t.Fatalf("stale transactions survived: %+v", got.Transactions)
	}
	if len(got.Categories) != 1 || got.Categories[0].Name != "B" {
		t.Fatalf("unexpected categories: %+v", got.Categories)
	}
}

func TestSQLiteLoadEmpty(t *testing.T) {
	repo := newTestRepo(t)
	snap, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load on fresh database: %v", err)
	}
	if len(snap.Transactions) != 0 || len(snap.Categories) != 0 || len(snap.Accounts) != 0 {
		t.Fatalf("fresh database not empty: %+v", snap)
	}
}
