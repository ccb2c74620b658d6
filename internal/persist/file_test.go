package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"registro/internal/core"
)

func sampleSnapshot() core.Snapshot {
	created := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)
	snap := core.EmptySnapshot()
	snap.Categories = []core.Category{
		{ID: 1, Name: "Groceries", Kind: core.KindExpense, CreatedAt: created},
		{ID: 2, Name: "Salary", Kind: core.KindIncome, CreatedAt: created},
		{ID: 3, Name: "Fruit, veg", Kind: core.KindExpense, ParentID: 1, CreatedAt: created},
	}
	snap.Accounts = []core.Account{
		{ID: 1, Name: "Wallet", Type: core.AccountCash, CreatedAt: created},
	}
	snap.Transactions = []core.Transaction{
		{ID: 1, Date: core.NewDate(2024, 1, 5), Amount: core.Money{Cents: -4200}, CategoryID: 1, AccountID: 1, Note: "weekly shop, with \"quotes\"", CreatedAt: created, Version: 1},
		{ID: 2, Date: core.NewDate(2024, 1, 6), Amount: core.Money{Cents: 150000}, CategoryID: 2, Note: "pay", CreatedAt: created, Version: 2, Deleted: true},
	}
	return snap
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	want := sampleSnapshot()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(got.Transactions) != len(want.Transactions) ||
		len(got.Categories) != len(want.Categories) ||
		len(got.Accounts) != len(want.Accounts) {
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
	for i := range want.Accounts {
		if got.Accounts[i] != want.Accounts[i] {
			t.Fatalf("account %d differs:\n got %+v\nwant %+v", i, got.Accounts[i], want.Accounts[i])
		}
	}
}

func TestFileStoreLoadEmptyDirectory(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	snap, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load on fresh directory: %v", err)
	}
	if len(snap.Transactions) != 0 || len(snap.Categories) != 0 || len(snap.Accounts) != 0 {
		t.Fatalf("fresh directory not empty: %+v", snap)
	}
}

func TestFileStoreCorruptData(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		content string
	}{
		{"garbage row", "transactions.csv", "not,a,transaction\n"},
		{"bad amount", "transactions.csv", "1,1,2024-01-05,abc,1,0,note,2024-01-05T10:30:00Z,1,false\n"},
		{"bad date", "transactions.csv", "1,1,05/01/2024,-100,1,0,note,2024-01-05T10:30:00Z,1,false\n"},
		{"future format version", "transactions.csv", "99,1,2024-01-05,-100,1,0,note,2024-01-05T10:30:00Z,1,false\n"},
		{"bad kind", "categories.csv", "1,1,Food,both,0,2024-01-05T10:30:00Z\n"},
		{"bad account type", "accounts.csv", "1,1,Wallet,stocks,2024-01-05T10:30:00Z\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			store, err := NewFileStore(dir)
			if err != nil {
				t.Fatalf("NewFileStore: %v", err)
			}
			if err := os.WriteFile(filepath.Join(dir, tc.file), []byte(tc.content), 0644); err != nil {
				t.Fatalf("seed file: %v", err)
			}
			_, err = store.Load(context.Background())
			if !errors.Is(err, core.ErrCorruptStore) {
				t.Fatalf("expected ErrCorruptStore, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.file) {
				t.Fatalf("error should name the file: %v", err)
			}
		})
	}
}

func TestFileStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	if err := store.Save(context.Background(), sampleSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 record files, found %d", len(entries))
	}
}

func TestFileStoreOverwriteKeepsLatest(t *testing.T) {
	ctx := context.Background()
	store, _ := NewFileStore(t.TempDir())

	first := sampleSnapshot()
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	second := sampleSnapshot()
	second.Transactions = second.Transactions[:1]
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Transactions) != 1 {
		t.Fatalf("expected latest save to win, got %d transactions", len(got.Transactions))
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	want := sampleSnapshot()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the saved slice must not leak into the store.
	want.Transactions[0].Note = "mutated"

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Transactions[0].Note == "mutated" {
		t.Fatal("store aliases the caller's slice")
	}
}
