// Package storage persists ledger snapshots in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"registro/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load reads the whole ledger state. Rows that fail to scan or decode
// mean the store is corrupt.
func (r *SQLiteRepository) Load(ctx context.Context) (core.Snapshot, error) {
	snap := core.EmptySnapshot()

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, kind, parent_id, created_at FROM categories ORDER BY id`)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c core.Category
		var kind, createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &kind, &c.ParentID, &createdAt); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: scan category: %v", core.ErrCorruptStore, err)
		}
		c.Kind = core.Kind(kind)
		if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: category %d created_at: %v", core.ErrCorruptStore, c.ID, err)
		}
		snap.Categories = append(snap.Categories, c)
	}
	if err := rows.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("iterate categories: %w", err)
	}

	accRows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type, created_at FROM accounts ORDER BY id`)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("query accounts: %w", err)
	}
	defer accRows.Close()
	for accRows.Next() {
		var a core.Account
		var typ, createdAt string
		if err := accRows.Scan(&a.ID, &a.Name, &typ, &createdAt); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: scan account: %v", core.ErrCorruptStore, err)
		}
		a.Type = core.AccountType(typ)
		if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: account %d created_at: %v", core.ErrCorruptStore, a.ID, err)
		}
		snap.Accounts = append(snap.Accounts, a)
	}
	if err := accRows.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("iterate accounts: %w", err)
	}

	txRows, err := r.db.QueryContext(ctx,
		`SELECT id, date, amount_cents, category_id, account_id, note, created_at, version, deleted
		 FROM transactions ORDER BY id`)
	if err != nil {
		return core.Snapshot{}, fmt.Errorf("query transactions: %w", err)
	}
	defer txRows.Close()
	for txRows.Next() {
		var t core.Transaction
		var date, createdAt string
		var deleted int
		if err := txRows.Scan(&t.ID, &date, &t.Amount.Cents, &t.CategoryID, &t.AccountID,
			&t.Note, &createdAt, &t.Version, &deleted); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: scan transaction: %v", core.ErrCorruptStore, err)
		}
		if t.Date, err = core.ParseDate(date); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: transaction %d date %q", core.ErrCorruptStore, t.ID, date)
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return core.Snapshot{}, fmt.Errorf("%w: transaction %d created_at: %v", core.ErrCorruptStore, t.ID, err)
		}
		t.Deleted = deleted != 0
		snap.Transactions = append(snap.Transactions, t)
	}
	if err := txRows.Err(); err != nil {
		return core.Snapshot{}, fmt.Errorf("iterate transactions: %w", err)
	}

	slog.DebugContext(ctx, "Loaded snapshot from SQLite",
		"transactions", len(snap.Transactions),
		"categories", len(snap.Categories),
		"accounts", len(snap.Accounts))

	return snap, nil
}

// Save replaces the stored state with the snapshot inside one database
// transaction, so readers only ever see a complete state.
func (r *SQLiteRepository) Save(ctx context.Context, snap core.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"transactions", "accounts", "categories"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, c := range snap.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (id, name, kind, parent_id, created_at) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.Name, string(c.Kind), c.ParentID, c.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert category %d: %w", c.ID, err)
		}
	}
	for _, a := range snap.Accounts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, name, type, created_at) VALUES (?, ?, ?, ?)`,
			a.ID, a.Name, string(a.Type), a.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert account %d: %w", a.ID, err)
		}
	}
	for _, t := range snap.Transactions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (id, date, amount_cents, category_id, account_id, note, created_at, version, deleted)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Date.String(), t.Amount.Cents, t.CategoryID, t.AccountID, t.Note,
			t.CreatedAt.UTC().Format(time.RFC3339), t.Version, boolToInt(t.Deleted)); err != nil {
			return fmt.Errorf("insert transaction %d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
