// Package services orchestrates the ledger engine, durable snapshots and
// optional change-event publication.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"registro/internal/amqp"
	"registro/internal/backend"
	"registro/internal/core"
	"registro/internal/ledger"
)

// EventPublisher is the outbound port for ledger change events.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, event *amqp.TransactionEvent) error
	Close() error
}

// LedgerService owns the in-memory ledger and keeps it in lockstep with
// the durable store: validate, apply, save, then announce. If the save
// fails, the in-memory state is rolled back so it never drifts from the
// last known-good persisted state.
type LedgerService struct {
	mu     sync.Mutex
	ledger *ledger.Ledger
	store  backend.SnapshotStore
	events EventPublisher // nil disables publication
}

// NewLedgerService loads the persisted snapshot and builds the service.
func NewLedgerService(ctx context.Context, store backend.SnapshotStore, events EventPublisher) (*LedgerService, error) {
	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	l, err := ledger.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("restore ledger: %w", err)
	}

	slog.InfoContext(ctx, "Ledger loaded",
		"transactions", len(snap.Transactions),
		"categories", len(snap.Categories),
		"accounts", len(snap.Accounts))

	return &LedgerService{ledger: l, store: store, events: events}, nil
}

// mutate applies one validated change and persists the result. apply may
// touch only s.ledger; if it fails partway, or the save fails, the
// in-memory state is rolled back to the pre-mutation snapshot.
func (s *LedgerService) mutate(ctx context.Context, apply func(l *ledger.Ledger) error) error {
	before := s.ledger.Snapshot()
	if err := apply(s.ledger); err != nil {
		if restored, rerr := ledger.FromSnapshot(before); rerr == nil {
			s.ledger = restored
		} else {
			slog.ErrorContext(ctx, "Rollback after failed mutation also failed", "error", rerr)
		}
		return err
	}
	if err := s.store.Save(ctx, s.ledger.Snapshot()); err != nil {
		if restored, rerr := ledger.FromSnapshot(before); rerr == nil {
			s.ledger = restored
		} else {
			slog.ErrorContext(ctx, "Rollback after failed save also failed", "error", rerr)
		}
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// RecordTransaction validates, commits and persists a new transaction.
func (s *LedgerService) RecordTransaction(ctx context.Context, date core.Date, amountCents int64, categoryID, accountID int64, note string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tx core.Transaction
	err := s.mutate(ctx, func(l *ledger.Ledger) error {
		var err error
		tx, err = l.RecordTransaction(date, amountCents, categoryID, accountID, note)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction recorded",
		"id", tx.ID,
		"date", tx.Date.String(),
		"amount_cents", tx.Amount.Cents,
		"category_id", tx.CategoryID)

	s.publish(ctx, amqp.EventRecorded, tx)
	return tx, nil
}

// UpdateTransaction edits a committed transaction in place.
func (s *LedgerService) UpdateTransaction(ctx context.Context, id int64, upd ledger.TransactionUpdate) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tx core.Transaction
	err := s.mutate(ctx, func(l *ledger.Ledger) error {
		var err error
		tx, err = l.UpdateTransaction(id, upd)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction updated", "id", tx.ID, "version", tx.Version)
	s.publish(ctx, amqp.EventUpdated, tx)
	return tx, nil
}

// DeleteTransaction soft-deletes a transaction.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.ledger.Transaction(id)
	if !ok {
		return fmt.Errorf("%w: id %d", core.ErrUnknownTransaction, id)
	}
	if err := s.mutate(ctx, func(l *ledger.Ledger) error {
		return l.RemoveTransaction(id)
	}); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	s.publish(ctx, amqp.EventDeleted, tx)
	return nil
}

// defaultCategories is the starter set seeded into an empty ledger so a
// first run has something to record against.
var defaultCategories = []struct {
	Name string
	Kind core.Kind
}{
	{"Food", core.KindExpense},
	{"Entertainment", core.KindExpense},
	{"Shopping", core.KindExpense},
	{"Rent & Utilities", core.KindExpense},
	{"Salary", core.KindIncome},
}

// EnsureDefaultCategories seeds the default category set when the ledger
// has none. A ledger that already has categories is left alone.
func (s *LedgerService) EnsureDefaultCategories(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.ledger.Categories().List()) > 0 {
		return nil
	}
	err := s.mutate(ctx, func(l *ledger.Ledger) error {
		for _, d := range defaultCategories {
			if _, err := l.Categories().Create(d.Name, d.Kind, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("seed default categories: %w", err)
	}
	slog.InfoContext(ctx, "Seeded default categories", "count", len(defaultCategories))
	return nil
}

// CreateCategory adds a category, optionally under a parent.
func (s *LedgerService) CreateCategory(ctx context.Context, name string, kind core.Kind, parentID int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c core.Category
	err := s.mutate(ctx, func(l *ledger.Ledger) error {
		var err error
		c, err = l.Categories().Create(name, kind, parentID)
		return err
	})
	if err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name, "kind", string(c.Kind))
	return c, nil
}

// UpdateCategory renames and/or reparents a category as one persisted
// change: either both edits commit or neither does.
func (s *LedgerService) UpdateCategory(ctx context.Context, id int64, name *string, parentID *int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c core.Category
	err := s.mutate(ctx, func(l *ledger.Ledger) error {
		var err error
		if name != nil {
			if c, err = l.Categories().Rename(id, *name); err != nil {
				return err
			}
		}
		if parentID != nil {
			if c, err = l.Categories().Reparent(id, *parentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// RenameCategory changes a category's name.
func (s *LedgerService) RenameCategory(ctx context.Context, id int64, name string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c core.Category
	err := s.mutate(ctx, func(l *ledger.Ledger) error {
		var err error
		c, err = l.Categories().Rename(id, name)
		return err
	})
	return c, err
}

// ReparentCategory moves a category under a new parent.
func (s *LedgerService) ReparentCategory(ctx context.Context, id, newParentID int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c core.Category
	err := s.mutate(ctx, func(l *ledger.Ledger) error {
		var err error
		c, err = l.Categories().Reparent(id, newParentID)
		return err
	})
	return c, err
}

// DeleteCategory removes an unreferenced, childless category.
func (s *LedgerService) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(ctx, func(l *ledger.Ledger) error {
		return l.DeleteCategory(id)
	})
}

// CreateAccount adds an account.
func (s *LedgerService) CreateAccount(ctx context.Context, name string, typ core.AccountType) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var a core.Account
	err := s.mutate(ctx, func(l *ledger.Ledger) error {
		var err error
		a, err = l.Accounts().Create(name, typ)
		return err
	})
	return a, err
}

// RenameAccount changes an account's name.
func (s *LedgerService) RenameAccount(ctx context.Context, id int64, name string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var a core.Account
	err := s.mutate(ctx, func(l *ledger.Ledger) error {
		var err error
		a, err = l.Accounts().Rename(id, name)
		return err
	})
	return a, err
}

// DeleteAccount removes an unreferenced account.
func (s *LedgerService) DeleteAccount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutate(ctx, func(l *ledger.Ledger) error {
		return l.DeleteAccount(id)
	})
}

// Transaction returns one committed transaction.
func (s *LedgerService) Transaction(id int64) (core.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Transaction(id)
}

// ListTransactions returns the filtered, date-ordered entries.
func (s *LedgerService) ListTransactions(f ledger.Filter) []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.ListTransactions(f)
}

// ListCategories returns all categories, kind- then name-ordered.
func (s *LedgerService) ListCategories() []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Categories().List()
}

// ListAccounts returns all accounts, name-ordered.
func (s *LedgerService) ListAccounts() []core.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Accounts().List()
}

// BalanceAsOf sums all committed amounts dated on or before date.
func (s *LedgerService) BalanceAsOf(date core.Date) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.BalanceAsOf(date)
}

// TotalsByCategory sums amounts per category over a range.
func (s *LedgerService) TotalsByCategory(from, to core.Date) map[int64]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.TotalsByCategory(from, to)
}

// CategoryReport returns named category totals for display.
func (s *LedgerService) CategoryReport(from, to core.Date) []core.CategoryTotal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.CategoryReport(from, to)
}

// Summarize splits a range into income, expense and net.
func (s *LedgerService) Summarize(from, to core.Date) core.PeriodSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Summarize(from, to)
}

// DailyTotals returns per-day income/expense pairs over a range.
func (s *LedgerService) DailyTotals(from, to core.Date) []core.DailyTotal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.DailyTotals(from, to)
}

// TrendTotals returns the bucketed trend series over a range.
func (s *LedgerService) TrendTotals(from, to core.Date, g ledger.Granularity) []core.PeriodTotal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.TrendTotals(from, to, g)
}

// MonthOverMonth compares the month containing now against the previous one.
func (s *LedgerService) MonthOverMonth(now time.Time) core.MonthOverMonth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.MonthOverMonth(now)
}

// publish sends a change event; failures are logged, never fatal, since
// the ledger itself is already durable.
func (s *LedgerService) publish(ctx context.Context, kind string, tx core.Transaction) {
	if s.events == nil {
		return
	}
	event := &amqp.TransactionEvent{
		Event:       kind,
		ID:          tx.ID,
		Version:     tx.Version,
		Date:        tx.Date.String(),
		AmountCents: tx.Amount.Cents,
		Note:        tx.Note,
		Timestamp:   tx.CreatedAt,
	}
	if c, ok := s.ledger.Categories().Get(tx.CategoryID); ok {
		event.Category = c.Name
	}
	if tx.AccountID != 0 {
		if a, ok := s.ledger.Accounts().Get(tx.AccountID); ok {
			event.Account = a.Name
		}
	}
	if err := s.events.PublishTransactionEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"event", kind, "id", tx.ID, "error", err)
	}
}

// Close closes the snapshot store and the event publisher.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}
	return nil
}
