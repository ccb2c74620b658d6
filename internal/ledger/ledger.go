// Package ledger implements the in-memory ledger state: the transaction
// store, the category registry, the account registry, and the engine
// queries computed over them.
//
// A Ledger is an explicit state value with a load/save lifecycle; it is
// built from a core.Snapshot at startup and converted back to one for
// every durable write. Nothing in this package touches the disk.
package ledger

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"registro/internal/core"
)

type Ledger struct {
	txs  *txStore
	cats *CategoryRegistry
	accs *AccountRegistry
	now  func() time.Time
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{
		txs:  newTxStore(),
		cats: newCategoryRegistry(),
		accs: newAccountRegistry(),
		now:  time.Now,
	}
}

// FromSnapshot rebuilds a ledger from persisted state. Referential
// integrity is re-checked: a transaction pointing at a missing category
// or account means the store is corrupt.
func FromSnapshot(s core.Snapshot) (*Ledger, error) {
	if s.FormatVersion > core.SnapshotFormatVersion {
		return nil, fmt.Errorf("%w: format version %d is newer than supported %d",
			core.ErrCorruptStore, s.FormatVersion, core.SnapshotFormatVersion)
	}

	l := New()
	for _, c := range s.Categories {
		if err := l.cats.restore(c); err != nil {
			return nil, fmt.Errorf("%w: category %d: %v", core.ErrCorruptStore, c.ID, err)
		}
	}
	if err := l.cats.checkTree(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrCorruptStore, err)
	}
	for _, a := range s.Accounts {
		if err := l.accs.restore(a); err != nil {
			return nil, fmt.Errorf("%w: account %d: %v", core.ErrCorruptStore, a.ID, err)
		}
	}
	for _, t := range s.Transactions {
		// Soft-deleted rows may outlive their category or account;
		// only live rows must resolve.
		if !t.Deleted {
			if _, ok := l.cats.Get(t.CategoryID); !ok {
				return nil, fmt.Errorf("%w: transaction %d references missing category %d",
					core.ErrCorruptStore, t.ID, t.CategoryID)
			}
			if t.AccountID != 0 {
				if _, ok := l.accs.Get(t.AccountID); !ok {
					return nil, fmt.Errorf("%w: transaction %d references missing account %d",
						core.ErrCorruptStore, t.ID, t.AccountID)
				}
			}
		}
		if err := l.txs.restore(t); err != nil {
			return nil, fmt.Errorf("%w: transaction %d: %v", core.ErrCorruptStore, t.ID, err)
		}
	}
	return l, nil
}

// Snapshot converts the ledger back to its persistable form. Records are
// ordered by id so saves are deterministic.
func (l *Ledger) Snapshot() core.Snapshot {
	s := core.EmptySnapshot()
	s.Transactions = l.txs.all()
	s.Categories = l.cats.all()
	s.Accounts = l.accs.all()
	slices.SortFunc(s.Transactions, func(a, b core.Transaction) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Categories, func(a, b core.Category) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Accounts, func(a, b core.Account) int { return cmp.Compare(a.ID, b.ID) })
	return s
}

// Categories exposes the category registry.
func (l *Ledger) Categories() *CategoryRegistry { return l.cats }

// Accounts exposes the account registry.
func (l *Ledger) Accounts() *AccountRegistry { return l.accs }

// RecordTransaction validates and commits a new transaction, returning it
// with its assigned id.
func (l *Ledger) RecordTransaction(date core.Date, amountCents int64, categoryID, accountID int64, note string) (core.Transaction, error) {
	t := core.Transaction{
		Date:       date,
		Amount:     core.Money{Cents: amountCents},
		CategoryID: categoryID,
		AccountID:  accountID,
		Note:       note,
		CreatedAt:  l.now(),
		Version:    1,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if _, ok := l.cats.Get(categoryID); !ok {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrUnknownCategory, categoryID)
	}
	if accountID != 0 {
		if _, ok := l.accs.Get(accountID); !ok {
			return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrUnknownAccount, accountID)
		}
	}
	return l.txs.add(t), nil
}

// TransactionUpdate carries the editable fields of a transaction. Nil
// fields are left untouched.
type TransactionUpdate struct {
	Date       *core.Date
	Cents      *int64
	CategoryID *int64
	AccountID  *int64
	Note       *string
}

// UpdateTransaction edits a committed transaction in place. The id and
// creation time are preserved and the version is bumped.
func (l *Ledger) UpdateTransaction(id int64, upd TransactionUpdate) (core.Transaction, error) {
	t, ok := l.txs.get(id)
	if !ok || t.Deleted {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrUnknownTransaction, id)
	}
	if upd.Date != nil {
		t.Date = *upd.Date
	}
	if upd.Cents != nil {
		t.Amount = core.Money{Cents: *upd.Cents}
	}
	if upd.CategoryID != nil {
		t.CategoryID = *upd.CategoryID
	}
	if upd.AccountID != nil {
		t.AccountID = *upd.AccountID
	}
	if upd.Note != nil {
		t.Note = *upd.Note
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if _, ok := l.cats.Get(t.CategoryID); !ok {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrUnknownCategory, t.CategoryID)
	}
	if t.AccountID != 0 {
		if _, ok := l.accs.Get(t.AccountID); !ok {
			return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrUnknownAccount, t.AccountID)
		}
	}
	t.Version++
	l.txs.put(t)
	return t, nil
}

// RemoveTransaction soft-deletes a transaction. The record stays in the
// snapshot so historical state keeps round-tripping.
func (l *Ledger) RemoveTransaction(id int64) error {
	t, ok := l.txs.get(id)
	if !ok || t.Deleted {
		return fmt.Errorf("%w: id %d", core.ErrUnknownTransaction, id)
	}
	t.Deleted = true
	t.Version++
	l.txs.put(t)
	return nil
}

// Transaction returns a committed transaction by id.
func (l *Ledger) Transaction(id int64) (core.Transaction, bool) {
	t, ok := l.txs.get(id)
	if !ok || t.Deleted {
		return core.Transaction{}, false
	}
	return t, true
}

// DeleteCategory removes a category. It fails with ErrCategoryInUse while
// any non-deleted transaction references it or it still has children.
func (l *Ledger) DeleteCategory(id int64) error {
	if _, ok := l.cats.Get(id); !ok {
		return fmt.Errorf("%w: id %d", core.ErrUnknownCategory, id)
	}
	if l.txs.referencesCategory(id) {
		return fmt.Errorf("%w: category %d has transactions", core.ErrCategoryInUse, id)
	}
	return l.cats.delete(id)
}

// DeleteAccount removes an account, refusing while transactions reference it.
func (l *Ledger) DeleteAccount(id int64) error {
	if _, ok := l.accs.Get(id); !ok {
		return fmt.Errorf("%w: id %d", core.ErrUnknownAccount, id)
	}
	if l.txs.referencesAccount(id) {
		return fmt.Errorf("%w: account %d has transactions", core.ErrAccountInUse, id)
	}
	return l.accs.delete(id)
}
