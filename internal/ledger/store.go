package ledger

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"registro/internal/core"
)

// txStore is an arena of transaction records indexed by id. IDs are
// assigned monotonically, so id order doubles as insertion order.
type txStore struct {
	byID   map[int64]core.Transaction
	nextID int64
}

func newTxStore() *txStore {
	return &txStore{byID: make(map[int64]core.Transaction), nextID: 1}
}

func (s *txStore) add(t core.Transaction) core.Transaction {
	t.ID = s.nextID
	s.nextID++
	s.byID[t.ID] = t
	return t
}

func (s *txStore) restore(t core.Transaction) error {
	if t.ID <= 0 {
		return fmt.Errorf("non-positive id")
	}
	if _, exists := s.byID[t.ID]; exists {
		return fmt.Errorf("duplicate id")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	s.byID[t.ID] = t
	if t.ID >= s.nextID {
		s.nextID = t.ID + 1
	}
	return nil
}

func (s *txStore) get(id int64) (core.Transaction, bool) {
	t, ok := s.byID[id]
	return t, ok
}

func (s *txStore) put(t core.Transaction) {
	s.byID[t.ID] = t
}

func (s *txStore) all() []core.Transaction {
	out := make([]core.Transaction, 0, len(s.byID))
	for _, t := range s.byID {
		out = append(out, t)
	}
	return out
}

func (s *txStore) referencesCategory(categoryID int64) bool {
	for _, t := range s.byID {
		if !t.Deleted && t.CategoryID == categoryID {
			return true
		}
	}
	return false
}

func (s *txStore) referencesAccount(accountID int64) bool {
	for _, t := range s.byID {
		if !t.Deleted && t.AccountID == accountID {
			return true
		}
	}
	return false
}

// Filter narrows a transaction listing. Zero values leave a dimension
// unbounded.
type Filter struct {
	From           core.Date
	To             core.Date
	CategoryID     int64
	AccountID      int64
	IncludeDeleted bool
}

func (f Filter) matches(t core.Transaction) bool {
	if t.Deleted && !f.IncludeDeleted {
		return false
	}
	if !f.From.IsZero() && !t.Date.OnOrAfter(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Date.OnOrBefore(f.To) {
		return false
	}
	if f.CategoryID != 0 && t.CategoryID != f.CategoryID {
		return false
	}
	if f.AccountID != 0 && t.AccountID != f.AccountID {
		return false
	}
	return true
}

// Transactions returns the matching entries ordered by date ascending,
// ties broken by insertion order. The sequence is restartable: every
// range re-reads the current state.
func (l *Ledger) Transactions(f Filter) iter.Seq[core.Transaction] {
	return func(yield func(core.Transaction) bool) {
		matched := make([]core.Transaction, 0, len(l.txs.byID))
		for _, t := range l.txs.byID {
			if f.matches(t) {
				matched = append(matched, t)
			}
		}
		slices.SortFunc(matched, func(a, b core.Transaction) int {
			if c := a.Date.Compare(b.Date.Time); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		for _, t := range matched {
			if !yield(t) {
				return
			}
		}
	}
}

// ListTransactions collects the filtered sequence into a slice.
func (l *Ledger) ListTransactions(f Filter) []core.Transaction {
	var out []core.Transaction
	for t := range l.Transactions(f) {
		out = append(out, t)
	}
	return out
}
