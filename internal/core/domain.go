package core

import (
	"errors"
	"strings"
	"time"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

const (
	AccountCash   AccountType = "cash"
	AccountDebit  AccountType = "debit"
	AccountCredit AccountType = "credit"
	AccountOther  AccountType = "other"
)

// SnapshotFormatVersion tags every persisted record so the on-disk
// layout can evolve without breaking older files.
const SnapshotFormatVersion = 1

type (
	// Kind classifies a category tree as income or expense.
	Kind string

	// AccountType distinguishes how money is held.
	AccountType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID         int64
		Date       Date
		Amount     Money // signed minor units, never zero
		CategoryID int64
		AccountID  int64 // 0 when no account is set
		Note       string
		CreatedAt  time.Time
		Version    int64
		Deleted    bool
	}

	Category struct {
		ID        int64
		Name      string
		Kind      Kind
		ParentID  int64 // 0 for roots
		CreatedAt time.Time
	}

	Account struct {
		ID        int64
		Name      string
		Type      AccountType
		CreatedAt time.Time
	}

	// Snapshot is the explicit ledger state handed across the
	// persistence boundary. Derived values (balances, totals) are
	// never part of it.
	Snapshot struct {
		FormatVersion int
		Transactions  []Transaction
		Categories    []Category
		Accounts      []Account
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidKind        = errors.New("invalid category kind")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrEmptyName          = errors.New("empty name")
	ErrNoteTooLong        = errors.New("note too long")

	ErrUnknownCategory    = errors.New("unknown category")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrUnknownTransaction = errors.New("unknown transaction")

	ErrDuplicateName = errors.New("duplicate name")
	ErrCategoryInUse = errors.New("category in use")
	ErrAccountInUse  = errors.New("account in use")
	ErrCycleDetected = errors.New("cycle detected")
	ErrKindMismatch  = errors.New("kind mismatch")

	ErrCorruptStore = errors.New("corrupt store")
)

// MaxNoteLen bounds free-text notes on transactions.
const MaxNoteLen = 200

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

func (at AccountType) Valid() bool {
	switch at {
	case AccountCash, AccountDebit, AccountCredit, AccountOther:
		return true
	}
	return false
}

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the canonical YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	// time.Date normalizes out-of-range components; reject dates that
	// normalized away from what a caller could have meant.
	year := d.Time.Year()
	if year < 1 || year > 9999 {
		return ErrInvalidDate
	}
	return nil
}

// String returns the canonical YYYY-MM-DD form.
func (d Date) String() string {
	return d.Time.Format("2006-01-02")
}

// OnOrBefore reports whether d is not after other.
func (d Date) OnOrBefore(other Date) bool {
	return !d.Time.After(other.Time)
}

// OnOrAfter reports whether d is not before other.
func (d Date) OnOrAfter(other Date) bool {
	return !d.Time.Before(other.Time)
}

func (m Money) Validate() error {
	if m.Cents == 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxAmountCents || m.Cents < -MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.CategoryID <= 0 {
		return ErrUnknownCategory
	}
	if len(t.Note) > MaxNoteLen {
		return ErrNoteTooLong
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}

// EmptySnapshot returns a snapshot of the current format with no records.
func EmptySnapshot() Snapshot {
	return Snapshot{FormatVersion: SnapshotFormatVersion}
}
