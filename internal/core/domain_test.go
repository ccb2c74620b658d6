package core

import (
	"errors"
	"strings"
	"testing"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-01-05")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Year() != 2024 || int(d.Month()) != 1 || d.Day() != 5 {
		t.Fatalf("unexpected date components: %v", d)
	}
	if d.String() != "2024-01-05" {
		t.Fatalf("String() = %q", d.String())
	}

	for _, bad := range []string{"", "2024-13-01", "05/01/2024", "2024-02-30"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("ParseDate(%q) expected ErrInvalidDate, got %v", bad, err)
		}
	}
}

func TestDateOrdering(t *testing.T) {
	a := NewDate(2024, 1, 5)
	b := NewDate(2024, 1, 31)
	if !a.OnOrBefore(b) || !b.OnOrAfter(a) {
		t.Fatal("ordering helpers disagree")
	}
	if !a.OnOrBefore(a) || !a.OnOrAfter(a) {
		t.Fatal("ordering helpers must be inclusive")
	}
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		Date:       NewDate(2024, 1, 5),
		Amount:     Money{Cents: -4200},
		CategoryID: 1,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}

	zero := valid
	zero.Amount = Money{}
	if err := zero.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero amount: got %v", err)
	}

	noCat := valid
	noCat.CategoryID = 0
	if err := noCat.Validate(); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("missing category: got %v", err)
	}

	noDate := valid
	noDate.Date = Date{}
	if err := noDate.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("zero date: got %v", err)
	}

	longNote := valid
	longNote.Note = strings.Repeat("x", MaxNoteLen+1)
	if err := longNote.Validate(); !errors.Is(err, ErrNoteTooLong) {
		t.Fatalf("long note: got %v", err)
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{Name: "Groceries", Kind: KindExpense}).Validate(); err != nil {
		t.Fatalf("valid category rejected: %v", err)
	}
	if err := (Category{Name: "  ", Kind: KindExpense}).Validate(); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("blank name: got %v", err)
	}
	if err := (Category{Name: "x", Kind: "both"}).Validate(); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("bad kind: got %v", err)
	}
}

func TestAccountValidate(t *testing.T) {
	if err := (Account{Name: "Wallet", Type: AccountCash}).Validate(); err != nil {
		t.Fatalf("valid account rejected: %v", err)
	}
	if err := (Account{Name: "Wallet", Type: "stocks"}).Validate(); !errors.Is(err, ErrInvalidAccountType) {
		t.Fatalf("bad type: got %v", err)
	}
}

func TestPeriodSummaryNet(t *testing.T) {
	s := PeriodSummary{IncomeCents: 10000, ExpenseCents: -4200}
	if s.NetCents() != 5800 {
		t.Fatalf("NetCents = %d, want 5800", s.NetCents())
	}
}
