// Package persist stores ledger snapshots as plain record files.
//
// Each record type lives in its own CSV file under the data directory and
// every row starts with a format-version tag so the layout can evolve.
// Saves go through a temp file in the same directory followed by a rename,
// so a crash mid-write never damages the previous valid state.
package persist

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"registro/internal/core"
)

const (
	transactionsFile = "transactions.csv"
	categoriesFile   = "categories.csv"
	accountsFile     = "accounts.csv"
)

type FileStore struct {
	dir string
}

// NewFileStore opens (creating if needed) a data directory.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads the three record files. Missing files mean a fresh ledger;
// malformed content is reported as ErrCorruptStore with file and line.
func (s *FileStore) Load(_ context.Context) (core.Snapshot, error) {
	snap := core.EmptySnapshot()

	if err := s.readFile(categoriesFile, func(line int, rec []string) error {
		c, err := decodeCategory(rec)
		if err != nil {
			return err
		}
		snap.Categories = append(snap.Categories, c)
		return nil
	}); err != nil {
		return core.Snapshot{}, err
	}

	if err := s.readFile(accountsFile, func(line int, rec []string) error {
		a, err := decodeAccount(rec)
		if err != nil {
			return err
		}
		snap.Accounts = append(snap.Accounts, a)
		return nil
	}); err != nil {
		return core.Snapshot{}, err
	}

	if err := s.readFile(transactionsFile, func(line int, rec []string) error {
		t, err := decodeTransaction(rec)
		if err != nil {
			return err
		}
		snap.Transactions = append(snap.Transactions, t)
		return nil
	}); err != nil {
		return core.Snapshot{}, err
	}

	return snap, nil
}

// Save writes the snapshot atomically, one temp-then-rename per file.
func (s *FileStore) Save(_ context.Context, snap core.Snapshot) error {
	catRows := make([][]string, 0, len(snap.Categories))
	for _, c := range snap.Categories {
		catRows = append(catRows, encodeCategory(c))
	}
	accRows := make([][]string, 0, len(snap.Accounts))
	for _, a := range snap.Accounts {
		accRows = append(accRows, encodeAccount(a))
	}
	txRows := make([][]string, 0, len(snap.Transactions))
	for _, t := range snap.Transactions {
		txRows = append(txRows, encodeTransaction(t))
	}

	if err := s.writeFile(categoriesFile, catRows); err != nil {
		return err
	}
	if err := s.writeFile(accountsFile, accRows); err != nil {
		return err
	}
	if err := s.writeFile(transactionsFile, txRows); err != nil {
		return err
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) readFile(name string, row func(line int, rec []string) error) error {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // field count checked per record kind
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrCorruptStore, name, err)
	}
	for i, rec := range records {
		if err := row(i+1, rec); err != nil {
			return fmt.Errorf("%w: %s line %d: %v", core.ErrCorruptStore, name, i+1, err)
		}
	}
	return nil
}

func (s *FileStore) writeFile(name string, rows [][]string) error {
	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// Row layouts. The leading field of every row is the format version.

func encodeTransaction(t core.Transaction) []string {
	return []string{
		strconv.Itoa(core.SnapshotFormatVersion),
		strconv.FormatInt(t.ID, 10),
		t.Date.String(),
		strconv.FormatInt(t.Amount.Cents, 10),
		strconv.FormatInt(t.CategoryID, 10),
		strconv.FormatInt(t.AccountID, 10),
		t.Note,
		t.CreatedAt.UTC().Format(time.RFC3339),
		strconv.FormatInt(t.Version, 10),
		strconv.FormatBool(t.Deleted),
	}
}

func decodeTransaction(rec []string) (core.Transaction, error) {
	if len(rec) != 10 {
		return core.Transaction{}, fmt.Errorf("expected 10 fields, got %d", len(rec))
	}
	if err := checkFormatVersion(rec[0]); err != nil {
		return core.Transaction{}, err
	}
	id, err := strconv.ParseInt(rec[1], 10, 64)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("id: %v", err)
	}
	date, err := core.ParseDate(rec[2])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("date %q", rec[2])
	}
	cents, err := strconv.ParseInt(rec[3], 10, 64)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount: %v", err)
	}
	categoryID, err := strconv.ParseInt(rec[4], 10, 64)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("category id: %v", err)
	}
	accountID, err := strconv.ParseInt(rec[5], 10, 64)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("account id: %v", err)
	}
	createdAt, err := time.Parse(time.RFC3339, rec[7])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("created_at: %v", err)
	}
	version, err := strconv.ParseInt(rec[8], 10, 64)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("version: %v", err)
	}
	deleted, err := strconv.ParseBool(rec[9])
	if err != nil {
		return core.Transaction{}, fmt.Errorf("deleted: %v", err)
	}
	return core.Transaction{
		ID:         id,
		Date:       date,
		Amount:     core.Money{Cents: cents},
		CategoryID: categoryID,
		AccountID:  accountID,
		Note:       rec[6],
		CreatedAt:  createdAt,
		Version:    version,
		Deleted:    deleted,
	}, nil
}

func encodeCategory(c core.Category) []string {
	return []string{
		strconv.Itoa(core.SnapshotFormatVersion),
		strconv.FormatInt(c.ID, 10),
		c.Name,
		string(c.Kind),
		strconv.FormatInt(c.ParentID, 10),
		c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func decodeCategory(rec []string) (core.Category, error) {
	if len(rec) != 6 {
		return core.Category{}, fmt.Errorf("expected 6 fields, got %d", len(rec))
	}
	if err := checkFormatVersion(rec[0]); err != nil {
		return core.Category{}, err
	}
	id, err := strconv.ParseInt(rec[1], 10, 64)
	if err != nil {
		return core.Category{}, fmt.Errorf("id: %v", err)
	}
	kind := core.Kind(rec[3])
	if !kind.Valid() {
		return core.Category{}, fmt.Errorf("kind %q", rec[3])
	}
	parentID, err := strconv.ParseInt(rec[4], 10, 64)
	if err != nil {
		return core.Category{}, fmt.Errorf("parent id: %v", err)
	}
	createdAt, err := time.Parse(time.RFC3339, rec[5])
	if err != nil {
		return core.Category{}, fmt.Errorf("created_at: %v", err)
	}
	return core.Category{
		ID:        id,
		Name:      rec[2],
		Kind:      kind,
		ParentID:  parentID,
		CreatedAt: createdAt,
	}, nil
}

func encodeAccount(a core.Account) []string {
	return []string{
		strconv.Itoa(core.SnapshotFormatVersion),
		strconv.FormatInt(a.ID, 10),
		a.Name,
		string(a.Type),
		a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func decodeAccount(rec []string) (core.Account, error) {
	if len(rec) != 5 {
		return core.Account{}, fmt.Errorf("expected 5 fields, got %d", len(rec))
	}
	if err := checkFormatVersion(rec[0]); err != nil {
		return core.Account{}, err
	}
	id, err := strconv.ParseInt(rec[1], 10, 64)
	if err != nil {
		return core.Account{}, fmt.Errorf("id: %v", err)
	}
	typ := core.AccountType(rec[3])
	if !typ.Valid() {
		return core.Account{}, fmt.Errorf("type %q", rec[3])
	}
	createdAt, err := time.Parse(time.RFC3339, rec[4])
	if err != nil {
		return core.Account{}, fmt.Errorf("created_at: %v", err)
	}
	return core.Account{
		ID:        id,
		Name:      rec[2],
		Type:      typ,
		CreatedAt: createdAt,
	}, nil
}

func checkFormatVersion(field string) error {
	v, err := strconv.Atoi(field)
	if err != nil {
		return fmt.Errorf("format version %q", field)
	}
	if v < 1 || v > core.SnapshotFormatVersion {
		return fmt.Errorf("unsupported format version %d", v)
	}
	return nil
}
