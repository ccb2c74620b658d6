package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"registro/internal/core"
)

// AccountRegistry is a flat arena of account records.
type AccountRegistry struct {
	byID   map[int64]core.Account
	nextID int64
	now    func() time.Time
}

func newAccountRegistry() *AccountRegistry {
	return &AccountRegistry{
		byID:   make(map[int64]core.Account),
		nextID: 1,
		now:    time.Now,
	}
}

// Create adds an account with a unique name.
func (r *AccountRegistry) Create(name string, typ core.AccountType) (core.Account, error) {
	a := core.Account{
		Name:      strings.TrimSpace(name),
		Type:      typ,
		CreatedAt: r.now(),
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if r.nameTaken(a.Name, 0) {
		return core.Account{}, fmt.Errorf("%w: %q", core.ErrDuplicateName, a.Name)
	}
	a.ID = r.nextID
	r.nextID++
	r.byID[a.ID] = a
	return a, nil
}

// Rename changes an account's name, keeping names unique.
func (r *AccountRegistry) Rename(id int64, name string) (core.Account, error) {
	a, ok := r.byID[id]
	if !ok {
		return core.Account{}, fmt.Errorf("%w: id %d", core.ErrUnknownAccount, id)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Account{}, core.ErrEmptyName
	}
	if r.nameTaken(name, id) {
		return core.Account{}, fmt.Errorf("%w: %q", core.ErrDuplicateName, name)
	}
	a.Name = name
	r.byID[id] = a
	return a, nil
}

func (r *AccountRegistry) delete(id int64) error {
	delete(r.byID, id)
	return nil
}

// Get returns an account by id.
func (r *AccountRegistry) Get(id int64) (core.Account, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// List returns all accounts ordered by name.
func (r *AccountRegistry) List() []core.Account {
	out := r.all()
	slices.SortFunc(out, func(a, b core.Account) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (r *AccountRegistry) all() []core.Account {
	out := make([]core.Account, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, a)
	}
	return out
}

func (r *AccountRegistry) nameTaken(name string, excludeID int64) bool {
	for _, a := range r.byID {
		if a.ID != excludeID && a.Name == name {
			return true
		}
	}
	return false
}

func (r *AccountRegistry) restore(a core.Account) error {
	if a.ID <= 0 {
		return fmt.Errorf("non-positive id")
	}
	if _, exists := r.byID[a.ID]; exists {
		return fmt.Errorf("duplicate id")
	}
	if err := a.Validate(); err != nil {
		return err
	}
	r.byID[a.ID] = a
	if a.ID >= r.nextID {
		r.nextID = a.ID + 1
	}
	return nil
}
