package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"registro/internal/core"
)

// CategoryRegistry is an arena of category records linked by parent ids.
// Keeping the links as ids (never pointers) makes cycle detection a plain
// walk and avoids cyclic ownership.
type CategoryRegistry struct {
	byID   map[int64]core.Category
	nextID int64
	now    func() time.Time
}

func newCategoryRegistry() *CategoryRegistry {
	return &CategoryRegistry{
		byID:   make(map[int64]core.Category),
		nextID: 1,
		now:    time.Now,
	}
}

// Create adds a category. A child must carry the same kind as its parent;
// the name must be unique among the parent's direct children.
func (r *CategoryRegistry) Create(name string, kind core.Kind, parentID int64) (core.Category, error) {
	c := core.Category{
		Name:      strings.TrimSpace(name),
		Kind:      kind,
		ParentID:  parentID,
		CreatedAt: r.now(),
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if parentID != 0 {
		parent, ok := r.byID[parentID]
		if !ok {
			return core.Category{}, fmt.Errorf("%w: parent id %d", core.ErrUnknownCategory, parentID)
		}
		if parent.Kind != kind {
			return core.Category{}, fmt.Errorf("%w: parent %q is %s", core.ErrKindMismatch, parent.Name, parent.Kind)
		}
	}
	if r.nameTaken(c.Name, parentID, 0) {
		return core.Category{}, fmt.Errorf("%w: %q under parent %d", core.ErrDuplicateName, c.Name, parentID)
	}
	c.ID = r.nextID
	r.nextID++
	r.byID[c.ID] = c
	return c, nil
}

// Rename changes a category's name, keeping it unique among siblings.
func (r *CategoryRegistry) Rename(id int64, name string) (core.Category, error) {
	c, ok := r.byID[id]
	if !ok {
		return core.Category{}, fmt.Errorf("%w: id %d", core.ErrUnknownCategory, id)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, core.ErrEmptyName
	}
	if r.nameTaken(name, c.ParentID, id) {
		return core.Category{}, fmt.Errorf("%w: %q under parent %d", core.ErrDuplicateName, name, c.ParentID)
	}
	c.Name = name
	r.byID[id] = c
	return c, nil
}

// Reparent moves a category under a new parent. Moving a node under one
// of its own descendants (or itself) fails with ErrCycleDetected.
func (r *CategoryRegistry) Reparent(id, newParentID int64) (core.Category, error) {
	c, ok := r.byID[id]
	if !ok {
		return core.Category{}, fmt.Errorf("%w: id %d", core.ErrUnknownCategory, id)
	}
	if newParentID != 0 {
		parent, ok := r.byID[newParentID]
		if !ok {
			return core.Category{}, fmt.Errorf("%w: parent id %d", core.ErrUnknownCategory, newParentID)
		}
		if parent.Kind != c.Kind {
			return core.Category{}, fmt.Errorf("%w: parent %q is %s", core.ErrKindMismatch, parent.Name, parent.Kind)
		}
		// Walk up from the new parent; finding id means a cycle.
		for cur := newParentID; cur != 0; {
			if cur == id {
				return core.Category{}, fmt.Errorf("%w: %d is an ancestor of %d", core.ErrCycleDetected, id, newParentID)
			}
			cur = r.byID[cur].ParentID
		}
	}
	if r.nameTaken(c.Name, newParentID, id) {
		return core.Category{}, fmt.Errorf("%w: %q under parent %d", core.ErrDuplicateName, c.Name, newParentID)
	}
	c.ParentID = newParentID
	r.byID[id] = c
	return c, nil
}

func (r *CategoryRegistry) delete(id int64) error {
	for _, c := range r.byID {
		if c.ParentID == id {
			return fmt.Errorf("%w: category %d has children", core.ErrCategoryInUse, id)
		}
	}
	delete(r.byID, id)
	return nil
}

// Get returns a category by id.
func (r *CategoryRegistry) Get(id int64) (core.Category, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// List returns all categories ordered by kind, then name.
func (r *CategoryRegistry) List() []core.Category {
	out := r.all()
	slices.SortFunc(out, func(a, b core.Category) int {
		if a.Kind != b.Kind {
			return strings.Compare(string(a.Kind), string(b.Kind))
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Children returns the direct children of a category, name-ordered.
func (r *CategoryRegistry) Children(id int64) []core.Category {
	var out []core.Category
	for _, c := range r.byID {
		if c.ParentID == id {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b core.Category) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (r *CategoryRegistry) all() []core.Category {
	out := make([]core.Category, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

func (r *CategoryRegistry) nameTaken(name string, parentID, excludeID int64) bool {
	for _, c := range r.byID {
		if c.ID != excludeID && c.ParentID == parentID && c.Name == name {
			return true
		}
	}
	return false
}

// restore inserts a persisted record without tree checks; checkTree runs
// once after all rows are in.
func (r *CategoryRegistry) restore(c core.Category) error {
	if c.ID <= 0 {
		return fmt.Errorf("non-positive id")
	}
	if _, exists := r.byID[c.ID]; exists {
		return fmt.Errorf("duplicate id")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	r.byID[c.ID] = c
	if c.ID >= r.nextID {
		r.nextID = c.ID + 1
	}
	return nil
}

// checkTree verifies parent links: every parent exists, kinds agree along
// the tree, and no parent chain loops.
func (r *CategoryRegistry) checkTree() error {
	for id, c := range r.byID {
		seen := map[int64]bool{id: true}
		for cur := c.ParentID; cur != 0; {
			parent, ok := r.byID[cur]
			if !ok {
				return fmt.Errorf("category %d references missing parent %d", id, cur)
			}
			if parent.Kind != c.Kind {
				return fmt.Errorf("category %d kind %s disagrees with ancestor %d kind %s", id, c.Kind, cur, parent.Kind)
			}
			if seen[cur] {
				return fmt.Errorf("category %d has a parent cycle", id)
			}
			seen[cur] = true
			cur = parent.ParentID
		}
	}
	return nil
}
