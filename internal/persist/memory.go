package persist

import (
	"context"
	"sync"

	"registro/internal/core"
)

// MemoryStore keeps the last saved snapshot in memory. It backs tests and
// throwaway runs where durability does not matter.
type MemoryStore struct {
	mu   sync.Mutex
	snap core.Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snap: core.EmptySnapshot()}
}

func (s *MemoryStore) Load(_ context.Context) (core.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSnapshot(s.snap), nil
}

func (s *MemoryStore) Save(_ context.Context, snap core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = cloneSnapshot(snap)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneSnapshot(in core.Snapshot) core.Snapshot {
	out := in
	out.Transactions = append([]core.Transaction(nil), in.Transactions...)
	out.Categories = append([]core.Category(nil), in.Categories...)
	out.Accounts = append([]core.Account(nil), in.Accounts...)
	return out
}
