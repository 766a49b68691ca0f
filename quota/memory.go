// Package quota provides LedgerStore implementations for the summarist
// quota ledger.
package quota

import (
	"context"
	"sync"

	"github.com/ineyio/summarist"
)

// MemoryStore is an in-memory LedgerStore. Ledgers in one process can share
// it.
type MemoryStore struct {
	mu    sync.Mutex
	state summarist.LedgerState
	adds  int
}

var _ summarist.LedgerStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding the given initial state.
func NewMemoryStore(initial summarist.LedgerState) *MemoryStore {
	return &MemoryStore{state: initial.Clone()}
}

func (s *MemoryStore) Load(context.Context) (summarist.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

func (s *MemoryStore) Add(_ context.Context, day, providerID string, delta, limit int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adds++
	used, ok := summarist.ApplyAdd(&s.state, day, providerID, delta, limit)
	return used, ok, nil
}

// Adds returns how many times Add was called.
func (s *MemoryStore) Adds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adds
}
