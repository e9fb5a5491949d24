// Package memstore provides an in-memory implementation of caseflow.Store.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/linnemanlabs/recourse/internal/caseflow"
)

// Store holds case checkpoints in memory. Suitable for dev/testing.
// States are stored serialized so callers never share memory with the
// store, matching the isolation the durable stores give.
type Store struct {
	mu    sync.RWMutex
	cases map[string][]byte // case ID -> JSON-encoded state
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{cases: make(map[string][]byte)}
}

// Save checkpoints the case state, replacing any previous checkpoint.
func (s *Store) Save(_ context.Context, st *caseflow.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("memstore: encode case %s: %w", st.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[st.ID] = raw
	return nil
}

// Load retrieves a case checkpoint by ID. Returns a copy.
func (s *Store) Load(_ context.Context, id string) (*caseflow.State, bool, error) {
	s.mu.RLock()
	raw, ok := s.cases[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	var st caseflow.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, false, fmt.Errorf("memstore: decode case %s: %w", id, err)
	}
	return &st, true, nil
}
