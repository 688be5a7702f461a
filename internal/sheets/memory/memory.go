// Package memory is an in-process LedgerWriter for tests and for running
// the worker without spreadsheet credentials.
package memory

import (
	"context"
	"slices"
	"sync"

	"saifuu/internal/sheets"
)

var _ sheets.LedgerWriter = (*Store)(nil)

type Store struct {
	mu      sync.Mutex
	entries map[int64]sheets.Entry
	writes  int
}

func New() *Store {
	return &Store{entries: make(map[int64]sheets.Entry)}
}

func (s *Store) Upsert(_ context.Context, e sheets.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Transaction.ID] = e
	s.writes++
	return nil
}

func (s *Store) Remove(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		delete(s.entries, id)
		s.writes++
	}
	return nil
}

// Get returns the entry mirrored for transaction id.
func (s *Store) Get(id int64) (sheets.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Rows renders the ledger as the sheet would show it, header first and
// ordered by transaction id.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	rows := [][]any{sheets.Header}
	for _, id := range ids {
		rows = append(rows, sheets.Row(s.entries[id]))
	}
	return rows
}

// Writes counts the calls that changed the ledger.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
