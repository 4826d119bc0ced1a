// Package memory is an in-process SummaryWriter used by tests and local
// runs without a spreadsheet configured.
package memory

import (
	"context"
	"sync"

	"coppia/internal/export"
)

type Store struct {
	mu    sync.Mutex
	items []export.MonthlySummary
}

func New() *Store {
	return &Store{}
}

var _ export.SummaryWriter = (*Store)(nil)

func (s *Store) WriteMonthlySummary(_ context.Context, sum export.MonthlySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, sum)
	return nil
}

// Summaries returns a copy of everything written so far.
func (s *Store) Summaries() []export.MonthlySummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]export.MonthlySummary(nil), s.items...)
}
