package storage

import (
	"context"
	"sync"

	"github.com/Subicson333/verify/internal/domain"
)

// MemoryStore keeps cases in process memory. List returns insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	cases map[string]domain.Case
	order []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cases: make(map[string]domain.Case)}
}

func (s *MemoryStore) Get(_ context.Context, caseID string) (domain.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok {
		return domain.Case{}, domain.ErrCaseNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, c domain.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.cases[c.CaseID]
	if c.Version != prev.Version+1 {
		return domain.ErrVersionConflict
	}
	if !ok {
		s.order = append(s.order, c.CaseID)
	}
	s.cases[c.CaseID] = c.Clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Case, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.cases[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
