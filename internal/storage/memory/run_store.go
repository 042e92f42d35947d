package memory

import (
	"context"
	"sort"
	"sync"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
)

// RunStore is an in-memory implementation of storage.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RunSnapshot // keyed by run_id
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.RunSnapshot),
	}
}

// Insert adds a run snapshot. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(_ context.Context, r *domain.RunSnapshot) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RunID] = cloneRun(r)
	return nil
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(_ context.Context, runID string) (*domain.RunSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneRun(r), nil
}

// List retrieves all runs, newest first.
func (s *RunStore) List(_ context.Context) ([]*domain.RunSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RunSnapshot, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, cloneRun(r))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

// cloneRun copies r including its slices.
func cloneRun(r *domain.RunSnapshot) *domain.RunSnapshot {
	c := *r
	c.Instruments = append([]string(nil), r.Instruments...)
	c.Excluded = append([]string(nil), r.Excluded...)
	return &c
}

var _ storage.RunStore = (*RunStore)(nil)
