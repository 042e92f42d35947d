package memory

import (
	"context"
	"sync"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
)

// EquityStore is an in-memory implementation of storage.EquityStore.
type EquityStore struct {
	mu   sync.RWMutex
	data map[string][]domain.EquityPoint // keyed by run_id
}

// NewEquityStore creates a new in-memory equity curve store.
func NewEquityStore() *EquityStore {
	return &EquityStore{
		data: make(map[string][]domain.EquityPoint),
	}
}

// InsertBulk stores the curve of runID. Returns ErrDuplicateKey if one exists.
func (s *EquityStore) InsertBulk(_ context.Context, runID string, points []domain.EquityPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[runID] = append([]domain.EquityPoint(nil), points...)
	return nil
}

// GetByRunID retrieves the curve of runID in insertion order.
func (s *EquityStore) GetByRunID(_ context.Context, runID string) ([]domain.EquityPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.EquityPoint(nil), s.data[runID]...), nil
}

var _ storage.EquityStore = (*EquityStore)(nil)
