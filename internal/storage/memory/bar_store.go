package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
)

// BarStore is an in-memory implementation of storage.BarStore.
type BarStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BarRecord // keyed by (instrument, resolution, timestamp_ms)
}

// NewBarStore creates a new in-memory bar store.
func NewBarStore() *BarStore {
	return &BarStore{
		data: make(map[string]*domain.BarRecord),
	}
}

// barKey generates a unique key for a bar.
func barKey(instrument string, res domain.Resolution, timestampMs int64) string {
	return fmt.Sprintf("%s|%s|%d", instrument, res, timestampMs)
}

// InsertBulk adds multiple bars. Fails entire batch on duplicate.
func (s *BarStore) InsertBulk(_ context.Context, bars []*domain.BarRecord) error {
	if len(bars) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(bars))

	// First pass: check for duplicates (existing + intra-batch)
	for _, b := range bars {
		if b == nil || b.Instrument == "" || b.Resolution == "" {
			return storage.ErrInvalidInput
		}
		key := barKey(b.Instrument, b.Resolution, b.Timestamp.UnixMilli())

		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, b := range bars {
		key := barKey(b.Instrument, b.Resolution, b.Timestamp.UnixMilli())
		barCopy := *b
		s.data[key] = &barCopy
	}

	return nil
}

// Fetch retrieves bars within [start, end] (inclusive), ordered by timestamp ASC.
// Returns (nil, nil) when nothing matches.
func (s *BarStore) Fetch(_ context.Context, instrument string, start, end time.Time, res domain.Resolution) ([]domain.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Bar
	for _, b := range s.data {
		if b.Instrument != instrument || b.Resolution != res {
			continue
		}
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		result = append(result, b.Bar)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

// Instruments lists instruments having bars at res, sorted.
func (s *BarStore) Instruments(_ context.Context, res domain.Resolution) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, b := range s.data {
		if b.Resolution == res {
			seen[b.Instrument] = struct{}{}
		}
	}
	result := make([]string, 0, len(seen))
	for inst := range seen {
		result = append(result, inst)
	}
	sort.Strings(result)

	return result, nil
}

// GetGlobalTimeRange returns min and max bar timestamps across all data.
func (s *BarStore) GetGlobalTimeRange(_ context.Context) (minTs, maxTs time.Time, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := true
	for _, b := range s.data {
		if first {
			minTs, maxTs = b.Timestamp, b.Timestamp
			first = false
			continue
		}
		if b.Timestamp.Before(minTs) {
			minTs = b.Timestamp
		}
		if b.Timestamp.After(maxTs) {
			maxTs = b.Timestamp
		}
	}

	return minTs, maxTs, nil
}

var _ storage.BarStore = (*BarStore)(nil)
