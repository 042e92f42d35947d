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

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.EarningsEvent // keyed by (instrument, date)
}

// NewEventStore creates a new in-memory earnings store.
func NewEventStore() *EventStore {
	return &EventStore{
		data: make(map[string]*domain.EarningsEvent),
	}
}

func eventKey(instrument string, date time.Time) string {
	return fmt.Sprintf("%s|%s", instrument, date.Format("2006-01-02"))
}

// InsertBulk adds multiple events. Fails entire batch on duplicate.
func (s *EventStore) InsertBulk(_ context.Context, events []*domain.EarningsEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.Instrument == "" || e.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		key := eventKey(e.Instrument, e.Date)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, e := range events {
		eventCopy := *e
		s.data[eventKey(e.Instrument, e.Date)] = &eventCopy
	}

	return nil
}

// Events retrieves event dates within [start, end] (inclusive), ordered ASC.
func (s *EventStore) Events(_ context.Context, instrument string, start, end time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []time.Time
	for _, e := range s.data {
		if e.Instrument == instrument && !e.Date.Before(start) && !e.Date.After(end) {
			result = append(result, e.Date)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Before(result[j])
	})

	return result, nil
}

var _ storage.EventStore = (*EventStore)(nil)
