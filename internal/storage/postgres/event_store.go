package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
)

// EventStore implements storage.EventStore using PostgreSQL.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.EventStore = (*EventStore)(nil)

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *EventStore) InsertBulk(ctx context.Context, events []*domain.EarningsEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO earnings (instrument, event_date) VALUES ($1, $2)`

	batch := &pgx.Batch{}
	for _, e := range events {
		if e == nil || e.Instrument == "" || e.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		batch.Queue(query, e.Instrument, civilDate(e.Date))
	}

	br := tx.SendBatch(ctx, batch)
	for range events {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert earnings event: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Events retrieves event dates within [start, end] (inclusive), ordered ASC.
func (s *EventStore) Events(ctx context.Context, instrument string, start, end time.Time) ([]time.Time, error) {
	query := `
		SELECT event_date
		FROM earnings
		WHERE instrument = $1 AND event_date >= $2 AND event_date <= $3
		ORDER BY event_date ASC
	`

	rows, err := s.pool.Query(ctx, query, instrument, civilDate(start), civilDate(end))
	if err != nil {
		return nil, fmt.Errorf("query earnings: %w", err)
	}
	defer rows.Close()

	dates, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("collect earnings: %w", err)
	}
	for i, d := range dates {
		dates[i] = civilDate(d)
	}
	return dates, nil
}

// civilDate truncates t to its calendar date at UTC midnight.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
