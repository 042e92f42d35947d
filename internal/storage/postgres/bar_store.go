package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
)

// BarStore implements storage.BarStore using PostgreSQL.
type BarStore struct {
	pool *Pool
}

// NewBarStore creates a new BarStore.
func NewBarStore(pool *Pool) *BarStore {
	return &BarStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

// InsertBulk copies bars in one transaction. Fails entire batch on any duplicate.
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.BarRecord) error {
	if len(bars) == 0 {
		return nil
	}
	for _, b := range bars {
		if b == nil || b.Instrument == "" || b.Resolution == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"ohlcv_bars"},
		[]string{"instrument", "resolution", "timestamp_ms", "open", "high", "low", "close", "volume"},
		pgx.CopyFromSlice(len(bars), func(i int) ([]any, error) {
			b := bars[i]
			return []any{
				b.Instrument, string(b.Resolution), b.Timestamp.UnixMilli(),
				b.Open, b.High, b.Low, b.Close, b.Volume,
			}, nil
		}),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("copy bars: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Fetch retrieves bars within [start, end] (inclusive), ordered by timestamp ASC.
func (s *BarStore) Fetch(ctx context.Context, instrument string, start, end time.Time, res domain.Resolution) ([]domain.Bar, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM ohlcv_bars
		WHERE instrument = $1 AND resolution = $2
		  AND timestamp_ms >= $3 AND timestamp_ms <= $4
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, instrument, string(res), start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("fetch bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		var tsMs int64
		if err := rows.Scan(&tsMs, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}
		b.Timestamp = time.UnixMilli(tsMs).UTC()
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}

// Instruments lists instruments having bars at res, sorted.
func (s *BarStore) Instruments(ctx context.Context, res domain.Resolution) ([]string, error) {
	query := `
		SELECT DISTINCT instrument
		FROM ohlcv_bars
		WHERE resolution = $1
		ORDER BY instrument ASC
	`

	rows, err := s.pool.Query(ctx, query, string(res))
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	instruments, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect instruments: %w", err)
	}
	return instruments, nil
}
