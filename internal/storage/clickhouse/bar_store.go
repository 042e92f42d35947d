package clickhouse

import (
	"context"
	"fmt"
	"time"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
)

// BarStore implements storage.BarStore using ClickHouse.
type BarStore struct {
	conn *Conn
}

// NewBarStore creates a new BarStore.
func NewBarStore(conn *Conn) *BarStore {
	return &BarStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BarStore = (*BarStore)(nil)

type barSeries struct {
	instrument string
	resolution domain.Resolution
}

// InsertBulk adds multiple bars. Fails entire batch on duplicate (instrument, resolution, timestamp_ms).
func (s *BarStore) InsertBulk(ctx context.Context, bars []*domain.BarRecord) error {
	if len(bars) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		series      barSeries
		timestampMs int64
	}
	seen := make(map[key]struct{}, len(bars))
	bySeries := make(map[barSeries][]int64)
	for _, b := range bars {
		if b == nil || b.Instrument == "" || b.Resolution == "" {
			return storage.ErrInvalidInput
		}
		sr := barSeries{b.Instrument, b.Resolution}
		k := key{sr, b.Timestamp.UnixMilli()}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		bySeries[sr] = append(bySeries[sr], k.timestampMs)
	}

	// Check for duplicates against existing DB rows, one query per series
	for sr, ts := range bySeries {
		n, err := s.countExisting(ctx, sr, ts)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if n > 0 {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO bars (
			instrument, resolution, timestamp_ms, open, high, low, close, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, b := range bars {
		err = batch.Append(
			b.Instrument, string(b.Resolution), b.Timestamp.UnixMilli(),
			b.Open, b.High, b.Low, b.Close, b.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// Fetch retrieves bars within [start, end] (inclusive), ordered by timestamp ASC.
func (s *BarStore) Fetch(ctx context.Context, instrument string, start, end time.Time, res domain.Resolution) ([]domain.Bar, error) {
	query := `
		SELECT timestamp_ms, open, high, low, close, volume
		FROM bars
		WHERE instrument = ? AND resolution = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, instrument, string(res), start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// Instruments lists instruments having bars at res, sorted.
func (s *BarStore) Instruments(ctx context.Context, res domain.Resolution) ([]string, error) {
	query := `
		SELECT DISTINCT instrument
		FROM bars
		WHERE resolution = ?
		ORDER BY instrument ASC
	`

	rows, err := s.conn.Query(ctx, query, string(res))
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var inst string
		if err := rows.Scan(&inst); err != nil {
			return nil, fmt.Errorf("scan instrument row: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instrument rows: %w", err)
	}
	return out, nil
}

// countExisting counts stored bars of sr at any of timestamps.
func (s *BarStore) countExisting(ctx context.Context, sr barSeries, timestamps []int64) (uint64, error) {
	query := `
		SELECT count(*) FROM bars
		WHERE instrument = ? AND resolution = ? AND timestamp_ms IN (?)
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, sr.instrument, string(sr.resolution), timestamps).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// scanBars scans multiple rows.
func scanBars(rows chRows) ([]domain.Bar, error) {
	var bars []domain.Bar

	for rows.Next() {
		var b domain.Bar
		var timestampMs int64

		err := rows.Scan(&timestampMs, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume)
		if err != nil {
			return nil, fmt.Errorf("scan bar row: %w", err)
		}

		b.Timestamp = time.UnixMilli(timestampMs).UTC()
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bar rows: %w", err)
	}

	return bars, nil
}
