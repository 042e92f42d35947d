package clickhouse

import (
	"context"
	"fmt"
	"time"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
)

// EquityStore implements storage.EquityStore using ClickHouse.
type EquityStore struct {
	conn *Conn
}

// NewEquityStore creates a new EquityStore.
func NewEquityStore(conn *Conn) *EquityStore {
	return &EquityStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EquityStore = (*EquityStore)(nil)

// InsertBulk stores the curve of runID with its sequence numbers.
// Returns ErrDuplicateKey if the run already has a curve.
func (s *EquityStore) InsertBulk(ctx context.Context, runID string, points []domain.EquityPoint) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	var count uint64
	if err := s.conn.QueryRow(ctx, `SELECT count(*) FROM equity_curve WHERE run_id = ?`, runID).Scan(&count); err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO equity_curve (run_id, seq, timestamp_ms, equity)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, p := range points {
		if err := batch.Append(runID, uint32(i), p.Timestamp.UnixMilli(), p.Equity); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves the curve of runID in sequence order.
func (s *EquityStore) GetByRunID(ctx context.Context, runID string) ([]domain.EquityPoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT timestamp_ms, equity
		FROM equity_curve
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query equity curve: %w", err)
	}
	defer rows.Close()

	var points []domain.EquityPoint
	for rows.Next() {
		var tsMs int64
		var p domain.EquityPoint
		if err := rows.Scan(&tsMs, &p.Equity); err != nil {
			return nil, fmt.Errorf("scan equity row: %w", err)
		}
		p.Timestamp = time.UnixMilli(tsMs).UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate equity rows: %w", err)
	}
	return points, nil
}
