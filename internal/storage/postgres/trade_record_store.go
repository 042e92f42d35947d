package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const tradeColumns = `
	run_id, trade_id, instrument,
	entry_time_ms, entry_price, size, stop_close, risk_pct, catalyst_class, regime,
	exit_time_ms, exit_price, exit_reason,
	pnl, r_multiple
`

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeRecordStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trade_records (` + tradeColumns + `) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13,
			$14, $15
		)
	`

	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.RunID == "" {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query,
			t.RunID, t.TradeID, t.Instrument,
			t.EntryTime.UnixMilli(), t.EntryPrice, t.Size, t.StopClose, t.RiskPct,
			string(t.CatalystClass), string(t.Regime),
			t.ExitTime.UnixMilli(), t.ExitPrice, t.ExitReason,
			t.PnL, t.RMultiple,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade record in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by run and trade ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, runID, tradeID string) (*domain.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trade_records WHERE run_id = $1 AND trade_id = $2`

	row := s.pool.QueryRow(ctx, query, runID, tradeID)
	t, err := scanTradeRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// GetByRunID retrieves all trades of a run, ordered by exit time, then instrument.
func (s *TradeRecordStore) GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT ` + tradeColumns + `
		FROM trade_records
		WHERE run_id = $1
		ORDER BY exit_time_ms ASC, instrument ASC, entry_time_ms ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trade records by run id: %w", err)
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}

	return trades, nil
}

// scanTradeRecord scans a single row into a TradeRecord.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var t domain.TradeRecord
	var entryMs, exitMs int64
	var class, regime string

	err := row.Scan(
		&t.RunID, &t.TradeID, &t.Instrument,
		&entryMs, &t.EntryPrice, &t.Size, &t.StopClose, &t.RiskPct, &class, &regime,
		&exitMs, &t.ExitPrice, &t.ExitReason,
		&t.PnL, &t.RMultiple,
	)
	if err != nil {
		return nil, err
	}

	t.EntryTime = time.UnixMilli(entryMs).UTC()
	t.ExitTime = time.UnixMilli(exitMs).UTC()
	t.CatalystClass = domain.CatalystClass(class)
	t.Regime = domain.RegimeLabel(regime)
	return &t, nil
}
