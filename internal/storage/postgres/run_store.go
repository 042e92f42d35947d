package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
)

// RunStore implements storage.RunStore using PostgreSQL.
type RunStore struct {
	pool *Pool
}

// NewRunStore creates a new RunStore.
func NewRunStore(pool *Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RunStore = (*RunStore)(nil)

const runColumns = `
	run_id, config_hash, start_ms, end_ms, instruments, excluded,
	params, initial_equity, final_equity, created_at_ms
`

// Insert adds a run snapshot. Returns ErrDuplicateKey if run_id exists.
func (s *RunStore) Insert(ctx context.Context, r *domain.RunSnapshot) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	params, err := json.Marshal(r.Params)
	if err != nil {
		return fmt.Errorf("marshal run params: %w", err)
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.pool.Exec(ctx, query,
		r.RunID, r.ConfigHash, r.Start.UnixMilli(), r.End.UnixMilli(),
		nonNil(r.Instruments), nonNil(r.Excluded),
		params, r.InitialEquity, r.FinalEquity, r.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID retrieves a run. Returns ErrNotFound if not exists.
func (s *RunStore) GetByID(ctx context.Context, runID string) (*domain.RunSnapshot, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE run_id = $1`

	r, err := scanRun(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run by id: %w", err)
	}
	return r, nil
}

// List retrieves all runs, newest first.
func (s *RunStore) List(ctx context.Context) ([]*domain.RunSnapshot, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at_ms DESC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.RunSnapshot
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// scanRun scans a single row into a RunSnapshot.
func scanRun(row pgx.Row) (*domain.RunSnapshot, error) {
	var r domain.RunSnapshot
	var startMs, endMs, createdMs int64
	var params []byte

	err := row.Scan(
		&r.RunID, &r.ConfigHash, &startMs, &endMs, &r.Instruments, &r.Excluded,
		&params, &r.InitialEquity, &r.FinalEquity, &createdMs,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(params, &r.Params); err != nil {
		return nil, fmt.Errorf("unmarshal run params: %w", err)
	}

	r.Start = time.UnixMilli(startMs).UTC()
	r.End = time.UnixMilli(endMs).UTC()
	r.CreatedAt = time.UnixMilli(createdMs).UTC()
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
