package storage

import (
	"context"
	"time"

	"swing-backtest-lab/internal/domain"
)

// BarProvider supplies historical bars.
type BarProvider interface {
	// Fetch returns bars of instrument at res with timestamps within
	// [start, end] (inclusive), ordered by timestamp ASC. An instrument
	// without data yields (nil, nil).
	Fetch(ctx context.Context, instrument string, start, end time.Time, res domain.Resolution) ([]domain.Bar, error)
}

// EventProvider supplies the corporate-event calendar.
type EventProvider interface {
	// Events returns event dates of instrument within [start, end] (inclusive),
	// ordered ASC. Possibly empty.
	Events(ctx context.Context, instrument string, start, end time.Time) ([]time.Time, error)
}

// BarStore provides access to bar storage.
type BarStore interface {
	BarProvider

	// InsertBulk adds multiple bars atomically.
	// Fails entire batch on duplicate (instrument, resolution, timestamp).
	InsertBulk(ctx context.Context, bars []*domain.BarRecord) error

	// Instruments lists instruments having bars at res, sorted.
	Instruments(ctx context.Context, res domain.Resolution) ([]string, error)
}

// EventStore provides access to earnings storage.
type EventStore interface {
	EventProvider

	// InsertBulk adds multiple events atomically. Fails entire batch on duplicate (instrument, date).
	InsertBulk(ctx context.Context, events []*domain.EarningsEvent) error
}

// TradeRecordStore provides access to trade_records storage.
type TradeRecordStore interface {
	// InsertBulk adds multiple trades atomically.
	// Fails entire batch on duplicate (run_id, trade_id).
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetByID retrieves a trade by run and trade ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID, tradeID string) (*domain.TradeRecord, error)

	// GetByRunID retrieves all trades of a run, ordered by exit time, then instrument.
	GetByRunID(ctx context.Context, runID string) ([]*domain.TradeRecord, error)
}

// RunStore provides access to runs storage.
type RunStore interface {
	// Insert adds a run snapshot. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.RunSnapshot) error

	// GetByID retrieves a run. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.RunSnapshot, error)

	// List retrieves all runs, newest first.
	List(ctx context.Context) ([]*domain.RunSnapshot, error)
}

// EquityStore provides access to equity_curve storage.
type EquityStore interface {
	// InsertBulk stores the equity curve of a run in the given order.
	// Returns ErrDuplicateKey if the run already has a curve.
	InsertBulk(ctx context.Context, runID string, points []domain.EquityPoint) error

	// GetByRunID retrieves the equity curve of a run, in insertion order.
	GetByRunID(ctx context.Context, runID string) ([]domain.EquityPoint, error)
}
