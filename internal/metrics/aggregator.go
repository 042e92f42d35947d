package metrics

import (
	"context"
	"errors"
	"fmt"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/portfolio"
	"swing-backtest-lab/internal/storage"
)

// ErrNoTrades is returned when a stored run has no trades.
var ErrNoTrades = errors.New("no trades available for run")

// Aggregator computes LedgerStats for persisted runs.
type Aggregator struct {
	trades storage.TradeRecordStore
	runs   storage.RunStore
	equity storage.EquityStore // optional
}

// NewAggregator creates a new metrics aggregator. equityStore may be nil, in
// which case the curve is rebuilt from the trades.
func NewAggregator(tradeStore storage.TradeRecordStore, runStore storage.RunStore, equityStore storage.EquityStore) *Aggregator {
	return &Aggregator{trades: tradeStore, runs: runStore, equity: equityStore}
}

// ComputeForRun loads the ledger of runID and computes its statistics.
// Returns storage.ErrNotFound for unknown runs and ErrNoTrades for empty ledgers.
func (a *Aggregator) ComputeForRun(ctx context.Context, runID string) (*LedgerStats, error) {
	run, err := a.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	ptrs, err := a.trades.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades %s: %w", runID, err)
	}
	if len(ptrs) == 0 {
		return nil, ErrNoTrades
	}
	trades := make([]domain.TradeRecord, len(ptrs))
	for i, t := range ptrs {
		trades[i] = *t
	}

	var curve []domain.EquityPoint
	if a.equity != nil {
		curve, err = a.equity.GetByRunID(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("load equity curve %s: %w", runID, err)
		}
	}
	if len(curve) == 0 {
		curve = portfolio.EquityCurve(trades, run.FinalEquity)
	}

	stats := Compute(trades, curve, run.InitialEquity)
	return &stats, nil
}
