package metrics

import (
	"context"
	"errors"
	"testing"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
	"swing-backtest-lab/internal/storage/memory"
)

func seedRun(t *testing.T, runs *memory.RunStore, tradeStore *memory.TradeRecordStore, runID string, trades []domain.TradeRecord) {
	t.Helper()
	ctx := context.Background()

	total := 0.0
	ptrs := make([]*domain.TradeRecord, len(trades))
	for i := range trades {
		trades[i].RunID = runID
		total += trades[i].PnL
		ptrs[i] = &trades[i]
	}
	if err := runs.Insert(ctx, &domain.RunSnapshot{
		RunID:         runID,
		InitialEquity: 10000,
		FinalEquity:   10000 + total,
	}); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if len(ptrs) > 0 {
		if err := tradeStore.InsertBulk(ctx, ptrs); err != nil {
			t.Fatalf("insert trades: %v", err)
		}
	}
}

func TestComputeForRun_RebuildsCurve(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewRunStore()
	tradeStore := memory.NewTradeRecordStore()

	seedRun(t, runs, tradeStore, "run-1", []domain.TradeRecord{
		trade("AAPL", 1, 500, 1, domain.ExitReasonTrendBreak),
		trade("AAPL", 2, -1000, -2, domain.ExitReasonStopClose),
	})

	agg := NewAggregator(tradeStore, runs, nil)
	s, err := agg.ComputeForRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TotalTrades != 2 {
		t.Errorf("expected 2 trades, got %d", s.TotalTrades)
	}
	// peak 10500, trough 9500
	if !approx(s.MaxDrawdown, 1000) {
		t.Errorf("expected drawdown 1000, got %v", s.MaxDrawdown)
	}
}

func TestComputeForRun_UsesStoredCurve(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewRunStore()
	tradeStore := memory.NewTradeRecordStore()
	equity := memory.NewEquityStore()

	seedRun(t, runs, tradeStore, "run-1", []domain.TradeRecord{
		trade("AAPL", 1, 100, 1, domain.ExitReasonTrendBreak),
	})
	if err := equity.InsertBulk(ctx, "run-1", []domain.EquityPoint{
		{Timestamp: t0, Equity: 8000},
		{Timestamp: t0, Equity: 10100},
	}); err != nil {
		t.Fatalf("insert curve: %v", err)
	}

	s, err := NewAggregator(tradeStore, runs, equity).ComputeForRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approx(s.MaxDrawdown, 2000) {
		t.Errorf("expected stored curve drawdown 2000, got %v", s.MaxDrawdown)
	}
}

func TestComputeForRun_Errors(t *testing.T) {
	ctx := context.Background()
	runs := memory.NewRunStore()
	tradeStore := memory.NewTradeRecordStore()
	seedRun(t, runs, tradeStore, "empty", nil)

	agg := NewAggregator(tradeStore, runs, nil)

	if _, err := agg.ComputeForRun(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := agg.ComputeForRun(ctx, "empty"); !errors.Is(err, ErrNoTrades) {
		t.Errorf("expected ErrNoTrades, got %v", err)
	}
}
