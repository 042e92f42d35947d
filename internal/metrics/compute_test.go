package metrics

import (
	"math"
	"testing"
	"time"

	"swing-backtest-lab/internal/domain"
)

var t0 = time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)

func trade(inst string, exitHours int, pnl, r float64, reason string) domain.TradeRecord {
	return domain.TradeRecord{
		TradeID:    inst + "-" + reason,
		Instrument: inst,
		ExitTime:   t0.Add(time.Duration(exitHours) * time.Hour),
		ExitReason: reason,
		PnL:        pnl,
		RMultiple:  r,
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestComputeInstrumentWinRate(t *testing.T) {
	trades := []domain.TradeRecord{
		trade("AAPL", 1, -50, -0.5, domain.ExitReasonStopClose),
		trade("AAPL", 2, 120, 1.2, domain.ExitReasonTrendBreak),
		trade("MSFT", 3, -80, -0.8, domain.ExitReasonStopClose),
	}

	total, rate := computeInstrumentWinRate(trades)
	if total != 2 {
		t.Errorf("expected 2 instruments, got %d", total)
	}
	// AAPL has one winner, MSFT none
	if rate != 0.5 {
		t.Errorf("expected instrument win rate 0.5, got %f", rate)
	}
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{-1, 0, 1, 2, 3}
	tests := []struct {
		p    float64
		want float64
	}{
		{0.0, -1},
		{0.5, 1},
		{0.1, -0.6},
		{0.9, 2.6},
		{1.0, 3},
	}
	for _, tt := range tests {
		if got := computePercentile(sorted, tt.p); !approx(got, tt.want) {
			t.Errorf("p=%v: expected %v, got %v", tt.p, tt.want, got)
		}
	}
	if got := computePercentile(nil, 0.5); got != 0 {
		t.Errorf("empty: expected 0, got %v", got)
	}
}

func TestComputeMaxDrawdown(t *testing.T) {
	curve := []domain.EquityPoint{
		{Timestamp: t0, Equity: 9900},
		{Timestamp: t0.Add(time.Hour), Equity: 11000},
		{Timestamp: t0.Add(2 * time.Hour), Equity: 9900},
		{Timestamp: t0.Add(3 * time.Hour), Equity: 10500},
	}
	abs, pct := computeMaxDrawdown(10000, curve)
	if !approx(abs, 1100) {
		t.Errorf("expected abs drawdown 1100, got %v", abs)
	}
	if !approx(pct, 0.1) {
		t.Errorf("expected pct drawdown 0.1, got %v", pct)
	}

	// Falling below the initial equity counts from the initial peak.
	abs, pct = computeMaxDrawdown(10000, curve[:1])
	if !approx(abs, 100) || !approx(pct, 0.01) {
		t.Errorf("expected 100 / 0.01, got %v / %v", abs, pct)
	}
}

func TestCompute(t *testing.T) {
	trades := []domain.TradeRecord{
		trade("MSFT", 5, 300, 3, domain.ExitReasonEODForce),
		trade("AAPL", 1, -100, -1, domain.ExitReasonStopClose),
		trade("NVDA", 2, -50, -0.5, domain.ExitReasonStopClose),
		trade("AAPL", 3, 200, 2, domain.ExitReasonTrendBreak),
	}
	curve := []domain.EquityPoint{
		{Timestamp: t0.Add(time.Hour), Equity: 9900},
		{Timestamp: t0.Add(2 * time.Hour), Equity: 9850},
		{Timestamp: t0.Add(3 * time.Hour), Equity: 10050},
		{Timestamp: t0.Add(5 * time.Hour), Equity: 10350},
	}

	s := Compute(trades, curve, 10000)

	if s.TotalTrades != 4 || s.Wins != 2 || s.Losses != 2 {
		t.Fatalf("counts: %+v", s)
	}
	if s.WinRate != 0.5 {
		t.Errorf("expected win rate 0.5, got %v", s.WinRate)
	}
	if !approx(s.TotalPnL, 350) || !approx(s.FinalEquity, 10350) || !approx(s.ReturnPct, 0.035) {
		t.Errorf("pnl: total=%v final=%v return=%v", s.TotalPnL, s.FinalEquity, s.ReturnPct)
	}
	if s.MaxConsecutiveLoss != 2 {
		t.Errorf("expected 2 consecutive losses, got %d", s.MaxConsecutiveLoss)
	}
	if s.ExitReasons[domain.ExitReasonStopClose] != 2 || s.ExitReasons[domain.ExitReasonEODForce] != 1 {
		t.Errorf("exit reasons: %v", s.ExitReasons)
	}
	if s.TotalInstruments != 3 {
		t.Errorf("expected 3 instruments, got %d", s.TotalInstruments)
	}
	if !approx(s.RMean, 0.875) || !approx(s.RMedian, 0.75) || s.RMin != -1 || s.RMax != 3 {
		t.Errorf("r distribution: mean=%v median=%v min=%v max=%v", s.RMean, s.RMedian, s.RMin, s.RMax)
	}
	if !approx(s.MaxDrawdown, 150) {
		t.Errorf("expected max drawdown 150, got %v", s.MaxDrawdown)
	}

	// input order is untouched
	if trades[0].Instrument != "MSFT" {
		t.Errorf("input slice was reordered")
	}
}

func TestCompute_Empty(t *testing.T) {
	s := Compute(nil, nil, 10000)
	if s.TotalTrades != 0 || s.FinalEquity != 10000 || s.WinRate != 0 {
		t.Errorf("unexpected stats for empty ledger: %+v", s)
	}
}
