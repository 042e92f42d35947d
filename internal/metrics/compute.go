// Package metrics computes summary statistics over a closed-trade ledger.
package metrics

import (
	"math"
	"sort"

	"swing-backtest-lab/internal/domain"
)

// LedgerStats summarizes one run's trades and equity curve.
type LedgerStats struct {
	// Counts
	TotalTrades        int
	Wins               int // pnl > 0
	Losses             int
	WinRate            float64
	TotalInstruments   int
	InstrumentWinRate  float64 // share of instruments with at least one winning trade
	ExitReasons        map[string]int
	MaxConsecutiveLoss int

	// PnL
	InitialEquity float64
	FinalEquity   float64
	TotalPnL      float64
	ReturnPct     float64

	// R-multiple distribution
	RMean   float64
	RMedian float64
	RP10    float64
	RP90    float64
	RMin    float64
	RMax    float64
	RStddev float64

	// Drawdown on the equity curve, including the starting equity as first peak
	MaxDrawdown    float64 // absolute
	MaxDrawdownPct float64 // fraction of the peak
}

// Compute derives LedgerStats from trades and the equity curve.
// Trades are ordered by exit time, then instrument, before order-dependent
// statistics. The input slice is not modified.
func Compute(trades []domain.TradeRecord, curve []domain.EquityPoint, initialEquity float64) LedgerStats {
	stats := LedgerStats{
		InitialEquity: initialEquity,
		FinalEquity:   initialEquity,
		ExitReasons:   make(map[string]int),
	}
	n := len(trades)
	if n == 0 {
		return stats
	}

	sorted := make([]domain.TradeRecord, n)
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ExitTime.Equal(sorted[j].ExitTime) {
			return sorted[i].ExitTime.Before(sorted[j].ExitTime)
		}
		return sorted[i].Instrument < sorted[j].Instrument
	})

	rs := make([]float64, n)
	for i, t := range sorted {
		if t.PnL > 0 {
			stats.Wins++
		} else {
			stats.Losses++
		}
		stats.TotalPnL += t.PnL
		stats.ExitReasons[t.ExitReason]++
		rs[i] = t.RMultiple
	}
	stats.TotalTrades = n
	stats.WinRate = computeWinRate(stats.Wins, n)
	stats.TotalInstruments, stats.InstrumentWinRate = computeInstrumentWinRate(sorted)
	stats.MaxConsecutiveLoss = computeMaxConsecutiveLosses(sorted)

	stats.FinalEquity = initialEquity + stats.TotalPnL
	if initialEquity > 0 {
		stats.ReturnPct = stats.TotalPnL / initialEquity
	}

	sortedR := make([]float64, n)
	copy(sortedR, rs)
	sort.Float64s(sortedR)
	stats.RMean = computeMean(rs)
	stats.RStddev = computeStddev(rs, stats.RMean)
	stats.RMedian = computePercentile(sortedR, 0.50)
	stats.RP10 = computePercentile(sortedR, 0.10)
	stats.RP90 = computePercentile(sortedR, 0.90)
	stats.RMin = sortedR[0]
	stats.RMax = sortedR[n-1]

	stats.MaxDrawdown, stats.MaxDrawdownPct = computeMaxDrawdown(initialEquity, curve)
	return stats
}

// computeInstrumentWinRate groups trades by instrument and counts instruments
// with at least one winning trade.
func computeInstrumentWinRate(trades []domain.TradeRecord) (int, float64) {
	if len(trades) == 0 {
		return 0, 0
	}
	won := make(map[string]bool)
	for _, t := range trades {
		won[t.Instrument] = won[t.Instrument] || t.PnL > 0
	}
	winning := 0
	for _, w := range won {
		if w {
			winning++
		}
	}
	return len(won), float64(winning) / float64(len(won))
}

func computeWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func computeMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(xs []float64, mean float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeMaxDrawdown returns the worst peak-to-trough fall of the curve,
// absolute and as a fraction of the peak.
func computeMaxDrawdown(initialEquity float64, curve []domain.EquityPoint) (float64, float64) {
	peak := initialEquity
	maxAbs, maxPct := 0.0, 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := peak - p.Equity
		if dd > maxAbs {
			maxAbs = dd
		}
		if peak > 0 && dd/peak > maxPct {
			maxPct = dd / peak
		}
	}
	return maxAbs, maxPct
}

// computeMaxConsecutiveLosses finds the longest streak of pnl <= 0.
func computeMaxConsecutiveLosses(trades []domain.TradeRecord) int {
	maxStreak, streak := 0, 0
	for _, t := range trades {
		if t.PnL <= 0 {
			streak++
			if streak > maxStreak {
				maxStreak = streak
			}
		} else {
			streak = 0
		}
	}
	return maxStreak
}
