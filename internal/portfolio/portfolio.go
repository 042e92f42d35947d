// Package portfolio keeps the open-position map, the closed-trade ledger and
// equity bookkeeping for one run.
package portfolio

import (
	"errors"
	"math"
	"sort"
	"time"

	"swing-backtest-lab/internal/diagnostics"
	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/idhash"
)

// Portfolio errors
var (
	ErrPositionExists = errors.New("position already open for instrument")
	ErrNoOpenPosition = errors.New("no open position for instrument")
)

// Portfolio is owned by a single simulator and is not safe for concurrent use.
type Portfolio struct {
	runID      string
	equity     float64
	equityHigh float64 // non-decreasing
	open       map[string]domain.Position
	trades     []domain.TradeRecord
	rec        diagnostics.Recorder
}

// New creates a portfolio holding initialEquity in cash.
func New(runID string, initialEquity float64, rec diagnostics.Recorder) *Portfolio {
	return &Portfolio{
		runID:      runID,
		equity:     initialEquity,
		equityHigh: initialEquity,
		open:       make(map[string]domain.Position),
		rec:        diagnostics.OrNop(rec),
	}
}

// Equity returns realized equity.
func (p *Portfolio) Equity() float64 { return p.equity }

// EquityHigh returns the highest equity marked so far.
func (p *Portfolio) EquityHigh() float64 { return p.equityHigh }

// MarkEquity raises the equity high to the current equity when it is higher.
func (p *Portfolio) MarkEquity() {
	p.equityHigh = math.Max(p.equityHigh, p.equity)
}

// Position returns the open position for instrument.
func (p *Portfolio) Position(instrument string) (domain.Position, bool) {
	pos, ok := p.open[instrument]
	return pos, ok
}

// HasPosition reports whether instrument has an open position.
func (p *Portfolio) HasPosition(instrument string) bool {
	_, ok := p.open[instrument]
	return ok
}

// OpenInstruments returns instruments with open positions in lexicographic order.
func (p *Portfolio) OpenInstruments() []string {
	out := make([]string, 0, len(p.open))
	for inst := range p.open {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}

// Open adds pos. At most one position per instrument may be open.
func (p *Portfolio) Open(pos domain.Position) error {
	if _, ok := p.open[pos.Instrument]; ok {
		return ErrPositionExists
	}
	p.open[pos.Instrument] = pos
	p.rec.Record(diagnostics.EventPositionOpen, diagnostics.Fields{
		"instrument":     pos.Instrument,
		"ts":             pos.EntryTime,
		"entry":          pos.EntryPrice,
		"size":           pos.Size,
		"stop_close":     pos.StopClose,
		"risk_pct":       pos.RiskPct,
		"catalyst_class": string(pos.CatalystClass),
		"regime":         string(pos.Regime),
	})
	return nil
}

// Close realizes the open position of instrument at exitPrice and appends a
// trade record. Closing an instrument without a position is reported and
// returns ErrNoOpenPosition without changing state.
func (p *Portfolio) Close(instrument string, ts time.Time, exitPrice float64, reason string) (domain.TradeRecord, error) {
	pos, ok := p.open[instrument]
	if !ok {
		p.rec.Record(diagnostics.EventCloseNoPosition, diagnostics.Fields{
			"instrument": instrument,
			"ts":         ts,
			"reason":     reason,
		})
		return domain.TradeRecord{}, ErrNoOpenPosition
	}

	pnl := (exitPrice - pos.EntryPrice) * pos.Size
	risk := math.Abs(pos.EntryPrice-pos.StopClose) * pos.Size
	r := 0.0
	if risk > 0 {
		r = pnl / risk
	}

	p.equity += pnl
	p.MarkEquity()
	delete(p.open, instrument)

	tr := domain.TradeRecord{
		TradeID:       idhash.ComputeTradeID(instrument, pos.EntryTime.UnixMilli(), ts.UnixMilli()),
		RunID:         p.runID,
		Instrument:    instrument,
		EntryTime:     pos.EntryTime,
		EntryPrice:    pos.EntryPrice,
		Size:          pos.Size,
		StopClose:     pos.StopClose,
		RiskPct:       pos.RiskPct,
		CatalystClass: pos.CatalystClass,
		Regime:        pos.Regime,
		ExitTime:      ts,
		ExitPrice:     exitPrice,
		ExitReason:    reason,
		PnL:           pnl,
		RMultiple:     r,
	}
	p.trades = append(p.trades, tr)

	p.rec.Record(diagnostics.EventPositionClose, diagnostics.Fields{
		"instrument": instrument,
		"ts":         ts,
		"exit":       exitPrice,
		"reason":     reason,
		"pnl":        pnl,
		"r":          r,
		"equity":     p.equity,
	})
	return tr, nil
}

// Trades returns a copy of the closed-trade ledger in close order.
func (p *Portfolio) Trades() []domain.TradeRecord {
	out := make([]domain.TradeRecord, len(p.trades))
	copy(out, p.trades)
	return out
}

// EquityCurve replays cumulative pnl of trades, ordered by exit time, on top
// of the starting equity implied by finalEquity. Trades are not modified.
func EquityCurve(trades []domain.TradeRecord, finalEquity float64) []domain.EquityPoint {
	if len(trades) == 0 {
		return nil
	}
	sorted := make([]domain.TradeRecord, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ExitTime.Before(sorted[j].ExitTime)
	})

	total := 0.0
	for _, tr := range sorted {
		total += tr.PnL
	}
	start := finalEquity - total

	out := make([]domain.EquityPoint, len(sorted))
	cum := 0.0
	for i, tr := range sorted {
		cum += tr.PnL
		out[i] = domain.EquityPoint{Timestamp: tr.ExitTime, Equity: start + cum}
	}
	return out
}
