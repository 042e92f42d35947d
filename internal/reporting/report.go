// Package reporting renders a finished run into trades.csv, equity.csv,
// params.json and summary.md.
package reporting

import (
	"time"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/metrics"
)

// Output file names inside a run directory.
const (
	TradesFile  = "trades.csv"
	EquityFile  = "equity.csv"
	ParamsFile  = "params.json"
	SummaryFile = "summary.md"
)

// Report represents one run ready for rendering.
type Report struct {
	GeneratedAt time.Time

	Run    domain.RunSnapshot
	Stats  metrics.LedgerStats
	Trades []domain.TradeRecord // exit time ASC, instrument ASC
	Equity []domain.EquityPoint

	// Top instruments by total pnl, best first
	Instruments []InstrumentRow
}

// InstrumentRow aggregates the trades of one instrument.
type InstrumentRow struct {
	Instrument string
	Trades     int
	Wins       int
	PnL        float64
	MeanR      float64
}
