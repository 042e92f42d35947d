package domain

import "time"

// TradeRecord is an immutable snapshot of a closed position.
// Corresponds to trade_records table.
type TradeRecord struct {
	TradeID    string // deterministic hash
	RunID      string // run that produced the trade
	Instrument string

	// Entry
	EntryTime     time.Time
	EntryPrice    float64
	Size          float64
	StopClose     float64
	RiskPct       float64
	CatalystClass CatalystClass
	Regime        RegimeLabel

	// Exit
	ExitTime   time.Time
	ExitPrice  float64
	ExitReason string // reason code

	// Outcome
	PnL       float64 // (exit - entry) * size
	RMultiple float64 // pnl / (|entry - stop| * size), 0 if undefined
}

// Exit reason codes
const (
	ExitReasonStopClose  = "STOP_CLOSE"
	ExitReasonTrendBreak = "TREND_BREAK"
	ExitReasonEODForce   = "EOD_FORCE"
)

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}
