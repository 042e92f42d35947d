package domain

import "time"

// Position is an open position. Owned by the portfolio, never mutated.
type Position struct {
	Instrument    string
	EntryTime     time.Time
	EntryPrice    float64 // fill after slippage
	Size          float64 // units
	StopClose     float64 // structural stop, checked against bar close
	RiskPct       float64 // fraction of equity risked at entry
	CatalystClass CatalystClass
	Regime        RegimeLabel
}
