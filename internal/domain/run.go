package domain

import "time"

// RunSnapshot echoes the configuration and universe of one run.
// Corresponds to runs table.
type RunSnapshot struct {
	RunID         string    `json:"run_id"`      // random per execution
	ConfigHash    string    `json:"config_hash"` // deterministic over Params
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Instruments   []string  `json:"instruments"` // simulated, sorted
	Excluded      []string  `json:"excluded"`    // dropped during preparation, sorted
	Params        RunParams `json:"params"`
	InitialEquity float64   `json:"initial_equity"`
	FinalEquity   float64   `json:"final_equity"`
	CreatedAt     time.Time `json:"created_at"`
}
