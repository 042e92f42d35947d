package strategy

import "swing-backtest-lab/internal/domain"

// Strategy evaluates entry and exit rules for one instrument at one bar.
// Implementations must be pure: identical input yields an identical Signal.
type Strategy interface {
	// Evaluate returns ENTRY, EXIT or NONE with ordered reason codes.
	Evaluate(in Input) domain.Signal

	// ID returns strategy identifier (includes parameters).
	ID() string
}

// Input holds all data needed for one evaluation.
type Input struct {
	Bars       []domain.Bar // aggregated bars; only Bars[0..Index] are read
	Index      int
	Feature    domain.FeatureSnapshot
	Catalyst   domain.CatalystInfo
	InPosition bool
}
