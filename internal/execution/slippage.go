// Package execution models fills and position risk.
package execution

import (
	"math/rand"

	"swing-backtest-lab/internal/diagnostics"
	"swing-backtest-lab/internal/domain"
)

// Side enumerates fill directions.
type Side string

const (
	// Buy fills above the reference price.
	Buy Side = "BUY"
	// Sell fills below the reference price.
	Sell Side = "SELL"
)

// SlippageModel draws a uniform adjustment in [0, maxATRFraction*ATR] from a
// generator seeded once per run. Not safe for concurrent use: fills must be
// drawn in a fixed order to replay identically.
type SlippageModel struct {
	maxFrac float64
	rng     *rand.Rand
	rec     diagnostics.Recorder
	draws   int
}

// NewSlippageModel validates cfg and seeds the generator.
func NewSlippageModel(cfg domain.SlippageConfig, rec diagnostics.Recorder) (*SlippageModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SlippageModel{
		maxFrac: cfg.MaxATRFraction,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		rec:     diagnostics.OrNop(rec),
	}, nil
}

// Apply returns the fill price. Without a positive ATR the price is returned
// unchanged and the generator is not advanced.
func (m *SlippageModel) Apply(price float64, atr *float64, side Side) float64 {
	if atr == nil || !(*atr > 0) {
		return price
	}
	slip := m.rng.Float64() * m.maxFrac * *atr
	m.draws++
	fill := price + slip
	if side == Sell {
		fill = price - slip
	}
	m.rec.Record(diagnostics.EventSlippageApply, diagnostics.Fields{
		"price": price,
		"atr":   *atr,
		"side":  string(side),
		"slip":  slip,
		"fill":  fill,
	})
	return fill
}

// Draws returns how many times the generator has been advanced.
func (m *SlippageModel) Draws() int {
	return m.draws
}
