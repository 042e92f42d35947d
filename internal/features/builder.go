// Package features computes point-in-time feature snapshots over aggregated bars.
package features

import (
	"swing-backtest-lab/internal/diagnostics"
	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/indicators"
	"swing-backtest-lab/internal/structure"
)

// Builder computes FeatureSnapshot values from the causal prefix of a bar
// sequence. It holds no per-call state.
type Builder struct {
	cfg      domain.StrategyConfig
	required int
	rec      diagnostics.Recorder
}

// NewBuilder validates cfg. A nil recorder discards diagnostics.
func NewBuilder(cfg domain.StrategyConfig, rec diagnostics.Recorder) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, required: cfg.RequiredBars(), rec: diagnostics.OrNop(rec)}, nil
}

// RequiredBars is the minimum prefix length for an evaluable snapshot.
func (b *Builder) RequiredBars() int {
	return b.required
}

// Snapshot computes features using only bars[0..index]. When the prefix is
// shorter than RequiredBars, or index is out of range, it returns the
// sentinel snapshot with no trend structure and every numeric field absent.
func (b *Builder) Snapshot(bars []domain.Bar, index int) domain.FeatureSnapshot {
	if index < 0 || index >= len(bars) {
		return domain.FeatureSnapshot{}
	}
	prefix := bars[:index+1]
	if len(prefix) < b.required {
		b.rec.Record(diagnostics.EventFeatureInsufficient, diagnostics.Fields{
			"have": len(prefix),
			"need": b.required,
		})
		return domain.FeatureSnapshot{}
	}

	closes := domain.Closes(prefix)
	highs := domain.Highs(prefix)
	lows := domain.Lows(prefix)
	last := len(prefix) - 1

	atr := indicators.ATR(highs, lows, closes, b.cfg.ATRLen)
	atrMA := indicators.Mean(atr, b.cfg.ATRMALen)
	r5 := indicators.Range(highs, lows, b.cfg.Range5Bars)
	r20 := indicators.Range(highs, lows, b.cfg.Range20Bars)

	swings := structure.DetectSwings(closes, b.cfg.SwingLeft, b.cfg.SwingRight)

	snap := domain.FeatureSnapshot{
		HasTrendStructure: structure.HigherHighsHigherLows(closes, swings),
		ATR:               indicators.At(atr, last),
		ATRMA:             indicators.At(atrMA, last),
		Range5:            indicators.At(r5, last),
		Range20:           indicators.At(r20, last),
	}
	if i := structure.LastIndex(swings.Low); i >= 0 {
		v := closes[i]
		snap.LastSwingLowClose = &v
	}

	pb := Pullback(prefix, swings)
	snap.PullbackBars = pb.Bars
	snap.PullbackRetrace = pb.Retrace
	snap.PullbackAvgVolume = pb.AvgVolume
	snap.ImpulseAvgVolume = pb.ImpulseAvgVolume
	return snap
}

// PullbackMetrics describes the leg after the latest impulse.
type PullbackMetrics struct {
	Bars             int
	Retrace          *float64
	AvgVolume        *float64
	ImpulseAvgVolume *float64
}

// Pullback locates the impulse from the last swing low to the last swing high
// and measures the bars after that high. When the last swing low is not
// before the last swing high there is no impulse and the result is empty.
func Pullback(bars []domain.Bar, swings structure.Swings) PullbackMetrics {
	lastLow := structure.LastIndex(swings.Low)
	lastHigh := structure.LastIndex(swings.High)
	if lastLow < 0 || lastHigh < 0 || lastLow >= lastHigh {
		return PullbackMetrics{}
	}

	impulse := bars[lastLow : lastHigh+1]
	pullback := bars[lastHigh+1:]

	impHigh, impLow := impulse[0].High, impulse[0].Low
	var impVol float64
	for _, b := range impulse {
		if b.High > impHigh {
			impHigh = b.High
		}
		if b.Low < impLow {
			impLow = b.Low
		}
		impVol += b.Volume
	}
	impAvg := impVol / float64(len(impulse))

	m := PullbackMetrics{Bars: len(pullback), ImpulseAvgVolume: &impAvg}
	if len(pullback) == 0 {
		return m
	}

	pbLow := pullback[0].Low
	var pbVol float64
	for _, b := range pullback {
		if b.Low < pbLow {
			pbLow = b.Low
		}
		pbVol += b.Volume
	}
	pbAvg := pbVol / float64(len(pullback))
	m.AvgVolume = &pbAvg

	if rng := impHigh - impLow; rng > 0 {
		r := (impHigh - pbLow) / rng
		m.Retrace = &r
	}
	return m
}
