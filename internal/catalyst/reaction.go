package catalyst

import (
	"time"

	"swing-backtest-lab/internal/diagnostics"
	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/indicators"
	"swing-backtest-lab/internal/lookup"
	"swing-backtest-lab/internal/structure"
)

// ReactionClassifier activates on the same calendar window as
// CalendarClassifier and grades the event-day market reaction:
// K1 when at least StrongScore criteria hold, K2 otherwise.
// Only daily bars dated strictly before the decision day are used.
type ReactionClassifier struct {
	cfg domain.CatalystConfig
	rec diagnostics.Recorder
}

// NewReactionClassifier creates a reaction-scored classifier.
func NewReactionClassifier(cfg domain.CatalystConfig, rec diagnostics.Recorder) *ReactionClassifier {
	return &ReactionClassifier{cfg: cfg, rec: diagnostics.OrNop(rec)}
}

// Compile-time interface check.
var _ Classifier = (*ReactionClassifier)(nil)

// Classify scores the reaction on the first completed trading day on or
// after the event.
func (c *ReactionClassifier) Classify(in Input) domain.CatalystInfo {
	ev, ok := activeEvent(in.Events, in.Asof, c.cfg.WindowDays)
	if !ok {
		return domain.NoCatalyst()
	}
	info := domain.CatalystInfo{HasCatalyst: true, Class: domain.CatalystK2, Date: &ev}

	// daily bars of completed days only
	y, m, d := in.Asof.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, in.Asof.Location())
	last, err := lookup.IndexAtOrBefore(midnight.Add(-time.Nanosecond), in.Daily)
	if err != nil {
		return info
	}
	prior := in.Daily[:last+1]
	if len(prior) < c.cfg.MinDailyBars {
		return info
	}

	evDay := dayNumber(ev)
	idx := -1
	for i, b := range prior {
		if dayNumber(b.Timestamp) >= evDay {
			idx = i
			break
		}
	}
	if idx < 0 {
		return info
	}

	score := c.score(prior, idx)
	if score >= c.cfg.StrongScore {
		info.Class = domain.CatalystK1
	}
	c.rec.Record(diagnostics.EventCatalystClassified, diagnostics.Fields{
		"instrument": in.Instrument,
		"event":      ev.Format("2006-01-02"),
		"score":      score,
		"class":      string(info.Class),
	})
	return info
}

// score counts reaction criteria on bars[idx].
func (c *ReactionClassifier) score(bars []domain.Bar, idx int) int {
	closes := domain.Closes(bars)
	highs := domain.Highs(bars)
	lows := domain.Lows(bars)
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Volume
	}
	day := bars[idx]
	score := 0

	// wide range, close in the upper third
	atr := indicators.At(indicators.ATR(highs, lows, closes, c.cfg.ReactionATRLen), idx)
	rng := day.High - day.Low
	if atr != nil && *atr > 0 && rng >= c.cfg.RangeATRMult**atr && day.Close >= day.Low+rng*2/3 {
		score++
	}

	// breakout over the last swing high confirmed before the event day
	swings := structure.DetectSwings(closes[:idx], 2, 2)
	if i := structure.LastIndex(swings.High); i >= 0 && day.Close > closes[i] {
		score++
	}

	// volume surge, else a meaningful gain
	volMA := indicators.At(indicators.Mean(vols, c.cfg.ReactionVolMALen), idx)
	if volMA != nil && *volMA > 0 {
		if day.Volume >= c.cfg.VolumeMult**volMA {
			score++
		} else if idx > 0 && closes[idx-1] > 0 && day.Close/closes[idx-1]-1 >= c.cfg.MinPctChange {
			score++
		}
	}
	return score
}
