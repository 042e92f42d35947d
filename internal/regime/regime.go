// Package regime derives a weekly market regime from a reference instrument.
package regime

import (
	"math"
	"sort"
	"time"

	"swing-backtest-lab/internal/diagnostics"
	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/indicators"
)

// Label classifies one day. Any unavailable indicator (NaN) yields unknown.
func Label(close, smaFast, smaSlow, atr, atrMA float64) domain.RegimeLabel {
	for _, v := range []float64{smaFast, smaSlow, atr, atrMA} {
		if math.IsNaN(v) {
			return domain.RegimeUnknown
		}
	}
	switch {
	case close < smaSlow:
		return domain.RegimeDefensiv
	case close > smaFast && atr >= atrMA:
		return domain.RegimeExpansion
	default:
		return domain.RegimeNeutral
	}
}

// Classifier computes regime series.
type Classifier struct {
	cfg domain.RegimeConfig
	rec diagnostics.Recorder
}

// NewClassifier validates cfg.
func NewClassifier(cfg domain.RegimeConfig, rec diagnostics.Recorder) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg, rec: diagnostics.OrNop(rec)}, nil
}

// Reference returns the reference instrument symbol.
func (c *Classifier) Reference() string {
	return c.cfg.Reference
}

// Daily labels every daily bar of the reference instrument.
func (c *Classifier) Daily(daily []domain.Bar) []domain.RegimeLabel {
	closes := domain.Closes(daily)
	highs := domain.Highs(daily)
	lows := domain.Lows(daily)

	smaF := indicators.Mean(closes, c.cfg.SMAFast)
	smaS := indicators.Mean(closes, c.cfg.SMASlow)
	atr := indicators.ATR(highs, lows, closes, c.cfg.ATRLen)
	atrMA := indicators.Mean(atr, c.cfg.ATRMALen)

	out := make([]domain.RegimeLabel, len(daily))
	for i := range daily {
		out[i] = Label(closes[i], smaF[i], smaS[i], atr[i], atrMA[i])
	}
	return out
}

// Weekly builds the lagged weekly series. Each Saturday-to-Friday week takes
// the label of its last classified day; that label becomes visible only
// from the following week.
func (c *Classifier) Weekly(daily []domain.Bar) *Series {
	labels := c.Daily(daily)
	s := &Series{weeks: make(map[int64]domain.RegimeLabel)}
	if len(daily) > 0 {
		s.loc = daily[0].Timestamp.Location()
	}
	for i, b := range daily {
		if labels[i] == domain.RegimeUnknown {
			continue
		}
		wk := weekEnding(b.Timestamp)
		if _, seen := s.weeks[wk]; !seen {
			s.keys = append(s.keys, wk)
		}
		s.weeks[wk] = labels[i]
	}
	sort.Slice(s.keys, func(i, j int) bool { return s.keys[i] < s.keys[j] })
	for _, wk := range s.keys {
		c.rec.Record(diagnostics.EventRegimeWeeklyClassified, diagnostics.Fields{
			"reference": c.cfg.Reference,
			"week_end":  time.Unix(wk*86400, 0).UTC().Format("2006-01-02"),
			"regime":    string(s.weeks[wk]),
		})
	}
	return s
}

// Series answers regime lookups for decision timestamps.
type Series struct {
	loc   *time.Location
	keys  []int64 // labeled week-ending Fridays as day numbers, ascending
	weeks map[int64]domain.RegimeLabel
}

// Unknown returns a series with no classified weeks.
func Unknown() *Series {
	return &Series{weeks: map[int64]domain.RegimeLabel{}}
}

// Weeks returns the number of classified weeks.
func (s *Series) Weeks() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// At returns the label published for the week containing ts: the label of
// the latest classified week strictly before it. Unknown when none exists.
func (s *Series) At(ts time.Time) domain.RegimeLabel {
	if s == nil || len(s.keys) == 0 {
		return domain.RegimeUnknown
	}
	if s.loc != nil {
		ts = ts.In(s.loc)
	}
	wk := weekEnding(ts)
	// first key >= wk; the one before it is the latest earlier week
	i := sort.Search(len(s.keys), func(i int) bool { return s.keys[i] >= wk })
	if i == 0 {
		return domain.RegimeUnknown
	}
	return s.weeks[s.keys[i-1]]
}

// weekEnding returns the day number of the Friday closing the
// Saturday-to-Friday week that contains t's civil date.
func weekEnding(t time.Time) int64 {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	ahead := (int(time.Friday) - int(day.Weekday()) + 7) % 7
	return day.AddDate(0, 0, ahead).Unix() / 86400
}
