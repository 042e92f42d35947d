// Package catalyst classifies proximity to scheduled corporate events.
package catalyst

import (
	"errors"
	"time"

	"swing-backtest-lab/internal/diagnostics"
	"swing-backtest-lab/internal/domain"
)

// ErrUnknownMode is returned for an unsupported classifier mode.
var ErrUnknownMode = errors.New("unknown catalyst mode")

// Input is everything a classifier may look at for one decision.
type Input struct {
	Instrument string
	Events     []time.Time  // sorted event dates
	Daily      []domain.Bar // daily bars of the instrument, ascending
	Asof       time.Time    // decision timestamp
}

// Classifier grades the catalyst state at a decision time.
type Classifier interface {
	Classify(in Input) domain.CatalystInfo
}

// FromConfig builds the classifier selected by cfg.Mode.
func FromConfig(cfg domain.CatalystConfig, rec diagnostics.Recorder) (Classifier, error) {
	if err := cfg.Validate(); err != nil {
		if cfg.Mode != domain.CatalystModeCalendar && cfg.Mode != domain.CatalystModeReaction {
			return nil, errors.Join(ErrUnknownMode, err)
		}
		return nil, err
	}
	switch cfg.Mode {
	case domain.CatalystModeReaction:
		return NewReactionClassifier(cfg, rec), nil
	default:
		return NewCalendarClassifier(cfg.WindowDays), nil
	}
}

// dayNumber maps the civil date of t, in t's own location, to a day count.
func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// activeEvent returns the most recent event d with d <= asof <= d+window
// calendar days, comparing civil dates.
func activeEvent(events []time.Time, asof time.Time, windowDays int) (time.Time, bool) {
	asofDay := dayNumber(asof)
	var found time.Time
	ok := false
	for _, ev := range events {
		d := dayNumber(ev)
		if d > asofDay {
			break
		}
		if asofDay <= d+int64(windowDays) {
			found, ok = ev, true
		}
	}
	return found, ok
}

// CalendarClassifier reports K1 whenever an event falls within the window.
type CalendarClassifier struct {
	windowDays int
}

// NewCalendarClassifier creates a calendar-proximity classifier.
func NewCalendarClassifier(windowDays int) *CalendarClassifier {
	return &CalendarClassifier{windowDays: windowDays}
}

// Compile-time interface check.
var _ Classifier = (*CalendarClassifier)(nil)

// Classify ignores price data.
func (c *CalendarClassifier) Classify(in Input) domain.CatalystInfo {
	return Classify(in.Events, in.Asof, c.windowDays)
}

// Classify is the calendar rule over a sorted event list.
func Classify(events []time.Time, asof time.Time, windowDays int) domain.CatalystInfo {
	ev, ok := activeEvent(events, asof, windowDays)
	if !ok {
		return domain.NoCatalyst()
	}
	return domain.CatalystInfo{HasCatalyst: true, Class: domain.CatalystK1, Date: &ev}
}
