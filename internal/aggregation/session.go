// Package aggregation builds session-aware and daily bars from hourly bars.
package aggregation

import (
	"fmt"
	"sort"
	"time"

	"swing-backtest-lab/internal/domain"
)

// SessionAggregator splits each trading session into two blocks at a fixed
// local split time and aggregates hourly bars into one bar per block.
type SessionAggregator struct {
	loc   *time.Location
	open  time.Duration
	close time.Duration
	split time.Duration
}

// NewSessionAggregator validates cfg and resolves its timezone.
func NewSessionAggregator(cfg domain.AggregationConfig) (*SessionAggregator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone: %v", domain.ErrInvalidConfig, err)
	}
	// errors already rejected by Validate
	open, _ := domain.ParseClock(cfg.SessionOpen)
	closeAt, _ := domain.ParseClock(cfg.SessionClose)
	split, _ := domain.ParseClock(cfg.SplitTime)
	return &SessionAggregator{loc: loc, open: open, close: closeAt, split: split}, nil
}

// Location returns the session timezone.
func (a *SessionAggregator) Location() *time.Location {
	return a.loc
}

type blockKey struct {
	year  int
	month time.Month
	day   int
	block int
}

// Aggregate converts hourly bars into session blocks. Bars outside
// [open, close] local time are discarded. Block 0 holds bars before the split
// time and ends at the split; block 1 ends at the session close. Days without
// qualifying bars contribute nothing. Output is ordered by block end.
func (a *SessionAggregator) Aggregate(hourly []domain.Bar) []domain.Bar {
	ordered := sortedCopy(hourly)

	buckets := make(map[blockKey]*domain.Bar)
	var keys []blockKey
	for _, b := range ordered {
		lt := b.Timestamp.In(a.loc)
		tod := clockOf(lt)
		if tod < a.open || tod > a.close {
			continue
		}
		block := 1
		if tod < a.split {
			block = 0
		}
		y, m, d := lt.Date()
		k := blockKey{year: y, month: m, day: d, block: block}
		agg, ok := buckets[k]
		if !ok {
			end := a.close
			if block == 0 {
				end = a.split
			}
			nb := b
			nb.Timestamp = atClock(y, m, d, end, a.loc)
			buckets[k] = &nb
			keys = append(keys, k)
			continue
		}
		merge(agg, b)
	}

	out := make([]domain.Bar, 0, len(keys))
	for _, k := range keys {
		out = append(out, *buckets[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Daily resamples hourly bars into calendar-day buckets in the session
// timezone. The bar timestamp is local midnight. Empty days are dropped.
func (a *SessionAggregator) Daily(hourly []domain.Bar) []domain.Bar {
	return ToDaily(hourly, a.loc)
}

// ToDaily resamples bars into calendar-day buckets in loc.
func ToDaily(hourly []domain.Bar, loc *time.Location) []domain.Bar {
	ordered := sortedCopy(hourly)

	var out []domain.Bar
	for _, b := range ordered {
		lt := b.Timestamp.In(loc)
		y, m, d := lt.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(day) {
			merge(&out[n-1], b)
			continue
		}
		nb := b
		nb.Timestamp = day
		out = append(out, nb)
	}
	return out
}

// merge folds b into agg: open stays first, close becomes last.
func merge(agg *domain.Bar, b domain.Bar) {
	if b.High > agg.High {
		agg.High = b.High
	}
	if b.Low < agg.Low {
		agg.Low = b.Low
	}
	agg.Close = b.Close
	agg.Volume += b.Volume
}

// atClock builds the wall-clock instant rather than midnight plus an offset,
// which would drift by an hour on DST transition days.
func atClock(y int, m time.Month, d int, clock time.Duration, loc *time.Location) time.Time {
	h := int(clock / time.Hour)
	mm := int(clock % time.Hour / time.Minute)
	return time.Date(y, m, d, h, mm, 0, 0, loc)
}

func clockOf(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

func sortedCopy(bars []domain.Bar) []domain.Bar {
	out := make([]domain.Bar, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
