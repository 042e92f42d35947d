package lookup

import (
	"errors"
	"sort"
	"time"

	"swing-backtest-lab/internal/domain"
)

// Errors returned by lookup functions.
var (
	ErrNoBars   = errors.New("no bars available")
	ErrUnsorted = errors.New("bars not strictly ascending by timestamp")
)

// Index maps bar timestamps to positions within one instrument's series.
type Index struct {
	bars []domain.Bar
	pos  map[int64]int // unix ms -> index
}

// NewIndex indexes bars. Returns ErrUnsorted if timestamps are not strictly
// ascending.
func NewIndex(bars []domain.Bar) (*Index, error) {
	idx := &Index{bars: bars, pos: make(map[int64]int, len(bars))}
	for i, b := range bars {
		if i > 0 && !b.Timestamp.After(bars[i-1].Timestamp) {
			return nil, ErrUnsorted
		}
		idx.pos[b.Timestamp.UnixMilli()] = i
	}
	return idx, nil
}

// At returns the index of the bar stamped exactly ts.
func (x *Index) At(ts time.Time) (int, bool) {
	i, ok := x.pos[ts.UnixMilli()]
	return i, ok
}

// Len returns the number of indexed bars.
func (x *Index) Len() int { return len(x.bars) }

// Last returns the index of the final bar, or ErrNoBars.
func (x *Index) Last() (int, error) {
	if len(x.bars) == 0 {
		return -1, ErrNoBars
	}
	return len(x.bars) - 1, nil
}

// IndexAtOrBefore returns the index of the closest bar at or before target.
// Returns -1 when every bar is later than target and ErrNoBars for an empty slice.
func IndexAtOrBefore(target time.Time, bars []domain.Bar) (int, error) {
	if len(bars) == 0 {
		return -1, ErrNoBars
	}
	i := sort.Search(len(bars), func(i int) bool {
		return bars[i].Timestamp.After(target)
	})
	return i - 1, nil
}

// Timeline returns the sorted union of bar timestamps across series.
func Timeline(series map[string][]domain.Bar) []time.Time {
	seen := make(map[int64]time.Time)
	for _, bars := range series {
		for _, b := range bars {
			seen[b.Timestamp.UnixMilli()] = b.Timestamp
		}
	}
	keys := make([]int64, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]time.Time, len(keys))
	for i, k := range keys {
		out[i] = seen[k]
	}
	return out
}
