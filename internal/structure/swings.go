// Package structure detects close-only swing pivots.
package structure

import "swing-backtest-lab/internal/indicators"

// Swings holds swing-high and swing-low masks aligned to the input closes.
type Swings struct {
	High []bool
	Low  []bool
}

// DetectSwings marks close[i] as a swing high (low) when it equals the
// maximum (minimum) close of the centered window [i-left, i+right].
// Positions whose window is incomplete are never marked.
func DetectSwings(closes []float64, left, right int) Swings {
	n := len(closes)
	s := Swings{High: make([]bool, n), Low: make([]bool, n)}
	if left < 0 || right < 0 {
		return s
	}
	w := left + right + 1
	mx := indicators.Max(closes, w)
	mn := indicators.Min(closes, w)
	for i := left; i+right < n; i++ {
		// rolling output at i+right covers [i-left, i+right]
		s.High[i] = closes[i] == mx[i+right]
		s.Low[i] = closes[i] == mn[i+right]
	}
	return s
}

// Indices returns the positions set in mask, ascending.
func Indices(mask []bool) []int {
	var idx []int
	for i, v := range mask {
		if v {
			idx = append(idx, i)
		}
	}
	return idx
}

// LastIndex returns the last position set in mask, or -1.
func LastIndex(mask []bool) int {
	for i := len(mask) - 1; i >= 0; i-- {
		if mask[i] {
			return i
		}
	}
	return -1
}

// HigherHighsHigherLows reports whether the last two swing highs and the last
// two swing lows are both strictly increasing in close. Fewer than two of
// either yields false.
func HigherHighsHigherLows(closes []float64, s Swings) bool {
	hi := Indices(s.High)
	lo := Indices(s.Low)
	if len(hi) < 2 || len(lo) < 2 {
		return false
	}
	h1, h2 := closes[hi[len(hi)-2]], closes[hi[len(hi)-1]]
	l1, l2 := closes[lo[len(lo)-2]], closes[lo[len(lo)-1]]
	return h2 > h1 && l2 > l1
}
