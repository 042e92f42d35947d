// Package indicators implements rolling-window series over ordered bars.
// Every output is aligned to the input length; warmup positions hold NaN.
package indicators

import "math"

// Mean is the simple rolling mean over the last p points.
// A window containing a NaN yields NaN.
func Mean(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	var sum float64
	nans := 0
	for i := range x {
		if math.IsNaN(x[i]) {
			nans++
		} else {
			sum += x[i]
		}
		if i >= p {
			if math.IsNaN(x[i-p]) {
				nans--
			} else {
				sum -= x[i-p]
			}
		}
		if i < p-1 || nans > 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(p)
	}
	return out
}

// Max is the rolling maximum over the last p points, O(1) amortized per step.
func Max(x []float64, p int) []float64 {
	return extremum(x, p, func(a, b float64) bool { return a >= b })
}

// Min is the rolling minimum over the last p points, O(1) amortized per step.
func Min(x []float64, p int) []float64 {
	return extremum(x, p, func(a, b float64) bool { return a <= b })
}

// extremum keeps a monotonic deque of indices; dominates(a, b) means b can
// never be the window extremum while a is in the window.
func extremum(x []float64, p int, dominates func(a, b float64) bool) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	dq := make([]int, 0, p)
	for i := range x {
		for len(dq) > 0 && dominates(x[i], x[dq[len(dq)-1]]) {
			dq = dq[:len(dq)-1]
		}
		dq = append(dq, i)
		if dq[0] <= i-p {
			dq = dq[1:]
		}
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[dq[0]]
	}
	return out
}

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|).
// The first bar has no previous close and uses high-low.
func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		tr := high[i] - low[i]
		if i > 0 {
			tr = math.Max(tr, math.Abs(high[i]-close[i-1]))
			tr = math.Max(tr, math.Abs(low[i]-close[i-1]))
		}
		out[i] = tr
	}
	return out
}

// ATR is the simple rolling mean of true range over p bars.
func ATR(high, low, close []float64, p int) []float64 {
	return Mean(TrueRange(high, low, close), p)
}

// Range is the rolling max(high) minus rolling min(low) over p bars.
func Range(high, low []float64, p int) []float64 {
	hi := Max(high, p)
	lo := Min(low, p)
	if hi == nil {
		return nil
	}
	out := make([]float64, len(hi))
	for i := range hi {
		out[i] = hi[i] - lo[i]
	}
	return out
}

// At returns a pointer to x[i], or nil when i is out of range or x[i] is NaN.
func At(x []float64, i int) *float64 {
	if i < 0 || i >= len(x) || math.IsNaN(x[i]) {
		return nil
	}
	v := x[i]
	return &v
}
