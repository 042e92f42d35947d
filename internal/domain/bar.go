package domain

import "time"

// Bar is one OHLCV observation for a fixed time bucket.
// Bars are immutable once produced and are held in timestamp-ascending order.
type Bar struct {
	Timestamp time.Time // bucket timestamp (hourly: bar start; aggregated: block end)
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Resolution identifies the bucket size of a bar sequence.
type Resolution string

// Supported resolutions.
const (
	ResolutionHourly  Resolution = "1h"
	ResolutionSession Resolution = "session" // two synthetic blocks per trading day
	ResolutionDaily   Resolution = "1d"
)

// Closes extracts the close column of a bar sequence.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high column of a bar sequence.
func Highs(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low column of a bar sequence.
func Lows(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}
