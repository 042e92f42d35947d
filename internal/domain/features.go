package domain

// FeatureSnapshot holds point-in-time derived values for one bar index.
// Computed from the causal prefix bars[0..i] only. Absent values are nil.
type FeatureSnapshot struct {
	HasTrendStructure bool     // last two swing highs and last two swing lows strictly rising
	LastSwingLowClose *float64 // close at the most recent swing low, NULL if none
	ATR               *float64 // rolling mean of true range
	ATRMA             *float64 // rolling mean of ATR
	Range5            *float64 // max high - min low over the short window
	Range20           *float64 // max high - min low over the long window
	PullbackBars      int      // bars strictly after the impulse swing high
	PullbackRetrace   *float64 // fraction of the impulse retraced, NULL if undefined
	PullbackAvgVolume *float64 // mean volume over the pullback window
	ImpulseAvgVolume  *float64 // mean volume over the impulse window
}

// Evaluable reports whether the snapshot carries computed indicators.
// The insufficient-history sentinel has every numeric field absent.
func (f FeatureSnapshot) Evaluable() bool {
	return f.ATR != nil && f.ATRMA != nil
}
