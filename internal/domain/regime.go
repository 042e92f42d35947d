package domain

// RegimeLabel is a coarse weekly market-trend classification.
type RegimeLabel string

// Regime labels. RegimeUnknown marks days without enough history.
const (
	RegimeDefensiv  RegimeLabel = "Defensiv"
	RegimeNeutral   RegimeLabel = "Neutral"
	RegimeExpansion RegimeLabel = "Expansion"
	RegimeUnknown   RegimeLabel = "unknown"
)

// Known reports whether the label is one of the three classified regimes.
func (r RegimeLabel) Known() bool {
	switch r {
	case RegimeDefensiv, RegimeNeutral, RegimeExpansion:
		return true
	default:
		return false
	}
}
