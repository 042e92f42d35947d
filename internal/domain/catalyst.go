package domain

import "time"

// CatalystClass grades a scheduled corporate event.
type CatalystClass string

// Catalyst classes.
const (
	CatalystNone CatalystClass = "NONE"
	CatalystK1   CatalystClass = "K1" // strong
	CatalystK2   CatalystClass = "K2" // weak
)

// CatalystInfo describes the catalyst state of an instrument at a decision time.
type CatalystInfo struct {
	HasCatalyst bool
	Class       CatalystClass
	Date        *time.Time // event date, NULL if no catalyst
}

// NoCatalyst is the neutral catalyst value.
func NoCatalyst() CatalystInfo {
	return CatalystInfo{Class: CatalystNone}
}
