package domain

// SignalType is the decision produced by the strategy evaluator.
type SignalType string

// Signal types.
const (
	SignalEntry SignalType = "ENTRY"
	SignalExit  SignalType = "EXIT"
	SignalNone  SignalType = "NONE"
)

// Reason codes attached to signals.
const (
	ReasonDataTooShort         = "DATA_TOO_SHORT"
	ReasonNoTrendHHHL          = "NO_TREND_HHHL"
	ReasonVolFilterFail        = "VOL_FILTER_FAIL"
	ReasonNoCatalyst           = "NO_CATALYST"
	ReasonPullbackTooShort     = "PULLBACK_TOO_SHORT"
	ReasonPullbackTooDeep      = "PULLBACK_TOO_DEEP"
	ReasonNoLastHL             = "NO_LAST_HL"
	ReasonCloseBelowLastHL     = "CLOSE_BELOW_LAST_HL"
	ReasonVolumeMetricsMissing = "VOLUME_METRICS_MISSING"
	ReasonPullbackVolNotLower  = "PULLBACK_VOL_NOT_LOWER"
	ReasonTriggerNotMet        = "TRIGGER_NOT_MET"
	ReasonTrendBreak           = "TREND_BREAK"
)

// Metadata keys.
const (
	MetaCatalystClass = "catalyst_class"
)

// Signal is the output of one strategy evaluation.
type Signal struct {
	Type        SignalType
	ReasonCodes []string          // ordered, empty for a clean ENTRY
	Metadata    map[string]string // e.g. catalyst_class on ENTRY
}
