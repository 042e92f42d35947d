package strategy

import (
	"fmt"

	"swing-backtest-lab/internal/domain"
)

// minBars is the shortest prefix the rules will look at.
const minBars = 5

// PullbackStateMachine enters on a trigger bar after a shallow, low-volume
// pullback inside a higher-highs/higher-lows structure with an active
// catalyst, and exits when that structure breaks.
type PullbackStateMachine struct {
	pullbackMinBars    int
	pullbackMaxRetrace float64
	rangeExpansion     float64
}

// NewPullbackStateMachine creates the rule evaluator. cfg must be valid.
func NewPullbackStateMachine(cfg domain.StrategyConfig) *PullbackStateMachine {
	return &PullbackStateMachine{
		pullbackMinBars:    cfg.PullbackMinBars,
		pullbackMaxRetrace: cfg.PullbackMaxRetrace,
		rangeExpansion:     cfg.RangeExpansion,
	}
}

// Compile-time interface check.
var _ Strategy = (*PullbackStateMachine)(nil)

// ID returns strategy identifier with parameters.
func (s *PullbackStateMachine) ID() string {
	return fmt.Sprintf("%s_%d_%.2f", domain.StrategyTypeHHHLPullback, s.pullbackMinBars, s.pullbackMaxRetrace)
}

// Evaluate is total over its input: out-of-range indices and missing
// features produce NONE with reason codes, never a panic.
func (s *PullbackStateMachine) Evaluate(in Input) domain.Signal {
	if in.Index < minBars || in.Index >= len(in.Bars) {
		return none(domain.ReasonDataTooShort)
	}
	if in.InPosition {
		return s.exit(in)
	}
	return s.entry(in)
}

// entry evaluates every rule and accumulates a reason per failed rule.
func (s *PullbackStateMachine) entry(in Input) domain.Signal {
	f := in.Feature
	cat := in.Catalyst
	bar := in.Bars[in.Index]
	prev := in.Bars[in.Index-1]
	var reasons []string

	if !f.HasTrendStructure {
		reasons = append(reasons, domain.ReasonNoTrendHHHL)
	}

	volOK := cat.HasCatalyst
	if f.ATR != nil && f.ATRMA != nil && *f.ATR > *f.ATRMA {
		volOK = true
	}
	if f.Range5 != nil && f.Range20 != nil && *f.Range20 > 0 && *f.Range5 >= s.rangeExpansion**f.Range20 {
		volOK = true
	}
	if !volOK {
		reasons = append(reasons, domain.ReasonVolFilterFail)
	}

	if !cat.HasCatalyst {
		reasons = append(reasons, domain.ReasonNoCatalyst)
	}

	if f.PullbackBars < s.pullbackMinBars {
		reasons = append(reasons, domain.ReasonPullbackTooShort)
	}
	if f.PullbackRetrace == nil || *f.PullbackRetrace > s.pullbackMaxRetrace {
		reasons = append(reasons, domain.ReasonPullbackTooDeep)
	}

	switch {
	case f.LastSwingLowClose == nil:
		reasons = append(reasons, domain.ReasonNoLastHL)
	case bar.Close < *f.LastSwingLowClose:
		reasons = append(reasons, domain.ReasonCloseBelowLastHL)
	}

	switch {
	case f.PullbackAvgVolume == nil || f.ImpulseAvgVolume == nil:
		reasons = append(reasons, domain.ReasonVolumeMetricsMissing)
	case *f.PullbackAvgVolume > *f.ImpulseAvgVolume:
		reasons = append(reasons, domain.ReasonPullbackVolNotLower)
	}

	if bar.Close <= prev.High {
		reasons = append(reasons, domain.ReasonTriggerNotMet)
	}

	if len(reasons) > 0 {
		return domain.Signal{Type: domain.SignalNone, ReasonCodes: reasons, Metadata: map[string]string{}}
	}
	class := cat.Class
	if class == "" {
		class = domain.CatalystNone
	}
	return domain.Signal{
		Type:        domain.SignalEntry,
		ReasonCodes: []string{},
		Metadata:    map[string]string{domain.MetaCatalystClass: string(class)},
	}
}

// exit proposes a close when the trend structure is gone. Stops on close
// are enforced by the simulator.
func (s *PullbackStateMachine) exit(in Input) domain.Signal {
	if !in.Feature.HasTrendStructure {
		return domain.Signal{
			Type:        domain.SignalExit,
			ReasonCodes: []string{domain.ReasonTrendBreak},
			Metadata:    map[string]string{},
		}
	}
	return none()
}

func none(reasons ...string) domain.Signal {
	if reasons == nil {
		reasons = []string{}
	}
	return domain.Signal{Type: domain.SignalNone, ReasonCodes: reasons, Metadata: map[string]string{}}
}
