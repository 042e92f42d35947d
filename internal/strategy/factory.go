package strategy

import (
	"errors"

	"swing-backtest-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	switch cfg.Type {
	case domain.StrategyTypeHHHLPullback:
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return NewPullbackStateMachine(cfg), nil
	default:
		return nil, ErrUnknownStrategyType
	}
}
