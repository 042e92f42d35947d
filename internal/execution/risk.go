package execution

import (
	"math"

	"swing-backtest-lab/internal/domain"
)

// RiskEngine converts account state, regime and catalyst quality into a
// risk fraction and a position size.
type RiskEngine struct {
	cfg domain.RiskConfig
}

// NewRiskEngine validates cfg.
func NewRiskEngine(cfg domain.RiskConfig) (*RiskEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RiskEngine{cfg: cfg}, nil
}

// RiskPct is base x regime x quality x equity factor, capped at the hard cap.
// The drawdown brake then lowers the value further: at >= 10% drawdown to
// DDBrake10, at >= 5% to DDBrake5. The result never exceeds the hard cap.
func (e *RiskEngine) RiskPct(equity, equityHigh, drawdown float64, regime domain.RegimeLabel, class domain.CatalystClass) float64 {
	rp := e.cfg.BaseRiskPct * e.regimeFactor(regime) * e.qualityFactor(class) * e.equityFactor(equity, equityHigh)
	rp = math.Min(rp, e.cfg.HardCap)

	switch {
	case drawdown >= 0.10:
		rp = math.Min(rp, e.cfg.DDBrake10)
	case drawdown >= 0.05:
		rp = math.Min(rp, e.cfg.DDBrake5)
	}
	if math.IsNaN(rp) || rp < 0 {
		return 0
	}
	return rp
}

func (e *RiskEngine) regimeFactor(r domain.RegimeLabel) float64 {
	switch r {
	case domain.RegimeDefensiv:
		return e.cfg.DefensivFactor
	case domain.RegimeNeutral:
		return e.cfg.NeutralFactor
	case domain.RegimeExpansion:
		return e.cfg.ExpansionFactor
	default:
		return 1.0
	}
}

func (e *RiskEngine) qualityFactor(c domain.CatalystClass) float64 {
	switch c {
	case domain.CatalystK1:
		return e.cfg.K1Factor
	case domain.CatalystK2:
		return e.cfg.K2Factor
	default:
		return 1.0
	}
}

// equityFactor rewards trading at a new equity high.
func (e *RiskEngine) equityFactor(equity, equityHigh float64) float64 {
	if equityHigh <= 0 || equity < equityHigh {
		return 1.0
	}
	return e.cfg.NewHighFactor
}

// PositionSize is equity x riskPct / |entry - stop|. A zero distance is a
// degenerate setup and yields 0.
func PositionSize(equity, riskPct, entry, stop float64) float64 {
	dist := math.Abs(entry - stop)
	if !(dist > 0) {
		return 0
	}
	return equity * riskPct / dist
}

// Drawdown is max(0, (equityHigh - equity) / equityHigh), 0 when equityHigh <= 0.
func Drawdown(equity, equityHigh float64) float64 {
	if equityHigh <= 0 {
		return 0
	}
	return math.Max(0, (equityHigh-equity)/equityHigh)
}
