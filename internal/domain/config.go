package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // session timezones must resolve without a system zoneinfo
)

// AggregationConfig configures session-aware bar aggregation.
type AggregationConfig struct {
	SessionOpen  string `yaml:"session_open" json:"session_open"`   // local HH:MM
	SessionClose string `yaml:"session_close" json:"session_close"` // local HH:MM
	SplitTime    string `yaml:"split_time" json:"split_time"`       // local HH:MM, block 0 ends here
	Timezone     string `yaml:"timezone" json:"timezone"`           // IANA zone name
}

// DefaultAggregationConfig returns the US equity regular session split at 13:30.
func DefaultAggregationConfig() AggregationConfig {
	return AggregationConfig{
		SessionOpen:  "09:30",
		SessionClose: "16:00",
		SplitTime:    "13:30",
		Timezone:     "America/New_York",
	}
}

// Validate checks open < split < close and that the timezone resolves.
func (c AggregationConfig) Validate() error {
	open, err := ParseClock(c.SessionOpen)
	if err != nil {
		return fmt.Errorf("%w: session_open: %v", ErrInvalidConfig, err)
	}
	closeAt, err := ParseClock(c.SessionClose)
	if err != nil {
		return fmt.Errorf("%w: session_close: %v", ErrInvalidConfig, err)
	}
	split, err := ParseClock(c.SplitTime)
	if err != nil {
		return fmt.Errorf("%w: split_time: %v", ErrInvalidConfig, err)
	}
	if open >= closeAt {
		return fmt.Errorf("%w: session_open %s must be before session_close %s", ErrInvalidConfig, c.SessionOpen, c.SessionClose)
	}
	if split <= open || split >= closeAt {
		return fmt.Errorf("%w: split_time %s outside session (%s, %s)", ErrInvalidConfig, c.SplitTime, c.SessionOpen, c.SessionClose)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return nil
}

// ParseClock parses a local HH:MM wall-clock time into a duration since midnight.
func ParseClock(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q: bad minute", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// StrategyConfig configures feature extraction and the entry rule-set.
type StrategyConfig struct {
	Type               string  `yaml:"type" json:"type"`
	SwingLeft          int     `yaml:"swing_left" json:"swing_left"`
	SwingRight         int     `yaml:"swing_right" json:"swing_right"`
	PullbackMinBars    int     `yaml:"pullback_min_bars" json:"pullback_min_bars"`
	PullbackMaxRetrace float64 `yaml:"pullback_max_retrace" json:"pullback_max_retrace"`
	ATRLen             int     `yaml:"atr_len" json:"atr_len"`
	ATRMALen           int     `yaml:"atr_ma_len" json:"atr_ma_len"`
	Range5Bars         int     `yaml:"range_5d_bars" json:"range_5d_bars"`   // aggregated blocks in 5 trading days
	Range20Bars        int     `yaml:"range_20d_bars" json:"range_20d_bars"` // aggregated blocks in 20 trading days
	RangeExpansion     float64 `yaml:"range_expansion" json:"range_expansion"`
	MinHistoryBars     int     `yaml:"min_history_bars" json:"min_history_bars"`
}

// Strategy type constants
const (
	StrategyTypeHHHLPullback = "HHHL_PULLBACK"
)

// DefaultStrategyConfig returns the reference rule-set parameters.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		Type:               StrategyTypeHHHLPullback,
		SwingLeft:          2,
		SwingRight:         2,
		PullbackMinBars:    2,
		PullbackMaxRetrace: 0.5,
		ATRLen:             14,
		ATRMALen:           20,
		Range5Bars:         10,
		Range20Bars:        40,
		RangeExpansion:     1.3,
		MinHistoryBars:     60,
	}
}

// RequiredBars is the minimum prefix length before a snapshot is evaluable.
func (c StrategyConfig) RequiredBars() int {
	n := c.Range20Bars
	if v := c.ATRLen + c.ATRMALen + 5; v > n {
		n = v
	}
	if c.MinHistoryBars > n {
		n = c.MinHistoryBars
	}
	return n
}

// Validate rejects non-positive windows and out-of-range thresholds.
func (c StrategyConfig) Validate() error {
	switch {
	case c.Type != StrategyTypeHHHLPullback:
		return fmt.Errorf("%w: strategy type %q", ErrInvalidConfig, c.Type)
	case c.SwingLeft < 1 || c.SwingRight < 1:
		return fmt.Errorf("%w: swing windows must be >= 1", ErrInvalidConfig)
	case c.PullbackMinBars < 0:
		return fmt.Errorf("%w: pullback_min_bars must be >= 0", ErrInvalidConfig)
	case !(c.PullbackMaxRetrace > 0):
		return fmt.Errorf("%w: pullback_max_retrace must be > 0", ErrInvalidConfig)
	case c.ATRLen < 1 || c.ATRMALen < 1:
		return fmt.Errorf("%w: atr windows must be >= 1", ErrInvalidConfig)
	case c.Range5Bars < 1 || c.Range20Bars < 1:
		return fmt.Errorf("%w: range windows must be >= 1", ErrInvalidConfig)
	case !(c.RangeExpansion > 0):
		return fmt.Errorf("%w: range_expansion must be > 0", ErrInvalidConfig)
	}
	return nil
}

// Catalyst classifier modes.
const (
	CatalystModeCalendar = "calendar"
	CatalystModeReaction = "reaction"
)

// CatalystConfig configures event-proximity classification.
type CatalystConfig struct {
	Mode       string `yaml:"mode" json:"mode"`               // calendar | reaction
	WindowDays int    `yaml:"window_days" json:"window_days"` // calendar days after the event

	// Reaction scoring, used when Mode is reaction.
	MinDailyBars     int     `yaml:"min_daily_bars" json:"min_daily_bars"`
	RangeATRMult     float64 `yaml:"range_atr_mult" json:"range_atr_mult"`
	VolumeMult       float64 `yaml:"volume_mult" json:"volume_mult"`
	MinPctChange     float64 `yaml:"min_pct_change" json:"min_pct_change"`
	StrongScore      int     `yaml:"strong_score" json:"strong_score"`
	ReactionATRLen   int     `yaml:"reaction_atr_len" json:"reaction_atr_len"`
	ReactionVolMALen int     `yaml:"reaction_vol_ma_len" json:"reaction_vol_ma_len"`
}

// DefaultCatalystConfig returns the calendar-proximity classifier.
func DefaultCatalystConfig() CatalystConfig {
	return CatalystConfig{
		Mode:             CatalystModeCalendar,
		WindowDays:       14,
		MinDailyBars:     60,
		RangeATRMult:     1.5,
		VolumeMult:       1.5,
		MinPctChange:     0.012,
		StrongScore:      2,
		ReactionATRLen:   14,
		ReactionVolMALen: 20,
	}
}

// Validate checks the mode and windows.
func (c CatalystConfig) Validate() error {
	if c.Mode != CatalystModeCalendar && c.Mode != CatalystModeReaction {
		return fmt.Errorf("%w: catalyst mode %q", ErrInvalidConfig, c.Mode)
	}
	if c.WindowDays < 0 {
		return fmt.Errorf("%w: window_days must be >= 0", ErrInvalidConfig)
	}
	if c.Mode == CatalystModeReaction {
		if c.ReactionATRLen < 1 || c.ReactionVolMALen < 1 || c.StrongScore < 1 {
			return fmt.Errorf("%w: reaction windows and strong_score must be >= 1", ErrInvalidConfig)
		}
	}
	return nil
}

// SlippageConfig configures the fill-price adjustment.
type SlippageConfig struct {
	Seed           int64   `yaml:"seed" json:"seed"`
	MaxATRFraction float64 `yaml:"max_atr_frac" json:"max_atr_frac"`
}

// DefaultSlippageConfig returns seed 7 and up to 10% of ATR.
func DefaultSlippageConfig() SlippageConfig {
	return SlippageConfig{Seed: 7, MaxATRFraction: 0.10}
}

// Validate rejects negative fractions.
func (c SlippageConfig) Validate() error {
	if c.MaxATRFraction < 0 || math.IsNaN(c.MaxATRFraction) {
		return fmt.Errorf("%w: max_atr_frac must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// RiskConfig configures position risk.
type RiskConfig struct {
	BaseRiskPct float64 `yaml:"base_risk_pct" json:"base_risk_pct"`
	HardCap     float64 `yaml:"hard_cap" json:"hard_cap"`
	DDBrake5    float64 `yaml:"dd_brake_5" json:"dd_brake_5"`   // ceiling at >= 5% drawdown
	DDBrake10   float64 `yaml:"dd_brake_10" json:"dd_brake_10"` // ceiling at >= 10% drawdown

	DefensivFactor  float64 `yaml:"defensiv_factor" json:"defensiv_factor"`
	NeutralFactor   float64 `yaml:"neutral_factor" json:"neutral_factor"`
	ExpansionFactor float64 `yaml:"expansion_factor" json:"expansion_factor"`
	K1Factor        float64 `yaml:"k1_factor" json:"k1_factor"`
	K2Factor        float64 `yaml:"k2_factor" json:"k2_factor"`
	NewHighFactor   float64 `yaml:"new_high_factor" json:"new_high_factor"`
}

// DefaultRiskConfig returns 1% base risk with a 2% hard cap.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		BaseRiskPct:     0.01,
		HardCap:         0.02,
		DDBrake5:        0.01,
		DDBrake10:       0.005,
		DefensivFactor:  0.5,
		NeutralFactor:   1.0,
		ExpansionFactor: 1.5,
		K1Factor:        1.2,
		K2Factor:        1.0,
		NewHighFactor:   1.1,
	}
}

// Validate requires positive percentages with brakes under the hard cap.
func (c RiskConfig) Validate() error {
	switch {
	case !(c.BaseRiskPct > 0) || !(c.HardCap > 0):
		return fmt.Errorf("%w: base_risk_pct and hard_cap must be > 0", ErrInvalidConfig)
	case c.HardCap > 1:
		return fmt.Errorf("%w: hard_cap must be <= 1", ErrInvalidConfig)
	case c.DDBrake5 < 0 || c.DDBrake10 < 0:
		return fmt.Errorf("%w: drawdown brakes must be >= 0", ErrInvalidConfig)
	case c.DDBrake5 > c.HardCap || c.DDBrake10 > c.HardCap:
		return fmt.Errorf("%w: drawdown brakes must not exceed hard_cap", ErrInvalidConfig)
	case c.DefensivFactor < 0 || c.NeutralFactor < 0 || c.ExpansionFactor < 0:
		return fmt.Errorf("%w: regime factors must be >= 0", ErrInvalidConfig)
	case c.K1Factor < 0 || c.K2Factor < 0 || c.NewHighFactor < 0:
		return fmt.Errorf("%w: quality and equity factors must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// RegimeConfig configures the weekly market regime.
type RegimeConfig struct {
	Reference string `yaml:"reference" json:"reference"` // reference instrument symbol
	SMAFast   int    `yaml:"sma_fast" json:"sma_fast"`
	SMASlow   int    `yaml:"sma_slow" json:"sma_slow"`
	ATRLen    int    `yaml:"atr_len" json:"atr_len"`
	ATRMALen  int    `yaml:"atr_ma_len" json:"atr_ma_len"`
}

// DefaultRegimeConfig returns SPY with SMA 50/200 and ATR 14/20.
func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{Reference: "SPY", SMAFast: 50, SMASlow: 200, ATRLen: 14, ATRMALen: 20}
}

// Validate rejects non-positive windows.
func (c RegimeConfig) Validate() error {
	if strings.TrimSpace(c.Reference) == "" {
		return fmt.Errorf("%w: regime reference is required", ErrInvalidConfig)
	}
	if c.SMAFast < 1 || c.SMASlow < 1 || c.ATRLen < 1 || c.ATRMALen < 1 {
		return fmt.Errorf("%w: regime windows must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// SimulationConfig configures the event loop.
type SimulationConfig struct {
	InitialEquity     float64 `yaml:"initial_equity" json:"initial_equity"`
	MinAggregatedBars int     `yaml:"min_aggregated_bars" json:"min_aggregated_bars"`
}

// DefaultSimulationConfig returns 10000 starting equity and 200 bars of history.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{InitialEquity: 10000, MinAggregatedBars: 200}
}

// Validate requires positive equity.
func (c SimulationConfig) Validate() error {
	if !(c.InitialEquity > 0) {
		return fmt.Errorf("%w: initial_equity must be > 0", ErrInvalidConfig)
	}
	if c.MinAggregatedBars < 0 {
		return fmt.Errorf("%w: min_aggregated_bars must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// UniverseConfig configures instrument sampling.
type UniverseConfig struct {
	SampleSize      int      `yaml:"sample_size" json:"sample_size"`
	Seed            int64    `yaml:"seed" json:"seed"`
	ExcludeSuffixes []string `yaml:"exclude_suffixes" json:"exclude_suffixes"`
}

// DefaultUniverseConfig returns 100 symbols sampled with seed 42, excluding
// warrants, units and rights.
func DefaultUniverseConfig() UniverseConfig {
	return UniverseConfig{SampleSize: 100, Seed: 42, ExcludeSuffixes: []string{"W", "WS", "U", "R"}}
}

// Validate rejects negative sample sizes.
func (c UniverseConfig) Validate() error {
	if c.SampleSize < 0 {
		return fmt.Errorf("%w: sample_size must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// RunParams bundles every component configuration of one run.
// It is echoed verbatim into the run snapshot.
type RunParams struct {
	Aggregation AggregationConfig `yaml:"aggregation" json:"aggregation"`
	Strategy    StrategyConfig    `yaml:"strategy" json:"strategy"`
	Catalyst    CatalystConfig    `yaml:"catalyst" json:"catalyst"`
	Slippage    SlippageConfig    `yaml:"slippage" json:"slippage"`
	Risk        RiskConfig        `yaml:"risk" json:"risk"`
	Regime      RegimeConfig      `yaml:"regime" json:"regime"`
	Simulation  SimulationConfig  `yaml:"simulation" json:"simulation"`
}

// DefaultRunParams returns defaults for every component.
func DefaultRunParams() RunParams {
	return RunParams{
		Aggregation: DefaultAggregationConfig(),
		Strategy:    DefaultStrategyConfig(),
		Catalyst:    DefaultCatalystConfig(),
		Slippage:    DefaultSlippageConfig(),
		Risk:        DefaultRiskConfig(),
		Regime:      DefaultRegimeConfig(),
		Simulation:  DefaultSimulationConfig(),
	}
}

// Validate validates every component configuration.
func (p RunParams) Validate() error {
	for _, v := range []interface{ Validate() error }{
		p.Aggregation, p.Strategy, p.Catalyst, p.Slippage, p.Risk, p.Regime, p.Simulation,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
