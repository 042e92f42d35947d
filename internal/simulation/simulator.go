// Package simulation replays prepared instruments through the strategy over a
// single causally ordered timeline.
package simulation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"swing-backtest-lab/internal/catalyst"
	"swing-backtest-lab/internal/diagnostics"
	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/execution"
	"swing-backtest-lab/internal/features"
	"swing-backtest-lab/internal/lookup"
	"swing-backtest-lab/internal/portfolio"
	"swing-backtest-lab/internal/regime"
	"swing-backtest-lab/internal/strategy"
)

// Simulator errors
var (
	ErrNoTradableInstruments = errors.New("no tradable instruments")
	ErrMissingComponent      = errors.New("simulator component not configured")
)

// Instrument is the prepared, read-only data of one instrument.
type Instrument struct {
	Symbol string
	Bars   []domain.Bar // session-aggregated, ascending
	Daily  []domain.Bar // daily, ascending
	Events []time.Time  // sorted event dates
}

// Result is the outcome of one run.
type Result struct {
	Trades      []domain.TradeRecord
	Equity      []domain.EquityPoint
	FinalEquity float64
	Included    []string // simulated instruments, sorted
	Excluded    []string // dropped before timeline construction, sorted
	Timestamps  int      // length of the union timeline
}

// Simulator wires the per-bar components. One Simulator serves one run:
// the slippage generator advances across calls.
type Simulator struct {
	cfg      domain.SimulationConfig
	runID    string
	strategy strategy.Strategy
	features *features.Builder
	catalyst catalyst.Classifier
	regime   *regime.Series
	slippage *execution.SlippageModel
	risk     *execution.RiskEngine
	rec      diagnostics.Recorder
}

// Options contains configuration for creating a Simulator.
type Options struct {
	Config   domain.SimulationConfig
	RunID    string
	Strategy strategy.Strategy
	Features *features.Builder
	Catalyst catalyst.Classifier
	Regime   *regime.Series // nil means unknown everywhere
	Slippage *execution.SlippageModel
	Risk     *execution.RiskEngine
	Recorder diagnostics.Recorder
}

// New validates opts and creates a simulator.
func New(opts Options) (*Simulator, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	var missing []string
	if opts.Strategy == nil {
		missing = append(missing, "strategy")
	}
	if opts.Features == nil {
		missing = append(missing, "features")
	}
	if opts.Catalyst == nil {
		missing = append(missing, "catalyst")
	}
	if opts.Slippage == nil {
		missing = append(missing, "slippage")
	}
	if opts.Risk == nil {
		missing = append(missing, "risk")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingComponent, strings.Join(missing, ", "))
	}
	reg := opts.Regime
	if reg == nil {
		reg = regime.Unknown()
	}
	return &Simulator{
		cfg:      opts.Config,
		runID:    opts.RunID,
		strategy: opts.Strategy,
		features: opts.Features,
		catalyst: opts.Catalyst,
		regime:   reg,
		slippage: opts.Slippage,
		risk:     opts.Risk,
		rec:      diagnostics.OrNop(opts.Recorder),
	}, nil
}

// tradable is an instrument admitted to the timeline.
type tradable struct {
	Instrument
	index *lookup.Index
}

// Run replays instruments. Per timestamp all exits are processed before any
// entry, instruments in lexicographic order within each phase. Positions
// still open after the last timestamp are force-closed at their
// instrument's final bar.
func (s *Simulator) Run(instruments []Instrument) (*Result, error) {
	active, excluded := s.admit(instruments)
	if len(active) == 0 {
		return nil, fmt.Errorf("%w: 0 of %d instruments have >= %d aggregated bars",
			ErrNoTradableInstruments, len(instruments), s.cfg.MinAggregatedBars)
	}

	series := make(map[string][]domain.Bar, len(active))
	for _, t := range active {
		series[t.Symbol] = t.Bars
	}
	timeline := lookup.Timeline(series)

	s.rec.Record(diagnostics.EventBacktestStart, diagnostics.Fields{
		"run_id":      s.runID,
		"instruments": len(active),
		"excluded":    len(excluded),
		"timestamps":  len(timeline),
		"strategy":    s.strategy.ID(),
	})

	pf := portfolio.New(s.runID, s.cfg.InitialEquity, s.rec)
	for _, ts := range timeline {
		s.exits(pf, active, ts)
		s.entries(pf, active, ts)
	}
	s.forceClose(pf, active)

	trades := pf.Trades()
	res := &Result{
		Trades:      trades,
		Equity:      portfolio.EquityCurve(trades, pf.Equity()),
		FinalEquity: pf.Equity(),
		Excluded:    excluded,
		Timestamps:  len(timeline),
	}
	for _, t := range active {
		res.Included = append(res.Included, t.Symbol)
	}

	s.rec.Record(diagnostics.EventBacktestDone, diagnostics.Fields{
		"run_id":       s.runID,
		"trades":       len(trades),
		"final_equity": res.FinalEquity,
	})
	return res, nil
}

// admit drops instruments lacking history before the timeline is built and
// returns the rest sorted by symbol.
func (s *Simulator) admit(instruments []Instrument) ([]tradable, []string) {
	var active []tradable
	var excluded []string
	for _, in := range instruments {
		if len(in.Bars) < s.cfg.MinAggregatedBars {
			s.rec.Record(diagnostics.EventInstrumentExcluded, diagnostics.Fields{
				"instrument": in.Symbol,
				"reason":     "DATA_INSUFFICIENT",
				"bars":       len(in.Bars),
				"need":       s.cfg.MinAggregatedBars,
			})
			excluded = append(excluded, in.Symbol)
			continue
		}
		idx, err := lookup.NewIndex(in.Bars)
		if err != nil {
			s.rec.Record(diagnostics.EventInstrumentExcluded, diagnostics.Fields{
				"instrument": in.Symbol,
				"reason":     "BARS_UNSORTED",
				"error":      err.Error(),
			})
			excluded = append(excluded, in.Symbol)
			continue
		}
		active = append(active, tradable{Instrument: in, index: idx})
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Symbol < active[j].Symbol })
	sort.Strings(excluded)
	return active, excluded
}

func (s *Simulator) exits(pf *portfolio.Portfolio, active []tradable, ts time.Time) {
	for _, t := range active {
		pos, ok := pf.Position(t.Symbol)
		if !ok {
			continue
		}
		i, ok := t.index.At(ts)
		if !ok {
			continue
		}
		bar := t.Bars[i]
		feat := s.features.Snapshot(t.Bars, i)

		reason := ""
		if bar.Close < pos.StopClose {
			reason = domain.ExitReasonStopClose
		} else {
			sig := s.strategy.Evaluate(strategy.Input{
				Bars:       t.Bars,
				Index:      i,
				Feature:    feat,
				Catalyst:   domain.NoCatalyst(),
				InPosition: true,
			})
			s.recordSignal(t.Symbol, ts, sig)
			if sig.Type == domain.SignalExit {
				reason = domain.ExitReasonTrendBreak
			}
		}
		if reason == "" {
			continue
		}

		fill := s.slippage.Apply(bar.Close, feat.ATR, execution.Sell)
		// Position presence was checked above.
		_, _ = pf.Close(t.Symbol, ts, fill, reason)
	}
}

func (s *Simulator) entries(pf *portfolio.Portfolio, active []tradable, ts time.Time) {
	for _, t := range active {
		if pf.HasPosition(t.Symbol) {
			continue
		}
		i, ok := t.index.At(ts)
		if !ok {
			continue
		}
		bar := t.Bars[i]
		feat := s.features.Snapshot(t.Bars, i)
		cat := s.catalyst.Classify(catalyst.Input{
			Instrument: t.Symbol,
			Events:     t.Events,
			Daily:      t.Daily,
			Asof:       ts,
		})
		sig := s.strategy.Evaluate(strategy.Input{
			Bars:     t.Bars,
			Index:    i,
			Feature:  feat,
			Catalyst: cat,
		})
		s.recordSignal(t.Symbol, ts, sig)
		if sig.Type != domain.SignalEntry {
			s.rec.Record(diagnostics.EventEntryReject, diagnostics.Fields{
				"instrument": t.Symbol,
				"ts":         ts,
				"reasons":    strings.Join(sig.ReasonCodes, ","),
			})
			continue
		}

		reg := s.regime.At(ts)
		if reg == domain.RegimeDefensiv {
			s.rec.Record(diagnostics.EventEntryBlockedRegime, diagnostics.Fields{
				"instrument": t.Symbol,
				"ts":         ts,
				"regime":     string(reg),
			})
			continue
		}

		pf.MarkEquity()
		equity, high := pf.Equity(), pf.EquityHigh()
		dd := execution.Drawdown(equity, high)
		riskPct := s.risk.RiskPct(equity, high, dd, reg, cat.Class)

		entry := s.slippage.Apply(bar.Close, feat.ATR, execution.Buy)
		stop := bar.Close
		if feat.LastSwingLowClose != nil {
			stop = *feat.LastSwingLowClose
		}
		size := execution.PositionSize(equity, riskPct, entry, stop)
		if !(size > 0) {
			s.rec.Record(diagnostics.EventEntrySizeZero, diagnostics.Fields{
				"instrument": t.Symbol,
				"ts":         ts,
				"entry":      entry,
				"stop":       stop,
				"risk_pct":   riskPct,
			})
			continue
		}

		// HasPosition was checked above.
		_ = pf.Open(domain.Position{
			Instrument:    t.Symbol,
			EntryTime:     ts,
			EntryPrice:    entry,
			Size:          size,
			StopClose:     stop,
			RiskPct:       riskPct,
			CatalystClass: cat.Class,
			Regime:        reg,
		})
	}
}

func (s *Simulator) forceClose(pf *portfolio.Portfolio, active []tradable) {
	bySymbol := make(map[string]tradable, len(active))
	for _, t := range active {
		bySymbol[t.Symbol] = t
	}
	for _, sym := range pf.OpenInstruments() {
		t := bySymbol[sym]
		last, err := t.index.Last()
		if err != nil {
			continue
		}
		bar := t.Bars[last]
		feat := s.features.Snapshot(t.Bars, last)
		fill := s.slippage.Apply(bar.Close, feat.ATR, execution.Sell)
		_, _ = pf.Close(sym, bar.Timestamp, fill, domain.ExitReasonEODForce)
	}
}

func (s *Simulator) recordSignal(symbol string, ts time.Time, sig domain.Signal) {
	if sig.Type == domain.SignalNone {
		return
	}
	s.rec.Record(diagnostics.EventSignal, diagnostics.Fields{
		"instrument": symbol,
		"ts":         ts,
		"type":       string(sig.Type),
		"reasons":    strings.Join(sig.ReasonCodes, ","),
	})
}
