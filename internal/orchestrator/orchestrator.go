// Package orchestrator runs one backtest end to end.
// It coordinates: data preparation → regime → simulation → persistence
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"swing-backtest-lab/internal/aggregation"
	"swing-backtest-lab/internal/catalyst"
	"swing-backtest-lab/internal/diagnostics"
	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/execution"
	"swing-backtest-lab/internal/features"
	"swing-backtest-lab/internal/idhash"
	"swing-backtest-lab/internal/observability"
	"swing-backtest-lab/internal/regime"
	"swing-backtest-lab/internal/simulation"
	"swing-backtest-lab/internal/storage"
	"swing-backtest-lab/internal/strategy"
)

// Preparation errors. They are recorded per instrument and never returned
// from Run.
var (
	ErrDataInsufficient = errors.New("insufficient data")
	ErrProviderFailure  = errors.New("provider failure")
)

// ErrMissingProvider is returned by New without a bar provider.
var ErrMissingProvider = errors.New("bar provider is required")

// DefaultPrepWorkers bounds concurrent instrument preparation.
const DefaultPrepWorkers = 4

// Phase names reported to metrics.
const (
	PhasePrepare  = "prepare"
	PhaseRegime   = "regime"
	PhaseSimulate = "simulate"
	PhasePersist  = "persist"
	PhaseRun      = "run"
)

// Orchestrator coordinates one backtest run.
// Flow: prepare instruments → weekly regime → simulation → persistence
type Orchestrator struct {
	params      domain.RunParams
	bars        storage.BarProvider
	events      storage.EventProvider
	prepWorkers int
	rec         diagnostics.Recorder
	metrics     *observability.Metrics

	tradeStore  storage.TradeRecordStore
	runStore    storage.RunStore
	equityStore storage.EquityStore
	database    string

	newRunID func() string
	now      func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	Params domain.RunParams

	// Providers
	Bars   storage.BarProvider
	Events storage.EventProvider // nil means an empty event calendar

	PrepWorkers int                    // 0 means DefaultPrepWorkers
	Recorder    diagnostics.Recorder   // nil means diagnostics.Nop
	Metrics     *observability.Metrics // optional

	// Persistence targets, each optional
	TradeStore  storage.TradeRecordStore
	RunStore    storage.RunStore
	EquityStore storage.EquityStore
	Database    string // label for DB metrics

	NewRunID func() string    // defaults to uuid.NewString
	Now      func() time.Time // defaults to time.Now
}

// New validates opts and creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Bars == nil {
		return nil, ErrMissingProvider
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	if opts.PrepWorkers < 0 {
		return nil, fmt.Errorf("%w: prep workers must be >= 0, got %d", domain.ErrInvalidConfig, opts.PrepWorkers)
	}
	o := &Orchestrator{
		params:      opts.Params,
		bars:        opts.Bars,
		events:      opts.Events,
		prepWorkers: opts.PrepWorkers,
		rec:         diagnostics.OrNop(opts.Recorder),
		metrics:     opts.Metrics,
		tradeStore:  opts.TradeStore,
		runStore:    opts.RunStore,
		equityStore: opts.EquityStore,
		database:    opts.Database,
		newRunID:    opts.NewRunID,
		now:         opts.Now,
	}
	if o.prepWorkers == 0 {
		o.prepWorkers = DefaultPrepWorkers
	}
	if o.database == "" {
		o.database = "store"
	}
	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// RunResult contains results from one run.
type RunResult struct {
	Run       domain.RunSnapshot
	Trades    []domain.TradeRecord
	Equity    []domain.EquityPoint
	Persisted bool
}

// Run executes a backtest over instruments within [start, end].
// Phases:
//  1. Prepare each instrument concurrently (fetch, aggregate, events)
//  2. Classify the weekly regime of the reference instrument
//  3. Simulate the prepared instruments
//  4. Persist run, trades and equity curve when stores are configured
func (o *Orchestrator) Run(ctx context.Context, instruments []string, start, end time.Time) (*RunResult, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end %s must be after start %s",
			domain.ErrInvalidConfig, end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	configHash, err := idhash.ComputeConfigHash(o.params)
	if err != nil {
		return nil, fmt.Errorf("config hash: %w", err)
	}
	runID := o.newRunID()
	began := o.now()

	sim, dropped, err := o.execute(ctx, runID, o.params, instruments, start, end)
	if err != nil {
		o.recordRun("failed", began)
		return nil, err
	}

	excluded := append(append([]string(nil), dropped...), sim.Excluded...)
	sort.Strings(excluded)

	result := &RunResult{
		Run: domain.RunSnapshot{
			RunID:         runID,
			ConfigHash:    configHash,
			Start:         start,
			End:           end,
			Instruments:   sim.Included,
			Excluded:      excluded,
			Params:        o.params,
			InitialEquity: o.params.Simulation.InitialEquity,
			FinalEquity:   sim.FinalEquity,
			CreatedAt:     o.now().UTC(),
		},
		Trades: sim.Trades,
		Equity: sim.Equity,
	}

	if o.persistEnabled() {
		t := o.now()
		if err := o.persist(ctx, result); err != nil {
			o.recordRun("failed", began)
			return nil, fmt.Errorf("persist run %s: %w", runID, err)
		}
		o.recordPhase(PhasePersist, t)
		result.Persisted = true
	}

	o.recordRun("success", began)
	return result, nil
}

// Replay re-executes a stored run with its own parameters, window and
// instruments. Its signature matches verification.ReplayFunc.
func (o *Orchestrator) Replay(ctx context.Context, run domain.RunSnapshot) ([]domain.TradeRecord, float64, error) {
	if err := run.Params.Validate(); err != nil {
		return nil, 0, err
	}
	sim, _, err := o.execute(ctx, run.RunID, run.Params, run.Instruments, run.Start, run.End)
	if err != nil {
		return nil, 0, err
	}
	return sim.Trades, sim.FinalEquity, nil
}

// execute runs phases 1-3 with params and returns the simulation result
// plus the instruments dropped during preparation.
func (o *Orchestrator) execute(ctx context.Context, runID string, params domain.RunParams, instruments []string, start, end time.Time) (*simulation.Result, []string, error) {
	agg, err := aggregation.NewSessionAggregator(params.Aggregation)
	if err != nil {
		return nil, nil, err
	}

	t := o.now()
	prepared, dropped, err := o.prepare(ctx, agg, params.Catalyst, instruments, start, end)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare instruments: %w", err)
	}
	o.recordPhase(PhasePrepare, t)

	t = o.now()
	series, err := o.regimeSeries(ctx, agg, params.Regime, start, end)
	if err != nil {
		return nil, nil, err
	}
	o.recordPhase(PhaseRegime, t)

	sim, err := o.simulator(runID, params, series)
	if err != nil {
		return nil, nil, err
	}
	t = o.now()
	res, err := sim.Run(prepared)
	if err != nil {
		return nil, nil, err
	}
	o.recordPhase(PhaseSimulate, t)
	return res, dropped, nil
}

// simulator builds the per-run components from params.
func (o *Orchestrator) simulator(runID string, params domain.RunParams, series *regime.Series) (*simulation.Simulator, error) {
	strat, err := strategy.FromConfig(params.Strategy)
	if err != nil {
		return nil, err
	}
	feats, err := features.NewBuilder(params.Strategy, o.rec)
	if err != nil {
		return nil, err
	}
	cat, err := catalyst.FromConfig(params.Catalyst, o.rec)
	if err != nil {
		return nil, err
	}
	slip, err := execution.NewSlippageModel(params.Slippage, o.rec)
	if err != nil {
		return nil, err
	}
	risk, err := execution.NewRiskEngine(params.Risk)
	if err != nil {
		return nil, err
	}
	return simulation.New(simulation.Options{
		Config:   params.Simulation,
		RunID:    runID,
		Strategy: strat,
		Features: feats,
		Catalyst: cat,
		Regime:   series,
		Slippage: slip,
		Risk:     risk,
		Recorder: o.rec,
	})
}

// prepare fetches and aggregates every instrument with at most prepWorkers
// in flight. Failing instruments are recorded and dropped. Only context
// cancellation aborts the phase. Output keeps the input order.
func (o *Orchestrator) prepare(ctx context.Context, agg *aggregation.SessionAggregator, cat domain.CatalystConfig, instruments []string, start, end time.Time) ([]simulation.Instrument, []string, error) {
	symbols := dedupe(instruments)
	slots := make([]*simulation.Instrument, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.prepWorkers)
	for i, sym := range symbols {
		g.Go(func() error {
			in, err := o.prepareOne(gctx, agg, cat, sym, start, end)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				o.recordDrop(sym, err)
				return nil
			}
			slots[i] = in
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var prepared []simulation.Instrument
	var dropped []string
	for i, in := range slots {
		if in == nil {
			dropped = append(dropped, symbols[i])
			continue
		}
		prepared = append(prepared, *in)
	}
	return prepared, dropped, nil
}

// prepareOne builds the read-only data of one instrument.
func (o *Orchestrator) prepareOne(ctx context.Context, agg *aggregation.SessionAggregator, cat domain.CatalystConfig, sym string, start, end time.Time) (*simulation.Instrument, error) {
	hourly, err := o.bars.Fetch(ctx, sym, start, end, domain.ResolutionHourly)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch bars: %w", ErrProviderFailure, err)
	}
	if len(hourly) == 0 {
		return nil, fmt.Errorf("%w: no hourly bars", ErrDataInsufficient)
	}

	bars := agg.Aggregate(hourly)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars inside the session", ErrDataInsufficient)
	}

	var events []time.Time
	if o.events != nil {
		// events shortly before start can still be active at start
		evStart := start.AddDate(0, 0, -cat.WindowDays)
		events, err = o.events.Events(ctx, sym, evStart, end)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch events: %w", ErrProviderFailure, err)
		}
	}

	in := &simulation.Instrument{
		Symbol: sym,
		Bars:   bars,
		Daily:  agg.Daily(hourly),
		Events: events,
	}
	o.rec.Record(diagnostics.EventInstrumentPrepared, diagnostics.Fields{
		"instrument": sym,
		"hourly":     len(hourly),
		"bars":       len(in.Bars),
		"daily":      len(in.Daily),
		"events":     len(in.Events),
	})
	return in, nil
}

// regimeSeries classifies the reference instrument. Any failure degrades to
// an all-unknown series. Only context cancellation is returned.
func (o *Orchestrator) regimeSeries(ctx context.Context, agg *aggregation.SessionAggregator, cfg domain.RegimeConfig, start, end time.Time) (*regime.Series, error) {
	cls, err := regime.NewClassifier(cfg, o.rec)
	if err != nil {
		return nil, err
	}
	unavailable := func(reason string, fields diagnostics.Fields) *regime.Series {
		fields["reference"] = cls.Reference()
		fields["reason"] = reason
		o.rec.Record(diagnostics.EventRegimeUnavailable, fields)
		return regime.Unknown()
	}

	hourly, err := o.bars.Fetch(ctx, cls.Reference(), start, end, domain.ResolutionHourly)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return unavailable("PROVIDER_FAILURE", diagnostics.Fields{"error": err.Error()}), nil
	}
	if len(hourly) == 0 {
		return unavailable("NO_DATA", diagnostics.Fields{}), nil
	}

	series := cls.Weekly(aggregation.ToDaily(hourly, agg.Location()))
	if series.Weeks() == 0 {
		return unavailable("INSUFFICIENT_HISTORY", diagnostics.Fields{"hourly": len(hourly)}), nil
	}
	return series, nil
}

func (o *Orchestrator) persistEnabled() bool {
	return o.tradeStore != nil || o.runStore != nil || o.equityStore != nil
}

// persist writes the run snapshot, then the ledger, then the equity curve.
func (o *Orchestrator) persist(ctx context.Context, r *RunResult) error {
	if o.runStore != nil {
		run := r.Run
		if err := o.timed("insert_run", func() error { return o.runStore.Insert(ctx, &run) }); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
	}
	if o.tradeStore != nil && len(r.Trades) > 0 {
		trades := make([]*domain.TradeRecord, len(r.Trades))
		for i := range r.Trades {
			trades[i] = &r.Trades[i]
		}
		if err := o.timed("insert_trades", func() error { return o.tradeStore.InsertBulk(ctx, trades) }); err != nil {
			return fmt.Errorf("insert trades: %w", err)
		}
	}
	if o.equityStore != nil && len(r.Equity) > 0 {
		if err := o.timed("insert_equity", func() error { return o.equityStore.InsertBulk(ctx, r.Run.RunID, r.Equity) }); err != nil {
			return fmt.Errorf("insert equity: %w", err)
		}
	}
	o.rec.Record(diagnostics.EventPersistDone, diagnostics.Fields{
		"run_id": r.Run.RunID,
		"trades": len(r.Trades),
		"equity": len(r.Equity),
	})
	return nil
}

func (o *Orchestrator) timed(operation string, fn func() error) error {
	t := o.now()
	err := fn()
	if o.metrics != nil {
		o.metrics.RecordDBQuery(o.database, operation, o.now().Sub(t).Seconds(), err)
	}
	return err
}

func (o *Orchestrator) recordDrop(sym string, err error) {
	if errors.Is(err, ErrProviderFailure) {
		o.rec.Record(diagnostics.EventProviderFailure, diagnostics.Fields{
			"instrument": sym,
			"error":      err.Error(),
		})
	}
	o.rec.Record(diagnostics.EventInstrumentExcluded, diagnostics.Fields{
		"instrument": sym,
		"reason":     "DATA_INSUFFICIENT",
		"error":      err.Error(),
	})
}

func (o *Orchestrator) recordPhase(phase string, began time.Time) {
	if o.metrics != nil {
		o.metrics.RecordPhase(phase, o.now().Sub(began).Seconds())
	}
}

func (o *Orchestrator) recordRun(status string, began time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.RecordRun(PhaseRun, status, o.now().Sub(began).Seconds())
	if status == "success" {
		o.metrics.LastSuccessfulRun.SetToCurrentTime()
	}
}

// dedupe drops blank and repeated symbols, keeping first occurrences.
func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
