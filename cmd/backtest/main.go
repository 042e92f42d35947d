// Command backtest runs the swing strategy over a sampled universe and writes
// the ledger reports. It can also verify or re-render a persisted run.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"swing-backtest-lab/internal/config"
	"swing-backtest-lab/internal/diagnostics"
	"swing-backtest-lab/internal/metrics"
	"swing-backtest-lab/internal/observability"
	"swing-backtest-lab/internal/orchestrator"
	"swing-backtest-lab/internal/reporting"
	"swing-backtest-lab/internal/universe"
	"swing-backtest-lab/internal/verification"
)

func main() {
	os.Exit(run())
}

// run executes one command mode and returns the process exit code, so that
// deferred cleanup runs before the process exits.
func run() int {
	// Parse flags
	configPath := flag.String("config", "", "YAML run file (defaults apply when empty)")
	start := flag.String("start", "", "Backtest start date YYYY-MM-DD")
	end := flag.String("end", "", "Backtest end date YYYY-MM-DD (inclusive)")
	source := flag.String("source", "", "Data source: csv, postgres, clickhouse")
	csvDir := flag.String("csv-dir", "", "Directory with <SYMBOL>_1h.csv and <SYMBOL>_earnings.csv files")
	tickersFile := flag.String("tickers-file", "", "Candidate symbols, one per line")
	instruments := flag.String("instruments", "", "Comma-separated instruments (skips sampling)")
	sampleSize := flag.Int("sample", -1, "Universe sample size (0 takes all candidates)")
	outDir := flag.String("out", "", "Report output directory")
	prepWorkers := flag.Int("prep-workers", -1, "Concurrent instrument preparation workers")

	// Storage
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	persist := flag.Bool("persist", false, "Persist run, trades and equity curve")

	// Persisted runs
	verifyRun := flag.String("verify-run", "", "Replay a persisted run and compare ledgers")
	reportRun := flag.String("report-run", "", "Write reports of a persisted run")
	listRuns := flag.Bool("list-runs", false, "List persisted runs, newest first")

	// Output
	outputJSON := flag.Bool("json", false, "Print the run summary as JSON")
	logLevel := flag.String("log-level", "", "Diagnostics level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "Diagnostics format: json, console")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	// DSNs may come from a .env file
	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv(os.Getenv)

	// Flags override file values
	setString(&cfg.Run.Start, *start)
	setString(&cfg.Run.End, *end)
	setString(&cfg.Data.Source, *source)
	setString(&cfg.Data.CSVDir, *csvDir)
	setString(&cfg.Data.TickersFile, *tickersFile)
	setString(&cfg.Run.OutDir, *outDir)
	setString(&cfg.Storage.PostgresDSN, *postgresDSN)
	setString(&cfg.Storage.ClickhouseDSN, *clickhouseDSN)
	setString(&cfg.Log.Level, *logLevel)
	setString(&cfg.Log.Format, *logFormat)
	setString(&cfg.Metrics.Addr, *metricsAddr)
	if *instruments != "" {
		cfg.Data.Instruments = splitList(*instruments)
	}
	if *sampleSize >= 0 {
		cfg.Universe.SampleSize = *sampleSize
	}
	if *prepWorkers >= 0 {
		cfg.Run.PrepWorkers = *prepWorkers
	}
	if *persist {
		cfg.Storage.Persist = true
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	if (*verifyRun != "" || *reportRun != "" || *listRuns) && cfg.Storage.PostgresDSN == "" {
		logger.Fatal("--postgres-dsn is required for --verify-run, --report-run and --list-runs")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Diagnostics: structured log plus Prometheus counters
	registry := prometheus.NewRegistry()
	m := observability.NewMetrics(cfg.Metrics.Namespace, registry)
	zl := diagnostics.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	rec := diagnostics.Multi(diagnostics.NewZerolog(zl), m.Recorder())

	if cfg.Metrics.Addr != "" {
		srv := startMetricsServer(cfg.Metrics.Addr, registry, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	src, err := openSources(ctx, cfg)
	if err != nil {
		logger.Fatalf("open data source: %v", err)
	}
	defer src.Close()

	sink := src
	if !cfg.Storage.Persist {
		sink = src.withoutPersistence()
	}
	orch, err := orchestrator.New(orchestrator.Options{
		Params:      cfg.RunParams,
		Bars:        src.bars,
		Events:      src.events,
		PrepWorkers: cfg.Run.PrepWorkers,
		Recorder:    rec,
		Metrics:     m,
		TradeStore:  sink.trades,
		RunStore:    sink.runs,
		EquityStore: sink.equity,
		Database:    src.database,
	})
	if err != nil {
		logger.Fatalf("create orchestrator: %v", err)
	}

	switch {
	case *verifyRun != "":
		return runVerify(ctx, logger, orch, src, *verifyRun, *outputJSON)
	case *reportRun != "":
		runReport(ctx, logger, src, *reportRun, cfg.Run.OutDir, *outputJSON)
		return 0
	case *listRuns:
		runList(ctx, logger, src, *outputJSON)
		return 0
	}

	// Resolve and sample the universe
	symbols, err := resolveUniverse(ctx, cfg, src, rec)
	if err != nil {
		logger.Fatalf("universe: %v", err)
	}

	startTime, endTime, err := cfg.Window()
	if err != nil {
		logger.Fatalf("window: %v", err)
	}

	logger.Printf("Running backtest: instruments=%d start=%s end=%s source=%s",
		len(symbols), cfg.Run.Start, cfg.Run.End, cfg.Data.Source)

	res, err := orch.Run(ctx, symbols, startTime, endTime)
	if err != nil {
		logger.Fatalf("backtest failed: %v", err)
	}

	report := reporting.NewGenerator().Build(res.Run, res.Trades, res.Equity)
	files, err := reporting.WriteDir(cfg.Run.OutDir, report)
	if err != nil {
		logger.Fatalf("write reports: %v", err)
	}
	for _, f := range files {
		logger.Printf("  wrote %s", f)
	}

	printSummary(report, *outputJSON)
	return 0
}

// resolveUniverse returns explicit instruments as given, otherwise samples
// the tickers file or every symbol the source knows.
func resolveUniverse(ctx context.Context, cfg *config.Config, src *sources, rec diagnostics.Recorder) ([]string, error) {
	if len(cfg.Data.Instruments) > 0 {
		return cfg.Data.Instruments, nil
	}

	var candidates []string
	if cfg.Data.TickersFile != "" {
		f, err := os.Open(cfg.Data.TickersFile)
		if err != nil {
			return nil, fmt.Errorf("open tickers file: %w", err)
		}
		defer f.Close()
		candidates, err = universe.ReadTickers(f)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		candidates, err = src.symbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("list symbols: %w", err)
		}
	}

	// the regime reference is not a tradable candidate
	ref := cfg.Regime.Reference
	sampler, err := universe.NewSampler(cfg.Universe, func(sym string) bool { return sym != ref }, rec)
	if err != nil {
		return nil, err
	}
	return sampler.Sample(candidates)
}

func runVerify(ctx context.Context, logger *log.Logger, orch *orchestrator.Orchestrator, src *sources, runID string, asJSON bool) int {
	v, err := verification.NewReplayVerifier(verification.ReplayVerifierOptions{
		RunStore:   src.runs,
		TradeStore: src.trades,
		Replay:     orch.Replay,
	})
	if err != nil {
		logger.Fatalf("create verifier: %v", err)
	}
	report, err := v.VerifyRun(ctx, runID)
	if err != nil {
		if errors.Is(err, verification.ErrRunNotFound) {
			logger.Printf("run %s not found", runID)
			return 2
		}
		logger.Fatalf("verify run: %v", err)
	}

	if asJSON {
		output, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(output))
	} else {
		printVerification(os.Stdout, runID, report)
	}
	if !report.OK() {
		return 1
	}
	logger.Printf("run %s verified", runID)
	return 0
}

// printVerification writes the replay comparison summary followed by each
// divergence it found.
func printVerification(w io.Writer, runID string, report *verification.VerificationReport) {
	fmt.Fprintf(w, "Run %s: %d trades, %d matched, %d divergent, %d missing, %d extra\n",
		runID, report.TotalTrades, report.MatchedTrades, report.DivergentTrades,
		len(report.MissingTrades), len(report.ExtraTrades))
	for _, d := range report.RunDivergences {
		fmt.Fprintf(w, "  run %s: stored=%v replayed=%v\n", d.Field, d.Expected, d.Actual)
	}
	for _, r := range report.Results {
		if r.Match {
			continue
		}
		fmt.Fprintf(w, "  trade %s (%s):\n", r.TradeID, r.Instrument)
		for _, d := range r.Divergences {
			fmt.Fprintf(w, "    %s: stored=%v replayed=%v\n", d.Field, d.Expected, d.Actual)
		}
	}
	for _, id := range report.MissingTrades {
		fmt.Fprintf(w, "  missing trade %s\n", id)
	}
	for _, id := range report.ExtraTrades {
		fmt.Fprintf(w, "  extra trade %s\n", id)
	}
}

func runReport(ctx context.Context, logger *log.Logger, src *sources, runID, outDir string, asJSON bool) {
	report, err := reporting.NewGenerator().FromStore(ctx, runID, src.runs, src.trades, src.equity)
	if err != nil {
		logger.Fatalf("load run %s: %v", runID, err)
	}
	files, err := reporting.WriteDir(outDir, report)
	if err != nil {
		logger.Fatalf("write reports: %v", err)
	}
	for _, f := range files {
		logger.Printf("  wrote %s", f)
	}

	stats, err := metrics.NewAggregator(src.trades, src.runs, src.equity).ComputeForRun(ctx, runID)
	if err != nil && !errors.Is(err, metrics.ErrNoTrades) {
		logger.Fatalf("compute stats: %v", err)
	}
	if asJSON && stats != nil {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
		return
	}
	printSummary(report, false)
}

func runList(ctx context.Context, logger *log.Logger, src *sources, asJSON bool) {
	runs, err := src.runs.List(ctx)
	if err != nil {
		logger.Fatalf("list runs: %v", err)
	}
	if asJSON {
		output, _ := json.MarshalIndent(runs, "", "  ")
		fmt.Println(string(output))
		return
	}
	fmt.Printf("%-36s  %-19s  %-23s  %5s  %12s\n", "RUN ID", "CREATED", "WINDOW", "INSTR", "FINAL EQUITY")
	for _, r := range runs {
		fmt.Printf("%-36s  %-19s  %s..%s  %5d  %12.2f\n",
			r.RunID, r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly),
			len(r.Instruments), r.FinalEquity)
	}
}

// printSummary outputs the run result.
func printSummary(r *reporting.Report, asJSON bool) {
	if asJSON {
		output, _ := json.MarshalIndent(struct {
			Run   any `json:"run"`
			Stats any `json:"stats"`
		}{r.Run, r.Stats}, "", "  ")
		fmt.Println(string(output))
		return
	}

	s := r.Stats
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Run ID:             %s\n", r.Run.RunID)
	fmt.Printf("Config Hash:        %s\n", r.Run.ConfigHash)
	fmt.Printf("Window:             %s .. %s\n", r.Run.Start.Format(time.DateOnly), r.Run.End.Format(time.DateOnly))
	fmt.Printf("Instruments:        %d simulated, %d excluded\n", len(r.Run.Instruments), len(r.Run.Excluded))
	fmt.Println()
	fmt.Printf("Trades:             %d (%d wins, %d losses)\n", s.TotalTrades, s.Wins, s.Losses)
	fmt.Printf("Win Rate:           %.2f%%\n", s.WinRate*100)
	fmt.Printf("Mean R:             %.3f\n", s.RMean)
	fmt.Printf("Max Drawdown:       %.2f (%.2f%%)\n", s.MaxDrawdown, s.MaxDrawdownPct*100)
	fmt.Printf("Equity:             %.2f -> %.2f (%.2f%%)\n", s.InitialEquity, s.FinalEquity, s.ReturnPct*100)
}

func startMetricsServer(addr string, g prometheus.Gatherer, logger *log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler(g))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Printf("Starting metrics server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server error: %v", err)
		}
	}()
	return srv
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
