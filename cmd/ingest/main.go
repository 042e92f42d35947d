// Command ingest loads hourly-bar and earnings CSV files into a database so
// that runs can replay from PostgreSQL or ClickHouse.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"swing-backtest-lab/internal/config"
	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
	chstore "swing-backtest-lab/internal/storage/clickhouse"
	"swing-backtest-lab/internal/storage/csvfile"
	"swing-backtest-lab/internal/storage/memory"
	pgstore "swing-backtest-lab/internal/storage/postgres"
)

// symbolData is the parsed content of one symbol's files.
type symbolData struct {
	symbol string
	bars   []domain.Bar
	events []time.Time
}

func main() {
	// Parse flags
	csvDir := flag.String("csv-dir", "", "Directory with <SYMBOL>_1h.csv and <SYMBOL>_earnings.csv files (required)")
	target := flag.String("target", "postgres", "Target store: postgres, clickhouse, memory")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	symbols := flag.String("symbols", "", "Comma-separated symbols (default: every file in --csv-dir)")
	workers := flag.Int("workers", 4, "Concurrent file parsers")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags)

	_ = godotenv.Load()
	if *postgresDSN == "" {
		*postgresDSN = os.Getenv(config.EnvPostgresDSN)
	}
	if *clickhouseDSN == "" {
		*clickhouseDSN = os.Getenv(config.EnvClickhouseDSN)
	}

	if *csvDir == "" {
		logger.Fatal("--csv-dir is required")
	}
	if *workers < 1 {
		logger.Fatal("--workers must be >= 1")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create stores
	var barStore storage.BarStore
	var eventStore storage.EventStore

	switch strings.ToLower(*target) {
	case "postgres":
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required for target postgres")
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		barStore = pgstore.NewBarStore(pool)
		eventStore = pgstore.NewEventStore(pool)

	case "clickhouse":
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required for target clickhouse")
		}
		conn, err := chstore.NewConn(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		barStore = chstore.NewBarStore(conn)

		// the earnings calendar lives in postgres only
		if *postgresDSN != "" {
			pool, err := pgstore.NewPool(ctx, *postgresDSN)
			if err != nil {
				logger.Fatalf("connect to postgres: %v", err)
			}
			defer pool.Close()
			eventStore = pgstore.NewEventStore(pool)
		} else {
			logger.Println("No --postgres-dsn: earnings files are skipped")
		}

	case "memory":
		// Parses and validates files without a database
		barStore = memory.NewBarStore()
		eventStore = memory.NewEventStore()

	default:
		logger.Fatalf("Invalid target: %s. Must be postgres, clickhouse, or memory", *target)
	}

	provider := csvfile.New(*csvDir)
	list := splitList(*symbols)
	if len(list) == 0 {
		var err error
		list, err = provider.Symbols(domain.ResolutionHourly)
		if err != nil {
			logger.Fatalf("list csv files: %v", err)
		}
	}
	if len(list) == 0 {
		logger.Fatalf("No *_1h.csv files in %s", *csvDir)
	}
	logger.Printf("Ingesting %d symbols from %s into %s", len(list), *csvDir, *target)

	data, err := parseAll(ctx, provider, list, *workers, eventStore != nil)
	if err != nil {
		logger.Fatalf("parse csv: %v", err)
	}

	var bars, events, skipped int
	for _, d := range data {
		nb, ne, err := ingestSymbol(ctx, barStore, eventStore, d)
		switch {
		case errors.Is(err, storage.ErrDuplicateKey):
			logger.Printf("  %s: already ingested, skipping", d.symbol)
			skipped++
			continue
		case err != nil:
			logger.Fatalf("ingest %s: %v", d.symbol, err)
		}
		logger.Printf("  %s: %d bars, %d events", d.symbol, nb, ne)
		bars += nb
		events += ne
	}

	logger.Printf("Ingest complete: %d symbols, %d bars, %d events, %d skipped", len(data), bars, events, skipped)
}

// parseAll reads every symbol's files with at most workers in flight.
// Output keeps the order of symbols.
func parseAll(ctx context.Context, p *csvfile.Provider, symbols []string, workers int, withEvents bool) ([]symbolData, error) {
	out := make([]symbolData, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sym := range symbols {
		g.Go(func() error {
			d, err := readSymbol(gctx, p, sym, withEvents)
			if err != nil {
				return fmt.Errorf("%s: %w", sym, err)
			}
			out[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func readSymbol(ctx context.Context, p *csvfile.Provider, sym string, withEvents bool) (symbolData, error) {
	d := symbolData{symbol: sym}

	f, err := os.Open(p.BarPath(sym, domain.ResolutionHourly))
	if err != nil {
		return d, err
	}
	defer f.Close()
	if d.bars, err = csvfile.ReadBars(f); err != nil {
		return d, err
	}

	if !withEvents {
		return d, nil
	}
	ef, err := os.Open(p.EventPath(sym))
	if errors.Is(err, os.ErrNotExist) {
		return d, nil
	}
	if err != nil {
		return d, err
	}
	defer ef.Close()
	if d.events, err = csvfile.ReadDates(ef); err != nil {
		return d, err
	}
	return d, ctx.Err()
}

// ingestSymbol inserts the bars, then the events, of one symbol. Each batch
// is atomic, so a symbol is either fully present or rejected as duplicate.
func ingestSymbol(ctx context.Context, bars storage.BarStore, events storage.EventStore, d symbolData) (int, int, error) {
	recs := make([]*domain.BarRecord, len(d.bars))
	for i, b := range d.bars {
		recs[i] = &domain.BarRecord{Instrument: d.symbol, Resolution: domain.ResolutionHourly, Bar: b}
	}
	if err := bars.InsertBulk(ctx, recs); err != nil {
		return 0, 0, fmt.Errorf("insert bars: %w", err)
	}

	if events == nil || len(d.events) == 0 {
		return len(recs), 0, nil
	}
	evs := make([]*domain.EarningsEvent, len(d.events))
	for i, t := range d.events {
		evs[i] = &domain.EarningsEvent{Instrument: d.symbol, Date: t}
	}
	if err := events.InsertBulk(ctx, evs); err != nil {
		return len(recs), 0, fmt.Errorf("insert events: %w", err)
	}
	return len(recs), len(evs), nil
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
