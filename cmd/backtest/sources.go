package main

import (
	"context"
	"fmt"

	"swing-backtest-lab/internal/config"
	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
	chstore "swing-backtest-lab/internal/storage/clickhouse"
	"swing-backtest-lab/internal/storage/csvfile"
	pgstore "swing-backtest-lab/internal/storage/postgres"
)

// sources holds the providers and stores selected by the run file.
type sources struct {
	bars     storage.BarProvider
	events   storage.EventProvider
	symbols  func(ctx context.Context) ([]string, error)
	database string

	// Persistence, nil unless enabled
	trades storage.TradeRecordStore
	runs   storage.RunStore
	equity storage.EquityStore

	closers []func()
}

// Close releases every database connection.
func (s *sources) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openSources connects the configured data source and, when persistence or
// a persisted-run command needs them, the run stores. PostgreSQL keeps runs
// and trades; ClickHouse keeps equity curves when configured.
func openSources(ctx context.Context, cfg *config.Config) (*sources, error) {
	s := &sources{}

	var pool *pgstore.Pool
	var conn *chstore.Conn
	openPool := func() (*pgstore.Pool, error) {
		if pool != nil {
			return pool, nil
		}
		p, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		pool = p
		s.closers = append(s.closers, p.Close)
		return p, nil
	}
	openConn := func() (*chstore.Conn, error) {
		if conn != nil {
			return conn, nil
		}
		c, err := chstore.NewConn(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		conn = c
		s.closers = append(s.closers, func() { _ = c.Close() })
		return c, nil
	}

	switch cfg.Data.Source {
	case config.SourceCSV:
		p := csvfile.New(cfg.Data.CSVDir)
		s.bars, s.events = p, p
		s.symbols = func(context.Context) ([]string, error) {
			return p.Symbols(domain.ResolutionHourly)
		}

	case config.SourcePostgres:
		p, err := openPool()
		if err != nil {
			s.Close()
			return nil, err
		}
		bars := pgstore.NewBarStore(p)
		s.bars, s.events = bars, pgstore.NewEventStore(p)
		s.symbols = func(ctx context.Context) ([]string, error) {
			return bars.Instruments(ctx, domain.ResolutionHourly)
		}

	case config.SourceClickhouse:
		c, err := openConn()
		if err != nil {
			s.Close()
			return nil, err
		}
		bars := chstore.NewBarStore(c)
		s.bars = bars
		s.symbols = func(ctx context.Context) ([]string, error) {
			return bars.Instruments(ctx, domain.ResolutionHourly)
		}
		// the earnings calendar lives in postgres only
		if cfg.Storage.PostgresDSN != "" {
			p, err := openPool()
			if err != nil {
				s.Close()
				return nil, err
			}
			s.events = pgstore.NewEventStore(p)
		}
	}

	if cfg.Storage.PostgresDSN == "" {
		return s, nil
	}
	p, err := openPool()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.database = "postgres"
	s.trades = pgstore.NewTradeRecordStore(p)
	s.runs = pgstore.NewRunStore(p)
	if cfg.Storage.ClickhouseDSN != "" {
		c, err := openConn()
		if err != nil {
			s.Close()
			return nil, err
		}
		s.equity = chstore.NewEquityStore(c)
	}
	return s, nil
}

// withoutPersistence drops the run stores so that a run only writes reports.
func (s *sources) withoutPersistence() *sources {
	out := *s
	out.trades, out.runs, out.equity = nil, nil, nil
	return &out
}
