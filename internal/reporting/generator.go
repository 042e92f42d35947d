package reporting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/metrics"
	"swing-backtest-lab/internal/portfolio"
	"swing-backtest-lab/internal/storage"
)

// Generator builds reports from run results or stored runs.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Build assembles a report. A nil curve is rebuilt from the trades.
func (g *Generator) Build(run domain.RunSnapshot, trades []domain.TradeRecord, curve []domain.EquityPoint) *Report {
	sorted := make([]domain.TradeRecord, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ExitTime.Equal(sorted[j].ExitTime) {
			return sorted[i].ExitTime.Before(sorted[j].ExitTime)
		}
		return sorted[i].Instrument < sorted[j].Instrument
	})
	if curve == nil {
		curve = portfolio.EquityCurve(sorted, run.FinalEquity)
	}

	return &Report{
		GeneratedAt: g.now(),
		Run:         run,
		Stats:       metrics.Compute(sorted, curve, run.InitialEquity),
		Trades:      sorted,
		Equity:      curve,
		Instruments: instrumentRows(sorted),
	}
}

// FromStore loads runID from the stores and builds its report.
// equityStore may be nil.
func (g *Generator) FromStore(ctx context.Context, runID string, runs storage.RunStore, trades storage.TradeRecordStore, equityStore storage.EquityStore) (*Report, error) {
	run, err := runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	ptrs, err := trades.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades %s: %w", runID, err)
	}
	ledger := make([]domain.TradeRecord, len(ptrs))
	for i, t := range ptrs {
		ledger[i] = *t
	}

	var curve []domain.EquityPoint
	if equityStore != nil {
		if curve, err = equityStore.GetByRunID(ctx, runID); err != nil {
			return nil, fmt.Errorf("load equity curve %s: %w", runID, err)
		}
	}
	return g.Build(*run, ledger, curve), nil
}

// WriteDir writes the report files into <outDir>/<run-id>/ and returns the
// created paths.
func WriteDir(outDir string, r *Report) ([]string, error) {
	dir := filepath.Join(outDir, r.Run.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	var trades, equity bytes.Buffer
	if err := WriteTradesCSV(&trades, r.Trades); err != nil {
		return nil, fmt.Errorf("render trades: %w", err)
	}
	if err := WriteEquityCSV(&equity, r.Equity); err != nil {
		return nil, fmt.Errorf("render equity: %w", err)
	}
	params, err := json.MarshalIndent(r.Run, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render params: %w", err)
	}

	files := []struct {
		name string
		data []byte
	}{
		{TradesFile, trades.Bytes()},
		{EquityFile, equity.Bytes()},
		{ParamsFile, append(params, '\n')},
		{SummaryFile, []byte(RenderMarkdown(r))},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		p := filepath.Join(dir, f.name)
		if err := os.WriteFile(p, f.data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// instrumentRows groups trades by instrument, best pnl first, then symbol.
func instrumentRows(trades []domain.TradeRecord) []InstrumentRow {
	byInst := make(map[string]*InstrumentRow)
	for _, t := range trades {
		row := byInst[t.Instrument]
		if row == nil {
			row = &InstrumentRow{Instrument: t.Instrument}
			byInst[t.Instrument] = row
		}
		row.Trades++
		if t.PnL > 0 {
			row.Wins++
		}
		row.PnL += t.PnL
		row.MeanR += t.RMultiple
	}

	rows := make([]InstrumentRow, 0, len(byInst))
	for _, row := range byInst {
		row.MeanR /= float64(row.Trades)
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PnL != rows[j].PnL {
			return rows[i].PnL > rows[j].PnL
		}
		return rows[i].Instrument < rows[j].Instrument
	})
	return rows
}
