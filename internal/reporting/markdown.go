package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RenderMarkdown renders the run summary as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	s := r.Stats

	// Header
	sb.WriteString(fmt.Sprintf("# Backtest %s\n\n", r.Run.RunID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Config hash: `%s`\n\n", r.Run.ConfigHash))

	// Run
	sb.WriteString("## Run\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Period | %s .. %s |\n", r.Run.Start.Format("2006-01-02"), r.Run.End.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("| Instruments | %d |\n", len(r.Run.Instruments)))
	sb.WriteString(fmt.Sprintf("| Excluded | %d |\n", len(r.Run.Excluded)))
	sb.WriteString(fmt.Sprintf("| Strategy | %s |\n", r.Run.Params.Strategy.Type))
	sb.WriteString(fmt.Sprintf("| Catalyst mode | %s |\n", r.Run.Params.Catalyst.Mode))
	sb.WriteString(fmt.Sprintf("| Regime reference | %s |\n", r.Run.Params.Regime.Reference))
	sb.WriteString("\n")

	// Performance
	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Initial Equity | %s |\n", fixed(s.InitialEquity, moneyPlaces)))
	sb.WriteString(fmt.Sprintf("| Final Equity | %s |\n", fixed(s.FinalEquity, moneyPlaces)))
	sb.WriteString(fmt.Sprintf("| Total PnL | %s |\n", fixed(s.TotalPnL, moneyPlaces)))
	sb.WriteString(fmt.Sprintf("| Return | %s%% |\n", fixed(s.ReturnPct*100, moneyPlaces)))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %s (%s%%) |\n", fixed(s.MaxDrawdown, moneyPlaces), fixed(s.MaxDrawdownPct*100, moneyPlaces)))
	sb.WriteString(fmt.Sprintf("| Trades | %d |\n", s.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Win Rate | %s |\n", fixed(s.WinRate, ratioPlaces)))
	sb.WriteString(fmt.Sprintf("| Instrument Win Rate | %s |\n", fixed(s.InstrumentWinRate, ratioPlaces)))
	sb.WriteString(fmt.Sprintf("| Max Consecutive Losses | %d |\n", s.MaxConsecutiveLoss))
	sb.WriteString("\n")

	// R-multiples
	sb.WriteString("## R-Multiple Distribution\n\n")
	if s.TotalTrades > 0 {
		sb.WriteString("| Mean | Median | P10 | P90 | Min | Max | Stddev |\n")
		sb.WriteString("|------|--------|-----|-----|-----|-----|--------|\n")
		cells := make([]string, 0, 7)
		for _, v := range []float64{s.RMean, s.RMedian, s.RP10, s.RP90, s.RMin, s.RMax, s.RStddev} {
			cells = append(cells, fixed(v, ratioPlaces))
		}
		sb.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	// Exit reasons
	sb.WriteString("## Exit Reasons\n\n")
	if len(s.ExitReasons) > 0 {
		reasons := make([]string, 0, len(s.ExitReasons))
		for k := range s.ExitReasons {
			reasons = append(reasons, k)
		}
		sort.Strings(reasons)
		sb.WriteString("| Reason | Trades |\n")
		sb.WriteString("|--------|--------|\n")
		for _, k := range reasons {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", k, s.ExitReasons[k]))
		}
	} else {
		sb.WriteString("No trades.\n")
	}
	sb.WriteString("\n")

	// Instruments
	sb.WriteString("## Instruments\n\n")
	if len(r.Instruments) > 0 {
		sb.WriteString("| Instrument | Trades | Wins | PnL | Mean R |\n")
		sb.WriteString("|------------|--------|------|-----|--------|\n")
		for _, row := range r.Instruments {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %s |\n",
				row.Instrument, row.Trades, row.Wins, fixed(row.PnL, moneyPlaces), fixed(row.MeanR, ratioPlaces)))
		}
	} else {
		sb.WriteString("No instruments traded.\n")
	}
	sb.WriteString("\n")

	// Excluded
	if len(r.Run.Excluded) > 0 {
		sb.WriteString("## Excluded Instruments\n\n")
		sb.WriteString(strings.Join(r.Run.Excluded, ", "))
		sb.WriteString("\n\n")
	}

	return sb.String()
}
