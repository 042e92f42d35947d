package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"swing-backtest-lab/internal/domain"
)

// Fixed-point places per column kind.
const (
	pricePlaces = 4
	moneyPlaces = 2
	ratioPlaces = 6
)

var tradeHeader = []string{
	"trade_id", "instrument",
	"entry_time", "entry_price", "size", "stop_close", "risk_pct", "catalyst_class", "regime",
	"exit_time", "exit_price", "exit_reason",
	"pnl", "r_multiple",
}

// WriteTradesCSV writes the ledger, one row per trade.
func WriteTradesCSV(w io.Writer, trades []domain.TradeRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(tradeHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range trades {
		row := []string{
			t.TradeID,
			t.Instrument,
			formatTime(t.EntryTime),
			fixed(t.EntryPrice, pricePlaces),
			fixed(t.Size, pricePlaces),
			fixed(t.StopClose, pricePlaces),
			fixed(t.RiskPct, ratioPlaces),
			string(t.CatalystClass),
			string(t.Regime),
			formatTime(t.ExitTime),
			fixed(t.ExitPrice, pricePlaces),
			t.ExitReason,
			fixed(t.PnL, moneyPlaces),
			fixed(t.RMultiple, ratioPlaces),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write trade %s: %w", t.TradeID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquityCSV writes the equity curve.
func WriteEquityCSV(w io.Writer, curve []domain.EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "equity"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, p := range curve {
		if err := cw.Write([]string{formatTime(p.Timestamp), fixed(p.Equity, moneyPlaces)}); err != nil {
			return fmt.Errorf("write equity point: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// fixed renders v rounded half away from zero to places decimals.
func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
