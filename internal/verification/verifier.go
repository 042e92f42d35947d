// Package verification checks that a stored ledger is reproduced exactly by
// replaying the run with its stored parameters.
package verification

import (
	"math"
	"sort"
	"time"

	"swing-backtest-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single trade.
type VerificationResult struct {
	TradeID     string
	Instrument  string
	Match       bool
	Divergences []FieldDivergence
	StoredPnL   float64
	ReplayedPnL float64
}

// VerificationReport contains results for one run.
type VerificationReport struct {
	RunID           string
	TotalTrades     int      // stored trades
	MatchedTrades   int      // trades that matched exactly
	DivergentTrades int      // trades present in both ledgers with divergences
	MissingTrades   []string // stored trade ids the replay did not produce
	ExtraTrades     []string // replayed trade ids absent from the store
	RunDivergences  []FieldDivergence
	Results         []VerificationResult // stored ledger order
}

// OK reports whether the replay reproduced the stored run.
func (r *VerificationReport) OK() bool {
	return r.DivergentTrades == 0 && len(r.MissingTrades) == 0 &&
		len(r.ExtraTrades) == 0 && len(r.RunDivergences) == 0
}

type fieldCheck struct {
	name  string
	equal func(a, b *domain.TradeRecord) bool
	value func(t *domain.TradeRecord) interface{}
}

func floatField(name string, get func(t *domain.TradeRecord) float64) fieldCheck {
	return fieldCheck{
		name:  name,
		equal: func(a, b *domain.TradeRecord) bool { return floatEquals(get(a), get(b)) },
		value: func(t *domain.TradeRecord) interface{} { return get(t) },
	}
}

func timeField(name string, get func(t *domain.TradeRecord) time.Time) fieldCheck {
	return fieldCheck{
		name:  name,
		equal: func(a, b *domain.TradeRecord) bool { return get(a).Equal(get(b)) },
		value: func(t *domain.TradeRecord) interface{} { return get(t) },
	}
}

func stringField(name string, get func(t *domain.TradeRecord) string) fieldCheck {
	return fieldCheck{
		name:  name,
		equal: func(a, b *domain.TradeRecord) bool { return get(a) == get(b) },
		value: func(t *domain.TradeRecord) interface{} { return get(t) },
	}
}

// Compared fields in ledger column order. RunID is excluded: a replay runs
// under a fresh id.
var tradeChecks = []fieldCheck{
	stringField("TradeID", func(t *domain.TradeRecord) string { return t.TradeID }),
	stringField("Instrument", func(t *domain.TradeRecord) string { return t.Instrument }),
	timeField("EntryTime", func(t *domain.TradeRecord) time.Time { return t.EntryTime }),
	floatField("EntryPrice", func(t *domain.TradeRecord) float64 { return t.EntryPrice }),
	floatField("Size", func(t *domain.TradeRecord) float64 { return t.Size }),
	floatField("StopClose", func(t *domain.TradeRecord) float64 { return t.StopClose }),
	floatField("RiskPct", func(t *domain.TradeRecord) float64 { return t.RiskPct }),
	stringField("CatalystClass", func(t *domain.TradeRecord) string { return string(t.CatalystClass) }),
	stringField("Regime", func(t *domain.TradeRecord) string { return string(t.Regime) }),
	timeField("ExitTime", func(t *domain.TradeRecord) time.Time { return t.ExitTime }),
	floatField("ExitPrice", func(t *domain.TradeRecord) float64 { return t.ExitPrice }),
	stringField("ExitReason", func(t *domain.TradeRecord) string { return t.ExitReason }),
	floatField("PnL", func(t *domain.TradeRecord) float64 { return t.PnL }),
	floatField("RMultiple", func(t *domain.TradeRecord) float64 { return t.RMultiple }),
}

// CompareTradeRecords compares two trade records and returns divergences.
// Uses FloatTolerance for float64 comparisons.
func CompareTradeRecords(stored, replayed *domain.TradeRecord) []FieldDivergence {
	var divergences []FieldDivergence
	for _, c := range tradeChecks {
		if !c.equal(stored, replayed) {
			divergences = append(divergences, FieldDivergence{
				Field:    c.name,
				Expected: c.value(stored),
				Actual:   c.value(replayed),
			})
		}
	}
	return divergences
}

// CompareLedgers matches trades by id and compares each pair.
func CompareLedgers(runID string, stored, replayed []domain.TradeRecord) *VerificationReport {
	report := &VerificationReport{
		RunID:       runID,
		TotalTrades: len(stored),
		Results:     make([]VerificationResult, 0, len(stored)),
	}

	byID := make(map[string]*domain.TradeRecord, len(replayed))
	for i := range replayed {
		byID[replayed[i].TradeID] = &replayed[i]
	}

	seen := make(map[string]struct{}, len(stored))
	for i := range stored {
		s := &stored[i]
		seen[s.TradeID] = struct{}{}
		r, ok := byID[s.TradeID]
		if !ok {
			report.MissingTrades = append(report.MissingTrades, s.TradeID)
			continue
		}

		divs := CompareTradeRecords(s, r)
		report.Results = append(report.Results, VerificationResult{
			TradeID:     s.TradeID,
			Instrument:  s.Instrument,
			Match:       len(divs) == 0,
			Divergences: divs,
			StoredPnL:   s.PnL,
			ReplayedPnL: r.PnL,
		})
		if len(divs) == 0 {
			report.MatchedTrades++
		} else {
			report.DivergentTrades++
		}
	}

	for id := range byID {
		if _, ok := seen[id]; !ok {
			report.ExtraTrades = append(report.ExtraTrades, id)
		}
	}
	sort.Strings(report.ExtraTrades)

	return report
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
