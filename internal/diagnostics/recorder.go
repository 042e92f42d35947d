// Package diagnostics carries structured run events from core components to
// whatever sink the run orchestrator installs.
package diagnostics

import "sync"

// Fields are the key-value payload of one event.
type Fields map[string]any

// Recorder receives structured diagnostic events.
// Implementations must be safe for concurrent use.
type Recorder interface {
	Record(event string, fields Fields)
}

// Event names.
const (
	EventBacktestStart          = "BACKTEST_START"
	EventBacktestDone           = "BACKTEST_DONE"
	EventInstrumentPrepared     = "INSTRUMENT_PREPARED"
	EventInstrumentExcluded     = "BT_TICKER_SKIP"
	EventProviderFailure        = "PROVIDER_FAILURE"
	EventRegimeUnavailable      = "REGIME_UNAVAILABLE"
	EventFeatureInsufficient    = "FEATURE_INSUFFICIENT"
	EventSignal                 = "SIGNAL"
	EventEntryReject            = "ENTRY_REJECT"
	EventEntryBlockedRegime     = "ENTRY_BLOCKED_REGIME"
	EventEntrySizeZero          = "ENTRY_SIZE_ZERO"
	EventSlippageApply          = "SLIPPAGE_APPLY"
	EventPositionOpen           = "PORTFOLIO_OPEN"
	EventPositionClose          = "PORTFOLIO_CLOSE"
	EventCloseNoPosition        = "PORTFOLIO_CLOSE_NO_POSITION"
	EventUniverseSummary        = "UNIVERSE_SUMMARY"
	EventPersistDone            = "PERSIST_DONE"
	EventCatalystClassified     = "CATALYST_CLASSIFIED"
	EventRegimeWeeklyClassified = "REGIME_WEEKLY"
)

type nop struct{}

func (nop) Record(string, Fields) {}

// Nop discards every event.
var Nop Recorder = nop{}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop
	}
	return r
}

// Multi fans events out to every non-nil recorder in order.
func Multi(recs ...Recorder) Recorder {
	var out multi
	for _, r := range recs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multi []Recorder

func (m multi) Record(event string, fields Fields) {
	for _, r := range m {
		r.Record(event, fields)
	}
}

// Entry is one captured event.
type Entry struct {
	Event  string
	Fields Fields
}

// Memory captures events in arrival order.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemory creates an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{}
}

// Record appends the event.
func (m *Memory) Record(event string, fields Fields) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Event: event, Fields: fields})
}

// Entries returns a copy of every captured event.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Count returns how many events named event were captured.
func (m *Memory) Count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Event == event {
			n++
		}
	}
	return n
}
