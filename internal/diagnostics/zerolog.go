package diagnostics

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// levels maps events to log levels; unlisted events log at info.
var levels = map[string]zerolog.Level{
	EventFeatureInsufficient:    zerolog.DebugLevel,
	EventSignal:                 zerolog.DebugLevel,
	EventEntryReject:            zerolog.DebugLevel,
	EventSlippageApply:          zerolog.DebugLevel,
	EventCatalystClassified:     zerolog.DebugLevel,
	EventRegimeWeeklyClassified: zerolog.DebugLevel,
	EventEntryBlockedRegime:     zerolog.DebugLevel,
	EventEntrySizeZero:          zerolog.DebugLevel,
	EventInstrumentExcluded:     zerolog.WarnLevel,
	EventProviderFailure:        zerolog.WarnLevel,
	EventRegimeUnavailable:      zerolog.WarnLevel,
	EventCloseNoPosition:        zerolog.WarnLevel,
}

// NewLogger builds a timestamped zerolog logger writing to w. An unknown
// level falls back to info; format "console" selects human-readable output.
func NewLogger(w io.Writer, level, format string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if strings.EqualFold(format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// Zerolog writes events as structured log lines.
type Zerolog struct {
	logger zerolog.Logger
}

// NewZerolog wraps logger as a Recorder.
func NewZerolog(logger zerolog.Logger) *Zerolog {
	return &Zerolog{logger: logger}
}

// Record logs the event with its fields in key order.
func (z *Zerolog) Record(event string, fields Fields) {
	lvl, ok := levels[event]
	if !ok {
		lvl = zerolog.InfoLevel
	}
	ev := z.logger.WithLevel(lvl)
	if ev == nil {
		return
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev = ev.Interface(k, fields[k])
	}
	ev.Msg(event)
}
