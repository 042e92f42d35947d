// Package observability provides Prometheus metrics for backtest runs.
package observability

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"swing-backtest-lab/internal/diagnostics"
)

// Entry rejection labels for events that carry no reason codes.
const (
	RejectRegime   = "REGIME_DEFENSIV"
	RejectSizeZero = "SIZE_ZERO"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Run metrics
	RunsTotal     *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec

	// Preparation metrics
	InstrumentsPrepared prometheus.Counter
	InstrumentsExcluded *prometheus.CounterVec
	ProviderFailures    prometheus.Counter
	RegimeUnavailable   prometheus.Counter

	// Simulation metrics
	Signals         *prometheus.CounterVec
	EntryRejections *prometheus.CounterVec
	TradesClosed    *prometheus.CounterVec
	Equity          prometheus.Gauge
	FinalEquity     prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on reg.
// A nil reg registers on the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "swing_backtest"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Run metrics
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		PhaseDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "phase_duration_seconds",
			Help:      "Run phase duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),

		// Preparation metrics
		InstrumentsPrepared: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prepare",
			Name:      "instruments_prepared_total",
			Help:      "Total number of instruments with aggregated bars",
		}),
		InstrumentsExcluded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prepare",
			Name:      "instruments_excluded_total",
			Help:      "Total number of instruments excluded by reason",
		}, []string{"reason"}),
		ProviderFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prepare",
			Name:      "provider_failures_total",
			Help:      "Total number of bar or event provider failures",
		}),
		RegimeUnavailable: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prepare",
			Name:      "regime_unavailable_total",
			Help:      "Total number of runs that fell back to the unknown regime",
		}),

		// Simulation metrics
		Signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "signals_total",
			Help:      "Total number of strategy signals by type",
		}, []string{"type"}),
		EntryRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "entry_rejections_total",
			Help:      "Total number of rejected entries by reason code",
		}, []string{"reason"}),
		TradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_closed_total",
			Help:      "Total number of closed trades by exit reason",
		}, []string{"exit_reason"}),
		Equity: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "equity",
			Help:      "Realized equity after the latest close",
		}),
		FinalEquity: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "final_equity",
			Help:      "Final equity of the latest completed run",
		}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint of g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordRun records a finished run phase.
func (m *Metrics) RecordRun(phase, status string, durationSeconds float64) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.PhaseDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordPhase records the duration of one run phase.
func (m *Metrics) RecordPhase(phase string, durationSeconds float64) {
	m.PhaseDuration.WithLabelValues(phase).Observe(durationSeconds)
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// Recorder returns a diagnostics.Recorder that counts events on m.
func (m *Metrics) Recorder() diagnostics.Recorder {
	return recorder{m: m}
}

type recorder struct {
	m *Metrics
}

func (r recorder) Record(event string, fields diagnostics.Fields) {
	m := r.m
	switch event {
	case diagnostics.EventInstrumentPrepared:
		m.InstrumentsPrepared.Inc()
	case diagnostics.EventInstrumentExcluded:
		m.InstrumentsExcluded.WithLabelValues(stringField(fields, "reason")).Inc()
	case diagnostics.EventProviderFailure:
		m.ProviderFailures.Inc()
	case diagnostics.EventRegimeUnavailable:
		m.RegimeUnavailable.Inc()
	case diagnostics.EventSignal:
		m.Signals.WithLabelValues(stringField(fields, "type")).Inc()
	case diagnostics.EventEntryReject:
		for _, code := range strings.Split(stringField(fields, "reasons"), ",") {
			if code != "" {
				m.EntryRejections.WithLabelValues(code).Inc()
			}
		}
	case diagnostics.EventEntryBlockedRegime:
		m.EntryRejections.WithLabelValues(RejectRegime).Inc()
	case diagnostics.EventEntrySizeZero:
		m.EntryRejections.WithLabelValues(RejectSizeZero).Inc()
	case diagnostics.EventPositionClose:
		m.TradesClosed.WithLabelValues(stringField(fields, "reason")).Inc()
		if eq, ok := fields["equity"].(float64); ok {
			m.Equity.Set(eq)
		}
	case diagnostics.EventBacktestDone:
		if eq, ok := fields["final_equity"].(float64); ok {
			m.FinalEquity.Set(eq)
		}
	}
}

func stringField(fields diagnostics.Fields, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return "unknown"
}
