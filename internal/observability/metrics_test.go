package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swing-backtest-lab/internal/diagnostics"
)

func TestRecorder_CountsEvents(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())
	rec := m.Recorder()

	rec.Record(diagnostics.EventInstrumentPrepared, diagnostics.Fields{"instrument": "AAPL"})
	rec.Record(diagnostics.EventInstrumentPrepared, diagnostics.Fields{"instrument": "MSFT"})
	rec.Record(diagnostics.EventInstrumentExcluded, diagnostics.Fields{"reason": "DATA_INSUFFICIENT"})
	rec.Record(diagnostics.EventProviderFailure, nil)
	rec.Record(diagnostics.EventSignal, diagnostics.Fields{"type": "ENTRY"})
	rec.Record(diagnostics.EventSignal, diagnostics.Fields{"type": "NONE"})
	rec.Record(diagnostics.EventEntryReject, diagnostics.Fields{"reasons": "NO_TREND_HHHL,PULLBACK_TOO_SHORT"})
	rec.Record(diagnostics.EventEntryBlockedRegime, nil)
	rec.Record(diagnostics.EventEntrySizeZero, nil)
	rec.Record(diagnostics.EventPositionClose, diagnostics.Fields{"reason": "STOP_CLOSE", "equity": 9750.0})
	rec.Record(diagnostics.EventBacktestDone, diagnostics.Fields{"final_equity": 9800.0})
	rec.Record("UNRELATED", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.InstrumentsPrepared))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InstrumentsExcluded.WithLabelValues("DATA_INSUFFICIENT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Signals.WithLabelValues("ENTRY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntryRejections.WithLabelValues("NO_TREND_HHHL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntryRejections.WithLabelValues("PULLBACK_TOO_SHORT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntryRejections.WithLabelValues(RejectRegime)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EntryRejections.WithLabelValues(RejectSizeZero)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TradesClosed.WithLabelValues("STOP_CLOSE")))
	assert.Equal(t, 9750.0, testutil.ToFloat64(m.Equity))
	assert.Equal(t, 9800.0, testutil.ToFloat64(m.FinalEquity))
}

func TestRecordDBQuery(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())

	m.RecordDBQuery("postgres", "insert_trades", 0.02, nil)
	m.RecordDBQuery("postgres", "insert_trades", 0.03, io.ErrUnexpectedEOF)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBQueryErrors.WithLabelValues("postgres", "insert_trades")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DBQueryDuration))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)
	m.RecordRun("simulate", "ok", 1.5)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `test_run_total{status="ok"} 1`))
}
