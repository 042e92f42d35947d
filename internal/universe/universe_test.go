package universe

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swing-backtest-lab/internal/diagnostics"
	"swing-backtest-lab/internal/domain"
)

func TestSample_Reproducible(t *testing.T) {
	cands := []string{"AAPL", "MSFT", "NVDA", "AMZN", "META", "GOOG", "TSLA", "AMD", "NFLX", "ORCL"}
	cfg := domain.UniverseConfig{SampleSize: 4, Seed: 42}

	s, err := NewSampler(cfg, nil, nil)
	require.NoError(t, err)

	a, err := s.Sample(cands)
	require.NoError(t, err)
	b, err := s.Sample(cands)
	require.NoError(t, err)

	assert.Len(t, a, 4)
	assert.Equal(t, a, b)
	for _, sym := range a {
		assert.Contains(t, cands, sym)
	}

	other, err := NewSampler(domain.UniverseConfig{SampleSize: 10, Seed: 42}, nil, nil)
	require.NoError(t, err)
	all, err := other.Sample(cands)
	require.NoError(t, err)
	assert.Equal(t, a, all[:4], "a larger sample extends the same shuffle")
}

func TestSample_DedupAndSuffixFilter(t *testing.T) {
	rec := &diagnostics.Memory{}
	s, err := NewSampler(domain.DefaultUniverseConfig(), nil, rec)
	require.NoError(t, err)
	s.cfg.SampleSize = 0

	got, err := s.Sample([]string{"AAPL", "ACAHW", "AAPL", "SPACU", "XWS", "abcr", " ", "MSFT"})
	require.NoError(t, err)
	sort.Strings(got)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)

	require.Equal(t, 1, rec.Count(diagnostics.EventUniverseSummary))
	summary := rec.Entries()[0].Fields
	assert.Equal(t, 2, summary["accepted"])
	assert.Equal(t, 4, summary["rejected"])
}

func TestSample_PredicateAndTooSmall(t *testing.T) {
	hasData := func(sym string) bool { return sym != "MSFT" }
	s, err := NewSampler(domain.UniverseConfig{SampleSize: 2, Seed: 1}, hasData, nil)
	require.NoError(t, err)

	got, err := s.Sample([]string{"AAPL", "MSFT", "NVDA"})
	require.NoError(t, err)
	sort.Strings(got)
	assert.Equal(t, []string{"AAPL", "NVDA"}, got)

	s.cfg.SampleSize = 3
	_, err = s.Sample([]string{"AAPL", "MSFT", "NVDA"})
	assert.ErrorIs(t, err, ErrTooSmall)
}

func TestNewSampler_Invalid(t *testing.T) {
	_, err := NewSampler(domain.UniverseConfig{SampleSize: -1}, nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestReadTickers(t *testing.T) {
	got, err := ReadTickers(strings.NewReader("# nasdaq\nAAPL\n\n  MSFT \n#NVDA\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)
}
