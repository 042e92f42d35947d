package csvfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swing-backtest-lab/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadBars(t *testing.T) {
	in := `timestamp,open,high,low,close,volume
2024-03-04T15:30:00Z,101,103,100,102,2000
1709562600000,100,102,99,101,1500
`
	bars, err := ReadBars(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 2)

	// Sorted: the unix-ms row is 14:30Z.
	assert.Equal(t, time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC), bars[0].Timestamp)
	assert.Equal(t, 101.0, bars[0].Close)
	assert.Equal(t, 1500.0, bars[0].Volume)
	assert.Equal(t, 103.0, bars[1].High)
	assert.Equal(t, time.UTC, bars[1].Timestamp.Location())
}

func TestReadBars_ColumnOrderAndCase(t *testing.T) {
	in := "Volume,Close,Low,High,Open,Timestamp\n10,5,4,6,4.5,2024-01-02T10:00:00-05:00\n"
	bars, err := ReadBars(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, domain.Bar{
		Timestamp: time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC),
		Open:      4.5, High: 6, Low: 4, Close: 5, Volume: 10,
	}, bars[0])
}

func TestReadBars_Malformed(t *testing.T) {
	tests := map[string]string{
		"missing column": "timestamp,open,high,low,close\n",
		"bad number":     "timestamp,open,high,low,close,volume\n2024-01-02T10:00:00Z,x,1,1,1,1\n",
		"bad timestamp":  "timestamp,open,high,low,close,volume\nyesterday,1,1,1,1,1\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadBars(strings.NewReader(in))
			assert.ErrorIs(t, err, ErrMalformedRow)
		})
	}

	bars, err := ReadBars(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Nil(t, bars)
}

func TestReadDates(t *testing.T) {
	in := "date,note\n2024-04-25,Q1\n2024-01-25,\n2024-04-25,dup\n,\n"
	dates, err := ReadDates(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC),
	}, dates)

	_, err = ReadDates(strings.NewReader("date\n25/04/2024\n"))
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestProvider(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "AAPL_1h.csv", `timestamp,open,high,low,close,volume
2024-03-04T14:30:00Z,100,102,99,101,1500
2024-03-04T15:30:00Z,101,103,100,102,2000
2024-03-05T14:30:00Z,102,104,101,103,1800
`)
	writeFile(t, dir, "MSFT_1h.csv", "timestamp,open,high,low,close,volume\n")
	writeFile(t, dir, "AAPL_earnings.csv", "date\n2024-01-25\n2024-04-25\n")
	writeFile(t, dir, "notes.txt", "ignored")

	p := New(dir)
	ctx := context.Background()

	bars, err := p.Fetch(ctx, "AAPL",
		time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC),
		time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC),
		domain.ResolutionHourly)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 102.0, bars[0].Close)

	missing, err := p.Fetch(ctx, "TSLA", time.Time{}, time.Now(), domain.ResolutionHourly)
	require.NoError(t, err)
	assert.Nil(t, missing)

	events, err := p.Events(ctx, "AAPL",
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, []time.Time{time.Date(2024, 4, 25, 0, 0, 0, 0, time.UTC)}, events)

	noEvents, err := p.Events(ctx, "MSFT", time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Nil(t, noEvents)

	syms, err := p.Symbols(domain.ResolutionHourly)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, syms)
}

func TestProvider_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(t.TempDir()).Fetch(ctx, "AAPL", time.Time{}, time.Now(), domain.ResolutionHourly)
	assert.ErrorIs(t, err, context.Canceled)
}
