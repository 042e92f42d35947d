package catalyst

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swing-backtest-lab/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClassify_CalendarWindow(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	events := []time.Time{date(2024, 1, 10), date(2024, 2, 20)}

	tests := []struct {
		name     string
		asof     time.Time
		wantHas  bool
		wantDate time.Time
	}{
		{name: "event day", asof: time.Date(2024, 1, 10, 13, 30, 0, 0, ny), wantHas: true, wantDate: events[0]},
		{name: "last day of window", asof: time.Date(2024, 1, 24, 16, 0, 0, 0, ny), wantHas: true, wantDate: events[0]},
		{name: "day after window", asof: time.Date(2024, 1, 25, 13, 30, 0, 0, ny), wantHas: false},
		{name: "day before event", asof: time.Date(2024, 1, 9, 16, 0, 0, 0, ny), wantHas: false},
		{name: "second event", asof: time.Date(2024, 2, 21, 13, 30, 0, 0, ny), wantHas: true, wantDate: events[1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(events, tt.asof, 14)
			assert.Equal(t, tt.wantHas, got.HasCatalyst)
			if !tt.wantHas {
				assert.Equal(t, domain.CatalystNone, got.Class)
				assert.Nil(t, got.Date)
				return
			}
			assert.Equal(t, domain.CatalystK1, got.Class)
			require.NotNil(t, got.Date)
			assert.True(t, got.Date.Equal(tt.wantDate), "date = %v, want %v", got.Date, tt.wantDate)
		})
	}
}

func TestClassify_MostRecentEventWins(t *testing.T) {
	events := []time.Time{date(2024, 1, 10), date(2024, 1, 15)}
	got := Classify(events, date(2024, 1, 16), 14)
	require.NotNil(t, got.Date)
	assert.True(t, got.Date.Equal(events[1]))
}

func TestClassify_NoEvents(t *testing.T) {
	got := Classify(nil, date(2024, 1, 16), 14)
	assert.False(t, got.HasCatalyst)
	assert.Equal(t, domain.CatalystNone, got.Class)
}

func TestFromConfig(t *testing.T) {
	c, err := FromConfig(domain.DefaultCatalystConfig(), nil)
	require.NoError(t, err)
	assert.IsType(t, &CalendarClassifier{}, c)

	cfg := domain.DefaultCatalystConfig()
	cfg.Mode = domain.CatalystModeReaction
	c, err = FromConfig(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &ReactionClassifier{}, c)

	cfg.Mode = "vibes"
	_, err = FromConfig(cfg, nil)
	assert.True(t, errors.Is(err, ErrUnknownMode))
	assert.True(t, errors.Is(err, domain.ErrInvalidConfig))
}

// dailySeries builds n flat daily bars with a swing high every fifth day and
// overrides day eventIdx with ev.
func dailySeries(n, eventIdx int, ev domain.Bar) []domain.Bar {
	start := date(2024, 1, 1)
	bars := make([]domain.Bar, n)
	for i := range bars {
		c := 100.0
		if i%5 == 2 {
			c = 101
		}
		bars[i] = domain.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			Volume:    1000,
		}
	}
	if eventIdx >= 0 && eventIdx < n {
		ev.Timestamp = bars[eventIdx].Timestamp
		bars[eventIdx] = ev
	}
	return bars
}

var (
	strongDay = domain.Bar{Open: 100, High: 106, Low: 99.5, Close: 105.8, Volume: 5000}
	weakDay   = domain.Bar{Open: 100, High: 100.7, Low: 99.7, Close: 100.2, Volume: 1000}
)

func reactionInput(daily []domain.Bar, eventIdx, asofIdx int) Input {
	return Input{
		Instrument: "AAA",
		Events:     []time.Time{daily[eventIdx].Timestamp},
		Daily:      daily,
		Asof:       daily[0].Timestamp.AddDate(0, 0, asofIdx).Add(14 * time.Hour),
	}
}

func TestReactionClassifier(t *testing.T) {
	cfg := domain.DefaultCatalystConfig()
	cfg.Mode = domain.CatalystModeReaction
	c := NewReactionClassifier(cfg, nil)

	t.Run("strong reaction is K1", func(t *testing.T) {
		daily := dailySeries(80, 70, strongDay)
		got := c.Classify(reactionInput(daily, 70, 72))
		assert.True(t, got.HasCatalyst)
		assert.Equal(t, domain.CatalystK1, got.Class)
	})

	t.Run("weak reaction is K2", func(t *testing.T) {
		daily := dailySeries(80, 70, weakDay)
		got := c.Classify(reactionInput(daily, 70, 72))
		assert.True(t, got.HasCatalyst)
		assert.Equal(t, domain.CatalystK2, got.Class)
	})

	t.Run("short history is K2", func(t *testing.T) {
		daily := dailySeries(50, 45, strongDay)
		got := c.Classify(reactionInput(daily, 45, 47))
		assert.True(t, got.HasCatalyst)
		assert.Equal(t, domain.CatalystK2, got.Class)
	})

	t.Run("event day itself is not yet scored", func(t *testing.T) {
		daily := dailySeries(80, 70, strongDay)
		got := c.Classify(reactionInput(daily, 70, 70))
		assert.True(t, got.HasCatalyst)
		assert.Equal(t, domain.CatalystK2, got.Class)
	})

	t.Run("outside window is none", func(t *testing.T) {
		daily := dailySeries(100, 70, strongDay)
		got := c.Classify(reactionInput(daily, 70, 85))
		assert.False(t, got.HasCatalyst)
		assert.Equal(t, domain.CatalystNone, got.Class)
	})
}
