package regime

import (
	"math"
	"testing"
	"time"

	"swing-backtest-lab/internal/domain"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		name  string
		close float64
		atr   float64
		atrMA float64
		want  domain.RegimeLabel
	}{
		{name: "below slow average", close: 90, atr: 2.0, atrMA: 1.5, want: domain.RegimeDefensiv},
		{name: "above both with expanding atr", close: 125, atr: 2.0, atrMA: 1.5, want: domain.RegimeExpansion},
		{name: "above both with contracting atr", close: 125, atr: 1.0, atrMA: 1.5, want: domain.RegimeNeutral},
		{name: "between averages", close: 110, atr: 1.0, atrMA: 1.5, want: domain.RegimeDefensiv},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.close, 100, 120, tt.atr, tt.atrMA); got != tt.want {
				t.Errorf("Label() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLabel_Neutral(t *testing.T) {
	// above slow average but not above fast average
	if got := Label(105, 110, 100, 2, 1); got != domain.RegimeNeutral {
		t.Errorf("Label() = %s, want Neutral", got)
	}
}

func TestLabel_UnavailableIndicator(t *testing.T) {
	if got := Label(100, math.NaN(), 90, 1, 1); got != domain.RegimeUnknown {
		t.Errorf("Label() = %s, want unknown", got)
	}
	if got := Label(100, 90, 90, 1, math.NaN()); got != domain.RegimeUnknown {
		t.Errorf("Label() = %s, want unknown", got)
	}
}

func TestNewClassifier_RejectsInvalid(t *testing.T) {
	cfg := domain.DefaultRegimeConfig()
	cfg.SMASlow = 0
	if _, err := NewClassifier(cfg, nil); err == nil {
		t.Fatal("expected error")
	}
}

// weekdays returns Mon-Fri daily bars starting Monday 2024-01-01.
func weekdays(closes []float64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []domain.Bar
	day := start
	for _, c := range closes {
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, 1)
		}
		bars = append(bars, domain.Bar{Timestamp: day, Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1})
		day = day.AddDate(0, 0, 1)
	}
	return bars
}

func smallClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(domain.RegimeConfig{Reference: "SPY", SMAFast: 2, SMASlow: 3, ATRLen: 1, ATRMALen: 1}, nil)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

func TestWeekly_OneWeekLag(t *testing.T) {
	c := smallClassifier(t)
	daily := weekdays([]float64{
		10, 11, 12, 13, 14, // week ending Jan 5: Expansion
		13, 12, 11, 10, 9, // week ending Jan 12: Defensiv
		10, 11, 12, 13, 14, // week ending Jan 19: Expansion
	})
	s := c.Weekly(daily)

	if s.Weeks() != 3 {
		t.Fatalf("Weeks() = %d, want 3", s.Weeks())
	}

	tests := []struct {
		name string
		ts   time.Time
		want domain.RegimeLabel
	}{
		{name: "first week has nothing published", ts: time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC), want: domain.RegimeUnknown},
		{name: "saturday opens the next week", ts: time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC), want: domain.RegimeExpansion},
		{name: "second week sees first week", ts: time.Date(2024, 1, 12, 16, 0, 0, 0, time.UTC), want: domain.RegimeExpansion},
		{name: "third week sees second week", ts: time.Date(2024, 1, 17, 13, 0, 0, 0, time.UTC), want: domain.RegimeDefensiv},
		{name: "forward fill past the data", ts: time.Date(2024, 2, 14, 13, 0, 0, 0, time.UTC), want: domain.RegimeExpansion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.At(tt.ts); got != tt.want {
				t.Errorf("At(%v) = %s, want %s", tt.ts, got, tt.want)
			}
		})
	}
}

func TestWeekly_NoLookAhead(t *testing.T) {
	c := smallClassifier(t)
	base := []float64{10, 11, 12, 13, 14, 13, 12, 11, 10, 9}
	changed := append([]float64(nil), base...)
	changed[9] = 50 // rewrite the Friday of the second week

	ts := time.Date(2024, 1, 10, 13, 0, 0, 0, time.UTC)
	a := c.Weekly(weekdays(base)).At(ts)
	b := c.Weekly(weekdays(changed)).At(ts)
	if a != b {
		t.Fatalf("label for week 2 depends on week 2 data: %s vs %s", a, b)
	}
}

func TestSeries_Unknown(t *testing.T) {
	if got := Unknown().At(time.Now()); got != domain.RegimeUnknown {
		t.Errorf("Unknown().At() = %s", got)
	}
	var s *Series
	if got := s.At(time.Now()); got != domain.RegimeUnknown {
		t.Errorf("nil series At() = %s", got)
	}
}

func TestWeekEnding(t *testing.T) {
	fri := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC).Unix() / 86400
	for _, d := range []int{30, 31} { // Sat Dec 30, Sun Dec 31 2023
		ts := time.Date(2023, 12, d, 10, 0, 0, 0, time.UTC)
		if got := weekEnding(ts); got != fri {
			t.Errorf("weekEnding(Dec %d) = %d, want %d", d, got, fri)
		}
	}
	if got := weekEnding(time.Date(2024, 1, 5, 23, 0, 0, 0, time.UTC)); got != fri {
		t.Errorf("weekEnding(Friday) = %d, want %d", got, fri)
	}
}
