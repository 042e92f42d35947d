package structure

import "testing"

func TestDetectSwings(t *testing.T) {
	closes := []float64{1, 2, 3, 2, 1, 2, 4, 2, 1}
	s := DetectSwings(closes, 1, 1)

	if got := Indices(s.High); len(got) != 2 || got[0] != 2 || got[1] != 6 {
		t.Fatalf("swing highs = %v, want [2 6]", got)
	}
	if got := Indices(s.Low); len(got) != 1 || got[0] != 4 {
		t.Fatalf("swing lows = %v, want [4]", got)
	}
}

func TestDetectSwings_BoundariesNeverMarked(t *testing.T) {
	// first and last values are the global extremes but lack a full window
	closes := []float64{10, 5, 6, 5, 6, 5, 0}
	s := DetectSwings(closes, 2, 2)
	for _, i := range []int{0, 1, 5, 6} {
		if s.High[i] || s.Low[i] {
			t.Errorf("boundary index %d marked (high=%v low=%v)", i, s.High[i], s.Low[i])
		}
	}
}

func TestDetectSwings_ShortInput(t *testing.T) {
	s := DetectSwings([]float64{1, 2, 3}, 2, 2)
	if LastIndex(s.High) != -1 || LastIndex(s.Low) != -1 {
		t.Error("input shorter than the window should have no swings")
	}
}

func TestDetectSwings_TiesMarkEveryMaximum(t *testing.T) {
	closes := []float64{1, 3, 3, 1, 0}
	s := DetectSwings(closes, 1, 1)
	if !s.High[1] || !s.High[2] {
		t.Errorf("equal closes at the window max should both be marked: %v", s.High)
	}
}

func TestHigherHighsHigherLows(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   bool
	}{
		{
			name:   "rising swings",
			closes: []float64{5, 4, 3, 6, 8, 6, 5, 7, 10, 8, 7},
			want:   true,
		},
		{
			name:   "lower high",
			closes: []float64{5, 4, 3, 6, 10, 6, 5, 7, 8, 6, 7},
			want:   false,
		},
		{
			name:   "single swing",
			closes: []float64{1, 2, 3, 2, 1},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DetectSwings(tt.closes, 1, 1)
			if got := HigherHighsHigherLows(tt.closes, s); got != tt.want {
				t.Errorf("HigherHighsHigherLows = %v, want %v (highs=%v lows=%v)",
					got, tt.want, Indices(s.High), Indices(s.Low))
			}
		})
	}
}
