// Package universe picks the instruments a run simulates.
package universe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"

	"swing-backtest-lab/internal/diagnostics"
	"swing-backtest-lab/internal/domain"
)

// ErrTooSmall is returned when fewer candidates pass hygiene than requested.
var ErrTooSmall = errors.New("universe too small after hygiene filters")

// Predicate reports whether a candidate has usable data.
type Predicate func(symbol string) bool

// Sampler draws a reproducible random sample of symbols.
type Sampler struct {
	cfg    domain.UniverseConfig
	accept Predicate
	rec    diagnostics.Recorder
}

// NewSampler validates cfg. A nil accept admits every symbol that survives
// the suffix filter.
func NewSampler(cfg domain.UniverseConfig, accept Predicate, rec diagnostics.Recorder) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sampler{cfg: cfg, accept: accept, rec: diagnostics.OrNop(rec)}, nil
}

// Sample deduplicates candidates keeping first occurrence, shuffles them with
// the configured seed and takes the first SampleSize that pass hygiene.
// A SampleSize of zero takes every passing candidate in shuffled order.
func (s *Sampler) Sample(candidates []string) ([]string, error) {
	seen := make(map[string]struct{}, len(candidates))
	pool := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		pool = append(pool, c)
	}

	rng := rand.New(rand.NewSource(s.cfg.Seed))
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	var accepted []string
	tested, rejected := 0, 0
	for _, sym := range pool {
		if s.cfg.SampleSize > 0 && len(accepted) >= s.cfg.SampleSize {
			break
		}
		tested++
		if s.excluded(sym) || (s.accept != nil && !s.accept(sym)) {
			rejected++
			continue
		}
		accepted = append(accepted, sym)
	}

	s.rec.Record(diagnostics.EventUniverseSummary, diagnostics.Fields{
		"requested": s.cfg.SampleSize,
		"accepted":  len(accepted),
		"tested":    tested,
		"rejected":  rejected,
	})

	if len(accepted) < s.cfg.SampleSize {
		return nil, fmt.Errorf("%w: %d < %d", ErrTooSmall, len(accepted), s.cfg.SampleSize)
	}
	return accepted, nil
}

func (s *Sampler) excluded(sym string) bool {
	u := strings.ToUpper(sym)
	for _, suffix := range s.cfg.ExcludeSuffixes {
		if suffix != "" && strings.HasSuffix(u, strings.ToUpper(suffix)) {
			return true
		}
	}
	return false
}

// ReadTickers reads one symbol per line, skipping blanks and # comments.
func ReadTickers(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read tickers: %w", err)
	}
	return out, nil
}
