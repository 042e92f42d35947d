// Package csvfile reads bars and earnings dates from per-symbol CSV files.
//
// Layout under the root directory:
//
//	<SYMBOL>_1h.csv        timestamp,open,high,low,close,volume
//	<SYMBOL>_earnings.csv  date
//
// Timestamps are RFC 3339 or unix milliseconds. Dates are YYYY-MM-DD.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"swing-backtest-lab/internal/domain"
	"swing-backtest-lab/internal/storage"
)

// ErrMalformedRow is returned for rows that cannot be parsed.
var ErrMalformedRow = errors.New("malformed csv row")

const earningsSuffix = "_earnings.csv"

var barHeader = []string{"timestamp", "open", "high", "low", "close", "volume"}

// Provider is a read-only BarProvider and EventProvider over a directory.
type Provider struct {
	dir string
}

// New creates a provider rooted at dir.
func New(dir string) *Provider {
	return &Provider{dir: dir}
}

var (
	_ storage.BarProvider   = (*Provider)(nil)
	_ storage.EventProvider = (*Provider)(nil)
)

// BarPath returns the file holding instrument's bars at res.
func (p *Provider) BarPath(instrument string, res domain.Resolution) string {
	return filepath.Join(p.dir, fmt.Sprintf("%s_%s.csv", instrument, res))
}

// EventPath returns the file holding instrument's earnings dates.
func (p *Provider) EventPath(instrument string) string {
	return filepath.Join(p.dir, instrument+earningsSuffix)
}

// Fetch returns bars within [start, end] ordered by timestamp.
// A missing file yields no bars and no error.
func (p *Provider) Fetch(ctx context.Context, instrument string, start, end time.Time, res domain.Resolution) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p.BarPath(instrument, res))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open bars %s: %w", instrument, err)
	}
	defer f.Close()

	all, err := ReadBars(f)
	if err != nil {
		return nil, fmt.Errorf("read bars %s: %w", instrument, err)
	}

	var out []domain.Bar
	for _, b := range all {
		if !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Events returns earnings dates within [start, end], ascending and unique.
// A missing file yields no dates and no error.
func (p *Provider) Events(ctx context.Context, instrument string, start, end time.Time) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(p.EventPath(instrument))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open earnings %s: %w", instrument, err)
	}
	defer f.Close()

	all, err := ReadDates(f)
	if err != nil {
		return nil, fmt.Errorf("read earnings %s: %w", instrument, err)
	}

	var out []time.Time
	for _, d := range all {
		if !d.Before(start) && !d.After(end) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Symbols lists instruments that have a bar file at res, sorted.
func (p *Provider) Symbols(res domain.Resolution) ([]string, error) {
	suffix := fmt.Sprintf("_%s.csv", res)
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", p.dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		if sym := strings.TrimSuffix(e.Name(), suffix); sym != "" {
			out = append(out, sym)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ReadBars parses a bar file. The header row is required; columns may appear
// in any order. Rows are returned sorted by timestamp.
func ReadBars(r io.Reader) ([]domain.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col, err := columnIndex(header, barHeader)
	if err != nil {
		return nil, err
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := parseTimestamp(rec[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, line, err)
		}
		var vals [5]float64
		for i, name := range barHeader[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col[name]]), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %v", ErrMalformedRow, line, name, err)
			}
			vals[i] = v
		}
		bars = append(bars, domain.Bar{
			Timestamp: ts,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	return bars, nil
}

// ReadDates parses an earnings file with a "date" column.
// Dates are returned as UTC midnight, ascending, duplicates removed.
func ReadDates(r io.Reader) ([]time.Time, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col, err := columnIndex(header, []string{"date"})
	if err != nil {
		return nil, err
	}

	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if col["date"] >= len(rec) {
			return nil, fmt.Errorf("%w: line %d: missing date", ErrMalformedRow, line)
		}
		raw := strings.TrimSpace(rec[col["date"]])
		if raw == "" {
			continue
		}
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, line, err)
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func columnIndex(header, required []string) (map[string]int, error) {
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%w: header missing column %q", ErrMalformedRow, name)
		}
	}
	return col, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
