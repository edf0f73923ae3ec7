package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultHeaderLines is the size of the EPW header block.
	DefaultHeaderLines = 8

	// DefaultBaselineYear anchors the present-day scenario and uploads.
	DefaultBaselineYear = 2023
)

// Columns holds the 0-indexed positions of the fields read from each data row.
type Columns struct {
	Month       int
	Day         int
	Hour        int
	Temperature int
}

// DefaultColumns returns the standard EPW positions.
func DefaultColumns() Columns {
	return Columns{Month: 1, Day: 2, Hour: 3, Temperature: 6}
}

// Validate rejects negative or overlapping positions.
func (c Columns) Validate() error {
	seen := make(map[int]string, 4)
	for _, f := range []struct {
		name string
		idx  int
	}{
		{"month", c.Month},
		{"day", c.Day},
		{"hour", c.Hour},
		{"temperature", c.Temperature},
	} {
		if f.idx < 0 {
			return fmt.Errorf("%w: %s column %d is negative", ErrInvalidArgument, f.name, f.idx)
		}
		if other, ok := seen[f.idx]; ok {
			return fmt.Errorf("%w: %s and %s columns both use index %d", ErrInvalidArgument, other, f.name, f.idx)
		}
		seen[f.idx] = f.name
	}
	return nil
}

// width is the minimum number of fields a row needs.
func (c Columns) width() int {
	return max(c.Month, c.Day, c.Hour, c.Temperature) + 1
}

// ParseOptions configures a single parse. Build one with DefaultParseOptions
// and override fields as needed.
type ParseOptions struct {
	// Label names the resulting series. Empty means use the file name.
	Label string

	// NominalYear anchors month/day/hour onto a concrete calendar date.
	NominalYear int

	HeaderLines int
	Columns     Columns
	HourMode    HourMode

	// MissingSentinel, when set, marks a temperature value as missing.
	MissingSentinel *float64
}

// DefaultParseOptions returns options for a standard EPW file on nominalYear.
func DefaultParseOptions(nominalYear int) ParseOptions {
	return ParseOptions{
		NominalYear: nominalYear,
		HeaderLines: DefaultHeaderLines,
		Columns:     DefaultColumns(),
	}
}

// Validate checks the options once, before any file is read.
func (o ParseOptions) Validate() error {
	if o.NominalYear < 1 || o.NominalYear > 9998 {
		return fmt.Errorf("%w: nominal year %d outside 1-9998", ErrInvalidArgument, o.NominalYear)
	}
	if o.HourMode != HourRollover && o.HourMode != HourIntervalStart {
		return fmt.Errorf("%w: unknown hour mode %d", ErrInvalidArgument, o.HourMode)
	}
	if o.HeaderLines < 0 {
		return fmt.Errorf("%w: header lines %d is negative", ErrInvalidArgument, o.HeaderLines)
	}
	return o.Columns.Validate()
}

// ParseStats describes what happened to the data rows of one file.
type ParseStats struct {
	Rows       int // data rows after the header
	Dropped    int // rows rejected by validation
	Duplicates int // valid rows overwritten by a later row with the same timestamp
}

// ParseEPWFile opens path and parses it. The file name is the default label.
func ParseEPWFile(path string, opts ParseOptions) (TemperatureSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return TemperatureSeries{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if opts.Label == "" {
		opts.Label = filepath.Base(path)
	}
	return ParseEPW(path, f, opts)
}

// ParseEPW reads r to completion and converts it into a TemperatureSeries.
// name identifies the input in errors and is the default label.
func ParseEPW(name string, r io.Reader, opts ParseOptions) (TemperatureSeries, error) {
	s, _, err := ParseEPWWithStats(name, r, opts)
	return s, err
}

// ParseEPWWithStats is ParseEPW that also reports row-level statistics.
// Malformed rows are dropped; the call only fails when the stream cannot be
// decoded or no valid row remains.
func ParseEPWWithStats(name string, r io.Reader, opts ParseOptions) (TemperatureSeries, ParseStats, error) {
	var stats ParseStats
	if err := opts.Validate(); err != nil {
		return TemperatureSeries{}, stats, fmt.Errorf("parse %s: %w", name, err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return TemperatureSeries{}, stats, fmt.Errorf("read %s: %w", name, err)
	}

	text, err := decodeText(data)
	if err != nil {
		return TemperatureSeries{}, stats, &ParseError{File: name, Kind: ErrDecode, Err: err}
	}

	label := opts.Label
	if label == "" {
		label = name
	}

	rp := rowParser{opts: opts, width: opts.Columns.width()}
	byTime := make(map[time.Time]float64, 8760)
	wide := 0

	lines := splitLines(text)
	lines = lines[min(opts.HeaderLines, len(lines)):]

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Rows++
		rec, err := splitRecord(line)
		if err != nil {
			stats.Dropped++
			continue
		}
		if len(rec) < rp.width {
			stats.Dropped++
			continue
		}
		wide++

		ts, temp, ok := rp.parse(rec)
		if !ok {
			stats.Dropped++
			continue
		}
		if _, dup := byTime[ts]; dup {
			stats.Duplicates++
		}
		byTime[ts] = temp
	}

	switch {
	case stats.Rows == 0:
		return TemperatureSeries{}, stats, &ParseError{File: name, Kind: ErrStructure,
			Err: fmt.Errorf("no data rows after %d header lines", opts.HeaderLines)}
	case wide == 0:
		return TemperatureSeries{}, stats, &ParseError{File: name, Kind: ErrStructure,
			Err: fmt.Errorf("no row has the %d columns required", rp.width)}
	case len(byTime) == 0:
		return TemperatureSeries{}, stats, &ParseError{File: name, Kind: ErrStructure,
			Err: fmt.Errorf("all %d data rows were invalid", stats.Rows)}
	}

	return newSeriesFromMap(label, byTime), stats, nil
}

// splitLines breaks text on \n, \r\n or a bare \r.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// splitRecord reads the fields of a single line. Each line gets its own
// reader so an unbalanced quote cannot run into the following rows.
func splitRecord(line string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	rec, err := cr.Read()
	if err != nil {
		return nil, err
	}
	if _, err := cr.Read(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("quoted field spans lines")
	}
	return rec, nil
}

type rowParser struct {
	opts  ParseOptions
	width int
}

// parse extracts the timestamp and temperature of one data row.
func (p rowParser) parse(rec []string) (time.Time, float64, bool) {
	c := p.opts.Columns
	month, ok := parseIntField(rec[c.Month])
	if !ok {
		return time.Time{}, 0, false
	}
	day, ok := parseIntField(rec[c.Day])
	if !ok {
		return time.Time{}, 0, false
	}
	hour, ok := parseIntField(rec[c.Hour])
	if !ok {
		return time.Time{}, 0, false
	}
	temp, ok := p.parseTemperature(rec[c.Temperature])
	if !ok {
		return time.Time{}, 0, false
	}
	ts, ok := p.opts.HourMode.Timestamp(p.opts.NominalYear, month, day, hour)
	if !ok {
		return time.Time{}, 0, false
	}
	return ts, temp, true
}

func (p rowParser) parseTemperature(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if p.opts.MissingSentinel != nil && v == *p.opts.MissingSentinel {
		return 0, false
	}
	return v, true
}

// parseIntField accepts "7" as well as integral decimals such as "7.0".
func parseIntField(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// HourMode selects how the 1-24 hour field becomes a wall-clock hour.
type HourMode int

const (
	// HourRollover maps hour h to h-1 on the same day, except hour 24 which
	// becomes 00:00 of the following day. A full-year file therefore maps
	// each day's hour 24 onto the next day's hour 1; the later row wins.
	HourRollover HourMode = iota

	// HourIntervalStart maps every hour h, including 24, to h-1 on the same
	// day: the start of the hourly interval the row describes. A full-year
	// file yields contiguous hourly timestamps.
	HourIntervalStart
)

// ParseHourMode accepts "rollover" and "interval-start".
func ParseHourMode(s string) (HourMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rollover":
		return HourRollover, nil
	case "interval-start":
		return HourIntervalStart, nil
	default:
		return HourRollover, fmt.Errorf("%w: unknown hour mode %q (allowed: rollover, interval-start)", ErrInvalidArgument, s)
	}
}

func (m HourMode) String() string {
	if m == HourIntervalStart {
		return "interval-start"
	}
	return "rollover"
}

// Timestamp converts an EPW month/day/hour on year into a UTC timestamp
// according to m. It reports false for impossible dates such as February 30
// or February 29 in a non-leap year.
func (m HourMode) Timestamp(year, month, day, hour int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 || hour < 1 || hour > 24 {
		return time.Time{}, false
	}
	base := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if base.Month() != time.Month(month) || base.Day() != day {
		return time.Time{}, false
	}
	if hour == 24 && m == HourRollover {
		return base.AddDate(0, 0, 1), true
	}
	return base.Add(time.Duration(hour-1) * time.Hour), true
}

// HourTimestamp is HourRollover.Timestamp: hour 24 is midnight of the next
// day, crossing into year+1 on December 31.
func HourTimestamp(year, month, day, hour int) (time.Time, bool) {
	return HourRollover.Timestamp(year, month, day, hour)
}
