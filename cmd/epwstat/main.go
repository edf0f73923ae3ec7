// Command epwstat parses EPW weather files and reports, per file, how many
// hours exceed a temperature threshold along with basic statistics.
//
// Usage:
//
//	go run ./cmd/epwstat -threshold 40 [-month 7] [-year 2023] [-temp-col 6] \
//	  data/baseline.epw data/2050.epw data/2080.epw
//
// Every file is processed even when some fail; failures are reported on
// stderr and the exit status is 1.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/couchcryptid/epw-climate-service/internal/domain"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	threshold float64
	month     int
	parse     domain.ParseOptions
	files     []string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("epwstat", flag.ContinueOnError)
	fs.SetOutput(stderr)

	threshold := fs.Float64("threshold", math.NaN(), "count hours strictly above this temperature (°C)")
	month := fs.Int("month", 0, "restrict to calendar month 1-12 (0 for the whole year)")
	year := fs.Int("year", domain.DefaultBaselineYear, "nominal year the rows are anchored on")
	tempCol := fs.Int("temp-col", domain.DefaultColumns().Temperature, "0-indexed dry-bulb temperature column")
	headerLines := fs.Int("header-lines", domain.DefaultHeaderLines, "header lines to skip")
	hourMode := fs.String("hour-mode", "rollover", "hour mapping: rollover or interval-start")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if math.IsNaN(*threshold) || math.IsInf(*threshold, 0) {
		return options{}, errors.New("-threshold is required and must be a finite number")
	}
	if *month < 0 || *month > 12 {
		return options{}, fmt.Errorf("-month %d outside 0-12", *month)
	}
	if fs.NArg() == 0 {
		return options{}, errors.New("no EPW files given")
	}
	mode, err := domain.ParseHourMode(*hourMode)
	if err != nil {
		return options{}, err
	}

	opts := domain.DefaultParseOptions(*year)
	opts.HeaderLines = *headerLines
	opts.Columns.Temperature = *tempCol
	opts.HourMode = mode
	if err := opts.Validate(); err != nil {
		return options{}, err
	}

	return options{threshold: *threshold, month: *month, parse: opts, files: fs.Args()}, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "epwstat: %v\n", err)
		return 2
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "FILE\tHOURS\tABOVE %.1f°C\tMIN\tMEAN\tMAX\tDROPPED\n", opts.threshold)

	failed := 0
	for _, path := range opts.files {
		line, err := report(path, opts)
		if err != nil {
			failed++
			fmt.Fprintf(stderr, "epwstat: %s: [%s] %v\n", path, domain.ErrorKind(err), err)
			continue
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush() //nolint:errcheck // stdout

	if failed > 0 {
		fmt.Fprintf(stderr, "epwstat: %d of %d files failed\n", failed, len(opts.files))
		return 1
	}
	return 0
}

func report(path string, opts options) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	name := filepath.Base(path)
	s, stats, err := domain.ParseEPWWithStats(name, f, opts.parse)
	if err != nil {
		return "", err
	}
	if opts.month != 0 {
		if s, err = domain.FilterSeriesByMonth(s, opts.month); err != nil {
			return "", err
		}
	}

	sum := domain.Summarize(s)
	return fmt.Sprintf("%s\t%d\t%d\t%.1f\t%.1f\t%.1f\t%d",
		name, sum.Count, domain.CountAboveThreshold(s, opts.threshold),
		sum.Min, sum.Mean, sum.Max, stats.Dropped), nil
}
