// Command epwgen writes synthetic EPW weather files for the default scenarios
// plus a matching scenario catalog. Each file is parsed back with the domain
// package so the printed stats match what the service will load.
//
// Usage:
//
//	go run ./cmd/epwgen -out-dir data
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/epw-climate-service/internal/config"
	"github.com/couchcryptid/epw-climate-service/internal/domain"
)

// profile describes the synthetic climate of one scenario.
type profile struct {
	scenario config.Scenario
	warming  float64 // °C added to every hour
}

// climate holds the shape shared by every scenario.
type climate struct {
	annualMean float64
	seasonal   float64 // half the summer/winter swing
	diurnal    float64 // half the day/night swing
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "data", "directory for the generated files")
	mean := flag.Float64("mean", 21.5, "annual mean dry-bulb temperature (°C)")
	seasonal := flag.Float64("seasonal", 14, "seasonal amplitude (°C)")
	diurnal := flag.Float64("diurnal", 7, "diurnal amplitude (°C)")
	flag.Parse()

	c := climate{annualMean: *mean, seasonal: *seasonal, diurnal: *diurnal}
	profiles := []profile{
		{scenario: config.Scenario{Label: "2023 Baseline", Path: "baseline.epw", NominalYear: 2023}},
		{scenario: config.Scenario{Label: "2050 Projection", Path: "2050.epw", NominalYear: 2050}, warming: 2.1},
		{scenario: config.Scenario{Label: "2080 Projection", Path: "2080.epw", NominalYear: 2080}, warming: 3.9},
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	catalog := make([]config.Scenario, 0, len(profiles))
	for _, p := range profiles {
		path := filepath.Join(*outDir, p.scenario.Path)
		if err := os.WriteFile(path, []byte(generate(c, p.warming)), 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Printf("wrote %s", path)

		sc := p.scenario
		sc.Path = path
		catalog = append(catalog, sc)
	}

	if err := writeCatalog(filepath.Join(*outDir, "scenarios.yaml"), catalog); err != nil {
		return fmt.Errorf("writing catalog: %w", err)
	}
	return printStats(catalog)
}

// generate renders a full non-leap year of hourly rows, hours 1-24.
func generate(c climate, warming float64) string {
	var b strings.Builder
	b.WriteString("LOCATION,Synthetic,-,XXX,SYN,000000,36.19,44.01,3.0,420.0\n")
	b.WriteString("DESIGN CONDITIONS,0\n")
	b.WriteString("TYPICAL/EXTREME PERIODS,0\n")
	b.WriteString("GROUND TEMPERATURES,0\n")
	b.WriteString("HOLIDAYS/DAYLIGHT SAVINGS,No,0,0,0\n")
	fmt.Fprintf(&b, "COMMENTS 1,generated by epwgen warming=%.1f\n", warming)
	b.WriteString("COMMENTS 2,\n")
	b.WriteString("DATA PERIODS,1,1,Data,Sunday, 1/ 1,12/31\n")

	day := time.Date(2005, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := range 365 {
		date := day.AddDate(0, 0, d)
		for h := 1; h <= 24; h++ {
			temp := c.at(d, h) + warming
			fmt.Fprintf(&b, "%d,%d,%d,%d,60,?9?9?9?9E0,%.1f,%.1f,%d,101300\n",
				date.Year(), int(date.Month()), date.Day(), h, temp, temp-12, 30)
		}
	}
	return b.String()
}

// at returns the temperature for zero-based day of year d and EPW hour h.
// The coldest day is mid-January; the coldest hour is around dawn.
func (c climate) at(d, h int) float64 {
	season := -math.Cos(2 * math.Pi * float64(d-15) / 365)
	daily := -math.Cos(2 * math.Pi * float64(h-5) / 24)
	return math.Round((c.annualMean+c.seasonal*season+c.diurnal*daily)*10) / 10
}

func writeCatalog(path string, scenarios []config.Scenario) error {
	data, err := yaml.Marshal(map[string][]config.Scenario{"scenarios": scenarios})
	if err != nil {
		return err
	}
	if _, err := config.ParseCatalog(data); err != nil {
		return err
	}
	log.Printf("wrote %s", path)
	return os.WriteFile(path, data, 0o600)
}

func printStats(catalog []config.Scenario) error {
	fmt.Println("\n=== Generated scenario stats ===")
	for _, sc := range catalog {
		opts := domain.DefaultParseOptions(sc.NominalYear)
		opts.Label = sc.Label
		s, err := domain.ParseEPWFile(sc.Path, opts)
		if err != nil {
			return err
		}
		sum := domain.Summarize(s)
		fmt.Printf("%s: %d hours, min=%.1f mean=%.1f max=%.1f, >35°C=%d, >40°C=%d\n",
			sc.Label, sum.Count, sum.Min, sum.Mean, sum.Max,
			domain.CountAboveThreshold(s, 35), domain.CountAboveThreshold(s, 40))
	}
	return nil
}
