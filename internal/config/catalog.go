package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"
)

// Scenario is one bundled weather file and the year its rows are anchored on.
type Scenario struct {
	Label       string `yaml:"label"`
	Path        string `yaml:"path"`
	NominalYear int    `yaml:"nominal_year"`
}

type catalogFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// DefaultScenarios returns the baseline and the two projection scenarios.
// Paths come from SCENARIO_*_PATH with defaults under data/.
func DefaultScenarios(baselineYear int) []Scenario {
	return []Scenario{
		{
			Label:       fmt.Sprintf("%d Baseline", baselineYear),
			Path:        sharedcfg.EnvOrDefault("SCENARIO_BASELINE_PATH", "data/baseline.epw"),
			NominalYear: baselineYear,
		},
		{
			Label:       "2050 Projection",
			Path:        sharedcfg.EnvOrDefault("SCENARIO_2050_PATH", "data/2050.epw"),
			NominalYear: 2050,
		},
		{
			Label:       "2080 Projection",
			Path:        sharedcfg.EnvOrDefault("SCENARIO_2080_PATH", "data/2080.epw"),
			NominalYear: 2080,
		},
	}
}

// LoadCatalog reads scenarios from a YAML file.
func LoadCatalog(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario catalog: %w", err)
	}
	scenarios, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}

// ParseCatalog decodes and validates a YAML scenario catalog.
func ParseCatalog(data []byte) ([]Scenario, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scenario catalog: %w", err)
	}
	if err := ValidateScenarios(f.Scenarios); err != nil {
		return nil, fmt.Errorf("scenario catalog: %w", err)
	}
	return f.Scenarios, nil
}

// ValidateScenarios requires at least one scenario, unique non-empty labels,
// a path and a usable nominal year for each.
func ValidateScenarios(scenarios []Scenario) error {
	if len(scenarios) == 0 {
		return errors.New("no scenarios defined")
	}
	seen := make(map[string]bool, len(scenarios))
	for i, s := range scenarios {
		label := strings.TrimSpace(s.Label)
		if label == "" {
			return fmt.Errorf("scenario %d: label is required", i)
		}
		if seen[label] {
			return fmt.Errorf("scenario %q: duplicate label", label)
		}
		seen[label] = true
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("scenario %q: path is required", label)
		}
		if s.NominalYear < 1 || s.NominalYear > 9998 {
			return fmt.Errorf("scenario %q: nominal_year %d outside 1-9998", label, s.NominalYear)
		}
	}
	return nil
}

func loadScenarios(baselineYear int) ([]Scenario, error) {
	if path := os.Getenv("SCENARIO_CATALOG"); path != "" {
		return LoadCatalog(path)
	}
	return DefaultScenarios(baselineYear), nil
}
