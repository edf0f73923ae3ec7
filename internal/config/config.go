package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/epw-climate-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// EPW parsing, resolved once at startup.
	BaselineYear    int
	HeaderLines     int
	Columns         domain.Columns
	HourMode        domain.HourMode
	MissingSentinel *float64

	ParseConcurrency   int
	ThresholdCacheSize int
	MaxUploadBytes     int64

	// Optional Kafka publishing of loaded series.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	Scenarios []Scenario
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	baselineYear, err := envInt("BASELINE_YEAR", domain.DefaultBaselineYear, 1, 9998)
	if err != nil {
		return nil, err
	}
	headerLines, err := envInt("EPW_HEADER_LINES", domain.DefaultHeaderLines, 0, 1000)
	if err != nil {
		return nil, err
	}
	columns, err := loadColumns()
	if err != nil {
		return nil, err
	}
	hourMode, err := domain.ParseHourMode(os.Getenv("EPW_HOUR_MODE"))
	if err != nil {
		return nil, fmt.Errorf("invalid EPW_HOUR_MODE: %w", err)
	}
	sentinel, err := envOptionalFloat("EPW_MISSING_SENTINEL")
	if err != nil {
		return nil, err
	}

	concurrency, err := envInt("PARSE_CONCURRENCY", 4, 1, 64)
	if err != nil {
		return nil, err
	}
	cacheSize, err := envInt("THRESHOLD_CACHE_SIZE", 256, 1, 1_000_000)
	if err != nil {
		return nil, err
	}
	maxUpload, err := envInt("MAX_UPLOAD_BYTES", 20<<20, 1024, 1<<30)
	if err != nil {
		return nil, err
	}

	scenarios, err := loadScenarios(baselineYear)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BaselineYear:    baselineYear,
		HeaderLines:     headerLines,
		Columns:         columns,
		HourMode:        hourMode,
		MissingSentinel: sentinel,

		ParseConcurrency:   concurrency,
		ThresholdCacheSize: cacheSize,
		MaxUploadBytes:     int64(maxUpload),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "epw-temperature-series"),

		Scenarios: scenarios,
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}
	if err := cfg.ParseOptions(baselineYear, "").Validate(); err != nil {
		return nil, fmt.Errorf("invalid EPW parse settings: %w", err)
	}

	return cfg, nil
}

// ParseOptions returns the parser settings for one file.
func (c *Config) ParseOptions(nominalYear int, label string) domain.ParseOptions {
	return domain.ParseOptions{
		Label:           label,
		NominalYear:     nominalYear,
		HeaderLines:     c.HeaderLines,
		Columns:         c.Columns,
		HourMode:        c.HourMode,
		MissingSentinel: c.MissingSentinel,
	}
}

func loadColumns() (domain.Columns, error) {
	def := domain.DefaultColumns()
	month, err := envInt("EPW_MONTH_COLUMN", def.Month, 0, 255)
	if err != nil {
		return domain.Columns{}, err
	}
	day, err := envInt("EPW_DAY_COLUMN", def.Day, 0, 255)
	if err != nil {
		return domain.Columns{}, err
	}
	hour, err := envInt("EPW_HOUR_COLUMN", def.Hour, 0, 255)
	if err != nil {
		return domain.Columns{}, err
	}
	temp, err := envInt("EPW_TEMPERATURE_COLUMN", def.Temperature, 0, 255)
	if err != nil {
		return domain.Columns{}, err
	}
	return domain.Columns{Month: month, Day: day, Hour: hour, Temperature: temp}, nil
}

func envInt(key string, def, lo, hi int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s %q (want integer %d-%d)", key, s, lo, hi)
	}
	return n, nil
}

func envOptionalFloat(key string) (*float64, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("invalid %s %q", key, s)
	}
	return &v, nil
}
