package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "epw"

// Metrics holds the Prometheus counters, histograms, and gauges for EPW loading and queries.
type Metrics struct {
	FilesParsed   prometheus.Counter
	ParseFailures *prometheus.CounterVec // labels: kind={decode,structure,invalid_argument,other}
	RowsParsed    prometheus.Counter
	RowsDropped   prometheus.Counter
	ParseDuration prometheus.Histogram
	SeriesLoaded  prometheus.Gauge

	// Threshold query metrics.
	ThresholdQueries prometheus.Counter
	ThresholdCache   *prometheus.CounterVec // labels: result={hit,miss}

	// Publishing metrics.
	ObservationsPublished prometheus.Counter
	PublishErrors         prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_parsed_total",
			Help:      "Total EPW files parsed successfully.",
		}),
		ParseFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_failures_total",
			Help:      "EPW files that failed to parse, by error kind.",
		}, []string{"kind"}),
		RowsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "Total data rows read from EPW files.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_total",
			Help:      "Data rows skipped as malformed, missing, or out of calendar range.",
		}),
		ParseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parse_duration_seconds",
			Help:      "Duration of a single EPW file parse.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		SeriesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series_loaded",
			Help:      "Number of temperature series currently held in memory.",
		}),
		ThresholdQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threshold_queries_total",
			Help:      "Total threshold count queries served.",
		}),
		ThresholdCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threshold_cache_total",
			Help:      "Threshold count cache lookups by result.",
		}, []string{"result"}),
		ObservationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_published_total",
			Help:      "Total observations written to the series topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total failed series publish attempts.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.FilesParsed,
		m.ParseFailures,
		m.RowsParsed,
		m.RowsDropped,
		m.ParseDuration,
		m.SeriesLoaded,
		m.ThresholdQueries,
		m.ThresholdCache,
		m.ObservationsPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
