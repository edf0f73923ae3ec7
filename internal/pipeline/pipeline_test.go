package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/epw-climate-service/internal/config"
	"github.com/couchcryptid/epw-climate-service/internal/domain"
	"github.com/couchcryptid/epw-climate-service/internal/observability"
	"github.com/couchcryptid/epw-climate-service/internal/pipeline"
)

// --- mocks ---

type mockPublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, s domain.TemperatureSeries) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, s.Label())
	return nil
}

type failingSource struct {
	name string
	err  error
}

func (f failingSource) Name() string { return f.name }

func (f failingSource) Open(_ context.Context) (io.ReadCloser, error) { return nil, f.err }

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func testConfig(scenarios ...config.Scenario) *config.Config {
	return &config.Config{
		BaselineYear:     2023,
		HeaderLines:      domain.DefaultHeaderLines,
		Columns:          domain.DefaultColumns(),
		ParseConcurrency: 2,
		Scenarios:        scenarios,
	}
}

func newTestPipeline(pub pipeline.Publisher, metrics *observability.Metrics, scenarios ...config.Scenario) *pipeline.Pipeline {
	return pipeline.New(testConfig(scenarios...), pipeline.EPWParser{}, pub, slog.Default(), metrics)
}

// --- tests ---

func TestLoadAll_PreservesInputOrder(t *testing.T) {
	p := newTestPipeline(nil, newTestMetrics())

	var jobs []pipeline.Job
	for i := range 12 {
		name := fmt.Sprintf("file-%02d.epw", i)
		jobs = append(jobs, pipeline.Job{
			Source:  pipeline.BytesSource{Filename: name, Data: []byte(epwDay(1, 1, float64(i)))},
			Options: domain.DefaultParseOptions(2023),
		})
	}

	results := p.LoadAll(context.Background(), jobs)
	require.Len(t, results, 12)
	for i, r := range results {
		require.True(t, r.OK(), r.Err)
		assert.Equal(t, fmt.Sprintf("file-%02d.epw", i), r.Name)
		assert.Equal(t, r.Name, r.Label, "label defaults to the file name")
		assert.Equal(t, 24, r.Series.Len())
		v, ok := r.Series.At(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
		require.True(t, ok)
		assert.InDelta(t, float64(i), v, 1e-9)
	}
}

func TestLoadAll_FailuresAreIsolated(t *testing.T) {
	metrics := newTestMetrics()
	p := newTestPipeline(nil, metrics)

	jobs := []pipeline.Job{
		{Source: pipeline.BytesSource{Filename: "good.epw", Data: []byte(epwDay(7, 1, 41))}, Options: domain.DefaultParseOptions(2023)},
		{Source: pipeline.BytesSource{Filename: "empty.epw", Data: []byte(epwHeader)}, Options: domain.DefaultParseOptions(2023)},
		{Source: failingSource{name: "gone.epw", err: errors.New("disk on fire")}, Options: domain.DefaultParseOptions(2023)},
		{Source: pipeline.BytesSource{Filename: "bad-opts.epw", Data: []byte(epwDay(7, 1, 41))}, Options: domain.DefaultParseOptions(0)},
	}

	results := p.LoadAll(context.Background(), jobs)
	require.Len(t, results, 4)

	assert.True(t, results[0].OK())
	assert.Empty(t, results[0].Kind())

	assert.ErrorIs(t, results[1].Err, domain.ErrStructure)
	assert.Equal(t, "structure", results[1].Kind())

	require.Error(t, results[2].Err)
	assert.Contains(t, results[2].Err.Error(), "gone.epw")
	assert.Equal(t, "other", results[2].Kind())

	assert.ErrorIs(t, results[3].Err, domain.ErrInvalidArgument)
	assert.Equal(t, "invalid_argument", results[3].Kind())

	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.FilesParsed), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ParseFailures.WithLabelValues("structure")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ParseFailures.WithLabelValues("other")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ParseFailures.WithLabelValues("invalid_argument")), 1e-9)
}

func TestLoadAll_StampsLoadedAt(t *testing.T) {
	now := time.Date(2024, time.July, 1, 9, 30, 0, 0, time.UTC)
	pipeline.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { pipeline.SetClock(nil) })

	p := newTestPipeline(nil, newTestMetrics())
	results := p.LoadAll(context.Background(), []pipeline.Job{
		{Source: pipeline.BytesSource{Filename: "a.epw", Data: []byte(epwDay(1, 1, 5))}, Options: domain.DefaultParseOptions(2023)},
		{Source: pipeline.BytesSource{Filename: "b.epw", Data: nil}, Options: domain.DefaultParseOptions(2023)},
	})

	assert.Equal(t, now, results[0].LoadedAt)
	assert.Equal(t, now, results[1].LoadedAt)
}

func TestLoadAll_RowMetrics(t *testing.T) {
	metrics := newTestMetrics()
	p := newTestPipeline(nil, metrics)

	content := epwHeader + epwRows(1, 1, 10) + "garbage,row\n2005,13,1,1,60,x,5\n"
	results := p.LoadAll(context.Background(), []pipeline.Job{
		{Source: pipeline.BytesSource{Filename: "a.epw", Data: []byte(content)}, Options: domain.DefaultParseOptions(2023)},
	})

	require.True(t, results[0].OK())
	assert.Equal(t, 26, results[0].Stats.Rows)
	assert.Equal(t, 2, results[0].Stats.Dropped)
	assert.InDelta(t, 26.0, testutil.ToFloat64(metrics.RowsParsed), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.RowsDropped), 1e-9)
}

func TestLoadAll_CancelledContext(t *testing.T) {
	p := newTestPipeline(nil, newTestMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := p.LoadAll(ctx, []pipeline.Job{
		{Source: pipeline.BytesSource{Filename: "a.epw", Data: []byte(epwDay(1, 1, 5))}, Options: domain.DefaultParseOptions(2023)},
	})
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestIngest_AddsSuccessesAndPublishes(t *testing.T) {
	pub := &mockPublisher{}
	metrics := newTestMetrics()
	p := newTestPipeline(pub, metrics)

	results := p.Ingest(context.Background(), 0, []pipeline.Source{
		pipeline.BytesSource{Filename: "erbil.epw", Data: []byte(epwDay(7, 15, 44))},
		pipeline.BytesSource{Filename: "broken.epw", Data: []byte("nothing here")},
	})

	require.Len(t, results, 2)
	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())

	s, ok := p.Series().Get("erbil.epw")
	require.True(t, ok)
	_, ok = s.At(time.Date(2023, 7, 15, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok, "uploads use the baseline year")

	assert.Equal(t, []string{"erbil.epw"}, pub.published)
	assert.InDelta(t, 24.0, testutil.ToFloat64(metrics.ObservationsPublished), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.SeriesLoaded), 1e-9)

	require.Error(t, p.CheckReadiness(context.Background()), "uploads alone do not make the service ready")
}

func TestIngest_NominalYear(t *testing.T) {
	p := newTestPipeline(nil, newTestMetrics())

	results := p.Ingest(context.Background(), 2050, []pipeline.Source{
		pipeline.BytesSource{Filename: "future.epw", Data: []byte(epwDay(2, 28, 12))},
	})
	require.True(t, results[0].OK())
	_, ok := results[0].Series.At(time.Date(2050, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, ok, "Feb 28 hour 24 rolls into March")
}

func TestIngest_ReplacesByLabel(t *testing.T) {
	p := newTestPipeline(nil, newTestMetrics())
	ctx := context.Background()

	p.Ingest(ctx, 0, []pipeline.Source{pipeline.BytesSource{Filename: "x.epw", Data: []byte(epwDay(1, 1, 1))}})
	p.Ingest(ctx, 0, []pipeline.Source{pipeline.BytesSource{Filename: "x.epw", Data: []byte(epwDay(1, 1, 2))}})

	assert.Equal(t, 1, p.Series().Len())
	s, _ := p.Series().Get("x.epw")
	v, ok := s.At(time.Date(2023, 1, 1, 5, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)
}

func TestIngest_ScenarioLabelsAreReserved(t *testing.T) {
	pub := &mockPublisher{}
	p := newTestPipeline(pub, newTestMetrics(), config.Scenario{Label: "baseline.epw", Path: "unused", NominalYear: 2023})
	ctx := context.Background()

	results := p.Ingest(ctx, 0, []pipeline.Source{
		pipeline.BytesSource{Filename: "ok.epw", Data: []byte(epwDay(1, 1, 1))},
		pipeline.BytesSource{Filename: "baseline.epw", Data: []byte(epwDay(1, 1, 2))},
		pipeline.BytesSource{Filename: "other.epw", Data: []byte(epwDay(1, 2, 3))},
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.Equal(t, "baseline.epw", results[1].Name)
	assert.ErrorIs(t, results[1].Err, pipeline.ErrReservedLabel)
	assert.ErrorIs(t, results[1].Err, domain.ErrInvalidArgument)
	assert.Equal(t, "invalid_argument", results[1].Kind())
	assert.True(t, results[2].OK())
	assert.Equal(t, "other.epw", results[2].Label)

	_, ok := p.Series().Get("baseline.epw")
	assert.False(t, ok)
	assert.Equal(t, []string{"ok.epw", "other.epw"}, p.Series().Labels())
	assert.Len(t, pub.published, 2)
}

func TestPublishErrorDoesNotFailLoad(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker down")}
	metrics := newTestMetrics()
	p := newTestPipeline(pub, metrics)

	results := p.Ingest(context.Background(), 0, []pipeline.Source{
		pipeline.BytesSource{Filename: "a.epw", Data: []byte(epwDay(1, 1, 1))},
	})

	assert.True(t, results[0].OK())
	assert.Equal(t, 1, p.Series().Len())
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.PublishErrors), 1e-9)
}

func TestSeriesSet(t *testing.T) {
	set := pipeline.NewSeriesSet()
	a := domain.NewSeries("a", []domain.Observation{{Timestamp: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Temperature: 1}})
	b := domain.NewSeries("b", nil)

	assert.False(t, set.Put(a))
	assert.False(t, set.Put(b))
	assert.True(t, set.Put(a.WithLabel("a")))

	if diff := cmp.Diff([]string{"a", "b"}, set.Labels()); diff != "" {
		t.Fatalf("labels mismatch (-want +got):\n%s", diff)
	}

	all, err := set.Select()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sel, err := set.Select("b", "a")
	require.NoError(t, err)
	assert.Equal(t, "b", sel[0].Label())
	assert.Equal(t, "a", sel[1].Label())

	_, err = set.Select("a", "zzz")
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrUnknownSeries)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "zzz")
}

// --- helpers ---

const epwHeader = "LOCATION,Erbil,-,IRQ,ITMY,406310,36.24,43.96,3.0,420.0\n" +
	"DESIGN CONDITIONS,0\n" +
	"TYPICAL/EXTREME PERIODS,0\n" +
	"GROUND TEMPERATURES,0\n" +
	"HOLIDAYS/DAYLIGHT SAVINGS,No,0,0,0\n" +
	"COMMENTS 1,synthetic\n" +
	"COMMENTS 2,synthetic\n" +
	"DATA PERIODS,1,1,Data,Sunday, 1/ 1,12/31\n"

// epwRows renders hours 1-24 of one day at a constant temperature.
func epwRows(month, day int, temp float64) string {
	var b strings.Builder
	for h := 1; h <= 24; h++ {
		fmt.Fprintf(&b, "2005,%d,%d,%d,60,?9?9?9?9E0,%.1f,10.0,50,101000\n", month, day, h, temp)
	}
	return b.String()
}

func epwDay(month, day int, temp float64) string {
	return epwHeader + epwRows(month, day, temp)
}
