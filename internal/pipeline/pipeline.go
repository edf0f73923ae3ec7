package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/epw-climate-service/internal/config"
	"github.com/couchcryptid/epw-climate-service/internal/domain"
	"github.com/couchcryptid/epw-climate-service/internal/observability"
)

// ErrReservedLabel is returned when an upload would replace a scenario series.
var ErrReservedLabel = errors.New("label reserved for a scenario")

// Publisher forwards a newly loaded series downstream.
type Publisher interface {
	Publish(ctx context.Context, s domain.TemperatureSeries) error
}

// Result is the outcome of loading one source. Exactly one of Series and
// Err is meaningful.
type Result struct {
	Name     string
	Label    string
	Series   domain.TemperatureSeries
	Stats    domain.ParseStats
	Err      error
	LoadedAt time.Time
}

func (r Result) OK() bool { return r.Err == nil }

// Kind classifies a failed result; empty on success.
func (r Result) Kind() string {
	if r.Err == nil {
		return ""
	}
	return domain.ErrorKind(r.Err)
}

// Pipeline loads EPW sources into an in-memory SeriesSet.
type Pipeline struct {
	parser       Parser
	publisher    Publisher
	series       *SeriesSet
	scenarios    []config.Scenario
	parseOptions func(nominalYear int, label string) domain.ParseOptions
	baselineYear int
	concurrency  int
	logger       *slog.Logger
	metrics      *observability.Metrics
	ready        atomic.Bool
}

// New creates a Pipeline. publisher may be nil.
func New(cfg *config.Config, parser Parser, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		parser:       parser,
		publisher:    publisher,
		series:       NewSeriesSet(),
		scenarios:    cfg.Scenarios,
		parseOptions: cfg.ParseOptions,
		baselineYear: cfg.BaselineYear,
		concurrency:  max(cfg.ParseConcurrency, 1),
		logger:       logger,
		metrics:      metrics,
	}
}

// Series returns the set of loaded series.
func (p *Pipeline) Series() *SeriesSet { return p.series }

// BaselineYear is the nominal year applied to uploads without one.
func (p *Pipeline) BaselineYear() int { return p.baselineYear }

// CheckReadiness returns nil once at least one scenario has loaded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no scenario series loaded yet")
	}
	return nil
}

// LoadAll parses jobs concurrently and returns one result per job, in input
// order. A failing job never affects the others.
func (p *Pipeline) LoadAll(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = p.load(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// LoadScenarios loads every configured scenario and keeps the successes.
func (p *Pipeline) LoadScenarios(ctx context.Context) []Result {
	jobs := make([]Job, len(p.scenarios))
	for i, sc := range p.scenarios {
		jobs[i] = Job{
			Source:  FileSource{Path: sc.Path},
			Options: p.parseOptions(sc.NominalYear, sc.Label),
		}
	}

	results := p.store(ctx, p.LoadAll(ctx, jobs))

	loaded := 0
	for _, r := range results {
		if r.OK() {
			loaded++
		}
	}
	if loaded > 0 {
		p.ready.Store(true)
	}
	p.logger.Info("scenarios loaded", "loaded", loaded, "failed", len(results)-loaded)
	return results
}

// Ingest parses uploaded sources on nominalYear (the baseline year when zero)
// and adds the successes to the set, labelled by file name. An upload whose
// name matches a scenario label is rejected with ErrReservedLabel.
func (p *Pipeline) Ingest(ctx context.Context, nominalYear int, sources []Source) []Result {
	if nominalYear == 0 {
		nominalYear = p.baselineYear
	}

	results := make([]Result, len(sources))
	jobs := make([]Job, 0, len(sources))
	slots := make([]int, 0, len(sources))
	for i, src := range sources {
		if p.isScenarioLabel(src.Name()) {
			results[i] = Result{
				Name:     src.Name(),
				Label:    src.Name(),
				Err:      fmt.Errorf("%w: %w %q", domain.ErrInvalidArgument, ErrReservedLabel, src.Name()),
				LoadedAt: clock.Now(),
			}
			p.logger.Warn("upload rejected", "file", src.Name(), "error", results[i].Err)
			continue
		}
		jobs = append(jobs, Job{Source: src, Options: p.parseOptions(nominalYear, src.Name())})
		slots = append(slots, i)
	}

	for j, r := range p.store(ctx, p.LoadAll(ctx, jobs)) {
		results[slots[j]] = r
	}
	return results
}

func (p *Pipeline) isScenarioLabel(label string) bool {
	for _, sc := range p.scenarios {
		if sc.Label == label {
			return true
		}
	}
	return false
}

func (p *Pipeline) store(ctx context.Context, results []Result) []Result {
	for _, r := range results {
		if !r.OK() {
			continue
		}
		if p.series.Put(r.Series) {
			p.logger.Info("series replaced", "label", r.Label, "file", r.Name)
		}
		p.publish(ctx, r.Series)
	}
	p.metrics.SeriesLoaded.Set(float64(p.series.Len()))
	return results
}

func (p *Pipeline) load(ctx context.Context, job Job) Result {
	start := clock.Now()
	res := Result{Name: job.Source.Name(), Label: job.Options.Label}

	s, stats, err := p.parser.Parse(ctx, job)
	res.Stats = stats
	res.LoadedAt = clock.Now()
	p.metrics.RowsParsed.Add(float64(stats.Rows))
	p.metrics.RowsDropped.Add(float64(stats.Dropped))

	if err != nil {
		res.Err = err
		p.metrics.ParseFailures.WithLabelValues(res.Kind()).Inc()
		p.logger.Warn("parse failed", "file", res.Name, "kind", res.Kind(), "error", err)
		return res
	}

	res.Series = s
	res.Label = s.Label()
	p.metrics.FilesParsed.Inc()
	p.metrics.ParseDuration.Observe(clock.Since(start).Seconds())
	p.logger.Info("series loaded",
		"file", res.Name,
		"label", res.Label,
		"observations", s.Len(),
		"dropped", stats.Dropped,
		"duplicates", stats.Duplicates,
	)
	return res
}

func (p *Pipeline) publish(ctx context.Context, s domain.TemperatureSeries) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, s); err != nil {
		p.metrics.PublishErrors.Inc()
		p.logger.Warn("publish series failed", "label", s.Label(), "error", err)
		return
	}
	p.metrics.ObservationsPublished.Add(float64(s.Len()))
}
