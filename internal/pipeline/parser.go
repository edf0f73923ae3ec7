package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/epw-climate-service/internal/domain"
)

// Job pairs a source with the options used to parse it.
type Job struct {
	Source  Source
	Options domain.ParseOptions
}

// Parser turns one job into a temperature series.
type Parser interface {
	Parse(ctx context.Context, job Job) (domain.TemperatureSeries, domain.ParseStats, error)
}

// EPWParser implements Parser with the domain EPW reader.
type EPWParser struct{}

func (EPWParser) Parse(ctx context.Context, job Job) (domain.TemperatureSeries, domain.ParseStats, error) {
	name := job.Source.Name()
	rc, err := job.Source.Open(ctx)
	if err != nil {
		return domain.TemperatureSeries{}, domain.ParseStats{}, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	return domain.ParseEPWWithStats(name, rc, job.Options)
}
