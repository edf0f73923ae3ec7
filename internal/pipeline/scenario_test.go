package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/epw-climate-service/internal/config"
	"github.com/couchcryptid/epw-climate-service/internal/domain"
)

func writeEPW(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadScenarios_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	baseline := writeEPW(t, dir, "baseline.epw", epwDay(7, 1, 38))
	mid := writeEPW(t, dir, "2050.epw", epwDay(7, 1, 41))

	pub := &mockPublisher{}
	metrics := newTestMetrics()
	p := newTestPipeline(pub, metrics,
		config.Scenario{Label: "2023 Baseline", Path: baseline, NominalYear: 2023},
		config.Scenario{Label: "2050 Projection", Path: mid, NominalYear: 2050},
		config.Scenario{Label: "2080 Projection", Path: filepath.Join(dir, "missing.epw"), NominalYear: 2080},
	)

	results := p.LoadScenarios(context.Background())
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.Equal(t, "2023 Baseline", results[0].Label)
	assert.True(t, results[1].OK())
	assert.ErrorIs(t, results[2].Err, os.ErrNotExist)
	assert.Equal(t, "2080 Projection", results[2].Label)

	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, []string{"2023 Baseline", "2050 Projection"}, p.Series().Labels())
	assert.ElementsMatch(t, []string{"2023 Baseline", "2050 Projection"}, pub.published)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.SeriesLoaded), 1e-9)

	// Scenarios are anchored on their own nominal years.
	proj, ok := p.Series().Get("2050 Projection")
	require.True(t, ok)
	assert.Equal(t, 2050, proj.Observations()[0].Timestamp.Year())

	counts := domain.CountAllAboveThreshold(40, p.Series().All()...)
	assert.Equal(t, map[string]int{"2023 Baseline": 0, "2050 Projection": 24}, counts)
}

func TestLoadScenarios_AllFail(t *testing.T) {
	dir := t.TempDir()
	empty := writeEPW(t, dir, "empty.epw", "")

	p := newTestPipeline(nil, newTestMetrics(),
		config.Scenario{Label: "2023 Baseline", Path: empty, NominalYear: 2023},
	)

	results := p.LoadScenarios(context.Background())
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, domain.ErrStructure)
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.Zero(t, p.Series().Len())
}

func TestLoadScenarios_Latin1File(t *testing.T) {
	dir := t.TempDir()
	content := "LOCATION,Hawl\xear,-,IRQ\n" + epwDay(1, 1, 3)[len("LOCATION,Erbil,-,IRQ,ITMY,406310,36.24,43.96,3.0,420.0\n"):]
	path := writeEPW(t, dir, "hawler.epw", content)

	p := newTestPipeline(nil, newTestMetrics(),
		config.Scenario{Label: "Hawler", Path: path, NominalYear: 2023},
	)

	results := p.LoadScenarios(context.Background())
	require.True(t, results[0].OK(), results[0].Err)
	assert.Equal(t, 24, results[0].Series.Len())
}
