package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Debug("hidden")
	logger.Info("series loaded", "label", "2023 Baseline", "observations", 8396)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "series loaded", entry["msg"])
	assert.Equal(t, "2023 Baseline", entry["label"])
	assert.InDelta(t, 8396.0, entry["observations"], 1e-9)
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "text")

	logger.Info("hidden")
	logger.Warn("row dropped", "file", "erbil.epw")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "row dropped")
	assert.Contains(t, out, "erbil.epw")
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.FilesParsed.Inc()
	a.ParseFailures.WithLabelValues("decode").Inc()

	assert.InDelta(t, 1.0, testutil.ToFloat64(a.FilesParsed), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(b.FilesParsed), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(a.ParseFailures.WithLabelValues("decode")), 1e-9)
}
