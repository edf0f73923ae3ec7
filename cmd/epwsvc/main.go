package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/epw-climate-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/epw-climate-service/internal/adapter/kafka"
	"github.com/couchcryptid/epw-climate-service/internal/config"
	"github.com/couchcryptid/epw-climate-service/internal/memo"
	"github.com/couchcryptid/epw-climate-service/internal/observability"
	"github.com/couchcryptid/epw-climate-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Series publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(cfg, pipeline.EPWParser{}, publisher, logger, metrics)
	counter := memo.NewCachedCounter(memo.Direct{}, cfg.ThresholdCacheSize, metrics.ThresholdCache)

	srv := httpadapter.NewServer(cfg, p, counter, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server; /readyz reports 503 until a scenario has loaded.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Load bundled scenarios.
	loaded := loadScenarios(ctx, p, logger)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	// The loader may still be publishing; the writer must outlive it.
	select {
	case <-loaded:
	case <-shutdownCtx.Done():
		logger.Warn("scenario load still running at shutdown")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// loadScenarios runs the scenario load in the background. The returned
// channel is closed once every scenario has been stored and published.
func loadScenarios(ctx context.Context, p *pipeline.Pipeline, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, r := range p.LoadScenarios(ctx) {
			if !r.OK() {
				logger.Error("scenario unavailable", "label", r.Label, "kind", r.Kind(), "error", r.Err)
			}
		}
	}()
	return done
}
