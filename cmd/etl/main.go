package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/couchcryptid/collision-weather-etl/internal/adapter/climate"
	"github.com/couchcryptid/collision-weather-etl/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/collision-weather-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/collision-weather-etl/internal/adapter/kafka"
	"github.com/couchcryptid/collision-weather-etl/internal/config"
	"github.com/couchcryptid/collision-weather-etl/internal/observability"
	"github.com/couchcryptid/collision-weather-etl/internal/pipeline"
)

// Exit codes.
const (
	exitRunFailed   = 1
	exitConfigError = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitConfigError
	}

	runID := uuid.NewString()
	logger := observability.NewLogger(cfg).With("run_id", runID)
	metrics := observability.NewMetrics()

	fetcher := climate.NewFetcher(cfg, metrics, logger)
	reader := csvfile.NewReader(cfg.CollisionsPath, csvfile.Columns{
		ID:   cfg.CollisionIDColumn,
		Date: cfg.CollisionDateColumn,
		Hour: cfg.CollisionHourColumn,
	}, logger)

	var loader pipeline.Loader
	switch cfg.OutputSink {
	case config.SinkKafka:
		writer := kafkaadapter.NewWriter(cfg, runID, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		loader = writer
		logger.Info("output sink selected", "sink", cfg.OutputSink, "topic", cfg.KafkaSinkTopic)
	default:
		loader = csvfile.NewWriter(cfg.OutputPath, logger)
		logger.Info("output sink selected", "sink", cfg.OutputSink, "path", cfg.OutputPath)
	}

	p := pipeline.New(fetcher, reader, loader, pipeline.OptionsFromConfig(cfg), logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	code := 0
	if _, err := p.Run(ctx); err != nil {
		switch {
		case errors.Is(err, csvfile.ErrInputMissing):
			logger.Error("collision input missing; generate a fixture with cmd/genmock for test runs", "error", err)
			code = exitConfigError
		case errors.Is(err, context.Canceled):
			logger.Warn("pipeline interrupted", "error", err)
			code = exitRunFailed
		default:
			logger.Error("pipeline error", "error", err)
			code = exitRunFailed
		}
	}

	if srv != nil {
		if code == 0 {
			// Keep /report and /metrics available until asked to stop.
			<-ctx.Done()
		}
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}

	logger.Info("shutdown complete", "exit_code", code)
	return code
}
