package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/ingest"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/application/logging"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/common/io"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/config"
	infralogging "gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/logging"
	"gitea.xscloud.ru/xscloud/eventingest/pkg/infrastructure/metrics"
)

const (
	exitOK           = 0
	exitFailure      = 1
	exitDrainTimeout = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return exitFailure
	}

	logger, err := infralogging.NewJSONLogger(&infralogging.Config{
		AppName: cfg.AppName,
		Level:   cfg.LogLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	closer := io.NewMultiCloser()
	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			logger.Error(closeErr, "failed to release resources")
		}
	}()

	pipeline, err := setup(ctx, cfg, logger, closer)
	if err != nil {
		logger.Error(err, "startup failed")
		return exitFailure
	}

	startedAt := time.Now()
	logger.WithField("started_at", startedAt.UTC().Format(time.RFC3339)).Info("eventingest started")
	err = pipeline.Run(ctx)
	logger.WithFields(logging.Fields{
		"stopped_at": time.Now().UTC().Format(time.RFC3339),
		"elapsed":    time.Since(startedAt).String(),
	}).Info("eventingest stopped")

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, ingest.ErrDrainTimeout):
		return exitDrainTimeout
	default:
		return exitFailure
	}
}

func setup(ctx context.Context, cfg config.Config, logger logging.Logger, closer io.MultiCloser) (*ingest.Pipeline, error) {
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Addr != "" {
		server := metrics.NewServer(cfg.Metrics.Addr, registry, logger)
		server.Start()
		closer.AddCloser(server)
	}

	store, err := openStore(ctx, cfg, logger, closer)
	if err != nil {
		return nil, err
	}
	source, err := openSource(ctx, cfg, logger, closer)
	if err != nil {
		return nil, err
	}
	deadLetters, err := openDeadLetters(ctx, cfg, store, logger, closer)
	if err != nil {
		return nil, err
	}

	return ingest.NewPipeline(
		ingest.Config{
			QueueCapacity: cfg.Pipeline.QueueCapacity,
			Workers:       cfg.Pipeline.Workers,
			Retry: ingest.RetryPolicy{
				MaxAttempts:    cfg.Pipeline.MaxAttempts,
				BaseDelay:      cfg.Pipeline.BaseDelay,
				MaxDelay:       cfg.Pipeline.MaxDelay,
				AttemptTimeout: cfg.Pipeline.WriteTimeout,
			},
			DrainTimeout: cfg.Pipeline.DrainTimeout,
		},
		source,
		store.writer,
		deadLetters,
		logger,
		ingest.WithMetrics(metrics.NewPrometheus(registry)),
	), nil
}
