// Command density-worker consumes queued analysis jobs from Kafka, stores the
// reports in Postgres when enabled, and publishes them on the reports topic.
//
// Usage:
//
//	go run ./cmd/density-worker [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density/store"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density/worker"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/document"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	if !cfg.Kafka.Enabled {
		slog.Error("density worker requires kafka; set kafka.enabled or WD_KAFKA_ENABLED")
		os.Exit(1)
	}
	slog.Info("starting density worker", "workers", cfg.Analysis.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	fetcher := document.NewFetcher(cfg.Fetch, document.WithMetrics(m))
	defer fetcher.Close()
	analyzer := density.NewAnalyzer(cfg.Analysis, fetcher, density.WithMetrics(m))

	opts := worker.Options{
		Metrics:    m,
		JobTimeout: cfg.Server.RequestTimeout,
	}

	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		reports := store.New(db)
		if err := reports.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create report schema", "error", err)
			os.Exit(1)
		}
		opts.Store = reports
	}

	reportProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Reports)
	defer reportProducer.Close()
	opts.Reports = reportProducer

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(
		analyticsProducer,
		cfg.Analytics.BufferSize,
		cfg.Analytics.BatchSize,
		cfg.Analytics.FlushInterval,
	)
	collector.Start(ctx)
	defer collector.Close()
	opts.Tracker = collector

	w := worker.New(analyzer, opts)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyzeRequests, w.Handle())
	defer consumer.Close()

	slog.Info("density worker ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.AnalyzeRequests,
		"group", cfg.Kafka.ConsumerGroup,
		"reports_topic", cfg.Kafka.Topics.Reports,
	)

	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("density worker stopped")
}
