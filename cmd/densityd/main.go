// Command densityd serves the topic-extraction HTTP API.
//
// Every backend is optional: Redis caches reports, Postgres keeps report
// history and analytics snapshots, and Kafka carries async jobs and analytics
// events. With everything disabled the service analyzes synchronously and
// aggregates analytics in process.
//
// Usage:
//
//	go run ./cmd/densityd [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density/cache"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density/handler"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density/store"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/document"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/worddensity/pkg/redis"
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
	slog.Info("starting density service", "port", cfg.Server.Port)

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

	checker := health.NewChecker()
	checker.Register("fetch", health.BreakerCheck(fetcher.Breaker()))

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, report caching disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			slog.Info("report cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	var reportCache *cache.ReportCache
	if redisClient != nil {
		reportCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
		checker.Register("redis", health.PingCheck(redisClient.Ping, health.StatusDegraded))
	} else {
		reportCache = cache.New(nil, 0, m)
	}

	var reportStore handler.ReportStore
	var history analytics.HistorySource
	var snapshots *snapshot.Store
	if cfg.Postgres.Enabled {
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		reports := store.New(db)
		snapshots = snapshot.NewStore(db)
		if err := reports.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create report schema", "error", err)
			os.Exit(1)
		}
		if err := snapshots.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create snapshot schema", "error", err)
			os.Exit(1)
		}
		reportStore = reports
		history = snapshots
		checker.Register("postgres", health.PingCheck(db.Ping, health.StatusDown))
		slog.Info("report store enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	aggregator := analytics.NewAggregator(cfg.Analytics.TopN)
	if snapshots != nil {
		if latest, err := snapshots.LatestSnapshot(ctx); err != nil {
			slog.Warn("failed to load analytics snapshot", "error", err)
		} else if latest != nil {
			aggregator.Restore(*latest)
			slog.Info("analytics restored from snapshot", "total_analyses", latest.TotalAnalyses)
		}
		snapshots.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval, cfg.Analytics.SnapshotRetention)
	}

	var tracker analytics.Tracker = aggregator
	var jobs kafka.Publisher
	if cfg.Kafka.Enabled {
		jobProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyzeRequests)
		defer jobProducer.Close()
		jobs = jobProducer

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
		tracker = collector

		analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, aggregator.Handle())
		defer analyticsConsumer.Close()
		go func() {
			if err := analyticsConsumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()
		slog.Info("kafka enabled",
			"jobs_topic", cfg.Kafka.Topics.AnalyzeRequests,
			"analytics_topic", cfg.Kafka.Topics.AnalyticsEvents,
		)
	} else {
		slog.Info("kafka disabled, jobs unavailable and analytics aggregated in process")
	}

	h := handler.New(handler.Deps{
		Analyzer:     analyzer,
		Cache:        reportCache,
		Store:        reportStore,
		Jobs:         jobs,
		Tracker:      tracker,
		Metrics:      m,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	statsHandler := analytics.NewHandler(aggregator, history)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/stats", statsHandler.Stats)
	mux.HandleFunc("GET /api/v1/stats/history", statsHandler.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	clientLimiter := ratelimit.New(cfg.Server.ClientRateLimit, time.Minute)
	defer clientLimiter.Stop()

	chain := middleware.Chain(mux,
		middleware.Recover,
		middleware.CORS(cfg.Server.CORSOrigins),
		middleware.RequestID,
		middleware.Metrics(m),
		handler.RateLimit(clientLimiter),
		middleware.Timeout(cfg.Server.RequestTimeout),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("density service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("density service stopped")
}
