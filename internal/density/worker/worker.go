// Package worker runs queued analysis jobs: it consumes AnalyzeRequests from
// Kafka, stores the resulting reports and announces them on the reports
// topic.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density"
	apperrors "github.com/Adithya-Monish-Kumar-K/worddensity/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/tracing"
)

// URLAnalyzer is the part of density.Analyzer the worker uses.
type URLAnalyzer interface {
	AnalyzeURL(ctx context.Context, rawURL string, k int) (*density.Report, error)
}

// ReportSaver persists reports.
type ReportSaver interface {
	Save(ctx context.Context, report *density.Report) error
}

// Options holds the optional collaborators of a Worker.
type Options struct {
	Store      ReportSaver
	Reports    kafka.Publisher
	Tracker    analytics.Tracker
	Metrics    *metrics.Metrics
	JobTimeout time.Duration
}

type Worker struct {
	analyzer URLAnalyzer
	opts     Options
	logger   *slog.Logger
}

func New(analyzer URLAnalyzer, opts Options) *Worker {
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 2 * time.Minute
	}
	return &Worker{
		analyzer: analyzer,
		opts:     opts,
		logger:   slog.Default().With("component", "density-worker"),
	}
}

// Handle returns the Kafka handler for the analyze-requests topic.
// Undecodable messages are logged and skipped so they are committed.
func (w *Worker) Handle() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[density.AnalyzeRequest](value)
		if err != nil {
			w.logger.Error("failed to decode analyze request", "key", string(key), "error", err)
			w.count("decode_error")
			return nil
		}
		if req.RequestID != "" {
			ctx = logger.WithRequestID(ctx, req.RequestID)
		}
		return w.Process(ctx, req)
	}
}

// Process runs one job. Failures caused by the request itself (bad URL, bad
// k, 4xx-class outcomes) are published as failed ReportEvents and swallowed;
// anything else is returned so the message is left uncommitted.
func (w *Worker) Process(ctx context.Context, req density.AnalyzeRequest) error {
	log := logger.FromContext(ctx).With("job_id", req.JobID, "url", req.URL)
	start := time.Now()
	ctx, span := tracing.Start(ctx, "job")
	span.SetAttr("job_id", req.JobID)
	defer span.End()

	report, err := resilience.Call(ctx, w.opts.JobTimeout, "analyze "+req.JobID, func(ctx context.Context) (*density.Report, error) {
		return w.analyzer.AnalyzeURL(ctx, req.URL, req.TopK)
	})

	event := analytics.AnalysisEvent{
		Type:      analytics.EventJob,
		Source:    req.URL,
		Kind:      density.KindURL,
		TopK:      req.TopK,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
		RequestID: req.RequestID,
	}

	if err != nil {
		event.Error = err.Error()
		w.track(event)
		if isPermanent(err) {
			log.Warn("job rejected", "error", err)
			w.count("rejected")
			return w.publish(ctx, density.ReportEvent{
				JobID:       req.JobID,
				URL:         req.URL,
				Error:       apperrors.Message(err),
				CompletedAt: time.Now().UTC(),
			})
		}
		log.Error("job failed", "error", err)
		w.count("failed")
		return fmt.Errorf("analyzing job %s: %w", req.JobID, err)
	}

	if w.opts.Store != nil {
		if err := w.opts.Store.Save(ctx, report); err != nil {
			w.count("store_error")
			return fmt.Errorf("storing report for job %s: %w", req.JobID, err)
		}
	}

	event.TopK = report.TopK
	event.Segments = report.Segments
	event.DistinctPhrases = report.DistinctPhrases
	event.TopPhrases = report.Topics()
	w.track(event)

	if err := w.publish(ctx, density.ReportEvent{
		JobID:       req.JobID,
		URL:         req.URL,
		Report:      report,
		CompletedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}
	w.count("completed")
	log.Info("job completed",
		"report_id", report.ID,
		"phrases", len(report.Phrases),
		"elapsed", time.Since(start),
	)
	return nil
}

func (w *Worker) publish(ctx context.Context, event density.ReportEvent) error {
	if w.opts.Reports == nil {
		return nil
	}
	if err := w.opts.Reports.Publish(ctx, kafka.Event{Key: event.URL, Value: event}); err != nil {
		return fmt.Errorf("publishing report event for job %s: %w", event.JobID, err)
	}
	return nil
}

func (w *Worker) track(event analytics.AnalysisEvent) {
	if w.opts.Tracker != nil {
		w.opts.Tracker.Track(event)
	}
}

func (w *Worker) count(outcome string) {
	if w.opts.Metrics != nil {
		w.opts.Metrics.JobsTotal.WithLabelValues(outcome).Inc()
	}
}

// isPermanent reports whether retrying the same request cannot succeed.
func isPermanent(err error) bool {
	status := apperrors.HTTPStatusCode(err)
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}
