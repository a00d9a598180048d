// Package handler exposes the analyzer, report cache, report store and job
// queue over HTTP.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gofrs/uuid"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density/cache"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/document"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/ratelimit"
	apperrors "github.com/Adithya-Monish-Kumar-K/worddensity/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/middleware"
)

// ReportStore is the part of store.Store the handler reads from.
type ReportStore interface {
	Latest(ctx context.Context, source string) (*density.Report, error)
	List(ctx context.Context, limit int) ([]*density.Report, error)
}

// Deps collects the collaborators of a Handler. Only Analyzer is required.
type Deps struct {
	Analyzer     *density.Analyzer
	Cache        *cache.ReportCache
	Store        ReportStore
	Jobs         kafka.Publisher
	Tracker      analytics.Tracker
	Metrics      *metrics.Metrics
	MaxBodyBytes int64
}

type Handler struct {
	deps   Deps
	logger *slog.Logger
}

func New(deps Deps) *Handler {
	if deps.Cache == nil {
		deps.Cache = cache.New(nil, 0, deps.Metrics)
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = 4 << 20
	}
	return &Handler{
		deps:   deps,
		logger: slog.Default().With("component", "topics-handler"),
	}
}

// TopicsResponse is a report plus whether it was served from the cache.
type TopicsResponse struct {
	*density.Report
	CacheHit bool `json:"cache_hit"`
}

// JobRequest is the body of POST /api/v1/jobs.
type JobRequest struct {
	URL  string `json:"url"`
	TopK int    `json:"k"`
}

// JobResponse acknowledges a queued job.
type JobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/topics", h.TopicsForURL)
	mux.HandleFunc("POST /api/v1/topics/text", h.TopicsForText)
	mux.HandleFunc("POST /api/v1/topics/html", h.TopicsForHTML)
	mux.HandleFunc("POST /api/v1/jobs", h.SubmitJob)
	mux.HandleFunc("GET /api/v1/reports", h.Reports)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// TopicsForURL handles GET /api/v1/topics?url=&k=.
func (h *Handler) TopicsForURL(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	k, ok := h.parseK(w, r)
	if !ok {
		return
	}
	rawURL := r.URL.Query().Get("url")
	if _, err := document.ValidateURL(rawURL); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	// Resolve before keying the cache so "no k" and the default share entries.
	k, err := h.deps.Analyzer.ResolveTopK(k)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}

	report, hit, err := h.deps.Cache.GetOrCompute(ctx, rawURL, k, func(ctx context.Context) (*density.Report, error) {
		return h.deps.Analyzer.AnalyzeURL(ctx, rawURL, k)
	})
	h.finish(w, r, rawURL, density.KindURL, report, hit, err, start)
}

// TopicsForText handles POST /api/v1/topics/text?k= with a plain-text body.
func (h *Handler) TopicsForText(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	k, ok := h.parseK(w, r)
	if !ok {
		return
	}
	body, err := h.readBody(w, r)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	report, err := h.deps.Analyzer.AnalyzeText(r.Context(), string(body), k)
	h.finish(w, r, density.KindText, density.KindText, report, false, err, start)
}

// TopicsForHTML handles POST /api/v1/topics/html?k= with an HTML body.
func (h *Handler) TopicsForHTML(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	k, ok := h.parseK(w, r)
	if !ok {
		return
	}
	body, err := h.readBody(w, r)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	report, err := h.deps.Analyzer.AnalyzeHTML(r.Context(), bytes.NewReader(body), k)
	h.finish(w, r, density.KindHTML, density.KindHTML, report, false, err, start)
}

// SubmitJob handles POST /api/v1/jobs, queueing an analysis on Kafka.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if h.deps.Jobs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "job queue is disabled")
		return
	}
	body, err := h.readBody(w, r)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	var req JobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "body must be JSON: {\"url\": ..., \"k\": ...}")
		return
	}
	if _, err := document.ValidateURL(req.URL); err != nil {
		h.writeAppError(w, r, err)
		return
	}
	if _, err := h.deps.Analyzer.ResolveTopK(req.TopK); err != nil {
		h.writeAppError(w, r, err)
		return
	}

	id, err := uuid.NewV4()
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	msg := density.AnalyzeRequest{
		JobID:       id.String(),
		URL:         req.URL,
		TopK:        req.TopK,
		RequestID:   middleware.GetRequestID(r.Context()),
		RequestedAt: time.Now().UTC(),
	}
	if err := h.deps.Jobs.Publish(r.Context(), kafka.Event{Key: req.URL, Value: msg}); err != nil {
		logger.FromContext(r.Context()).Error("queueing job failed", "url", req.URL, "error", err)
		h.countJob("queue_error")
		h.writeError(w, http.StatusServiceUnavailable, "could not queue job")
		return
	}
	h.countJob("queued")
	logger.FromContext(r.Context()).Info("job queued", "job_id", msg.JobID, "url", req.URL, "k", req.TopK)
	h.writeJSON(w, http.StatusAccepted, JobResponse{JobID: msg.JobID, Status: "queued"})
}

// Reports handles GET /api/v1/reports?url= (latest report for url) and
// GET /api/v1/reports?limit= (most recent reports).
func (h *Handler) Reports(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		h.writeError(w, http.StatusServiceUnavailable, "report store is disabled")
		return
	}
	if rawURL := r.URL.Query().Get("url"); rawURL != "" {
		report, err := h.deps.Store.Latest(r.Context(), rawURL)
		if err != nil {
			h.writeAppError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, report)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			h.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	reports, err := h.deps.Store.List(r.Context(), limit)
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"reports": reports, "count": len(reports)})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.deps.Cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.deps.Cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// RateLimit rejects clients that exceed limiter's budget with 429.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) finish(
	w http.ResponseWriter,
	r *http.Request,
	source, kind string,
	report *density.Report,
	hit bool,
	err error,
	start time.Time,
) {
	latencyMs := time.Since(start).Milliseconds()
	event := analytics.AnalysisEvent{
		Type:      analytics.EventAnalysis,
		Source:    source,
		Kind:      kind,
		LatencyMs: latencyMs,
		CacheHit:  hit,
		Timestamp: time.Now().UTC(),
		RequestID: middleware.GetRequestID(r.Context()),
	}
	if err != nil {
		event.Error = err.Error()
		h.track(event)
		h.writeAppError(w, r, err)
		return
	}

	event.TopK = report.TopK
	event.Segments = report.Segments
	event.DistinctPhrases = report.DistinctPhrases
	event.TopPhrases = report.Topics()
	h.track(event)

	logger.FromContext(r.Context()).Info("topics computed",
		"source", source,
		"kind", kind,
		"top_k", report.TopK,
		"phrases", len(report.Phrases),
		"cache_hit", hit,
		"latency_ms", latencyMs,
	)
	h.writeJSON(w, http.StatusOK, TopicsResponse{Report: report, CacheHit: hit})
}

func (h *Handler) track(event analytics.AnalysisEvent) {
	if h.deps.Tracker != nil {
		h.deps.Tracker.Track(event)
	}
}

func (h *Handler) countJob(outcome string) {
	if h.deps.Metrics != nil {
		h.deps.Metrics.JobsTotal.WithLabelValues(outcome).Inc()
	}
}

// parseK reads the optional k query parameter. Absent means 0, which the
// analyzer resolves to its default.
func (h *Handler) parseK(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("k")
	if v == "" {
		return 0, true
	}
	k, err := strconv.Atoi(v)
	if err != nil || k < 0 {
		h.writeError(w, http.StatusBadRequest, density.ErrInvalidTopK)
		return 0, false
	}
	return k, true
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.deps.MaxBodyBytes))
	if isMaxBytes(err) {
		return nil, apperrors.Newf(apperrors.ErrDocumentTooLarge, http.StatusRequestEntityTooLarge,
			"body exceeds %d bytes", h.deps.MaxBodyBytes)
	}
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "reading body: %v", err)
	}
	return body, nil
}

func isMaxBytes(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func (h *Handler) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		logger.FromContext(r.Context()).Debug("request rejected", "path", r.URL.Path, "status", status, "error", err)
	}
	h.writeError(w, status, apperrors.Message(err))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
