package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/worddensity/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/resilience"
)

// Document is a fetched page body together with its metadata.
type Document struct {
	URL         string
	FinalURL    string
	ContentType string
	Body        []byte
	FetchedAt   time.Time
}

// IsHTML reports whether the body should go through ExtractText.
func (d *Document) IsHTML() bool {
	return d.ContentType == "text/html" || d.ContentType == "application/xhtml+xml"
}

// statusError records a non-2xx response.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// Fetcher downloads documents with a per-host token bucket, retries with
// backoff and a circuit breaker.
type Fetcher struct {
	client  *http.Client
	cfg     config.FetchConfig
	limiter *ratelimit.Limiter
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client. Its Timeout is left as given.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithMetrics records fetch counts, latency and sizes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// NewFetcher creates a Fetcher from cfg.
func NewFetcher(cfg config.FetchConfig, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: ratelimit.New(cfg.PerHostRate, cfg.PerHostWindow),
		logger:  slog.Default().With("component", "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.breaker = resilience.NewCircuitBreaker("document-fetch", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		IsFailure:        isUpstreamFailure,
		OnStateChange: func(name string, to resilience.State) {
			if f.metrics != nil {
				f.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return f
}

// Close releases the limiter's background sweeper.
func (f *Fetcher) Close() {
	f.limiter.Stop()
}

// Breaker exposes the circuit breaker guarding upstream fetches.
func (f *Fetcher) Breaker() *resilience.CircuitBreaker {
	return f.breaker
}

// Fetch retrieves rawURL. Errors wrap the sentinels of pkg/errors so that
// callers can map them to statuses.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	if !f.limiter.Allow(strings.ToLower(u.Hostname())) {
		f.observe("rate_limited", 0, 0)
		return nil, fmt.Errorf("fetching %s: %w", u.Host, apperrors.ErrRateLimited)
	}

	start := time.Now()
	var doc *Document
	err = f.breaker.Execute(func() error {
		return resilience.Retry(ctx, "fetch "+u.Host, resilience.RetryConfig{
			MaxAttempts:  f.cfg.Retry.MaxAttempts,
			InitialDelay: f.cfg.Retry.InitialDelay,
			MaxDelay:     f.cfg.Retry.MaxDelay,
		}, func() error {
			d, attemptErr := f.attempt(ctx, u.String())
			if attemptErr != nil {
				if !isUpstreamFailure(attemptErr) {
					return resilience.Permanent(attemptErr)
				}
				return attemptErr
			}
			doc = d
			return nil
		})
	})
	elapsed := time.Since(start)
	if err != nil {
		err = classify(ctx, u.String(), err)
		f.observe(outcome(err), elapsed, 0)
		f.logger.Warn("fetch failed", "url", u.String(), "error", err, "elapsed", elapsed)
		return nil, err
	}
	f.observe("ok", elapsed, len(doc.Body))
	f.logger.Debug("document fetched",
		"url", doc.URL,
		"final_url", doc.FinalURL,
		"content_type", doc.ContentType,
		"bytes", len(doc.Body),
		"elapsed", elapsed,
	)
	return doc, nil
}

func (f *Fetcher) attempt(ctx context.Context, rawURL string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidURL, http.StatusBadRequest, "building request: %v", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}
	if resp.ContentLength > f.cfg.MaxBodyBytes {
		return nil, apperrors.Newf(apperrors.ErrDocumentTooLarge, http.StatusRequestEntityTooLarge,
			"document is %d bytes, limit is %d", resp.ContentLength, f.cfg.MaxBodyBytes)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, apperrors.Newf(apperrors.ErrDocumentTooLarge, http.StatusRequestEntityTooLarge,
			"document exceeds %d bytes", f.cfg.MaxBodyBytes)
	}

	contentType := mediaType(resp.Header.Get("Content-Type"), body)
	switch contentType {
	case "text/html", "application/xhtml+xml", "text/plain":
	default:
		return nil, apperrors.Newf(apperrors.ErrUnsupportedContent, http.StatusUnsupportedMediaType,
			"content type %q is not text", contentType)
	}
	return &Document{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		ContentType: contentType,
		Body:        body,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

// mediaType returns the lower-cased media type, sniffing the body when the
// header is absent or unparsable.
func mediaType(header string, body []byte) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil {
			return strings.ToLower(mt)
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(body))
	return mt
}

// isUpstreamFailure separates transient upstream problems, which are retried
// and count against the breaker, from answers that will not change.
func isUpstreamFailure(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var appErr *apperrors.AppError
	return !errors.As(err, &appErr)
}

func classify(ctx context.Context, rawURL string, err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, resilience.ErrCircuitOpen):
		return fmt.Errorf("fetching %s: %w: %v", rawURL, apperrors.ErrUpstreamUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil:
		return fmt.Errorf("fetching %s: %w: %v", rawURL, apperrors.ErrTimeout, err)
	default:
		return fmt.Errorf("fetching %s: %w: %v", rawURL, apperrors.ErrFetchFailed, err)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrTimeout):
		return "timeout"
	case errors.Is(err, apperrors.ErrUpstreamUnavailable):
		return "circuit_open"
	case errors.Is(err, apperrors.ErrDocumentTooLarge):
		return "too_large"
	case errors.Is(err, apperrors.ErrUnsupportedContent):
		return "unsupported"
	default:
		return "error"
	}
}

func (f *Fetcher) observe(outcome string, elapsed time.Duration, size int) {
	if f.metrics == nil {
		return
	}
	f.metrics.FetchesTotal.WithLabelValues(outcome).Inc()
	if elapsed > 0 {
		f.metrics.FetchDuration.Observe(elapsed.Seconds())
	}
	if size > 0 {
		f.metrics.FetchedBytes.Observe(float64(size))
	}
}
