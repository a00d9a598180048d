// Package density ties document retrieval, segmentation and the phrase index
// together into topic reports.
package density

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/document"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/textproc"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/worddensity/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/tracing"
)

// ErrInvalidTopK is the message given for a negative topic count.
const ErrInvalidTopK = "the number of topics is not valid"

// Fetcher retrieves a document by URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*document.Document, error)
}

// Analyzer produces Reports from URLs, HTML or plain text.
type Analyzer struct {
	cfg       config.AnalysisConfig
	fetcher   Fetcher
	segmenter *textproc.Segmenter
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *slog.Logger
}

// Option customises an Analyzer.
type Option func(*Analyzer)

// WithMetrics records analysis counters and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithSegmenter replaces the segmenter derived from the config.
func WithSegmenter(s *textproc.Segmenter) Option {
	return func(a *Analyzer) { a.segmenter = s }
}

// NewAnalyzer creates an Analyzer. fetcher may be nil when only text and
// HTML are analyzed.
func NewAnalyzer(cfg config.AnalysisConfig, fetcher Fetcher, opts ...Option) *Analyzer {
	var stemmer textproc.Stemmer = textproc.IdentityStemmer{}
	if cfg.Stemming {
		stemmer = textproc.SnowballStemmer{}
	}
	a := &Analyzer{
		cfg:       cfg,
		fetcher:   fetcher,
		segmenter: textproc.New(textproc.CommonStopWords(), stemmer),
		now:       time.Now,
		logger:    slog.Default().With("component", "analyzer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ResolveTopK applies the defaulting rules to a requested topic count: 0
// selects the configured default, negative values are rejected and large
// ones are capped.
func (a *Analyzer) ResolveTopK(k int) (int, error) {
	switch {
	case k < 0:
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, ErrInvalidTopK)
	case k == 0:
		return a.cfg.DefaultTopK, nil
	case a.cfg.MaxTopK > 0 && k > a.cfg.MaxTopK:
		return a.cfg.MaxTopK, nil
	default:
		return k, nil
	}
}

// AnalyzeURL fetches rawURL and reports its top k phrases.
func (a *Analyzer) AnalyzeURL(ctx context.Context, rawURL string, k int) (*Report, error) {
	k, err := a.ResolveTopK(k)
	if err != nil {
		return nil, err
	}
	if a.fetcher == nil {
		return nil, fmt.Errorf("analyzing %s: %w: no fetcher configured", rawURL, apperrors.ErrInternal)
	}
	ctx, span := tracing.Start(ctx, "analyze_url")
	span.SetAttr("url", rawURL)
	defer span.End()

	fetchCtx, fetchSpan := tracing.Start(ctx, "fetch")
	doc, err := a.fetcher.Fetch(fetchCtx, rawURL)
	fetchSpan.End()
	if err != nil {
		a.count(KindURL, "fetch_error")
		return nil, err
	}
	text := string(doc.Body)
	if doc.IsHTML() {
		_, extractSpan := tracing.Start(ctx, "extract")
		text, err = document.ExtractText(bytes.NewReader(doc.Body))
		extractSpan.End()
		if err != nil {
			a.count(KindURL, "error")
			return nil, fmt.Errorf("extracting text from %s: %w", rawURL, err)
		}
	}
	return a.analyze(ctx, doc.URL, KindURL, text, k)
}

// AnalyzeHTML reports the top k phrases of the visible text in r.
func (a *Analyzer) AnalyzeHTML(ctx context.Context, r io.Reader, k int) (*Report, error) {
	k, err := a.ResolveTopK(k)
	if err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "analyze_html")
	defer span.End()

	_, extractSpan := tracing.Start(ctx, "extract")
	text, err := document.ExtractText(r)
	extractSpan.End()
	if err != nil {
		a.count(KindHTML, "error")
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unreadable html: %v", err)
	}
	return a.analyze(ctx, KindHTML, KindHTML, text, k)
}

// AnalyzeText reports the top k phrases of text.
func (a *Analyzer) AnalyzeText(ctx context.Context, text string, k int) (*Report, error) {
	k, err := a.ResolveTopK(k)
	if err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "analyze_text")
	defer span.End()
	return a.analyze(ctx, KindText, KindText, text, k)
}

func (a *Analyzer) analyze(ctx context.Context, source, kind, text string, k int) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analyzing %s: %w", source, err)
	}
	start := a.now()

	_, segmentSpan := tracing.Start(ctx, "segment")
	segments := a.segmenter.Segments(text)
	tokens := 0
	for _, segment := range segments {
		tokens += len(segment)
	}
	segmentSpan.SetAttr("segments", len(segments))
	segmentSpan.End()

	indexCtx, indexSpan := tracing.Start(ctx, "index")
	var index *phrase.Index
	if a.cfg.Workers > 1 && len(segments) > a.cfg.ShardThreshold {
		indexSpan.SetAttr("workers", a.cfg.Workers)
		var err error
		index, err = phrase.BuildSharded(indexCtx, segments, a.cfg.Workers)
		if err != nil {
			indexSpan.End()
			a.count(kind, "error")
			return nil, err
		}
	} else {
		index = phrase.NewIndex()
		for _, segment := range segments {
			index.Ingest(segment)
		}
	}
	indexSpan.End()

	_, rankSpan := tracing.Start(ctx, "rank")
	phrases := index.TopPhrases(k)
	rankSpan.End()

	report := &Report{
		Source:          source,
		Kind:            kind,
		TopK:            k,
		Phrases:         phrases,
		Segments:        index.Segments(),
		Tokens:          tokens,
		DistinctPhrases: index.Len(),
		CreatedAt:       a.now().UTC(),
	}
	elapsed := a.now().Sub(start)
	report.ElapsedMs = elapsed.Milliseconds()

	a.count(kind, "ok")
	if a.metrics != nil {
		a.metrics.AnalysisDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
		a.metrics.SegmentsProcessed.Add(float64(report.Segments))
		a.metrics.DistinctPhrases.Observe(float64(report.DistinctPhrases))
	}
	a.logger.Debug("analysis complete",
		"source", source,
		"segments", report.Segments,
		"tokens", tokens,
		"distinct_phrases", report.DistinctPhrases,
		"top_k", k,
		"elapsed", elapsed,
	)
	return report, nil
}

func (a *Analyzer) count(kind, outcome string) {
	if a.metrics != nil {
		a.metrics.AnalysesTotal.WithLabelValues(kind, outcome).Inc()
	}
}
