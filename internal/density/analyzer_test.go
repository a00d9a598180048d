package density

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/document"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/phrase"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/worddensity/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/tracing"
)

type stubFetcher struct {
	docs  map[string]*document.Document
	err   error
	calls int
}

func (f *stubFetcher) Fetch(_ context.Context, rawURL string) (*document.Document, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[rawURL]
	if !ok {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, apperrors.ErrFetchFailed)
	}
	return doc, nil
}

func testAnalysisConfig() config.AnalysisConfig {
	cfg := config.Default().Analysis
	cfg.Stemming = false
	return cfg
}

func TestResolveTopK(t *testing.T) {
	a := NewAnalyzer(testAnalysisConfig(), nil)
	tests := []struct {
		in      int
		want    int
		wantErr bool
	}{
		{0, 20, false},
		{5, 5, false},
		{1000, 1000, false},
		{5000, 1000, false},
		{-1, 0, true},
	}
	for _, tt := range tests {
		got, err := a.ResolveTopK(tt.in)
		if tt.wantErr {
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Equal(t, ErrInvalidTopK, apperrors.Message(err))
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "k=%d", tt.in)
	}
}

func TestAnalyzeText(t *testing.T) {
	m := metrics.NewUnregistered()
	a := NewAnalyzer(testAnalysisConfig(), nil, WithMetrics(m))

	report, err := a.AnalyzeText(context.Background(), "The cat sat. The cat ran.", 0)
	require.NoError(t, err)

	assert.Equal(t, KindText, report.Kind)
	assert.Equal(t, 20, report.TopK)
	assert.Equal(t, 2, report.Segments)
	assert.Equal(t, 4, report.Tokens)
	assert.Equal(t, 5, report.DistinctPhrases)
	assert.Equal(t, []string{"cat", "cat ran", "cat sat", "ran", "sat"}, report.Topics())
	assert.Equal(t, phrase.RankedPhrase{Phrase: "cat", Frequency: 2, Tokens: 1}, report.Phrases[0])
	assert.False(t, report.CreatedAt.IsZero())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AnalysesTotal.WithLabelValues(KindText, "ok")))
}

func TestAnalyzeText_EmptyInput(t *testing.T) {
	a := NewAnalyzer(testAnalysisConfig(), nil)
	report, err := a.AnalyzeText(context.Background(), "   ", 3)
	require.NoError(t, err)
	assert.Empty(t, report.Phrases)
	assert.NotNil(t, report.Phrases)
	assert.Zero(t, report.Segments)
}

func TestAnalyzeText_NegativeK(t *testing.T) {
	a := NewAnalyzer(testAnalysisConfig(), nil)
	_, err := a.AnalyzeText(context.Background(), "words", -3)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatusCode(err))
}

func TestAnalyzeText_CancelledContext(t *testing.T) {
	a := NewAnalyzer(testAnalysisConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.AnalyzeText(ctx, "some words", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeText_ShardedMatchesSequential(t *testing.T) {
	var sb strings.Builder
	words := []string{"search", "engine", "index", "shard", "query", "ranking", "phrase"}
	for i := 0; i < 3000; i++ {
		sb.WriteString(words[i%len(words)])
		sb.WriteByte(' ')
		sb.WriteString(words[(i*3)%len(words)])
		sb.WriteString(". ")
	}
	text := sb.String()

	seqCfg := testAnalysisConfig()
	seqCfg.Workers = 1
	parCfg := testAnalysisConfig()
	parCfg.Workers = 4
	parCfg.ShardThreshold = 10

	seq, err := NewAnalyzer(seqCfg, nil).AnalyzeText(context.Background(), text, 10)
	require.NoError(t, err)
	par, err := NewAnalyzer(parCfg, nil).AnalyzeText(context.Background(), text, 10)
	require.NoError(t, err)

	assert.Equal(t, seq.Phrases, par.Phrases)
	assert.Equal(t, seq.DistinctPhrases, par.DistinctPhrases)
	assert.Equal(t, seq.Segments, par.Segments)
}

func TestAnalyzeHTML(t *testing.T) {
	a := NewAnalyzer(testAnalysisConfig(), nil)
	html := `<html><head><title>ignored title</title></head><body>
		<h1>Go concurrency</h1><p>Go concurrency patterns.</p><script>go concurrency</script></body></html>`
	report, err := a.AnalyzeHTML(context.Background(), strings.NewReader(html), 2)
	require.NoError(t, err)
	assert.Equal(t, KindHTML, report.Kind)
	assert.Equal(t, []string{"go concurrency", "concurrency"}, report.Topics())
	assert.Equal(t, uint64(2), report.Phrases[0].Frequency)
}

func TestAnalyzeURL(t *testing.T) {
	fetcher := &stubFetcher{docs: map[string]*document.Document{
		"https://example.com/html": {
			URL:         "https://example.com/html",
			ContentType: "text/html",
			Body:        []byte("<p>Search engines rank pages. Search engines crawl.</p>"),
			FetchedAt:   time.Now(),
		},
		"https://example.com/plain": {
			URL:         "https://example.com/plain",
			ContentType: "text/plain",
			Body:        []byte("<b>literal</b> markup"),
		},
	}}
	a := NewAnalyzer(testAnalysisConfig(), fetcher)

	report, err := a.AnalyzeURL(context.Background(), "https://example.com/html", 1)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/html", report.Source)
	assert.Equal(t, []string{"search engines"}, report.Topics())

	report, err = a.AnalyzeURL(context.Background(), "https://example.com/plain", 0)
	require.NoError(t, err)
	assert.Contains(t, report.Topics(), "markup")
	assert.Equal(t, KindURL, report.Kind)

	_, err = a.AnalyzeURL(context.Background(), "https://example.com/missing", 1)
	assert.ErrorIs(t, err, apperrors.ErrFetchFailed)
}

func TestAnalyzeURL_InvalidKSkipsFetch(t *testing.T) {
	fetcher := &stubFetcher{}
	a := NewAnalyzer(testAnalysisConfig(), fetcher)
	_, err := a.AnalyzeURL(context.Background(), "https://example.com", -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Zero(t, fetcher.calls)
}

func TestAnalyzeURL_NoFetcher(t *testing.T) {
	a := NewAnalyzer(testAnalysisConfig(), nil)
	_, err := a.AnalyzeURL(context.Background(), "https://example.com", 1)
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}

func spanNames(spans []*tracing.Span) []string {
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	return names
}

func TestAnalyzeURL_RecordsStageSpans(t *testing.T) {
	fetcher := &stubFetcher{docs: map[string]*document.Document{
		"https://example.com": {
			URL:         "https://example.com",
			ContentType: "text/html",
			Body:        []byte("<p>Traced page.</p>"),
		},
	}}
	a := NewAnalyzer(testAnalysisConfig(), fetcher)

	ctx, root := tracing.Start(context.Background(), "request")
	_, err := a.AnalyzeURL(ctx, "https://example.com", 3)
	require.NoError(t, err)
	root.End()

	children := root.Children()
	require.Len(t, children, 1)
	assert.Equal(t, "analyze_url", children[0].Name())
	assert.Equal(t, []string{"fetch", "extract", "segment", "index", "rank"}, spanNames(children[0].Children()))
}
