package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/document"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/worddensity/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/kafka"
)

type pageFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls int
}

func (f *pageFetcher) Fetch(_ context.Context, rawURL string) (*document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, apperrors.ErrFetchFailed
	}
	return &document.Document{URL: rawURL, ContentType: "text/html", Body: []byte(body)}, nil
}

type memoryStore struct {
	reports map[string]*density.Report
	err     error
}

func (s *memoryStore) Latest(_ context.Context, source string) (*density.Report, error) {
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.reports[source]
	if !ok {
		return nil, apperrors.New(apperrors.ErrReportNotFound, http.StatusNotFound, "no report stored for "+source)
	}
	return r, nil
}

func (s *memoryStore) List(_ context.Context, limit int) ([]*density.Report, error) {
	out := make([]*density.Report, 0, limit)
	for _, r := range s.reports {
		if len(out) == limit {
			break
		}
		out = append(out, r)
	}
	return out, s.err
}

type capturePublisher struct {
	events []kafka.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, event kafka.Event) error {
	p.events = append(p.events, event)
	return p.err
}

type fixture struct {
	server  *httptest.Server
	fetcher *pageFetcher
	jobs    *capturePublisher
	agg     *analytics.Aggregator
}

func newFixture(t *testing.T, maxBody int64) *fixture {
	t.Helper()
	cfg := config.Default().Analysis
	cfg.Stemming = false

	f := &fixture{
		fetcher: &pageFetcher{pages: map[string]string{
			"https://example.com/go": "<h1>Go channels</h1><p>Go channels move values.</p>",
		}},
		jobs: &capturePublisher{},
		agg:  analytics.NewAggregator(5),
	}
	h := New(Deps{
		Analyzer: density.NewAnalyzer(cfg, f.fetcher),
		Store: &memoryStore{reports: map[string]*density.Report{
			"https://example.com/stored": {Source: "https://example.com/stored", TopK: 1},
		}},
		Jobs:         f.jobs,
		Tracker:      f.agg,
		MaxBodyBytes: maxBody,
	})
	mux := http.NewServeMux()
	h.Register(mux)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestTopicsForURL(t *testing.T) {
	f := newFixture(t, 0)

	resp, err := http.Get(f.server.URL + "/api/v1/topics?url=https://example.com/go&k=2")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[TopicsResponse](t, resp)
	assert.Equal(t, []string{"go channels", "channels"}, body.Topics())
	assert.False(t, body.CacheHit)
	assert.Equal(t, 2, body.TopK)

	stats := f.agg.Stats()
	assert.Equal(t, int64(1), stats.TotalAnalyses)
	assert.Equal(t, []analytics.NamedCount{{Name: "https://example.com/go", Count: 1}}, stats.TopSources)
}

func TestTopicsForURL_DefaultK(t *testing.T) {
	f := newFixture(t, 0)
	resp, err := http.Get(f.server.URL + "/api/v1/topics?url=https://example.com/go")
	require.NoError(t, err)
	body := decode[TopicsResponse](t, resp)
	assert.Equal(t, 20, body.TopK)
}

func TestTopicsForURL_Errors(t *testing.T) {
	f := newFixture(t, 0)
	tests := []struct {
		name   string
		query  string
		status int
		msg    string
	}{
		{"missing url", "", http.StatusBadRequest, "no URL"},
		{"bad scheme", "?url=ftp://x", http.StatusBadRequest, ""},
		{"negative k", "?url=https://example.com/go&k=-1", http.StatusBadRequest, density.ErrInvalidTopK},
		{"non-numeric k", "?url=https://example.com/go&k=ten", http.StatusBadRequest, density.ErrInvalidTopK},
		{"fetch failure", "?url=https://example.com/missing", http.StatusBadGateway, "document fetch failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(f.server.URL + "/api/v1/topics" + tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[map[string]string](t, resp)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, body["error"])
			}
		})
	}
}

func TestTopicsForText(t *testing.T) {
	f := newFixture(t, 0)
	resp, err := http.Post(f.server.URL+"/api/v1/topics/text?k=1", "text/plain",
		strings.NewReader("The cat sat. The cat ran."))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[TopicsResponse](t, resp)
	assert.Equal(t, []string{"cat"}, body.Topics())
	assert.Equal(t, density.KindText, body.Kind)
}

func TestTopicsForHTML(t *testing.T) {
	f := newFixture(t, 0)
	resp, err := http.Post(f.server.URL+"/api/v1/topics/html?k=1", "text/html",
		strings.NewReader("<p>Deep learning</p><script>x</script><p>deep learning</p>"))
	require.NoError(t, err)
	body := decode[TopicsResponse](t, resp)
	assert.Equal(t, []string{"deep learning"}, body.Topics())
}

func TestBodyTooLarge(t *testing.T) {
	f := newFixture(t, 16)
	resp, err := http.Post(f.server.URL+"/api/v1/topics/text", "text/plain",
		strings.NewReader(strings.Repeat("word ", 100)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestSubmitJob(t *testing.T) {
	f := newFixture(t, 0)
	resp, err := http.Post(f.server.URL+"/api/v1/jobs", "application/json",
		strings.NewReader(`{"url":"https://example.com/go","k":3}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	ack := decode[JobResponse](t, resp)
	assert.Equal(t, "queued", ack.Status)
	assert.Len(t, ack.JobID, 36)

	require.Len(t, f.jobs.events, 1)
	msg := f.jobs.events[0].Value.(density.AnalyzeRequest)
	assert.Equal(t, ack.JobID, msg.JobID)
	assert.Equal(t, 3, msg.TopK)
	assert.Equal(t, "https://example.com/go", f.jobs.events[0].Key)
}

func TestSubmitJob_Rejections(t *testing.T) {
	f := newFixture(t, 0)
	for _, body := range []string{`not json`, `{"url":"nope"}`, `{"url":"https://x.org","k":-2}`} {
		resp, err := http.Post(f.server.URL+"/api/v1/jobs", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
	assert.Empty(t, f.jobs.events)

	f.jobs.err = errors.New("broker down")
	resp, err := http.Post(f.server.URL+"/api/v1/jobs", "application/json", strings.NewReader(`{"url":"https://x.org"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestReports(t *testing.T) {
	f := newFixture(t, 0)

	resp, err := http.Get(f.server.URL + "/api/v1/reports?url=https://example.com/stored")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[density.Report](t, resp)
	assert.Equal(t, "https://example.com/stored", report.Source)

	resp, err = http.Get(f.server.URL + "/api/v1/reports?url=https://example.com/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(f.server.URL + "/api/v1/reports?limit=5")
	require.NoError(t, err)
	list := decode[map[string]any](t, resp)
	assert.Equal(t, float64(1), list["count"])
}

func TestDisabledBackends(t *testing.T) {
	cfg := config.Default().Analysis
	h := New(Deps{Analyzer: density.NewAnalyzer(cfg, nil)})
	mux := http.NewServeMux()
	h.Register(mux)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/jobs"},
		{http.MethodGet, "/api/v1/reports?url=https://x.org"},
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"hits":0,"misses":0,"hit_rate":0,"enabled":false}`, rec.Body.String())

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.New(1, time.Hour)
	defer limiter.Stop()
	h := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req.RemoteAddr = "10.0.0.1:6666"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
