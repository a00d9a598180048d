package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	sorted := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(5), percentile(sorted, 50))
	assert.Equal(t, time.Duration(10), percentile(sorted, 99))
	assert.Equal(t, time.Duration(1), percentile(sorted, 0))
	assert.Equal(t, time.Duration(0), percentile(nil, 50))
}

func TestStatsSummarize(t *testing.T) {
	st := newStats()
	st.record(10*time.Millisecond, http.StatusOK, true)
	st.record(30*time.Millisecond, http.StatusOK, false)
	st.record(20*time.Millisecond, http.StatusTooManyRequests, false)
	st.record(0, 0, false)

	sum := st.summarize(2 * time.Second)
	assert.Equal(t, int64(4), sum.Total)
	assert.Equal(t, int64(2), sum.Succeeded)
	assert.Equal(t, int64(2), sum.Failed)
	assert.Equal(t, int64(1), sum.CacheHits)
	assert.Equal(t, 2.0, sum.RPS)
	assert.Equal(t, 10*time.Millisecond, sum.Min)
	assert.Equal(t, 20*time.Millisecond, sum.Avg)
	assert.Equal(t, 30*time.Millisecond, sum.Max)
	assert.Equal(t, map[int]int64{200: 2, 429: 1}, sum.StatusCodes)

	var buf bytes.Buffer
	sum.print(&buf)
	assert.Contains(t, buf.String(), "  429: 1")
	assert.Contains(t, buf.String(), "Cache hits:    1 (50.0%)")
}

func TestBuildRequest(t *testing.T) {
	opts := options{baseURL: "http://svc", mode: "mixed", pages: []string{"https://a.dev/x"}, topK: 5}

	req, err := buildRequest(context.Background(), opts, 0)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v1/topics/text", req.URL.Path)
	assert.Equal(t, "5", req.URL.Query().Get("k"))

	req, err = buildRequest(context.Background(), opts, 1)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "https://a.dev/x", req.URL.Query().Get("url"))
}

func TestRun_AgainstServer(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NotEmpty(t, strings.TrimSpace(string(body)))
		hit := calls.Add(1)%2 == 0
		w.Header().Set("Content-Type", "application/json")
		if hit {
			_, _ = w.Write([]byte(`{"phrases":[],"cache_hit":true}`))
		} else {
			_, _ = w.Write([]byte(`{"phrases":[],"cache_hit":false}`))
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	opts := options{baseURL: srv.URL, mode: "text", concurrency: 2, topK: 3}
	sum := run(ctx, newClient(2), opts).summarize(100 * time.Millisecond)

	assert.Positive(t, sum.Total)
	assert.Equal(t, sum.Total, sum.Succeeded)
	assert.Positive(t, sum.CacheHits)
}
