package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density"
	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/phrase"
	apperrors "github.com/Adithya-Monish-Kumar-K/worddensity/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/metrics"
)

type fakeAnalyzer struct {
	err   error
	delay time.Duration
}

func (f fakeAnalyzer) AnalyzeURL(ctx context.Context, rawURL string, k int) (*density.Report, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &density.Report{
		Source:   rawURL,
		Kind:     density.KindURL,
		TopK:     k,
		Segments: 2,
		Phrases:  []phrase.RankedPhrase{{Phrase: "kafka", Frequency: 3, Tokens: 1}},
	}, nil
}

type savingStore struct {
	saved []*density.Report
	err   error
}

func (s *savingStore) Save(_ context.Context, r *density.Report) error {
	if s.err != nil {
		return s.err
	}
	r.ID = fmt.Sprintf("id-%d", len(s.saved)+1)
	s.saved = append(s.saved, r)
	return nil
}

type capturePublisher struct{ events []kafka.Event }

func (p *capturePublisher) Publish(_ context.Context, e kafka.Event) error {
	p.events = append(p.events, e)
	return nil
}

func request(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(density.AnalyzeRequest{JobID: "job-1", URL: "https://example.com", TopK: 5, RequestID: "req-9"})
	require.NoError(t, err)
	return raw
}

func TestHandle_Success(t *testing.T) {
	store := &savingStore{}
	reports := &capturePublisher{}
	agg := analytics.NewAggregator(3)
	m := metrics.NewUnregistered()
	w := New(fakeAnalyzer{}, Options{Store: store, Reports: reports, Tracker: agg, Metrics: m})

	require.NoError(t, w.Handle()(context.Background(), []byte("k"), request(t)))

	require.Len(t, store.saved, 1)
	require.Len(t, reports.events, 1)
	event := reports.events[0].Value.(density.ReportEvent)
	assert.Equal(t, "job-1", event.JobID)
	assert.Equal(t, "id-1", event.Report.ID)
	assert.Empty(t, event.Error)
	assert.Equal(t, "https://example.com", reports.events[0].Key)

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.TotalAnalyses)
	assert.Equal(t, []analytics.NamedCount{{Name: "kafka", Count: 1}}, stats.TopPhrases)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.JobsTotal.WithLabelValues("completed")))
}

func TestHandle_UndecodableIsSkipped(t *testing.T) {
	reports := &capturePublisher{}
	w := New(fakeAnalyzer{}, Options{Reports: reports})
	assert.NoError(t, w.Handle()(context.Background(), nil, []byte("{{{")))
	assert.Empty(t, reports.events)
}

func TestProcess_PermanentFailureIsPublished(t *testing.T) {
	reports := &capturePublisher{}
	badURL := apperrors.New(apperrors.ErrInvalidURL, http.StatusBadRequest, "no URL")
	w := New(fakeAnalyzer{err: badURL}, Options{Reports: reports})

	err := w.Process(context.Background(), density.AnalyzeRequest{JobID: "j", URL: ""})
	require.NoError(t, err)
	require.Len(t, reports.events, 1)
	event := reports.events[0].Value.(density.ReportEvent)
	assert.Equal(t, "no URL", event.Error)
	assert.Nil(t, event.Report)
}

func TestProcess_TransientFailureIsReturned(t *testing.T) {
	reports := &capturePublisher{}
	w := New(fakeAnalyzer{err: fmt.Errorf("fetch: %w", apperrors.ErrUpstreamUnavailable)}, Options{Reports: reports})

	err := w.Process(context.Background(), density.AnalyzeRequest{JobID: "j", URL: "https://x.org"})
	assert.ErrorIs(t, err, apperrors.ErrUpstreamUnavailable)
	assert.Empty(t, reports.events)
}

func TestProcess_StoreFailureIsReturned(t *testing.T) {
	reports := &capturePublisher{}
	w := New(fakeAnalyzer{}, Options{Store: &savingStore{err: errors.New("db down")}, Reports: reports})
	err := w.Process(context.Background(), density.AnalyzeRequest{JobID: "j", URL: "https://x.org"})
	assert.Error(t, err)
	assert.Empty(t, reports.events)
}

func TestProcess_JobTimeout(t *testing.T) {
	w := New(fakeAnalyzer{delay: time.Second}, Options{JobTimeout: 10 * time.Millisecond})
	err := w.Process(context.Background(), density.AnalyzeRequest{JobID: "slow", URL: "https://x.org"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, isPermanent(apperrors.ErrInvalidInput))
	assert.True(t, isPermanent(apperrors.ErrUnsupportedContent))
	assert.False(t, isPermanent(apperrors.ErrRateLimited))
	assert.False(t, isPermanent(apperrors.ErrFetchFailed))
	assert.False(t, isPermanent(errors.New("unknown")))
}
