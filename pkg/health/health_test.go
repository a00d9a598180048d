package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/resilience"
)

func TestRun_AggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("a", func(context.Context) ComponentHealth { return ComponentHealth{Status: StatusUp} })
	assert.Equal(t, StatusUp, c.Run(context.Background()).Status)

	c.Register("b", func(context.Context) ComponentHealth { return ComponentHealth{Status: StatusDegraded} })
	assert.Equal(t, StatusDegraded, c.Run(context.Background()).Status)

	c.Register("c", func(context.Context) ComponentHealth { return ComponentHealth{Status: StatusDown} })
	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Len(t, report.Components, 3)
}

func TestPingCheck(t *testing.T) {
	up := PingCheck(func(context.Context) error { return nil }, StatusDown)
	assert.Equal(t, StatusUp, up(context.Background()).Status)

	down := PingCheck(func(context.Context) error { return errors.New("refused") }, StatusDegraded)
	got := down(context.Background())
	assert.Equal(t, StatusDegraded, got.Status)
	assert.Equal(t, "refused", got.Message)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.Register("redis", PingCheck(func(context.Context) error { return errors.New("x") }, StatusDown))

	rec := httptest.NewRecorder()
	c.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDown, report.Components["redis"].Status)
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alive", body["status"])
	assert.NotEmpty(t, body["uptime"])
}

func TestRun_NoChecksIsUp(t *testing.T) {
	report := NewChecker().Run(context.Background())
	assert.Equal(t, StatusUp, report.Status)
	assert.Empty(t, report.Components)
}

func TestRun_ProbeTimeout(t *testing.T) {
	c := NewChecker()
	c.SetProbeTimeout(20 * time.Millisecond)
	c.Register("slow", PingCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, StatusDegraded))

	start := time.Now()
	report := c.Run(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Components["slow"].Message)
}

func TestReadyHandler_DegradedIsReady(t *testing.T) {
	c := NewChecker()
	c.Register("redis", PingCheck(func(context.Context) error { return errors.New("x") }, StatusDegraded))

	rec := httptest.NewRecorder()
	c.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBreakerCheck(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test", resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
	})
	check := BreakerCheck(cb)
	assert.Equal(t, StatusUp, check(context.Background()).Status)

	_ = cb.Execute(func() error { return errors.New("boom") })
	got := check(context.Background())
	assert.Equal(t, StatusDegraded, got.Status)
	assert.Equal(t, "circuit open", got.Message)
}
