package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.AnalysesTotal.WithLabelValues("text", "ok").Inc()
	m.CacheHitsTotal.Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("text", "ok")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheHitsTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewUnregistered_Twice(t *testing.T) {
	assert.NotPanics(t, func() {
		NewUnregistered()
		NewUnregistered()
	})
}
