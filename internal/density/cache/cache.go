// Package cache keeps finished reports in Redis so repeated requests for the
// same URL and topic count skip fetching and indexing.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/worddensity/internal/density"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/metrics"
)

const keyPrefix = "topics:"

// Backend is the subset of pkg/redis.Client the cache needs.
type Backend interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats is a snapshot of cache effectiveness.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Enabled bool    `json:"enabled"`
}

// ReportCache is a read-through report cache. A nil backend disables
// storage but concurrent identical requests are still coalesced.
type ReportCache struct {
	backend Backend
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a ReportCache. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *ReportCache {
	return &ReportCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "report-cache"),
	}
}

// Get returns the cached report for source and k.
func (c *ReportCache) Get(ctx context.Context, source string, k int) (*density.Report, bool) {
	if c.backend == nil {
		return nil, false
	}
	key := BuildKey(source, k)
	var report density.Report
	found, err := c.backend.GetJSON(ctx, key, &report)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &report, true
}

// Set stores report under source and k. Failures are logged only.
func (c *ReportCache) Set(ctx context.Context, source string, k int, report *density.Report) {
	if c.backend == nil {
		return
	}
	key := BuildKey(source, k)
	if err := c.backend.SetJSON(ctx, key, report, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached report or runs compute once for all
// concurrent callers asking for the same key. hit reports whether the value
// came from the cache.
func (c *ReportCache) GetOrCompute(
	ctx context.Context,
	source string,
	k int,
	compute func(ctx context.Context) (*density.Report, error),
) (report *density.Report, hit bool, err error) {
	if report, ok := c.Get(ctx, source, k); ok {
		c.recordHit()
		return report, true, nil
	}
	c.recordMiss()

	key := BuildKey(source, k)
	val, err, _ := c.group.Do(key, func() (any, error) {
		if report, ok := c.Get(ctx, source, k); ok {
			return report, nil
		}
		report, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.Set(ctx, source, k, report)
		return report, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*density.Report), false, nil
}

// Invalidate removes every cached report and returns how many were removed.
func (c *ReportCache) Invalidate(ctx context.Context) (int64, error) {
	if c.backend == nil {
		return 0, nil
	}
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating report cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns hit and miss counters.
func (c *ReportCache) Stats() Stats {
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Enabled: c.backend != nil,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

func (c *ReportCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *ReportCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey hashes the trimmed source and k into a fixed-length key.
func BuildKey(source string, k int) string {
	raw := fmt.Sprintf("%s|k=%d", strings.TrimSpace(source), k)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}
