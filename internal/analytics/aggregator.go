// Package analytics collects analysis events and aggregates them into usage
// statistics: volumes, latencies, cache effectiveness, and the most analyzed
// sources and most common top phrases.
package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/worddensity/pkg/topk"
)

const (
	maxLatencySamples = 10000
	defaultTopN       = 10
)

type AggregatedStats struct {
	TotalAnalyses     int64            `json:"total_analyses"`
	FailedAnalyses    int64            `json:"failed_analyses"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	SegmentsIndexed   int64            `json:"segments_indexed"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopSources        []NamedCount     `json:"top_sources"`
	TopPhrases        []NamedCount     `json:"top_phrases"`
	AnalysesByKind    map[string]int64 `json:"analyses_by_kind"`
	AnalysesPerMinute float64          `json:"analyses_per_minute"`
}

// NamedCount is a ranked entry in the aggregated stats.
type NamedCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Aggregator accumulates AnalysisEvents in memory.
type Aggregator struct {
	mu           sync.RWMutex
	total        int64
	failed       int64
	cacheHits    int64
	cacheMisses  int64
	segments     int64
	latencies    []int64
	nextLatency  int
	latencySum   int64
	sourceCounts map[string]int64
	phraseCounts map[string]int64
	kindCounts   map[string]int64
	topN         int
	startTime    time.Time
	logger       *slog.Logger
}

func NewAggregator(topN int) *Aggregator {
	if topN <= 0 {
		topN = defaultTopN
	}
	return &Aggregator{
		latencies:    make([]int64, 0, 1024),
		sourceCounts: make(map[string]int64),
		phraseCounts: make(map[string]int64),
		kindCounts:   make(map[string]int64),
		topN:         topN,
		startTime:    time.Now(),
		logger:       slog.Default().With("component", "analytics-aggregator"),
	}
}

// Track records event. It satisfies Tracker so the service can aggregate
// in process when Kafka is disabled.
func (a *Aggregator) Track(event AnalysisEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	a.kindCounts[event.Kind]++
	if event.Failed() {
		a.failed++
		return
	}
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	a.segments += int64(event.Segments)
	if event.Source != "" {
		a.sourceCounts[event.Source]++
	}
	for _, p := range event.TopPhrases {
		a.phraseCounts[p]++
	}

	// Keep a bounded ring of recent latencies for percentiles; the average
	// covers every event.
	a.latencySum += event.LatencyMs
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.nextLatency] = event.LatencyMs
		a.nextLatency = (a.nextLatency + 1) % maxLatencySamples
	}
}

// Handle returns a Kafka handler that decodes and records AnalysisEvents.
// Undecodable messages are logged and skipped.
func (a *Aggregator) Handle() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[AnalysisEvent](value)
		if err != nil {
			a.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		a.Track(event)
		return nil
	}
}

// Stats returns a consistent snapshot of the aggregate.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalAnalyses:   a.total,
		FailedAnalyses:  a.failed,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		SegmentsIndexed: a.segments,
		TopSources:      topNamed(a.sourceCounts, a.topN),
		TopPhrases:      topNamed(a.phraseCounts, a.topN),
		AnalysesByKind:  make(map[string]int64, len(a.kindCounts)),
	}
	for kind, n := range a.kindCounts {
		stats.AnalysesByKind[kind] = n
	}

	if succeeded := a.total - a.failed; succeeded > 0 {
		stats.AvgLatencyMs = float64(a.latencySum) / float64(succeeded)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := time.Since(a.startTime).Minutes(); elapsed > 0 {
		stats.AnalysesPerMinute = float64(stats.TotalAnalyses) / elapsed
	}
	return stats
}

// Restore seeds the counters from a persisted snapshot. Latency samples are
// not part of a snapshot, so percentiles restart empty.
func (a *Aggregator) Restore(stats AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total = stats.TotalAnalyses
	a.failed = stats.FailedAnalyses
	a.cacheHits = stats.CacheHits
	a.cacheMisses = stats.CacheMisses
	a.segments = stats.SegmentsIndexed
	a.latencySum = int64(stats.AvgLatencyMs * float64(stats.TotalAnalyses-stats.FailedAnalyses))
	for _, nc := range stats.TopSources {
		a.sourceCounts[nc.Name] = nc.Count
	}
	for _, nc := range stats.TopPhrases {
		a.phraseCounts[nc.Name] = nc.Count
	}
	for kind, n := range stats.AnalysesByKind {
		a.kindCounts[kind] = n
	}
	a.logger.Info("aggregator restored from snapshot", "total_analyses", stats.TotalAnalyses)
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// lessNamed ranks by count descending, then name ascending.
func lessNamed(a, b NamedCount) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.Name < b.Name
}

func topNamed(counts map[string]int64, n int) []NamedCount {
	sel := topk.New(n, lessNamed)
	for name, count := range counts {
		sel.Offer(NamedCount{Name: name, Count: count})
	}
	return sel.Drain()
}
