package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"time"
)

// stats accumulates request outcomes from all load workers.
type stats struct {
	mu           sync.Mutex
	total        int64
	transportErr int64
	cacheHits    int64
	latencies    []time.Duration
	statusCodes  map[int]int64
}

func newStats() *stats {
	return &stats{
		latencies:   make([]time.Duration, 0, 1<<16),
		statusCodes: make(map[int]int64),
	}
}

// record adds one request. status 0 means the request never got a response.
func (s *stats) record(latency time.Duration, status int, cacheHit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if status == 0 {
		s.transportErr++
		return
	}
	s.statusCodes[status]++
	s.latencies = append(s.latencies, latency)
	if cacheHit {
		s.cacheHits++
	}
}

type summary struct {
	Total       int64
	Succeeded   int64
	Failed      int64
	CacheHits   int64
	RPS         float64
	Min, Avg    time.Duration
	P50, P90    time.Duration
	P95, P99    time.Duration
	Max, StdDev time.Duration
	StatusCodes map[int]int64
}

func (s *stats) summarize(elapsed time.Duration) summary {
	s.mu.Lock()
	sum := summary{
		Total:       s.total,
		Failed:      s.transportErr,
		CacheHits:   s.cacheHits,
		StatusCodes: make(map[int]int64, len(s.statusCodes)),
	}
	for code, n := range s.statusCodes {
		sum.StatusCodes[code] = n
		if code >= 200 && code < 300 {
			sum.Succeeded += n
		} else {
			sum.Failed += n
		}
	}
	latencies := slices.Clone(s.latencies)
	s.mu.Unlock()

	if elapsed > 0 {
		sum.RPS = float64(sum.Total) / elapsed.Seconds()
	}
	if len(latencies) == 0 {
		return sum
	}
	slices.Sort(latencies)

	var total time.Duration
	for _, l := range latencies {
		total += l
	}
	sum.Avg = total / time.Duration(len(latencies))
	var squares float64
	for _, l := range latencies {
		d := float64(l - sum.Avg)
		squares += d * d
	}
	sum.StdDev = time.Duration(math.Sqrt(squares / float64(len(latencies))))
	sum.Min = latencies[0]
	sum.Max = latencies[len(latencies)-1]
	sum.P50 = percentile(latencies, 50)
	sum.P90 = percentile(latencies, 90)
	sum.P95 = percentile(latencies, 95)
	sum.P99 = percentile(latencies, 99)
	return sum
}

// percentile uses the nearest-rank method on sorted.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func (s summary) print(w io.Writer) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Requests:      %d\n", s.Total)
	fmt.Fprintf(w, "Succeeded:     %d\n", s.Succeeded)
	fmt.Fprintf(w, "Failed:        %d\n", s.Failed)
	if s.Total > 0 {
		fmt.Fprintf(w, "Error rate:    %.2f%%\n", float64(s.Failed)/float64(s.Total)*100)
		fmt.Fprintf(w, "Requests/sec:  %.2f\n", s.RPS)
	}
	if s.Succeeded > 0 {
		fmt.Fprintf(w, "Cache hits:    %d (%.1f%%)\n", s.CacheHits, float64(s.CacheHits)/float64(s.Succeeded)*100)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Latency ===")
	fmt.Fprintf(w, "Min:    %s\n", s.Min)
	fmt.Fprintf(w, "Avg:    %s\n", s.Avg)
	fmt.Fprintf(w, "P50:    %s\n", s.P50)
	fmt.Fprintf(w, "P90:    %s\n", s.P90)
	fmt.Fprintf(w, "P95:    %s\n", s.P95)
	fmt.Fprintf(w, "P99:    %s\n", s.P99)
	fmt.Fprintf(w, "Max:    %s\n", s.Max)
	fmt.Fprintf(w, "StdDev: %s\n", s.StdDev)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	codes := make([]int, 0, len(s.StatusCodes))
	for code := range s.StatusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, s.StatusCodes[code])
	}
}
