// Command loadtest drives a running densityd with concurrent topic requests
// and prints throughput, latency percentiles, status codes and cache hit
// rate.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -mode text -concurrency 20
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

type options struct {
	baseURL     string
	mode        string
	pages       []string
	concurrency int
	duration    time.Duration
	topK        int
}

var sampleTexts = []string{
	"Distributed systems trade consistency for availability. Distributed systems need careful failure handling.",
	"Search engines rank pages by relevance. Search engines crawl the web continuously.",
	"Circuit breakers stop cascading failures. Retries with backoff smooth transient failures.",
	"Word density analysis finds the most frequent phrases. Longer phrases win ties in word density analysis.",
	"Kafka topics carry events between services. Consumers commit offsets after processing events.",
}

func main() {
	opts := options{}
	var pages string
	flag.StringVar(&opts.baseURL, "url", "http://localhost:8080", "base URL of the density service")
	flag.StringVar(&opts.mode, "mode", "text", "request mix: text, url or mixed")
	flag.StringVar(&pages, "pages", "", "comma-separated page URLs analyzed in url and mixed modes")
	flag.IntVar(&opts.concurrency, "concurrency", 10, "number of concurrent workers")
	flag.DurationVar(&opts.duration, "duration", 30*time.Second, "test duration")
	flag.IntVar(&opts.topK, "k", 10, "number of topics requested")
	flag.Parse()

	for _, p := range strings.Split(pages, ",") {
		if p = strings.TrimSpace(p); p != "" {
			opts.pages = append(opts.pages, p)
		}
	}
	if opts.mode != "text" && len(opts.pages) == 0 {
		fmt.Fprintln(os.Stderr, "-pages is required in url and mixed modes")
		os.Exit(2)
	}

	fmt.Println("=== Word Density Load Test ===")
	fmt.Printf("Target:      %s\n", opts.baseURL)
	fmt.Printf("Mode:        %s\n", opts.mode)
	fmt.Printf("Concurrency: %d\n", opts.concurrency)
	fmt.Printf("Duration:    %s\n", opts.duration)
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	start := time.Now()
	st := run(ctx, newClient(opts.concurrency), opts)
	sum := st.summarize(time.Since(start))
	sum.print(os.Stdout)

	if sum.Total == 0 {
		fmt.Println()
		fmt.Println("WARNING: no requests completed. Is the service running?")
		os.Exit(1)
	}
}

func newClient(concurrency int) *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        concurrency * 2,
			MaxIdleConnsPerHost: concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// run starts opts.concurrency workers that issue requests until ctx ends.
func run(ctx context.Context, client *http.Client, opts options) *stats {
	st := newStats()
	g, ctx := errgroup.WithContext(ctx)
	for w := range opts.concurrency {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				req, err := buildRequest(ctx, opts, i)
				if err != nil {
					return err
				}
				start := time.Now()
				status, hit := do(client, req)
				if ctx.Err() != nil && status == 0 {
					return nil
				}
				st.record(time.Since(start), status, hit)
			}
			return nil
		})
	}
	_ = g.Wait()
	return st
}

// buildRequest picks the i-th request of the configured mix.
func buildRequest(ctx context.Context, opts options, i int) (*http.Request, error) {
	k := strconv.Itoa(opts.topK)
	useURL := opts.mode == "url" || (opts.mode == "mixed" && i%2 == 1)
	if useURL {
		page := opts.pages[i%len(opts.pages)]
		target := fmt.Sprintf("%s/api/v1/topics?url=%s&k=%s", opts.baseURL, url.QueryEscape(page), k)
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	}
	body := strings.NewReader(sampleTexts[i%len(sampleTexts)])
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.baseURL+"/api/v1/topics/text?k="+k, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return req, nil
}

// do sends req and reports the status code (0 on transport failure) and
// whether the service answered from its cache.
func do(client *http.Client, req *http.Request) (int, bool) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()

	var body struct {
		CacheHit bool `json:"cache_hit"`
	}
	if resp.StatusCode == http.StatusOK {
		_ = json.NewDecoder(resp.Body).Decode(&body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, body.CacheHit
}
