// Command loadtest drives a mixed read workload against the search service:
// exact search, fuzzy search over misspellings, suggestions and
// autocomplete. It reports per-endpoint latency percentiles, status codes
// and the query cache hit rate.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -concurrency 20 -duration 1m
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Request kinds, in the order they are weighted by -mix.
const (
	kindSearch = iota
	kindFuzzy
	kindSuggest
	kindAutocomplete
	numKinds
)

var kindNames = [numKinds]string{"search", "fuzzy", "suggest", "autocomplete"}

var (
	queries = []string{
		"blue shirt", "black skirt", "running shoes", "cotton dress",
		"denim jacket", "leather bag", "summer sandals", "white sneakers",
		"floral top", "slim jeans",
	}
	misspellings = []string{
		"shrit", "skrit", "runing shoes", "coton", "dnim", "lether",
		"sandels", "sneekers", "florel", "jeens",
	}
	prefixes = []string{"bl", "sh", "sk", "run", "cot", "den", "lea", "sum", "whi", "sli"}
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Mix         [numKinds]int
}

type endpointStats struct {
	requests  atomic.Int64
	errors    atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
}

type Stats struct {
	endpoints   [numKinds]endpointStats
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	codesMu     sync.Mutex
	statusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{statusCodes: make(map[int]int64)}
}

func (s *Stats) Record(kind int, d time.Duration, status int, cache string, err error) {
	e := &s.endpoints[kind]
	e.requests.Add(1)
	if err != nil || status < 200 || status >= 300 {
		e.errors.Add(1)
	}
	if err != nil {
		return
	}
	e.mu.Lock()
	e.latencies = append(e.latencies, d)
	e.mu.Unlock()

	switch cache {
	case "HIT":
		s.cacheHits.Add(1)
	case "MISS":
		s.cacheMisses.Add(1)
	}
	s.codesMu.Lock()
	s.statusCodes[status]++
	s.codesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	mix := flag.String("mix", "6,2,1,1", "relative weights for search,fuzzy,suggest,autocomplete")
	flag.Parse()

	weights, err := parseMix(*mix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -mix: %v\n", err)
		os.Exit(2)
	}
	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Mix:         weights,
	}

	fmt.Println("=== Catalog Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Mix:         %v\n", cfg.Mix)
	fmt.Println()

	stats := runLoadTest(cfg)
	if !printReport(os.Stdout, stats, cfg.Duration) {
		os.Exit(1)
	}
}

func parseMix(s string) ([numKinds]int, error) {
	var w [numKinds]int
	parts := strings.Split(s, ",")
	if len(parts) != numKinds {
		return w, fmt.Errorf("want %d comma-separated weights, got %d", numKinds, len(parts))
	}
	total := 0
	for i, p := range parts {
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%d", &n); err != nil || n < 0 {
			return w, fmt.Errorf("weight %q is not a non-negative integer", p)
		}
		w[i] = n
		total += n
	}
	if total == 0 {
		return w, fmt.Errorf("at least one weight must be positive")
	}
	return w, nil
}

// pickKind maps the n-th request of a worker onto the weighted mix.
func pickKind(n int, mix [numKinds]int) int {
	total := 0
	for _, w := range mix {
		total += w
	}
	slot := n % total
	for kind, w := range mix {
		if slot < w {
			return kind
		}
		slot -= w
	}
	return kindSearch
}

func requestURL(base string, kind, n int) string {
	switch kind {
	case kindFuzzy:
		q := misspellings[n%len(misspellings)]
		return fmt.Sprintf("%s/api/v1/search/fuzzy?q=%s&distance=2&limit=10", base, url.QueryEscape(q))
	case kindSuggest:
		p := prefixes[n%len(prefixes)]
		return fmt.Sprintf("%s/api/v1/suggest?prefix=%s&limit=10&with_scores=true", base, url.QueryEscape(p))
	case kindAutocomplete:
		p := prefixes[n%len(prefixes)]
		return fmt.Sprintf("%s/api/v1/autocomplete?prefix=%s&limit=5", base, url.QueryEscape(p))
	default:
		q := queries[n%len(queries)]
		return fmt.Sprintf("%s/api/v1/search?q=%s&limit=10", base, url.QueryEscape(q))
	}
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Go(func() {
			for n := w; ctx.Err() == nil; n++ {
				kind := pickKind(n, cfg.Mix)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL(cfg.BaseURL, kind, n), nil)
				if err != nil {
					stats.Record(kind, 0, 0, "", err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.Record(kind, elapsed, 0, "", err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.Record(kind, elapsed, resp.StatusCode, resp.Header.Get("X-Cache"), nil)
			}
		})
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

// printReport writes the summary and reports whether any request completed.
func printReport(w io.Writer, stats *Stats, duration time.Duration) bool {
	var total, errs int64
	fmt.Fprintln(w, "=== Endpoints ===")
	fmt.Fprintf(w, "%-13s %8s %7s %9s %9s %9s %9s\n", "endpoint", "requests", "errors", "p50", "p95", "p99", "max")
	for kind := range numKinds {
		e := &stats.endpoints[kind]
		n, fails := e.requests.Load(), e.errors.Load()
		total += n
		errs += fails
		if n == 0 {
			continue
		}
		e.mu.Lock()
		lat := append([]time.Duration(nil), e.latencies...)
		e.mu.Unlock()
		sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
		var maxLat time.Duration
		if len(lat) > 0 {
			maxLat = lat[len(lat)-1]
		}
		fmt.Fprintf(w, "%-13s %8d %7d %9s %9s %9s %9s\n", kindNames[kind], n, fails,
			percentile(lat, 50), percentile(lat, 95), percentile(lat, 99), maxLat)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Totals ===")
	fmt.Fprintf(w, "Requests:     %d\n", total)
	fmt.Fprintf(w, "Errors:       %d\n", errs)
	if total > 0 {
		fmt.Fprintf(w, "Error rate:   %.2f%%\n", float64(errs)/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec: %.2f\n", float64(total)/duration.Seconds())
	}
	hits, misses := stats.cacheHits.Load(), stats.cacheMisses.Load()
	if hits+misses > 0 {
		fmt.Fprintf(w, "Cache hits:   %.1f%% (%d/%d)\n", float64(hits)/float64(hits+misses)*100, hits, hits+misses)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	stats.codesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.statusCodes[code])
	}
	stats.codesMu.Unlock()

	if total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
