package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/retrieval-engine/internal/corpus"
)

type loadConfig struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Model       string
	K           int
	Queries     []string
}

type stats struct {
	total   atomic.Int64
	success atomic.Int64
	errors  atomic.Int64

	mu          sync.Mutex
	latencies   []time.Duration
	statusCodes map[int]int64
	outcomes    map[string]int64
}

func newStats() *stats {
	return &stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
		outcomes:    make(map[string]int64),
	}
}

func (s *stats) record(d time.Duration, status int, outcome string, err error) {
	s.total.Add(1)
	if err != nil {
		s.errors.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		s.success.Add(1)
	} else {
		s.errors.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
	if outcome != "" {
		s.outcomes[outcome]++
	}
	s.mu.Unlock()
}

var defaultQueries = []string{
	"inverted index",
	"bm25 ranking",
	"query cache invalidation",
	"document frequency",
	"tokenizer stemming",
	"snapshot persistence",
	"vocabulary merge",
	"top k results",
}

func main() {
	var cfg loadConfig
	var queriesPath string
	pflag.StringVar(&cfg.BaseURL, "url", "http://localhost:8080", "base URL of the search service")
	pflag.IntVarP(&cfg.Concurrency, "concurrency", "n", 10, "number of concurrent workers")
	pflag.DurationVarP(&cfg.Duration, "duration", "d", 30*time.Second, "test duration")
	pflag.StringVarP(&cfg.Model, "model", "m", "", "ranking model sent with every query")
	pflag.IntVarP(&cfg.K, "k", "k", 10, "results per query")
	pflag.StringVarP(&queriesPath, "queries", "q", "", "queries JSONL file (default: a built-in list)")
	pflag.Parse()

	cfg.Queries = defaultQueries
	if queriesPath != "" {
		queries, err := loadQueries(queriesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading queries: %v\n", err)
			os.Exit(1)
		}
		cfg.Queries = queries
	}

	fmt.Println("=== Retrieval Engine Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	s := run(cfg)
	if !report(s, cfg.Duration) {
		os.Exit(1)
	}
}

func loadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := corpus.ReadQueries(f)
	if len(records) == 0 {
		if err == nil {
			err = fmt.Errorf("%s holds no queries", path)
		}
		return nil, err
	}
	out := make([]string, len(records))
	for i, q := range records {
		out[i] = q.Text
	}
	return out, nil
}

func run(cfg loadConfig) *stats {
	s := newStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Go(func() {
			for i := w; ctx.Err() == nil; i++ {
				params := url.Values{"q": {cfg.Queries[i%len(cfg.Queries)]}, "k": {strconv.Itoa(cfg.K)}}
				if cfg.Model != "" {
					params.Set("model", cfg.Model)
				}
				start := time.Now()
				status, outcome, err := search(ctx, client, cfg.BaseURL+"/api/v1/search?"+params.Encode())
				if ctx.Err() != nil {
					return
				}
				s.record(time.Since(start), status, outcome, err)
			}
		})
	}
	wg.Wait()
	return s
}

// search issues one query and returns the status code and the cache
// outcome the service reported.
func search(ctx context.Context, client *http.Client, rawURL string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	var body struct {
		Cache string `json:"cache"`
	}
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return resp.StatusCode, "", err
		}
	}
	return resp.StatusCode, body.Cache, nil
}

// report prints the summary and reports whether any request completed.
func report(s *stats, duration time.Duration) bool {
	total := s.total.Load()
	errs := s.errors.Load()
	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", s.success.Load())
	fmt.Printf("Errors:          %d\n", errs)
	if total > 0 {
		fmt.Printf("Error Rate:      %.2f%%\n", float64(errs)/float64(total)*100)
		fmt.Printf("Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	latencies := slices.Clone(s.latencies)
	slices.Sort(latencies)
	if len(latencies) > 0 {
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sq float64
		for _, l := range latencies {
			diff := float64(l - avg)
			sq += diff * diff
		}
		fmt.Println()
		fmt.Println("=== Latency ===")
		fmt.Printf("Min:    %s\n", latencies[0])
		fmt.Printf("Avg:    %s\n", avg)
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Printf("P%-3.0f   %s\n", p, percentile(latencies, p))
		}
		fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
		fmt.Printf("StdDev: %s\n", time.Duration(math.Sqrt(sq/float64(len(latencies)))))
	}

	fmt.Println()
	fmt.Println("=== Cache Outcomes ===")
	outcomes := make([]string, 0, len(s.outcomes))
	for o := range s.outcomes {
		outcomes = append(outcomes, o)
	}
	slices.Sort(outcomes)
	for _, o := range outcomes {
		fmt.Printf("  %-10s %d\n", o, s.outcomes[o])
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	codes := make([]int, 0, len(s.statusCodes))
	for code := range s.statusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, s.statusCodes[code])
	}

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		return false
	}
	return true
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
