package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type sample struct {
	endpoint string
	duration time.Duration
	success  bool
}

type endpointStats struct {
	successes int
	errors    int
	durations []time.Duration
}

func makeRequest(httpClient *http.Client, url string) (time.Duration, bool) {
	start := time.Now()

	resp, err := httpClient.Get(url)
	if err != nil {
		return time.Since(start), false
	}
	defer resp.Body.Close()

	_, err = io.Copy(io.Discard, resp.Body)
	if err != nil {
		return time.Since(start), false
	}

	return time.Since(start), resp.StatusCode < 400
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	index := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func printStats(endpoint string, stats *endpointStats) {
	total := stats.successes + stats.errors
	if total == 0 {
		return
	}

	sorted := make([]time.Duration, len(stats.durations))
	copy(sorted, stats.durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	mean := sum / time.Duration(len(sorted))

	var variance float64
	for _, d := range sorted {
		diff := float64(d - mean)
		variance += diff * diff
	}
	stddev := time.Duration(math.Sqrt(variance / float64(len(sorted))))

	fmt.Printf("\n%s\n", endpoint)
	fmt.Printf("  requests:     %d (%d ok, %d failed, %.1f%% success)\n",
		total, stats.successes, stats.errors, 100*float64(stats.successes)/float64(total))
	fmt.Printf("  min/max:      %v / %v\n", sorted[0], sorted[len(sorted)-1])
	fmt.Printf("  mean/median:  %v / %v\n", mean, percentile(sorted, 50))
	fmt.Printf("  stddev:       %v\n", stddev)
	fmt.Printf("  p95/p99:      %v / %v\n", percentile(sorted, 95), percentile(sorted, 99))
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the service")
	workers := flag.Int("workers", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "how long to run")
	flag.Parse()

	endpoints := []string{
		"/api/products/cached",
		"/api/products/db",
	}

	log.Printf("Running %d workers against %s for %v", *workers, *baseURL, *duration)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	httpClient := &http.Client{Timeout: 15 * time.Second}
	limiter := rate.NewLimiter(rate.Every(50*time.Millisecond), *workers)

	samples := make(chan sample, 1024)

	wg := sync.WaitGroup{}
	for workerIndex := 0; workerIndex < *workers; workerIndex++ {
		wg.Add(1)
		go func(workerIndex int) {
			defer wg.Done()

			// Alternate between the cached and uncached endpoints so
			// one run produces a side-by-side comparison.
			for requestIndex := 0; ; requestIndex++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				endpoint := endpoints[(workerIndex+requestIndex)%len(endpoints)]
				elapsed, ok := makeRequest(httpClient, *baseURL+endpoint)

				select {
				case samples <- sample{endpoint: endpoint, duration: elapsed, success: ok}:
				case <-ctx.Done():
					return
				}
			}
		}(workerIndex)
	}

	go func() {
		wg.Wait()
		close(samples)
	}()

	statsByEndpoint := map[string]*endpointStats{}
	for s := range samples {
		stats, ok := statsByEndpoint[s.endpoint]
		if !ok {
			stats = &endpointStats{}
			statsByEndpoint[s.endpoint] = stats
		}
		if s.success {
			stats.successes++
		} else {
			stats.errors++
		}
		stats.durations = append(stats.durations, s.duration)
	}

	for _, endpoint := range endpoints {
		printStats(endpoint, statsByEndpoint[endpoint])
	}
}
