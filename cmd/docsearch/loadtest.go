package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var defaultLoadQueries = []string{
	"blood",
	"blood test",
	"urine OR blood",
	"laboratory -urine",
	"title:report",
	"glucose cholesterol",
	"content:results",
	"analysis NOT summary",
}

type loadStats struct {
	total     atomic.Int64
	failed    atomic.Int64
	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int
}

func (s *loadStats) record(d time.Duration, code int, err error) {
	s.total.Add(1)
	if err != nil || code < 200 || code >= 300 {
		s.failed.Add(1)
	}
	if err != nil {
		return
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, d)
	s.codes[code]++
	s.mu.Unlock()
}

func loadtestCMD(opts *options) *cobra.Command {
	var (
		baseURL     string
		concurrency int
		duration    time.Duration
		queries     []string
	)
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Drive a running search service with concurrent queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency < 1 {
				return fmt.Errorf("concurrency must be at least 1")
			}
			if len(queries) == 0 {
				queries = defaultLoadQueries
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), duration)
			defer cancel()

			stats := &loadStats{codes: make(map[int]int)}
			client := &http.Client{
				Timeout: 10 * time.Second,
				Transport: &http.Transport{
					MaxIdleConns:        concurrency * 2,
					MaxIdleConnsPerHost: concurrency * 2,
					IdleConnTimeout:     90 * time.Second,
				},
			}

			g, ctx := errgroup.WithContext(ctx)
			for w := range concurrency {
				g.Go(func() error {
					for i := w; ctx.Err() == nil; i++ {
						target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=10",
							baseURL, url.QueryEscape(queries[i%len(queries)]))
						req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
						if err != nil {
							return err
						}
						start := time.Now()
						resp, err := client.Do(req)
						if ctx.Err() != nil {
							return nil
						}
						if err != nil {
							stats.record(time.Since(start), 0, err)
							continue
						}
						io.Copy(io.Discard, resp.Body)
						resp.Body.Close()
						stats.record(time.Since(start), resp.StatusCode, nil)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			report := stats.report(duration)
			if opts.jsonOut {
				return printJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "requests  %d (%d failed)\n", report.Requests, report.Failed)
			fmt.Fprintf(out, "rate      %.1f req/s\n", report.PerSecond)
			fmt.Fprintf(out, "latency   p50 %v  p95 %v  p99 %v  max %v\n",
				report.P50, report.P95, report.P99, report.Max)
			for code, n := range report.StatusCodes {
				fmt.Fprintf(out, "status    %d: %d\n", code, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "base URL of the search service")
	cmd.Flags().IntVar(&concurrency, "concurrency", 10, "concurrent workers")
	cmd.Flags().DurationVar(&duration, "duration", 30*time.Second, "how long to run")
	cmd.Flags().StringArrayVarP(&queries, "query", "q", nil, "query to send (repeatable)")
	return cmd
}

type loadReport struct {
	Requests    int64         `json:"requests"`
	Failed      int64         `json:"failed"`
	PerSecond   float64       `json:"per_second"`
	P50         time.Duration `json:"p50"`
	P95         time.Duration `json:"p95"`
	P99         time.Duration `json:"p99"`
	Max         time.Duration `json:"max"`
	StatusCodes map[int]int   `json:"status_codes"`
}

func (s *loadStats) report(elapsed time.Duration) loadReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	lat := slices.Clone(s.latencies)
	slices.Sort(lat)
	r := loadReport{
		Requests:    s.total.Load(),
		Failed:      s.failed.Load(),
		StatusCodes: s.codes,
	}
	if elapsed > 0 {
		r.PerSecond = float64(r.Requests) / elapsed.Seconds()
	}
	if len(lat) > 0 {
		r.P50 = percentile(lat, 0.50)
		r.P95 = percentile(lat, 0.95)
		r.P99 = percentile(lat, 0.99)
		r.Max = lat[len(lat)-1]
	}
	return r
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
