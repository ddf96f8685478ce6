// Package bench drives many independent RADIUS exchanges concurrently and
// summarizes their outcomes.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/postalsys/radclient/internal/client"
	"github.com/postalsys/radclient/internal/logging"
	"github.com/postalsys/radclient/internal/recovery"
)

// ErrInvalidGenerator is returned by Run for a non-positive concurrency or duration.
var ErrInvalidGenerator = errors.New("concurrency and duration must be positive")

// ExchangeFunc performs one exchange. A nil error counts as success.
type ExchangeFunc func(ctx context.Context) error

// Generator runs exchanges from Concurrency workers until Duration elapses.
type Generator struct {
	Concurrency int
	Duration    time.Duration

	// Rate caps exchanges per second across all workers. Zero means unlimited.
	Rate float64

	Logger *slog.Logger

	running atomic.Bool
	live    atomic.Pointer[recorder]
}

// Report summarizes a run.
type Report struct {
	Total     int64
	Succeeded int64
	Failed    int64

	// Aborted counts exchanges cut off when the run ended. They are not
	// part of Total.
	Aborted int64

	// Errors counts failures by client error kind. Panics count as "panic",
	// anything else as "other".
	Errors map[string]int64

	Duration           time.Duration
	ExchangesPerSecond float64

	// Latency of successful exchanges.
	MinLatency time.Duration
	AvgLatency time.Duration
	MaxLatency time.Duration
	P50Latency time.Duration
	P99Latency time.Duration
}

type recorder struct {
	total     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	aborted   atomic.Int64

	mu        sync.Mutex
	errors    map[string]int64
	latencies []time.Duration
}

func (r *recorder) success(d time.Duration) {
	r.total.Add(1)
	r.succeeded.Add(1)
	r.mu.Lock()
	r.latencies = append(r.latencies, d)
	r.mu.Unlock()
}

func (r *recorder) failure(err error) {
	r.total.Add(1)
	r.failed.Add(1)
	kind := "other"
	if k := client.KindOf(err); k != 0 {
		kind = k.String()
	} else if errors.Is(err, recovery.ErrPanic) {
		kind = "panic"
	}
	r.mu.Lock()
	r.errors[kind]++
	r.mu.Unlock()
}

// Run executes the load test. Exchanges share the run's deadline: those still
// in flight when the duration elapses, or when ctx is cancelled, are aborted
// and reported in Aborted rather than as failures.
func (g *Generator) Run(ctx context.Context, exchange ExchangeFunc) (*Report, error) {
	if g.Concurrency < 1 || g.Duration <= 0 {
		return nil, ErrInvalidGenerator
	}
	logger := logging.OrNop(g.Logger).With(logging.KeyComponent, "bench")

	var limiter *rate.Limiter
	if g.Rate > 0 {
		burst := int(g.Rate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(g.Rate), burst)
	}

	runCtx, cancel := context.WithTimeout(ctx, g.Duration)
	defer cancel()

	rec := &recorder{errors: make(map[string]int64)}
	g.live.Store(rec)
	g.running.Store(true)
	defer g.running.Store(false)

	var wg sync.WaitGroup
	startTime := time.Now()

	for i := 0; i < g.Concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			defer recovery.RecoverWithLog(logger, "bench worker")
			g.runWorker(runCtx, limiter, exchange, rec, logger)
			logger.Debug("worker finished", logging.KeyWorker, worker)
		}(i)
	}

	wg.Wait()

	report := rec.report(time.Since(startTime))
	logger.Debug("run finished",
		logging.KeyCount, report.Total,
		logging.KeyDuration, report.Duration)
	return report, nil
}

// IsRunning reports whether Run is in progress.
func (g *Generator) IsRunning() bool {
	return g.running.Load()
}

// Progress returns the counters of the current or most recent run.
func (g *Generator) Progress() (total, succeeded, failed int64) {
	rec := g.live.Load()
	if rec == nil {
		return 0, 0, 0
	}
	return rec.total.Load(), rec.succeeded.Load(), rec.failed.Load()
}

func (g *Generator) runWorker(runCtx context.Context, limiter *rate.Limiter, exchange ExchangeFunc, rec *recorder, logger *slog.Logger) {
	for {
		select {
		case <-runCtx.Done():
			return
		default:
		}

		if limiter != nil {
			if err := limiter.Wait(runCtx); err != nil {
				return
			}
		}

		start := time.Now()
		if err := safeExchange(runCtx, exchange, logger); err != nil {
			if runCtx.Err() != nil {
				rec.aborted.Add(1)
				return
			}
			rec.failure(err)
			continue
		}
		rec.success(time.Since(start))
	}
}

// safeExchange runs one exchange, turning a panic into a failed exchange.
func safeExchange(ctx context.Context, exchange ExchangeFunc, logger *slog.Logger) (err error) {
	defer recovery.RecoverToError(logger, "bench exchange", &err)
	return exchange(ctx)
}

func (r *recorder) report(elapsed time.Duration) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := &Report{
		Total:     r.total.Load(),
		Succeeded: r.succeeded.Load(),
		Failed:    r.failed.Load(),
		Aborted:   r.aborted.Load(),
		Errors:    r.errors,
		Duration:  elapsed,
	}
	if elapsed > 0 {
		report.ExchangesPerSecond = float64(report.Total) / elapsed.Seconds()
	}

	if len(r.latencies) == 0 {
		return report
	}
	slices.Sort(r.latencies)

	var sum time.Duration
	for _, d := range r.latencies {
		sum += d
	}
	report.MinLatency = r.latencies[0]
	report.MaxLatency = r.latencies[len(r.latencies)-1]
	report.AvgLatency = sum / time.Duration(len(r.latencies))
	report.P50Latency = percentile(r.latencies, 50)
	report.P99Latency = percentile(r.latencies, 99)
	return report
}

// percentile expects sorted input.
func percentile(sorted []time.Duration, p int) time.Duration {
	idx := (len(sorted)*p+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

// String renders the report for terminal output.
func (r *Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Exchanges:  %s (%s ok, %s failed)\n",
		humanize.Comma(r.Total), humanize.Comma(r.Succeeded), humanize.Comma(r.Failed))
	if r.Aborted > 0 {
		fmt.Fprintf(&b, "Aborted:    %s (in flight when the run ended)\n", humanize.Comma(r.Aborted))
	}
	fmt.Fprintf(&b, "Duration:   %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "Throughput: %s exchanges/s\n", humanize.CommafWithDigits(r.ExchangesPerSecond, 1))

	if r.Succeeded > 0 {
		fmt.Fprintf(&b, "Latency:    min %s  avg %s  p50 %s  p99 %s  max %s\n",
			round(r.MinLatency), round(r.AvgLatency), round(r.P50Latency), round(r.P99Latency), round(r.MaxLatency))
	}

	if len(r.Errors) > 0 {
		kinds := make([]string, 0, len(r.Errors))
		for k := range r.Errors {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)

		b.WriteString("Errors:\n")
		for _, k := range kinds {
			fmt.Fprintf(&b, "  %-20s %s\n", k, humanize.Comma(r.Errors[k]))
		}
	}

	return b.String()
}

func round(d time.Duration) time.Duration {
	return d.Round(time.Microsecond)
}
