package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type sweepKey struct {
	network string
	outcome string
}

type iterationKey struct {
	network string
	result  string
}

type durationKey struct {
	network string
}

type histogram struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type collector struct {
	mu         sync.Mutex
	sweeps     map[sweepKey]uint64
	iterations map[iterationKey]uint64
	durations  map[durationKey]*histogram
}

var sweepCollector = &collector{
	sweeps:     make(map[sweepKey]uint64),
	iterations: make(map[iterationKey]uint64),
	durations:  make(map[durationKey]*histogram),
}

// ObserveSweep records the outcome and duration of one per-wallet attempt.
func ObserveSweep(network, outcome string, duration time.Duration) {
	sweepCollector.observeSweep(network, outcome, duration)
}

// ObserveIteration records one scheduler tick result: "completed" when the
// iteration ran, "skipped" when single-flight dropped the tick, "failed" when
// the account directory was unreachable.
func ObserveIteration(network, result string) {
	sweepCollector.observeIteration(network, result)
}

func (c *collector) observeSweep(network, outcome string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweeps[sweepKey{network: network, outcome: outcome}]++

	durKey := durationKey{network: network}
	hist := c.durations[durKey]
	if hist == nil {
		hist = newHistogram()
		c.durations[durKey] = hist
	}
	hist.observe(duration.Seconds())
}

func (c *collector) observeIteration(network, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.iterations[iterationKey{network: network, result: result}]++
}

func newHistogram() *histogram {
	// Sweep latency is dominated by confirmation waits, so buckets reach
	// into minutes rather than the sub-second range of an HTTP handler.
	buckets := []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) observe(value float64) {
	h.count++
	h.sum += value
	for idx, bound := range h.buckets {
		if value <= bound {
			for i := idx; i < len(h.counts); i++ {
				h.counts[i]++
			}
			break
		}
	}
}

// Handler exposes the metrics in Prometheus text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = fmt.Fprint(w, sweepCollector.render())
	})
}

func (c *collector) render() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	type sweepMetric struct {
		sweepKey
		value uint64
	}
	type iterationMetric struct {
		iterationKey
		value uint64
	}
	type durationMetric struct {
		durationKey
		buckets []float64
		counts  []uint64
		sum     float64
		count   uint64
	}

	sweeps := make([]sweepMetric, 0, len(c.sweeps))
	for key, value := range c.sweeps {
		sweeps = append(sweeps, sweepMetric{sweepKey: key, value: value})
	}
	iters := make([]iterationMetric, 0, len(c.iterations))
	for key, value := range c.iterations {
		iters = append(iters, iterationMetric{iterationKey: key, value: value})
	}
	durs := make([]durationMetric, 0, len(c.durations))
	for key, hist := range c.durations {
		durs = append(durs, durationMetric{
			durationKey: key,
			buckets:     append([]float64(nil), hist.buckets...),
			counts:      append([]uint64(nil), hist.counts...),
			sum:         hist.sum,
			count:       hist.count,
		})
	}

	sort.Slice(sweeps, func(i, j int) bool {
		if sweeps[i].network == sweeps[j].network {
			return sweeps[i].outcome < sweeps[j].outcome
		}
		return sweeps[i].network < sweeps[j].network
	})
	sort.Slice(iters, func(i, j int) bool {
		if iters[i].network == iters[j].network {
			return iters[i].result < iters[j].result
		}
		return iters[i].network < iters[j].network
	})
	sort.Slice(durs, func(i, j int) bool {
		return durs[i].network < durs[j].network
	})

	var builder strings.Builder
	builder.Grow(1024)

	builder.WriteString("# HELP treasurysweep_sweep_attempts_total Total number of per-wallet sweep attempts by classified outcome.\n")
	builder.WriteString("# TYPE treasurysweep_sweep_attempts_total counter\n")
	for _, metric := range sweeps {
		builder.WriteString(fmt.Sprintf("treasurysweep_sweep_attempts_total{network=\"%s\",outcome=\"%s\"} %d\n",
			escape(metric.network), escape(metric.outcome), metric.value))
	}

	builder.WriteString("# HELP treasurysweep_iterations_total Total number of scheduler ticks by result.\n")
	builder.WriteString("# TYPE treasurysweep_iterations_total counter\n")
	for _, metric := range iters {
		builder.WriteString(fmt.Sprintf("treasurysweep_iterations_total{network=\"%s\",result=\"%s\"} %d\n",
			escape(metric.network), escape(metric.result), metric.value))
	}

	builder.WriteString("# HELP treasurysweep_sweep_duration_seconds Per-wallet sweep attempt duration in seconds.\n")
	builder.WriteString("# TYPE treasurysweep_sweep_duration_seconds histogram\n")
	for _, metric := range durs {
		for idx, bound := range metric.buckets {
			builder.WriteString(fmt.Sprintf("treasurysweep_sweep_duration_seconds_bucket{network=\"%s\",le=\"%s\"} %d\n",
				escape(metric.network), formatFloat(bound), metric.counts[idx]))
		}
		builder.WriteString(fmt.Sprintf("treasurysweep_sweep_duration_seconds_bucket{network=\"%s\",le=\"+Inf\"} %d\n",
			escape(metric.network), metric.count))
		builder.WriteString(fmt.Sprintf("treasurysweep_sweep_duration_seconds_sum{network=\"%s\"} %s\n",
			escape(metric.network), formatFloat(metric.sum)))
		builder.WriteString(fmt.Sprintf("treasurysweep_sweep_duration_seconds_count{network=\"%s\"} %d\n",
			escape(metric.network), metric.count))
	}

	return builder.String()
}

func escape(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "")
	return value
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// StartServer launches a standalone HTTP server exposing the /metrics endpoint.
func StartServer(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("metrics address is empty")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
