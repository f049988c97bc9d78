package sweep

import (
	"math/big"
	"sync"
	"time"
)

// Stats is the cumulative counter snapshot served by the operational API.
// Counters reset on process restart; durable accounting lives on chain.
type Stats struct {
	Iterations      int    `json:"iterations"`
	TicksSkipped    int    `json:"ticks_skipped"`
	Attempted       int    `json:"attempted"`
	Succeeded       int    `json:"succeeded"`
	Skipped         int    `json:"skipped"`
	Failed          int    `json:"failed"`
	SweptTotal      string `json:"swept_total"`
	LastIterationAt int64  `json:"last_iteration_at,omitempty"`
}

type statsTracker struct {
	mu           sync.Mutex
	iterations   int
	ticksSkipped int
	attempted    int
	succeeded    int
	skipped      int
	failed       int
	swept        *big.Int
	lastAt       time.Time
	decimals     int
}

func newStatsTracker(decimals int) *statsTracker {
	return &statsTracker{swept: new(big.Int), decimals: decimals}
}

func (t *statsTracker) recordOutcome(out Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempted++
	switch {
	case out.Succeeded():
		t.succeeded++
		if out.Amount != nil {
			t.swept.Add(t.swept, out.Amount)
		}
	case out.Skipped():
		t.skipped++
	default:
		t.failed++
	}
}

func (t *statsTracker) recordIteration() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.iterations++
	t.lastAt = time.Now()
}

func (t *statsTracker) recordSkippedTick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticksSkipped++
}

func (t *statsTracker) snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	stats := Stats{
		Iterations:   t.iterations,
		TicksSkipped: t.ticksSkipped,
		Attempted:    t.attempted,
		Succeeded:    t.succeeded,
		Skipped:      t.skipped,
		Failed:       t.failed,
		SweptTotal:   FormatUnits(t.swept, t.decimals),
	}
	if !t.lastAt.IsZero() {
		stats.LastIterationAt = t.lastAt.Unix()
	}
	return stats
}
