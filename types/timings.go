package types

import (
	"sync"
	"time"
)

// Timings accumulates per-stage durations for one request. Stage names are
// stable and appear verbatim in response metadata. Safe for concurrent use;
// the facts and retrieval legs record from separate goroutines.
type Timings struct {
	mu sync.Mutex
	m  map[string]float64
}

// NewTimings returns an empty timing set.
func NewTimings() *Timings {
	return &Timings{m: make(map[string]float64, 8)}
}

// Record stores the duration for a stage, in seconds rounded to the
// millisecond.
func (t *Timings) Record(stage string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[stage] = float64(d.Milliseconds()) / 1000.0
}

// Observe runs fn and records its wall time under stage.
func (t *Timings) Observe(stage string, fn func()) {
	start := time.Now()
	fn()
	t.Record(stage, time.Since(start))
}

// Get returns the recorded duration for a stage in seconds.
func (t *Timings) Get(stage string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.m[stage]
	return v, ok
}

// Snapshot returns a copy of the recorded durations.
func (t *Timings) Snapshot() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.m))
	for k, v := range t.m {
		out[k] = v
	}
	return out
}
