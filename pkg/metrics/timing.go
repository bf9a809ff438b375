// Package metrics instruments the tour runtime in-process.
//
// Timings cover the paths that run on every step change, resize and scroll:
// target lookup, placement and frame computation. Counters track degraded
// outcomes such as exhausted retry budgets and dropped persistence writes.
//
// Collection is on unless TOURKIT_METRICS=0.
//
//	defer metrics.Timer(metrics.Placement)()
package metrics

import (
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() { enabled.Store(os.Getenv("TOURKIT_METRICS") != "0") }

// Enabled reports whether metrics are collected.
func Enabled() bool { return enabled.Load() }

// SetEnabled turns collection on or off.
func SetEnabled(e bool) { enabled.Store(e) }

// window is how many recent samples a timing keeps for percentiles.
const window = 256

// TimingMetric aggregates durations of one operation. Totals cover every
// sample; percentiles cover the most recent window.
type TimingMetric struct {
	name string

	mu     sync.Mutex
	count  int64
	total  time.Duration
	min    time.Duration
	max    time.Duration
	recent [window]time.Duration
	next   int
}

func newTimingMetric(name string) *TimingMetric {
	return &TimingMetric{name: name}
}

// Record adds one sample.
func (m *TimingMetric) Record(d time.Duration) {
	if !Enabled() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 || d < m.min {
		m.min = d
	}
	if d > m.max {
		m.max = d
	}
	m.count++
	m.total += d
	m.recent[m.next%window] = d
	m.next++
}

// Name returns the metric name.
func (m *TimingMetric) Name() string { return m.name }

// Count returns the number of samples.
func (m *TimingMetric) Count() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Min returns the shortest sample, zero before the first.
func (m *TimingMetric) Min() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.min
}

// Max returns the longest sample.
func (m *TimingMetric) Max() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max
}

// Avg returns the mean over every sample.
func (m *TimingMetric) Avg() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count == 0 {
		return 0
	}
	return m.total / time.Duration(m.count)
}

// Percentile returns the p-th percentile (0..100) of the recent window.
func (m *TimingMetric) Percentile(p float64) time.Duration {
	m.mu.Lock()
	samples := m.samples()
	m.mu.Unlock()
	return percentile(samples, p)
}

// samples copies the recent window. Callers hold mu.
func (m *TimingMetric) samples() []time.Duration {
	n := m.next
	if n > window {
		n = window
	}
	out := make([]time.Duration, n)
	copy(out, m.recent[:n])
	return out
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	idx := int(p / 100 * float64(len(samples)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(samples) {
		idx = len(samples) - 1
	}
	return samples[idx]
}

// Stats returns a consistent snapshot.
func (m *TimingMetric) Stats() TimingStats {
	m.mu.Lock()
	count, total, lo, hi := m.count, m.total, m.min, m.max
	samples := m.samples()
	m.mu.Unlock()

	s := TimingStats{
		Name:    m.name,
		Count:   count,
		TotalMs: ms(total),
		MinMs:   ms(lo),
		MaxMs:   ms(hi),
		P95Ms:   ms(percentile(samples, 95)),
	}
	if count > 0 {
		s.AvgMs = ms(total / time.Duration(count))
	}
	return s
}

// Reset drops every sample.
func (m *TimingMetric) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count, m.total, m.min, m.max, m.next = 0, 0, 0, 0, 0
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// TimingStats is a snapshot of one TimingMetric.
type TimingStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MinMs   float64 `json:"min_ms"`
	MaxMs   float64 `json:"max_ms"`
	P95Ms   float64 `json:"p95_ms"`
}

// Timer starts a measurement; calling the result records it.
func Timer(m *TimingMetric) func() {
	if !Enabled() || m == nil {
		return func() {}
	}
	start := time.Now()
	return func() { m.Record(time.Since(start)) }
}

var (
	Lookup       = newTimingMetric("target_lookup")
	Placement    = newTimingMetric("placement")
	FrameCompute = newTimingMetric("frame_compute")
	Hydrate      = newTimingMetric("progress_hydrate")
	CatalogLoad  = newTimingMetric("catalog_load")
	UIRender     = newTimingMetric("ui_render")
)

// AllTimingMetrics returns every registered timing.
func AllTimingMetrics() []*TimingMetric {
	return []*TimingMetric{Lookup, Placement, FrameCompute, Hydrate, CatalogLoad, UIRender}
}

// ResetAll clears all timings and counters.
func ResetAll() {
	for _, m := range AllTimingMetrics() {
		m.Reset()
	}
	for _, c := range AllCounters() {
		c.Reset()
	}
}

// AllTimingStats returns stats for the timings that have samples.
func AllTimingStats() []TimingStats {
	var out []TimingStats
	for _, m := range AllTimingMetrics() {
		if m.Count() > 0 {
			out = append(out, m.Stats())
		}
	}
	return out
}
