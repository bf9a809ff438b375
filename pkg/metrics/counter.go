package metrics

import "sync/atomic"

// Counter is a monotonically increasing event count.
type Counter struct {
	name string
	n    int64
}

func newCounter(name string) *Counter {
	return &Counter{name: name}
}

// Inc adds one to the counter.
func (c *Counter) Inc() {
	if !Enabled() || c == nil {
		return
	}
	atomic.AddInt64(&c.n, 1)
}

// Name returns the counter name.
func (c *Counter) Name() string { return c.name }

// Value returns the current count.
func (c *Counter) Value() int64 { return atomic.LoadInt64(&c.n) }

// Reset sets the counter back to zero.
func (c *Counter) Reset() { atomic.StoreInt64(&c.n, 0) }

// Global counters.
var (
	RetryExhausted  = newCounter("retry_exhausted")
	StaleDiscarded  = newCounter("stale_resolution_discarded")
	UnknownTour     = newCounter("unknown_tour_start")
	PersistDropped  = newCounter("persist_write_dropped")
	HydrateFallback = newCounter("hydrate_fallback_empty")
)

// AllCounters returns all registered counters.
func AllCounters() []*Counter {
	return []*Counter{
		RetryExhausted,
		StaleDiscarded,
		UnknownTour,
		PersistDropped,
		HydrateFallback,
	}
}

// CounterValues returns a name → value map of every counter.
func CounterValues() map[string]int64 {
	out := make(map[string]int64, len(AllCounters()))
	for _, c := range AllCounters() {
		out[c.Name()] = c.Value()
	}
	return out
}
