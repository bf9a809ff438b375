package sched

import (
	"sync"
	"time"
)

// DefaultDebounceDuration is the quiet period used when none is given.
const DefaultDebounceDuration = 300 * time.Millisecond

// Debouncer coalesces bursts of triggers into a single callback that runs
// once the trigger stream has been quiet for the configured duration. There
// is at most one pending callback: each Trigger reschedules it.
type Debouncer struct {
	mu       sync.Mutex
	s        Scheduler
	duration time.Duration
	pending  Handle
	gen      uint64
	fired    uint64
}

// NewDebouncer returns a debouncer on s. A non-positive duration selects
// DefaultDebounceDuration.
func NewDebouncer(s Scheduler, d time.Duration) *Debouncer {
	if d <= 0 {
		d = DefaultDebounceDuration
	}
	return &Debouncer{s: s, duration: d}
}

// Trigger (re)starts the quiet period; fn runs when it elapses. Only the
// most recent fn runs.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	if d.pending != nil {
		d.pending.Cancel()
	}
	d.gen++
	gen := d.gen
	d.mu.Unlock()

	h := d.s.AfterFunc(d.duration, func() {
		d.mu.Lock()
		if d.gen != gen {
			d.mu.Unlock()
			return
		}
		d.pending = nil
		d.fired = gen
		d.mu.Unlock()
		fn()
	})

	d.mu.Lock()
	if d.gen == gen && d.fired != gen {
		d.pending = h
	}
	d.mu.Unlock()
}

// Cancel drops any pending callback.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.pending != nil {
		d.pending.Cancel()
		d.pending = nil
	}
}

// Pending reports whether a callback is waiting for the quiet period.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Duration returns the quiet period.
func (d *Debouncer) Duration() time.Duration {
	return d.duration
}
