package sched

import (
	"sort"
	"sync"
	"time"
)

// Manual is a virtual-clock scheduler. Callbacks run synchronously inside
// Advance, in due-time order (ties in scheduling order).
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	seq    uint64
	timers []*manualTimer
}

type manualTimer struct {
	m        *Manual
	due      time.Duration
	seq      uint64
	fn       func()
	canceled bool
	fired    bool
}

// NewManual returns a scheduler whose clock starts at zero.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Handle {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{m: m, due: m.now + d, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Cancel() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.canceled || t.fired {
		return false
	}
	t.canceled = true
	t.m.removeLocked(t)
	return true
}

func (m *Manual) removeLocked(t *manualTimer) {
	for i, other := range m.timers {
		if other == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of callbacks waiting to run.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves the clock forward by d, running every callback that becomes
// due, including callbacks scheduled by other callbacks within the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// RunAll advances until no callbacks remain, up to limit callbacks.
func (m *Manual) RunAll(limit int) int {
	ran := 0
	for ran < limit {
		m.mu.Lock()
		if len(m.timers) == 0 {
			m.mu.Unlock()
			break
		}
		m.sortLocked()
		due := m.timers[0].due
		m.mu.Unlock()

		t := m.nextDue(due)
		if t == nil {
			break
		}
		t.fn()
		ran++
	}
	return ran
}

func (m *Manual) nextDue(target time.Duration) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.timers) == 0 {
		return nil
	}
	m.sortLocked()
	t := m.timers[0]
	if t.due > target {
		return nil
	}
	m.timers = m.timers[1:]
	t.fired = true
	if t.due > m.now {
		m.now = t.due
	}
	return t
}

func (m *Manual) sortLocked() {
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].due != m.timers[j].due {
			return m.timers[i].due < m.timers[j].due
		}
		return m.timers[i].seq < m.timers[j].seq
	})
}
