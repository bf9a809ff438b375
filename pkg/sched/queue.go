package sched

import (
	"sync"
	"time"
)

// Timer describes a callback queued for an external event loop.
type Timer struct {
	ID    uint64
	Delay time.Duration
}

// Queue hands timers to an event loop instead of running them itself.
// The loop drains new timers, waits out each delay however it likes (for
// bubbletea, a tea.Tick command), and calls Fire with the timer id. Fire
// runs the callback on the caller's goroutine, so all callbacks share the
// loop's thread.
type Queue struct {
	mu    sync.Mutex
	next  uint64
	live  map[uint64]func()
	fresh []Timer
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{live: make(map[uint64]func())}
}

func (q *Queue) AfterFunc(d time.Duration, fn func()) Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	id := q.next
	q.live[id] = fn
	q.fresh = append(q.fresh, Timer{ID: id, Delay: d})
	return queueHandle{q: q, id: id}
}

type queueHandle struct {
	q  *Queue
	id uint64
}

func (h queueHandle) Cancel() bool {
	h.q.mu.Lock()
	defer h.q.mu.Unlock()
	if _, ok := h.q.live[h.id]; !ok {
		return false
	}
	delete(h.q.live, h.id)
	return true
}

// Drain returns the timers scheduled since the previous Drain.
func (q *Queue) Drain() []Timer {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.fresh
	q.fresh = nil
	return out
}

// Fire runs the callback for id if it is still live. Cancelled timers are
// ignored.
func (q *Queue) Fire(id uint64) bool {
	q.mu.Lock()
	fn, ok := q.live[id]
	if ok {
		delete(q.live, id)
	}
	q.mu.Unlock()

	if !ok {
		return false
	}
	fn()
	return true
}

// Live returns the number of timers that have neither fired nor been cancelled.
func (q *Queue) Live() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.live)
}
