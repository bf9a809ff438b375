// Package sched provides the cancellable timers the tour runtime is built on.
//
// The runtime is single-threaded and event driven: nothing blocks, and every
// delay (retry back-off, debounced resize, auto-start delay) is a scheduled
// callback behind a Handle. Hosts pick the Scheduler that matches their event
// loop:
//
//   - Manual: a virtual clock for tests; time only moves on Advance.
//   - Queue: timers are handed to an external event loop (bubbletea) which
//     fires them back on its own goroutine.
//   - Realtime: plain time.AfterFunc, for hosts that serialise callbacks
//     themselves.
package sched

import (
	"sync"
	"time"
)

// Handle is a pending callback.
type Handle interface {
	// Cancel prevents the callback from running. It reports whether the
	// call stopped a pending callback; false means it already ran or was
	// already cancelled.
	Cancel() bool
}

// Scheduler runs fn once after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Handle
}

// Func adapts a function to the Scheduler interface.
type Func func(d time.Duration, fn func()) Handle

func (f Func) AfterFunc(d time.Duration, fn func()) Handle { return f(d, fn) }

// Realtime schedules on the Go runtime timer. Callbacks run on their own
// goroutine.
type Realtime struct{}

func (Realtime) AfterFunc(d time.Duration, fn func()) Handle {
	return realtimeHandle{time.AfterFunc(d, fn)}
}

type realtimeHandle struct{ t *time.Timer }

func (h realtimeHandle) Cancel() bool { return h.t.Stop() }

// Group tracks a set of handles so they can be cancelled together.
type Group struct {
	mu      sync.Mutex
	handles []Handle
}

// Add registers h with the group and returns it.
func (g *Group) Add(h Handle) Handle {
	g.mu.Lock()
	g.handles = append(g.handles, h)
	g.mu.Unlock()
	return h
}

// CancelAll cancels every registered handle and empties the group.
func (g *Group) CancelAll() int {
	g.mu.Lock()
	handles := g.handles
	g.handles = nil
	g.mu.Unlock()

	stopped := 0
	for _, h := range handles {
		if h.Cancel() {
			stopped++
		}
	}
	return stopped
}

// Len returns the number of registered handles.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.handles)
}
