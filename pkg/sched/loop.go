package sched

import (
	"context"
	"sync"
	"time"
)

// Loop runs a Queue's timers and posted host events on one goroutine, the
// one calling Run. It is the event loop for hosts that have none of their
// own (the browser host); bubbletea hosts drive a Queue directly.
type Loop struct {
	q      *Queue
	fire   chan uint64
	events chan func()

	mu     sync.Mutex
	timers map[uint64]*time.Timer
}

// NewLoop returns a loop over q.
func NewLoop(q *Queue) *Loop {
	return &Loop{
		q:      q,
		fire:   make(chan uint64, 16),
		events: make(chan func(), 16),
		timers: make(map[uint64]*time.Timer),
	}
}

// Queue returns the scheduler whose timers the loop runs.
func (l *Loop) Queue() *Queue { return l.q }

// Post hands fn to the loop goroutine. It is safe to call from any
// goroutine; it blocks if the loop is far behind.
func (l *Loop) Post(ctx context.Context, fn func()) error {
	select {
	case l.events <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes timers and events until ctx is done. Timers still waiting
// when Run returns are stopped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stopAll()
	for {
		l.arm(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id := <-l.fire:
			l.mu.Lock()
			delete(l.timers, id)
			l.mu.Unlock()
			l.q.Fire(id)
		case fn := <-l.events:
			fn()
		}
	}
}

// arm starts a wall-clock timer for every timer queued since the last pass.
func (l *Loop) arm(ctx context.Context) {
	for _, t := range l.q.Drain() {
		id := t.ID
		timer := time.AfterFunc(t.Delay, func() {
			select {
			case l.fire <- id:
			case <-ctx.Done():
			}
		})
		l.mu.Lock()
		l.timers[id] = timer
		l.mu.Unlock()
	}
}

func (l *Loop) stopAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, t := range l.timers {
		t.Stop()
		delete(l.timers, id)
	}
}
