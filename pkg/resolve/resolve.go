// Package resolve finds the on-screen rectangle of a step's target, retrying
// for elements that have not been rendered yet.
package resolve

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/debug"
	"github.com/vanderheijden86/tourkit/pkg/layout"
	"github.com/vanderheijden86/tourkit/pkg/metrics"
	"github.com/vanderheijden86/tourkit/pkg/sched"
	"github.com/vanderheijden86/tourkit/pkg/tour"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 5
	DefaultRetryDelay  = 200 * time.Millisecond
)

// Locator looks up the element a locator string names. ok is false when no
// such element is currently rendered.
type Locator interface {
	Locate(locator string) (rect layout.Rect, ok bool)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(locator string) (layout.Rect, bool)

func (f LocatorFunc) Locate(locator string) (layout.Rect, bool) { return f(locator) }

// Result is the outcome of a resolution. Rect is nil when there is no
// target: either the step is untargeted or the budget ran out.
type Result struct {
	Locator  string
	Rect     *layout.Rect
	Attempts int
	// Skipped is set for untargeted steps, which never call the Locator.
	Skipped bool
}

// Found reports whether a target rectangle was resolved.
func (r Result) Found() bool { return r.Rect != nil }

// Option configures a Resolver.
type Option func(*Resolver)

// WithBudget sets the attempt count and the delay between attempts.
// Values below one attempt or a negative delay are ignored.
func WithBudget(maxAttempts int, delay time.Duration) Option {
	return func(r *Resolver) {
		if maxAttempts >= 1 {
			r.maxAttempts = maxAttempts
		}
		if delay >= 0 {
			r.delay = delay
		}
	}
}

// WithLogger sets the logger for attempt and exhaustion diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// Resolver resolves locators through a Locator, scheduling retries on a
// sched.Scheduler.
type Resolver struct {
	loc         Locator
	s           sched.Scheduler
	maxAttempts int
	delay       time.Duration
	logger      *zap.Logger
}

// New returns a resolver over loc. A nil scheduler uses sched.Realtime.
func New(loc Locator, s sched.Scheduler, opts ...Option) *Resolver {
	if s == nil {
		s = sched.Realtime{}
	}
	r := &Resolver{
		loc:         loc,
		s:           s,
		maxAttempts: DefaultMaxAttempts,
		delay:       DefaultRetryDelay,
		logger:      debug.Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxAttempts returns the retry budget.
func (r *Resolver) MaxAttempts() int { return r.maxAttempts }

// Delay returns the pause between attempts.
func (r *Resolver) Delay() time.Duration { return r.delay }

// NeedsTarget reports whether step should be resolved at all.
func NeedsTarget(step tour.Step) bool { return !step.Untargeted() }

// Resolve performs one immediate lookup.
func (r *Resolver) Resolve(locator string) *layout.Rect {
	defer metrics.Timer(metrics.Lookup)()
	rect, ok := r.loc.Locate(locator)
	if !ok {
		return nil
	}
	return &rect
}

// ResolveStep resolves a step once, short-circuiting untargeted steps.
func (r *Resolver) ResolveStep(step tour.Step) Result {
	if !NeedsTarget(step) {
		return Result{Locator: step.Target, Skipped: true}
	}
	return Result{Locator: step.Target, Rect: r.Resolve(step.Target), Attempts: 1}
}

// Task is one in-flight retry chain.
type Task struct {
	mu        sync.Mutex
	r         *Resolver
	locator   string
	done      func(Result)
	attempts  int
	pending   sched.Handle
	cancelled bool
	finished  bool
}

// ResolveWithRetry looks locator up immediately and, while it is missing,
// again every Delay until MaxAttempts lookups have been made. done runs
// exactly once with the outcome unless the task is cancelled first. The
// first attempt runs synchronously, so done may have been called by the
// time ResolveWithRetry returns.
func (r *Resolver) ResolveWithRetry(locator string, done func(Result)) *Task {
	t := &Task{r: r, locator: locator, done: done}
	t.attempt()
	return t
}

// ResolveStepWithRetry is ResolveWithRetry that completes untargeted steps
// immediately without a lookup.
func (r *Resolver) ResolveStepWithRetry(step tour.Step, done func(Result)) *Task {
	if !NeedsTarget(step) {
		t := &Task{r: r, locator: step.Target, finished: true}
		if done != nil {
			done(Result{Locator: step.Target, Skipped: true})
		}
		return t
	}
	return r.ResolveWithRetry(step.Target, done)
}

func (t *Task) attempt() {
	t.mu.Lock()
	if t.cancelled || t.finished {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.attempts++
	n := t.attempts
	t.mu.Unlock()

	rect := t.r.Resolve(t.locator)

	t.mu.Lock()
	if t.cancelled {
		t.mu.Unlock()
		return
	}
	if rect != nil {
		t.finished = true
		t.mu.Unlock()
		t.r.logger.Debug("resolve: target found",
			zap.String("locator", t.locator), zap.Int("attempt", n))
		t.finish(Result{Locator: t.locator, Rect: rect, Attempts: n})
		return
	}
	if n >= t.r.maxAttempts {
		t.finished = true
		t.mu.Unlock()
		metrics.RetryExhausted.Inc()
		t.r.logger.Info("resolve: target not found, showing untargeted step",
			zap.String("locator", t.locator), zap.Int("attempts", n))
		t.finish(Result{Locator: t.locator, Attempts: n})
		return
	}
	t.r.logger.Debug("resolve: target missing, retrying",
		zap.String("locator", t.locator), zap.Int("attempt", n),
		zap.Int("max_attempts", t.r.maxAttempts), zap.Duration("delay", t.r.delay))
	t.pending = t.r.s.AfterFunc(t.r.delay, t.attempt)
	t.mu.Unlock()
}

func (t *Task) finish(res Result) {
	if t.done != nil {
		t.done(res)
	}
}

// Cancel stops the chain. No further lookups happen and done is not called.
// It reports whether the task was still running.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled || t.finished {
		return false
	}
	t.cancelled = true
	if t.pending != nil {
		t.pending.Cancel()
		t.pending = nil
	}
	return true
}

// Attempts returns the number of lookups made so far.
func (t *Task) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// Done reports whether the task has delivered its result.
func (t *Task) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// Locator returns the locator being resolved.
func (t *Task) Locator() string { return t.locator }
