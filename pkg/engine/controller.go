package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/capability"
	"github.com/vanderheijden86/tourkit/pkg/layout"
	"github.com/vanderheijden86/tourkit/pkg/metrics"
	"github.com/vanderheijden86/tourkit/pkg/resolve"
	"github.com/vanderheijden86/tourkit/pkg/sched"
	"github.com/vanderheijden86/tourkit/pkg/tour"
)

// Actor performs step actions against the host page.
type Actor interface {
	Click(locator string) error
	ScrollIntoView(locator string) error
}

// Measurer reports how large the callout for a step will be.
type Measurer interface {
	MeasureCallout(d StepDescriptor) layout.Size
}

// MeasureFunc adapts a function to Measurer.
type MeasureFunc func(d StepDescriptor) layout.Size

func (f MeasureFunc) MeasureCallout(d StepDescriptor) layout.Size { return f(d) }

// DefaultCalloutSize is used when the host supplies no Measurer.
var DefaultCalloutSize = layout.Size{Width: 360, Height: 200}

// Timing holds the orchestrator's delays.
type Timing struct {
	// Debounce is the quiet period before a resize/scroll recompute.
	Debounce time.Duration `yaml:"debounce"`
	// ActionDelay is how long after resolution a click action fires.
	ActionDelay time.Duration `yaml:"action_delay"`
	// ClickSettle is the wait between a click and the re-resolve.
	ClickSettle time.Duration `yaml:"click_settle"`
	// ScrollSettle is the wait between a scroll and the re-resolve.
	ScrollSettle time.Duration `yaml:"scroll_settle"`
}

// DefaultTiming returns the stock delays.
func DefaultTiming() Timing {
	return Timing{
		Debounce:     sched.DefaultDebounceDuration,
		ActionDelay:  300 * time.Millisecond,
		ClickSettle:  300 * time.Millisecond,
		ScrollSettle: 500 * time.Millisecond,
	}
}

// withDefaults fills every unset delay from DefaultTiming.
func (t Timing) withDefaults() Timing {
	def := DefaultTiming()
	if t.Debounce <= 0 {
		t.Debounce = def.Debounce
	}
	if t.ActionDelay <= 0 {
		t.ActionDelay = def.ActionDelay
	}
	if t.ClickSettle <= 0 {
		t.ClickSettle = def.ClickSettle
	}
	if t.ScrollSettle <= 0 {
		t.ScrollSettle = def.ScrollSettle
	}
	return t
}

// Frame is everything a renderer needs to draw the overlay.
type Frame struct {
	Active bool           `json:"active"`
	Step   StepDescriptor `json:"step"`
	// Target is nil for untargeted steps, unresolved targets, and while
	// the first lookup chain is still running.
	Target       *layout.Rect            `json:"target,omitempty"`
	Resolving    bool                    `json:"resolving"`
	Callout      layout.Position         `json:"callout"`
	CalloutSize  layout.Size             `json:"callout_size"`
	Spotlight    layout.Spotlight        `json:"spotlight"`
	HasSpotlight bool                    `json:"has_spotlight"`
	Pulse        bool                    `json:"pulse"`
	Visual       capability.VisualConfig `json:"visual"`
	Viewport     layout.Viewport         `json:"viewport"`
	Generation   uint64                  `json:"generation"`
}

// Centered reports whether the callout is shown as a centred modal.
func (f Frame) Centered() bool { return f.Callout.Placement == layout.PlacementCenter }

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	Actor            Actor
	Measurer         Measurer
	Visual           capability.VisualConfig
	Placement        layout.Options
	SpotlightPadding float64
	Timing           Timing
	Viewport         layout.Viewport
	Logger           *zap.Logger
}

// Controller is the overlay orchestrator. On every step change it cancels
// the previous step's work, resolves the new target with retry and
// recomputes placement and spotlight. Resize and scroll recompute through
// a debouncer with a single lookup.
//
// A Controller is not safe for concurrent use; the scheduler must deliver
// callbacks on the goroutine that drives the engine.
type Controller struct {
	m        *Machine
	res      *resolve.Resolver
	s        sched.Scheduler
	cfg      ControllerConfig
	logger   *zap.Logger
	debounce *sched.Debouncer

	viewport  layout.Viewport
	task      *resolve.Task
	actions   sched.Group
	gen       uint64
	target    *layout.Rect
	resolving bool
	frame     Frame
	listeners []func(Frame)
}

// NewController attaches a controller to m.
func NewController(m *Machine, res *resolve.Resolver, s sched.Scheduler, cfg ControllerConfig) *Controller {
	if cfg.Measurer == nil {
		cfg.Measurer = MeasureFunc(func(StepDescriptor) layout.Size { return DefaultCalloutSize })
	}
	if cfg.Placement == (layout.Options{}) {
		cfg.Placement = layout.DefaultOptions()
	}
	if cfg.SpotlightPadding <= 0 {
		cfg.SpotlightPadding = layout.DefaultSpotlightPadding
	}
	cfg.Timing = cfg.Timing.withDefaults()
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	c := &Controller{
		m:        m,
		res:      res,
		s:        s,
		cfg:      cfg,
		logger:   cfg.Logger,
		debounce: sched.NewDebouncer(s, cfg.Timing.Debounce),
		viewport: cfg.Viewport,
	}
	c.frame = c.compute()
	m.OnChange(c.onState)
	return c
}

// OnFrame registers fn to receive every recomputed frame.
func (c *Controller) OnFrame(fn func(Frame)) {
	c.listeners = append(c.listeners, fn)
}

// Frame returns the most recent frame.
func (c *Controller) Frame() Frame { return c.frame }

// Viewport returns the current viewport.
func (c *Controller) Viewport() layout.Viewport { return c.viewport }

// SetViewport records a new viewport size and schedules a debounced
// recompute.
func (c *Controller) SetViewport(vp layout.Viewport) {
	c.viewport = vp
	if !c.m.Active() {
		c.frame = c.compute()
		return
	}
	c.debounce.Trigger(c.refresh)
}

// OnResize is SetViewport under the host event's name.
func (c *Controller) OnResize(vp layout.Viewport) { c.SetViewport(vp) }

// OnScroll schedules a debounced recompute; scrolling moves targets.
func (c *Controller) OnScroll() {
	if !c.m.Active() {
		return
	}
	c.debounce.Trigger(c.refresh)
}

// Close cancels every pending timer.
func (c *Controller) Close() {
	c.cancelPending()
}

func (c *Controller) cancelPending() {
	if c.task != nil {
		c.task.Cancel()
		c.task = nil
	}
	c.actions.CancelAll()
	c.debounce.Cancel()
}

func (c *Controller) onState(st State) {
	c.cancelPending()
	c.gen++
	c.target = nil
	c.resolving = false

	if !st.Active {
		c.publish()
		return
	}

	step, ok := c.m.Step()
	if !ok {
		c.publish()
		return
	}
	c.resolving = resolve.NeedsTarget(step)
	c.publish()

	gen := c.gen
	c.task = c.res.ResolveStepWithRetry(step, func(r resolve.Result) {
		c.onResolved(gen, step, r)
	})
}

func (c *Controller) onResolved(gen uint64, step tour.Step, r resolve.Result) {
	if gen != c.gen {
		metrics.StaleDiscarded.Inc()
		c.logger.Debug("discarding stale resolution", zap.String("locator", r.Locator))
		return
	}
	c.target = r.Rect
	c.resolving = false
	c.publish()

	if r.Found() && step.Action != tour.ActionNone {
		c.runAction(gen, step)
	}
}

func (c *Controller) runAction(gen uint64, step tour.Step) {
	if c.cfg.Actor == nil {
		c.logger.Debug("no actor, skipping step action", zap.String("action", string(step.Action)))
		return
	}
	switch step.Action {
	case tour.ActionClick:
		c.actions.Add(c.s.AfterFunc(c.cfg.Timing.ActionDelay, func() {
			if gen != c.gen {
				metrics.StaleDiscarded.Inc()
				return
			}
			if err := c.cfg.Actor.Click(step.Target); err != nil {
				c.logger.Warn("step click failed", zap.String("locator", step.Target), zap.Error(err))
			}
			c.actions.Add(c.s.AfterFunc(c.cfg.Timing.ClickSettle, c.refreshFor(gen)))
		}))
	case tour.ActionScroll:
		if err := c.cfg.Actor.ScrollIntoView(step.Target); err != nil {
			c.logger.Warn("step scroll failed", zap.String("locator", step.Target), zap.Error(err))
		}
		c.actions.Add(c.s.AfterFunc(c.cfg.Timing.ScrollSettle, c.refreshFor(gen)))
	}
}

func (c *Controller) refreshFor(gen uint64) func() {
	return func() {
		if gen != c.gen {
			metrics.StaleDiscarded.Inc()
			return
		}
		c.refresh()
	}
}

// refresh re-resolves the current target with one lookup. While the
// step's retry chain is still running it only re-lays out; the chain
// delivers the target itself.
func (c *Controller) refresh() {
	step, ok := c.m.Step()
	if !ok {
		return
	}
	if c.task != nil && !c.task.Done() {
		c.publish()
		return
	}
	c.target = c.res.ResolveStep(step).Rect
	c.publish()
}

func (c *Controller) publish() {
	c.frame = c.compute()
	for _, fn := range c.listeners {
		fn(c.frame)
	}
}

func (c *Controller) compute() Frame {
	defer metrics.Timer(metrics.FrameCompute)()

	f := Frame{
		Visual:     c.cfg.Visual,
		Viewport:   c.viewport,
		Generation: c.gen,
	}
	def, ok := c.m.Tour()
	if !ok {
		return f
	}
	idx := c.m.State().StepIndex
	step, ok := def.Step(idx)
	if !ok {
		return f
	}

	f.Active = true
	f.Step = describe(def, idx)
	f.Resolving = c.resolving
	f.CalloutSize = c.cfg.Measurer.MeasureCallout(f.Step)

	if c.target != nil {
		t := *c.target
		f.Target = &t
		f.Spotlight, f.HasSpotlight = layout.ComputeSpotlight(t, step.Shape(), c.cfg.SpotlightPadding)
	}
	f.Callout = layout.Resolve(f.Target, f.CalloutSize, step.PreferredPlacement(), c.viewport, c.cfg.Placement)
	f.Pulse = f.HasSpotlight && step.Pulse() && c.cfg.Visual.PulseEnabled
	return f
}
