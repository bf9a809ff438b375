// Package engine is the guided-tour runtime: the tour state machine, the
// overlay orchestrator that resolves and lays out each step, the auto-start
// policy, the help center, and the keyboard surface, wired behind one
// Engine facade.
//
// The engine never returns errors from its operations. Unknown tours are
// logged, missing targets degrade to a centred callout, and storage
// failures are absorbed by the progress store.
package engine

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/capability"
	"github.com/vanderheijden86/tourkit/pkg/debug"
	"github.com/vanderheijden86/tourkit/pkg/layout"
	"github.com/vanderheijden86/tourkit/pkg/progress"
	"github.com/vanderheijden86/tourkit/pkg/resolve"
	"github.com/vanderheijden86/tourkit/pkg/sched"
	"github.com/vanderheijden86/tourkit/pkg/tour"
)

// StepDescriptor is the read-only view of the active step.
type StepDescriptor struct {
	TourID      string           `json:"tour_id"`
	TourTitle   string           `json:"tour_title"`
	Index       int              `json:"index"`
	Total       int              `json:"total"`
	Target      string           `json:"target"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Placement   layout.Placement `json:"placement"`
	Shape       layout.Shape     `json:"shape"`
	Action      tour.Action      `json:"action,omitempty"`
	CanPrev     bool             `json:"can_prev"`
	CanNext     bool             `json:"can_next"`
	IsLast      bool             `json:"is_last"`
}

func describe(def tour.Definition, idx int) StepDescriptor {
	step, _ := def.Step(idx)
	return StepDescriptor{
		TourID:      def.ID,
		TourTitle:   def.Title,
		Index:       idx,
		Total:       def.Len(),
		Target:      step.Target,
		Title:       step.Title,
		Description: step.Description,
		Placement:   step.PreferredPlacement(),
		Shape:       step.Shape(),
		Action:      step.Action,
		CanPrev:     idx > 0,
		CanNext:     idx < def.Len()-1,
		IsLast:      idx == def.Len()-1,
	}
}

// Config wires an Engine. Registry, Locator and Scheduler are required.
type Config struct {
	Registry *tour.Registry
	// Store defaults to an in-memory store.
	Store   *progress.Store
	Locator resolve.Locator
	Actor   Actor
	// Navigator lets the help center open a tour's page before launching.
	Navigator Navigator
	// Scheduler must deliver callbacks on the goroutine that drives the
	// engine: a Queue run by the host's event loop (or a sched.Loop), or a
	// Manual clock in tests.
	Scheduler sched.Scheduler
	Measurer  Measurer
	// Profiler defaults to host detection.
	Profiler *capability.Profiler
	Session  SessionSignal
	// Pages adds or overrides page path -> tour id routes.
	Pages map[string]string

	MaxAttempts      int
	RetryDelay       time.Duration
	Placement        layout.Options
	SpotlightPadding float64
	Timing           Timing
	AutoStart        AutoStartConfig
	Help             HelpTiming
	Keys             *KeyMap
	Viewport         layout.Viewport
	Logger           *zap.Logger
}

// Engine is the facade the page layer talks to.
type Engine struct {
	reg      *tour.Registry
	store    *progress.Store
	profiler *capability.Profiler
	machine  *Machine
	ctrl     *Controller
	auto     *AutoStart
	help     *HelpCenter
	routes   tour.Routes
	keys     KeyMap
	logger   *zap.Logger
	path     string
}

// New builds an engine from cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, errors.New("engine: registry is required")
	}
	if cfg.Locator == nil {
		return nil, errors.New("engine: locator is required")
	}
	if cfg.Scheduler == nil {
		return nil, errors.New("engine: scheduler is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = debug.Logger()
	}
	store := cfg.Store
	if store == nil {
		store = progress.NewStore(progress.NewMemoryKV(), progress.WithLogger(logger))
	}
	s := cfg.Scheduler
	profiler := cfg.Profiler
	if profiler == nil {
		profiler = capability.NewProfiler(nil, capability.WithLogger(logger))
	}
	keys := DefaultKeyMap()
	if cfg.Keys != nil {
		keys = *cfg.Keys
	}
	routes := cfg.Registry.Routes()
	if len(cfg.Pages) > 0 {
		routes = routes.Merge(tour.NewRoutes(cfg.Pages))
	}

	var resOpts []resolve.Option
	resOpts = append(resOpts, resolve.WithLogger(logger))
	if cfg.MaxAttempts > 0 || cfg.RetryDelay > 0 {
		attempts := cfg.MaxAttempts
		if attempts <= 0 {
			attempts = resolve.DefaultMaxAttempts
		}
		delay := cfg.RetryDelay
		if delay <= 0 {
			delay = resolve.DefaultRetryDelay
		}
		resOpts = append(resOpts, resolve.WithBudget(attempts, delay))
	}
	res := resolve.New(cfg.Locator, s, resOpts...)

	e := &Engine{
		reg:      cfg.Registry,
		store:    store,
		profiler: profiler,
		routes:   routes,
		keys:     keys,
		logger:   logger,
	}
	e.machine = NewMachine(cfg.Registry, store, logger)
	e.ctrl = NewController(e.machine, res, s, ControllerConfig{
		Actor:            cfg.Actor,
		Measurer:         cfg.Measurer,
		Visual:           profiler.Config(),
		Placement:        cfg.Placement,
		SpotlightPadding: cfg.SpotlightPadding,
		Timing:           cfg.Timing,
		Viewport:         cfg.Viewport,
		Logger:           logger,
	})
	e.auto = NewAutoStart(cfg.AutoStart, routes, store, s, e.StartTour, e.IsTourActive, cfg.Session, logger)
	e.help = NewHelpCenter(cfg.Registry, routes, store, e.machine, s, cfg.Navigator, cfg.Help, logger)
	return e, nil
}

// StartTour starts tourID from its first step. Unknown ids are logged and
// ignored.
func (e *Engine) StartTour(tourID string) bool { return e.machine.Start(tourID) }

// SkipTour abandons the active tour without marking it completed.
func (e *Engine) SkipTour() bool { return e.machine.Skip() }

// CompleteTour marks the active tour completed and closes it.
func (e *Engine) CompleteTour() bool { return e.machine.Complete() }

// NextStep advances the active tour.
func (e *Engine) NextStep() bool { return e.machine.Next() }

// PrevStep steps the active tour back.
func (e *Engine) PrevStep() bool { return e.machine.Prev() }

// IsTourActive reports whether a tour is running.
func (e *Engine) IsTourActive() bool { return e.machine.Active() }

// CurrentStepDescriptor describes the active step.
func (e *Engine) CurrentStepDescriptor() (StepDescriptor, bool) {
	def, ok := e.machine.Tour()
	if !ok {
		return StepDescriptor{}, false
	}
	return describe(def, e.machine.State().StepIndex), true
}

// IsTourCompleted reports whether tourID was ever completed.
func (e *Engine) IsTourCompleted(tourID string) bool { return e.store.IsCompleted(tourID) }

// State returns the state machine's state.
func (e *Engine) State() State { return e.machine.State() }

// Frame returns the most recently computed overlay frame.
func (e *Engine) Frame() Frame { return e.ctrl.Frame() }

// OnFrame registers fn to receive every recomputed frame.
func (e *Engine) OnFrame(fn func(Frame)) { e.ctrl.OnFrame(fn) }

// OnStateChange registers fn to run after every state transition.
func (e *Engine) OnStateChange(fn func(State)) { e.machine.OnChange(fn) }

// SetViewport reports a new viewport size (debounced).
func (e *Engine) SetViewport(vp layout.Viewport) { e.ctrl.SetViewport(vp) }

// OnScroll reports that the page scrolled (debounced).
func (e *Engine) OnScroll() { e.ctrl.OnScroll() }

// VisitPage tells the engine the visitor arrived on path. It returns the
// tour scheduled to auto-start, if any.
func (e *Engine) VisitPage(path string) string {
	e.path = path
	return e.auto.OnPageVisit(path)
}

// CurrentPage returns the last path passed to VisitPage.
func (e *Engine) CurrentPage() string { return e.path }

// HelpCenter returns the help center.
func (e *Engine) HelpCenter() *HelpCenter { return e.help }

// Routes returns the page/tour routing table.
func (e *Engine) Routes() tour.Routes { return e.routes }

// Registry returns the tour catalog.
func (e *Engine) Registry() *tour.Registry { return e.reg }

// Store returns the progress store.
func (e *Engine) Store() *progress.Store { return e.store }

// Tier returns the session performance tier.
func (e *Engine) Tier() capability.Tier { return e.profiler.Tier() }

// Keys returns the active key map.
func (e *Engine) Keys() KeyMap { return e.keys }

// Close cancels every pending timer. The engine must not be used after.
func (e *Engine) Close() {
	e.auto.Cancel()
	e.help.Cancel()
	e.ctrl.Close()
}
