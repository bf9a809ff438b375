package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/progress"
	"github.com/vanderheijden86/tourkit/pkg/sched"
	"github.com/vanderheijden86/tourkit/pkg/tour"
)

// AutoStartConfig tunes the auto-start policy.
type AutoStartConfig struct {
	// FirstSessionTour is forced on the first session when the visitor
	// reaches FirstSessionPath.
	FirstSessionTour  string        `yaml:"first_session_tour"`
	FirstSessionPath  string        `yaml:"first_session_path"`
	FirstSessionDelay time.Duration `yaml:"first_session_delay"`
	// PageDelay is the wait before a page's own tour starts on first visit.
	PageDelay time.Duration `yaml:"page_delay"`
	Disabled  bool          `yaml:"disabled"`
}

// DefaultAutoStartConfig returns the stock policy.
func DefaultAutoStartConfig() AutoStartConfig {
	return AutoStartConfig{
		FirstSessionTour:  tour.DashboardIntro,
		FirstSessionPath:  "/dashboard",
		FirstSessionDelay: 800 * time.Millisecond,
		PageDelay:         500 * time.Millisecond,
	}
}

// withDefaults fills every unset field from DefaultAutoStartConfig.
func (c AutoStartConfig) withDefaults() AutoStartConfig {
	def := DefaultAutoStartConfig()
	if c.FirstSessionTour == "" {
		c.FirstSessionTour = def.FirstSessionTour
	}
	if c.FirstSessionPath == "" {
		c.FirstSessionPath = def.FirstSessionPath
	}
	if c.FirstSessionDelay <= 0 {
		c.FirstSessionDelay = def.FirstSessionDelay
	}
	if c.PageDelay <= 0 {
		c.PageDelay = def.PageDelay
	}
	return c
}

// SessionSignal reports whether the signed-in user is in their first
// authenticated session. A nil signal defers to the progress store alone.
type SessionSignal func() bool

// AutoStart decides, per page visit, whether a tour begins by itself.
type AutoStart struct {
	cfg     AutoStartConfig
	routes  tour.Routes
	store   *progress.Store
	start   func(id string) bool
	active  func() bool
	s       sched.Scheduler
	session SessionSignal
	logger  *zap.Logger

	pending sched.Group
	current string
}

// NewAutoStart returns a policy that calls start when a tour should begin.
// Unset fields of cfg take their stock values.
// active reports whether some tour is already running; scheduled starts
// are dropped in that case.
func NewAutoStart(cfg AutoStartConfig, routes tour.Routes, store *progress.Store, s sched.Scheduler,
	start func(id string) bool, active func() bool, session SessionSignal, logger *zap.Logger) *AutoStart {
	if logger == nil {
		logger = zap.NewNop()
	}
	if active == nil {
		active = func() bool { return false }
	}
	return &AutoStart{
		cfg:     cfg.withDefaults(),
		routes:  routes,
		store:   store,
		start:   start,
		active:  active,
		s:       s,
		session: session,
		logger:  logger,
	}
}

// FirstSession reports whether the visitor is in their first session.
func (a *AutoStart) FirstSession() bool {
	if !a.store.IsFirstSession() {
		return false
	}
	return a.session == nil || a.session()
}

// OnPageVisit handles arrival on path. Any start still pending from the
// previous page is cancelled. It returns the tour id scheduled to start,
// if any.
func (a *AutoStart) OnPageVisit(path string) string {
	a.pending.CancelAll()
	a.current = path
	if a.cfg.Disabled {
		a.store.MarkPageVisited(path)
		return ""
	}

	first := a.FirstSession()
	scheduled := ""

	if first && a.cfg.FirstSessionTour != "" && path == a.cfg.FirstSessionPath {
		a.schedule(a.cfg.FirstSessionTour, a.cfg.FirstSessionDelay)
		scheduled = a.cfg.FirstSessionTour
	}

	if !a.store.MarkPageVisited(path) {
		return scheduled
	}
	if first && path == a.cfg.FirstSessionPath {
		return scheduled
	}

	id, ok := a.routes.TourFor(path)
	if !ok || !a.shouldStart(id, first) {
		return scheduled
	}
	a.schedule(id, a.cfg.PageDelay)
	return id
}

func (a *AutoStart) shouldStart(id string, first bool) bool {
	if id == a.cfg.FirstSessionTour {
		return first
	}
	return !a.store.IsCompleted(id)
}

func (a *AutoStart) schedule(id string, d time.Duration) {
	path := a.current
	a.logger.Debug("auto-start scheduled", zap.String("tour", id), zap.String("path", path), zap.Duration("delay", d))
	a.pending.Add(a.s.AfterFunc(d, func() {
		if a.current != path {
			return
		}
		if a.active() {
			a.logger.Debug("auto-start dropped, a tour is already running", zap.String("tour", id))
			return
		}
		a.start(id)
	}))
}

// Cancel drops any pending start.
func (a *AutoStart) Cancel() int {
	return a.pending.CancelAll()
}
