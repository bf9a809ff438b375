package engine

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/progress"
	"github.com/vanderheijden86/tourkit/pkg/sched"
	"github.com/vanderheijden86/tourkit/pkg/tour"
)

// Navigator moves the host to another page.
type Navigator interface {
	Navigate(path string) error
}

// HelpTiming holds the help center's delays.
type HelpTiming struct {
	// CloseDelay lets the help panel close before anything else happens.
	CloseDelay time.Duration `yaml:"close_delay"`
	// NavigateSettle is the wait after navigating before the tour starts.
	NavigateSettle time.Duration `yaml:"navigate_settle"`
}

// DefaultHelpTiming returns the stock delays.
func DefaultHelpTiming() HelpTiming {
	return HelpTiming{CloseDelay: 300 * time.Millisecond, NavigateSettle: 500 * time.Millisecond}
}

func (h HelpTiming) withDefaults() HelpTiming {
	def := DefaultHelpTiming()
	if h.CloseDelay <= 0 {
		h.CloseDelay = def.CloseDelay
	}
	if h.NavigateSettle <= 0 {
		h.NavigateSettle = def.NavigateSettle
	}
	return h
}

// TourEntry is one row of the help center listing.
type TourEntry struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Steps       int    `json:"steps"`
	Route       string `json:"route,omitempty"`
	Completed   bool   `json:"completed"`
}

// HelpCenter lets the visitor replay tours and reset progress.
type HelpCenter struct {
	reg    *tour.Registry
	routes tour.Routes
	store  *progress.Store
	m      *Machine
	s      sched.Scheduler
	nav    Navigator
	timing HelpTiming
	logger *zap.Logger

	pending sched.Group
}

// NewHelpCenter returns a help center. nav may be nil, in which case tours
// always start on the current page.
func NewHelpCenter(reg *tour.Registry, routes tour.Routes, store *progress.Store, m *Machine,
	s sched.Scheduler, nav Navigator, timing HelpTiming, logger *zap.Logger) *HelpCenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HelpCenter{reg: reg, routes: routes, store: store, m: m, s: s, nav: nav, timing: timing.withDefaults(), logger: logger}
}

// List returns the tours relevant to currentPath: the page's own tour when
// it has one, every tour otherwise.
func (h *HelpCenter) List(currentPath string) []TourEntry {
	var defs []tour.Definition
	if id, ok := h.routes.TourFor(currentPath); ok {
		if def, ok := h.reg.Get(id); ok {
			defs = []tour.Definition{def}
		}
	}
	if defs == nil {
		defs = h.reg.All()
	}

	out := make([]TourEntry, 0, len(defs))
	for _, d := range defs {
		route, _ := h.routes.PathFor(d.ID)
		out = append(out, TourEntry{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Steps:       d.Len(),
			Route:       route,
			Completed:   h.store.IsCompleted(d.ID),
		})
	}
	return out
}

// Launch starts tourID, navigating to its page first when the visitor is
// elsewhere. The start itself is delayed so the panel can close and the
// page can render.
func (h *HelpCenter) Launch(tourID, currentPath string) error {
	if !h.reg.Has(tourID) {
		return fmt.Errorf("%w: %s", tour.ErrNotFound, tourID)
	}
	h.pending.CancelAll()

	route, hasRoute := h.routes.PathFor(tourID)
	if !hasRoute || route == currentPath || h.nav == nil {
		h.pending.Add(h.s.AfterFunc(h.timing.CloseDelay, func() { h.m.Start(tourID) }))
		return nil
	}

	h.pending.Add(h.s.AfterFunc(h.timing.CloseDelay, func() {
		if err := h.nav.Navigate(route); err != nil {
			h.logger.Warn("help center navigation failed", zap.String("path", route), zap.Error(err))
			return
		}
		h.pending.Add(h.s.AfterFunc(h.timing.NavigateSettle, func() { h.m.Start(tourID) }))
	}))
	return nil
}

// Reset ends any running tour and clears all stored progress.
func (h *HelpCenter) Reset() {
	h.pending.CancelAll()
	h.m.Skip()
	h.store.ResetAll()
}

// Cancel drops a launch that has not started yet.
func (h *HelpCenter) Cancel() int {
	return h.pending.CancelAll()
}
