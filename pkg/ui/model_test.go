package ui

import (
	"sort"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/tourkit/pkg/capability"
	"github.com/vanderheijden86/tourkit/pkg/engine"
	"github.com/vanderheijden86/tourkit/pkg/progress"
	"github.com/vanderheijden86/tourkit/pkg/sched"
	"github.com/vanderheijden86/tourkit/pkg/tour"
)

// clock stands in for the bubbletea runtime: it records the ticks the model
// asks for and delivers them in due order.
type clock struct {
	now time.Duration
	seq int
	due []dueTick
}

type dueTick struct {
	at  time.Duration
	seq int
	id  uint64
}

func (c *clock) tick(t sched.Timer) tea.Cmd {
	c.seq++
	c.due = append(c.due, dueTick{at: c.now + t.Delay, seq: c.seq, id: t.ID})
	return nil
}

func (c *clock) advance(t *testing.T, m Model, d time.Duration) Model {
	t.Helper()
	target := c.now + d
	for {
		sort.SliceStable(c.due, func(i, j int) bool {
			if c.due[i].at != c.due[j].at {
				return c.due[i].at < c.due[j].at
			}
			return c.due[i].seq < c.due[j].seq
		})
		if len(c.due) == 0 || c.due[0].at > target {
			break
		}
		next := c.due[0]
		c.due = c.due[1:]
		c.now = next.at
		m = update(m, timerMsg{id: next.id})
	}
	c.now = target
	return m
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m = update(m, msg)
	}
	return m
}

type hostOpts struct {
	reg   *tour.Registry
	store *progress.Store
	pages []Page
	start string
}

func newHost(t *testing.T, o hostOpts) (Model, *clock) {
	t.Helper()
	if o.reg == nil {
		reg, err := tour.BuiltinRegistry()
		if err != nil {
			t.Fatalf("BuiltinRegistry: %v", err)
		}
		o.reg = reg
	}
	if o.store == nil {
		o.store = progress.NewStore(progress.NewMemoryKV())
	}
	m, err := New(Options{
		Engine: engine.Config{
			Registry: o.reg,
			Store:    o.store,
			Profiler: capability.NewProfiler(nil, capability.WithForcedTier(capability.TierHigh)),
		},
		Pages:     o.pages,
		StartPath: o.start,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(m.Close)

	c := &clock{}
	m.tick = c.tick
	m.Init()
	return m, c
}

func activeTour(m Model) string {
	st := m.Engine().State()
	if !m.Engine().IsTourActive() {
		return ""
	}
	return st.TourID
}

func TestModel_FirstSessionAutoStart(t *testing.T) {
	m, c := newHost(t, hostOpts{start: "/dashboard"})

	m = c.advance(t, m, 799*time.Millisecond)
	if m.Engine().IsTourActive() {
		t.Fatal("tour started before the first-session delay")
	}
	m = c.advance(t, m, time.Millisecond)
	if got := activeTour(m); got != "dashboard-intro" {
		t.Fatalf("expected dashboard-intro to auto-start, got %q", got)
	}
	if !strings.Contains(m.View(), "Welcome to ThesisFlow!") {
		t.Error("expected the welcome callout in the view")
	}

	m = press(m, "right")
	m = c.advance(t, m, time.Second)
	f := m.Engine().Frame()
	if f.Step.Index != 1 || !f.HasSpotlight || f.Resolving {
		t.Errorf("expected a resolved spotlight on step 2, got index=%d spotlight=%v resolving=%v",
			f.Step.Index, f.HasSpotlight, f.Resolving)
	}
	if !strings.Contains(m.View(), "2/") {
		t.Error("expected the step counter in the view")
	}

	m = press(m, "left")
	if d, _ := m.Engine().CurrentStepDescriptor(); d.Index != 0 {
		t.Errorf("expected left to go back, at step %d", d.Index)
	}

	m = press(m, "esc")
	if m.Engine().IsTourActive() {
		t.Error("esc should skip the tour")
	}
	if m.Engine().IsTourCompleted("dashboard-intro") {
		t.Error("skipping must not mark the tour completed")
	}
}

func TestModel_PageKeysNavigate(t *testing.T) {
	m, c := newHost(t, hostOpts{start: "/dashboard"})

	m = press(m, "2")
	if got := m.Site().CurrentPath(); got != "/literature" {
		t.Fatalf("expected /literature, got %q", got)
	}
	if got := m.Engine().CurrentPage(); got != "/literature" {
		t.Errorf("engine did not see the navigation, at %q", got)
	}

	// The pending first-session start was dropped by the navigation.
	m = c.advance(t, m, 500*time.Millisecond)
	if got := activeTour(m); got != "literature-upload" {
		t.Errorf("expected the page tour, got %q", got)
	}
	m = c.advance(t, m, time.Second)
	if got := activeTour(m); got != "literature-upload" {
		t.Errorf("expected the page tour to keep running, got %q", got)
	}
}

func TestModel_HelpLaunchOnCurrentPage(t *testing.T) {
	m, c := newHost(t, hostOpts{start: "/groups"})

	m = press(m, "?")
	if m.focus != focusHelp {
		t.Fatal("expected the help panel to open")
	}
	if len(m.entries) != 1 || m.entries[0].ID != "groups-join" {
		t.Fatalf("expected only the page tour listed, got %+v", m.entries)
	}
	if !strings.Contains(m.View(), "Tours") {
		t.Error("expected the help panel in the view")
	}

	m = press(m, "enter")
	if m.focus != focusPage {
		t.Error("launching should close the panel")
	}
	m = c.advance(t, m, 300*time.Millisecond)
	if got := activeTour(m); got != "groups-join" {
		t.Fatalf("expected groups-join after the close delay, got %q", got)
	}

	// The page's own auto-start fires at 500ms and must not restart the tour.
	m = press(m, "right")
	m = c.advance(t, m, time.Second)
	if d, _ := m.Engine().CurrentStepDescriptor(); d.Index != 1 {
		t.Errorf("expected the launched tour to keep its position, at step %d", d.Index)
	}
}

func TestModel_HelpLaunchNavigates(t *testing.T) {
	pages := append(DemoPages(), Page{Path: "/settings", Title: "Settings", Height: 10})
	m, c := newHost(t, hostOpts{pages: pages, start: "/settings"})

	m = press(m, "?")
	if len(m.entries) != 5 {
		t.Fatalf("expected every tour listed off-route, got %d", len(m.entries))
	}
	idx := -1
	for i, e := range m.entries {
		if e.ID == "projects-management" {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatal("projects-management not listed")
	}
	for i := 0; i < idx; i++ {
		m = press(m, "down")
	}
	m = press(m, "enter")

	m = c.advance(t, m, 299*time.Millisecond)
	if m.Site().CurrentPath() != "/settings" {
		t.Fatal("navigated before the panel closed")
	}
	m = c.advance(t, m, time.Millisecond)
	if m.Site().CurrentPath() != "/projects" {
		t.Fatalf("expected navigation to /projects, at %q", m.Site().CurrentPath())
	}
	m = c.advance(t, m, 500*time.Millisecond)
	if got := activeTour(m); got != "projects-management" {
		t.Errorf("expected projects-management after settling, got %q", got)
	}
}

func TestModel_ResetNeedsConfirmation(t *testing.T) {
	store := progress.NewStore(progress.NewMemoryKV())
	store.CompleteTour("groups-join")
	m, _ := newHost(t, hostOpts{store: store, start: "/groups"})

	m = press(m, "?")
	if !m.entries[0].Completed {
		t.Fatal("expected the completed flag in the listing")
	}

	m = press(m, "x", "n")
	if !store.IsCompleted("groups-join") {
		t.Fatal("any key other than x should cancel the reset")
	}
	if m.focus != focusHelp {
		t.Error("cancelling the reset should return to the panel")
	}

	m = press(m, "x")
	if m.focus != focusResetConfirm {
		t.Fatal("expected the confirmation prompt")
	}
	if !strings.Contains(m.View(), "press x again") {
		t.Error("expected the confirmation text in the view")
	}
	m = press(m, "x")
	if store.IsCompleted("groups-join") {
		t.Error("expected progress erased")
	}
	if m.entries[0].Completed {
		t.Error("listing should refresh after the reset")
	}
	if m.status != "progress reset" {
		t.Errorf("unexpected status %q", m.status)
	}
}

func TestModel_ClickActionReveals(t *testing.T) {
	reg := tour.MustRegistry(tour.Definition{
		ID:    "library",
		Title: "Library",
		Route: "/student/project",
		Steps: []tour.Step{
			{Target: dt("library-toggle"), Title: "Open the library", Action: tour.ActionClick},
			{Target: dt("library-panel"), Title: "Your library"},
		},
	})
	m, c := newHost(t, hostOpts{reg: reg, start: "/student/project"})

	m = c.advance(t, m, 500*time.Millisecond)
	if got := activeTour(m); got != "library" {
		t.Fatalf("expected the page tour, got %q", got)
	}
	if _, ok := m.Site().Locate(dt("library-panel")); ok {
		t.Fatal("panel should start hidden")
	}

	m = c.advance(t, m, time.Second)
	if got := m.Site().Clicks(); len(got) != 1 || got[0] != dt("library-toggle") {
		t.Fatalf("expected one click on the toggle, got %v", got)
	}

	m = press(m, "right")
	m = c.advance(t, m, time.Second)
	if f := m.Engine().Frame(); !f.HasSpotlight || f.Step.Index != 1 {
		t.Errorf("expected the revealed panel spotlighted, got %+v", f)
	}

	m = press(m, "enter")
	if !m.Engine().IsTourCompleted("library") {
		t.Error("enter on the last step should complete the tour")
	}
}

func TestModel_WindowResize(t *testing.T) {
	m, _ := newHost(t, hostOpts{start: "/projects"})

	m = update(m, tea.WindowSizeMsg{Width: 60, Height: 20})
	if vp := m.viewport(); vp.Width != 60 || vp.Height != 18 {
		t.Errorf("unexpected viewport %+v", vp)
	}
	if rows := strings.Count(m.View(), "\n") + 1; rows != 20 {
		t.Errorf("expected the view to fill 20 rows, got %d", rows)
	}
}

func TestModel_ScrollKeys(t *testing.T) {
	m, _ := newHost(t, hostOpts{start: "/student/project"})
	m = press(m, "j", "j", "j")
	if m.Site().ScrollY() != 3 {
		t.Errorf("expected scroll 3, got %v", m.Site().ScrollY())
	}
	m = press(m, "k")
	if m.Site().ScrollY() != 2 {
		t.Errorf("expected scroll 2, got %v", m.Site().ScrollY())
	}
}

func TestModel_Quit(t *testing.T) {
	m, _ := newHost(t, hostOpts{start: "/projects"})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}
