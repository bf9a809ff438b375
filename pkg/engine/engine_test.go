package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"

	"github.com/vanderheijden86/tourkit/pkg/capability"
	"github.com/vanderheijden86/tourkit/pkg/layout"
	"github.com/vanderheijden86/tourkit/pkg/metrics"
	"github.com/vanderheijden86/tourkit/pkg/progress"
	"github.com/vanderheijden86/tourkit/pkg/sched"
	"github.com/vanderheijden86/tourkit/pkg/tour"
)

// fakePage is a host page with a fixed set of rendered elements.
type fakePage struct {
	rects map[string]layout.Rect
	calls map[string]int
}

func newFakePage() *fakePage {
	return &fakePage{rects: make(map[string]layout.Rect), calls: make(map[string]int)}
}

func (p *fakePage) Locate(locator string) (layout.Rect, bool) {
	p.calls[locator]++
	r, ok := p.rects[locator]
	return r, ok
}

type fakeActor struct {
	clicks  []string
	scrolls []string
}

func (a *fakeActor) Click(locator string) error {
	a.clicks = append(a.clicks, locator)
	return nil
}

func (a *fakeActor) ScrollIntoView(locator string) error {
	a.scrolls = append(a.scrolls, locator)
	return nil
}

type fakeNavigator struct {
	visited []string
	err     error
}

func (n *fakeNavigator) Navigate(path string) error {
	if n.err != nil {
		return n.err
	}
	n.visited = append(n.visited, path)
	return nil
}

func pulseOff() *bool { b := false; return &b }

func testCatalog() *tour.Registry {
	return tour.MustRegistry(
		tour.Definition{
			ID:    tour.DashboardIntro,
			Title: "Dashboard",
			Route: "/dashboard",
			Steps: []tour.Step{
				{Target: tour.BodyTarget, Title: "Welcome", Placement: layout.PlacementCenter},
				{Target: "#stats", Title: "Stats"},
			},
		},
		tour.Definition{
			ID:    "alpha",
			Title: "Alpha",
			Steps: []tour.Step{
				{Target: tour.BodyTarget, Title: "Intro", Placement: layout.PlacementCenter},
				{Target: "#one", Title: "One"},
				{Target: "#two", Title: "Two", SpotlightShape: layout.ShapeCircle},
			},
		},
		tour.Definition{
			ID:    "beta",
			Title: "Beta",
			Route: "/beta",
			Steps: []tour.Step{
				{Target: "#b1", Title: "B1"},
				{Target: "#b2", Title: "B2", HighlightPulse: pulseOff()},
			},
		},
		tour.Definition{
			ID:    "gamma",
			Title: "Gamma",
			Steps: []tour.Step{
				{Target: "#toggle", Title: "Toggle", Action: tour.ActionClick},
				{Target: "#list", Title: "List", Action: tour.ActionScroll},
			},
		},
	)
}

type harness struct {
	e     *Engine
	page  *fakePage
	actor *fakeActor
	nav   *fakeNavigator
	clock *sched.Manual
	kv    *progress.MemoryKV
}

func newHarness(t *testing.T, tier capability.Tier) *harness {
	t.Helper()
	h := &harness{
		page:  newFakePage(),
		actor: &fakeActor{},
		nav:   &fakeNavigator{},
		clock: sched.NewManual(),
		kv:    progress.NewMemoryKV(),
	}
	e, err := New(Config{
		Registry:  testCatalog(),
		Store:     progress.NewStore(h.kv),
		Locator:   h.page,
		Actor:     h.actor,
		Navigator: h.nav,
		Scheduler: h.clock,
		Profiler:  capability.NewProfiler(nil, capability.WithForcedTier(tier)),
		Viewport:  layout.Viewport{Width: 1280, Height: 800},
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	t.Cleanup(e.Close)
	h.e = e
	return h
}

func TestNew_RequiresRegistryAndLocator(t *testing.T) {
	if _, err := New(Config{Locator: newFakePage()}); err == nil {
		t.Error("expected error without registry")
	}
	if _, err := New(Config{Registry: testCatalog()}); err == nil {
		t.Error("expected error without locator")
	}
	if _, err := New(Config{Registry: testCatalog(), Locator: newFakePage()}); err == nil {
		t.Error("expected error without scheduler")
	}
}

// Run with -race: retry timers fire on wall-clock time but every callback
// and every engine call happens on the loop goroutine.
func TestEngine_OnEventLoop(t *testing.T) {
	q := sched.NewQueue()
	loop := sched.NewLoop(q)
	e, err := New(Config{
		Registry:   testCatalog(),
		Locator:    newFakePage(),
		Scheduler:  q,
		RetryDelay: time.Millisecond,
		Profiler:   capability.NewProfiler(nil, capability.WithForcedTier(capability.TierHigh)),
		Viewport:   layout.Viewport{Width: 1280, Height: 800},
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = loop.Run(ctx)
		close(stopped)
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	on := func(fn func()) {
		t.Helper()
		done := make(chan struct{})
		if err := loop.Post(ctx, func() { fn(); close(done) }); err != nil {
			t.Fatal(err)
		}
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("loop did not run the event")
		}
	}

	on(func() {
		e.StartTour("alpha")
		e.NextStep()
	})
	time.Sleep(30 * time.Millisecond)

	var f Frame
	on(func() {
		f = e.Frame()
		e.NextStep()
		e.SetViewport(layout.Viewport{Width: 900, Height: 700})
	})
	if f.Resolving || f.Target != nil || !f.Centered() {
		t.Errorf("expected the exhausted step to degrade to a centred callout, got %+v", f)
	}
	time.Sleep(10 * time.Millisecond)
	on(func() {
		if st := e.State(); st.StepIndex != 2 {
			t.Errorf("expected step 2, got %+v", st)
		}
		e.Close()
	})
}

func TestNew_PartialTimingKeepsOtherDefaults(t *testing.T) {
	page := newFakePage()
	page.rects["#toggle"] = layout.Rect{Left: 10, Top: 10, Width: 20, Height: 20}
	actor := &fakeActor{}
	nav := &fakeNavigator{}
	clock := sched.NewManual()
	e, err := New(Config{
		Registry:  testCatalog(),
		Locator:   page,
		Actor:     actor,
		Navigator: nav,
		Scheduler: clock,
		Profiler:  capability.NewProfiler(nil, capability.WithForcedTier(capability.TierHigh)),
		Timing:    Timing{Debounce: 50 * time.Millisecond},
		AutoStart: AutoStartConfig{PageDelay: time.Second},
		Help:      HelpTiming{CloseDelay: 10 * time.Millisecond},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	e.StartTour("gamma")
	clock.Advance(time.Millisecond)
	if len(actor.clicks) != 0 {
		t.Fatal("click fired without the default action delay")
	}
	clock.Advance(DefaultTiming().ActionDelay)
	if len(actor.clicks) != 1 {
		t.Errorf("expected the click after the default action delay, got %v", actor.clicks)
	}
	e.SkipTour()

	// The first-session tour and its delay still come from the defaults.
	if got := e.VisitPage("/dashboard"); got != tour.DashboardIntro {
		t.Fatalf("expected %s scheduled, got %q", tour.DashboardIntro, got)
	}
	clock.Advance(DefaultAutoStartConfig().FirstSessionDelay)
	if e.State().TourID != tour.DashboardIntro {
		t.Errorf("expected the first-session tour running, got %+v", e.State())
	}
	e.SkipTour()

	if err := e.HelpCenter().Launch("beta", "/dashboard"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(10 * time.Millisecond)
	if diff := cmp.Diff([]string{"/beta"}, nav.visited); diff != "" {
		t.Fatalf("expected navigation after the configured close delay (-want +got):\n%s", diff)
	}
	clock.Advance(DefaultHelpTiming().NavigateSettle - time.Millisecond)
	if e.IsTourActive() {
		t.Error("tour started before the default navigate settle")
	}
	clock.Advance(time.Millisecond)
	if e.State().TourID != "beta" {
		t.Errorf("expected beta running, got %+v", e.State())
	}
}

func TestStartTour_AlwaysResetsToFirstStep(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	e := h.e

	e.StartTour("alpha")
	e.NextStep()
	e.NextStep()
	e.CompleteTour()
	if !e.IsTourCompleted("alpha") {
		t.Fatal("expected alpha completed")
	}

	if !e.StartTour("alpha") {
		t.Fatal("restart should succeed")
	}
	if got := e.State(); got != (State{Active: true, TourID: "alpha", StepIndex: 0}) {
		t.Errorf("expected fresh start, got %+v", got)
	}

	e.NextStep()
	e.StartTour("alpha")
	if e.State().StepIndex != 0 {
		t.Errorf("restarting the running tour should reset to step 0, got %d", e.State().StepIndex)
	}
}

func TestStartTour_UnknownIsNoop(t *testing.T) {
	metrics.ResetAll()
	h := newHarness(t, capability.TierHigh)

	h.e.StartTour("beta")
	if h.e.StartTour("nope") {
		t.Error("unknown tour should not start")
	}
	if got := h.e.State(); got.TourID != "beta" {
		t.Errorf("unknown start must not disturb state, got %+v", got)
	}
	if metrics.UnknownTour.Value() != 1 {
		t.Errorf("expected unknown start to be counted, got %d", metrics.UnknownTour.Value())
	}
}

func TestNextPrev_ClampAtEnds(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	e := h.e
	e.StartTour("beta")

	if e.PrevStep() {
		t.Error("prev at index 0 should be a no-op")
	}
	e.NextStep()
	for i := 0; i < 3; i++ {
		if e.NextStep() {
			t.Error("next at last index should be a no-op")
		}
	}
	if e.State().StepIndex != 1 {
		t.Errorf("expected to stay on last step, got %d", e.State().StepIndex)
	}
}

func TestSkip_DoesNotComplete(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	h.e.StartTour("beta")
	h.e.SkipTour()

	if h.e.IsTourActive() || h.e.IsTourCompleted("beta") {
		t.Errorf("skip should deactivate without completing: %+v", h.e.State())
	}
	if !h.e.Store().IsFirstSession() {
		t.Error("skip must not end the first session")
	}
}

func TestCompleteTour_Persists(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	h.e.StartTour("beta")
	h.e.CompleteTour()

	fresh := progress.NewStore(h.kv)
	if !fresh.IsCompleted("beta") || fresh.IsFirstSession() {
		t.Errorf("completion did not round-trip: %+v", fresh.Snapshot())
	}
	if h.e.CompleteTour() {
		t.Error("complete while inactive should be a no-op")
	}
}

func TestCurrentStepDescriptor(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	if _, ok := h.e.CurrentStepDescriptor(); ok {
		t.Error("no descriptor while inactive")
	}
	h.e.StartTour("alpha")
	h.e.NextStep()
	h.e.NextStep()

	got, ok := h.e.CurrentStepDescriptor()
	if !ok {
		t.Fatal("expected descriptor")
	}
	want := StepDescriptor{
		TourID: "alpha", TourTitle: "Alpha", Index: 2, Total: 3,
		Target: "#two", Title: "Two",
		Placement: layout.PlacementBottom, Shape: layout.ShapeCircle,
		CanPrev: true, CanNext: false, IsLast: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestMachine_InvariantsHold(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		reg := testCatalog()
		m := NewMachine(reg, progress.NewStore(progress.NewMemoryKV()), nil)
		ids := append(reg.IDs(), "missing")

		for i := 0; i < 40; i++ {
			switch rapid.IntRange(0, 4).Draw(rt, "op") {
			case 0:
				id := rapid.SampledFrom(ids).Draw(rt, "id")
				started := m.Start(id)
				if started && (m.State().StepIndex != 0 || !m.Active()) {
					rt.Fatalf("start(%s) left %+v", id, m.State())
				}
			case 1:
				m.Next()
			case 2:
				m.Prev()
			case 3:
				m.Skip()
			case 4:
				m.Complete()
			}

			s := m.State()
			if !s.Active && (s.TourID != "" || s.StepIndex != 0) {
				rt.Fatalf("inactive state carries data: %+v", s)
			}
			if s.Active {
				n := reg.StepCount(s.TourID)
				if s.StepIndex < 0 || s.StepIndex >= n {
					rt.Fatalf("step index %d out of range [0,%d)", s.StepIndex, n)
				}
			}
		}
	})
}

func TestFirstSession_AutoStartsDashboardOnce(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	e := h.e

	starts := 0
	e.OnStateChange(func(s State) {
		if s.Active && s.TourID == tour.DashboardIntro && s.StepIndex == 0 {
			starts++
		}
	})

	if got := e.VisitPage("/dashboard"); got != tour.DashboardIntro {
		t.Fatalf("expected dashboard tour scheduled, got %q", got)
	}
	h.clock.Advance(799 * time.Millisecond)
	if e.IsTourActive() {
		t.Fatal("tour started before the first-session delay")
	}
	h.clock.Advance(time.Millisecond)
	if starts != 1 || e.State().TourID != tour.DashboardIntro {
		t.Fatalf("expected one dashboard start, got %d (%+v)", starts, e.State())
	}

	e.NextStep()
	e.CompleteTour()
	e.VisitPage("/elsewhere")
	if got := e.VisitPage("/dashboard"); got != "" {
		t.Errorf("expected nothing scheduled after completion, got %q", got)
	}
	h.clock.Advance(5 * time.Second)
	if starts != 1 || e.IsTourActive() {
		t.Errorf("dashboard tour restarted after completion (starts=%d)", starts)
	}
}

func TestFirstSession_RespectsSessionSignal(t *testing.T) {
	page := newFakePage()
	clock := sched.NewManual()
	e, err := New(Config{
		Registry:  testCatalog(),
		Locator:   page,
		Scheduler: clock,
		Profiler:  capability.NewProfiler(nil, capability.WithForcedTier(capability.TierLow)),
		Session:   func() bool { return false },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if got := e.VisitPage("/dashboard"); got != "" {
		t.Errorf("signed-out visitor should not get the first-session tour, got %q", got)
	}
}

func TestAutoStart_PageTourOncePerPage(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	e := h.e

	if got := e.VisitPage("/beta"); got != "beta" {
		t.Fatalf("expected beta scheduled, got %q", got)
	}
	h.clock.Advance(500 * time.Millisecond)
	if e.State().TourID != "beta" {
		t.Fatalf("expected beta running, got %+v", e.State())
	}
	e.SkipTour()

	e.VisitPage("/other")
	if got := e.VisitPage("/beta"); got != "" {
		t.Errorf("revisit should not auto-start, got %q", got)
	}
}

func TestAutoStart_NavigationCancelsPendingStart(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	e := h.e

	e.VisitPage("/beta")
	h.clock.Advance(300 * time.Millisecond)
	e.VisitPage("/other")
	h.clock.Advance(time.Second)

	if e.IsTourActive() {
		t.Errorf("leaving the page should cancel the pending start, got %+v", e.State())
	}
}

func TestAutoStart_SkipsCompletedTours(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	h.e.Store().CompleteTour("beta")

	if got := h.e.VisitPage("/beta"); got != "" {
		t.Errorf("completed tour should not auto-start, got %q", got)
	}
}

func TestAutoStart_DoesNotInterruptRunningTour(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	e := h.e

	e.VisitPage("/beta")
	e.StartTour("alpha")
	h.clock.Advance(time.Second)
	if e.State().TourID != "alpha" {
		t.Errorf("auto-start replaced a running tour: %+v", e.State())
	}
}

func TestCancelledRetry_NoFurtherLookups(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	e := h.e

	e.StartTour("alpha")
	e.NextStep() // "#one" is missing: attempt 1 runs, attempt 2 pending
	if h.page.calls["#one"] != 1 {
		t.Fatalf("expected one immediate lookup, got %d", h.page.calls["#one"])
	}

	e.SkipTour()
	h.clock.Advance(5 * time.Second)

	if h.page.calls["#one"] != 1 {
		t.Errorf("lookups continued after skip: %d", h.page.calls["#one"])
	}
	if h.clock.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", h.clock.Pending())
	}
}

func TestStepChange_CancelsPreviousChain(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	h.page.rects["#two"] = layout.Rect{Left: 100, Top: 100, Width: 50, Height: 50}
	e := h.e

	e.StartTour("alpha")
	e.NextStep()
	h.clock.Advance(200 * time.Millisecond)
	e.NextStep()
	h.clock.Advance(5 * time.Second)

	if h.page.calls["#one"] != 2 {
		t.Errorf("expected the #one chain to stop at 2 lookups, got %d", h.page.calls["#one"])
	}
	if f := e.Frame(); f.Target == nil || f.Step.Target != "#two" {
		t.Errorf("expected #two frame, got %+v", f)
	}
}

func TestMissingTarget_DegradesToCentered(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	e := h.e

	e.StartTour("alpha")
	e.NextStep()
	if f := e.Frame(); !f.Resolving {
		t.Error("expected resolving frame while the chain runs")
	}

	h.clock.Advance(time.Second)

	f := e.Frame()
	if h.page.calls["#one"] != 5 {
		t.Errorf("expected 5 lookups, got %d", h.page.calls["#one"])
	}
	if f.Resolving || f.Target != nil || f.HasSpotlight || !f.Centered() {
		t.Errorf("expected centred untargeted frame, got %+v", f)
	}
	if !f.Active || f.Step.Index != 1 {
		t.Errorf("tour should stay usable on the failed step, got %+v", f)
	}
}

func TestFrame_TargetedStep(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	target := layout.Rect{Left: 100, Top: 100, Width: 50, Height: 50}
	h.page.rects["#two"] = target
	e := h.e

	e.StartTour("alpha")
	e.NextStep()
	e.NextStep()

	f := e.Frame()
	if f.Target == nil || *f.Target != target {
		t.Fatalf("expected target %v, got %v", target, f.Target)
	}
	if !f.HasSpotlight || f.Spotlight.Shape != layout.ShapeCircle {
		t.Errorf("expected circle spotlight, got %+v", f.Spotlight)
	}
	wantSpot, _ := layout.ComputeSpotlight(target, layout.ShapeCircle, layout.DefaultSpotlightPadding)
	if diff := cmp.Diff(wantSpot, f.Spotlight); diff != "" {
		t.Errorf("spotlight mismatch (-want +got):\n%s", diff)
	}
	wantPos := layout.Place(target, DefaultCalloutSize, layout.PlacementBottom, f.Viewport, layout.DefaultOptions())
	if f.Callout != wantPos {
		t.Errorf("expected callout %+v, got %+v", wantPos, f.Callout)
	}
	if !f.Pulse {
		t.Error("expected pulse on a high tier")
	}
	if f.Visual != capability.ConfigFor(capability.TierHigh) {
		t.Errorf("unexpected visual config %+v", f.Visual)
	}
}

func TestFrame_PulseGating(t *testing.T) {
	low := newHarness(t, capability.TierLow)
	low.page.rects["#b1"] = layout.Rect{Left: 10, Top: 10, Width: 10, Height: 10}
	low.e.StartTour("beta")
	if low.e.Frame().Pulse {
		t.Error("low tier must not pulse")
	}

	high := newHarness(t, capability.TierHigh)
	high.page.rects["#b2"] = layout.Rect{Left: 10, Top: 10, Width: 10, Height: 10}
	high.e.StartTour("beta")
	high.e.NextStep()
	if high.e.Frame().Pulse {
		t.Error("a step with highlight_pulse false must not pulse")
	}
}

func TestResize_IsDebounced(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	h.page.rects["#b1"] = layout.Rect{Left: 10, Top: 10, Width: 10, Height: 10}
	e := h.e
	e.StartTour("beta")

	frames := 0
	e.OnFrame(func(Frame) { frames++ })

	moved := layout.Rect{Left: 400, Top: 300, Width: 10, Height: 10}
	h.page.rects["#b1"] = moved
	vp := layout.Viewport{Width: 1024, Height: 768}
	e.SetViewport(vp)
	h.clock.Advance(100 * time.Millisecond)
	e.OnScroll()
	h.clock.Advance(100 * time.Millisecond)
	e.SetViewport(vp)
	h.clock.Advance(299 * time.Millisecond)

	if h.page.calls["#b1"] != 1 || frames != 0 {
		t.Fatalf("recompute ran before the quiet period: lookups=%d frames=%d", h.page.calls["#b1"], frames)
	}
	h.clock.Advance(time.Millisecond)
	if h.page.calls["#b1"] != 2 || frames != 1 {
		t.Errorf("expected one coalesced recompute, lookups=%d frames=%d", h.page.calls["#b1"], frames)
	}
	if f := e.Frame(); f.Target == nil || *f.Target != moved || f.Viewport != vp {
		t.Errorf("frame not refreshed: %+v", f)
	}
}

func TestResize_DuringRetryDoesNotRestartBudget(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	e := h.e
	e.StartTour("alpha")
	e.NextStep()

	e.SetViewport(layout.Viewport{Width: 800, Height: 600})
	h.clock.Advance(5 * time.Second)

	if h.page.calls["#one"] != 5 {
		t.Errorf("resize during retry must not add lookups, got %d", h.page.calls["#one"])
	}
}

func TestClickAction(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	h.page.rects["#toggle"] = layout.Rect{Left: 10, Top: 10, Width: 20, Height: 20}
	e := h.e
	e.StartTour("gamma")

	h.clock.Advance(299 * time.Millisecond)
	if len(h.actor.clicks) != 0 {
		t.Fatal("click fired early")
	}
	h.clock.Advance(time.Millisecond)
	if diff := cmp.Diff([]string{"#toggle"}, h.actor.clicks); diff != "" {
		t.Fatalf("clicks (-want +got):\n%s", diff)
	}
	if h.page.calls["#toggle"] != 1 {
		t.Fatalf("unexpected lookups before settle: %d", h.page.calls["#toggle"])
	}
	h.clock.Advance(300 * time.Millisecond)
	if h.page.calls["#toggle"] != 2 {
		t.Errorf("expected a re-resolve after the click settled, got %d lookups", h.page.calls["#toggle"])
	}
}

func TestClickAction_CancelledByStepChange(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	h.page.rects["#toggle"] = layout.Rect{Width: 20, Height: 20}
	e := h.e
	e.StartTour("gamma")
	h.clock.Advance(100 * time.Millisecond)
	e.SkipTour()
	h.clock.Advance(time.Second)

	if len(h.actor.clicks) != 0 {
		t.Errorf("click ran after the step was left: %v", h.actor.clicks)
	}
}

func TestScrollAction(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	h.page.rects["#toggle"] = layout.Rect{Width: 20, Height: 20}
	h.page.rects["#list"] = layout.Rect{Top: 2000, Width: 200, Height: 400}
	e := h.e
	e.StartTour("gamma")
	e.NextStep()

	if diff := cmp.Diff([]string{"#list"}, h.actor.scrolls); diff != "" {
		t.Fatalf("scroll should be immediate (-want +got):\n%s", diff)
	}
	h.page.rects["#list"] = layout.Rect{Top: 200, Width: 200, Height: 400}
	h.clock.Advance(500 * time.Millisecond)
	if h.page.calls["#list"] != 2 {
		t.Errorf("expected re-resolve after scroll, got %d lookups", h.page.calls["#list"])
	}
	if f := e.Frame(); f.Target == nil || f.Target.Top != 200 {
		t.Errorf("expected scrolled target, got %+v", f.Target)
	}
}

func TestMissingTarget_SkipsAction(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	h.e.StartTour("gamma")
	h.clock.Advance(5 * time.Second)
	if len(h.actor.clicks) != 0 {
		t.Errorf("action ran without a target: %v", h.actor.clicks)
	}
}

func TestHandleKey(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	e := h.e

	if e.HandleKey(Key("right")) {
		t.Error("keys are ignored while inactive")
	}
	e.StartTour("alpha")

	steps := []struct {
		key      string
		consumed bool
		index    int
	}{
		{"left", false, 0},
		{"right", true, 1},
		{"enter", false, 1},
		{"right", true, 2},
		{"right", false, 2},
		{"left", true, 1},
		{"right", true, 2},
	}
	for i, s := range steps {
		if got := e.HandleKey(Key(s.key)); got != s.consumed {
			t.Errorf("step %d: %s consumed=%v, want %v", i, s.key, got, s.consumed)
		}
		if e.State().StepIndex != s.index {
			t.Errorf("step %d: index %d, want %d", i, e.State().StepIndex, s.index)
		}
	}

	if !e.HandleKey(Key("enter")) || e.IsTourActive() || !e.IsTourCompleted("alpha") {
		t.Error("enter on the last step should complete the tour")
	}

	e.StartTour("beta")
	if !e.HandleKey(Key("esc")) || e.IsTourActive() || e.IsTourCompleted("beta") {
		t.Error("esc should skip without completing")
	}
}

func TestHelpCenter_List(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	h.e.Store().CompleteTour("beta")
	hc := h.e.HelpCenter()

	onBeta := hc.List("/beta")
	if len(onBeta) != 1 || onBeta[0].ID != "beta" || !onBeta[0].Completed || onBeta[0].Route != "/beta" {
		t.Errorf("expected only beta on /beta, got %+v", onBeta)
	}
	if all := hc.List("/unmapped"); len(all) != 4 {
		t.Errorf("expected every tour on an unmapped page, got %d", len(all))
	}
}

func TestHelpCenter_LaunchNavigatesFirst(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	hc := h.e.HelpCenter()

	if err := hc.Launch("beta", "/home"); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(300 * time.Millisecond)
	if diff := cmp.Diff([]string{"/beta"}, h.nav.visited); diff != "" {
		t.Fatalf("navigation (-want +got):\n%s", diff)
	}
	if h.e.IsTourActive() {
		t.Fatal("tour started before the page settled")
	}
	h.clock.Advance(500 * time.Millisecond)
	if h.e.State().TourID != "beta" {
		t.Errorf("expected beta running, got %+v", h.e.State())
	}
}

func TestHelpCenter_LaunchOnCurrentPage(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	hc := h.e.HelpCenter()

	if err := hc.Launch("alpha", "/anywhere"); err != nil {
		t.Fatal(err)
	}
	h.clock.Advance(300 * time.Millisecond)
	if len(h.nav.visited) != 0 || h.e.State().TourID != "alpha" {
		t.Errorf("expected in-place start, nav=%v state=%+v", h.nav.visited, h.e.State())
	}

	if err := hc.Launch("missing", "/"); !errors.Is(err, tour.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHelpCenter_NavigationFailureDoesNotStart(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	h.nav.err = errors.New("blocked")
	_ = h.e.HelpCenter().Launch("beta", "/home")
	h.clock.Advance(2 * time.Second)
	if h.e.IsTourActive() {
		t.Error("tour should not start when navigation failed")
	}
}

func TestHelpCenter_Reset(t *testing.T) {
	h := newHarness(t, capability.TierHigh)
	e := h.e
	e.VisitPage("/beta")
	e.StartTour("alpha")
	e.CompleteTour()
	e.StartTour("beta")

	e.HelpCenter().Reset()

	if e.IsTourActive() || e.IsTourCompleted("alpha") || !e.Store().IsFirstSession() || e.Store().IsPageVisited("/beta") {
		t.Errorf("reset left state behind: active=%v snapshot=%+v", e.IsTourActive(), e.Store().Snapshot())
	}
	if keys := h.kv.Keys(); len(keys) != 0 {
		t.Errorf("expected storage cleared, found %v", keys)
	}
}
