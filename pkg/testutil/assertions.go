package testutil

import (
	"testing"

	"github.com/vanderheijden86/tourkit/pkg/engine"
	"github.com/vanderheijden86/tourkit/pkg/layout"
	"github.com/vanderheijden86/tourkit/pkg/tour"
	"github.com/vanderheijden86/tourkit/pkg/ui"
)

// epsilon absorbs float rounding in layout comparisons.
const epsilon = 1e-6

// AssertNoDuplicateIDs verifies all tour ids are unique.
func AssertNoDuplicateIDs(t *testing.T, defs []tour.Definition) {
	t.Helper()
	seen := make(map[string]bool)
	for _, d := range defs {
		if seen[d.ID] {
			t.Errorf("duplicate tour ID: %s", d.ID)
		}
		seen[d.ID] = true
	}
}

// AssertTargetsExist verifies every targeted step of every tour names a
// region on the tour's page.
func AssertTargetsExist(t *testing.T, f Fixture) {
	t.Helper()
	for _, d := range f.Tours {
		p, ok := f.Page(d.Route)
		if !ok {
			t.Errorf("tour %s routes to missing page %s", d.ID, d.Route)
			continue
		}
		for i, s := range d.Steps {
			if s.Untargeted() {
				continue
			}
			if _, ok := findRegion(p, s.Target); !ok {
				t.Errorf("tour %s step %d targets %s, not on %s", d.ID, i, s.Target, p.Path)
			}
		}
	}
}

func findRegion(p ui.Page, locator string) (ui.Region, bool) {
	for _, r := range p.Regions {
		if r.Locator == locator {
			return r, true
		}
	}
	return ui.Region{}, false
}

// AssertCalloutInViewport verifies the callout of an active frame is fully
// visible whenever it is no larger than the viewport.
func AssertCalloutInViewport(t *testing.T, f engine.Frame) {
	t.Helper()
	if !f.Active {
		return
	}
	vp, size, pos := f.Viewport, f.CalloutSize, f.Callout
	if size.Width > vp.Width || size.Height > vp.Height {
		return
	}
	if pos.X < -epsilon || pos.Y < -epsilon ||
		pos.X+size.Width > vp.Width+epsilon || pos.Y+size.Height > vp.Height+epsilon {
		t.Errorf("step %d: callout %v at (%.1f, %.1f) leaves the %vx%v viewport",
			f.Step.Index, size, pos.X, pos.Y, vp.Width, vp.Height)
	}
}

// AssertSpotlightCoversTarget verifies the cut-out of a resolved target
// contains the whole target.
func AssertSpotlightCoversTarget(t *testing.T, f engine.Frame) {
	t.Helper()
	if f.Target == nil {
		if f.HasSpotlight {
			t.Errorf("step %d: spotlight without a target", f.Step.Index)
		}
		return
	}
	if !f.HasSpotlight {
		if f.Step.Shape != layout.ShapeNone {
			t.Errorf("step %d: resolved target but no spotlight", f.Step.Index)
		}
		return
	}
	r := *f.Target
	if f.Spotlight.Shape == layout.ShapeRect {
		b := f.Spotlight.Bounds
		if r.Left < b.Left-epsilon || r.Top < b.Top-epsilon ||
			r.Right() > b.Right()+epsilon || r.Bottom() > b.Bottom()+epsilon {
			t.Errorf("step %d: spotlight %v does not cover target %v", f.Step.Index, b, r)
		}
		return
	}
	// A circle is centred on the target and reaches past its longer side.
	edges := [][2]float64{
		{r.Left, r.CenterY()}, {r.Right(), r.CenterY()}, {r.CenterX(), r.Top}, {r.CenterX(), r.Bottom()},
	}
	for _, e := range edges {
		if !f.Spotlight.Contains(e[0], e[1]) {
			t.Errorf("step %d: circle spotlight misses target edge (%.1f, %.1f)", f.Step.Index, e[0], e[1])
		}
	}
}
