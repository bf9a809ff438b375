// Package testutil generates tour fixtures: mock pages paired with tours
// whose every step points at something on its page. All generators are
// deterministic for a given seed.
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/vanderheijden86/tourkit/pkg/layout"
	"github.com/vanderheijden86/tourkit/pkg/tour"
	"github.com/vanderheijden86/tourkit/pkg/ui"
)

// Page area in cells. At the browser scale used by snapshots (12.8×28 px)
// it fills a 1280×784 viewport without scrolling.
const (
	pageWidth  = 100.0
	pageHeight = 26.0
	gridCols   = 3
	gridRows   = 2
)

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed     int64  // Random seed for determinism (0 = use current time)
	IDPrefix string // Prefix for tour ids and page paths (default: "tour")
	// MaxTargets caps the targeted steps per tour (default and maximum: 5).
	MaxTargets int
	// HiddenRate is the chance that a tour reveals a hidden panel through
	// a click step.
	HiddenRate float64
	// LateRate is the chance that a region renders late.
	LateRate float64
	// MaxLoadDelay bounds late regions. Keep it inside the resolver budget.
	MaxLoadDelay time.Duration
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:         42,
		IDPrefix:     "tour",
		MaxTargets:   5,
		HiddenRate:   0.5,
		LateRate:     0.3,
		MaxLoadDelay: 600 * time.Millisecond,
	}
}

// Fixture is a set of pages and the tours that run on them.
type Fixture struct {
	Pages []ui.Page
	Tours []tour.Definition
}

// Registry builds a registry over the fixture's tours.
func (f Fixture) Registry() (*tour.Registry, error) {
	return tour.NewRegistry(f.Tours...)
}

// Page returns the page at path.
func (f Fixture) Page(path string) (ui.Page, bool) {
	for _, p := range f.Pages {
		if p.Path == path {
			return p, true
		}
	}
	return ui.Page{}, false
}

// Generator creates fixtures.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.IDPrefix == "" {
		cfg.IDPrefix = def.IDPrefix
	}
	if cfg.MaxTargets <= 0 || cfg.MaxTargets > gridCols*gridRows-1 {
		cfg.MaxTargets = def.MaxTargets
	}
	if cfg.MaxLoadDelay <= 0 {
		cfg.MaxLoadDelay = def.MaxLoadDelay
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

var (
	placements = []layout.Placement{"", layout.PlacementTop, layout.PlacementBottom, layout.PlacementLeft, layout.PlacementRight}
	shapes     = []layout.Shape{"", layout.ShapeRect, layout.ShapeCircle}
)

// Site creates n pages, each with one tour routed to it.
func (g *Generator) Site(n int) Fixture {
	var f Fixture
	for i := 0; i < n; i++ {
		p, d := g.page(i)
		f.Pages = append(f.Pages, p)
		f.Tours = append(f.Tours, d)
	}
	return f
}

// page lays regions out on a grid, one per cell, and writes a tour over
// them. With a hidden panel the last cell holds it and the step before it
// clicks the toggle that reveals it.
func (g *Generator) page(i int) (ui.Page, tour.Definition) {
	path := fmt.Sprintf("/%s-%d", g.cfg.IDPrefix, i)
	id := fmt.Sprintf("%s-%d", g.cfg.IDPrefix, i)
	p := ui.Page{Path: path, Title: fmt.Sprintf("Page %d", i), Height: pageHeight}
	d := tour.Definition{ID: id, Title: fmt.Sprintf("Tour %d", i), Route: path}

	targets := 1 + g.rng.Intn(g.cfg.MaxTargets)
	hidden := g.rng.Float64() < g.cfg.HiddenRate
	cells := g.rng.Perm(gridCols * gridRows)

	if g.rng.Intn(2) == 0 {
		d.Steps = append(d.Steps, tour.Step{Target: tour.BodyTarget, Title: "Welcome", Description: "A quick look around."})
	}

	for j := 0; j < targets; j++ {
		loc := fmt.Sprintf("#%s-r%d", id, j)
		r := ui.Region{Locator: loc, Label: fmt.Sprintf("Region %d", j), Rect: g.cellRect(cells[j])}
		if g.rng.Float64() < g.cfg.LateRate {
			r.LoadAfter = time.Duration(1+g.rng.Int63n(int64(g.cfg.MaxLoadDelay/time.Millisecond))) * time.Millisecond
		}
		step := g.step(loc, j)
		if hidden && j == targets-1 {
			panel := fmt.Sprintf("#%s-panel", id)
			r.Reveals = []string{panel}
			r.LoadAfter = 0
			step.Action = tour.ActionClick
			p.Regions = append(p.Regions, r, ui.Region{
				Locator: panel, Label: "Panel", Rect: g.cellRect(cells[targets]), Hidden: true,
			})
			d.Steps = append(d.Steps, step, g.step(panel, j+1))
			continue
		}
		p.Regions = append(p.Regions, r)
		d.Steps = append(d.Steps, step)
	}
	return p, d
}

func (g *Generator) step(locator string, j int) tour.Step {
	return tour.Step{
		Target:         locator,
		Title:          fmt.Sprintf("Step %d", j+1),
		Description:    fmt.Sprintf("This is **%s**.", locator),
		Placement:      placements[g.rng.Intn(len(placements))],
		SpotlightShape: shapes[g.rng.Intn(len(shapes))],
	}
}

// cellRect returns a random rect inside grid cell c with a one-cell margin.
func (g *Generator) cellRect(c int) layout.Rect {
	cw, ch := pageWidth/gridCols, pageHeight/gridRows
	col, row := float64(c%gridCols), float64(c/gridCols)
	w := 6 + float64(g.rng.Intn(int(cw)-8))
	h := 2 + float64(g.rng.Intn(int(ch)-4))
	left := col*cw + 1 + float64(g.rng.Intn(int(cw-w)-1))
	top := row*ch + 1 + float64(g.rng.Intn(int(ch-h)-1))
	return layout.Rect{Left: left, Top: top, Width: w, Height: h}
}

// QuickSite creates n pages with the default config.
func QuickSite(n int) Fixture {
	return NewDefault().Site(n)
}
