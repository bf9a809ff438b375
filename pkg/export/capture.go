package export

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/capability"
	"github.com/vanderheijden86/tourkit/pkg/engine"
	"github.com/vanderheijden86/tourkit/pkg/layout"
	"github.com/vanderheijden86/tourkit/pkg/resolve"
	"github.com/vanderheijden86/tourkit/pkg/sched"
	"github.com/vanderheijden86/tourkit/pkg/tour"
	"github.com/vanderheijden86/tourkit/pkg/ui"
)

// DefaultSettle is how long a capture lets each step run before taking its
// frame: long enough for the full retry budget and any step action.
const DefaultSettle = 3 * time.Second

// Page is what a capture needs from the host: element lookup plus the boxes
// to draw under the overlay.
type Page interface {
	resolve.Locator
	Boxes() []Box
}

// Capture is one step's frame and the page it was drawn over.
type Capture struct {
	Frame engine.Frame `json:"frame"`
	Boxes []Box        `json:"boxes"`
}

// CaptureOptions configures CaptureTour.
type CaptureOptions struct {
	Registry *tour.Registry
	TourID   string
	Page     Page
	// Actor performs click and scroll actions; nil skips them.
	Actor    engine.Actor
	Viewport layout.Viewport
	// Clock drives the engine. Pass the clock the page's own delays run
	// on so content that loads late appears during the settle.
	Clock    *sched.Manual
	Profiler *capability.Profiler
	Measurer engine.Measurer
	Settle   time.Duration
	Logger   *zap.Logger
}

// CaptureTour runs a tour headlessly on a virtual clock and records the
// settled frame of every step.
func CaptureTour(opts CaptureOptions) ([]Capture, error) {
	if opts.Page == nil {
		return nil, fmt.Errorf("capture: page is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = sched.NewManual()
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	measurer := opts.Measurer
	if measurer == nil {
		measurer = CalloutMeasurer{}
	}
	profiler := opts.Profiler
	if profiler == nil {
		profiler = capability.NewProfiler(nil, capability.WithForcedTier(capability.TierHigh))
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e, err := engine.New(engine.Config{
		Registry:  opts.Registry,
		Locator:   opts.Page,
		Actor:     opts.Actor,
		Scheduler: clock,
		Measurer:  measurer,
		Profiler:  profiler,
		Viewport:  opts.Viewport,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	defer e.Close()

	if !e.StartTour(opts.TourID) {
		return nil, fmt.Errorf("capture: %w: %s", tour.ErrNotFound, opts.TourID)
	}

	var out []Capture
	for {
		clock.Advance(settle)
		out = append(out, Capture{Frame: e.Frame(), Boxes: opts.Page.Boxes()})
		if !e.NextStep() {
			break
		}
	}
	return out, nil
}

// SitePage adapts the terminal demo site to pixel coordinates, so the same
// mock pages can be captured at browser scale.
type SitePage struct {
	site   *ui.Site
	sx, sy float64
}

// FromSite wraps site, scaling cells by sx×sy pixels. The site's viewport
// is set to vp in cells.
func FromSite(site *ui.Site, vp layout.Viewport, sx, sy float64) *SitePage {
	site.SetViewport(layout.Viewport{Width: vp.Width / sx, Height: vp.Height / sy})
	return &SitePage{site: site, sx: sx, sy: sy}
}

func (p *SitePage) scale(r layout.Rect) layout.Rect {
	return layout.Rect{Left: r.Left * p.sx, Top: r.Top * p.sy, Width: r.Width * p.sx, Height: r.Height * p.sy}
}

// Locate implements resolve.Locator.
func (p *SitePage) Locate(locator string) (layout.Rect, bool) {
	r, ok := p.site.Locate(locator)
	if !ok {
		return layout.Rect{}, false
	}
	return p.scale(r), true
}

// Boxes implements Page.
func (p *SitePage) Boxes() []Box {
	regions := p.site.Visible()
	out := make([]Box, 0, len(regions))
	for _, r := range regions {
		out = append(out, Box{Label: r.Label, Rect: p.scale(r.View)})
	}
	return out
}

// Click implements engine.Actor.
func (p *SitePage) Click(locator string) error { return p.site.Click(locator) }

// ScrollIntoView implements engine.Actor.
func (p *SitePage) ScrollIntoView(locator string) error { return p.site.ScrollIntoView(locator) }
