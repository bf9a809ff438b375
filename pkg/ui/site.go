package ui

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vanderheijden86/tourkit/pkg/layout"
	"github.com/vanderheijden86/tourkit/pkg/sched"
)

// ErrNoSuchPage is returned when navigating to an unknown path.
var ErrNoSuchPage = errors.New("no such page")

// ErrNoSuchRegion is returned when an action names a locator the current
// page does not render.
var ErrNoSuchRegion = errors.New("no such region")

// Region is one element of a mock page. Rect is in page coordinates.
type Region struct {
	Locator string
	Label   string
	Rect    layout.Rect
	// Hidden regions appear only when another region reveals them.
	Hidden bool
	// Reveals lists locators that become visible when this region is clicked.
	Reveals []string
	// LoadAfter keeps the region invisible for a while after navigation,
	// like content that renders once data arrives.
	LoadAfter time.Duration
}

// Page is a mock application page.
type Page struct {
	Path    string
	Title   string
	Height  float64
	Regions []Region
}

func (p *Page) region(locator string) (Region, bool) {
	for _, r := range p.Regions {
		if r.Locator == locator {
			return r, true
		}
	}
	return Region{}, false
}

// PlacedRegion is a visible region in viewport coordinates.
type PlacedRegion struct {
	Region
	View layout.Rect
}

// Site is the terminal host's page model. It serves the engine as locator,
// actor and navigator.
type Site struct {
	pages      map[string]*Page
	order      []string
	current    *Page
	visible    map[string]bool
	scrollY    float64
	viewport   layout.Viewport
	s          sched.Scheduler
	loads      sched.Group
	onNavigate []func(path string)
	clicks     []string
}

// NewSite returns a site over pages. Loading delays run on s.
func NewSite(s sched.Scheduler, pages ...Page) *Site {
	site := &Site{pages: make(map[string]*Page, len(pages)), s: s, visible: make(map[string]bool)}
	for i := range pages {
		p := pages[i]
		site.pages[p.Path] = &p
		site.order = append(site.order, p.Path)
	}
	return site
}

// OnNavigate registers fn to run after every successful navigation.
func (s *Site) OnNavigate(fn func(path string)) {
	s.onNavigate = append(s.onNavigate, fn)
}

// Paths returns the page paths in declaration order.
func (s *Site) Paths() []string { return append([]string(nil), s.order...) }

// Page returns the page at path.
func (s *Site) Page(path string) (*Page, bool) {
	p, ok := s.pages[path]
	return p, ok
}

// Current returns the current page, or nil before the first navigation.
func (s *Site) Current() *Page { return s.current }

// CurrentPath returns the current page path.
func (s *Site) CurrentPath() string {
	if s.current == nil {
		return ""
	}
	return s.current.Path
}

// ScrollY returns the vertical scroll offset.
func (s *Site) ScrollY() float64 { return s.scrollY }

// Clicks returns the locators clicked so far.
func (s *Site) Clicks() []string { return append([]string(nil), s.clicks...) }

// SetViewport records the visible area.
func (s *Site) SetViewport(vp layout.Viewport) {
	s.viewport = vp
	s.clampScroll()
}

// Navigate implements engine.Navigator.
func (s *Site) Navigate(path string) error {
	p, ok := s.pages[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchPage, path)
	}
	s.loads.CancelAll()
	s.current = p
	s.scrollY = 0
	s.visible = make(map[string]bool, len(p.Regions))
	for _, r := range p.Regions {
		switch {
		case r.Hidden:
		case r.LoadAfter > 0:
			locator := r.Locator
			s.loads.Add(s.s.AfterFunc(r.LoadAfter, func() { s.visible[locator] = true }))
		default:
			s.visible[r.Locator] = true
		}
	}
	for _, fn := range s.onNavigate {
		fn(path)
	}
	return nil
}

// Locate implements resolve.Locator. The rect is in viewport coordinates.
func (s *Site) Locate(locator string) (layout.Rect, bool) {
	if s.current == nil || !s.visible[locator] {
		return layout.Rect{}, false
	}
	r, ok := s.current.region(locator)
	if !ok {
		return layout.Rect{}, false
	}
	view := r.Rect
	view.Top -= s.scrollY
	return view, true
}

// Click implements engine.Actor.
func (s *Site) Click(locator string) error {
	r, ok := s.visibleRegion(locator)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchRegion, locator)
	}
	s.clicks = append(s.clicks, locator)
	for _, rev := range r.Reveals {
		s.visible[rev] = true
	}
	return nil
}

// ScrollIntoView implements engine.Actor.
func (s *Site) ScrollIntoView(locator string) error {
	r, ok := s.visibleRegion(locator)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchRegion, locator)
	}
	top, bottom := s.scrollY, s.scrollY+s.viewport.Height
	switch {
	case r.Rect.Top < top:
		s.scrollY = r.Rect.Top
	case r.Rect.Bottom() > bottom:
		s.scrollY = r.Rect.Bottom() - s.viewport.Height
	}
	s.clampScroll()
	return nil
}

// ScrollBy moves the page by dy rows.
func (s *Site) ScrollBy(dy float64) {
	s.scrollY += dy
	s.clampScroll()
}

func (s *Site) clampScroll() {
	if s.current == nil {
		s.scrollY = 0
		return
	}
	max := s.current.Height - s.viewport.Height
	if max < 0 {
		max = 0
	}
	if s.scrollY > max {
		s.scrollY = max
	}
	if s.scrollY < 0 {
		s.scrollY = 0
	}
}

func (s *Site) visibleRegion(locator string) (Region, bool) {
	if s.current == nil || !s.visible[locator] {
		return Region{}, false
	}
	return s.current.region(locator)
}

// Visible returns the visible regions of the current page in viewport
// coordinates, larger regions first so nested ones draw on top.
func (s *Site) Visible() []PlacedRegion {
	if s.current == nil {
		return nil
	}
	var out []PlacedRegion
	for _, r := range s.current.Regions {
		if !s.visible[r.Locator] {
			continue
		}
		view := r.Rect
		view.Top -= s.scrollY
		out = append(out, PlacedRegion{Region: r, View: view})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rect.Width*out[i].Rect.Height > out[j].Rect.Width*out[j].Rect.Height
	})
	return out
}

func dt(label string) string { return `[data-tour="` + label + `"]` }

func rect(left, top, w, h float64) layout.Rect {
	return layout.Rect{Left: left, Top: top, Width: w, Height: h}
}

// DemoPages returns mock pages carrying every element the built-in tours
// point at.
func DemoPages() []Page {
	return []Page{
		{
			Path: "/dashboard", Title: "Dashboard", Height: 40,
			Regions: []Region{
				{Locator: dt("projects-section"), Label: "Active projects", Rect: rect(2, 1, 60, 12)},
				{Locator: dt("project-card-example"), Label: "Thesis: Remote work", Rect: rect(4, 3, 26, 8)},
				{Locator: dt("enter-project-button"), Label: "Enter", Rect: rect(20, 8, 8, 2)},
				{Locator: dt("literature-section"), Label: "Recent literature", Rect: rect(64, 1, 34, 12)},
				{Locator: dt("literature-card-example"), Label: "smith2021.pdf", Rect: rect(66, 3, 30, 4), LoadAfter: 400 * time.Millisecond},
				{Locator: dt("cohorts-section"), Label: "My groups", Rect: rect(2, 15, 96, 8)},
			},
		},
		{
			Path: "/literature", Title: "Literature", Height: 48,
			Regions: []Region{
				{Locator: dt("upload-button"), Label: "Upload", Rect: rect(84, 1, 14, 3)},
				{Locator: dt("upload-dropzone"), Label: "Drop PDFs here", Rect: rect(2, 5, 60, 6)},
				{Locator: dt("document-title-input"), Label: "Title", Rect: rect(64, 5, 34, 3)},
				{Locator: dt("confirm-upload-button"), Label: "Confirm", Rect: rect(64, 9, 14, 2)},
				{Locator: dt("search-bar"), Label: "Search documents", Rect: rect(2, 13, 96, 3)},
				{Locator: dt("document-list"), Label: "Documents", Rect: rect(2, 17, 96, 18), LoadAfter: 500 * time.Millisecond},
				{Locator: dt("document-card-example"), Label: "smith2021.pdf", Rect: rect(4, 19, 44, 5), LoadAfter: 500 * time.Millisecond},
				{Locator: dt("rag-status-badge"), Label: "indexed", Rect: rect(38, 20, 9, 1), LoadAfter: 500 * time.Millisecond},
			},
		},
		{
			Path: "/student/project", Title: "Workspace", Height: 60,
			Regions: []Region{
				{Locator: dt("reader-panel"), Label: "Reader", Rect: rect(2, 1, 56, 30)},
				{Locator: dt("reader-toolbar"), Label: "Zoom  Page  Highlight", Rect: rect(4, 2, 40, 2)},
				{Locator: dt("highlight-sidebar-toggle"), Label: "Highlights", Rect: rect(46, 2, 11, 2), Reveals: []string{dt("highlight-sidebar")}},
				{Locator: dt("highlight-sidebar"), Label: "Highlights", Rect: rect(60, 1, 38, 14)},
				{Locator: dt("library-toggle"), Label: "Library", Rect: rect(60, 16, 12, 2), Reveals: []string{dt("library-panel")}},
				{Locator: dt("library-panel"), Label: "Library", Rect: rect(60, 19, 38, 12), Hidden: true},
				{Locator: dt("chat-panel"), Label: "Assistant", Rect: rect(2, 33, 56, 14)},
				{Locator: dt("task-panel"), Label: "Tasks", Rect: rect(60, 33, 38, 14)},
				{Locator: dt("panel-collapse-buttons"), Label: "« »", Rect: rect(44, 54, 12, 2)},
			},
		},
		{
			Path: "/projects", Title: "Projects", Height: 30,
			Regions: []Region{
				{Locator: dt("projects-search"), Label: "Search projects", Rect: rect(2, 1, 96, 3)},
				{Locator: dt("project-list"), Label: "All projects", Rect: rect(2, 5, 96, 20)},
			},
		},
		{
			Path: "/groups", Title: "Groups", Height: 30,
			Regions: []Region{
				{Locator: dt("join-group-form"), Label: "Join with a code", Rect: rect(2, 1, 50, 5)},
				{Locator: dt("groups-list"), Label: "Your groups", Rect: rect(2, 8, 96, 16)},
			},
		},
	}
}
