// Package ui is the terminal host for the tour engine: a mock multi-page
// application rendered with lipgloss, with the tour overlay drawn on top.
// Engine timers run through a sched.Queue whose timers become tea.Tick
// commands, so every engine callback runs inside Update.
package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/engine"
	"github.com/vanderheijden86/tourkit/pkg/layout"
	"github.com/vanderheijden86/tourkit/pkg/metrics"
	"github.com/vanderheijden86/tourkit/pkg/sched"
)

// Terminal cells are coarse; the browser defaults would swallow the page.
var terminalPlacement = layout.Options{Padding: 1, Gap: 1}

const terminalSpotlightPadding = 1

// chrome rows: tab bar and status line.
const chromeRows = 2

// focus represents which UI element has keyboard focus
type focus int

const (
	focusPage focus = iota
	focusHelp
	focusResetConfirm
)

// KeyMap holds the host's own bindings. Tour keys come from the engine.
type KeyMap struct {
	Quit   key.Binding
	Help   key.Binding
	Up     key.Binding
	Down   key.Binding
	Pages  key.Binding
	Launch key.Binding
	Reset  key.Binding
	Close  key.Binding
}

// DefaultKeyMap returns the stock host bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "tours")),
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
		Pages:  key.NewBinding(key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"), key.WithHelp("1-9", "pages")),
		Launch: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start tour")),
		Reset:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reset progress")),
		Close:  key.NewBinding(key.WithKeys("esc", "?"), key.WithHelp("esc", "close")),
	}
}

// timerMsg fires a queued engine timer.
type timerMsg struct{ id uint64 }

// Options configures the demo host.
type Options struct {
	// Engine carries the registry, store, profiler, logger and tunables.
	// Locator, Actor, Navigator, Scheduler and Measurer are supplied here.
	Engine engine.Config
	// Pages defaults to DemoPages.
	Pages     []Page
	StartPath string
	Theme     *Theme
}

// Model is the bubbletea model of the demo host.
type Model struct {
	engine  *engine.Engine
	site    *Site
	queue   *sched.Queue
	callout *Callout
	theme   Theme
	keys    KeyMap
	logger  *zap.Logger
	place   layout.Options
	tick    func(sched.Timer) tea.Cmd

	width, height int
	focus         focus
	helpCursor    int
	entries       []engine.TourEntry
	status        string
}

// New builds the host and navigates to the start page.
func New(opts Options) (Model, error) {
	q := sched.NewQueue()
	pages := opts.Pages
	if len(pages) == 0 {
		pages = DemoPages()
	}
	site := NewSite(q, pages...)

	theme := TestTheme()
	if opts.Theme != nil {
		theme = *opts.Theme
	}

	cfg := opts.Engine
	if cfg.Placement == (layout.Options{}) {
		cfg.Placement = terminalPlacement
	}
	if cfg.SpotlightPadding <= 0 {
		cfg.SpotlightPadding = terminalSpotlightPadding
	}
	if cfg.Viewport == (layout.Viewport{}) {
		cfg.Viewport = layout.Viewport{Width: 100, Height: 28}
	}
	keys := engine.DefaultKeyMap()
	if cfg.Keys != nil {
		keys = *cfg.Keys
	}
	callout := NewCallout(NewMarkdownRenderer(), keys)
	callout.Fit(cfg.Viewport, cfg.Placement)

	cfg.Locator = site
	cfg.Actor = site
	cfg.Navigator = site
	cfg.Scheduler = q
	cfg.Measurer = callout

	e, err := engine.New(cfg)
	if err != nil {
		return Model{}, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	site.SetViewport(cfg.Viewport)
	site.OnNavigate(func(path string) { e.VisitPage(path) })

	start := opts.StartPath
	if start == "" {
		start = site.Paths()[0]
	}
	if err := site.Navigate(start); err != nil {
		return Model{}, err
	}

	return Model{
		engine:  e,
		site:    site,
		queue:   q,
		callout: callout,
		theme:   theme,
		keys:    DefaultKeyMap(),
		logger:  logger,
		place:   cfg.Placement,
		tick:    tickTimer,
		width:   int(cfg.Viewport.Width),
		height:  int(cfg.Viewport.Height) + chromeRows,
	}, nil
}

// Engine returns the engine driven by the model.
func (m Model) Engine() *engine.Engine { return m.engine }

// Site returns the mock application.
func (m Model) Site() *Site { return m.site }

// Init schedules the timers queued while navigating to the start page.
func (m Model) Init() tea.Cmd {
	return m.drain()
}

// drain turns newly queued engine timers into tick commands.
func (m Model) drain() tea.Cmd {
	timers := m.queue.Drain()
	if len(timers) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, 0, len(timers))
	for _, t := range timers {
		cmds = append(cmds, m.tick(t))
	}
	return tea.Batch(cmds...)
}

func tickTimer(t sched.Timer) tea.Cmd {
	id := t.ID
	return tea.Tick(t.Delay, func(time.Time) tea.Msg { return timerMsg{id: id} })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	defer metrics.Timer(metrics.UIRender)()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		vp := m.viewport()
		m.site.SetViewport(vp)
		m.callout.Fit(vp, m.place)
		m.engine.SetViewport(vp)

	case timerMsg:
		m.queue.Fire(msg.id)

	case tea.KeyMsg:
		var quit bool
		m, quit = m.handleKey(msg)
		if quit {
			return m, tea.Quit
		}
	}
	return m, m.drain()
}

func (m Model) viewport() layout.Viewport {
	h := m.height - chromeRows
	if h < 1 {
		h = 1
	}
	return layout.Viewport{Width: float64(m.width), Height: float64(h)}
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, bool) {
	switch m.focus {
	case focusHelp:
		return m.handleHelpKey(msg), false
	case focusResetConfirm:
		if key.Matches(msg, m.keys.Reset) {
			m.engine.HelpCenter().Reset()
			m.status = "progress reset"
		}
		m.focus = focusHelp
		m.entries = m.engine.HelpCenter().List(m.site.CurrentPath())
		return m, false
	}

	if m.engine.HandleKey(msg) {
		return m, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, true
	case key.Matches(msg, m.keys.Help):
		m.openHelp()
	case key.Matches(msg, m.keys.Up):
		m.site.ScrollBy(-1)
		m.engine.OnScroll()
	case key.Matches(msg, m.keys.Down):
		m.site.ScrollBy(1)
		m.engine.OnScroll()
	case key.Matches(msg, m.keys.Pages):
		m.gotoPage(msg.String())
	}
	return m, false
}

func (m *Model) openHelp() {
	m.focus = focusHelp
	m.helpCursor = 0
	m.entries = m.engine.HelpCenter().List(m.site.CurrentPath())
	m.status = ""
}

func (m *Model) gotoPage(digit string) {
	paths := m.site.Paths()
	idx := int(digit[0]-'1')
	if idx < 0 || idx >= len(paths) {
		return
	}
	if err := m.site.Navigate(paths[idx]); err != nil {
		m.status = err.Error()
	}
}

func (m Model) handleHelpKey(msg tea.KeyMsg) Model {
	switch {
	case key.Matches(msg, m.keys.Close):
		m.focus = focusPage
	case key.Matches(msg, m.keys.Up):
		if m.helpCursor > 0 {
			m.helpCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.helpCursor < len(m.entries)-1 {
			m.helpCursor++
		}
	case key.Matches(msg, m.keys.Reset):
		m.focus = focusResetConfirm
	case key.Matches(msg, m.keys.Launch):
		if m.helpCursor >= len(m.entries) {
			return m
		}
		id := m.entries[m.helpCursor].ID
		m.focus = focusPage
		if err := m.engine.HelpCenter().Launch(id, m.site.CurrentPath()); err != nil {
			m.logger.Warn("launch failed", zap.String("tour", id), zap.Error(err))
			m.status = err.Error()
		}
	}
	return m
}

// View renders the page, the overlay and the chrome.
func (m Model) View() string {
	vp := m.viewport()
	cv := newCanvas(int(vp.Width), int(vp.Height))
	drawPage(cv, m.site.Visible())
	drawOverlay(cv, m.engine.Frame(), m.callout)
	if m.focus != focusPage {
		m.drawHelp(cv)
	}

	var b strings.Builder
	b.WriteString(m.tabs())
	b.WriteByte('\n')
	b.WriteString(cv.render(m.theme))
	b.WriteByte('\n')
	b.WriteString(m.statusLine())
	return b.String()
}

func (m Model) tabs() string {
	var parts []string
	for i, p := range m.site.Paths() {
		page, _ := m.site.Page(p)
		label := fmt.Sprintf("%d %s", i+1, page.Title)
		if p == m.site.CurrentPath() {
			parts = append(parts, m.theme.TabOn.Render(label))
		} else {
			parts = append(parts, m.theme.Tab.Render(label))
		}
	}
	return m.theme.Header.Render("tourkit") + " " + strings.Join(parts, "")
}

func (m Model) statusLine() string {
	var parts []string
	if d, ok := m.engine.CurrentStepDescriptor(); ok {
		parts = append(parts, fmt.Sprintf("%s %d/%d", d.TourTitle, d.Index+1, d.Total))
		if m.engine.Frame().Resolving {
			parts = append(parts, "locating…")
		}
	} else {
		for _, b := range []key.Binding{m.keys.Help, m.keys.Pages, m.keys.Down, m.keys.Quit} {
			parts = append(parts, b.Help().Key+" "+b.Help().Desc)
		}
	}
	parts = append(parts, "tier "+string(m.engine.Tier()))
	if m.status != "" {
		parts = append(parts, m.status)
	}
	return m.theme.Status.Render(truncate(strings.Join(parts, " · "), m.width))
}

func (m Model) drawHelp(cv *canvas) {
	lines := []calloutLine{{"Tours", classCalloutTitle}, {"", classCallout}}
	for i, e := range m.entries {
		cursor, done, c := "  ", "  ", classCallout
		if i == m.helpCursor {
			cursor, c = "› ", classCalloutTitle
		}
		if e.Completed {
			done = "✓ "
		}
		lines = append(lines, calloutLine{fmt.Sprintf("%s%s%s (%d steps)", cursor, done, e.Title, e.Steps), c})
	}
	lines = append(lines, calloutLine{"", classCallout})
	footer := "enter start · x reset progress · esc close"
	if m.focus == focusResetConfirm {
		footer = "press x again to erase all tour progress"
	}
	lines = append(lines, calloutLine{footer, classCalloutFooter})

	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.text
	}
	w := maxWidth(texts) + calloutChrome
	h := len(lines) + 2
	x := (cv.w - w) / 2
	y := (cv.h - h) / 2
	cv.fill(x, y, w, h, ' ', classCallout)
	cv.box(x, y, w, h, roundedBorder, classCalloutBorder)
	for i, l := range lines {
		cv.text(x+2, y+1+i, l.text, l.c)
	}
}

// Close cancels the engine's pending timers.
func (m Model) Close() {
	m.engine.Close()
}

// Run starts the program on the alternate screen and blocks until it quits.
func Run(m Model) error {
	defer m.Close()
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
