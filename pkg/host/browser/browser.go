// Package browser hosts tours in a real browser page driven over the
// DevTools protocol with go-rod. The page supplies element geometry,
// performs step actions and draws the overlay the engine computes.
package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/capability"
	"github.com/vanderheijden86/tourkit/pkg/engine"
	"github.com/vanderheijden86/tourkit/pkg/export"
	"github.com/vanderheijden86/tourkit/pkg/layout"
)

// ErrNoElement is returned when an action names a selector that matches
// nothing on the page.
var ErrNoElement = errors.New("browser: no element matches selector")

// Config configures a browser host.
type Config struct {
	// ControlURL is the DevTools WebSocket URL of a running Chrome.
	// Empty launches a local one.
	ControlURL string
	// Headful shows the launched browser window.
	Headful bool
	// Viewport emulates a device size. Zero keeps the window's own.
	Viewport layout.Viewport
	// CallTimeout bounds every DevTools round trip. Default: 5s.
	CallTimeout time.Duration
	Logger      *zap.Logger
}

func (c *Config) defaults() {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Host is one browser tab serving the engine as locator, actor and
// navigator. Its methods block on DevTools calls and must be called from
// the goroutine that drives the engine.
type Host struct {
	cfg     Config
	logger  *zap.Logger
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	base    *url.URL
}

// Open launches or connects to Chrome and opens rawURL in a new tab.
func Open(ctx context.Context, cfg Config, rawURL string) (*Host, error) {
	cfg.defaults()
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("browser: parse url: %w", err)
	}

	h := &Host{cfg: cfg, logger: cfg.Logger, base: base}
	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(!cfg.Headful)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		h.lnch = l
		controlURL = u
		h.logger.Info("browser: launched local chrome", zap.String("url", u))
	}

	b := rod.New().Context(ctx).ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		h.Close()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	h.browser = b

	page, err := b.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	h.page = page

	if cfg.Viewport.Width > 0 && cfg.Viewport.Height > 0 {
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             int(cfg.Viewport.Width),
			Height:            int(cfg.Viewport.Height),
			DeviceScaleFactor: 1,
		})
		if err != nil {
			h.logger.Warn("browser: set viewport failed", zap.Error(err))
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := page.Context(navCtx).Navigate(base.String()); err != nil {
		h.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", base, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		h.logger.Warn("browser: wait load timeout", zap.String("url", base.String()), zap.Error(err))
	}
	return h, nil
}

// Page returns the underlying rod page.
func (h *Host) Page() *rod.Page { return h.page }

func (h *Host) call() *rod.Page { return h.page.Timeout(h.cfg.CallTimeout) }

const locateJS = `(sel) => {
	let el;
	try { el = document.querySelector(sel); } catch (e) { return null; }
	if (!el) return null;
	const s = getComputedStyle(el);
	if (s.display === 'none' || s.visibility === 'hidden') return null;
	const r = el.getBoundingClientRect();
	if (r.width === 0 && r.height === 0) return null;
	return {left: r.left, top: r.top, width: r.width, height: r.height};
}`

// Locate implements resolve.Locator. The rect is in viewport coordinates.
func (h *Host) Locate(selector string) (layout.Rect, bool) {
	res, err := h.call().Eval(locateJS, selector)
	if err != nil {
		h.logger.Debug("browser: locate failed", zap.String("selector", selector), zap.Error(err))
		return layout.Rect{}, false
	}
	if res.Value.Nil() {
		return layout.Rect{}, false
	}
	var r layout.Rect
	if err := res.Value.Unmarshal(&r); err != nil {
		return layout.Rect{}, false
	}
	return r, true
}

func (h *Host) element(selector string) (*rod.Element, error) {
	has, el, err := h.call().Has(selector)
	if err != nil {
		return nil, fmt.Errorf("browser: query %s: %w", selector, err)
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return el, nil
}

// Click implements engine.Actor.
func (h *Host) Click(selector string) error {
	el, err := h.element(selector)
	if err != nil {
		return err
	}
	return el.Timeout(h.cfg.CallTimeout).Click(proto.InputMouseButtonLeft, 1)
}

// ScrollIntoView implements engine.Actor.
func (h *Host) ScrollIntoView(selector string) error {
	el, err := h.element(selector)
	if err != nil {
		return err
	}
	return el.Timeout(h.cfg.CallTimeout).ScrollIntoView()
}

// Navigate implements engine.Navigator. Paths resolve against the URL the
// host was opened with.
func (h *Host) Navigate(path string) error {
	target := resolvePath(h.base, path)
	p := h.page.Timeout(30 * time.Second)
	if err := p.Navigate(target); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", target, err)
	}
	if err := p.WaitLoad(); err != nil {
		h.logger.Warn("browser: wait load timeout", zap.String("url", target), zap.Error(err))
	}
	return nil
}

// Path returns the path of the page currently shown.
func (h *Host) Path() string {
	info, err := h.call().Info()
	if err != nil {
		return ""
	}
	u, err := url.Parse(info.URL)
	if err != nil {
		return ""
	}
	return pathOf(u)
}

// Viewport reports the page's current inner size.
func (h *Host) Viewport() (layout.Viewport, error) {
	res, err := h.call().Eval(`() => ({width: window.innerWidth, height: window.innerHeight})`)
	if err != nil {
		return layout.Viewport{}, fmt.Errorf("browser: viewport: %w", err)
	}
	var vp layout.Viewport
	if err := res.Value.Unmarshal(&vp); err != nil {
		return layout.Viewport{}, fmt.Errorf("browser: viewport: %w", err)
	}
	return vp, nil
}

const signalsJS = `() => ({
	ua: navigator.userAgent,
	memory: navigator.deviceMemory || 0,
	cores: navigator.hardwareConcurrency || 0,
	blend: CSS.supports('backdrop-filter', 'blur(1px)') || CSS.supports('-webkit-backdrop-filter', 'blur(1px)'),
})`

type pageSignals struct {
	UA     string  `json:"ua"`
	Memory float64 `json:"memory"`
	Cores  int     `json:"cores"`
	Blend  bool    `json:"blend"`
}

func (s pageSignals) signals() capability.Signals {
	return capability.Signals{
		SupportsBlending: s.Blend,
		MemoryGB:         s.Memory,
		Cores:            s.Cores,
		Mobile:           capability.IsMobileUserAgent(s.UA),
	}
}

// Signals implements capability.Detector from the page's navigator and
// CSS support. A failed detection reports nothing, which classifies low.
func (h *Host) Signals() capability.Signals {
	res, err := h.call().Eval(signalsJS)
	if err != nil {
		h.logger.Warn("browser: capability detection failed", zap.Error(err))
		return capability.Signals{}
	}
	var s pageSignals
	if err := res.Value.Unmarshal(&s); err != nil {
		return capability.Signals{}
	}
	return s.signals()
}

const drawJS = `(markup, clip, blur, saturate) => {
	let root = document.getElementById('tourkit-overlay');
	if (!root) {
		root = document.createElement('div');
		root.id = 'tourkit-overlay';
		root.style.cssText = 'position:fixed;inset:0;z-index:2147483647;pointer-events:none';
		document.documentElement.appendChild(root);
	}
	if (!markup) { root.innerHTML = ''; return; }
	root.innerHTML = '<div class="tourkit-backdrop"></div>' + markup;
	const bd = root.firstChild;
	bd.style.cssText = 'position:absolute;inset:0;' +
		(blur > 0 ? 'backdrop-filter:blur(' + blur + 'px) saturate(' + saturate + ');' : '') +
		(clip ? "clip-path:path(evenodd,'" + clip + "');" : '');
	const svg = root.querySelector('svg');
	if (svg) svg.style.cssText = 'position:absolute;inset:0';
}`

// DrawFrame paints f over the page. Inactive frames clear the overlay.
func (h *Host) DrawFrame(f engine.Frame) error {
	markup, clip, err := overlayMarkup(f)
	if err != nil {
		return err
	}
	_, err = h.call().Eval(drawJS, markup, clip, f.Visual.BackdropBlur, f.Visual.BackdropSaturate)
	if err != nil {
		return fmt.Errorf("browser: draw overlay: %w", err)
	}
	return nil
}

// overlayMarkup renders the frame as a transparent SVG plus the clip path
// that keeps the backdrop blur out of the spotlight.
func overlayMarkup(f engine.Frame) (markup, clip string, err error) {
	if !f.Active {
		return "", "", nil
	}
	var buf bytes.Buffer
	if err := export.RenderFrameSVG(&buf, export.FrameSnapshotOptions{Frame: f, Transparent: true}); err != nil {
		return "", "", err
	}
	if f.Visual.BackdropBlur > 0 {
		clip = fmt.Sprintf("M0 0H%gV%gH0Z", f.Viewport.Width, f.Viewport.Height)
		if f.HasSpotlight {
			clip += " " + export.SpotlightPath(f.Spotlight)
		}
	}
	return buf.String(), clip, nil
}

// Close closes the tab and the browser, and removes a launched Chrome.
func (h *Host) Close() error {
	var errs []error
	if h.page != nil {
		errs = append(errs, h.page.Close())
		h.page = nil
	}
	if h.browser != nil {
		errs = append(errs, h.browser.Close())
		h.browser = nil
	}
	if h.lnch != nil {
		h.lnch.Cleanup()
		h.lnch = nil
	}
	return errors.Join(errs...)
}

func resolvePath(base *url.URL, path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return base.String()
	}
	return base.ResolveReference(ref).String()
}

func pathOf(u *url.URL) string {
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
