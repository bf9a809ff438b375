package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/engine"
	"github.com/vanderheijden86/tourkit/pkg/layout"
	"github.com/vanderheijden86/tourkit/pkg/sched"
)

// event is posted from the page by the injected listeners.
type event struct {
	Type   string  `json:"type"`
	Key    string  `json:"key,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

const bindingName = "tourkitEvent"

// listenersJS forwards keys, resizes and scrolls. Documents loaded after
// the session started also announce themselves so the engine sees the
// page visit.
const listenersJS = `(announce) => {
	if (window.__tourkitListening) return;
	window.__tourkitListening = true;
	const send = (e) => { try { window.tourkitEvent(e); } catch (_) {} };
	if (announce) document.addEventListener('DOMContentLoaded', () => send({type: 'page'}));
	window.addEventListener('keydown', (e) => send({type: 'key', key: e.key}), true);
	window.addEventListener('resize', () => send({type: 'resize', width: window.innerWidth, height: window.innerHeight}));
	window.addEventListener('scroll', () => send({type: 'scroll'}), true);
}`

// keyNames maps DOM key values to the engine's key names.
var keyNames = map[string]string{
	"ArrowLeft":  "left",
	"ArrowRight": "right",
	"Escape":     "esc",
	"Enter":      "enter",
}

// engineKey translates a DOM key value. Unknown keys pass through.
func engineKey(domKey string) engine.Key {
	if k, ok := keyNames[domKey]; ok {
		return engine.Key(k)
	}
	return engine.Key(domKey)
}

// Session runs an engine against a host on a single event loop.
type Session struct {
	host   *Host
	engine *engine.Engine
	loop   *sched.Loop
	logger *zap.Logger
	done   chan struct{}
	seen   bool
}

// NewSession wires an engine to h. cfg supplies the registry, store and
// tunables; the locator, actor, navigator, scheduler and profiler
// detector come from the host.
func NewSession(h *Host, cfg engine.Config) (*Session, error) {
	q := sched.NewQueue()
	cfg.Locator = h
	cfg.Actor = h
	cfg.Navigator = h
	cfg.Scheduler = q
	if cfg.Viewport == (layout.Viewport{}) {
		if vp, err := h.Viewport(); err == nil {
			cfg.Viewport = vp
		}
	}
	e, err := engine.New(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{host: h, engine: e, loop: sched.NewLoop(q), logger: logger, done: make(chan struct{})}
	e.OnFrame(func(f engine.Frame) {
		if err := h.DrawFrame(f); err != nil {
			logger.Warn("browser: draw failed", zap.Error(err))
		}
	})
	e.OnStateChange(func(st engine.State) {
		if st.Active {
			s.seen = true
			return
		}
		if s.seen {
			select {
			case <-s.done:
			default:
				close(s.done)
			}
		}
	})
	return s, nil
}

// Engine returns the session's engine.
func (s *Session) Engine() *engine.Engine { return s.engine }

// Finished is closed when a tour that ran in this session ends.
func (s *Session) Finished() <-chan struct{} { return s.done }

// Run installs the page listeners, reports the current page to the engine,
// starts tourID when it is non-empty and processes events until ctx is
// done. It returns nil when ctx was cancelled.
func (s *Session) Run(ctx context.Context, tourID string) error {
	stop, err := s.host.page.Expose(bindingName, func(j gson.JSON) (interface{}, error) {
		var ev event
		if err := j.Unmarshal(&ev); err != nil {
			return nil, err
		}
		return nil, s.loop.Post(ctx, func() { s.handle(ev) })
	})
	if err != nil {
		return fmt.Errorf("browser: expose events: %w", err)
	}
	defer func() { _ = stop() }()

	if _, err := s.host.page.EvalOnNewDocument("(" + listenersJS + ")(true)"); err != nil {
		return fmt.Errorf("browser: install listeners: %w", err)
	}
	if _, err := s.host.call().Eval(listenersJS, false); err != nil {
		return fmt.Errorf("browser: install listeners: %w", err)
	}

	err = s.loop.Post(ctx, func() {
		s.engine.VisitPage(s.host.Path())
		if tourID != "" && !s.engine.StartTour(tourID) {
			s.logger.Warn("browser: tour not started", zap.String("tour", tourID))
		}
	})
	if err != nil {
		return err
	}

	err = s.loop.Run(ctx)
	s.engine.Close()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (s *Session) handle(ev event) {
	switch ev.Type {
	case "key":
		s.engine.HandleKey(engineKey(ev.Key))
	case "resize":
		s.engine.SetViewport(layout.Viewport{Width: ev.Width, Height: ev.Height})
	case "scroll":
		s.engine.OnScroll()
	case "page":
		s.engine.VisitPage(s.host.Path())
	}
}
