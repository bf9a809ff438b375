// Package capability classifies the host into a performance tier and maps
// each tier to the visual cost the overlay is allowed to spend.
package capability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/debug"
)

// Tier is a coarse host classification.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Tiers lists every tier from cheapest to most expensive.
var Tiers = []Tier{TierLow, TierMedium, TierHigh}

// ParseTier parses a tier name, case-insensitively.
func ParseTier(s string) (Tier, error) {
	switch Tier(strings.ToLower(strings.TrimSpace(s))) {
	case TierLow:
		return TierLow, nil
	case TierMedium:
		return TierMedium, nil
	case TierHigh:
		return TierHigh, nil
	}
	return "", fmt.Errorf("unknown tier %q (want low, medium or high)", s)
}

// VisualConfig is the per-session visual budget.
type VisualConfig struct {
	SpotlightBlur    float64       `json:"spotlight_blur"`
	BackdropBlur     float64       `json:"backdrop_blur"`
	BackdropSaturate float64       `json:"backdrop_saturate"`
	MaskOpacity      float64       `json:"mask_opacity"`
	PulseEnabled     bool          `json:"pulse_enabled"`
	PulseDuration    time.Duration `json:"pulse_duration"`
}

var visualConfigs = map[Tier]VisualConfig{
	TierHigh: {
		SpotlightBlur:    25,
		BackdropBlur:     6,
		BackdropSaturate: 1.1,
		MaskOpacity:      0.45,
		PulseEnabled:     true,
		PulseDuration:    1800 * time.Millisecond,
	},
	TierMedium: {
		SpotlightBlur:    22,
		BackdropBlur:     5,
		BackdropSaturate: 1.05,
		MaskOpacity:      0.42,
		PulseEnabled:     true,
		PulseDuration:    1500 * time.Millisecond,
	},
	TierLow: {
		SpotlightBlur:    18,
		BackdropBlur:     4,
		BackdropSaturate: 1.0,
		MaskOpacity:      0.4,
		PulseEnabled:     false,
		PulseDuration:    1500 * time.Millisecond,
	},
}

// ConfigFor returns the visual configuration for t. Unknown tiers get the
// low configuration.
func ConfigFor(t Tier) VisualConfig {
	if c, ok := visualConfigs[t]; ok {
		return c
	}
	return visualConfigs[TierLow]
}

// Signals are the raw host observations. Zero MemoryGB or Cores means the
// host could not report them.
type Signals struct {
	SupportsBlending bool    `json:"supports_blending"`
	MemoryGB         float64 `json:"memory_gb"`
	Cores            int     `json:"cores"`
	Mobile           bool    `json:"mobile"`
}

// Thresholds parameterise Classify. The defaults stand in for signals the
// host could not report.
type Thresholds struct {
	DefaultMemoryGB  float64 `yaml:"default_memory_gb"`
	DefaultCores     int     `yaml:"default_cores"`
	LowMemoryGB      float64 `yaml:"low_memory_gb"`
	ModerateMemoryGB float64 `yaml:"moderate_memory_gb"`
	HighMemoryGB     float64 `yaml:"high_memory_gb"`
	HighCores        int     `yaml:"high_cores"`
}

// DefaultThresholds returns the stock classification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DefaultMemoryGB:  4,
		DefaultCores:     4,
		LowMemoryGB:      3,
		ModerateMemoryGB: 4,
		HighMemoryGB:     8,
		HighCores:        8,
	}
}

// Classify maps signals to a tier. It is pure and deterministic.
func Classify(s Signals, th Thresholds) Tier {
	if !s.SupportsBlending {
		return TierLow
	}
	mem := s.MemoryGB
	if mem <= 0 {
		mem = th.DefaultMemoryGB
	}
	cores := s.Cores
	if cores <= 0 {
		cores = th.DefaultCores
	}

	if mem < th.LowMemoryGB {
		return TierLow
	}
	if s.Mobile || mem < th.ModerateMemoryGB {
		return TierMedium
	}
	if mem >= th.HighMemoryGB && cores >= th.HighCores {
		return TierHigh
	}
	return TierMedium
}

// Detector gathers host signals.
type Detector func() Signals

// Option configures a Profiler.
type Option func(*Profiler)

// WithThresholds overrides the classification thresholds.
func WithThresholds(th Thresholds) Option {
	return func(p *Profiler) { p.thresholds = th }
}

// WithForcedTier skips detection and always reports t.
func WithForcedTier(t Tier) Option {
	return func(p *Profiler) { p.forced = t }
}

// WithLogger sets the logger used to report the chosen tier.
func WithLogger(l *zap.Logger) Option {
	return func(p *Profiler) {
		if l != nil {
			p.logger = l
		}
	}
}

// Profiler detects the tier once and caches it for the session.
type Profiler struct {
	detect     Detector
	thresholds Thresholds
	forced     Tier
	logger     *zap.Logger

	once    sync.Once
	signals Signals
	tier    Tier
}

// NewProfiler returns a profiler that calls detect on first use. A nil
// detect uses DetectHost.
func NewProfiler(detect Detector, opts ...Option) *Profiler {
	if detect == nil {
		detect = DetectHost
	}
	p := &Profiler{
		detect:     detect,
		thresholds: DefaultThresholds(),
		logger:     debug.Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Profiler) run() {
	p.once.Do(func() {
		if p.forced != "" {
			p.tier = p.forced
			p.logger.Debug("capability: tier forced", zap.String("tier", string(p.tier)))
			return
		}
		p.signals = p.detect()
		p.tier = Classify(p.signals, p.thresholds)
		p.logger.Debug("capability: tier detected",
			zap.String("tier", string(p.tier)),
			zap.Bool("blending", p.signals.SupportsBlending),
			zap.Float64("memory_gb", p.signals.MemoryGB),
			zap.Int("cores", p.signals.Cores),
			zap.Bool("mobile", p.signals.Mobile),
		)
	})
}

// Tier returns the session tier.
func (p *Profiler) Tier() Tier {
	p.run()
	return p.tier
}

// Signals returns the signals the tier was derived from. They are zero when
// the tier was forced.
func (p *Profiler) Signals() Signals {
	p.run()
	return p.signals
}

// Config returns the visual configuration for the session tier.
func (p *Profiler) Config() VisualConfig {
	return ConfigFor(p.Tier())
}
