// Package config handles loading and saving tourkit configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/tourkit/config.yaml
//   - State:   ~/.local/state/tourkit/ (progress.json, progress.db)
//
// TOURKIT_STORAGE and TOURKIT_TIER override the storage backend and the
// capability tier after the file is read. TOURKIT_DEBUG is handled by
// pkg/debug.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/tourkit/internal/datasource"
	"github.com/vanderheijden86/tourkit/pkg/capability"
	"github.com/vanderheijden86/tourkit/pkg/engine"
	"github.com/vanderheijden86/tourkit/pkg/layout"
	"github.com/vanderheijden86/tourkit/pkg/resolve"
)

// Environment overrides.
const (
	EnvStorage = "TOURKIT_STORAGE"
	EnvTier    = "TOURKIT_TIER"
)

// StorageConfig selects the progress backend.
type StorageConfig struct {
	Backend string `yaml:"backend,omitempty"` // memory, file, sqlite
	Path    string `yaml:"path,omitempty"`    // defaults to the state directory
}

// ResolverConfig is the target lookup retry budget.
type ResolverConfig struct {
	MaxAttempts int           `yaml:"max_attempts,omitempty"`
	RetryDelay  time.Duration `yaml:"retry_delay,omitempty"`
}

// OverlayConfig tunes placement, spotlight and orchestrator timing.
type OverlayConfig struct {
	Debounce         time.Duration `yaml:"debounce,omitempty"`
	SpotlightPadding float64       `yaml:"spotlight_padding,omitempty"`
	PlacementPadding float64       `yaml:"placement_padding,omitempty"`
	Gap              float64       `yaml:"gap,omitempty"`
	ActionDelay      time.Duration `yaml:"action_delay,omitempty"`
	ClickSettle      time.Duration `yaml:"click_settle,omitempty"`
	ScrollSettle     time.Duration `yaml:"scroll_settle,omitempty"`
}

// AutoStartConfig is the auto-start policy plus extra page routes.
type AutoStartConfig struct {
	engine.AutoStartConfig `yaml:",inline"`
	Pages                  map[string]string `yaml:"pages,omitempty"` // page path -> tour id
}

// CapabilityConfig holds classification thresholds and an optional forced tier.
type CapabilityConfig struct {
	capability.Thresholds `yaml:",inline"`
	ForceTier             string `yaml:"force_tier,omitempty"`
}

// Config is the top-level configuration for tourkit.
type Config struct {
	Storage    StorageConfig     `yaml:"storage,omitempty"`
	Resolver   ResolverConfig    `yaml:"resolver,omitempty"`
	Overlay    OverlayConfig     `yaml:"overlay,omitempty"`
	AutoStart  AutoStartConfig   `yaml:"autostart,omitempty"`
	Help       engine.HelpTiming `yaml:"help,omitempty"`
	Capability CapabilityConfig  `yaml:"capability,omitempty"`
	// Tours replaces the built-in catalog with a file or directory.
	Tours string `yaml:"tours,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	timing := engine.DefaultTiming()
	return Config{
		Storage: StorageConfig{Backend: string(datasource.SourceTypeFile)},
		Resolver: ResolverConfig{
			MaxAttempts: resolve.DefaultMaxAttempts,
			RetryDelay:  resolve.DefaultRetryDelay,
		},
		Overlay: OverlayConfig{
			Debounce:         timing.Debounce,
			SpotlightPadding: layout.DefaultSpotlightPadding,
			PlacementPadding: layout.DefaultPadding,
			Gap:              layout.DefaultGap,
			ActionDelay:      timing.ActionDelay,
			ClickSettle:      timing.ClickSettle,
			ScrollSettle:     timing.ScrollSettle,
		},
		AutoStart: AutoStartConfig{
			AutoStartConfig: engine.DefaultAutoStartConfig(),
			Pages:           make(map[string]string),
		},
		Help:       engine.DefaultHelpTiming(),
		Capability: CapabilityConfig{Thresholds: capability.DefaultThresholds()},
	}
}

// ConfigDir returns the XDG config directory for tourkit.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "tourkit")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "tourkit")
}

// StateDir returns the XDG state directory for tourkit.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "tourkit")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "tourkit")
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory and applies
// environment overrides. Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		return cfg, cfg.ApplyEnv()
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.ApplyEnv()
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.AutoStart.Pages == nil {
		cfg.AutoStart.Pages = make(map[string]string)
	}
	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	cfg.Tours = expandHome(cfg.Tours)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv layers TOURKIT_STORAGE and TOURKIT_TIER over c.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvStorage); v != "" {
		if _, err := datasource.ParseSourceType(v); err != nil {
			return fmt.Errorf("%s: %w", EnvStorage, err)
		}
		c.Storage.Backend = v
	}
	if v := os.Getenv(EnvTier); v != "" {
		if _, err := capability.ParseTier(v); err != nil {
			return fmt.Errorf("%s: %w", EnvTier, err)
		}
		c.Capability.ForceTier = v
	}
	return nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if _, err := datasource.ParseSourceType(c.Storage.Backend); err != nil {
		errs = append(errs, fmt.Errorf("storage.backend: %w", err))
	}
	if c.Resolver.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("resolver.max_attempts must not be negative, got %d", c.Resolver.MaxAttempts))
	}
	if c.Overlay.SpotlightPadding < 0 || c.Overlay.PlacementPadding < 0 || c.Overlay.Gap < 0 {
		errs = append(errs, errors.New("overlay spacing must not be negative"))
	}
	if c.Capability.ForceTier != "" {
		if _, err := capability.ParseTier(c.Capability.ForceTier); err != nil {
			errs = append(errs, fmt.Errorf("capability.force_tier: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Source describes the configured progress backend.
func (c Config) Source() (datasource.DataSource, error) {
	typ, err := datasource.ParseSourceType(c.Storage.Backend)
	if err != nil {
		return datasource.DataSource{}, err
	}
	return datasource.NewSource(typ, c.Storage.Path, StateDir()), nil
}

// PlacementOptions returns the placement spacing.
func (c Config) PlacementOptions() layout.Options {
	return layout.Options{Padding: c.Overlay.PlacementPadding, Gap: c.Overlay.Gap}
}

// Timing returns the orchestrator delays.
func (c Config) Timing() engine.Timing {
	return engine.Timing{
		Debounce:     c.Overlay.Debounce,
		ActionDelay:  c.Overlay.ActionDelay,
		ClickSettle:  c.Overlay.ClickSettle,
		ScrollSettle: c.Overlay.ScrollSettle,
	}
}

// ProfilerOptions returns the capability profiler options.
func (c Config) ProfilerOptions() []capability.Option {
	opts := []capability.Option{capability.WithThresholds(c.Capability.Thresholds)}
	if c.Capability.ForceTier != "" {
		if tier, err := capability.ParseTier(c.Capability.ForceTier); err == nil {
			opts = append(opts, capability.WithForcedTier(tier))
		}
	}
	return opts
}

// Apply copies the tunables into an engine configuration. Wiring (registry,
// store, host adapters) is left to the caller.
func (c Config) Apply(ec *engine.Config) {
	ec.MaxAttempts = c.Resolver.MaxAttempts
	ec.RetryDelay = c.Resolver.RetryDelay
	ec.Placement = c.PlacementOptions()
	ec.SpotlightPadding = c.Overlay.SpotlightPadding
	ec.Timing = c.Timing()
	ec.AutoStart = c.AutoStart.AutoStartConfig
	ec.Help = c.Help
	if len(c.AutoStart.Pages) > 0 {
		ec.Pages = c.AutoStart.Pages
	}
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
