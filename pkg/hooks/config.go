// Package hooks runs user commands around snapshot export.
// Hooks are configured in .tourkit/hooks.yaml and run before frames are
// rendered (pre-snapshot) and after they are written (post-snapshot), for
// example to optimise the images or publish them to documentation.
package hooks

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HookPhase represents when a hook runs
type HookPhase string

const (
	// PreSnapshot runs before any frame is rendered. Failure cancels the snapshot.
	PreSnapshot HookPhase = "pre-snapshot"
	// PostSnapshot runs after the files are written. Failure is reported but the files stay.
	PostSnapshot HookPhase = "post-snapshot"
)

// On-error policies.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// Hook defines a single hook configuration
type Hook struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"`                       // run with sh -c
	Timeout time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`   // default: 30s
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`           // values may reference $VARS
	OnError string            `yaml:"on_error,omitempty" json:"on_error,omitempty"` // "fail" (default for pre) or "continue" (default for post)
}

// Config holds all hook configurations
type Config struct {
	Hooks HooksByPhase `yaml:"hooks" json:"hooks"`
}

// HooksByPhase organizes hooks by their execution phase
type HooksByPhase struct {
	PreSnapshot  []Hook `yaml:"pre-snapshot,omitempty" json:"pre-snapshot,omitempty"`
	PostSnapshot []Hook `yaml:"post-snapshot,omitempty" json:"post-snapshot,omitempty"`
}

// SnapshotContext is passed to hooks as environment variables.
type SnapshotContext struct {
	TourID    string    // TOURKIT_TOUR_ID
	OutputDir string    // TOURKIT_SNAPSHOT_DIR
	Format    string    // TOURKIT_SNAPSHOT_FORMAT: svg or png
	Files     []string  // TOURKIT_SNAPSHOT_FILES, separated by the OS path list separator; empty before the snapshot
	Timestamp time.Time // TOURKIT_TIMESTAMP (RFC3339)
}

// ToEnv converts the context to environment variables.
func (c SnapshotContext) ToEnv() []string {
	return []string{
		"TOURKIT_TOUR_ID=" + c.TourID,
		"TOURKIT_SNAPSHOT_DIR=" + c.OutputDir,
		"TOURKIT_SNAPSHOT_FORMAT=" + c.Format,
		fmt.Sprintf("TOURKIT_FRAME_COUNT=%d", len(c.Files)),
		"TOURKIT_SNAPSHOT_FILES=" + strings.Join(c.Files, string(os.PathListSeparator)),
		"TOURKIT_TIMESTAMP=" + c.Timestamp.Format(time.RFC3339),
	}
}

// DefaultTimeout is the default hook execution timeout
const DefaultTimeout = 30 * time.Second

// FileName is the hooks file inside a project's .tourkit directory.
const FileName = "hooks.yaml"

// Loader loads hook configuration from .tourkit/hooks.yaml
type Loader struct {
	projectDir string
	config     *Config
	warnings   []string
}

// LoaderOption configures the loader
type LoaderOption func(*Loader)

// WithProjectDir sets the project directory (default: current directory)
func WithProjectDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.projectDir = dir
	}
}

// NewLoader creates a new hook loader with options
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}

	for _, opt := range opts {
		opt(l)
	}

	if l.projectDir == "" {
		l.projectDir, _ = os.Getwd()
	}

	return l
}

// Path returns the hooks file the loader reads.
func (l *Loader) Path() string {
	return filepath.Join(l.projectDir, ".tourkit", FileName)
}

// Load loads hook configuration. A missing file means no hooks.
func (l *Loader) Load() error {
	configPath := l.Path()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			l.config = &Config{}
			return nil
		}
		return fmt.Errorf("reading hooks config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing %s: %w", configPath, err)
	}

	l.normalizeConfig(&config)

	l.config = &config
	return nil
}

// normalizeConfig applies defaults and validates hooks
func (l *Loader) normalizeConfig(config *Config) {
	config.Hooks.PreSnapshot, l.warnings = normalizeHooks(config.Hooks.PreSnapshot, PreSnapshot, l.warnings)
	config.Hooks.PostSnapshot, l.warnings = normalizeHooks(config.Hooks.PostSnapshot, PostSnapshot, l.warnings)
}

// normalizeHooks applies defaults, drops empty commands, and accumulates warnings.
func normalizeHooks(hooks []Hook, phase HookPhase, warnings []string) ([]Hook, []string) {
	var out []Hook
	for i := range hooks {
		hook := hooks[i]
		if strings.TrimSpace(hook.Command) == "" {
			warnings = append(warnings, fmt.Sprintf("%s hook %d has empty command; skipping", phase, i+1))
			continue
		}
		if hook.Timeout == 0 {
			hook.Timeout = DefaultTimeout
		}
		switch hook.OnError {
		case "":
			if phase == PreSnapshot {
				hook.OnError = OnErrorFail
			} else {
				hook.OnError = OnErrorContinue
			}
		case OnErrorFail, OnErrorContinue:
		default:
			warnings = append(warnings, fmt.Sprintf("%s hook %q has unknown on_error %q; using %q",
				phase, hook.Name, hook.OnError, OnErrorFail))
			hook.OnError = OnErrorFail
		}
		if hook.Name == "" {
			hook.Name = fmt.Sprintf("%s-%d", phase, i+1)
		}
		out = append(out, hook)
	}
	return out, warnings
}

// Config returns the loaded configuration (or empty if not loaded)
func (l *Loader) Config() *Config {
	if l.config == nil {
		return &Config{}
	}
	return l.config
}

// HasHooks returns true if any hooks are configured
func (l *Loader) HasHooks() bool {
	if l.config == nil {
		return false
	}
	return len(l.config.Hooks.PreSnapshot) > 0 || len(l.config.Hooks.PostSnapshot) > 0
}

// GetHooks returns hooks for a specific phase
func (l *Loader) GetHooks(phase HookPhase) []Hook {
	if l.config == nil {
		return nil
	}

	switch phase {
	case PreSnapshot:
		return l.config.Hooks.PreSnapshot
	case PostSnapshot:
		return l.config.Hooks.PostSnapshot
	default:
		return nil
	}
}

// Warnings returns any warnings from loading
func (l *Loader) Warnings() []string {
	return l.warnings
}

// LoadDefault creates a loader for the current directory and loads it.
func LoadDefault() (*Loader, error) {
	loader := NewLoader()
	if err := loader.Load(); err != nil {
		return nil, err
	}
	return loader, nil
}

// UnmarshalYAML accepts timeouts as durations ("5s") or bare seconds ("30").
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	// Must mirror Hook except for Timeout.
	type hookDTO struct {
		Name    string            `yaml:"name"`
		Command string            `yaml:"command"`
		Timeout string            `yaml:"timeout,omitempty"`
		Env     map[string]string `yaml:"env,omitempty"`
		OnError string            `yaml:"on_error,omitempty"`
	}

	var dto hookDTO
	if err := node.Decode(&dto); err != nil {
		return err
	}

	h.Name = dto.Name
	h.Command = dto.Command
	h.Env = dto.Env
	h.OnError = dto.OnError

	if dto.Timeout != "" {
		d, err := time.ParseDuration(dto.Timeout)
		if err == nil {
			h.Timeout = d
		} else {
			var seconds float64
			if _, scanErr := fmt.Sscanf(dto.Timeout, "%f", &seconds); scanErr == nil {
				h.Timeout = time.Duration(seconds * float64(time.Second))
			} else {
				return fmt.Errorf("invalid timeout %q: %w", dto.Timeout, err)
			}
		}
	}

	return nil
}
