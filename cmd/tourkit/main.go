package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/internal/datasource"
	"github.com/vanderheijden86/tourkit/pkg/capability"
	"github.com/vanderheijden86/tourkit/pkg/config"
	"github.com/vanderheijden86/tourkit/pkg/debug"
	"github.com/vanderheijden86/tourkit/pkg/engine"
	"github.com/vanderheijden86/tourkit/pkg/metrics"
	"github.com/vanderheijden86/tourkit/pkg/progress"
	"github.com/vanderheijden86/tourkit/pkg/tour"
	"github.com/vanderheijden86/tourkit/pkg/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the state every subcommand shares: the loaded configuration
// and the logger built from the persistent flags.
type app struct {
	configPath string
	toursPath  string
	logFile    string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "tourkit",
		Short: "Guided product tours with spotlight overlays",
		Long: `tourkit runs step-by-step product tours: it finds each step's target,
cuts a spotlight out of a dimming overlay, places a callout beside it and
remembers which tours a user has finished.

Hosts:
  demo      Terminal mock of the application with the built-in tours
  browse    Drive a tour on a live page through Chrome
  snapshot  Render tour frames to SVG or PNG`,
		Version:      version.Version,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.logMetrics()
			_ = a.logger.Sync()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/tourkit/config.yaml)")
	flags.StringVar(&a.toursPath, "tours", "", "tour catalog file or directory (default: built-in tours)")
	flags.StringVar(&a.logFile, "log-file", "", "write JSON logs to this file instead of stderr")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(demoCmd(a))
	root.AddCommand(browseCmd(a))
	root.AddCommand(snapshotCmd(a))
	root.AddCommand(validateCmd(a))
	root.AddCommand(progressCmd(a))
	root.AddCommand(tierCmd(a))
	return root
}

func (a *app) setup() error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFrom(a.configPath)
		if err == nil {
			err = a.cfg.ApplyEnv()
		}
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if a.toursPath != "" {
		a.cfg.Tours = a.toursPath
	}

	zc := zap.NewProductionConfig()
	if a.verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	if a.logFile != "" {
		zc.OutputPaths = []string{a.logFile}
		zc.ErrorOutputPaths = []string{a.logFile}
	}
	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	a.logger = logger.Named("tourkit")
	if a.verbose {
		debug.SetLogger(a.logger)
	}
	return nil
}

// registry loads the configured catalog, or the built-in tours.
func (a *app) registry(ctx context.Context) (*tour.Registry, error) {
	if a.cfg.Tours == "" {
		return tour.BuiltinRegistry()
	}
	defs, err := tour.Load(ctx, a.cfg.Tours)
	if err != nil {
		return nil, err
	}
	return tour.NewRegistry(defs...)
}

// openStore opens the configured progress backend. The caller closes the
// returned backend.
func (a *app) openStore() (*progress.Store, datasource.Backend, error) {
	src, err := a.cfg.Source()
	if err != nil {
		return nil, nil, err
	}
	a.logger.Debug("opening progress store", zap.Stringer("source", src))
	return datasource.OpenStore(src, a.logger)
}

func (a *app) profiler(detect capability.Detector) *capability.Profiler {
	opts := append(a.cfg.ProfilerOptions(), capability.WithLogger(a.logger))
	return capability.NewProfiler(detect, opts...)
}

// engineConfig returns an engine configuration with the shared wiring and
// the configured tunables. Hosts add their own adapters.
func (a *app) engineConfig(reg *tour.Registry, store *progress.Store, p *capability.Profiler) engine.Config {
	ec := engine.Config{
		Registry: reg,
		Store:    store,
		Profiler: p,
		Logger:   a.logger,
	}
	a.cfg.Apply(&ec)
	return ec
}

// logMetrics reports runtime timings and degradation counters at debug level.
func (a *app) logMetrics() {
	if !a.logger.Core().Enabled(zap.DebugLevel) {
		return
	}
	for _, s := range metrics.AllTimingStats() {
		a.logger.Debug("timing",
			zap.String("metric", s.Name),
			zap.Int64("count", s.Count),
			zap.Float64("avg_ms", s.AvgMs),
			zap.Float64("p95_ms", s.P95Ms),
			zap.Float64("max_ms", s.MaxMs))
	}
	for name, v := range metrics.CounterValues() {
		if v > 0 {
			a.logger.Debug("counter", zap.String("metric", name), zap.Int64("value", v))
		}
	}
}
