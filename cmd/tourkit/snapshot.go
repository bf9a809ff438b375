package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/capability"
	"github.com/vanderheijden86/tourkit/pkg/export"
	"github.com/vanderheijden86/tourkit/pkg/hooks"
	"github.com/vanderheijden86/tourkit/pkg/layout"
	"github.com/vanderheijden86/tourkit/pkg/sched"
	"github.com/vanderheijden86/tourkit/pkg/tour"
	"github.com/vanderheijden86/tourkit/pkg/ui"
)

// Pixels per demo-site cell, roughly a 13px monospace font.
const (
	cellWidth  = 12.8
	cellHeight = 28.0
)

type snapshotOptions struct {
	tourID string
	step   int
	outDir string
	format string
	width  float64
	height float64
	tier   string

	noHooks bool
}

func snapshotCmd(a *app) *cobra.Command {
	opts := snapshotOptions{step: -1}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Render a tour's overlay frames to SVG or PNG",
		Long: `Run a tour against the demo pages on a virtual clock and write the
settled overlay of every step (or of one step) as an image.

Files are named <tour>-<step>.<format> inside --out.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(a, cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.tourID, "tour", "t", "", "tour id")
	f.IntVar(&opts.step, "step", -1, "only this step (zero-based)")
	f.StringVarP(&opts.outDir, "out", "o", ".", "output directory")
	f.StringVar(&opts.format, "format", "svg", "svg or png")
	f.Float64Var(&opts.width, "width", 1280, "viewport width in pixels")
	f.Float64Var(&opts.height, "height", 784, "viewport height in pixels")
	f.StringVar(&opts.tier, "tier", string(capability.TierHigh), "capability tier to render at")
	f.BoolVar(&opts.noHooks, "no-hooks", false, "skip the hooks in .tourkit/hooks.yaml")
	_ = cmd.MarkFlagRequired("tour")
	return cmd
}

func runSnapshot(a *app, cmd *cobra.Command, opts snapshotOptions) error {
	format := strings.ToLower(opts.format)
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (use svg or png)", opts.format)
	}
	tier, err := capability.ParseTier(opts.tier)
	if err != nil {
		return err
	}
	reg, err := a.registry(cmd.Context())
	if err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	ex, err := hooks.RunHooks(wd, hooks.SnapshotContext{
		TourID:    opts.tourID,
		OutputDir: opts.outDir,
		Format:    format,
		Timestamp: time.Now(),
	}, opts.noHooks)
	if err != nil {
		return err
	}
	if ex != nil {
		ex.SetLogger(a.logger)
		defer func() {
			if s := ex.Summary(); s != "" {
				fmt.Fprint(cmd.ErrOrStderr(), s)
			}
		}()
		if err := ex.RunPreSnapshot(); err != nil {
			return err
		}
	}

	paths, err := captureFrames(a, reg, opts, format, tier)
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	if err != nil {
		return err
	}
	if ex != nil {
		ex.SetFiles(paths)
		return ex.RunPostSnapshot()
	}
	return nil
}

func captureFrames(a *app, reg *tour.Registry, opts snapshotOptions, format string, tier capability.Tier) ([]string, error) {
	clock := sched.NewManual()
	site := ui.NewSite(clock, ui.DemoPages()...)
	start, ok := reg.Routes().PathFor(opts.tourID)
	if !ok {
		start = site.Paths()[0]
	}
	if err := site.Navigate(start); err != nil {
		return nil, err
	}
	vp := layout.Viewport{Width: opts.width, Height: opts.height}
	page := export.FromSite(site, vp, cellWidth, cellHeight)

	caps, err := export.CaptureTour(export.CaptureOptions{
		Registry: reg,
		TourID:   opts.tourID,
		Page:     page,
		Actor:    page,
		Viewport: vp,
		Clock:    clock,
		Profiler: capability.NewProfiler(nil, capability.WithForcedTier(tier)),
		Logger:   a.logger,
	})
	if err != nil {
		return nil, err
	}
	if opts.step >= len(caps) {
		return nil, fmt.Errorf("tour %s has %d steps, no step %d", opts.tourID, len(caps), opts.step)
	}

	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	var paths []string
	for i, c := range caps {
		if opts.step >= 0 && i != opts.step {
			continue
		}
		path := filepath.Join(opts.outDir, fmt.Sprintf("%s-%02d.%s", opts.tourID, i, format))
		err := export.SaveFrameSnapshot(export.FrameSnapshotOptions{
			Path:   path,
			Format: format,
			Title:  fmt.Sprintf("%s: %s", c.Frame.Step.TourTitle, c.Frame.Step.Title),
			Frame:  c.Frame,
			Boxes:  c.Boxes,
		})
		if err != nil {
			return paths, err
		}
		a.logger.Debug("snapshot written", zap.String("path", path), zap.Int("step", i))
		paths = append(paths, path)
	}
	return paths, nil
}
