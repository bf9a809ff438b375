package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/layout"
	"github.com/vanderheijden86/tourkit/pkg/ui"
)

func demoCmd(a *app) *cobra.Command {
	var start string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the tours against a terminal mock of the application",
		Long: `Run the tour engine against a terminal mock of the application.

Tours start by themselves on first visits, exactly as they would in the
browser. Progress is saved to the configured backend.

Keys:
  1-5       Switch page
  ?         Help center (enter starts a tour, x resets progress)
  ← →       Previous / next step
  enter     Finish on the last step
  esc       Skip the tour
  q         Quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry(cmd.Context())
			if err != nil {
				return err
			}
			store, backend, err := a.openStore()
			if err != nil {
				return err
			}
			defer backend.Close()

			// Logs on stderr would tear the alternate screen.
			logger := a.logger
			if a.logFile == "" {
				logger = zap.NewNop()
			}

			ec := a.engineConfig(reg, store, a.profiler(nil))
			ec.Logger = logger
			// Spacing is configured in pixels; the terminal host uses cells.
			ec.Placement = layout.Options{}
			ec.SpotlightPadding = 0

			theme := ui.DefaultTheme(lipgloss.DefaultRenderer())
			m, err := ui.New(ui.Options{Engine: ec, StartPath: start, Theme: &theme})
			if err != nil {
				return err
			}
			return ui.Run(m)
		},
	}
	cmd.Flags().StringVar(&start, "page", "/dashboard", "page to open first")
	return cmd
}
