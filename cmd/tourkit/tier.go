package main

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/tourkit/pkg/capability"
)

type tierReport struct {
	Tier    capability.Tier         `json:"tier"`
	Forced  bool                    `json:"forced"`
	Signals capability.Signals      `json:"signals"`
	Visual  capability.VisualConfig `json:"visual"`
}

func tierCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tier",
		Short: "Show the capability tier this terminal classifies as",
		Long: `Detect this host's capability signals and print the tier the overlay
renders at, with the visual settings that tier selects.

TOURKIT_TIER or capability.force_tier pins the tier.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.profiler(nil)
			rep := tierReport{
				Tier:    p.Tier(),
				Forced:  a.cfg.Capability.ForceTier != "",
				Signals: p.Signals(),
				Visual:  p.Config(),
			}
			out := cmd.OutOrStdout()
			if asJSON {
				data, err := json.MarshalIndent(rep, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			forced := ""
			if rep.Forced {
				forced = " (forced)"
			}
			fmt.Fprintf(out, "Tier: %s%s\n", rep.Tier, forced)
			if !rep.Forced {
				s := rep.Signals
				fmt.Fprintf(out, "  blending %v, memory %.1f GB, %d cores, mobile %v\n",
					s.SupportsBlending, s.MemoryGB, s.Cores, s.Mobile)
			}
			v := rep.Visual
			fmt.Fprintf(out, "  mask opacity %.2f, backdrop blur %gpx, pulse %v\n",
				v.MaskOpacity, v.BackdropBlur, v.PulseEnabled)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
