package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals use the
// terminal's own background instead of a down-converted approximation
// that may clash with palettes like Solarized.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Theme is the palette and the per-cell styles of the demo host.
type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Subtext   lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor

	// Styles
	Base     lipgloss.Style
	Header   lipgloss.Style
	Tab      lipgloss.Style
	TabOn    lipgloss.Style
	Status   lipgloss.Style
	Selected lipgloss.Style

	// Cell classes drawn by the overlay canvas.
	cells [numClasses]lipgloss.Style
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive)
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		// Light mode colors tuned for WCAG AA contrast
		Primary:   lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Subtext:   lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},
		Border:    lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Highlight: lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"},
		Muted:     lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Success:   lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"},
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.Tab = r.NewStyle().Foreground(t.Subtext).Padding(0, 1)
	t.TabOn = r.NewStyle().Foreground(t.Primary).Bold(true).Underline(true).Padding(0, 1)
	t.Status = r.NewStyle().Foreground(t.Muted)
	t.Selected = r.NewStyle().
		Background(t.Highlight).
		Foreground(t.Primary).
		Bold(true)

	t.cells[classPage] = t.Base
	t.cells[classRegion] = r.NewStyle().Foreground(t.Secondary)
	t.cells[classLabel] = r.NewStyle().Foreground(t.Subtext)
	t.cells[classDim] = r.NewStyle().Foreground(t.Border).Faint(true)
	t.cells[classSpotlight] = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.cells[classPulse] = r.NewStyle().Foreground(ThemeFg("#FFB86C")).Bold(true)
	t.cells[classCallout] = r.NewStyle().Foreground(t.Base.GetForeground()).Background(ThemeBg("#21222C"))
	t.cells[classCalloutBorder] = r.NewStyle().Foreground(t.Primary).Background(ThemeBg("#21222C"))
	t.cells[classCalloutTitle] = r.NewStyle().Foreground(t.Primary).Background(ThemeBg("#21222C")).Bold(true)
	t.cells[classCalloutFooter] = r.NewStyle().Foreground(t.Muted).Background(ThemeBg("#21222C"))

	return t
}

// cell returns the style for a canvas class.
func (t Theme) cell(c class) lipgloss.Style {
	if c < 0 || int(c) >= len(t.cells) {
		return t.Base
	}
	return t.cells[c]
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
