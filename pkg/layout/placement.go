package layout

import "github.com/vanderheijden86/tourkit/pkg/metrics"

// Default spacing used when placing callouts.
const (
	DefaultPadding = 20.0 // minimum distance between a callout and the viewport edge
	DefaultGap     = 16.0 // distance between a callout and its target
)

// Options tunes the placement engine.
type Options struct {
	Padding float64
	Gap     float64
}

// DefaultOptions returns the spacing used by the stock overlay.
func DefaultOptions() Options {
	return Options{Padding: DefaultPadding, Gap: DefaultGap}
}

// Position is a resolved callout location. X and Y are the callout's
// top-left corner.
type Position struct {
	Placement Placement `json:"placement"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
}

// candidateOrder is the fallback scan order.
var candidateOrder = [...]Placement{PlacementBottom, PlacementTop, PlacementRight, PlacementLeft}

// Candidates returns the four adjacent positions around target in scan
// order (bottom, top, right, left). Each is centred on the perpendicular axis.
func Candidates(target Rect, callout Size, gap float64) [4]Position {
	return [4]Position{
		{
			Placement: PlacementBottom,
			X:         target.CenterX() - callout.Width/2,
			Y:         target.Bottom() + gap,
		},
		{
			Placement: PlacementTop,
			X:         target.CenterX() - callout.Width/2,
			Y:         target.Top - callout.Height - gap,
		},
		{
			Placement: PlacementRight,
			X:         target.Right() + gap,
			Y:         target.CenterY() - callout.Height/2,
		},
		{
			Placement: PlacementLeft,
			X:         target.Left - callout.Width - gap,
			Y:         target.CenterY() - callout.Height/2,
		},
	}
}

// Fits reports whether a callout at p stays inside the padded viewport.
func Fits(p Position, callout Size, vp Viewport, padding float64) bool {
	return p.X >= padding &&
		p.X+callout.Width <= vp.Width-padding &&
		p.Y >= padding &&
		p.Y+callout.Height <= vp.Height-padding
}

// Place picks a callout position next to target.
//
// The preferred side wins when it fits. Otherwise the first fitting side in
// bottom, top, right, left order is used. When nothing fits the bottom
// candidate is clamped into the padded viewport, so the callout is always
// fully visible as long as it is no larger than the padded viewport itself.
func Place(target Rect, callout Size, preferred Placement, vp Viewport, opts Options) Position {
	defer metrics.Timer(metrics.Placement)()

	candidates := Candidates(target, callout, opts.Gap)

	for _, c := range candidates {
		if c.Placement == preferred && Fits(c, callout, vp, opts.Padding) {
			return c
		}
	}

	for _, c := range candidates {
		if Fits(c, callout, vp, opts.Padding) {
			return c
		}
	}

	fallback := candidates[0]
	return Position{
		Placement: PlacementBottom,
		X:         clamp(fallback.X, opts.Padding, vp.Width-callout.Width-opts.Padding),
		Y:         clamp(fallback.Y, opts.Padding, vp.Height-callout.Height-opts.Padding),
	}
}

// Center returns the centred position used when a step has no target.
func Center(callout Size, vp Viewport) Position {
	return Position{
		Placement: PlacementCenter,
		X:         vp.Width/2 - callout.Width/2,
		Y:         vp.Height/2 - callout.Height/2,
	}
}

// Resolve places a callout for an optional target. A nil target yields the
// centred position.
func Resolve(target *Rect, callout Size, preferred Placement, vp Viewport, opts Options) Position {
	if target == nil {
		return Center(callout, vp)
	}
	return Place(*target, callout, preferred, vp, opts)
}
