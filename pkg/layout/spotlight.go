package layout

// DefaultSpotlightPadding is the breathing room kept around a highlighted
// target so the cut-out does not clip its text.
const DefaultSpotlightPadding = 16.0

// DefaultCornerRadius rounds the corners of rect spotlights.
const DefaultCornerRadius = 16.0

// Spotlight is the region cut out of the dimming overlay.
//
// For ShapeRect, Bounds is the cut-out itself. For ShapeCircle, the cut-out
// is the circle at (CenterX, CenterY) with Radius; Bounds still holds the
// padded target box.
type Spotlight struct {
	Shape        Shape   `json:"shape"`
	Bounds       Rect    `json:"bounds"`
	CornerRadius float64 `json:"corner_radius,omitempty"`
	CenterX      float64 `json:"cx,omitempty"`
	CenterY      float64 `json:"cy,omitempty"`
	Radius       float64 `json:"r,omitempty"`
}

// ComputeSpotlight returns the cut-out for target. ShapeNone (and any
// unknown shape) yields ok == false: there is nothing to cut out.
func ComputeSpotlight(target Rect, shape Shape, padding float64) (Spotlight, bool) {
	expanded := target.Expand(padding)

	switch shape {
	case ShapeRect, "":
		return Spotlight{
			Shape:        ShapeRect,
			Bounds:       expanded,
			CornerRadius: DefaultCornerRadius,
		}, true
	case ShapeCircle:
		return Spotlight{
			Shape:   ShapeCircle,
			Bounds:  expanded,
			CenterX: target.CenterX(),
			CenterY: target.CenterY(),
			Radius:  max(expanded.Width, expanded.Height)/2 + padding,
		}, true
	default:
		return Spotlight{Shape: ShapeNone}, false
	}
}

// Contains reports whether the point lies inside the cut-out.
func (s Spotlight) Contains(x, y float64) bool {
	switch s.Shape {
	case ShapeRect:
		return x >= s.Bounds.Left && x <= s.Bounds.Right() &&
			y >= s.Bounds.Top && y <= s.Bounds.Bottom()
	case ShapeCircle:
		dx, dy := x-s.CenterX, y-s.CenterY
		return dx*dx+dy*dy <= s.Radius*s.Radius
	}
	return false
}
