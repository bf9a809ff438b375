// Package layout computes where tour visuals go on screen: callout placement
// around a target and the spotlight cut-out that highlights it.
//
// All coordinates are in the host's screen units (CSS pixels for a browser
// host, cells for the terminal host) with the origin at the top-left corner
// of the viewport.
package layout

import "fmt"

// Placement is the side of the target a callout sits on.
type Placement string

const (
	PlacementTop    Placement = "top"
	PlacementBottom Placement = "bottom"
	PlacementLeft   Placement = "left"
	PlacementRight  Placement = "right"
	PlacementCenter Placement = "center"
)

// Valid reports whether p is one of the known placements.
func (p Placement) Valid() bool {
	switch p {
	case PlacementTop, PlacementBottom, PlacementLeft, PlacementRight, PlacementCenter:
		return true
	}
	return false
}

// Shape is the outline of a spotlight cut-out.
type Shape string

const (
	ShapeRect   Shape = "rect"
	ShapeCircle Shape = "circle"
	ShapeNone   Shape = "none"
)

// Valid reports whether s is one of the known shapes.
func (s Shape) Valid() bool {
	switch s {
	case ShapeRect, ShapeCircle, ShapeNone:
		return true
	}
	return false
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Right() float64   { return r.Left + r.Width }
func (r Rect) Bottom() float64  { return r.Top + r.Height }
func (r Rect) CenterX() float64 { return r.Left + r.Width/2 }
func (r Rect) CenterY() float64 { return r.Top + r.Height/2 }

// Expand grows the rectangle by pad on every side.
func (r Rect) Expand(pad float64) Rect {
	return Rect{
		Left:   r.Left - pad,
		Top:    r.Top - pad,
		Width:  r.Width + pad*2,
		Height: r.Height + pad*2,
	}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.0f,%.0f %.0fx%.0f)", r.Left, r.Top, r.Width, r.Height)
}

// Size is the measured size of a callout.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the visible area of the host page.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect returns the viewport as a rectangle anchored at the origin.
func (v Viewport) Rect() Rect {
	return Rect{Width: v.Width, Height: v.Height}
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
