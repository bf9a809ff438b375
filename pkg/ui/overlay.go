package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/key"

	"github.com/vanderheijden86/tourkit/pkg/engine"
	"github.com/vanderheijden86/tourkit/pkg/layout"
)

// Callout content is laid out inside a one-cell border and one column of
// padding on each side.
const (
	calloutChrome   = 4
	calloutMaxWidth = 48
	calloutMinWidth = 20
)

type calloutLine struct {
	text string
	c    class
}

// Callout lays out step callouts. It is the engine's Measurer, so the size
// the engine places is the size the overlay draws.
type Callout struct {
	md    *MarkdownRenderer
	keys  engine.KeyMap
	width int // content width
}

// NewCallout returns a callout renderer.
func NewCallout(md *MarkdownRenderer, keys engine.KeyMap) *Callout {
	return &Callout{md: md, keys: keys, width: calloutMaxWidth - calloutChrome}
}

// Fit adapts the content width to the viewport.
func (c *Callout) Fit(vp layout.Viewport, opts layout.Options) {
	w := int(vp.Width-2*opts.Padding) - calloutChrome
	if w > calloutMaxWidth-calloutChrome {
		w = calloutMaxWidth - calloutChrome
	}
	if w < calloutMinWidth-calloutChrome {
		w = calloutMinWidth - calloutChrome
	}
	c.width = w
}

// MeasureCallout implements engine.Measurer.
func (c *Callout) MeasureCallout(d engine.StepDescriptor) layout.Size {
	lines := c.lines(d)
	return layout.Size{Width: float64(c.width + calloutChrome), Height: float64(len(lines) + 2)}
}

func (c *Callout) lines(d engine.StepDescriptor) []calloutLine {
	var out []calloutLine
	for _, l := range wrapText(d.Title, c.width) {
		out = append(out, calloutLine{l, classCalloutTitle})
	}
	if desc := c.md.Lines(d.Description, c.width); len(desc) > 0 {
		out = append(out, calloutLine{"", classCallout})
		for _, l := range desc {
			out = append(out, calloutLine{l, classCallout})
		}
	}
	out = append(out, calloutLine{"", classCallout})
	for _, l := range wrapText(c.footer(d), c.width) {
		out = append(out, calloutLine{l, classCalloutFooter})
	}
	return out
}

func (c *Callout) footer(d engine.StepDescriptor) string {
	parts := []string{fmt.Sprintf("%d/%d", d.Index+1, d.Total)}
	add := func(b key.Binding) {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	if d.CanPrev {
		add(c.keys.Prev)
	}
	if d.CanNext {
		add(c.keys.Next)
	}
	if d.IsLast {
		add(c.keys.Complete)
	}
	add(c.keys.Skip)
	return strings.Join(parts, " · ")
}

// draw paints the callout box at the frame's position.
func (c *Callout) draw(cv *canvas, f engine.Frame) {
	x := int(math.Round(f.Callout.X))
	y := int(math.Round(f.Callout.Y))
	w := int(f.CalloutSize.Width)
	h := int(f.CalloutSize.Height)

	cv.fill(x, y, w, h, ' ', classCallout)
	cv.box(x, y, w, h, roundedBorder, classCalloutBorder)
	for i, l := range c.lines(f.Step) {
		if i >= h-2 {
			break
		}
		cv.text(x+2, y+1+i, truncate(l.text, w-calloutChrome), l.c)
	}
}

// drawPage paints the visible regions of the current page.
func drawPage(cv *canvas, regions []PlacedRegion) {
	for _, r := range regions {
		x, y, w, h := cells(r.View)
		cv.fill(x, y, w, h, ' ', classPage)
		cv.box(x, y, w, h, squareBorder, classRegion)
		if w > 2 && h > 0 {
			label := truncate(r.Label, w-2)
			row := y
			if h > 2 {
				row = y + 1
			}
			cv.text(x+1, row, label, classLabel)
		}
	}
}

// drawOverlay dims everything outside the spotlight, outlines the
// spotlight and draws the callout.
func drawOverlay(cv *canvas, f engine.Frame, c *Callout) {
	if !f.Active {
		return
	}
	if f.HasSpotlight {
		s := f.Spotlight
		sx, sy, sw, sh := cells(s.Bounds)
		inside := func(x, y int) bool {
			if s.Shape == layout.ShapeCircle {
				return s.Contains(float64(x)+0.5, float64(y)+0.5)
			}
			return x >= sx && x < sx+sw && y >= sy && y < sy+sh
		}
		if f.Visual.MaskOpacity > 0 {
			cv.restyle(classDim, inside)
		}
		b, cls := squareBorder, classSpotlight
		if s.CornerRadius > 0 || s.Shape == layout.ShapeCircle {
			b = roundedBorder
		}
		if f.Pulse {
			b, cls = heavyBorder, classPulse
		}
		cv.box(sx, sy, sw, sh, b, cls)
	} else if f.Visual.MaskOpacity > 0 {
		cv.restyle(classDim, func(int, int) bool { return false })
	}
	c.draw(cv, f)
}
