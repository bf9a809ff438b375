package ui

import (
	"math"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/tourkit/pkg/layout"
)

// class selects the style of a canvas cell.
type class int

const (
	classPage class = iota
	classRegion
	classLabel
	classDim
	classSpotlight
	classPulse
	classCallout
	classCalloutBorder
	classCalloutTitle
	classCalloutFooter
	numClasses
)

// cell is one terminal cell. A zero rune marks the right half of a wide
// rune and renders as nothing.
type cell struct {
	r rune
	c class
}

// canvas is a fixed-size grid the overlay is composed on before styling.
type canvas struct {
	w, h  int
	cells []cell
}

func newCanvas(w, h int) *canvas {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	cv := &canvas{w: w, h: h, cells: make([]cell, w*h)}
	for i := range cv.cells {
		cv.cells[i] = cell{r: ' ', c: classPage}
	}
	return cv
}

func (cv *canvas) in(x, y int) bool { return x >= 0 && y >= 0 && x < cv.w && y < cv.h }

func (cv *canvas) at(x, y int) *cell { return &cv.cells[y*cv.w+x] }

func (cv *canvas) set(x, y int, r rune, c class) {
	if cv.in(x, y) {
		*cv.at(x, y) = cell{r: r, c: c}
	}
}

// text writes s starting at (x, y), clipped to the canvas.
func (cv *canvas) text(x, y int, s string, c class) {
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		cv.set(x, y, r, c)
		if w == 2 {
			cv.set(x+1, y, 0, c)
		}
		x += w
	}
}

// fill paints every cell of the box with r.
func (cv *canvas) fill(x, y, w, h int, r rune, c class) {
	for yy := y; yy < y+h; yy++ {
		for xx := x; xx < x+w; xx++ {
			cv.set(xx, yy, r, c)
		}
	}
}

// restyle changes the class of every cell for which keep returns false.
func (cv *canvas) restyle(c class, keep func(x, y int) bool) {
	for y := 0; y < cv.h; y++ {
		for x := 0; x < cv.w; x++ {
			if !keep(x, y) {
				cv.at(x, y).c = c
			}
		}
	}
}

type border struct{ tl, tr, bl, br, h, v rune }

var (
	squareBorder  = border{'┌', '┐', '└', '┘', '─', '│'}
	roundedBorder = border{'╭', '╮', '╰', '╯', '─', '│'}
	heavyBorder   = border{'┏', '┓', '┗', '┛', '━', '┃'}
)

// box draws a border around the w×h box at (x, y).
func (cv *canvas) box(x, y, w, h int, b border, c class) {
	if w < 2 || h < 2 {
		return
	}
	for xx := x + 1; xx < x+w-1; xx++ {
		cv.set(xx, y, b.h, c)
		cv.set(xx, y+h-1, b.h, c)
	}
	for yy := y + 1; yy < y+h-1; yy++ {
		cv.set(x, yy, b.v, c)
		cv.set(x+w-1, yy, b.v, c)
	}
	cv.set(x, y, b.tl, c)
	cv.set(x+w-1, y, b.tr, c)
	cv.set(x, y+h-1, b.bl, c)
	cv.set(x+w-1, y+h-1, b.br, c)
}

// cells converts a float rect to the covering integer cell box.
func cells(r layout.Rect) (x, y, w, h int) {
	x = int(math.Floor(r.Left))
	y = int(math.Floor(r.Top))
	w = int(math.Ceil(r.Right())) - x
	h = int(math.Ceil(r.Bottom())) - y
	return
}

// render styles each row run by run.
func (cv *canvas) render(t Theme) string {
	var b strings.Builder
	var run strings.Builder
	for y := 0; y < cv.h; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		cur := class(-1)
		for x := 0; x < cv.w; x++ {
			c := cv.at(x, y)
			if c.c != cur {
				if run.Len() > 0 {
					b.WriteString(t.cell(cur).Render(run.String()))
					run.Reset()
				}
				cur = c.c
			}
			if c.r != 0 {
				run.WriteRune(c.r)
			}
		}
		if run.Len() > 0 {
			b.WriteString(t.cell(cur).Render(run.String()))
			run.Reset()
		}
	}
	return b.String()
}

// plain returns the canvas text without styling.
func (cv *canvas) plain() string {
	var b strings.Builder
	for y := 0; y < cv.h; y++ {
		if y > 0 {
			b.WriteByte('\n')
		}
		for x := 0; x < cv.w; x++ {
			if r := cv.at(x, y).r; r != 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
