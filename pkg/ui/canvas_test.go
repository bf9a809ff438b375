package ui

import (
	"strings"
	"testing"

	"github.com/vanderheijden86/tourkit/pkg/layout"
)

func TestCanvas_BoxAndText(t *testing.T) {
	cv := newCanvas(8, 3)
	cv.box(0, 0, 8, 3, squareBorder, classRegion)
	cv.text(1, 1, "hi", classLabel)

	want := "┌──────┐\n│hi    │\n└──────┘"
	if got := cv.plain(); got != want {
		t.Errorf("unexpected canvas:\n%s\nwant:\n%s", got, want)
	}
}

func TestCanvas_ClipsOutOfBounds(t *testing.T) {
	cv := newCanvas(4, 2)
	cv.text(2, 0, "abcdef", classPage)
	cv.box(-3, -3, 10, 10, squareBorder, classRegion)
	cv.fill(3, 1, 5, 5, '#', classDim)

	if got := cv.plain(); got != "  ab\n   #" {
		t.Errorf("unexpected clipping result %q", got)
	}
}

func TestCanvas_WideRunes(t *testing.T) {
	cv := newCanvas(6, 1)
	cv.text(0, 0, "日本x", classPage)
	if got := cv.plain(); got != "日本x " {
		t.Errorf("expected wide runes to take two cells, got %q", got)
	}
}

func TestCanvas_Restyle(t *testing.T) {
	cv := newCanvas(3, 1)
	cv.restyle(classDim, func(x, _ int) bool { return x == 1 })
	if cv.at(0, 0).c != classDim || cv.at(1, 0).c != classPage || cv.at(2, 0).c != classDim {
		t.Error("restyle should keep only the cells the predicate accepts")
	}
}

func TestCells_CoverFractionalRects(t *testing.T) {
	x, y, w, h := cells(layout.Rect{Left: 1.5, Top: 2.2, Width: 3, Height: 1.5})
	if x != 1 || y != 2 || w != 4 || h != 2 {
		t.Errorf("unexpected cell box %d,%d %dx%d", x, y, w, h)
	}
}

func TestCanvas_RenderKeepsText(t *testing.T) {
	cv := newCanvas(10, 1)
	cv.text(0, 0, "tour", classCalloutTitle)
	cv.text(5, 0, "kit", classCallout)
	if out := cv.render(TestTheme()); !strings.Contains(out, "tour") || !strings.Contains(out, "kit") {
		t.Errorf("rendered canvas lost text: %q", out)
	}
}
