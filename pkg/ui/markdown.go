package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-runewidth"
)

// MarkdownRenderer turns step descriptions into wrapped plain lines that
// the overlay canvas can place cell by cell. Renderers are cached per width.
type MarkdownRenderer struct {
	mu    sync.Mutex
	byW   map[int]*glamour.TermRenderer
	style string
}

// NewMarkdownRenderer returns a renderer using glamour's plain-text style.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{byW: make(map[int]*glamour.TermRenderer), style: "notty"}
}

func (r *MarkdownRenderer) renderer(width int) (*glamour.TermRenderer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tr, ok := r.byW[width]; ok {
		return tr, nil
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	r.byW[width] = tr
	return tr, nil
}

// Lines renders md and returns its lines, each at most width cells wide.
// Rendering failures fall back to plain word wrapping.
func (r *MarkdownRenderer) Lines(md string, width int) []string {
	if strings.TrimSpace(md) == "" || width <= 0 {
		return nil
	}
	tr, err := r.renderer(width)
	if err != nil {
		return wrapText(md, width)
	}
	out, err := tr.Render(md)
	if err != nil {
		return wrapText(md, width)
	}
	lines := normalizeLines(strings.Split(out, "\n"))
	for i, l := range lines {
		if runewidth.StringWidth(l) > width {
			lines[i] = runewidth.Truncate(l, width, "")
		}
	}
	return lines
}

// normalizeLines trims trailing space, drops blank lines at both ends and
// removes the indentation glamour puts around the document.
func normalizeLines(lines []string) []string {
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	indent := -1
	for _, l := range lines {
		if l == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " "))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent > 0 {
		for i, l := range lines {
			if len(l) >= indent {
				lines[i] = l[indent:]
			}
		}
	}
	return lines
}
