package ui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// truncateRunesHelper truncates a string to max visual width (cells), adding suffix if needed.
// Uses go-runewidth to handle wide characters correctly.
func truncateRunesHelper(s string, maxWidth int, suffix string) string {
	if maxWidth <= 0 {
		return ""
	}

	width := runewidth.StringWidth(s)
	if width <= maxWidth {
		return s
	}

	suffixWidth := runewidth.StringWidth(suffix)
	if suffixWidth > maxWidth {
		// Even suffix is too wide, truncate suffix
		return runewidth.Truncate(suffix, maxWidth, "")
	}

	targetWidth := maxWidth - suffixWidth
	return runewidth.Truncate(s, targetWidth, "") + suffix
}

// padRight pads string s with spaces on the right to visual width.
func padRight(s string, width int) string {
	w := runewidth.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

// truncate truncates string s to maxWidth cells.
func truncate(s string, maxWidth int) string {
	return truncateRunesHelper(s, maxWidth, "…")
}

// wrapText greedily wraps s into lines of at most width cells. Words wider
// than width are hard-cut.
func wrapText(s string, width int) []string {
	if width <= 0 {
		return nil
	}
	var (
		lines []string
		cur   strings.Builder
		curW  int
	)
	flush := func() {
		lines = append(lines, cur.String())
		cur.Reset()
		curW = 0
	}

	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			flush()
			continue
		}
		for _, w := range words {
			ww := runewidth.StringWidth(w)
			for ww > width {
				if curW > 0 {
					flush()
				}
				head := runewidth.Truncate(w, width, "")
				if head == "" {
					head = string([]rune(w)[:1])
				}
				lines = append(lines, head)
				w = w[len(head):]
				ww = runewidth.StringWidth(w)
			}
			if ww == 0 {
				continue
			}
			switch {
			case curW == 0:
				cur.WriteString(w)
				curW = ww
			case curW+1+ww <= width:
				cur.WriteByte(' ')
				cur.WriteString(w)
				curW += 1 + ww
			default:
				flush()
				cur.WriteString(w)
				curW = ww
			}
		}
		if curW > 0 {
			flush()
		}
	}
	return lines
}

// maxWidth returns the widest line in cells.
func maxWidth(lines []string) int {
	max := 0
	for _, l := range lines {
		if w := runewidth.StringWidth(l); w > max {
			max = w
		}
	}
	return max
}
