package export

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/tourkit/pkg/engine"
	"github.com/vanderheijden86/tourkit/pkg/layout"
)

// Box is a page element drawn beneath the overlay.
type Box struct {
	Label string      `json:"label"`
	Rect  layout.Rect `json:"rect"`
}

// FrameSnapshotOptions controls overlay snapshot export.
type FrameSnapshotOptions struct {
	Path   string // Output path; format inferred from extension when Format empty
	Format string // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title  string // Optional caption, used as the SVG <title>
	Frame  engine.Frame
	Boxes  []Box

	// Transparent skips the page background, leaving an overlay that can be
	// laid over a live page.
	Transparent bool
}

// SaveFrameSnapshot renders one overlay frame (page boxes, dimming mask
// with the spotlight cut out, and the callout) as SVG or PNG.
func SaveFrameSnapshot(opts FrameSnapshotOptions) error {
	format, path, err := resolveFormat(opts.Format, opts.Path)
	if err != nil {
		return err
	}
	opts.Path = path

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	var buf bytes.Buffer
	switch format {
	case "svg":
		err = RenderFrameSVG(&buf, opts)
	case "png":
		err = RenderFramePNG(&buf, opts)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(opts.Path, buf.Bytes(), 0o644)
}

func resolveFormat(format, path string) (string, string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg"
			if path != "" && filepath.Ext(path) == "" {
				path += ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return "", "", fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if path == "" {
		return "", "", fmt.Errorf("output path is required")
	}
	return format, path, nil
}

func frameSize(f engine.Frame) (int, int, error) {
	w := int(math.Ceil(f.Viewport.Width))
	h := int(math.Ceil(f.Viewport.Height))
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("frame has no viewport")
	}
	return w, h, nil
}

// --- callout layout --------------------------------------------------------

const (
	// DefaultCalloutWidth is the callout width used by CalloutMeasurer when
	// none is set.
	DefaultCalloutWidth = 320.0
	calloutPad          = 16.0
	lineHeight          = 18.0
	sectionGap          = 8.0
)

var face = basicfont.Face7x13

var markdownMarks = strings.NewReplacer("**", "", "__", "", "*", "", "`", "")

type calloutText struct {
	title  []string
	body   []string
	footer string
	size   layout.Size
}

func layoutCallout(d engine.StepDescriptor, width float64) calloutText {
	inner := int(width - 2*calloutPad)
	ct := calloutText{
		title:  wordWrap(d.Title, inner),
		body:   wordWrap(markdownMarks.Replace(d.Description), inner),
		footer: fmt.Sprintf("%d of %d", d.Index+1, d.Total),
	}
	lines := len(ct.title) + len(ct.body) + 1
	h := 2*calloutPad + float64(lines)*lineHeight + sectionGap
	if len(ct.body) > 0 {
		h += sectionGap
	}
	ct.size = layout.Size{Width: width, Height: h}
	return ct
}

// wordWrap greedily wraps s to lines no wider than max pixels in the
// snapshot font. Words wider than max are kept whole on their own line.
func wordWrap(s string, max int) []string {
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		cur := words[0]
		for _, w := range words[1:] {
			if font.MeasureString(face, cur+" "+w).Ceil() <= max {
				cur += " " + w
				continue
			}
			lines = append(lines, cur)
			cur = w
		}
		lines = append(lines, cur)
	}
	return lines
}

// CalloutMeasurer sizes callouts the way the snapshot renderers draw them.
type CalloutMeasurer struct {
	Width float64
}

// MeasureCallout implements engine.Measurer.
func (m CalloutMeasurer) MeasureCallout(d engine.StepDescriptor) layout.Size {
	w := m.Width
	if w <= 0 {
		w = DefaultCalloutWidth
	}
	return layoutCallout(d, w).size
}

// --- rendering -------------------------------------------------------------

var (
	colorPage      = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorBox       = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorBoxStroke = color.RGBA{0xcf, 0xd8, 0xdc, 0xff}
	colorLabel     = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorRing      = color.RGBA{0x6b, 0x47, 0xd9, 0xff}
	colorPulse     = color.RGBA{0xff, 0xb8, 0x6c, 0xff}
	colorCallout   = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorText      = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle    = color.RGBA{0x66, 0x66, 0x66, 0xff}
)

// RenderFrameSVG writes the frame as SVG. Backdrop blur becomes a Gaussian
// blur filter on the page outside the spotlight.
func RenderFrameSVG(w io.Writer, opts FrameSnapshotOptions) error {
	width, height, err := frameSize(opts.Frame)
	if err != nil {
		return err
	}
	f := opts.Frame

	canvas := svg.New(w)
	canvas.Start(width, height)
	if opts.Title != "" {
		canvas.Title(opts.Title)
	}

	blur := f.Active && f.Visual.BackdropBlur > 0
	if blur || f.HasSpotlight {
		canvas.Def()
		if blur {
			canvas.Filter("backdrop")
			canvas.FeGaussianBlur(svg.Filterspec{In: "SourceGraphic"}, f.Visual.BackdropBlur/2, f.Visual.BackdropBlur/2)
			canvas.Fend()
		}
		if f.HasSpotlight {
			canvas.ClipPath(`id="spotlight"`)
			canvas.Path(SpotlightPath(f.Spotlight))
			canvas.ClipEnd()
		}
		canvas.DefEnd()
	}

	if !opts.Transparent {
		canvas.Rect(0, 0, width, height, fmt.Sprintf("fill:%s", css(colorPage)))
	}
	if blur {
		canvas.Group(`filter="url(#backdrop)"`)
		drawBoxesSVG(canvas, opts.Boxes)
		canvas.Gend()
		if f.HasSpotlight {
			canvas.Group(`clip-path="url(#spotlight)"`)
			drawBoxesSVG(canvas, opts.Boxes)
			canvas.Gend()
		}
	} else {
		drawBoxesSVG(canvas, opts.Boxes)
	}

	if f.Active {
		if f.Visual.MaskOpacity > 0 {
			d := fmt.Sprintf("M0 0H%dV%dH0Z", width, height)
			if f.HasSpotlight {
				d += " " + SpotlightPath(f.Spotlight)
			}
			canvas.Path(d, fmt.Sprintf("fill:#000;fill-opacity:%.2f;fill-rule:evenodd", f.Visual.MaskOpacity))
		}
		if f.HasSpotlight {
			canvas.Path(SpotlightPath(f.Spotlight), fmt.Sprintf("fill:none;stroke:%s;stroke-width:2", css(colorRing)))
			if f.Pulse {
				canvas.Path(SpotlightPath(grow(f.Spotlight, 6)),
					fmt.Sprintf("fill:none;stroke:%s;stroke-width:3;stroke-opacity:0.6", css(colorPulse)),
					`class="pulse"`)
			}
		}
		drawCalloutSVG(canvas, f)
	}

	canvas.End()
	return nil
}

func drawBoxesSVG(canvas *svg.SVG, boxes []Box) {
	for _, b := range boxes {
		x, y := int(b.Rect.Left), int(b.Rect.Top)
		canvas.Roundrect(x, y, int(b.Rect.Width), int(b.Rect.Height), 6, 6,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(colorBox), css(colorBoxStroke)))
		canvas.Text(x+10, y+20, b.Label, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorLabel)))
	}
}

func drawCalloutSVG(canvas *svg.SVG, f engine.Frame) {
	ct := layoutCallout(f.Step, f.CalloutSize.Width)
	x, y := int(f.Callout.X), int(f.Callout.Y)
	canvas.Roundrect(x, y, int(f.CalloutSize.Width), int(f.CalloutSize.Height), 10, 10,
		fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(colorCallout), css(colorRing)))

	ly := float64(y) + calloutPad + lineHeight*0.75
	tx := x + int(calloutPad)
	for _, l := range ct.title {
		canvas.Text(tx, int(ly), l, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
		ly += lineHeight
	}
	if len(ct.body) > 0 {
		ly += sectionGap
	}
	for _, l := range ct.body {
		canvas.Text(tx, int(ly), l, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorText)))
		ly += lineHeight
	}
	ly += sectionGap
	canvas.Text(tx, int(ly), ct.footer, fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
}

// RenderFramePNG writes the frame as PNG. The mask is filled even-odd so
// the spotlight stays clear.
func RenderFramePNG(w io.Writer, opts FrameSnapshotOptions) error {
	width, height, err := frameSize(opts.Frame)
	if err != nil {
		return err
	}
	f := opts.Frame

	dc := gg.NewContext(width, height)
	dc.SetColor(colorPage)
	dc.Clear()
	dc.SetFontFace(face)

	for _, b := range opts.Boxes {
		dc.SetColor(colorBox)
		dc.DrawRoundedRectangle(b.Rect.Left, b.Rect.Top, b.Rect.Width, b.Rect.Height, 6)
		dc.Fill()
		dc.SetColor(colorBoxStroke)
		dc.SetLineWidth(1)
		dc.DrawRoundedRectangle(b.Rect.Left, b.Rect.Top, b.Rect.Width, b.Rect.Height, 6)
		dc.Stroke()
		dc.SetColor(colorLabel)
		dc.DrawStringAnchored(b.Label, b.Rect.Left+10, b.Rect.Top+16, 0, 0.5)
	}

	if f.Active {
		if f.Visual.MaskOpacity > 0 {
			dc.Push()
			dc.DrawRectangle(0, 0, float64(width), float64(height))
			if f.HasSpotlight {
				drawSpotlightPath(dc, f.Spotlight)
			}
			dc.SetFillRuleEvenOdd()
			dc.SetRGBA(0, 0, 0, f.Visual.MaskOpacity)
			dc.Fill()
			dc.Pop()
		}
		if f.HasSpotlight {
			dc.SetColor(colorRing)
			dc.SetLineWidth(2)
			drawSpotlightPath(dc, f.Spotlight)
			dc.Stroke()
			if f.Pulse {
				dc.SetColor(colorPulse)
				dc.SetLineWidth(3)
				drawSpotlightPath(dc, grow(f.Spotlight, 6))
				dc.Stroke()
			}
		}
		drawCalloutPNG(dc, f)
	}

	return dc.EncodePNG(w)
}

func drawCalloutPNG(dc *gg.Context, f engine.Frame) {
	ct := layoutCallout(f.Step, f.CalloutSize.Width)
	x, y := f.Callout.X, f.Callout.Y
	dc.SetColor(colorCallout)
	dc.DrawRoundedRectangle(x, y, f.CalloutSize.Width, f.CalloutSize.Height, 10)
	dc.Fill()
	dc.SetColor(colorRing)
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, y, f.CalloutSize.Width, f.CalloutSize.Height, 10)
	dc.Stroke()

	ly := y + calloutPad + lineHeight/2
	tx := x + calloutPad
	dc.SetColor(colorText)
	for _, l := range ct.title {
		dc.DrawStringAnchored(l, tx, ly, 0, 0.5)
		ly += lineHeight
	}
	if len(ct.body) > 0 {
		ly += sectionGap
	}
	for _, l := range ct.body {
		dc.DrawStringAnchored(l, tx, ly, 0, 0.5)
		ly += lineHeight
	}
	ly += sectionGap
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(ct.footer, tx, ly, 0, 0.5)
}

// --- spotlight geometry ----------------------------------------------------

func grow(s layout.Spotlight, by float64) layout.Spotlight {
	s.Bounds = s.Bounds.Expand(by)
	s.Radius += by
	if s.CornerRadius > 0 {
		s.CornerRadius += by
	}
	return s
}

func drawSpotlightPath(dc *gg.Context, s layout.Spotlight) {
	if s.Shape == layout.ShapeCircle {
		dc.DrawCircle(s.CenterX, s.CenterY, s.Radius)
		return
	}
	b := s.Bounds
	dc.DrawRoundedRectangle(b.Left, b.Top, b.Width, b.Height, s.CornerRadius)
}

// SpotlightPath returns SVG path data for the cut-out. The same data serves
// CSS clip-path: path().
func SpotlightPath(s layout.Spotlight) string {
	if s.Shape == layout.ShapeCircle {
		r := s.Radius
		return fmt.Sprintf("M%g %gA%g %g 0 1 0 %g %gA%g %g 0 1 0 %g %gZ",
			s.CenterX-r, s.CenterY, r, r, s.CenterX+r, s.CenterY, r, r, s.CenterX-r, s.CenterY)
	}
	b := s.Bounds
	r := math.Min(s.CornerRadius, math.Min(b.Width, b.Height)/2)
	if r <= 0 {
		return fmt.Sprintf("M%g %gH%gV%gH%gZ", b.Left, b.Top, b.Right(), b.Bottom(), b.Left)
	}
	return fmt.Sprintf("M%g %gH%gA%g %g 0 0 1 %g %gV%gA%g %g 0 0 1 %g %gH%gA%g %g 0 0 1 %g %gV%gA%g %g 0 0 1 %g %gZ",
		b.Left+r, b.Top,
		b.Right()-r, r, r, b.Right(), b.Top+r,
		b.Bottom()-r, r, r, b.Right()-r, b.Bottom(),
		b.Left+r, r, r, b.Left, b.Bottom()-r,
		b.Top+r, r, r, b.Left+r, b.Top)
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
