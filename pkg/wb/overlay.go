package wb

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/basicfont"

	"github.com/abworrall/scalecam/pkg/emath"
	"github.com/abworrall/scalecam/pkg/frame"
)

var barColors = [3]colorful.Color{
	emath.B: colorful.Hsv(220, 0.75, 0.95),
	emath.G: colorful.Hsv(120, 0.75, 0.85),
	emath.R: colorful.Hsv(0, 0.75, 0.95),
}

// DrawOverlay returns a copy of the corrected frame with the diagnostics
// drawn on top. The corrected frame itself is not touched.
func DrawOverlay(corrected *frame.Frame, d Diagnostics) *frame.Frame {
	dc := gg.NewContextForImage(corrected.ToRGBA())
	dc.SetFontFace(basicfont.Face7x13)

	lines := []string{
		fmt.Sprintf("%s %s", d.Class, d.Resolution),
		fmt.Sprintf("%s %s", d.Source, d.Gains),
	}
	if d.Source == SourceAuto {
		status := fmt.Sprintf("cast %.3f", d.CastDelta)
		if d.Fallback {
			status += " [center crop]"
		}
		if d.Degenerate {
			status += " [no usable pixels]"
		}
		lines = append(lines, status)
	}

	// Backing panel, so the text is legible on any scene
	lineHeight := 15.0
	dc.SetRGBA(0, 0, 0, 0.6)
	dc.DrawRectangle(4, 4, 330, lineHeight*float64(len(lines))+6)
	dc.Fill()

	dc.SetRGB(1, 1, 1)
	for i, l := range lines {
		dc.DrawString(l, 8, 4+lineHeight*float64(i+1))
	}

	if d.Source == SourceAuto && !d.Degenerate {
		drawMeanBars(dc, d.Means)
		if !d.Region.Empty() {
			r := d.Region
			dc.SetRGB(1, 1, 0)
			dc.SetLineWidth(2)
			dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
			dc.Stroke()
		}
	}

	out := frame.New(corrected.Width, corrected.Height)
	out.Seq, out.Timestamp = corrected.Seq, corrected.Timestamp
	if rgba, ok := dc.Image().(*image.RGBA); ok && out.CopyFromRGBA(rgba) == nil {
		return out
	}
	ret := frame.FromImage(dc.Image())
	ret.Seq, ret.Timestamp = corrected.Seq, corrected.Timestamp
	return ret
}

// drawMeanBars draws three vertical bars in the bottom left, one per
// channel, with heights proportional to the channel means.
func drawMeanBars(dc *gg.Context, means emath.Vec3) {
	const barWidth, maxHeight, gap = 12.0, 80.0, 4.0
	base := float64(dc.Height()) - 8

	for i, c := range []int{emath.B, emath.G, emath.R} {
		h := maxHeight * means[c] / 255.0
		x := 8 + float64(i)*(barWidth+gap)
		dc.SetColor(barColors[c])
		dc.DrawRectangle(x, base-h, barWidth, h)
		dc.Fill()
	}

	dc.SetRGBA(1, 1, 1, 0.5)
	dc.SetLineWidth(1)
	dc.DrawRectangle(6, base-maxHeight-2, 3*barWidth+2*gap+4, maxHeight+4)
	dc.Stroke()
}
