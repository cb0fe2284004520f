package wb

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/scalecam/pkg/emath"
	"github.com/abworrall/scalecam/pkg/frame"
)

// Unclipped is a frame with gains applied but without the clamp to 255,
// so the values are linear floats where 1.0 is the old white point. Writing
// one out as a .hdr shows how much highlight detail the gains pushed off the
// top of the range.
type Unclipped struct {
	Frame *frame.Frame
	Gains emath.Vec3
}

var _ hdr.Image = Unclipped{}

// Implement golang's image.Image interface
func (u Unclipped) ColorModel() color.Model { return hdrcolor.RGBModel }
func (u Unclipped) Bounds() image.Rectangle { return u.Frame.Bounds() }
func (u Unclipped) At(x, y int) color.Color { return u.HDRAt(x, y) }

// Implement hdr.Image interface
func (u Unclipped) HDRAt(x, y int) hdrcolor.Color {
	b, g, r := u.Frame.BGR(x, y)
	return hdrcolor.RGB{
		R: float64(r) * u.Gains[emath.R] / 255.0,
		G: float64(g) * u.Gains[emath.G] / 255.0,
		B: float64(b) * u.Gains[emath.B] / 255.0,
	}
}
func (u Unclipped) Size() int { return u.Frame.Width * u.Frame.Height }

// ClippedFraction is the fraction of pixels where at least one channel
// ended up above 1.0.
func (u Unclipped) ClippedFraction() float64 {
	if u.Size() == 0 {
		return 0
	}
	n := 0
	for y := 0; y < u.Frame.Height; y++ {
		for x := 0; x < u.Frame.Width; x++ {
			r, g, b, _ := u.HDRAt(x, y).HDRRGBA()
			if r > 1 || g > 1 || b > 1 {
				n++
			}
		}
	}
	return float64(n) / float64(u.Size())
}

func (u Unclipped) WriteHDR(filename string) error {
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("open+w '%s': %w", filename, err)
	}
	defer writer.Close()
	return rgbe.Encode(writer, u)
}
