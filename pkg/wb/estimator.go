package wb

import (
	"fmt"
	"image"

	"github.com/abworrall/scalecam/pkg/ecolor"
	"github.com/abworrall/scalecam/pkg/emath"
	"github.com/abworrall/scalecam/pkg/frame"
)

// Estimate is everything the estimator worked out for one frame.
type Estimate struct {
	Raw      emath.Vec3 // The blend of base correction and measured gains; what the smoother consumes
	Measured emath.Vec3 // Gray world gains from this frame alone
	Means    emath.Vec3 // Per-channel means over the pixels we used

	Region  image.Rectangle // Bounding box of the pixels we used
	Valid   int             // How many pixels we used
	Sampled int             // How many pixels we looked at

	Fallback   bool // Too few mid-tone pixels, so we used the center crop instead
	Degenerate bool // Nothing usable at all; Raw is just the model's base correction
}

func (e Estimate) String() string {
	str := fmt.Sprintf("Estimate{raw%s measured%s means%s, %d/%d px in %s",
		e.Raw, e.Measured, e.Means, e.Valid, e.Sampled, e.Region)
	if e.Fallback {
		str += ", fallback"
	}
	if e.Degenerate {
		str += ", DEGENERATE"
	}
	return str + "}"
}

// Estimator does gray world white balance estimation, restricted to the
// pixels that are neither too dark (noisy) nor too bright (clipped or
// specular).
type Estimator struct {
	Thresholds
}

func NewEstimator(t Thresholds) Estimator {
	t.Finalize()
	return Estimator{Thresholds: t}
}

// Luma as per ITU-R BT.601. Only used to pick pixels, never for output.
func Luma(b, g, r uint8) float64 {
	return 0.2989*float64(r) + 0.5870*float64(g) + 0.1140*float64(b)
}

// channelAccumulator sums up pixel values for the means.
type channelAccumulator struct {
	sum    [3]float64
	n      int
	region image.Rectangle
}

func (acc *channelAccumulator) add(x, y int, b, g, r uint8) {
	acc.sum[emath.B] += float64(b)
	acc.sum[emath.G] += float64(g)
	acc.sum[emath.R] += float64(r)
	acc.n++
	acc.region = frame.GrowRectangle(acc.region, image.Point{x, y})
}

func (acc *channelAccumulator) means() emath.Vec3 {
	if acc.n == 0 {
		return emath.Vec3{}
	}
	n := float64(acc.n)
	return emath.Vec3{acc.sum[0] / n, acc.sum[1] / n, acc.sum[2] / n}
}

// Estimate measures the color cast of f and blends the correction for it
// with the model's base correction. The frame is assumed to be valid.
func (est Estimator) Estimate(f *frame.Frame, m ecolor.ColorModel) Estimate {
	ret := Estimate{
		Raw:      m.BaseCorrection,
		Measured: emath.Identity,
	}
	if f == nil || f.Width <= 0 || f.Height <= 0 || len(f.Pix) < f.Width*f.Height*frame.Channels {
		ret.Degenerate = true
		return ret
	}

	stride := est.SampleStride
	if stride < 1 {
		stride = 1
	}
	clip := est.ClipHigh

	// Main pass: mid-tone pixels, anywhere in the frame
	acc := channelAccumulator{}
	bounds := f.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			b, g, r := f.BGR(x, y)
			ret.Sampled++
			if b >= clip || g >= clip || r >= clip {
				continue
			}
			if l := Luma(b, g, r); l > est.LumaLow && l < est.LumaHigh {
				acc.add(x, y, b, g, r)
			}
		}
	}

	if !est.enough(acc.n, ret.Sampled) {
		// Fallback pass: anything unclipped in the middle of the frame
		ret.Fallback = true
		acc = channelAccumulator{}
		crop := frame.CenterCrop(bounds, est.CenterCropFraction)
		for y := crop.Min.Y; y < crop.Max.Y; y += stride {
			for x := crop.Min.X; x < crop.Max.X; x += stride {
				b, g, r := f.BGR(x, y)
				if b < clip && g < clip && r < clip {
					acc.add(x, y, b, g, r)
				}
			}
		}
	}

	ret.Valid = acc.n
	ret.Region = acc.region
	if acc.n == 0 {
		ret.Degenerate = true
		return ret
	}

	ret.Means = acc.means()
	ret.Measured = est.grayWorld(ret.Means)
	ret.Raw = m.BaseCorrection.Scale(m.FixedWeight).Add(ret.Measured.Scale(m.DynamicWeight()))

	return ret
}

func (est Estimator) enough(valid, sampled int) bool {
	if valid < est.MinValidPixels {
		return false
	}
	return float64(valid) >= est.MinValidFraction*float64(sampled)
}

// grayWorld assumes the scene averages out to gray, so each channel gets
// whatever gain would bring its mean up (or down) to the overall mean.
func (est Estimator) grayWorld(means emath.Vec3) emath.Vec3 {
	avg := means.Mean()
	ret := emath.Identity
	for c := range means {
		if means[c] >= est.MinChannelMean {
			ret[c] = avg / means[c]
		}
	}
	return ret
}

// LumaGrid returns the luminance plane of the frame; handy for dumping
// out with ToImg when tuning the thresholds.
func LumaGrid(f *frame.Frame) emath.FloatGrid {
	fg := emath.NewFloatGrid(f.Width, f.Height)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			fg.Set(x, y, Luma(f.BGR(x, y)))
		}
	}
	return fg
}
