package wb

import "fmt"

// Thresholds control which pixels the estimator trusts. The defaults
// suit 8-bit webcam frames of produce under indoor lighting.
type Thresholds struct {
	LumaLow            float64 // Pixels must be strictly brighter than this ...
	LumaHigh           float64 // ... and strictly darker than this
	ClipHigh           uint8   // Any channel at or above this is treated as clipped
	MinValidFraction   float64 // Need at least this fraction of sampled pixels ...
	MinValidPixels     int     // ... and at least this many, or we fall back to the center crop
	CenterCropFraction float64 // Side length of the fallback crop, as a fraction of the frame
	SampleStride       int     // Only look at every Nth pixel in each direction
	MinChannelMean     float64 // Channel means below this get a gain of 1.0
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		LumaLow:            50,
		LumaHigh:           200,
		ClipHigh:           240,
		MinValidFraction:   0.02,
		MinValidPixels:     64,
		CenterCropFraction: 0.5,
		SampleStride:       2,
		MinChannelMean:     1.0,
	}
}

func (t Thresholds) String() string {
	return fmt.Sprintf("luma(%.0f,%.0f) clip<%d, min %.1f%%/%dpx, crop %.2f, stride %d",
		t.LumaLow, t.LumaHigh, t.ClipHigh, t.MinValidFraction*100, t.MinValidPixels,
		t.CenterCropFraction, t.SampleStride)
}

// Finalize replaces nonsense values with defaults.
func (t *Thresholds) Finalize() {
	def := DefaultThresholds()
	if t.LumaHigh <= t.LumaLow {
		t.LumaLow, t.LumaHigh = def.LumaLow, def.LumaHigh
	}
	if t.ClipHigh == 0 {
		t.ClipHigh = def.ClipHigh
	}
	if t.MinValidFraction < 0 || t.MinValidFraction > 1 {
		t.MinValidFraction = def.MinValidFraction
	}
	if t.MinValidPixels < 0 {
		t.MinValidPixels = def.MinValidPixels
	}
	if t.CenterCropFraction <= 0 || t.CenterCropFraction > 1 {
		t.CenterCropFraction = def.CenterCropFraction
	}
	if t.SampleStride < 1 {
		t.SampleStride = 1
	}
	if t.MinChannelMean <= 0 {
		t.MinChannelMean = def.MinChannelMean
	}
}
