package emath

import "math"

// Some functions that only operate on basic types, that are useful

// https://www.sjbrown.co.uk/posts/gamma-correct-rendering/ - "linear RGB to sRGB"
// `f` is assumed to be in the range [0,1]
func GammaExpand_F64(f float64) float64 {
	if f <= 0.0031308 {
		return 12.92 * f
	}
	return 1.055*math.Pow(f, 1.0/2.4) - 0.055
}

// GammaLUT builds the 8-bit lookup table out = 255 * (in/255)^(1/gamma),
// the same curve the camera profiles' `gamma_correction` used. Gamma of
// 1.0 (or anything <= 0) gives the identity table.
func GammaLUT(gamma float64) [256]uint8 {
	var lut [256]uint8
	if gamma <= 0 || gamma == 1.0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	inv := 1.0 / gamma
	for i := range lut {
		lut[i] = ClampU8(math.Pow(float64(i)/255.0, inv) * 255.0)
	}
	return lut
}

// ClampU8 rounds and saturates into [0, 255]; never wraps.
func ClampU8(f float64) uint8 {
	switch {
	case math.IsNaN(f), f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(math.Round(f))
}
