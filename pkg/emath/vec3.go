package emath

// Small vector helpers for the 3-channel gain vectors that flow through
// the white balance pipeline.

import (
	"fmt"
	"math"

	"golang.org/x/image/math/f64" // Will be "image/math/f64" at some point, hopefully
)

// Channel indices. Frames are stored BGR (the way OpenCV hands them to
// us), so gain vectors use the same order.
const (
	B = 0
	G = 1
	R = 2
)

// Use a local type so we can hang methods off it
type Vec3 f64.Vec3

// Identity is the neutral gain vector; applying it changes nothing.
var Identity = Vec3{1, 1, 1}

func (v Vec3) String() string {
	return fmt.Sprintf("[B%6.4f, G%6.4f, R%6.4f]", v[B], v[G], v[R])
}

func (v Vec3) Add(w Vec3) Vec3 { return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]} }
func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]} }
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v[0] * f, v[1] * f, v[2] * f} }

// Lerp returns (1-t)*v + t*w, element-wise.
func (v Vec3) Lerp(w Vec3, t float64) Vec3 {
	return v.Scale(1 - t).Add(w.Scale(t))
}

// Dist is the euclidean distance between two vectors.
func (v Vec3) Dist(w Vec3) float64 {
	d := v.Sub(w)
	return math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
}

// Mean of the three components.
func (v Vec3) Mean() float64 { return (v[0] + v[1] + v[2]) / 3.0 }

func (v *Vec3) FloorAt(min float64) {
	if v[0] < min {
		v[0] = min
	}
	if v[1] < min {
		v[1] = min
	}
	if v[2] < min {
		v[2] = min
	}
}

func (v *Vec3) CeilingAt(max float64) {
	if v[0] > max {
		v[0] = max
	}
	if v[1] > max {
		v[1] = max
	}
	if v[2] > max {
		v[2] = max
	}
}

// Clamp returns a copy with every component inside [min, max]. NaNs
// become min, since a NaN gain is never something we want to apply.
func (v Vec3) Clamp(min, max float64) Vec3 {
	for i := range v {
		if math.IsNaN(v[i]) {
			v[i] = min
		}
	}
	v.FloorAt(min)
	v.CeilingAt(max)
	return v
}

// IsIdentity is true only for exactly (1,1,1).
func (v Vec3) IsIdentity() bool { return v == Identity }
