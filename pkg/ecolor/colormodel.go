package ecolor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/abworrall/scalecam/pkg/emath"
)

var ErrInvalidModel = errors.New("invalid color model")

// Bounds for any gain we are prepared to apply. Outside of this the
// correction is running away from us, not fixing a color cast.
const (
	MinGain = 0.3
	MaxGain = 3.0
)

// A ColorModel describes how a class of camera gets white balanced. The
// BaseCorrection is what we know about the sensor in advance (e.g. the
// IMX219 reads blue-ish under shop lighting); the rest of the
// correction is measured from each frame, and the weights say how much
// we trust each half.
type ColorModel struct {
	Class           CameraClass
	BaseCorrection  emath.Vec3 // B,G,R multiplicative gains
	FixedWeight     float64    // [0,1]; DynamicWeight is 1 minus this
	SmoothingFactor float64    // [0,1); how hard history damps each new estimate
	Gamma           float64    // Applied after white balance; 1.0 is a no-op
}

func (m ColorModel) DynamicWeight() float64 { return 1.0 - m.FixedWeight }

func (m ColorModel) String() string {
	return fmt.Sprintf("%s: base%s, fixed %.2f / dynamic %.2f, smoothing %.2f, gamma %.2f",
		m.Class, m.BaseCorrection, m.FixedWeight, m.DynamicWeight(), m.SmoothingFactor, m.Gamma)
}

// Validate checks the invariants every model must hold before it is
// allowed anywhere near a frame.
func (m ColorModel) Validate() error {
	for i, g := range m.BaseCorrection {
		if !(g > MinGain && g <= MaxGain) {
			return fmt.Errorf("%w: %s base correction[%d]=%v outside (%.1f, %.1f]",
				ErrInvalidModel, m.Class, i, g, MinGain, MaxGain)
		}
	}
	if m.FixedWeight < 0 || m.FixedWeight > 1 {
		return fmt.Errorf("%w: %s fixed weight %v outside [0,1]", ErrInvalidModel, m.Class, m.FixedWeight)
	}
	if m.SmoothingFactor < 0 || m.SmoothingFactor >= 1 {
		return fmt.Errorf("%w: %s smoothing %v outside [0,1)", ErrInvalidModel, m.Class, m.SmoothingFactor)
	}
	if m.Gamma <= 0 {
		return fmt.Errorf("%w: %s gamma %v must be > 0", ErrInvalidModel, m.Class, m.Gamma)
	}
	return nil
}

// The defaults were tuned against an M2 MacBook Air's FaceTime camera,
// an Arducam B0196 (IMX219) and a JSK-S8130 (OV5648), under the LED
// panels over the scale. They are a starting point for new hardware,
// nothing more.
func DefaultColorModels() ColorModelTable {
	return ColorModelTable{
		MacBookBuiltin: {
			Class:           MacBookBuiltin,
			BaseCorrection:  emath.Vec3{0.88, 1.00, 1.12},
			FixedWeight:     0.70,
			SmoothingFactor: 0.60,
			Gamma:           1.0,
		},
		ExternalGeneric: {
			Class:           ExternalGeneric,
			BaseCorrection:  emath.Vec3{1.00, 1.00, 1.00},
			FixedWeight:     0.80,
			SmoothingFactor: 0.70,
			Gamma:           1.0,
		},
		ArducamIMX219: {
			Class:           ArducamIMX219,
			BaseCorrection:  emath.Vec3{0.85, 1.00, 1.18},
			FixedWeight:     0.80,
			SmoothingFactor: 0.60,
			Gamma:           1.0,
		},
		JskOv5648: {
			Class:           JskOv5648,
			BaseCorrection:  emath.Vec3{0.92, 1.00, 1.08},
			FixedWeight:     0.70,
			SmoothingFactor: 0.65,
			Gamma:           1.0,
		},
		Unknown: {
			Class:           Unknown,
			BaseCorrection:  emath.Vec3{1.00, 1.00, 1.00},
			FixedWeight:     1.00,
			SmoothingFactor: 0.70,
			Gamma:           1.0,
		},
	}
}

// ColorModelTable is keyed by the closed set of camera classes.
type ColorModelTable map[CameraClass]ColorModel

// Validate requires an entry for every class, each valid, each filed
// under its own class.
func (t ColorModelTable) Validate() error {
	for _, c := range AllClasses() {
		m, exists := t[c]
		if !exists {
			return fmt.Errorf("%w: no model for class %s", ErrInvalidModel, c)
		}
		if m.Class != c {
			return fmt.Errorf("%w: model for %s claims class %s", ErrInvalidModel, c, m.Class)
		}
		if err := m.Validate(); err != nil {
			return err
		}
	}
	for c := range t {
		if !c.Valid() {
			return fmt.Errorf("%w: unexpected class %d", ErrInvalidModel, int(c))
		}
	}
	return nil
}

// Lookup never returns an undefined correction: anything not in the
// table gets the Unknown model, and failing that the stock one.
func (t ColorModelTable) Lookup(c CameraClass) ColorModel {
	if m, exists := t[c]; exists {
		return m
	}
	if m, exists := t[Unknown]; exists {
		return m
	}
	return DefaultColorModels()[Unknown]
}

func (t ColorModelTable) String() string {
	classes := make([]CameraClass, 0, len(t))
	for c := range t {
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	str := "ColorModels[\n"
	for _, c := range classes {
		str += fmt.Sprintf("  %s\n", t[c])
	}
	return str + "]\n"
}
