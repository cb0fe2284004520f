package ecolor

import (
	"errors"
	"fmt"

	"github.com/abworrall/scalecam/pkg/emath"
)

var ErrUnknownPreset = errors.New("unknown preset")

const (
	PresetMild     = "mild"
	PresetModerate = "moderate"
	PresetExtreme  = "extreme"
)

var presetStrength = map[string]float64{
	PresetMild:     0.5,
	PresetModerate: 1.0,
	PresetExtreme:  2.0,
}

// WarmCast is the direction we push in when a camera class has no
// opinion of its own (a neutral base): less blue, more red, to take the
// blue haze off produce shot under the LED panels.
var WarmCast = emath.Vec3{0.92, 1.00, 1.08}

func PresetNames() []string {
	return []string{PresetMild, PresetModerate, PresetExtreme}
}

// PresetGains resolves a named preset against a model. Each tier sits
// further from neutral than the last, along the line from (1,1,1)
// through the model's base correction.
func PresetGains(m ColorModel, name string) (emath.Vec3, error) {
	k, exists := presetStrength[name]
	if !exists {
		return emath.Identity, fmt.Errorf("%w '%s', want one of %v", ErrUnknownPreset, name, PresetNames())
	}

	dir := m.BaseCorrection.Sub(emath.Identity)
	if dir.Dist(emath.Vec3{}) < 1e-6 {
		dir = WarmCast.Sub(emath.Identity)
	}

	return emath.Identity.Add(dir.Scale(k)).Clamp(MinGain, MaxGain), nil
}
