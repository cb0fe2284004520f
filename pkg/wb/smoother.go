package wb

import (
	"github.com/abworrall/scalecam/pkg/ecolor"
	"github.com/abworrall/scalecam/pkg/emath"
)

// Smoother damps the raw per-frame estimates, so a hand passing over the
// scale doesn't make the colors flicker. The median throws away single
// frame outliers; the exponential blend then limits how fast the gains can
// move.
type Smoother struct{}

// Update feeds one raw estimate into the session and returns the new
// CurrentGains.
func (Smoother) Update(s *Session, raw emath.Vec3) emath.Vec3 {
	prev := s.CurrentGains
	if s.History.Len() == 0 {
		// Nothing to smooth against yet; start from what we know about the
		// camera rather than from neutral.
		prev = s.Model.BaseCorrection
	}

	s.History.Push(raw)
	med := s.History.Median()

	k := s.Model.SmoothingFactor
	out := prev.Lerp(med, 1-k).Clamp(ecolor.MinGain, ecolor.MaxGain)

	s.CurrentGains = out
	return out
}
