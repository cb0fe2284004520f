package wb

import (
	"fmt"
	"image"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/abworrall/scalecam/pkg/camera"
	"github.com/abworrall/scalecam/pkg/ecolor"
	"github.com/abworrall/scalecam/pkg/emath"
)

// GainSource says where the gains applied to a frame came from.
type GainSource int

const (
	SourceAuto GainSource = iota
	SourceOverride
	SourceIdentity // Estimation blew up; the frame went through uncorrected
)

func (gs GainSource) String() string {
	switch gs {
	case SourceAuto:
		return "auto"
	case SourceOverride:
		return "override"
	case SourceIdentity:
		return "identity"
	default:
		return fmt.Sprintf("source(%d)", int(gs))
	}
}

// Diagnostics is a read-only report on one processed frame.
type Diagnostics struct {
	Seq        uint64
	Class      ecolor.CameraClass
	Resolution camera.Resolution
	Gains      emath.Vec3
	Source     GainSource

	Means      emath.Vec3      // Zero unless auto estimation ran
	Region     image.Rectangle // Pixels the estimator used
	Fallback   bool
	Degenerate bool
	CastDelta  float64 // CIEDE2000 distance of the mean color from neutral gray

	Duration time.Duration
}

func (d Diagnostics) String() string {
	str := fmt.Sprintf("#%d %s %s %s gains%s", d.Seq, d.Class, d.Resolution, d.Source, d.Gains)
	if d.Source == SourceAuto {
		str += fmt.Sprintf(" means%s cast %.2f", d.Means, d.CastDelta)
		if d.Fallback {
			str += " (fallback)"
		}
		if d.Degenerate {
			str += " (degenerate)"
		}
	}
	return str + fmt.Sprintf(" %s", d.Duration)
}

// CastDelta measures how far from neutral a mean BGR color is, as the
// CIEDE2000 distance to the gray of the same lightness. Zero for a
// perfectly balanced scene; around 0.05 is about where people start to
// notice.
func CastDelta(means emath.Vec3) float64 {
	c := colorful.Color{R: means[emath.R] / 255.0, G: means[emath.G] / 255.0, B: means[emath.B] / 255.0}.Clamped()
	l, _, _ := c.Lab()
	return c.DistanceCIEDE2000(colorful.Lab(l, 0, 0))
}

const maxLatencyMicros = int64(time.Second / time.Microsecond)

// Stats accumulates telemetry across many frames.
type Stats struct {
	Frames     int64
	Malformed  int64
	Fallbacks  int64
	Degenerate int64
	Sources    map[GainSource]int64

	latency *hdrhistogram.Histogram // microseconds
}

func NewStats() *Stats {
	return &Stats{
		Sources: map[GainSource]int64{},
		latency: hdrhistogram.New(1, maxLatencyMicros, 3),
	}
}

func (s *Stats) Record(d Diagnostics) {
	s.Frames++
	s.Sources[d.Source]++
	if d.Fallback {
		s.Fallbacks++
	}
	if d.Degenerate {
		s.Degenerate++
	}

	us := d.Duration.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > maxLatencyMicros {
		us = maxLatencyMicros
	}
	s.latency.RecordValue(us)
}

func (s *Stats) RecordMalformed() { s.Malformed++ }

// Latency returns the given percentile (0-100) of per-frame processing time.
func (s *Stats) Latency(percentile float64) time.Duration {
	return time.Duration(s.latency.ValueAtQuantile(percentile)) * time.Microsecond
}

func (s *Stats) Reset() {
	s.Frames, s.Malformed, s.Fallbacks, s.Degenerate = 0, 0, 0, 0
	s.Sources = map[GainSource]int64{}
	s.latency.Reset()
}

func (s *Stats) String() string {
	if s.latency.TotalCount() == 0 {
		return fmt.Sprintf("Stats{%d frames, %d malformed}", s.Frames, s.Malformed)
	}
	return fmt.Sprintf("Stats{%d frames [auto:%d override:%d identity:%d], %d malformed, %d fallback, %d degenerate; "+
		"latency p50=%s p99=%s max=%s}",
		s.Frames, s.Sources[SourceAuto], s.Sources[SourceOverride], s.Sources[SourceIdentity],
		s.Malformed, s.Fallbacks, s.Degenerate,
		s.Latency(50), s.Latency(99), time.Duration(s.latency.Max())*time.Microsecond)
}
