package wb

import (
	"fmt"
	"log"
	"time"

	"github.com/abworrall/scalecam/pkg/emath"
	"github.com/abworrall/scalecam/pkg/frame"
)

// Result is what comes out of processing one frame.
type Result struct {
	Corrected *frame.Frame // Clean output, suitable for saving
	Preview   *frame.Frame // For display; carries the overlay when debugging, else == Corrected
	Diagnostics
}

// Processor turns raw frames into white balanced frames, using (and
// updating) the state in a Session.
type Processor struct {
	Estimator
	Smoother

	Verbosity int
	Stats     *Stats // May be nil
}

func NewProcessor(t Thresholds) *Processor {
	return &Processor{
		Estimator: NewEstimator(t),
		Stats:     NewStats(),
	}
}

// Process corrects a single frame. The only error is a malformed frame,
// in which case the session is left alone and the result carries the last
// good output (which may be nil).
func (p *Processor) Process(s *Session, f *frame.Frame) (Result, error) {
	start := time.Now()

	if err := f.Validate(); err != nil {
		if p.Stats != nil {
			p.Stats.RecordMalformed()
		}
		return Result{Corrected: s.lastCorrected, Preview: s.lastCorrected}, fmt.Errorf("process: %w", err)
	}

	gains, source, est := p.gains(s, f)

	corrected := Apply(f, gains, s.Model.Gamma)
	s.lastCorrected = corrected
	s.lastEstimate = est
	s.frames++

	diag := Diagnostics{
		Seq:        f.Seq,
		Class:      s.Class,
		Resolution: s.Resolution,
		Gains:      gains,
		Source:     source,
	}
	if est != nil {
		diag.Means = est.Means
		diag.Region = est.Region
		diag.Fallback = est.Fallback
		diag.Degenerate = est.Degenerate
		if !est.Degenerate {
			diag.CastDelta = CastDelta(est.Means)
		}
	}

	res := Result{Corrected: corrected, Preview: corrected}
	if s.Debug {
		res.Preview = DrawOverlay(corrected, diag)
	}

	diag.Duration = time.Since(start)
	res.Diagnostics = diag
	if p.Stats != nil {
		p.Stats.Record(diag)
	}
	if p.Verbosity > 1 {
		log.Printf("%s\n", diag)
	}

	return res, nil
}

// gains picks the gains for this frame. Anything that goes wrong in the
// estimation gets the frame passed through uncorrected, rather than taking
// the whole pipeline down.
func (p *Processor) gains(s *Session, f *frame.Frame) (g emath.Vec3, src GainSource, est *Estimate) {
	if o := s.Override(); o != nil {
		return o.Gains, SourceOverride, nil
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("white balance estimation panicked on %s, using identity: %v\n", f, r)
			g, src, est = emath.Identity, SourceIdentity, nil
		}
	}()

	e := p.Estimate(f, s.Model)
	g = p.Update(s, e.Raw)
	return g, SourceAuto, &e
}

// Apply multiplies each channel by its gain, rounding and saturating into
// [0,255], then applies the gamma curve. Identity gains with a gamma of
// 1.0 give a bit-for-bit copy.
func Apply(f *frame.Frame, gains emath.Vec3, gamma float64) *frame.Frame {
	if gains.IsIdentity() && (gamma == 1.0 || gamma <= 0) {
		return f.Clone()
	}

	gammaLUT := emath.GammaLUT(gamma)
	var luts [3][256]uint8
	for c := 0; c < 3; c++ {
		for v := 0; v < 256; v++ {
			luts[c][v] = gammaLUT[emath.ClampU8(float64(v)*gains[c])]
		}
	}

	out := &frame.Frame{
		Seq:       f.Seq,
		Timestamp: f.Timestamp,
		Width:     f.Width,
		Height:    f.Height,
		Pix:       make([]byte, len(f.Pix)),
	}
	for i := 0; i < len(f.Pix); i += frame.Channels {
		out.Pix[i+0] = luts[emath.B][f.Pix[i+0]]
		out.Pix[i+1] = luts[emath.G][f.Pix[i+1]]
		out.Pix[i+2] = luts[emath.R][f.Pix[i+2]]
	}
	return out
}
