package wb

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abworrall/scalecam/pkg/camera"
	"github.com/abworrall/scalecam/pkg/ecolor"
	"github.com/abworrall/scalecam/pkg/emath"
	"github.com/abworrall/scalecam/pkg/frame"
)

func newTestSession(class ecolor.CameraClass) *Session {
	m := ecolor.DefaultColorModels()[class]
	return NewSession(class, m, camera.Resolution{Width: 64, Height: 48}, SessionOptions{})
}

func inBounds(g emath.Vec3) bool {
	for _, v := range g {
		if !(v >= ecolor.MinGain && v <= ecolor.MaxGain) {
			return false
		}
	}
	return true
}

func TestEstimate_MacBookScenario(t *testing.T) {
	s := newTestSession(ecolor.MacBookBuiltin)
	est := NewEstimator(DefaultThresholds()).Estimate(frame.NewUniform(64, 48, 150, 150, 100), s.Model)

	if est.Fallback || est.Degenerate {
		t.Fatalf("unexpected fallback/degenerate: %s", est)
	}
	if !(est.Measured[emath.R] > 1.0) {
		t.Errorf("measured R gain %v should pull red upward", est.Measured[emath.R])
	}
	want := emath.Vec3{0.7*0.88 + 0.3*(400.0/3/150), 0.7*1.0 + 0.3*(400.0/3/150), 0.7*1.12 + 0.3*(400.0/3/100)}
	if est.Raw.Dist(want) > 1e-9 {
		t.Errorf("raw = %s, want %s", est.Raw, want)
	}

	g := Smoother{}.Update(s, est.Raw)
	if !(g[emath.R] > 1.0 && g[emath.B] < 1.0) {
		t.Errorf("final gains %s: want R > 1 and B < 1", g)
	}
}

func TestEstimate_Sampling(t *testing.T) {
	est := NewEstimator(DefaultThresholds()).Estimate(frame.NewUniform(20, 20, 120, 120, 120), ecolor.DefaultColorModels()[ecolor.ExternalGeneric])
	if est.Sampled != 100 {
		t.Errorf("stride 2 over 20x20 sampled %d, want 100", est.Sampled)
	}
	if est.Fallback || est.Valid != 100 {
		t.Errorf("every sampled pixel is usable, but: %s", est)
	}
}

func TestEstimate_Fallbacks(t *testing.T) {
	m := ecolor.DefaultColorModels()[ecolor.ArducamIMX219]
	est := NewEstimator(DefaultThresholds())

	tests := []struct {
		name           string
		f              *frame.Frame
		wantFallback   bool
		wantDegenerate bool
	}{
		{"mid tones", frame.NewUniform(40, 40, 100, 120, 140), false, false},
		{"too dark", frame.NewUniform(40, 40, 10, 12, 14), true, false},
		{"all clipped", frame.NewUniform(40, 40, 250, 250, 250), true, true},
		{"one clipped channel", frame.NewUniform(40, 40, 100, 100, 245), true, true},
		{"empty", &frame.Frame{}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := est.Estimate(tt.f, m)
			if e.Fallback != tt.wantFallback || e.Degenerate != tt.wantDegenerate {
				t.Errorf("got fallback=%v degenerate=%v: %s", e.Fallback, e.Degenerate, e)
			}
			if e.Degenerate && e.Raw != m.BaseCorrection {
				t.Errorf("degenerate raw = %s, want base %s", e.Raw, m.BaseCorrection)
			}
		})
	}
}

func TestEstimate_IgnoresHighlights(t *testing.T) {
	// Gray mid-tones, plus a big blown-out blue-ish highlight that would
	// skew a naive mean.
	f := frame.NewUniform(40, 40, 128, 128, 128)
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			f.SetBGR(x, y, 255, 230, 200)
		}
	}

	m := ecolor.DefaultColorModels()[ecolor.ExternalGeneric]
	e := NewEstimator(DefaultThresholds()).Estimate(f, m)
	if e.Fallback {
		t.Fatalf("fell back: %s", e)
	}
	if e.Measured.Dist(emath.Identity) > 1e-9 {
		t.Errorf("measured = %s, want neutral (highlights should be masked out)", e.Measured)
	}
	if e.Region.Min.Y < 20 {
		t.Errorf("region %s includes the highlight rows", e.Region)
	}
}

func TestEstimate_NearZeroChannel(t *testing.T) {
	m := ecolor.DefaultColorModels()[ecolor.ExternalGeneric]
	e := NewEstimator(DefaultThresholds()).Estimate(frame.NewUniform(20, 20, 0, 180, 180), m)
	if e.Measured[emath.B] != 1.0 {
		t.Errorf("B mean of 0 should get gain 1.0, got %v", e.Measured[emath.B])
	}
}

func TestGainHistory_Ring(t *testing.T) {
	h := NewGainHistory(3)
	for i := 1; i <= 5; i++ {
		h.Push(emath.Vec3{float64(i), 1, 1})
	}
	vals := h.Values()
	if len(vals) != 3 || h.Len() != 3 {
		t.Fatalf("len = %d", len(vals))
	}
	for i, want := range []float64{3, 4, 5} {
		if vals[i][0] != want {
			t.Errorf("vals[%d] = %v, want %v (oldest first)", i, vals[i][0], want)
		}
	}

	h.Reset()
	if h.Len() != 0 {
		t.Error("Reset left values behind")
	}
}

func TestSmoother_GainBounds(t *testing.T) {
	pathological := []emath.Vec3{
		{50, 1, 1},
		{0.001, 0.001, 0.001},
		{math.Inf(1), 1, math.Inf(-1)},
		{math.NaN(), 2, 1},
		{-4, 100, 0},
	}
	for _, class := range ecolor.AllClasses() {
		s := newTestSession(class)
		for i := 0; i < 20; i++ {
			g := Smoother{}.Update(s, pathological[i%len(pathological)])
			if !inBounds(g) {
				t.Fatalf("%s frame %d: gains %s out of bounds", class, i, g)
			}
		}
	}

	// And through the whole processor, with a channel mean that gives a
	// gray world gain of about 50.
	p := NewProcessor(DefaultThresholds())
	s := newTestSession(ecolor.ExternalGeneric)
	for i := 0; i < 10; i++ {
		res, err := p.Process(s, frame.NewUniform(32, 32, 2, 150, 150))
		if err != nil {
			t.Fatal(err)
		}
		if !inBounds(res.Gains) {
			t.Fatalf("frame %d gains %s out of bounds", i, res.Gains)
		}
	}
}

func TestSmoother_WarmUpConvergence(t *testing.T) {
	p := NewProcessor(DefaultThresholds())
	s := newTestSession(ecolor.MacBookBuiltin)
	f := frame.NewUniform(64, 48, 150, 150, 100)
	target := p.Estimate(f, s.Model).Raw

	var first, last emath.Vec3
	prevDist := math.Inf(1)
	for i := 0; i < 30; i++ {
		res, err := p.Process(s, f)
		if err != nil {
			t.Fatal(err)
		}
		d := res.Gains.Dist(target)
		if d > prevDist {
			t.Fatalf("frame %d moved away from target: %v > %v", i, d, prevDist)
		}
		prevDist = d
		if i == 0 {
			first = res.Gains
		}
		last = res.Gains
	}

	if prevDist > 1e-3 {
		t.Errorf("after 30 frames still %v from target %s", prevDist, target)
	}
	if first.Dist(s.Model.BaseCorrection) >= last.Dist(s.Model.BaseCorrection) {
		t.Errorf("first frame %s should be closer to base %s than the last %s", first, s.Model.BaseCorrection, last)
	}
}

func TestSmoother_OutlierRejection(t *testing.T) {
	stable := emath.Vec3{0.9, 1.0, 1.1}
	outlier := emath.Vec3{2.9, 0.4, 2.9}

	h := NewGainHistory(DefaultHistorySize)
	for i := 0; i < DefaultHistorySize-1; i++ {
		h.Push(stable)
	}
	medBefore, meanBefore := h.Median(), emath.MeanVec3(h.Values())
	h.Push(outlier)
	medShift := h.Median().Dist(medBefore)
	meanShift := emath.MeanVec3(h.Values()).Dist(meanBefore)

	if !(medShift < meanShift) {
		t.Errorf("median shifted %v, mean shifted %v; median should be more robust", medShift, meanShift)
	}

	// Same again, through the smoother.
	s := newTestSession(ecolor.ExternalGeneric)
	for i := 0; i < DefaultHistorySize-1; i++ {
		Smoother{}.Update(s, stable)
	}
	before := s.CurrentGains
	after := Smoother{}.Update(s, outlier)
	k := s.Model.SmoothingFactor
	naive := before.Scale(k).Add(emath.MeanVec3(s.History.Values()).Scale(1 - k))
	if after.Dist(before) >= naive.Dist(before) {
		t.Errorf("outlier moved the smoothed gains %v, a running average would move %v", after.Dist(before), naive.Dist(before))
	}
}

func TestOverride_Precedence(t *testing.T) {
	p := NewProcessor(DefaultThresholds())
	s := newTestSession(ecolor.ArducamIMX219)

	// Build up some auto history first
	for i := 0; i < 3; i++ {
		if _, err := p.Process(s, frame.NewUniform(32, 32, 140, 120, 100)); err != nil {
			t.Fatal(err)
		}
	}
	histLen, gainsBefore := s.History.Len(), s.CurrentGains

	s.SetOverride(emath.Vec3{1.2, 1.0, 0.8})
	if !s.OverrideActive() {
		t.Fatal("override not active")
	}

	frames := []*frame.Frame{
		frame.NewUniform(32, 32, 50, 100, 200),
		frame.NewUniform(32, 32, 200, 100, 50),
		frame.NewUniform(32, 32, 10, 10, 10),
	}
	for _, f := range frames {
		res, err := p.Process(s, f)
		if err != nil {
			t.Fatal(err)
		}
		if res.Source != SourceOverride || res.Gains != (emath.Vec3{1.2, 1.0, 0.8}) {
			t.Errorf("source %s gains %s", res.Source, res.Gains)
		}
		want := Apply(f, emath.Vec3{1.2, 1.0, 0.8}, s.Model.Gamma)
		if string(res.Corrected.Pix) != string(want.Pix) {
			t.Errorf("output for %s does not match the fixed override gains", f)
		}
	}
	if s.History.Len() != histLen || s.CurrentGains != gainsBefore {
		t.Error("override frames touched the auto state")
	}

	s.ClearOverride()
	if s.OverrideActive() || s.History.Len() != histLen {
		t.Fatalf("clear override: active=%v history=%d", s.OverrideActive(), s.History.Len())
	}
	res, _ := p.Process(s, frames[0])
	if res.Source != SourceAuto || s.History.Len() != histLen+1 {
		t.Errorf("after clear: source %s history %d", res.Source, s.History.Len())
	}
}

func TestOverride_ClampsAndPresets(t *testing.T) {
	s := newTestSession(ecolor.MacBookBuiltin)
	s.SetOverride(emath.Vec3{0.1, 1.0, 7})
	if o := s.Override(); o.Gains != (emath.Vec3{0.3, 1.0, 3.0}) {
		t.Errorf("override gains = %s", o.Gains)
	}

	if err := s.SetPreset("moderate"); err != nil {
		t.Fatal(err)
	}
	if o := s.Override(); o.Preset != "moderate" {
		t.Errorf("preset = %q", o.Preset)
	}

	if err := s.SetPreset("bogus"); !errors.Is(err, ecolor.ErrUnknownPreset) {
		t.Errorf("err = %v", err)
	}
	if o := s.Override(); o == nil || o.Preset != "moderate" {
		t.Error("failed preset should leave the existing override in place")
	}

	other := newTestSession(ecolor.ExternalGeneric)
	if err := other.ApplyOverride(*s.Override()); err != nil {
		t.Fatal(err)
	}
	want, _ := ecolor.PresetGains(other.Model, "moderate")
	if other.Override().Gains != want {
		t.Errorf("restored preset gains %s, want %s (resolved against the new model)", other.Override().Gains, want)
	}
}

func TestApply_Identity(t *testing.T) {
	f := frame.New(17, 9)
	for i := range f.Pix {
		f.Pix[i] = uint8(i * 31)
	}
	out := Apply(f, emath.Identity, 1.0)
	if string(out.Pix) != string(f.Pix) {
		t.Error("identity gains changed the frame")
	}
	out.Pix[0]++
	if out.Pix[0] == f.Pix[0] {
		t.Error("identity output shares storage with the input")
	}
}

func TestApply_SaturatingClip(t *testing.T) {
	f := frame.NewUniform(2, 2, 250, 128, 255)
	out := Apply(f, emath.Vec3{1.5, 3.0, 1.01}, 1.0)
	b, g, r := out.BGR(1, 1)
	if b != 255 || g != 255 || r != 255 {
		t.Errorf("got %d,%d,%d, want all 255", b, g, r)
	}

	out = Apply(frame.NewUniform(1, 1, 100, 100, 100), emath.Vec3{0.5, 1.01, 0.3}, 1.0)
	b, g, r = out.BGR(0, 0)
	if b != 50 || g != 101 || r != 30 {
		t.Errorf("got %d,%d,%d, want 50,101,30", b, g, r)
	}
}

func TestProcess_Malformed(t *testing.T) {
	p := NewProcessor(DefaultThresholds())
	s := newTestSession(ecolor.ExternalGeneric)

	res, err := p.Process(s, &frame.Frame{Width: 4, Height: 4, Pix: make([]byte, 10)})
	if !errors.Is(err, frame.ErrMalformedFrame) {
		t.Fatalf("err = %v", err)
	}
	if res.Corrected != nil {
		t.Error("no previous frame, so Corrected should be nil")
	}

	good, err := p.Process(s, frame.NewUniform(8, 8, 100, 110, 120))
	if err != nil {
		t.Fatal(err)
	}
	frames, histLen := s.FrameCount(), s.History.Len()

	res, err = p.Process(s, nil)
	if !errors.Is(err, frame.ErrMalformedFrame) {
		t.Fatalf("err = %v", err)
	}
	if res.Corrected != good.Corrected {
		t.Error("malformed frame should pass through the previous corrected frame")
	}
	if s.FrameCount() != frames || s.History.Len() != histLen {
		t.Error("malformed frame changed the session")
	}
	if p.Stats.Malformed != 2 {
		t.Errorf("stats malformed = %d", p.Stats.Malformed)
	}
}

func TestProcess_RecoversFromPanic(t *testing.T) {
	p := NewProcessor(DefaultThresholds())
	s := newTestSession(ecolor.ExternalGeneric)
	s.History = nil // smoother will dereference this

	f := frame.NewUniform(8, 8, 90, 100, 110)
	res, err := p.Process(s, f)
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != SourceIdentity || !res.Gains.IsIdentity() {
		t.Errorf("source %s gains %s, want identity", res.Source, res.Gains)
	}
	if string(res.Corrected.Pix) != string(f.Pix) {
		t.Error("identity fallback should pass the frame through untouched")
	}
}

func TestProcess_DebugOverlay(t *testing.T) {
	p := NewProcessor(DefaultThresholds())
	s := newTestSession(ecolor.ExternalGeneric)
	f := frame.NewUniform(200, 150, 120, 120, 120)

	res, err := p.Process(s, f)
	if err != nil {
		t.Fatal(err)
	}
	if res.Preview != res.Corrected {
		t.Error("without debug, Preview should be Corrected")
	}

	s.Debug = true
	res, err = p.Process(s, f)
	if err != nil {
		t.Fatal(err)
	}
	if res.Preview == res.Corrected {
		t.Fatal("debug preview should be a separate frame")
	}
	want := Apply(f, res.Gains, s.Model.Gamma)
	if string(res.Corrected.Pix) != string(want.Pix) {
		t.Error("overlay leaked into the corrected frame")
	}
	if string(res.Preview.Pix) == string(res.Corrected.Pix) {
		t.Error("preview carries no overlay")
	}
	if res.Preview.Seq != f.Seq {
		t.Error("preview lost the frame sequence number")
	}
}

func TestDiagnostics_CastAndStats(t *testing.T) {
	if d := CastDelta(emath.Vec3{128, 128, 128}); d > 1e-3 {
		t.Errorf("gray cast delta = %v", d)
	}
	if d := CastDelta(emath.Vec3{180, 128, 90}); d < 0.05 {
		t.Errorf("blue cast delta = %v, want something noticeable", d)
	}

	stats := NewStats()
	for i := 0; i < 100; i++ {
		stats.Record(Diagnostics{Source: SourceAuto, Duration: time.Duration(i+1) * time.Millisecond})
	}
	stats.Record(Diagnostics{Source: SourceOverride, Duration: 2 * time.Second})
	if stats.Frames != 101 || stats.Sources[SourceOverride] != 1 {
		t.Errorf("counts: %s", stats)
	}
	if p50 := stats.Latency(50); p50 < 45*time.Millisecond || p50 > 55*time.Millisecond {
		t.Errorf("p50 = %s", p50)
	}
	if !strings.Contains(stats.String(), "p99=") {
		t.Errorf("String() = %s", stats)
	}
	stats.Reset()
	if stats.Frames != 0 || stats.Latency(50) != 0 {
		t.Error("Reset left data behind")
	}
}

func TestUnclipped(t *testing.T) {
	f := frame.NewUniform(4, 4, 200, 100, 50)
	u := Unclipped{Frame: f, Gains: emath.Vec3{2, 1, 1}}

	r, g, b, _ := u.HDRAt(0, 0).HDRRGBA()
	if math.Abs(b-400.0/255) > 1e-9 || math.Abs(g-100.0/255) > 1e-9 || math.Abs(r-50.0/255) > 1e-9 {
		t.Errorf("HDRAt = %v,%v,%v", r, g, b)
	}
	if u.ClippedFraction() != 1.0 {
		t.Errorf("ClippedFraction = %v", u.ClippedFraction())
	}
	if err := u.WriteHDR(filepath.Join(t.TempDir(), "u.hdr")); err != nil {
		t.Fatal(err)
	}
}

func TestLumaGrid(t *testing.T) {
	fg := LumaGrid(frame.NewUniform(3, 2, 0, 0, 255))
	if fg.Dx() != 3 || fg.Dy() != 2 {
		t.Fatalf("dims %dx%d", fg.Dx(), fg.Dy())
	}
	if math.Abs(fg.Get(2, 1)-0.2989*255) > 1e-9 {
		t.Errorf("luma = %v", fg.Get(2, 1))
	}
}
