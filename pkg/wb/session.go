package wb

import (
	"fmt"

	"github.com/abworrall/scalecam/pkg/camera"
	"github.com/abworrall/scalecam/pkg/ecolor"
	"github.com/abworrall/scalecam/pkg/emath"
	"github.com/abworrall/scalecam/pkg/frame"
)

// Override is a manually chosen set of gains. Preset is the name it was
// picked by, or "" if the gains were given directly.
type Override struct {
	Gains  emath.Vec3
	Preset string
}

func (o Override) String() string {
	if o.Preset != "" {
		return fmt.Sprintf("override(%s)%s", o.Preset, o.Gains)
	}
	return fmt.Sprintf("override%s", o.Gains)
}

// A Session holds the white balance state for one open camera. Switching
// camera means a new session; nothing carries over. It is not safe for
// concurrent use: one goroutine owns it.
type Session struct {
	Class      ecolor.CameraClass
	Model      ecolor.ColorModel
	Resolution camera.Resolution

	CurrentGains emath.Vec3
	History      *GainHistory
	Debug        bool

	override      *Override
	lastCorrected *frame.Frame
	lastEstimate  *Estimate
	frames        int
}

type SessionOptions struct {
	HistorySize int
	Debug       bool
}

func NewSession(class ecolor.CameraClass, m ecolor.ColorModel, res camera.Resolution, opts SessionOptions) *Session {
	return &Session{
		Class:        class,
		Model:        m,
		Resolution:   res,
		CurrentGains: emath.Identity,
		History:      NewGainHistory(opts.HistorySize),
		Debug:        opts.Debug,
	}
}

func (s *Session) String() string {
	str := fmt.Sprintf("Session[%s %s, gains%s, history %d/%d, %d frames",
		s.Class, s.Resolution, s.CurrentGains, s.History.Len(), s.History.Cap(), s.frames)
	if s.override != nil {
		str += ", " + s.override.String()
	}
	if s.Debug {
		str += ", debug"
	}
	return str + "]"
}

// SetOverride pins the gains; auto estimation is bypassed until cleared.
// The gains are clamped into the allowed range, and that is the only
// adjustment made.
func (s *Session) SetOverride(gains emath.Vec3) {
	s.override = &Override{Gains: gains.Clamp(ecolor.MinGain, ecolor.MaxGain)}
}

// SetPreset resolves a named preset against this session's model.
func (s *Session) SetPreset(name string) error {
	gains, err := ecolor.PresetGains(s.Model, name)
	if err != nil {
		return err
	}
	s.override = &Override{Gains: gains, Preset: name}
	return nil
}

// ClearOverride goes back to auto. History and CurrentGains are left as
// they were, so auto resumes from where it left off.
func (s *Session) ClearOverride() { s.override = nil }

func (s *Session) OverrideActive() bool { return s.override != nil }

// Override returns a copy of the active override, or nil.
func (s *Session) Override() *Override {
	if s.override == nil {
		return nil
	}
	o := *s.override
	return &o
}

// ApplyOverride restores a previously saved override, e.g. after a device
// switch. Presets are resolved again, against this session's model.
func (s *Session) ApplyOverride(o Override) error {
	if o.Preset != "" {
		return s.SetPreset(o.Preset)
	}
	s.SetOverride(o.Gains)
	return nil
}

// LastCorrected is the most recent clean (overlay-free) output, or nil.
func (s *Session) LastCorrected() *frame.Frame { return s.lastCorrected }

func (s *Session) FrameCount() int { return s.frames }
