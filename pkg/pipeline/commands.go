package pipeline

import (
	"fmt"

	"github.com/abworrall/scalecam/pkg/emath"
)

// A Command is a request from the UI. Commands are queued, and applied
// by the processing task between frames; nothing else ever touches the
// session.
type Command interface {
	apply(p *Pipeline) error
}

type SetOverride struct{ Gains emath.Vec3 }
type SetPreset struct{ Name string }
type ClearOverride struct{}
type ToggleDebug struct{}

// SaveOverride persists the active override (or its absence) to the
// pipeline's OverrideStore.
type SaveOverride struct{}

// SwitchSource closes the current source and opens device Index in its
// place, with a brand new session.
type SwitchSource struct{ Index int }

func (c SetOverride) apply(p *Pipeline) error {
	p.session.SetOverride(c.Gains)
	return nil
}

func (c SetPreset) apply(p *Pipeline) error { return p.session.SetPreset(c.Name) }

func (c ClearOverride) apply(p *Pipeline) error {
	p.session.ClearOverride()
	return nil
}

func (c ToggleDebug) apply(p *Pipeline) error {
	p.session.Debug = !p.session.Debug
	return nil
}

func (c SaveOverride) apply(p *Pipeline) error {
	if p.Store == nil {
		return fmt.Errorf("save override: no store configured")
	}
	return p.Store.StoreOverride(p.session.Override())
}

func (c SwitchSource) apply(p *Pipeline) error {
	if p.Open == nil {
		return fmt.Errorf("switch to device %d: no opener configured", c.Index)
	}
	src, err := p.Open(c.Index)
	if err != nil {
		return fmt.Errorf("switch to device %d: %w", c.Index, err)
	}
	p.closeSource()
	p.startSession(src)
	return nil
}

func (c SetOverride) String() string   { return fmt.Sprintf("SetOverride%s", c.Gains) }
func (c SetPreset) String() string     { return fmt.Sprintf("SetPreset(%s)", c.Name) }
func (c ClearOverride) String() string { return "ClearOverride" }
func (c ToggleDebug) String() string   { return "ToggleDebug" }
func (c SaveOverride) String() string  { return "SaveOverride" }
func (c SwitchSource) String() string  { return fmt.Sprintf("SwitchSource(%d)", c.Index) }
