package camera

import (
	"fmt"

	"github.com/abworrall/scalecam/pkg/ecolor"
)

// ResolutionTolerance is how far (in pixels, in each dimension) a
// reported resolution may be from a table entry and still match it.
const ResolutionTolerance = 50

// Known USB devices.
var DefaultProfiles = map[string]ecolor.CameraClass{
	"0bda:5830": ecolor.ArducamIMX219, // Arducam B0196, Realtek bridge
	"1bcf:2c99": ecolor.JskOv5648,     // JSK-S8130, Sunplus bridge
}

type ResolutionRule struct {
	Resolution
	Class ecolor.CameraClass
}

// Built-in cameras don't give us a USB identity, but they do have
// distinctive native modes. The list is checked in order.
var DefaultResolutionRules = []ResolutionRule{
	{Resolution{1280, 720}, ecolor.MacBookBuiltin},
	{Resolution{1920, 1080}, ecolor.MacBookBuiltin},
}

// Classifier maps device facts onto a camera class. It never fails; the
// worst case is ExternalGeneric (or Unknown, if we know nothing at all).
type Classifier struct {
	// Overrides from config, keyed by "vvvv:pppp" or by exact device
	// name. They beat the built in tables.
	Overrides map[string]ecolor.CameraClass

	Profiles    map[string]ecolor.CameraClass
	Resolutions []ResolutionRule
	Tolerance   int
}

func NewClassifier(overrides map[string]ecolor.CameraClass) Classifier {
	c := Classifier{
		Overrides:   map[string]ecolor.CameraClass{},
		Profiles:    DefaultProfiles,
		Resolutions: DefaultResolutionRules,
		Tolerance:   ResolutionTolerance,
	}
	for k, v := range overrides {
		if key := canonicalKey(k); key != "" {
			c.Overrides[key] = v
		} else {
			c.Overrides[k] = v
		}
	}
	return c
}

func (c Classifier) String() string {
	return fmt.Sprintf("Classifier{%d overrides, %d profiles, %d resolution rules, +/-%dpx}",
		len(c.Overrides), len(c.Profiles), len(c.Resolutions), c.Tolerance)
}

// Classify is deterministic: the same inputs always give the same class.
// Precedence is: USB vid:pid (overrides, then profiles), device name
// (overrides), resolution rules, then the generic fallback.
func (c Classifier) Classify(res Resolution, id *Identity) ecolor.CameraClass {
	if id != nil {
		if key := id.Key(); key != "" {
			if class, exists := c.Overrides[key]; exists {
				return class
			}
			if class, exists := c.Profiles[key]; exists {
				return class
			}
		}
		if id.Name != "" {
			if class, exists := c.Overrides[id.Name]; exists {
				return class
			}
		}
	}

	if !res.Valid() {
		return ecolor.Unknown
	}

	for _, rule := range c.Resolutions {
		if abs(res.Width-rule.Width) <= c.Tolerance && abs(res.Height-rule.Height) <= c.Tolerance {
			return rule.Class
		}
	}

	return ecolor.ExternalGeneric
}

// canonicalKey accepts "0BDA:5830" or "0x0bda:0x5830"; returns "" if s
// doesn't look like a vid:pid pair at all.
func canonicalKey(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return Identity{VendorID: s[:i], ProductID: s[i+1:]}.Key()
		}
	}
	return ""
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
