// Package camera works out what kind of camera a frame came from, so the
// right color model can be used on it.
package camera

import (
	"fmt"
	"strings"
)

type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// Valid is false for zero or negative dimensions, which is what some
// backends report before the first frame arrives.
func (r Resolution) Valid() bool { return r.Width > 0 && r.Height > 0 }

// Identity is what we can learn about a device beyond its resolution.
// Any field may be empty.
type Identity struct {
	VendorID  string // e.g. "0bda", as found in sysfs or `lsusb`
	ProductID string
	Name      string // product string, or EXIF Make+Model for stills
}

// Key returns the canonical "vvvv:pppp" form, or "" if either half is
// missing or not hex.
func (id Identity) Key() string {
	v, p := CanonicalHexID(id.VendorID), CanonicalHexID(id.ProductID)
	if v == "" || p == "" {
		return ""
	}
	return v + ":" + p
}

func (id Identity) String() string {
	str := "Identity["
	if k := id.Key(); k != "" {
		str += k
	} else {
		str += "-"
	}
	if id.Name != "" {
		str += fmt.Sprintf(" '%s'", id.Name)
	}
	return str + "]"
}

// DeviceInfo is what a frame source tells the pipeline about itself.
type DeviceInfo struct {
	Index      int // device index, as passed to the capture backend
	Resolution Resolution
	Identity   *Identity // nil if the platform can't tell us
}

func (di DeviceInfo) String() string {
	str := fmt.Sprintf("device#%d %s", di.Index, di.Resolution)
	if di.Identity != nil {
		str += " " + di.Identity.String()
	}
	return str
}

// CanonicalHexID turns "0x0BDA", "bda" or " 0bda\n" into "0bda". Anything
// that isn't 1-4 hex digits gives "".
func CanonicalHexID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "0x")
	if len(s) == 0 || len(s) > 4 {
		return ""
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return ""
		}
	}
	return strings.Repeat("0", 4-len(s)) + s
}
