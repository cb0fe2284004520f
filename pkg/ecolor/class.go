package ecolor

import (
	"fmt"
	"strings"
)

// CameraClass selects a ColorModel. It is a closed set; config files
// refer to classes by their String() name.
type CameraClass int

const (
	Unknown CameraClass = iota
	MacBookBuiltin
	ExternalGeneric
	ArducamIMX219
	JskOv5648
)

var classNames = map[CameraClass]string{
	Unknown:         "unknown",
	MacBookBuiltin:  "macbook-builtin",
	ExternalGeneric: "external-generic",
	ArducamIMX219:   "arducam-imx219",
	JskOv5648:       "jsk-ov5648",
}

func AllClasses() []CameraClass {
	return []CameraClass{Unknown, MacBookBuiltin, ExternalGeneric, ArducamIMX219, JskOv5648}
}

func (c CameraClass) Valid() bool {
	_, exists := classNames[c]
	return exists
}

func (c CameraClass) String() string {
	if name, exists := classNames[c]; exists {
		return name
	}
	return fmt.Sprintf("class(%d)", int(c))
}

func ParseCameraClass(s string) (CameraClass, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for c, name := range classNames {
		if name == want {
			return c, nil
		}
	}
	return Unknown, fmt.Errorf("no camera class named '%s'", s)
}

// Implement yaml.Marshaler / yaml.Unmarshaler (yaml.v2 style), so
// config files can say `arducam-imx219` rather than `3`.
func (c CameraClass) MarshalYAML() (interface{}, error) { return c.String(), nil }

func (c *CameraClass) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseCameraClass(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
