// Package config loads and saves the yaml file that tunes the color
// pipeline: per-class color models, estimator thresholds, camera
// overrides and the last manual override.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/scalecam/pkg/ecolor"
	"github.com/abworrall/scalecam/pkg/emath"
	"github.com/abworrall/scalecam/pkg/wb"
)

// ModelConfig tweaks one class's color model. Omitted fields keep their
// defaults.
type ModelConfig struct {
	Base        []float64 `yaml:",flow,omitempty"` // B,G,R
	FixedWeight *float64  `yaml:",omitempty"`
	Smoothing   *float64  `yaml:",omitempty"`
	Gamma       *float64  `yaml:",omitempty"`
}

// OverrideConfig is a persisted manual override: either a preset name, or
// explicit B,G,R gains.
type OverrideConfig struct {
	Preset string    `yaml:",omitempty"`
	Gains  []float64 `yaml:",flow,omitempty"`
}

type Config struct {
	Verbosity   int
	HistorySize int
	LogEvery    int // Log a stats summary every N frames; 0 to never
	Debug       bool

	Thresholds wb.Thresholds

	Models         map[string]ModelConfig `yaml:",omitempty"` // keyed by class name, e.g. "arducam-imx219"
	ClassOverrides map[string]string      `yaml:",omitempty"` // "vvvv:pppp" or device name -> class name

	Override        *OverrideConfig `yaml:",omitempty"`
	RestoreOverride bool

	// Values we figure out in Finalize, for access by rest of app
	ColorModels ecolor.ColorModelTable        `yaml:"-"`
	ClassMap    map[string]ecolor.CameraClass `yaml:"-"`
}

func NewConfig() Config {
	return Config{
		Verbosity:      0,
		HistorySize:    wb.DefaultHistorySize,
		LogEvery:       300,
		Thresholds:     wb.DefaultThresholds(),
		Models:         map[string]ModelConfig{},
		ClassOverrides: map[string]string{},
	}
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.Unmarshal(b, &c)
	return c, err
}

func (c Config) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

// Load reads and finalizes a config file. A missing file is not an
// error: you get the defaults.
func Load(filename string) (Config, error) {
	b, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		c := NewConfig()
		return c, c.Finalize()
	} else if err != nil {
		return Config{}, fmt.Errorf("read '%s': %w", filename, err)
	}

	c, err := newConfigFromYaml(b)
	if err != nil {
		return Config{}, fmt.Errorf("parse '%s': %w", filename, err)
	}
	if err := c.Finalize(); err != nil {
		return Config{}, fmt.Errorf("'%s': %w", filename, err)
	}
	return c, nil
}

// ApplyFlags copies the flags that were given on the command line ("v"
// into verbosity, "debug" into debug) over the config. Flags left at
// their defaults don't clobber what the file says. Nil pointers are for
// tools that don't have that flag.
func (c *Config) ApplyFlags(fs *flag.FlagSet, verbosity *int, debug *bool) {
	fs.Visit(func(f *flag.Flag) {
		switch {
		case f.Name == "v" && verbosity != nil:
			c.Verbosity = *verbosity
		case f.Name == "debug" && debug != nil:
			c.Debug = *debug
		}
	})
}

func (c Config) Save(filename string) error {
	if err := os.WriteFile(filename, []byte(c.AsYaml()), 0644); err != nil {
		return fmt.Errorf("write '%s': %w", filename, err)
	}
	return nil
}

// Finalize fills in defaults, builds the color model table and class
// overrides, and validates the lot. Any error here means the config
// file is wrong.
func (c *Config) Finalize() error {
	c.Thresholds.Finalize()
	if c.HistorySize < 1 {
		c.HistorySize = wb.DefaultHistorySize
	}
	if c.LogEvery < 0 {
		c.LogEvery = 0
	}

	c.ColorModels = ecolor.DefaultColorModels()
	for name, mc := range c.Models {
		class, err := ecolor.ParseCameraClass(name)
		if err != nil {
			return fmt.Errorf("models: %w", err)
		}
		m, err := mc.apply(c.ColorModels[class])
		if err != nil {
			return fmt.Errorf("models[%s]: %w", name, err)
		}
		c.ColorModels[class] = m
	}
	if err := c.ColorModels.Validate(); err != nil {
		return err
	}

	c.ClassMap = map[string]ecolor.CameraClass{}
	for key, name := range c.ClassOverrides {
		class, err := ecolor.ParseCameraClass(name)
		if err != nil {
			return fmt.Errorf("classoverrides[%s]: %w", key, err)
		}
		c.ClassMap[key] = class
	}

	if c.Override != nil {
		if _, err := c.Override.ToOverride(); err != nil {
			return fmt.Errorf("override: %w", err)
		}
	}

	return nil
}

func (mc ModelConfig) apply(m ecolor.ColorModel) (ecolor.ColorModel, error) {
	if mc.Base != nil {
		v, err := vec3FromSlice(mc.Base)
		if err != nil {
			return m, fmt.Errorf("base: %w", err)
		}
		m.BaseCorrection = v
	}
	if mc.FixedWeight != nil {
		m.FixedWeight = *mc.FixedWeight
	}
	if mc.Smoothing != nil {
		m.SmoothingFactor = *mc.Smoothing
	}
	if mc.Gamma != nil {
		m.Gamma = *mc.Gamma
	}
	return m, nil
}

// ToOverride turns the persisted form into a session override. Preset
// names are checked, but resolved later against the session's model.
func (oc OverrideConfig) ToOverride() (wb.Override, error) {
	if oc.Preset != "" {
		if _, err := ecolor.PresetGains(ecolor.DefaultColorModels()[ecolor.Unknown], oc.Preset); err != nil {
			return wb.Override{}, err
		}
		return wb.Override{Preset: oc.Preset}, nil
	}
	v, err := vec3FromSlice(oc.Gains)
	if err != nil {
		return wb.Override{}, fmt.Errorf("gains: %w", err)
	}
	return wb.Override{Gains: v}, nil
}

func OverrideConfigFrom(o wb.Override) *OverrideConfig {
	if o.Preset != "" {
		return &OverrideConfig{Preset: o.Preset}
	}
	return &OverrideConfig{Gains: []float64{o.Gains[0], o.Gains[1], o.Gains[2]}}
}

func vec3FromSlice(f []float64) (emath.Vec3, error) {
	if len(f) != 3 {
		return emath.Vec3{}, fmt.Errorf("want 3 values (B,G,R), got %d", len(f))
	}
	return emath.Vec3{f[0], f[1], f[2]}, nil
}
