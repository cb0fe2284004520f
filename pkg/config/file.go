package config

import (
	"sync"

	"github.com/abworrall/scalecam/pkg/wb"
)

// File is a config bound to the path it came from, so the manual override
// can be written back to it. It is safe for concurrent use.
type File struct {
	Path string

	mu     sync.Mutex
	config Config
}

// Open loads the config at path (or the defaults, if there isn't one yet).
func Open(path string) (*File, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &File{Path: path, config: c}, nil
}

// NewFile binds c to path without reading it. An empty path keeps the
// override in memory only.
func NewFile(path string, c Config) *File {
	return &File{Path: path, config: c}
}

// Config returns a copy of the current config.
func (f *File) Config() Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}

// SavedOverride returns the persisted override, or nil if there isn't one
// (or it doesn't parse).
func (f *File) SavedOverride() *wb.Override {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.config.Override == nil {
		return nil
	}
	o, err := f.config.Override.ToOverride()
	if err != nil {
		return nil
	}
	return &o
}

// StoreOverride persists o (nil to clear it) and writes the file.
func (f *File) StoreOverride(o *wb.Override) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o == nil {
		f.config.Override = nil
	} else {
		f.config.Override = OverrideConfigFrom(*o)
	}
	if f.Path == "" {
		return nil
	}
	return f.config.Save(f.Path)
}
