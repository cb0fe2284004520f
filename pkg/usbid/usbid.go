// Package usbid finds the USB vendor and product of a V4L2 capture device
// by poking around in sysfs. Only works on linux; elsewhere Lookup just
// fails, and classification falls back to resolution.
package usbid

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abworrall/scalecam/pkg/camera"
)

var ErrNotUSB = errors.New("not a USB device")

const DefaultRoot = "/sys"

type Resolver struct {
	Root string // Where sysfs is mounted; tests point this elsewhere
}

func NewResolver() Resolver { return Resolver{Root: DefaultRoot} }

// Lookup returns the identity of /dev/video<index>.
func (r Resolver) Lookup(index int) (camera.Identity, error) {
	root := r.Root
	if root == "" {
		root = DefaultRoot
	}
	v4lDir := filepath.Join(root, "class", "video4linux", fmt.Sprintf("video%d", index))

	dev, err := filepath.EvalSymlinks(filepath.Join(v4lDir, "device"))
	if err != nil {
		return camera.Identity{}, fmt.Errorf("video%d: %w", index, err)
	}

	// The v4l device hangs off a USB interface (e.g. 1-1:1.0); the ids
	// live one level up on the USB device itself. Some drivers link
	// straight to the device.
	for _, dir := range []string{dev, filepath.Dir(dev)} {
		vid, err1 := readAttr(dir, "idVendor")
		pid, err2 := readAttr(dir, "idProduct")
		if err1 != nil || err2 != nil {
			continue
		}
		id := camera.Identity{VendorID: vid, ProductID: pid}
		if name, err := readAttr(dir, "product"); err == nil {
			id.Name = name
		} else if name, err := readAttr(v4lDir, "name"); err == nil {
			id.Name = name
		}
		return id, nil
	}

	return camera.Identity{}, fmt.Errorf("video%d (%s): %w", index, dev, ErrNotUSB)
}

func readAttr(dir, name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
