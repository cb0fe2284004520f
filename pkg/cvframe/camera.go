package cvframe

import (
	"fmt"
	"io"
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/abworrall/scalecam/pkg/camera"
	"github.com/abworrall/scalecam/pkg/frame"
	"github.com/abworrall/scalecam/pkg/pipeline"
	"github.com/abworrall/scalecam/pkg/usbid"
)

// MaxConsecutiveFailures is how many reads in a row can fail before we
// decide the camera has gone away (unplugged, usually).
const MaxConsecutiveFailures = 30

// Camera is a pipeline.Source backed by an OpenCV capture device.
type Camera struct {
	info     camera.DeviceInfo
	capture  *gocv.VideoCapture
	mat      gocv.Mat
	seq      uint64
	failures int
}

var _ pipeline.Source = (*Camera)(nil)

type Options struct {
	Width    int // Requested capture size; 0 leaves the driver default
	Height   int
	Resolver *usbid.Resolver // If set, used to find the USB identity
}

// Open opens /dev/video<index> (or the platform equivalent).
func Open(index int, opts Options) (*Camera, error) {
	capture, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, fmt.Errorf("open video device %d: %w", index, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("open video device %d: not opened", index)
	}

	if opts.Width > 0 && opts.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}

	c := &Camera{
		capture: capture,
		mat:     gocv.NewMat(),
		info: camera.DeviceInfo{
			Index: index,
			Resolution: camera.Resolution{
				Width:  int(capture.Get(gocv.VideoCaptureFrameWidth)),
				Height: int(capture.Get(gocv.VideoCaptureFrameHeight)),
			},
		},
	}

	if opts.Resolver != nil {
		if id, err := opts.Resolver.Lookup(index); err == nil {
			c.info.Identity = &id
		} else {
			log.Printf("device %d: no USB identity (%v), classifying by resolution\n", index, err)
		}
	}

	return c, nil
}

// Opener adapts Open for device switching.
func Opener(opts Options) pipeline.Opener {
	return func(index int) (pipeline.Source, error) {
		return Open(index, opts)
	}
}

func (c *Camera) Info() camera.DeviceInfo { return c.info }

// Read blocks until the next frame. After too many failed reads in a row
// it gives up with io.EOF.
func (c *Camera) Read() (*frame.Frame, error) {
	if ok := c.capture.Read(&c.mat); !ok || c.mat.Empty() {
		c.failures++
		if c.failures >= MaxConsecutiveFailures {
			return nil, fmt.Errorf("device %d: %d failed reads: %w", c.info.Index, c.failures, io.EOF)
		}
		return nil, fmt.Errorf("device %d: read failed", c.info.Index)
	}
	c.failures = 0

	f, err := FromMat(c.mat)
	if err != nil {
		return nil, err
	}
	c.seq++
	f.Seq = c.seq
	f.Timestamp = time.Now()
	return f, nil
}

func (c *Camera) Close() error {
	c.mat.Close()
	return c.capture.Close()
}
