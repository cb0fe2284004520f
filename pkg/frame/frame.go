// Package frame holds the pixel buffer that moves through the pipeline: a
// fixed size, 3-channel, 8-bit BGR image, laid out the way capture
// backends (OpenCV, V4L2 BGR24) deliver it.
package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"
)

// ErrMalformedFrame means the buffer does not match its declared shape.
// It is the one per-frame condition we report upstream.
var ErrMalformedFrame = errors.New("malformed frame")

const Channels = 3

type Frame struct {
	Seq       uint64    // Monotonic sequence number, assigned by the source
	Timestamp time.Time // When the frame was acquired
	Width     int
	Height    int
	Pix       []byte // BGR, row-major, no padding: len == Width*Height*3
}

// New allocates a black frame.
func New(w, h int) *Frame {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Frame{Width: w, Height: h, Pix: make([]byte, w*h*Channels)}
}

// NewUniform allocates a frame where every pixel is (b,g,r).
func NewUniform(w, h int, b, g, r uint8) *Frame {
	f := New(w, h)
	for i := 0; i < len(f.Pix); i += Channels {
		f.Pix[i+0] = b
		f.Pix[i+1] = g
		f.Pix[i+2] = r
	}
	return f
}

func (f *Frame) String() string {
	if f == nil {
		return "Frame<nil>"
	}
	return fmt.Sprintf("Frame#%d[%dx%d, %d bytes]", f.Seq, f.Width, f.Height, len(f.Pix))
}

// Validate checks the buffer against its declared shape.
func (f *Frame) Validate() error {
	switch {
	case f == nil:
		return fmt.Errorf("%w: nil frame", ErrMalformedFrame)
	case f.Width <= 0 || f.Height <= 0:
		return fmt.Errorf("%w: bad dimensions %dx%d", ErrMalformedFrame, f.Width, f.Height)
	case len(f.Pix) != f.Width*f.Height*Channels:
		return fmt.Errorf("%w: %dx%d wants %d bytes, got %d",
			ErrMalformedFrame, f.Width, f.Height, f.Width*f.Height*Channels, len(f.Pix))
	}
	return nil
}

func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Offset of the B byte of pixel (x,y).
func (f *Frame) Offset(x, y int) int { return (y*f.Width + x) * Channels }

// BGR returns the channel values at (x,y).
func (f *Frame) BGR(x, y int) (uint8, uint8, uint8) {
	i := f.Offset(x, y)
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

func (f *Frame) SetBGR(x, y int, b, g, r uint8) {
	i := f.Offset(x, y)
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = b, g, r
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	c := *f
	c.Pix = make([]byte, len(f.Pix))
	copy(c.Pix, f.Pix)
	return &c
}

// ToRGBA converts into a standard library image, e.g. for drawing on.
func (f *Frame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(f.Bounds())
	for i, j := 0, 0; i < len(f.Pix); i, j = i+Channels, j+4 {
		img.Pix[j+0] = f.Pix[i+2]
		img.Pix[j+1] = f.Pix[i+1]
		img.Pix[j+2] = f.Pix[i+0]
		img.Pix[j+3] = 0xFF
	}
	return img
}

// CopyFromRGBA writes the pixels of img (which must match the frame's
// bounds) back into the frame, dropping alpha.
func (f *Frame) CopyFromRGBA(img *image.RGBA) error {
	if img.Bounds().Dx() != f.Width || img.Bounds().Dy() != f.Height {
		return fmt.Errorf("copy %s into %dx%d frame: %w", img.Bounds(), f.Width, f.Height, ErrMalformedFrame)
	}
	for y := 0; y < f.Height; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < f.Width; x++ {
			i := f.Offset(x, y)
			f.Pix[i+0] = row[x*4+2]
			f.Pix[i+1] = row[x*4+1]
			f.Pix[i+2] = row[x*4+0]
		}
	}
	return nil
}

// FromImage converts any image.Image into a frame. Alpha is ignored;
// 16 bit channels are truncated to 8.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := New(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA() // channel values in range [0, 0xFFFF]
			f.SetBGR(x-b.Min.X, y-b.Min.Y, uint8(bl>>8), uint8(g>>8), uint8(r>>8))
		}
	}
	return f
}

// Implement image.Image, so a frame can be handed straight to encoders.
func (f *Frame) ColorModel() color.Model { return color.RGBAModel }

func (f *Frame) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(f.Bounds())) {
		return color.RGBA{}
	}
	b, g, r := f.BGR(x, y)
	return color.RGBA{r, g, b, 0xFF}
}
