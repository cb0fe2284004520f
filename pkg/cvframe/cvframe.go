// Package cvframe glues the pipeline to OpenCV (via gocv): converting
// between gocv.Mat and frame.Frame, and wrapping a capture device as a
// frame source. It is the only package here that needs cgo.
package cvframe

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/abworrall/scalecam/pkg/frame"
)

// FromMat copies an 8-bit Mat into a new frame. Gray and BGRA mats are
// converted to BGR on the way.
func FromMat(m gocv.Mat) (*frame.Frame, error) {
	if m.Empty() {
		return nil, fmt.Errorf("empty mat: %w", frame.ErrMalformedFrame)
	}

	var bgr gocv.Mat
	switch m.Type() {
	case gocv.MatTypeCV8UC3:
		bgr = m
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC4:
		bgr = gocv.NewMat()
		defer bgr.Close()
		code := gocv.ColorGrayToBGR
		if m.Type() == gocv.MatTypeCV8UC4 {
			code = gocv.ColorBGRAToBGR
		}
		gocv.CvtColor(m, &bgr, code)
	default:
		return nil, fmt.Errorf("mat type %v: %w", m.Type(), frame.ErrMalformedFrame)
	}

	f := &frame.Frame{
		Width:  bgr.Cols(),
		Height: bgr.Rows(),
		Pix:    bgr.ToBytes(),
	}
	return f, f.Validate()
}

// ToMat copies a frame into a new CV_8UC3 Mat, which the caller must Close.
func ToMat(f *frame.Frame) (gocv.Mat, error) {
	if err := f.Validate(); err != nil {
		return gocv.NewMat(), err
	}
	return gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix)
}
