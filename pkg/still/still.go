// Package still runs the white balance over saved captures rather than a
// live stream, e.g. to re-tune a color model against photos of the scale.
package still

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/tiff"

	"github.com/abworrall/scalecam/pkg/camera"
	"github.com/abworrall/scalecam/pkg/ecolor"
	"github.com/abworrall/scalecam/pkg/emath"
	"github.com/abworrall/scalecam/pkg/frame"
	"github.com/abworrall/scalecam/pkg/wb"
)

// A Still is one loaded capture.
type Still struct {
	Filename string
	Frame    *frame.Frame
	Identity *camera.Identity // From EXIF Make/Model; nil if there was none
}

func (s Still) Resolution() camera.Resolution {
	return camera.Resolution{Width: s.Frame.Width, Height: s.Frame.Height}
}

func (s Still) String() string {
	str := fmt.Sprintf("%s [%s]", s.Filename, s.Resolution())
	if s.Identity != nil {
		str += " " + s.Identity.String()
	}
	return str
}

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".tif": true, ".tiff": true}

// FindFilesAndDirs expands the args into a list of image files, recursing
// into directories. Our own outputs (*-wb.png) are skipped.
func FindFilesAndDirs(args ...string) ([]string, error) {
	ret := []string{}
	for _, arg := range args {
		item, err := os.Stat(arg)

		switch {
		case err != nil:
			return nil, fmt.Errorf("load %s: %w", arg, err)

		case item.IsDir():
			contents, err := os.ReadDir(arg)
			if err != nil {
				return nil, fmt.Errorf("readdir %s: %w", arg, err)
			}
			for _, content := range contents {
				files, err := FindFilesAndDirs(filepath.Join(arg, content.Name()))
				if err != nil {
					return nil, err
				}
				ret = append(ret, files...)
			}

		case imageExts[strings.ToLower(filepath.Ext(arg))] && !strings.HasSuffix(arg, OutputSuffix):
			ret = append(ret, arg)
		}
	}
	return ret, nil
}

// Load decodes an image file. EXIF is optional; failing to read it just
// means we have no identity to classify by.
func Load(filename string) (Still, error) {
	s := Still{Filename: filename}
	s.Identity = exifIdentity(filename)

	reader, err := os.Open(filename)
	if err != nil {
		return s, fmt.Errorf("open+r img '%s': %w", filename, err)
	}
	defer reader.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".tif", ".tiff":
		img, err = tiff.Decode(reader)
	default:
		img, _, err = image.Decode(reader)
	}
	if err != nil {
		return s, fmt.Errorf("decoding '%s': %w", filename, err)
	}

	s.Frame = frame.FromImage(img)
	return s, nil
}

func exifIdentity(filename string) *camera.Identity {
	reader, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer reader.Close()

	ex, err := exif.Decode(reader)
	if err != nil {
		return nil
	}

	parts := []string{}
	for _, field := range []exif.FieldName{exif.Make, exif.Model} {
		if tag, err := ex.Get(field); err == nil {
			if val, err := tag.StringVal(); err == nil && strings.TrimSpace(val) != "" {
				parts = append(parts, strings.TrimSpace(val))
			}
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return &camera.Identity{Name: strings.Join(parts, " ")}
}

// Developed is a still after white balancing.
type Developed struct {
	Still
	Class     ecolor.CameraClass
	Model     ecolor.ColorModel
	Estimate  wb.Estimate
	Gains     emath.Vec3
	Corrected *frame.Frame
}

// Develop classifies and corrects a still. With no history to smooth
// against, it uses the gains a live session would settle on if it kept
// seeing this frame: the raw estimate, clamped.
func Develop(s Still, cls camera.Classifier, models ecolor.ColorModelTable, est wb.Estimator) (Developed, error) {
	if err := s.Frame.Validate(); err != nil {
		return Developed{Still: s}, fmt.Errorf("%s: %w", s.Filename, err)
	}

	d := Developed{Still: s}
	d.Class = cls.Classify(s.Resolution(), s.Identity)
	d.Model = models.Lookup(d.Class)
	d.Estimate = est.Estimate(s.Frame, d.Model)
	d.Gains = d.Estimate.Raw.Clamp(ecolor.MinGain, ecolor.MaxGain)
	d.Corrected = wb.Apply(s.Frame, d.Gains, d.Model.Gamma)
	return d, nil
}

func (d Developed) String() string {
	return fmt.Sprintf("%s: %s gains%s cast %.3f", d.Still, d.Class, d.Gains, wb.CastDelta(d.Estimate.Means))
}

const OutputSuffix = "-wb.png"

// OutputFilename is where the corrected image for input goes: alongside
// it, or in outdir if that is set.
func OutputFilename(input, outdir string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + OutputSuffix
	if outdir == "" {
		return filepath.Join(filepath.Dir(input), base)
	}
	return filepath.Join(outdir, base)
}
