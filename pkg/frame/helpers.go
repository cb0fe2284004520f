package frame

// A few helper routines for golang's image libraries

import (
	"fmt"
	"image"
	"image/png"
	"os"
)

func RectCenter(b image.Rectangle) image.Point {
	return image.Point{(b.Min.X + b.Max.X) / 2, (b.Min.Y + b.Max.Y) / 2}
}

// CenterCrop returns the centered sub-rectangle of b whose sides are
// `frac` of b's sides. It is never empty for a non-empty b.
func CenterCrop(b image.Rectangle, frac float64) image.Rectangle {
	if frac <= 0 || frac > 1 {
		frac = 1
	}
	w := int(float64(b.Dx()) * frac)
	h := int(float64(b.Dy()) * frac)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	c := RectCenter(b)
	min := image.Point{c.X - w/2, c.Y - h/2}
	return image.Rectangle{Min: min, Max: min.Add(image.Point{w, h})}.Intersect(b)
}

func GrowRectangle(r image.Rectangle, p image.Point) image.Rectangle {
	if r.Empty() {
		return image.Rectangle{Min: p, Max: p.Add(image.Point{1, 1})}
	}
	if p.X < r.Min.X {
		r.Min.X = p.X
	} else if p.X >= r.Max.X {
		r.Max.X = p.X + 1
	}

	if p.Y < r.Min.Y {
		r.Min.Y = p.Y
	} else if p.Y >= r.Max.Y {
		r.Max.Y = p.Y + 1
	}

	return r
}

func WritePNG(img image.Image, filename string) error {
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("open+w '%s': %w", filename, err)
	}
	defer writer.Close()
	return png.Encode(writer, img)
}
