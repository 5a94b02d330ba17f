package effects

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var boldFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(gobold.TTF)
})

// NewFace returns a bold face of size pixels. A face caches glyphs and must
// not be shared between goroutines.
func NewFace(size float64) (font.Face, error) {
	f, err := boldFont()
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	return face, nil
}

// MeasureText returns the ink width and height of s.
func MeasureText(face font.Face, s string) (float64, float64) {
	b, _ := font.BoundString(face, s)
	return fixedToFloat(b.Max.X - b.Min.X), fixedToFloat(b.Max.Y - b.Min.Y)
}

// DrawText draws s with its baseline origin at (x, y).
func DrawText(dst draw.Image, face font.Face, x, y float64, s string, c color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: floatToFixed(x), Y: floatToFixed(y)},
	}
	d.DrawString(s)
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

func floatToFixed(v float64) fixed.Int26_6 { return fixed.Int26_6(v * 64) }
