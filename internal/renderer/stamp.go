package renderer

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/skip2/go-qrcode"
)

// NewStamp renders content as a square QR code of size pixels.
func NewStamp(content string, size int) (*image.RGBA, error) {
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr stamp: %w", err)
	}
	src := q.Image(size)
	dst := image.NewRGBA(image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy()))
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst, nil
}
