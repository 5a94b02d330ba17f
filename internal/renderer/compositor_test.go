package renderer

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/liveoverlay/internal/mapper"
	"github.com/ivlev/liveoverlay/internal/tracker"
)

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func halves(w, h int, vertical bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(blue), image.Point{}, draw.Src)
	first := image.Rect(0, 0, w/2, h)
	if vertical {
		first = image.Rect(0, 0, w, h/2)
	}
	draw.Draw(img, first, image.NewUniform(red), image.Point{}, draw.Src)
	return img
}

func newCompositor(t *testing.T, opts Options) *Compositor {
	t.Helper()
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestComposeBackdrop(t *testing.T) {
	c := newCompositor(t, Options{Width: 64, Height: 48, Backdrop: color.RGBA{G: 200, A: 255}})
	dst := image.NewRGBA(c.Bounds())
	dst.Set(5, 5, red) // stale pooled content is repainted
	c.Compose(dst, &Frame{})
	assert.Equal(t, color.RGBA{G: 200, A: 255}, dst.RGBAAt(5, 5))
}

func TestComposeBackgroundScaled(t *testing.T) {
	c := newCompositor(t, Options{Width: 200, Height: 100})
	tf, ok := mapper.Fit(100, 50, 0, 200, 100)
	require.True(t, ok)

	dst := image.NewRGBA(c.Bounds())
	c.Compose(dst, &Frame{
		Background: halves(100, 50, false),
		Source:     tracker.FrameInfo{Width: 100, Height: 50},
		Transform:  tf,
	})
	assert.Equal(t, red, dst.RGBAAt(50, 50))
	assert.Equal(t, blue, dst.RGBAAt(150, 50))
}

func TestComposeBackgroundRotated(t *testing.T) {
	c := newCompositor(t, Options{Width: 50, Height: 100})
	tf, ok := mapper.Fit(100, 50, 90, 50, 100)
	require.True(t, ok)

	dst := image.NewRGBA(c.Bounds())
	c.Compose(dst, &Frame{
		Background: halves(100, 50, true),
		Source:     tracker.FrameInfo{Width: 100, Height: 50, Rotation: 90},
		Transform:  tf,
	})
	// the sensor's top half ends up on the right after a clockwise turn
	assert.Equal(t, red, dst.RGBAAt(40, 50))
	assert.Equal(t, blue, dst.RGBAAt(10, 50))
}

func TestComposeDrawsItems(t *testing.T) {
	c := newCompositor(t, Options{Width: 200, Height: 200})
	dst := image.NewRGBA(c.Bounds())
	c.Compose(dst, &Frame{Items: []tracker.RenderItem{{
		ID:    1,
		Rect:  mapper.Rect{Left: 50, Top: 80, Right: 150, Bottom: 180},
		Alpha: 1,
		Label: "Food",
	}}})

	assert.NotEqual(t, color.RGBA{A: 255}, dst.RGBAAt(100, 80), "box outline")
	assert.Equal(t, color.RGBA{A: 255}, dst.RGBAAt(100, 130), "box interior")
}

func TestComposeHUD(t *testing.T) {
	plain := newCompositor(t, Options{Width: 320, Height: 120})
	hud := newCompositor(t, Options{Width: 320, Height: 120, ShowHUD: true})

	a := image.NewRGBA(plain.Bounds())
	b := image.NewRGBA(hud.Bounds())
	f := &Frame{Objects: 3, FPS: 29.7}
	plain.Compose(a, f)
	hud.Compose(b, f)

	assert.NotEqual(t, a.Pix, b.Pix)
	assert.Equal(t, a.RGBAAt(300, 100), b.RGBAAt(300, 100))
	assert.Equal(t, "3 objects · 30 fps", HUDText(3, 29.7))
}

func TestComposeStamp(t *testing.T) {
	c := newCompositor(t, Options{Width: 400, Height: 300, Stamp: "session-1234", StampSize: 120})
	dst := image.NewRGBA(c.Bounds())
	c.Compose(dst, &Frame{})

	var white, black int
	for y := 300 - hudMargin - 120; y < 300-hudMargin; y++ {
		for x := 400 - hudMargin - 120; x < 400-hudMargin; x++ {
			switch dst.RGBAAt(x, y) {
			case color.RGBA{R: 255, G: 255, B: 255, A: 255}:
				white++
			case color.RGBA{A: 255}:
				black++
			}
		}
	}
	assert.Positive(t, white)
	assert.Positive(t, black)
	assert.Equal(t, color.RGBA{A: 255}, dst.RGBAAt(10, 10))
}

func TestNewStamp(t *testing.T) {
	img, err := NewStamp("abc", 100)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Dx(), img.Bounds().Dy())
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(Options{Width: 0, Height: 10})
	assert.ErrorIs(t, err, mapper.ErrInvalidDimensions)

	_, err = New(Options{Width: 10, Height: 10, Effect: "sparkles"})
	assert.Error(t, err)
}
