package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"

	"github.com/ivlev/liveoverlay/internal/effects"
	"github.com/ivlev/liveoverlay/internal/mapper"
	"github.com/ivlev/liveoverlay/internal/tracker"
)

const (
	hudSize    = 22.0
	hudMargin  = 16
	hudPadding = 10
)

var hudPanel = color.NRGBA{A: 0x99}

// Options configures a Compositor.
type Options struct {
	Width, Height int
	Effect        string
	Palette       []effects.Gradient
	Backdrop      color.Color
	ShowHUD       bool
	Stamp         string // QR content drawn in the bottom-right corner; empty for none
	StampSize     int
}

// Compositor draws complete output frames. It owns an effect with scratch
// state, so each drawing goroutine needs its own Compositor.
type Compositor struct {
	width, height int
	effect        effects.Effect
	backdrop      *image.Uniform
	hudFace       font.Face
	stamp         image.Image
}

// Frame is everything needed to draw one output frame.
type Frame struct {
	Background image.Image       // raw sensor frame, may be nil
	Source     tracker.FrameInfo // geometry of Background
	Transform  mapper.Transform
	Items      []tracker.RenderItem
	Objects    int
	FPS        float64
}

func New(opts Options) (*Compositor, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: output %dx%d", mapper.ErrInvalidDimensions, opts.Width, opts.Height)
	}
	effect, err := effects.New(opts.Effect, opts.Palette)
	if err != nil {
		return nil, err
	}
	backdrop := opts.Backdrop
	if backdrop == nil {
		backdrop = color.Black
	}
	c := &Compositor{
		width:    opts.Width,
		height:   opts.Height,
		effect:   effect,
		backdrop: image.NewUniform(backdrop),
	}
	if opts.ShowHUD {
		if c.hudFace, err = effects.NewFace(hudSize); err != nil {
			return nil, err
		}
	}
	if opts.Stamp != "" {
		size := opts.StampSize
		if size <= 0 {
			size = min(opts.Width, opts.Height) / 6
		}
		if c.stamp, err = NewStamp(opts.Stamp, size); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Bounds is the output frame rectangle.
func (c *Compositor) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.width, c.height)
}

// Compose repaints dst completely.
func (c *Compositor) Compose(dst *image.RGBA, f *Frame) {
	draw.Draw(dst, dst.Bounds(), c.backdrop, image.Point{}, draw.Src)

	if f.Background != nil {
		s2d := f.Transform.SourceToDisplay(f.Source.Width, f.Source.Height, f.Source.Rotation)
		xdraw.ApproxBiLinear.Transform(dst, s2d, f.Background, f.Background.Bounds(), xdraw.Over, nil)
	}

	for _, item := range f.Items {
		c.effect.Draw(dst, item)
	}

	if c.hudFace != nil {
		c.drawHUD(dst, f.Objects, f.FPS)
	}
	if c.stamp != nil {
		sb := c.stamp.Bounds()
		at := image.Pt(dst.Bounds().Max.X-sb.Dx()-hudMargin, dst.Bounds().Max.Y-sb.Dy()-hudMargin)
		draw.Draw(dst, sb.Sub(sb.Min).Add(at), c.stamp, sb.Min, draw.Over)
	}
}

// HUDText formats the on-screen readout.
func HUDText(objects int, fps float64) string {
	return fmt.Sprintf("%d objects · %.0f fps", objects, fps)
}

func (c *Compositor) drawHUD(dst *image.RGBA, objects int, fps float64) {
	text := HUDText(objects, fps)
	tw, th := effects.MeasureText(c.hudFace, text)
	panel := image.Rect(hudMargin, hudMargin, hudMargin+int(tw)+2*hudPadding, hudMargin+int(th)+2*hudPadding)
	draw.Draw(dst, panel, image.NewUniform(hudPanel), image.Point{}, draw.Over)
	effects.DrawText(dst, c.hudFace, float64(panel.Min.X+hudPadding), float64(panel.Max.Y-hudPadding), text, color.White)
}
