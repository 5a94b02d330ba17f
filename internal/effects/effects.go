package effects

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/ivlev/liveoverlay/internal/mapper"
	"github.com/ivlev/liveoverlay/internal/tracker"
)

// Effect draws one render item onto an output frame. Implementations keep
// scratch state and are used by one goroutine at a time.
type Effect interface {
	Draw(dst *image.RGBA, item tracker.RenderItem)
}

// New creates an effect by name: "default" (or empty) and "debug".
func New(name string, palette []Gradient) (Effect, error) {
	switch name {
	case "", "default":
		return NewDefaultEffect(palette)
	case "debug":
		return &DebugEffect{Palette: palette}, nil
	default:
		return nil, fmt.Errorf("unknown effect: %s", name)
	}
}

const (
	glowWidth    = 12.0
	glowRadius   = 16.0
	glowAlpha    = 30.0 / 255
	boxWidth     = 4.0
	boxRadius    = 12.0
	cornerArm    = 24.0
	cornerWidth  = 6.0
	labelSize    = 36.0
	labelPadding = 12.0
	labelGap     = 8.0
	labelRadius  = 8.0
	labelMinA    = 0.1
)

// DefaultEffect draws a glowing gradient box with corner accents and a
// "label • NN%" pill above it (below it when there is no room above).
type DefaultEffect struct {
	Palette []Gradient

	face font.Face
	p    painter
}

func NewDefaultEffect(palette []Gradient) (*DefaultEffect, error) {
	face, err := NewFace(labelSize)
	if err != nil {
		return nil, err
	}
	if len(palette) == 0 {
		palette = DefaultPalette()
	}
	return &DefaultEffect{Palette: palette, face: face}, nil
}

func (e *DefaultEffect) Draw(dst *image.RGBA, item tracker.RenderItem) {
	g := pick(e.Palette, item.ColorIndex)
	a := clampUnit(item.Alpha)
	r := item.Rect
	e.p.dst = dst

	e.p.strokeRoundRect(r, glowRadius, glowWidth, image.NewUniform(fade(g.Start, glowAlpha*a)))
	// shader alpha compounds with the faded stop colours
	e.p.strokeRoundRect(r, boxRadius, boxWidth, newLinearGradient(r.Left, r.Top, r.Right, r.Bottom, g, a*a))
	e.p.corners(r, cornerArm, cornerWidth, image.NewUniform(fade(g.Start, a)))

	if a >= labelMinA {
		e.drawLabel(dst, item, g, a)
	}
}

func (e *DefaultEffect) drawLabel(dst *image.RGBA, item tracker.RenderItem, g Gradient, a float64) {
	text := LabelText(item.Label, item.Confidence)
	if text == "" {
		return
	}
	tw, th := MeasureText(e.face, text)
	r := item.Rect

	bg := mapper.Rect{
		Left:   r.Left,
		Top:    r.Top - th - labelPadding*2 - labelGap,
		Right:  r.Left + tw + labelPadding*2,
		Bottom: r.Top - labelGap,
	}
	if bg.Top < float64(dst.Bounds().Min.Y) {
		bg.Top = r.Bottom + labelGap
		bg.Bottom = r.Bottom + th + labelPadding*2 + labelGap
	}

	e.p.fillRoundRect(bg, labelRadius, newLinearGradient(bg.Left, bg.Top, bg.Right, bg.Bottom, g, a*a))
	DrawText(dst, e.face, bg.Left+labelPadding, bg.Bottom-labelPadding-2, text, fade(color.NRGBA{R: 255, G: 255, B: 255, A: 255}, a))
}

// LabelText formats the pill text; confidence is shown only when positive.
func LabelText(label string, confidence float64) string {
	if confidence > 0 {
		return fmt.Sprintf("%s • %.0f%%", label, confidence*100)
	}
	return label
}

// DebugEffect draws a thin outline with the entity id and alpha.
type DebugEffect struct {
	Palette []Gradient

	p painter
}

func (e *DebugEffect) Draw(dst *image.RGBA, item tracker.RenderItem) {
	g := pick(e.Palette, item.ColorIndex)
	e.p.dst = dst
	e.p.strokeRoundRect(item.Rect, 0, 1, image.NewUniform(fade(g.Start, 1)))

	text := fmt.Sprintf("#%d a=%.2f", item.ID, item.Alpha)
	DrawText(dst, basicfont.Face7x13, item.Rect.Left+3, item.Rect.Top+14, text, color.White)
}
