package mapper

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/math/f64"
)

var (
	// ErrInvalidDimensions is returned for negative image or display sizes.
	ErrInvalidDimensions = errors.New("invalid dimensions")
	// ErrInvalidRotation is returned for rotations other than 0, 90, 180 and 270.
	ErrInvalidRotation = errors.New("invalid rotation")
)

// Rect is an axis-aligned rectangle in display pixels.
type Rect struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Area returns zero for degenerate rectangles.
func (r Rect) Area() float64 {
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU returns the intersection over union of two rectangles.
func (r Rect) IoU(o Rect) float64 {
	inter := Rect{
		Left:   max(r.Left, o.Left),
		Top:    max(r.Top, o.Top),
		Right:  min(r.Right, o.Right),
		Bottom: min(r.Bottom, o.Bottom),
	}
	ia := inter.Area()
	if ia == 0 {
		return 0
	}
	union := r.Area() + o.Area() - ia
	if union <= 0 {
		return 0
	}
	return ia / union
}

// Bounds rounds the rectangle outward to integer pixels.
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(int(math.Floor(r.Left)), int(math.Floor(r.Top)), int(math.Ceil(r.Right)), int(math.Ceil(r.Bottom)))
}

// Transform is a uniform scale followed by an offset, from source-image pixels
// to display pixels.
type Transform struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// Identity is the transform used before the first successful computation.
var Identity = Transform{Scale: 1}

// Apply maps every edge of a source rectangle independently.
func (t Transform) Apply(r image.Rectangle) Rect {
	return Rect{
		Left:   float64(r.Min.X)*t.Scale + t.OffsetX,
		Top:    float64(r.Min.Y)*t.Scale + t.OffsetY,
		Right:  float64(r.Max.X)*t.Scale + t.OffsetX,
		Bottom: float64(r.Max.Y)*t.Scale + t.OffsetY,
	}
}

// SourceToDisplay returns the affine matrix that takes a pixel of the raw
// sensor frame (imageW x imageH, before rotation) to display space. The sensor
// frame is rotated clockwise by rotation degrees first, which is the
// orientation detection boxes are reported in.
func (t Transform) SourceToDisplay(imageW, imageH, rotation int) f64.Aff3 {
	w, h := float64(imageW), float64(imageH)
	var rot f64.Aff3
	switch rotation {
	case 90:
		rot = f64.Aff3{0, -1, h, 1, 0, 0}
	case 180:
		rot = f64.Aff3{-1, 0, w, 0, -1, h}
	case 270:
		rot = f64.Aff3{0, 1, 0, -1, 0, w}
	default:
		rot = f64.Aff3{1, 0, 0, 0, 1, 0}
	}
	s := t.Scale
	return f64.Aff3{
		s * rot[0], s * rot[1], s*rot[2] + t.OffsetX,
		s * rot[3], s * rot[4], s*rot[5] + t.OffsetY,
	}
}

// EffectiveSize swaps width and height for quarter-turn rotations. Detectors
// report frame dimensions in sensor orientation.
func EffectiveSize(imageW, imageH, rotation int) (int, int) {
	if rotation == 90 || rotation == 270 {
		return imageH, imageW
	}
	return imageW, imageH
}

// ValidateRotation reports whether rotation is one of the four quarter turns.
func ValidateRotation(rotation int) error {
	switch rotation {
	case 0, 90, 180, 270:
		return nil
	}
	return fmt.Errorf("%w: %d", ErrInvalidRotation, rotation)
}

// Fit computes the transform for the given inputs. The image is scaled
// uniformly and centred; the axis with slack gets the offset. ok is false when
// any dimension is zero, in which case the caller keeps its previous transform.
func Fit(imageW, imageH, rotation, displayW, displayH int) (Transform, bool) {
	effW, effH := EffectiveSize(imageW, imageH, rotation)
	if effW <= 0 || effH <= 0 || displayW <= 0 || displayH <= 0 {
		return Transform{}, false
	}

	displayAspect := float64(displayW) / float64(displayH)
	imageAspect := float64(effW) / float64(effH)

	var scale float64
	if displayAspect > imageAspect {
		scale = float64(displayW) / float64(effW)
	} else {
		scale = float64(displayH) / float64(effH)
	}

	return Transform{
		Scale:   scale,
		OffsetX: (float64(displayW) - float64(effW)*scale) / 2,
		OffsetY: (float64(displayH) - float64(effH)*scale) / 2,
	}, true
}

// Mapper caches a Transform and recomputes it only when one of its five
// inputs changes.
type Mapper struct {
	imageW, imageH, rotation int
	displayW, displayH       int
	tf                       Transform
	computations             int
}

// New returns a mapper with the identity transform for the given display size.
func New(displayW, displayH int) (*Mapper, error) {
	m := &Mapper{tf: Identity}
	if err := m.SetDisplaySize(displayW, displayH); err != nil {
		return nil, err
	}
	return m, nil
}

// SetImage updates the source frame geometry.
func (m *Mapper) SetImage(imageW, imageH, rotation int) error {
	if imageW < 0 || imageH < 0 {
		return fmt.Errorf("%w: image %dx%d", ErrInvalidDimensions, imageW, imageH)
	}
	if err := ValidateRotation(rotation); err != nil {
		return err
	}
	if imageW == m.imageW && imageH == m.imageH && rotation == m.rotation {
		return nil
	}
	m.imageW, m.imageH, m.rotation = imageW, imageH, rotation
	m.recompute()
	return nil
}

// SetDisplaySize updates the display surface geometry.
func (m *Mapper) SetDisplaySize(displayW, displayH int) error {
	if displayW < 0 || displayH < 0 {
		return fmt.Errorf("%w: display %dx%d", ErrInvalidDimensions, displayW, displayH)
	}
	if displayW == m.displayW && displayH == m.displayH {
		return nil
	}
	m.displayW, m.displayH = displayW, displayH
	m.recompute()
	return nil
}

func (m *Mapper) recompute() {
	tf, ok := Fit(m.imageW, m.imageH, m.rotation, m.displayW, m.displayH)
	if !ok {
		return
	}
	m.tf = tf
	m.computations++
}

// Transform returns the current transform.
func (m *Mapper) Transform() Transform { return m.tf }

// Map applies the current transform to a source rectangle.
func (m *Mapper) Map(r image.Rectangle) Rect { return m.tf.Apply(r) }

// Image returns the last accepted source geometry.
func (m *Mapper) Image() (w, h, rotation int) { return m.imageW, m.imageH, m.rotation }

// Display returns the last accepted display size.
func (m *Mapper) Display() (w, h int) { return m.displayW, m.displayH }

// Computations counts how many times the transform was actually recomputed.
func (m *Mapper) Computations() int { return m.computations }
