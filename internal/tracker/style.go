package tracker

import (
	"math"
	"time"
)

// Config holds the animation and lifecycle constants of a Tracker.
type Config struct {
	LerpFactor           float64       // Fraction of the remaining rect distance covered per tick
	FadeSpeed            float64       // Fraction of the remaining alpha distance covered per tick
	GracePeriod          time.Duration // How long an unseen entity with upstream identity stays Active
	SyntheticGracePeriod time.Duration // Same, for entities with a synthesized id
	MatchIoU             float64       // Minimum IoU to correlate an identity-less detection
	RemoveAlpha          float64       // Retiring entities below this alpha are dropped
	VisibleAlpha         float64       // Entities at or below this alpha are not rendered
	AlphaTolerance       float64       // |alpha - target| above this keeps the animation running
	MinBoxSize           float64       // Boxes must exceed this many pixels on both axes to render
	SnapEpsilon          float64       // Distance at which interpolated values snap onto their target
	SettleMotion         bool          // Also report stillAnimating while boxes are still moving
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		LerpFactor:           0.3,
		FadeSpeed:            0.15,
		GracePeriod:          200 * time.Millisecond,
		SyntheticGracePeriod: 0,
		MatchIoU:             0.3,
		RemoveAlpha:          0.01,
		VisibleAlpha:         0.01,
		AlphaTolerance:       0.01,
		MinBoxSize:           10,
		SnapEpsilon:          1e-3,
	}
}

// Style is the immutable lookup data used to derive labels and colours.
type Style struct {
	PaletteSize    int
	CategoryColors map[int]int       // classifier category index -> palette index
	Labels         map[string]string // source label -> display label
	Placeholder    string            // label used for unclassified detections
}

// DefaultStyle returns a six-colour palette with categories mapped onto it
// one-to-one and no label translation.
func DefaultStyle() Style {
	cats := make(map[int]int, 6)
	for i := 0; i < 6; i++ {
		cats[i] = i
	}
	return Style{
		PaletteSize:    6,
		CategoryColors: cats,
		Placeholder:    "Object",
	}
}

func (s Style) clone() Style {
	out := Style{PaletteSize: s.PaletteSize, Placeholder: s.Placeholder}
	if out.PaletteSize <= 0 {
		out.PaletteSize = 1
	}
	out.CategoryColors = make(map[int]int, len(s.CategoryColors))
	for k, v := range s.CategoryColors {
		out.CategoryColors[k] = v
	}
	out.Labels = make(map[string]string, len(s.Labels))
	for k, v := range s.Labels {
		out.Labels[k] = v
	}
	return out
}

// Translate returns the display text for a source label.
func (s Style) Translate(text string) string {
	if t, ok := s.Labels[text]; ok {
		return t
	}
	return text
}

// describe derives label, confidence and colour for the detection at position
// index within its frame.
func (s Style) describe(d *Detection, index int) (string, float64, int) {
	if len(d.Labels) == 0 {
		return s.Placeholder, 0, index % s.PaletteSize
	}

	top := 0
	for i := 1; i < len(d.Labels); i++ {
		if clampUnit(d.Labels[i].Confidence) > clampUnit(d.Labels[top].Confidence) {
			top = i
		}
	}
	l := d.Labels[top]

	color, ok := s.CategoryColors[l.Index]
	if !ok || color < 0 || color >= s.PaletteSize {
		color = 0
	}
	return s.Translate(l.Text), clampUnit(l.Confidence), color
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
