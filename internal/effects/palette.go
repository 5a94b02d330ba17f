package effects

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Gradient is a two-stop colour used for one palette entry.
type Gradient struct {
	Start color.NRGBA
	End   color.NRGBA
}

// DefaultPalette returns the six built-in gradients.
func DefaultPalette() []Gradient {
	return []Gradient{
		{rgb(0x00D9FF), rgb(0x0066FF)}, // cyan to blue
		{rgb(0xFF6B6B), rgb(0xFF3366)}, // coral to pink
		{rgb(0x4FFFB0), rgb(0x00CC66)}, // mint to green
		{rgb(0xFFD93D), rgb(0xFF9500)}, // yellow to orange
		{rgb(0xB388FF), rgb(0x8E24AA)}, // lavender to purple
		{rgb(0x64FFDA), rgb(0x00BFA5)}, // light teal to teal
	}
}

func rgb(v uint32) color.NRGBA {
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func ParseHexColor(s string) (color.NRGBA, error) {
	h := strings.TrimPrefix(s, "#")
	if len(h) != 6 && len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: want #RRGGBB or #RRGGBBAA", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	if len(h) == 6 {
		return rgb(uint32(v)), nil
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func pick(palette []Gradient, index int) Gradient {
	if len(palette) == 0 {
		return DefaultPalette()[0]
	}
	if index < 0 || index >= len(palette) {
		index = 0
	}
	return palette[index]
}

// fade scales the colour's alpha by a in [0,1].
func fade(c color.NRGBA, a float64) color.NRGBA {
	c.A = uint8(float64(c.A)*clampUnit(a) + 0.5)
	return c
}

func clampUnit(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
