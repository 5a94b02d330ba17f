package tracker

import (
	"math"

	"github.com/ivlev/liveoverlay/internal/mapper"
)

// Lerp performs linear interpolation between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Approach moves current a fixed fraction of the remaining distance toward
// target. Results within eps of the target snap onto it, so a value never
// overshoots and converges in a finite number of steps.
func Approach(current, target, factor, eps float64) float64 {
	next := Lerp(current, target, factor)
	if math.Abs(target-next) <= eps {
		return target
	}
	return next
}

// ApproachRect applies Approach to every edge independently.
func ApproachRect(current, target mapper.Rect, factor, eps float64) mapper.Rect {
	return mapper.Rect{
		Left:   Approach(current.Left, target.Left, factor, eps),
		Top:    Approach(current.Top, target.Top, factor, eps),
		Right:  Approach(current.Right, target.Right, factor, eps),
		Bottom: Approach(current.Bottom, target.Bottom, factor, eps),
	}
}

// TicksToConverge returns how many steps with the given factor shrink the
// distance to a target below tolerance (as a fraction of the initial distance).
func TicksToConverge(factor, tolerance float64) int {
	if factor >= 1 {
		return 1
	}
	if factor <= 0 || tolerance <= 0 || tolerance >= 1 {
		return 0
	}
	return int(math.Ceil(math.Log(tolerance) / math.Log(1-factor)))
}

func rectDistance(a, b mapper.Rect) float64 {
	return max(
		math.Abs(a.Left-b.Left),
		math.Abs(a.Top-b.Top),
		math.Abs(a.Right-b.Right),
		math.Abs(a.Bottom-b.Bottom),
	)
}
