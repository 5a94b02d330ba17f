package analyzer

import "github.com/ivlev/liveoverlay/internal/tracker"

// Filter drops weak detections before they reach the tracker. A detection is
// kept when any label reaches MinConfidence, or when it has no labels and is
// wider than MinUnclassifiedWidth of the frame width.
type Filter struct {
	MinConfidence        float64
	MinUnclassifiedWidth float64 // fraction of the reported frame width
}

// DefaultFilter returns the thresholds used by the live overlay.
func DefaultFilter() Filter {
	return Filter{MinConfidence: 0.3, MinUnclassifiedWidth: 0.2}
}

// Apply filters dets in place and returns the kept prefix. frameWidth is the
// width the detector reported, before rotation.
func (f Filter) Apply(dets []tracker.Detection, frameWidth int) []tracker.Detection {
	minWidth := float64(frameWidth) * f.MinUnclassifiedWidth
	n := 0
	for _, d := range dets {
		if f.keep(&d, minWidth) {
			dets[n] = d
			n++
		}
	}
	clear(dets[n:])
	return dets[:n]
}

func (f Filter) keep(d *tracker.Detection, minWidth float64) bool {
	for _, l := range d.Labels {
		if l.Confidence >= f.MinConfidence {
			return true
		}
	}
	return len(d.Labels) == 0 && float64(d.Box.Dx()) > minWidth
}
