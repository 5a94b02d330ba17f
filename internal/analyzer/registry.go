package analyzer

import (
	"errors"
	"fmt"
	"image"

	"github.com/ivlev/liveoverlay/internal/tracker"
)

// ErrNotImplemented is returned for detector variants that are reserved but
// not available in this build.
var ErrNotImplemented = errors.New("detector not implemented")

// Detector finds objects in a single frame. Boxes are in the frame's pixel
// grid; detectors without persistent tracking leave TrackingID nil.
type Detector interface {
	Detect(img image.Image) ([]tracker.Detection, error)
}

// NewDetector creates a detector based on the specified variant
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	case "ocr", "ai":
		return nil, fmt.Errorf("%s: %w", variant, ErrNotImplemented)
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}
