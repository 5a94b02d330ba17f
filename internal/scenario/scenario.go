package scenario

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/ivlev/liveoverlay/internal/mapper"
	"github.com/ivlev/liveoverlay/internal/tracker"
)

const Version = "1.0"

var ErrInvalidScenario = errors.New("invalid scenario")

// Scenario is a recorded stream of detection frames. The same Frame shape is
// used for newline-delimited JSON in live mode.
type Scenario struct {
	Version string    `yaml:"version" json:"version"`
	Input   string    `yaml:"input,omitempty" json:"input,omitempty"` // background frames
	Image   ImageInfo `yaml:"image" json:"image"`
	Frames  []Frame   `yaml:"frames" json:"frames"`
}

// ImageInfo is the sensor image geometry shared by all frames unless a frame
// overrides it.
type ImageInfo struct {
	Width    int `yaml:"width" json:"width"`
	Height   int `yaml:"height" json:"height"`
	Rotation int `yaml:"rotation" json:"rotation"`
}

type Frame struct {
	Time       float64     `yaml:"time" json:"time"` // seconds from start
	Width      int         `yaml:"width,omitempty" json:"width,omitempty"`
	Height     int         `yaml:"height,omitempty" json:"height,omitempty"`
	Rotation   *int        `yaml:"rotation,omitempty" json:"rotation,omitempty"`
	Background *int        `yaml:"background,omitempty" json:"background,omitempty"` // source frame index
	Objects    []Detection `yaml:"detections" json:"detections"`
}

type Detection struct {
	ID     *int64          `yaml:"id,omitempty" json:"id,omitempty"`
	Box    Rectangle       `yaml:"box" json:"box"`
	Labels []tracker.Label `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Rectangle is a box in source image pixels.
type Rectangle struct {
	X int `yaml:"x" json:"x"`
	Y int `yaml:"y" json:"y"`
	W int `yaml:"w" json:"w"`
	H int `yaml:"h" json:"h"`
}

func (r Rectangle) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

func FromRect(r image.Rectangle) Rectangle {
	return Rectangle{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// At returns the frame time as a duration.
func (f *Frame) At() time.Duration {
	return time.Duration(f.Time * float64(time.Second))
}

// Info resolves the frame geometry against the scenario defaults.
func (f *Frame) Info(def ImageInfo) tracker.FrameInfo {
	info := tracker.FrameInfo{Width: def.Width, Height: def.Height, Rotation: def.Rotation}
	if f.Width > 0 {
		info.Width = f.Width
	}
	if f.Height > 0 {
		info.Height = f.Height
	}
	if f.Rotation != nil {
		info.Rotation = *f.Rotation
	}
	return info
}

// Detections converts the frame into tracker input. Returned ids do not
// alias the frame.
func (f *Frame) Detections() []tracker.Detection {
	return f.AppendDetections(nil)
}

// AppendDetections is Detections appending into dst.
func (f *Frame) AppendDetections(dst []tracker.Detection) []tracker.Detection {
	for _, d := range f.Objects {
		td := tracker.Detection{Box: d.Box.Rect(), Labels: d.Labels}
		if d.ID != nil {
			id := *d.ID
			td.TrackingID = &id
		}
		dst = append(dst, td)
	}
	return dst
}

// Duration is the time of the last frame.
func (s *Scenario) Duration() time.Duration {
	if len(s.Frames) == 0 {
		return 0
	}
	return s.Frames[len(s.Frames)-1].At()
}

// Validate checks versions, geometry and frame ordering.
func (s *Scenario) Validate() error {
	if s.Version != Version {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidScenario, s.Version)
	}
	if err := checkImage(s.Image.Width, s.Image.Height, s.Image.Rotation); err != nil {
		return fmt.Errorf("%w: image: %v", ErrInvalidScenario, err)
	}
	last := 0.0
	for i := range s.Frames {
		f := &s.Frames[i]
		if f.Time < last {
			return fmt.Errorf("%w: frame %d: time %.3f before %.3f", ErrInvalidScenario, i, f.Time, last)
		}
		last = f.Time
		info := f.Info(s.Image)
		if err := checkImage(info.Width, info.Height, info.Rotation); err != nil {
			return fmt.Errorf("%w: frame %d: %v", ErrInvalidScenario, i, err)
		}
		for j, d := range f.Objects {
			if d.Box.W < 0 || d.Box.H < 0 {
				return fmt.Errorf("%w: frame %d detection %d: negative box size", ErrInvalidScenario, i, j)
			}
		}
	}
	return nil
}

func checkImage(w, h, rotation int) error {
	if w < 0 || h < 0 {
		return mapper.ErrInvalidDimensions
	}
	return mapper.ValidateRotation(rotation)
}
