package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ivlev/liveoverlay/internal/analyzer"
	"github.com/ivlev/liveoverlay/internal/source"
)

// Director records a detection scenario by running a detector over every
// frame of a source.
type Director struct {
	Detector analyzer.Detector
	Filter   analyzer.Filter
	Interval time.Duration // time between consecutive source frames
	Logger   *slog.Logger
}

func NewDirector(detector analyzer.Detector, interval time.Duration) *Director {
	if interval <= 0 {
		interval = time.Second
	}
	return &Director{
		Detector: detector,
		Filter:   analyzer.DefaultFilter(),
		Interval: interval,
		Logger:   slog.New(slog.DiscardHandler),
	}
}

// GenerateScenario detects objects on every source frame. The first frame
// sets the scenario geometry; later frames record theirs only when it
// differs.
func (d *Director) GenerateScenario(ctx context.Context, src source.Source, input string) (*Scenario, error) {
	count := src.FrameCount()
	if count == 0 {
		return nil, source.ErrNoFrames
	}

	s := &Scenario{Version: Version, Input: input, Frames: make([]Frame, 0, count)}
	for i := range count {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := src.RenderFrame(i)
		if err != nil {
			return nil, fmt.Errorf("render frame %d: %w", i, err)
		}
		dets, err := d.Detector.Detect(img)
		if err != nil {
			return nil, fmt.Errorf("detect frame %d: %w", i, err)
		}
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		dets = d.Filter.Apply(dets, w)

		if i == 0 {
			s.Image = ImageInfo{Width: w, Height: h}
		}
		background := i
		frame := Frame{
			Time:       (time.Duration(i) * d.Interval).Seconds(),
			Background: &background,
			Objects:    make([]Detection, 0, len(dets)),
		}
		if w != s.Image.Width || h != s.Image.Height {
			frame.Width, frame.Height = w, h
		}
		for _, det := range dets {
			frame.Objects = append(frame.Objects, Detection{Box: FromRect(det.Box), Labels: det.Labels})
		}
		s.Frames = append(s.Frames, frame)

		d.Logger.Debug("frame analysed", "frame", i, "detections", len(frame.Objects))
	}
	return s, nil
}
