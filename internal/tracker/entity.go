package tracker

import (
	"image"
	"time"

	"github.com/ivlev/liveoverlay/internal/mapper"
)

// Liveness is the lifecycle state of an Entity.
type Liveness int

const (
	Active   Liveness = iota // Seen recently, fading in or fully visible
	Retiring                 // Not seen within the grace period, fading out
)

func (l Liveness) String() string {
	switch l {
	case Active:
		return "active"
	case Retiring:
		return "retiring"
	}
	return "unknown"
}

// Label is one classification result attached to a detection.
type Label struct {
	Text       string  `json:"text" yaml:"text"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
	Index      int     `json:"index" yaml:"index"`
}

// Detection is one object reported by the upstream detector for one frame.
// Box is in source-image pixels.
type Detection struct {
	TrackingID *int64
	Box        image.Rectangle
	Labels     []Label
}

// FrameInfo describes the source image a detection list belongs to.
type FrameInfo struct {
	Width    int
	Height   int
	Rotation int
}

// Entity is the animated representation of one object over its visible
// lifetime. Entities are owned by the Tracker; Entities() returns copies.
type Entity struct {
	ID          int64
	Current     mapper.Rect
	Target      mapper.Rect
	Alpha       float64
	TargetAlpha float64
	Label       string
	Confidence  float64
	ColorIndex  int
	LastSeen    time.Time
	Liveness    Liveness
	Synthetic   bool // id was synthesized for an identity-less detection

	seen bool // matched during the current Ingest
}

// RenderItem is what the caller needs to draw one entity.
type RenderItem struct {
	ID         int64
	Rect       mapper.Rect
	Alpha      float64
	Label      string
	Confidence float64
	ColorIndex int
}

func (e *Entity) reset(id int64, rect mapper.Rect, now time.Time, synthetic bool) {
	*e = Entity{
		ID:          id,
		Current:     rect,
		Target:      rect,
		Alpha:       0,
		TargetAlpha: 1,
		LastSeen:    now,
		Liveness:    Active,
		Synthetic:   synthetic,
	}
}

func (e *Entity) refresh(rect mapper.Rect, label string, confidence float64, color int, now time.Time) {
	e.Target = rect
	e.Label = label
	e.Confidence = confidence
	e.ColorIndex = color
	e.TargetAlpha = 1
	e.Liveness = Active
	e.LastSeen = now
	e.seen = true
}

func (e *Entity) retire() {
	e.TargetAlpha = 0
	e.Liveness = Retiring
}

func (e *Entity) advance(cfg *Config) {
	e.Current = ApproachRect(e.Current, e.Target, cfg.LerpFactor, cfg.SnapEpsilon)
	e.Alpha = Approach(e.Alpha, e.TargetAlpha, cfg.FadeSpeed, cfg.SnapEpsilon)
}

func (e *Entity) removable(cfg *Config) bool {
	return e.Liveness == Retiring && e.Alpha < cfg.RemoveAlpha
}

func (e *Entity) visible(cfg *Config) bool {
	return e.Alpha > cfg.VisibleAlpha &&
		e.Current.Width() > cfg.MinBoxSize &&
		e.Current.Height() > cfg.MinBoxSize
}

func (e *Entity) item() RenderItem {
	return RenderItem{
		ID:         e.ID,
		Rect:       e.Current,
		Alpha:      e.Alpha,
		Label:      e.Label,
		Confidence: e.Confidence,
		ColorIndex: e.ColorIndex,
	}
}
