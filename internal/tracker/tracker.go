package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ivlev/liveoverlay/internal/mapper"
)

// ErrIDSpaceExhausted is raised (as a panic value) when every negative id is
// held by a live entity and no synthesized id can be handed out.
var ErrIDSpaceExhausted = errors.New("synthesized id space exhausted")

// Stats is a snapshot of tracker counters.
type Stats struct {
	Live     int
	Active   int
	Retiring int

	Created uint64
	Retired uint64
	Removed uint64
	Frames  uint64
	Ticks   uint64
}

// Tracker owns the set of animated entities. All methods are safe to call from
// different goroutines; none of them block beyond the internal mutex.
type Tracker struct {
	mu     sync.Mutex
	cfg    Config
	style  Style
	mapper *mapper.Mapper
	logger *slog.Logger

	live          []*Entity // creation order
	byID          map[int64]*Entity
	free          []*Entity
	nextSynthetic int64

	// per-frame scratch, reused across calls
	rects    []mapper.Rect
	assigned []int64
	pairs    []matchPair
	render   []RenderItem

	stats Stats
}

// New creates a tracker. A nil logger discards all output.
func New(cfg Config, style Style, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m, _ := mapper.New(0, 0)
	return &Tracker{
		cfg:           cfg,
		style:         style.clone(),
		mapper:        m,
		logger:        logger,
		byID:          make(map[int64]*Entity),
		nextSynthetic: -1,
	}
}

// SetDisplaySize forwards a display surface change to the coordinate mapper.
func (t *Tracker) SetDisplaySize(w, h int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mapper.SetDisplaySize(w, h)
}

// Config returns the constants the tracker was built with.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Transform returns the mapper's current transform.
func (t *Tracker) Transform() mapper.Transform {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mapper.Transform()
}

// Ingest applies one frame of detections. It reports whether the live state
// changed, in which case the caller should schedule a render. Only invalid
// frame geometry is an error; nothing is ingested in that case.
func (t *Tracker) Ingest(dets []Detection, frame FrameInfo, now time.Time) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.mapper.SetImage(frame.Width, frame.Height, frame.Rotation); err != nil {
		return false, fmt.Errorf("ingest frame: %w", err)
	}
	t.stats.Frames++

	for _, e := range t.live {
		e.seen = false
	}

	t.rects = t.rects[:0]
	t.assigned = t.assigned[:0]
	for i := range dets {
		t.rects = append(t.rects, t.mapper.Map(dets[i].Box))
		t.assigned = append(t.assigned, 0)
	}
	t.matchAnonymous(dets)

	changed := false
	for i := range dets {
		d := &dets[i]
		label, confidence, color := t.style.describe(d, i)

		var e *Entity
		switch {
		case hasIdentity(d):
			e = t.byID[*d.TrackingID]
		case t.assigned[i] != 0:
			e = t.byID[t.assigned[i]]
		}

		if e == nil {
			synthetic := !hasIdentity(d)
			id := int64(0)
			if synthetic {
				id = t.allocate()
			} else {
				id = *d.TrackingID
			}
			e = t.create(id, t.rects[i], now, synthetic)
			changed = true
		} else if e.Target != t.rects[i] || e.Current != t.rects[i] || e.Liveness != Active ||
			e.Label != label || e.Confidence != confidence || e.ColorIndex != color {
			// a box still short of its target needs another tick even when the
			// detection itself did not move
			changed = true
		}
		e.refresh(t.rects[i], label, confidence, color, now)
	}

	if t.retireStale(now) {
		changed = true
	}
	return changed, nil
}

// Sweep retires entities whose grace period has elapsed without ingesting a
// frame. It reports whether anything changed.
func (t *Tracker) Sweep(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retireStale(now)
}

func (t *Tracker) retireStale(now time.Time) bool {
	changed := false
	for _, e := range t.live {
		if e.Liveness != Active {
			continue
		}
		grace := t.cfg.GracePeriod
		if e.Synthetic {
			grace = t.cfg.SyntheticGracePeriod
		}
		if now.Sub(e.LastSeen) > grace {
			e.retire()
			t.stats.Retired++
			changed = true
			if t.logger.Enabled(context.Background(), slog.LevelDebug) {
				t.logger.Debug("entity retiring", "id", e.ID, "label", e.Label, "unseen", now.Sub(e.LastSeen))
			}
		}
	}
	return changed
}

// Tick advances every entity one animation step and returns the entities to
// draw plus whether another tick is needed. The returned slice is reused by
// the next call.
func (t *Tracker) Tick() ([]RenderItem, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Ticks++
	t.render = t.render[:0]
	animating := false

	n := 0
	for _, e := range t.live {
		e.advance(&t.cfg)
		if e.removable(&t.cfg) {
			t.remove(e)
			continue
		}
		t.live[n] = e
		n++

		if math.Abs(e.Alpha-e.TargetAlpha) > t.cfg.AlphaTolerance {
			animating = true
		} else if t.cfg.SettleMotion && rectDistance(e.Current, e.Target) > 0 {
			animating = true
		}
		if e.visible(&t.cfg) {
			t.render = append(t.render, e.item())
		}
	}
	clear(t.live[n:])
	t.live = t.live[:n]

	return t.render, animating
}

// Clear starts fading out every live entity. State is kept until each entity
// has faded.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range t.live {
		if e.Liveness == Active {
			e.retire()
			t.stats.Retired++
		}
	}
}

// Len returns the number of live entities.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// Entities returns a copy of the live set in creation order.
func (t *Tracker) Entities() []Entity {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entity, len(t.live))
	for i, e := range t.live {
		out[i] = *e
	}
	return out
}

// Stats returns the current counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stats
	s.Live = len(t.live)
	for _, e := range t.live {
		if e.Liveness == Active {
			s.Active++
		} else {
			s.Retiring++
		}
	}
	return s
}

func (t *Tracker) create(id int64, rect mapper.Rect, now time.Time, synthetic bool) *Entity {
	if _, dup := t.byID[id]; dup {
		panic(fmt.Sprintf("tracker: entity %d already live", id))
	}
	var e *Entity
	if n := len(t.free); n > 0 {
		e = t.free[n-1]
		t.free[n-1] = nil
		t.free = t.free[:n-1]
	} else {
		e = new(Entity)
	}
	e.reset(id, rect, now, synthetic)
	t.live = append(t.live, e)
	t.byID[id] = e
	t.stats.Created++

	if t.logger.Enabled(context.Background(), slog.LevelDebug) {
		t.logger.Debug("entity created", "id", id, "synthetic", synthetic)
	}
	return e
}

func (t *Tracker) remove(e *Entity) {
	delete(t.byID, e.ID)
	t.stats.Removed++
	*e = Entity{}
	t.free = append(t.free, e)
}

// allocate hands out the next synthesized id. The counter runs from -1 down
// to math.MinInt64 and then wraps back to -1, skipping ids that are still live.
func (t *Tracker) allocate() int64 {
	start := t.nextSynthetic
	for {
		id := t.nextSynthetic
		if id == math.MinInt64 {
			t.nextSynthetic = -1
		} else {
			t.nextSynthetic = id - 1
		}
		if _, taken := t.byID[id]; !taken {
			return id
		}
		if t.nextSynthetic == start {
			panic(ErrIDSpaceExhausted)
		}
	}
}
