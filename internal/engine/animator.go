package engine

import (
	"context"
	"time"

	"github.com/ivlev/liveoverlay/internal/tracker"
)

// DrawFunc receives the render list of one tick. The slice is reused by the
// tracker and must not be retained.
type DrawFunc func(items []tracker.RenderItem) error

// Animator drives the render side of a live session. A frame is drawn after
// every Invalidate and then once per interval for as long as the tracker
// reports motion; otherwise the loop sleeps.
type Animator struct {
	tracker  *tracker.Tracker
	interval time.Duration
	draw     DrawFunc
	wake     chan struct{}

	// SweepEvery retires stale entities while no detections arrive; zero
	// disables the sweep.
	SweepEvery time.Duration
	Now        func() time.Time

	frames int
}

func NewAnimator(tr *tracker.Tracker, interval time.Duration, draw DrawFunc) *Animator {
	return &Animator{
		tracker:  tr,
		interval: interval,
		draw:     draw,
		wake:     make(chan struct{}, 1),
		Now:      time.Now,
	}
}

// Invalidate schedules a frame. Calls made while a frame is pending coalesce.
func (a *Animator) Invalidate() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Frames is the number of frames drawn so far. Only valid after Run returns
// or from the draw callback.
func (a *Animator) Frames() int {
	return a.frames
}

// Run loops until ctx is done or drawing fails.
func (a *Animator) Run(ctx context.Context) error {
	var sweep <-chan time.Time
	if a.SweepEvery > 0 {
		t := time.NewTicker(a.SweepEvery)
		defer t.Stop()
		sweep = t.C
	}
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.wake:
		case <-sweep:
			if !a.tracker.Sweep(a.Now()) {
				continue
			}
		}

		ticker.Reset(a.interval)
		for {
			items, animating := a.tracker.Tick()
			if err := a.draw(items); err != nil {
				return err
			}
			a.frames++
			if !animating {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			case <-sweep:
				a.tracker.Sweep(a.Now())
			}
			// a wake while animating is served by the next tick
			select {
			case <-a.wake:
			default:
			}
		}
	}
}
