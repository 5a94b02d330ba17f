package engine

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/ivlev/liveoverlay/internal/tracker"
)

// ErrMailboxClosed is returned by Take once the producer is done and the
// last frame has been taken.
var ErrMailboxClosed = errors.New("mailbox closed")

// DetectionFrame is one detector result on its way to the tracker.
type DetectionFrame struct {
	Detections []tracker.Detection
	Info       tracker.FrameInfo
	At         time.Duration // offset from the start of the run
	Background int           // source frame index, -1 for none
	Image      image.Image   // background pixels when already decoded
}

// LatestFrame is a single-slot mailbox: a Put replaces any frame not yet
// taken, so a slow consumer only ever sees the newest detections.
type LatestFrame struct {
	mu      sync.Mutex
	frame   DetectionFrame
	full    bool
	closed  bool
	dropped int
	ready   chan struct{}
}

func NewLatestFrame() *LatestFrame {
	return &LatestFrame{ready: make(chan struct{}, 1)}
}

// Put stores f and reports whether an untaken frame was replaced.
func (m *LatestFrame) Put(f DetectionFrame) bool {
	m.mu.Lock()
	replaced := m.full
	if replaced {
		m.dropped++
	}
	m.frame, m.full = f, true
	m.mu.Unlock()
	m.signal()
	return replaced
}

// Close marks the producer as done. A pending frame can still be taken.
func (m *LatestFrame) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

// Take blocks until a frame is available, the mailbox is closed and empty,
// or ctx is done.
func (m *LatestFrame) Take(ctx context.Context) (DetectionFrame, error) {
	for {
		m.mu.Lock()
		if m.full {
			f := m.frame
			m.frame, m.full = DetectionFrame{}, false
			m.mu.Unlock()
			return f, nil
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return DetectionFrame{}, ErrMailboxClosed
		}

		select {
		case <-ctx.Done():
			return DetectionFrame{}, ctx.Err()
		case <-m.ready:
		}
	}
}

// Dropped is the number of frames replaced before they were taken.
func (m *LatestFrame) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

func (m *LatestFrame) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// fpsMeter counts detection frames over a sliding one-second window.
type fpsMeter struct {
	stamps []time.Duration
}

func (m *fpsMeter) mark(at time.Duration) {
	m.prune(at)
	m.stamps = append(m.stamps, at)
}

// rate is the number of frames marked during the second before at.
func (m *fpsMeter) rate(at time.Duration) float64 {
	m.prune(at)
	return float64(len(m.stamps))
}

func (m *fpsMeter) prune(at time.Duration) {
	cut := 0
	for cut < len(m.stamps) && at-m.stamps[cut] >= time.Second {
		cut++
	}
	if cut > 0 {
		m.stamps = append(m.stamps[:0], m.stamps[cut:]...)
	}
}
