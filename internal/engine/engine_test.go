package engine

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/liveoverlay/internal/config"
	"github.com/ivlev/liveoverlay/internal/scenario"
	"github.com/ivlev/liveoverlay/internal/tracker"
	"github.com/ivlev/liveoverlay/internal/video"
)

// memEncoder keeps copies of every written frame.
type memEncoder struct {
	mu     sync.Mutex
	params config.FrameParams
	frames []*image.RGBA
	closed bool
}

func (e *memEncoder) Open(ctx context.Context, path string, params config.FrameParams) (video.FrameWriter, error) {
	e.params = params
	return e, nil
}

func (e *memEncoder) WriteFrame(img *image.RGBA) error {
	cp := image.NewRGBA(img.Bounds())
	copy(cp.Pix, img.Pix)
	e.mu.Lock()
	e.frames = append(e.frames, cp)
	e.mu.Unlock()
	return nil
}

func (e *memEncoder) Close() error {
	e.closed = true
	return nil
}

func blank(img *image.RGBA) bool {
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 || img.Pix[i+1] != 0 || img.Pix[i+2] != 0 {
			return false
		}
	}
	return true
}

func testConfig() *config.Config {
	return &config.Config{Width: 160, Height: 120, FPS: 10, Workers: 3, OutputVideo: "out", BuildVersion: "test"}
}

func oneObject(times ...float64) *scenario.Scenario {
	id := int64(1)
	s := &scenario.Scenario{Version: scenario.Version, Image: scenario.ImageInfo{Width: 160, Height: 120}}
	for _, at := range times {
		s.Frames = append(s.Frames, scenario.Frame{
			Time:    at,
			Objects: []scenario.Detection{{ID: &id, Box: scenario.Rectangle{X: 40, Y: 40, W: 60, H: 50}}},
		})
	}
	return s
}

func TestLatestFrameKeepsNewest(t *testing.T) {
	m := NewLatestFrame()
	assert.False(t, m.Put(DetectionFrame{At: 1}))
	assert.True(t, m.Put(DetectionFrame{At: 2}))

	f, err := m.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Duration(2), f.At)
	assert.Equal(t, 1, m.Dropped())

	m.Put(DetectionFrame{At: 3})
	m.Close()
	f, err = m.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Duration(3), f.At)
	_, err = m.Take(context.Background())
	assert.ErrorIs(t, err, ErrMailboxClosed)
}

func TestLatestFrameTakeBlocks(t *testing.T) {
	m := NewLatestFrame()
	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Put(DetectionFrame{At: 7})
	}()
	f, err := m.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Duration(7), f.At)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Take(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFPSMeter(t *testing.T) {
	var m fpsMeter
	for i := range 30 {
		m.mark(time.Duration(i) * 100 * time.Millisecond)
	}
	assert.Equal(t, 10.0, m.rate(2900*time.Millisecond))
	assert.Equal(t, 0.0, m.rate(10*time.Second))
}

func TestProjectRun(t *testing.T) {
	enc := &memEncoder{}
	tr := tracker.New(tracker.DefaultConfig(), tracker.DefaultStyle(), nil)
	p := NewProject(testConfig(), oneObject(0, 0.1), tr, enc, nil)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, enc.closed)
	assert.Equal(t, config.FrameParams{Width: 160, Height: 120, FPS: 10}, enc.params)
	require.Equal(t, report.Frames, len(enc.frames))
	assert.Greater(t, report.Frames, 5)
	assert.Less(t, report.Frames, 100)
	assert.Equal(t, 2, report.DetectionFrames)
	assert.Equal(t, uint64(1), report.Tracker.Created)
	assert.Equal(t, uint64(1), report.Tracker.Removed)
	assert.Zero(t, tr.Len())
	assert.NotEmpty(t, report.SessionID)

	assert.False(t, blank(enc.frames[3]), "entity visible while active")
	assert.True(t, blank(enc.frames[len(enc.frames)-1]), "overlay cleared at the end")
}

func TestProjectEmptyScenario(t *testing.T) {
	enc := &memEncoder{}
	tr := tracker.New(tracker.DefaultConfig(), tracker.DefaultStyle(), nil)
	p := NewProject(testConfig(), &scenario.Scenario{Version: scenario.Version}, tr, enc, nil)

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Frames)
}

// memSource serves in-memory background frames.
type memSource []image.Image

func (m memSource) FrameCount() int { return len(m) }
func (m memSource) FrameDimensions(i int) (int, int, error) {
	return m[i].Bounds().Dx(), m[i].Bounds().Dy(), nil
}
func (m memSource) RenderFrame(i int) (image.Image, error) { return m[i], nil }
func (m memSource) Close() error                           { return nil }

func TestProjectBackground(t *testing.T) {
	bg := image.NewRGBA(image.Rect(0, 0, 80, 60))
	draw.Draw(bg, bg.Bounds(), image.NewUniform(color.RGBA{G: 255, A: 255}), image.Point{}, draw.Src)

	enc := &memEncoder{}
	tr := tracker.New(tracker.DefaultConfig(), tracker.DefaultStyle(), nil)
	p := NewProject(testConfig(), oneObject(0), tr, enc, nil)
	p.Source = memSource{bg}

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, enc.frames)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, enc.frames[0].RGBAAt(5, 5))

	p = NewProject(testConfig(), oneObject(0), tracker.New(tracker.DefaultConfig(), tracker.DefaultStyle(), nil), &memEncoder{}, nil)
	bad := 3
	p.Scenario.Frames[0].Background = &bad
	p.Source = memSource{bg}
	_, err = p.Run(context.Background())
	assert.Error(t, err)
}

func TestProjectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := tracker.New(tracker.DefaultConfig(), tracker.DefaultStyle(), nil)
	p := NewProject(testConfig(), oneObject(0, 0.1, 0.2), tr, &memEncoder{}, nil)
	_, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProjectRejectsBadFPS(t *testing.T) {
	cfg := testConfig()
	cfg.FPS = 0
	p := NewProject(cfg, oneObject(0), tracker.New(tracker.DefaultConfig(), tracker.DefaultStyle(), nil), &memEncoder{}, nil)
	_, err := p.Run(context.Background())
	assert.Error(t, err)
}

func TestAnimatorIdlesWhenSettled(t *testing.T) {
	tr := tracker.New(tracker.DefaultConfig(), tracker.DefaultStyle(), nil)
	require.NoError(t, tr.SetDisplaySize(160, 120))

	var frames atomic.Int32
	var lastLen atomic.Int32
	anim := NewAnimator(tr, time.Millisecond, func(items []tracker.RenderItem) error {
		frames.Add(1)
		lastLen.Store(int32(len(items)))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- anim.Run(ctx) }()

	id := int64(4)
	changed, err := tr.Ingest([]tracker.Detection{{TrackingID: &id, Box: image.Rect(10, 10, 90, 90)}}, tracker.FrameInfo{Width: 160, Height: 120}, time.Now())
	require.NoError(t, err)
	require.True(t, changed)
	anim.Invalidate()

	// the fade-in takes a few dozen ticks, then the loop goes idle
	require.Eventually(t, func() bool { return frames.Load() >= int32(tracker.TicksToConverge(0.15, 0.01)) }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	settled := frames.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, frames.Load())
	assert.Equal(t, int32(1), lastLen.Load())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestAnimatorCompletesMoveWhileObjectHoldsStill(t *testing.T) {
	tr := tracker.New(tracker.DefaultConfig(), tracker.DefaultStyle(), nil)
	require.NoError(t, tr.SetDisplaySize(640, 480))

	var frames atomic.Int32
	anim := NewAnimator(tr, time.Millisecond, func([]tracker.RenderItem) error {
		frames.Add(1)
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go anim.Run(ctx)

	id := int64(1)
	info := tracker.FrameInfo{Width: 640, Height: 480}
	start := time.Now()
	feed := func(i int, box image.Rectangle) {
		t.Helper()
		changed, err := tr.Ingest([]tracker.Detection{{TrackingID: &id, Box: box}}, info, start.Add(time.Duration(i)*33*time.Millisecond))
		require.NoError(t, err)
		if changed {
			anim.Invalidate()
		}
	}

	feed(0, image.Rect(100, 100, 200, 200))
	require.Eventually(t, func() bool { return tr.Entities()[0].Alpha > 0.98 }, time.Second, time.Millisecond)

	moved := image.Rect(400, 100, 500, 200)
	for i := 1; i < 80; i++ {
		before := frames.Load()
		feed(i, moved)
		// each signalled frame is drawn before the next detection arrives
		require.Eventually(t, func() bool {
			e := tr.Entities()[0]
			return frames.Load() > before || e.Current == e.Target
		}, time.Second, time.Millisecond)
	}

	e := tr.Entities()[0]
	assert.Equal(t, e.Target, e.Current)
	assert.Equal(t, 400.0, e.Current.Left)
}

func TestAnimatorSweepRetires(t *testing.T) {
	cfg := tracker.DefaultConfig()
	cfg.GracePeriod = 5 * time.Millisecond
	tr := tracker.New(cfg, tracker.DefaultStyle(), nil)
	require.NoError(t, tr.SetDisplaySize(160, 120))

	id := int64(1)
	_, err := tr.Ingest([]tracker.Detection{{TrackingID: &id, Box: image.Rect(10, 10, 90, 90)}}, tracker.FrameInfo{Width: 160, Height: 120}, time.Now())
	require.NoError(t, err)

	anim := NewAnimator(tr, time.Millisecond, func([]tracker.RenderItem) error { return nil })
	anim.SweepEvery = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go anim.Run(ctx)

	require.Eventually(t, func() bool { return tr.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestLiveRun(t *testing.T) {
	input := strings.Join([]string{
		`{"time":0,"width":160,"height":120,"detections":[{"id":1,"box":{"x":10,"y":10,"w":60,"h":40},"labels":[{"text":"Food","confidence":0.9}]}]}`,
		`not json`,
		``,
		`{"time":0.1,"detections":[{"id":1,"box":{"x":12,"y":10,"w":60,"h":40}}]}`,
	}, "\n")

	cfg := testConfig()
	cfg.FPS = 100
	tcfg := tracker.DefaultConfig()
	tcfg.GracePeriod = 20 * time.Millisecond
	tr := tracker.New(tcfg, tracker.DefaultStyle(), nil)
	enc := &memEncoder{}

	l := NewLive(cfg, strings.NewReader(input), tr, enc, nil)
	l.Image = scenario.ImageInfo{Width: 160, Height: 120}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	report, err := l.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.DetectionFrames+report.Dropped)
	assert.Positive(t, report.Frames)
	assert.Equal(t, report.Frames, len(enc.frames))
	assert.Zero(t, tr.Len())
	assert.True(t, enc.closed)
}

func TestReport(t *testing.T) {
	r := Report{SessionID: "abc", Build: "v1", Input: "/tmp/s.yaml", Frames: 50, Elapsed: 2 * time.Second}
	assert.Equal(t, 25.0, r.EffectiveFPS())
	assert.Contains(t, r.String(), "Session: abc")
	assert.Contains(t, r.String(), "Effective FPS: 25.00")
	assert.Zero(t, Report{}.EffectiveFPS())

	path := filepath.Join(t.TempDir(), "benchmark.log")
	require.NoError(t, AppendBenchmark(path, r))
	require.NoError(t, AppendBenchmark(path, r))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "Session: abc"))
	assert.Contains(t, string(data), "Input: s.yaml")
}

func TestRenderOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Debug, cfg.Stamp, cfg.ShowHUD = true, true, true
	opts := RenderOptions(cfg, "id")
	assert.Equal(t, "debug", opts.Effect)
	assert.Equal(t, "liveoverlay:id", opts.Stamp)
	assert.True(t, opts.ShowHUD)
}
