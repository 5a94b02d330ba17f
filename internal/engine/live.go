package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/liveoverlay/internal/analyzer"
	"github.com/ivlev/liveoverlay/internal/config"
	"github.com/ivlev/liveoverlay/internal/renderer"
	"github.com/ivlev/liveoverlay/internal/scenario"
	"github.com/ivlev/liveoverlay/internal/system"
	"github.com/ivlev/liveoverlay/internal/tracker"
	"github.com/ivlev/liveoverlay/internal/video"
)

const maxLineSize = 1 << 20

// Live renders detection frames read as newline-delimited JSON as they
// arrive. Only the newest unread frame is kept when the tracker falls behind.
type Live struct {
	Config    *config.Config
	Image     scenario.ImageInfo // geometry for frames that do not carry one
	Input     io.Reader
	Tracker   *tracker.Tracker
	Encoder   video.Encoder
	Render    renderer.Options
	Filter    *analyzer.Filter
	Pool      *system.ImagePool
	Logger    *slog.Logger
	SessionID string
	Now       func() time.Time
}

func NewLive(cfg *config.Config, input io.Reader, tr *tracker.Tracker, enc video.Encoder, logger *slog.Logger) *Live {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &Live{
		Config:    cfg,
		Input:     input,
		Tracker:   tr,
		Encoder:   enc,
		Pool:      system.NewImagePool(),
		Logger:    logger,
		SessionID: uuid.NewString(),
		Now:       time.Now,
	}
	l.Render = RenderOptions(cfg, l.SessionID)
	return l
}

// Run returns when the input is exhausted and every entity has faded out,
// or when ctx is done.
func (l *Live) Run(ctx context.Context) (Report, error) {
	start := l.Now()
	report := Report{SessionID: l.SessionID, Build: l.Config.BuildVersion, Input: "stdin"}

	if l.Config.FPS <= 0 {
		return report, fmt.Errorf("invalid fps: %d", l.Config.FPS)
	}
	if err := l.Tracker.SetDisplaySize(l.Config.Width, l.Config.Height); err != nil {
		return report, err
	}
	comp, err := renderer.New(l.Render)
	if err != nil {
		return report, err
	}
	params := config.FrameParams{Width: l.Config.Width, Height: l.Config.Height, FPS: l.Config.FPS}
	w, err := l.Encoder.Open(ctx, l.Config.OutputVideo, params)
	if err != nil {
		return report, fmt.Errorf("open output: %w", err)
	}

	mailbox := NewLatestFrame()
	var hud readout

	anim := NewAnimator(l.Tracker, config.FrameInterval(l.Config.FPS), func(items []tracker.RenderItem) error {
		img := l.Pool.Get(l.Config.Width, l.Config.Height)
		defer l.Pool.Put(img)
		objects, fps := hud.get(l.Now().Sub(start))
		comp.Compose(img, &renderer.Frame{Items: items, Objects: objects, FPS: fps})
		return w.WriteFrame(img)
	})
	anim.Now = l.Now
	anim.SweepEvery = l.Tracker.Config().GracePeriod

	g, gctx := errgroup.WithContext(ctx)
	animCtx, stopAnim := context.WithCancel(gctx)
	defer stopAnim()

	g.Go(func() error {
		defer mailbox.Close()
		return l.read(gctx, mailbox)
	})
	g.Go(func() error {
		defer stopAnim()
		for {
			df, err := mailbox.Take(gctx)
			if errors.Is(err, ErrMailboxClosed) {
				break
			}
			if err != nil {
				return err
			}
			if l.Filter != nil {
				df.Detections = l.Filter.Apply(df.Detections, df.Info.Width)
			}
			now := l.Now()
			changed, err := l.Tracker.Ingest(df.Detections, df.Info, now)
			if err != nil {
				l.Logger.Warn("[!] Кадр детекций отклонён", "error", err)
				continue
			}
			report.DetectionFrames++
			hud.set(len(df.Detections), now.Sub(start))
			if changed {
				anim.Invalidate()
			}
		}
		return l.drain(gctx, anim)
	})
	g.Go(func() error {
		err := anim.Run(animCtx)
		if errors.Is(err, context.Canceled) && gctx.Err() == nil {
			return nil
		}
		return err
	})

	runErr := g.Wait()
	if err := w.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close output: %w", err)
	}

	report.Frames = anim.Frames()
	report.Dropped = mailbox.Dropped()
	report.Elapsed = l.Now().Sub(start)
	report.VideoDuration = report.Elapsed
	report.Tracker = l.Tracker.Stats()
	if stats, err := system.Snapshot(ctx); err == nil {
		report.System = stats
	}
	return report, runErr
}

// read decodes one detection frame per line. Malformed lines are logged and
// skipped.
func (l *Live) read(ctx context.Context, mailbox *LatestFrame) error {
	sc := bufio.NewScanner(l.Input)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var f scenario.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			l.Logger.Warn("[!] Некорректная строка детекций", "line", line, "error", err)
			continue
		}
		if mailbox.Put(DetectionFrame{Detections: f.Detections(), Info: f.Info(l.Image), Background: -1}) {
			l.Logger.Debug("detection frame superseded", "line", line)
		}
	}
	return sc.Err()
}

// drain lets the remaining entities retire and fade after the input ends.
func (l *Live) drain(ctx context.Context, anim *Animator) error {
	step := max(l.Tracker.Config().GracePeriod, config.FrameInterval(l.Config.FPS))
	t := time.NewTicker(step)
	defer t.Stop()
	for l.Tracker.Len() > 0 {
		if l.Tracker.Sweep(l.Now()) {
			anim.Invalidate()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// readout is the HUD state shared by the ingest and draw goroutines.
type readout struct {
	mu      sync.Mutex
	objects int
	meter   fpsMeter
}

func (r *readout) set(objects int, at time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects = objects
	r.meter.mark(at)
}

func (r *readout) get(at time.Duration) (int, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.objects, r.meter.rate(at)
}
