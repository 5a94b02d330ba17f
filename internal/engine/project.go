package engine

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/liveoverlay/internal/analyzer"
	"github.com/ivlev/liveoverlay/internal/config"
	"github.com/ivlev/liveoverlay/internal/mapper"
	"github.com/ivlev/liveoverlay/internal/renderer"
	"github.com/ivlev/liveoverlay/internal/scenario"
	"github.com/ivlev/liveoverlay/internal/source"
	"github.com/ivlev/liveoverlay/internal/system"
	"github.com/ivlev/liveoverlay/internal/tracker"
	"github.com/ivlev/liveoverlay/internal/video"
)

// epoch anchors the simulated clock of offline runs.
var epoch = time.Unix(0, 0)

// Project renders a recorded detection scenario to a video. Output frames
// are produced at a fixed rate; every scenario frame whose time has been
// reached is ingested before the tick of that output frame.
type Project struct {
	Config    *config.Config
	Scenario  *scenario.Scenario
	Source    source.Source // optional background frames
	Tracker   *tracker.Tracker
	Encoder   video.Encoder
	Render    renderer.Options
	Filter    *analyzer.Filter // nil keeps every detection
	Pool      *system.ImagePool
	Logger    *slog.Logger
	SessionID string

	// MaxTail bounds how long output continues after the last scenario
	// frame while entities fade out.
	MaxTail time.Duration
}

func NewProject(cfg *config.Config, sc *scenario.Scenario, tr *tracker.Tracker, enc video.Encoder, logger *slog.Logger) *Project {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Project{
		Config:    cfg,
		Scenario:  sc,
		Tracker:   tr,
		Encoder:   enc,
		Pool:      system.NewImagePool(),
		Logger:    logger,
		SessionID: uuid.NewString(),
		MaxTail:   5 * time.Second,
	}
	p.Render = RenderOptions(cfg, p.SessionID)
	return p
}

// RenderOptions derives compositor options from the run configuration.
func RenderOptions(cfg *config.Config, sessionID string) renderer.Options {
	opts := renderer.Options{
		Width:   cfg.Width,
		Height:  cfg.Height,
		ShowHUD: cfg.ShowHUD,
	}
	if cfg.Debug {
		opts.Effect = "debug"
	}
	if cfg.Stamp {
		opts.Stamp = "liveoverlay:" + sessionID
	}
	return opts
}

// frameJob carries one output frame through the draw pool.
type frameJob struct {
	index   int
	items   []tracker.RenderItem
	objects int
	fps     float64
	bg      image.Image
	bgInfo  tracker.FrameInfo
	bgTf    mapper.Transform
	img     *image.RGBA
}

func (p *Project) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{SessionID: p.SessionID, Build: p.Config.BuildVersion, Input: p.Config.ScenarioPath}

	if p.Config.FPS <= 0 {
		return report, fmt.Errorf("invalid fps: %d", p.Config.FPS)
	}
	if err := p.Tracker.SetDisplaySize(p.Config.Width, p.Config.Height); err != nil {
		return report, err
	}
	interval := config.FrameInterval(p.Config.FPS)
	workers := max(p.Config.Workers, 1)

	params := config.FrameParams{Width: p.Config.Width, Height: p.Config.Height, FPS: p.Config.FPS}
	w, err := p.Encoder.Open(ctx, p.Config.OutputVideo, params)
	if err != nil {
		return report, fmt.Errorf("open output: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	frames := make(chan DetectionFrame, 8)
	jobs := make(chan *frameJob, workers*2)
	results := make(chan *frameJob, workers*2)

	g.Go(func() error {
		defer close(frames)
		return p.produce(gctx, frames)
	})
	g.Go(func() error {
		defer close(jobs)
		n, err := p.animate(gctx, interval, frames, jobs)
		report.DetectionFrames = n
		return err
	})

	drawers, dctx := errgroup.WithContext(gctx)
	for range workers {
		drawers.Go(func() error { return p.draw(dctx, jobs, results) })
	}
	g.Go(func() error {
		defer close(results)
		return drawers.Wait()
	})
	g.Go(func() error {
		n, err := p.write(gctx, w, results)
		report.Frames = n
		return err
	})

	runErr := g.Wait()
	if err := w.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close output: %w", err)
	}

	report.VideoDuration = time.Duration(report.Frames) * interval
	report.Elapsed = time.Since(start)
	report.Tracker = p.Tracker.Stats()
	if stats, err := system.Snapshot(ctx); err == nil {
		report.System = stats
	} else {
		p.Logger.Debug("system stats unavailable", "error", err)
	}
	return report, runErr
}

// produce converts scenario frames into tracker input and decodes a
// background whenever the referenced source frame changes.
func (p *Project) produce(ctx context.Context, out chan<- DetectionFrame) error {
	lastBg := -1
	for i := range p.Scenario.Frames {
		f := &p.Scenario.Frames[i]
		df := DetectionFrame{
			Detections: f.Detections(),
			Info:       f.Info(p.Scenario.Image),
			At:         f.At(),
			Background: -1,
		}
		if p.Filter != nil {
			df.Detections = p.Filter.Apply(df.Detections, df.Info.Width)
		}

		if p.Source != nil {
			idx := lastBg
			if f.Background != nil {
				idx = *f.Background
			} else if idx < 0 {
				idx = 0
			}
			if idx != lastBg {
				if idx < 0 || idx >= p.Source.FrameCount() {
					return fmt.Errorf("frame %d: background %d out of range", i, idx)
				}
				img, err := p.Source.RenderFrame(idx)
				if err != nil {
					return fmt.Errorf("frame %d: render background %d: %w", i, idx, err)
				}
				df.Image = img
				lastBg = idx
			}
			df.Background = idx
		}

		select {
		case out <- df:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// animate is the only stage touching the tracker. It returns the number of
// detection frames ingested.
func (p *Project) animate(ctx context.Context, interval time.Duration, in <-chan DetectionFrame, out chan<- *frameJob) (int, error) {
	var (
		pending   *DetectionFrame
		exhausted bool
		ingested  int
		lastAt    time.Duration
		objects   int
		meter     fpsMeter
		bg        image.Image
		bgInfo    tracker.FrameInfo
		bgTf      mapper.Transform
	)

	for i := 0; ; i++ {
		at := time.Duration(i) * interval

		for {
			if pending == nil && !exhausted {
				select {
				case df, ok := <-in:
					if ok {
						pending = &df
					} else {
						exhausted = true
					}
				case <-ctx.Done():
					return ingested, ctx.Err()
				}
			}
			if pending == nil || pending.At > at {
				break
			}

			if _, err := p.Tracker.Ingest(pending.Detections, pending.Info, epoch.Add(pending.At)); err != nil {
				return ingested, fmt.Errorf("detection frame at %s: %w", pending.At, err)
			}
			ingested++
			meter.mark(pending.At)
			objects = len(pending.Detections)
			lastAt = pending.At

			if pending.Image != nil {
				b := pending.Image.Bounds()
				bg = pending.Image
				bgInfo = tracker.FrameInfo{Width: b.Dx(), Height: b.Dy(), Rotation: pending.Info.Rotation}
				if tf, ok := mapper.Fit(bgInfo.Width, bgInfo.Height, bgInfo.Rotation, p.Config.Width, p.Config.Height); ok {
					bgTf = tf
				}
			}
			pending = nil
		}

		p.Tracker.Sweep(epoch.Add(at))
		items, animating := p.Tracker.Tick()

		job := &frameJob{
			index:   i,
			items:   slices.Clone(items),
			objects: objects,
			fps:     meter.rate(at),
			bg:      bg,
			bgInfo:  bgInfo,
			bgTf:    bgTf,
		}
		select {
		case out <- job:
		case <-ctx.Done():
			return ingested, ctx.Err()
		}

		if exhausted && pending == nil {
			if !animating && p.Tracker.Len() == 0 {
				return ingested, nil
			}
			if at-lastAt >= p.MaxTail {
				p.Logger.Warn("[!] Анимация не завершилась, вывод остановлен", "live", p.Tracker.Len())
				return ingested, nil
			}
		}
	}
}

func (p *Project) draw(ctx context.Context, in <-chan *frameJob, out chan<- *frameJob) error {
	comp, err := renderer.New(p.Render)
	if err != nil {
		return err
	}
	for {
		var job *frameJob
		select {
		case j, ok := <-in:
			if !ok {
				return nil
			}
			job = j
		case <-ctx.Done():
			return ctx.Err()
		}

		job.img = p.Pool.Get(p.Config.Width, p.Config.Height)
		comp.Compose(job.img, &renderer.Frame{
			Background: job.bg,
			Source:     job.bgInfo,
			Transform:  job.bgTf,
			Items:      job.items,
			Objects:    job.objects,
			FPS:        job.fps,
		})

		select {
		case out <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// write emits frames in index order and returns the number written.
func (p *Project) write(ctx context.Context, w video.FrameWriter, in <-chan *frameJob) (int, error) {
	pending := make(map[int]*frameJob)
	next := 0
	for {
		select {
		case job, ok := <-in:
			if !ok {
				if err := ctx.Err(); err != nil {
					return next, err
				}
				if len(pending) > 0 {
					return next, fmt.Errorf("кадр %d не был отрисован", next)
				}
				return next, nil
			}
			pending[job.index] = job
		case <-ctx.Done():
			return next, ctx.Err()
		}

		for {
			job, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			err := w.WriteFrame(job.img)
			p.Pool.Put(job.img)
			if err != nil {
				return next, fmt.Errorf("write frame %d: %w", next, err)
			}
			next++
			if next%p.Config.FPS == 0 {
				p.Logger.Debug("[>] Ready", "frames", next)
			}
		}
	}
}
