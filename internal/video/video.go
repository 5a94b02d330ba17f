package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/ivlev/liveoverlay/internal/config"
)

// FrameWriter accepts output frames in order.
type FrameWriter interface {
	WriteFrame(img *image.RGBA) error
	Close() error
}

// Encoder opens a frame sink at path.
type Encoder interface {
	Open(ctx context.Context, path string, params config.FrameParams) (FrameWriter, error)
}

// New picks an encoder for the output format: "video" (or empty) streams to
// ffmpeg, "png" writes numbered images.
func New(format, codec string, quality int, live bool, logger *slog.Logger) (Encoder, error) {
	switch format {
	case "", "video":
		return &FFmpegEncoder{Codec: codec, Quality: quality, Live: live, Logger: logger}, nil
	case "png":
		return &PNGEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

type FFmpegEncoder struct {
	Codec   string
	Quality int
	Live    bool // frames arrive in real time; timestamps come from the wall clock
	Logger  *slog.Logger
}

func (e *FFmpegEncoder) Open(ctx context.Context, path string, params config.FrameParams) (FrameWriter, error) {
	args := e.buildFFmpegArgs(path, params)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stderr := &tailBuffer{limit: 4096}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	if e.Logger != nil {
		e.Logger.Debug("ffmpeg started", "args", strings.Join(args, " "))
	}

	return &ffmpegWriter{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		width:  params.Width,
		height: params.Height,
	}, nil
}

func (e *FFmpegEncoder) buildFFmpegArgs(videoPath string, params config.FrameParams) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"-framerate", fmt.Sprintf("%d", params.FPS),
	}
	if e.Live {
		args = append(args, "-use_wallclock_as_timestamps", "1")
	}
	args = append(args,
		"-i", "-",
		"-pix_fmt", "yuv420p",
	)

	codec := e.Codec
	if codec == "" {
		codec = "libx264"
	}
	args = append(args, "-c:v", codec)

	// Качество в зависимости от энкодера
	switch codec {
	case "h264_videotoolbox":
		args = append(args, "-b:v", fmt.Sprintf("%dk", e.Quality*100))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", e.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", e.Quality), "-preset", "medium")
	}
	if e.Live {
		args = append(args, "-fps_mode", "vfr")
	}

	return append(args, videoPath)
}

type ffmpegWriter struct {
	cmd           *exec.Cmd
	stdin         io.WriteCloser
	stderr        *tailBuffer
	width, height int
	scratch       *image.RGBA
}

func (w *ffmpegWriter) WriteFrame(img *image.RGBA) error {
	if err := writeRawRGBA(w.stdin, img, w.width, w.height, &w.scratch); err != nil {
		return fmt.Errorf("write raw error: %w%s", err, w.stderr.suffix())
	}
	return nil
}

func (w *ffmpegWriter) Close() error {
	closeErr := w.stdin.Close()
	if err := w.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w%s", err, w.stderr.suffix())
	}
	return closeErr
}

// writeRawRGBA writes exactly width*height*4 bytes. Frames with padding or a
// different size are copied through scratch first.
func writeRawRGBA(w io.Writer, img *image.RGBA, width, height int, scratch **image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height || img.Stride != width*4 || b.Min != (image.Point{}) {
		if *scratch == nil {
			*scratch = image.NewRGBA(image.Rect(0, 0, width, height))
		}
		draw.Draw(*scratch, (*scratch).Bounds(), img, b.Min, draw.Src)
		img = *scratch
	}
	_, err := w.Write(img.Pix[:width*height*4])
	return err
}

// tailBuffer keeps the last limit bytes of ffmpeg's stderr.
type tailBuffer struct {
	limit int
	mu    sync.Mutex
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) suffix() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := strings.TrimSpace(t.buf.String())
	if s == "" {
		return ""
	}
	return ", output: " + s
}
