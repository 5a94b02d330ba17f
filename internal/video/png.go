package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/ivlev/liveoverlay/internal/config"
)

var errClosed = errors.New("writer closed")

// PNGEncoder writes frame_000000.png, frame_000001.png, ... into the
// directory at path.
type PNGEncoder struct {
	Compression png.CompressionLevel
}

func (e *PNGEncoder) Open(ctx context.Context, path string, params config.FrameParams) (FrameWriter, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}
	return &pngWriter{
		ctx: ctx,
		dir: path,
		enc: &png.Encoder{CompressionLevel: e.Compression},
	}, nil
}

type pngWriter struct {
	ctx    context.Context
	dir    string
	enc    *png.Encoder
	next   int
	closed bool
}

func (w *pngWriter) WriteFrame(img *image.RGBA) error {
	if w.closed {
		return errClosed
	}
	if err := w.ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("frame_%06d.png", w.next))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := w.enc.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	w.next++
	return f.Close()
}

func (w *pngWriter) Close() error {
	w.closed = true
	return nil
}
