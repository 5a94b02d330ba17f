package source

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// ErrNoFrames is returned when a source holds no pages or images.
var ErrNoFrames = errors.New("source has no frames")

// Source supplies background frames in sensor orientation.
type Source interface {
	FrameCount() int
	FrameDimensions(index int) (width, height int, err error)
	RenderFrame(index int) (image.Image, error)
	Close() error
}

// Open picks the source implementation from the path: PDF files are rendered
// page by page at dpi, anything else is treated as an image file or directory.
func Open(path string, dpi int) (Source, error) {
	var (
		src Source
		err error
	)
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		src, err = NewFitzPDFSource(path, dpi)
	} else {
		src, err = NewImageSource(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", path, err)
	}
	if src.FrameCount() == 0 {
		src.Close()
		return nil, fmt.Errorf("open source %s: %w", path, ErrNoFrames)
	}
	return src, nil
}

type FitzPDFSource struct {
	doc  *fitz.Document
	path string
	dpi  int
}

func NewFitzPDFSource(path string, dpi int) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	if dpi <= 0 {
		dpi = 72
	}
	return &FitzPDFSource{doc: doc, path: path, dpi: dpi}, nil
}

func (f *FitzPDFSource) FrameCount() int {
	return f.doc.NumPage()
}

// FrameDimensions returns the page size in pixels at the source DPI.
func (f *FitzPDFSource) FrameDimensions(index int) (int, int, error) {
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	scale := float64(f.dpi) / 72
	return int(float64(rect.Dx()) * scale), int(float64(rect.Dy()) * scale), nil
}

// RenderFrame opens a private document per call, so frames can be rendered
// from several goroutines.
func (f *FitzPDFSource) RenderFrame(index int) (image.Image, error) {
	workerDoc, err := fitz.New(f.path)
	if err != nil {
		return nil, err
	}
	defer workerDoc.Close()
	return workerDoc.ImageDPI(index, float64(f.dpi))
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}
