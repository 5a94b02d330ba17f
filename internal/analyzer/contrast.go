package analyzer

import (
	"cmp"
	"image"
	"image/color"
	"slices"

	"github.com/ivlev/liveoverlay/internal/tracker"
)

// ContrastDetector implements edge-based region detection using Sobel operator.
// It produces unclassified detections without tracking identity. A detector
// keeps scratch buffers between calls and must not be shared between
// goroutines.
type ContrastDetector struct {
	MinBlockArea  int     // Minimum area in pixels²
	EdgeThreshold float64 // Gradient magnitude threshold
	DilateKernel  int
	DilateRounds  int
	MaxDetections int // 0 keeps every region

	gray, edges, tmp []uint8
	visited          []bool
	stack            []image.Point
}

// NewContrastDetector creates a new contrast-based detector with default settings
func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:  500,  // ~22x22 pixels minimum
		EdgeThreshold: 30.0, // Moderate sensitivity
		DilateKernel:  5,
		DilateRounds:  2,
		MaxDetections: 32,
	}
}

// Detect finds regions of interest using edge detection and morphology.
// Regions are returned largest first; boxes are relative to the image origin.
func (d *ContrastDetector) Detect(img image.Image) ([]tracker.Detection, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return nil, nil
	}
	n := w * h
	d.gray = grow(d.gray, n)
	d.edges = grow(d.edges, n)
	d.tmp = grow(d.tmp, n)

	toGrayscale(img, d.gray)
	sobel(d.gray, d.edges, w, h, d.EdgeThreshold)
	edges := d.dilate(w, h)
	rects := d.findContours(edges, w, h)

	rects = slices.DeleteFunc(rects, func(r image.Rectangle) bool {
		return r.Dx()*r.Dy() < d.MinBlockArea
	})
	slices.SortStableFunc(rects, func(a, b image.Rectangle) int {
		return cmp.Compare(b.Dx()*b.Dy(), a.Dx()*a.Dy())
	})
	if d.MaxDetections > 0 && len(rects) > d.MaxDetections {
		rects = rects[:d.MaxDetections]
	}

	dets := make([]tracker.Detection, len(rects))
	for i, r := range rects {
		dets[i] = tracker.Detection{Box: r}
	}
	return dets, nil
}

func grow[T any](buf []T, n int) []T {
	if cap(buf) < n {
		return make([]T, n)
	}
	return buf[:n]
}

// toGrayscale fills dst with the luma of img, row-major from the image origin.
func toGrayscale(img image.Image, dst []uint8) {
	b := img.Bounds()
	w := b.Dx()
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst[y*w:(y+1)*w], src.Pix[off:off+w])
		}
	case *image.RGBA:
		for y := 0; y < b.Dy(); y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			row := src.Pix[off : off+4*w]
			for x := 0; x < w; x++ {
				p := row[4*x : 4*x+4 : 4*x+4]
				// same weights as color.GrayModel, on 8-bit values
				dst[y*w+x] = uint8((19595*uint32(p[0]) + 38470*uint32(p[1]) + 7471*uint32(p[2]) + 1<<15) >> 16)
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < w; x++ {
				dst[y*w+x] = color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray).Y
			}
		}
	}
}

// sobel writes 255 where the gradient magnitude exceeds threshold, 0 elsewhere.
func sobel(gray, edges []uint8, w, h int, threshold float64) {
	clear(edges)
	t2 := threshold * threshold
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			at := func(dx, dy int) float64 { return float64(gray[(y+dy)*w+x+dx]) }

			sumX := -at(-1, -1) + at(1, -1) - 2*at(-1, 0) + 2*at(1, 0) - at(-1, 1) + at(1, 1)
			sumY := -at(-1, -1) - 2*at(0, -1) - at(1, -1) + at(-1, 1) + 2*at(0, 1) + at(1, 1)

			if sumX*sumX+sumY*sumY > t2 {
				edges[y*w+x] = 255
			}
		}
	}
}

// dilate performs morphological dilation to connect nearby edges and returns
// the buffer holding the result.
func (d *ContrastDetector) dilate(w, h int) []uint8 {
	half := max(d.DilateKernel/2, 0)
	src, dst := d.edges, d.tmp
	for iter := 0; iter < d.DilateRounds; iter++ {
		clear(dst)
		for y := half; y < h-half; y++ {
			for x := half; x < w-half; x++ {
				var maxVal uint8
				for ky := -half; ky <= half && maxVal == 0; ky++ {
					row := (y + ky) * w
					for kx := -half; kx <= half; kx++ {
						if v := src[row+x+kx]; v > maxVal {
							maxVal = v
							break
						}
					}
				}
				dst[y*w+x] = maxVal
			}
		}
		src, dst = dst, src
	}
	return src
}

// findContours finds bounding rectangles of connected white regions
func (d *ContrastDetector) findContours(img []uint8, w, h int) []image.Rectangle {
	d.visited = grow(d.visited, w*h)
	clear(d.visited)

	var contours []image.Rectangle
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if img[i] > 128 && !d.visited[i] {
				contours = append(contours, d.floodFill(img, w, h, x, y))
			}
		}
	}
	return contours
}

// floodFill performs flood fill and returns bounding rectangle
func (d *ContrastDetector) floodFill(img []uint8, w, h, startX, startY int) image.Rectangle {
	minX, minY := startX, startY
	maxX, maxY := startX, startY

	d.stack = append(d.stack[:0], image.Point{X: startX, Y: startY})
	for len(d.stack) > 0 {
		p := d.stack[len(d.stack)-1]
		d.stack = d.stack[:len(d.stack)-1]

		x, y := p.X, p.Y
		if x < 0 || x >= w || y < 0 || y >= h {
			continue
		}
		i := y*w + x
		if d.visited[i] || img[i] <= 128 {
			continue
		}
		d.visited[i] = true

		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)

		d.stack = append(d.stack,
			image.Point{X: x + 1, Y: y},
			image.Point{X: x - 1, Y: y},
			image.Point{X: x, Y: y + 1},
			image.Point{X: x, Y: y - 1},
		)
	}

	return image.Rect(minX, minY, maxX+1, maxY+1)
}
