package system

import (
	"image"
	"sync"
)

// ImagePool reuses output frames of a given size to keep per-frame
// allocations off the garbage collector.
type ImagePool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Point]*sync.Pool)}
}

// Get returns a w x h frame anchored at the origin. Reused frames keep
// their previous contents; callers repaint the whole frame.
func (p *ImagePool) Get(w, h int) *image.RGBA {
	key := image.Point{X: w, Y: h}
	p.mu.RLock()
	pool, exists := p.pools[key]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		pool, exists = p.pools[key]
		if !exists {
			pool = &sync.Pool{
				New: func() any {
					return image.NewRGBA(image.Rect(0, 0, w, h))
				},
			}
			p.pools[key] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.RGBA)
}

// Put hands a frame back. Frames of a size never requested are dropped.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) {
		return
	}
	p.mu.RLock()
	pool, exists := p.pools[img.Rect.Max]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}
