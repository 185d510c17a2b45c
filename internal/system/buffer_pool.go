package system

import (
	"image"
	"sync"
)

// ImagePool recycles RGBA surfaces of a given size so per-request frame
// rendering does not allocate a full 1920x1080 buffer each time.
type ImagePool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Point]*sync.Pool)}
}

// Get returns a surface of the given size. Its contents are undefined.
func (p *ImagePool) Get(size image.Point) *image.RGBA {
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		pool, exists = p.pools[size]
		if !exists {
			pool = &sync.Pool{
				New: func() any {
					return image.NewRGBA(image.Rectangle{Max: size})
				},
			}
			p.pools[size] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.RGBA)
}

// Put hands a surface back. Surfaces of sizes never requested are dropped.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	size := img.Rect.Size()
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}
