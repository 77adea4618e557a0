package renderer

import (
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// canvases keeps one pool per page size; a job renders every page at the
// same size, so it allocates about one canvas per render worker.
var canvases canvasPool

type canvasPool struct {
	mu    sync.Mutex
	sizes map[image.Point]*sync.Pool
}

func (p *canvasPool) pool(size image.Point) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sizes == nil {
		p.sizes = make(map[image.Point]*sync.Pool)
	}
	pool, ok := p.sizes[size]
	if !ok {
		pool = &sync.Pool{New: func() any {
			return image.NewRGBA(image.Rectangle{Max: size})
		}}
		p.sizes[size] = pool
	}
	return pool
}

// get returns a blank sheet of paper.
func (p *canvasPool) get(size image.Point) *image.RGBA {
	canvas := p.pool(size).Get().(*image.RGBA)
	draw.Draw(canvas, canvas.Rect, image.NewUniform(paper), image.Point{}, draw.Src)
	return canvas
}

func (p *canvasPool) put(canvas *image.RGBA) {
	if canvas == nil || canvas.Rect.Min != (image.Point{}) {
		return
	}
	p.pool(canvas.Rect.Size()).Put(canvas)
}

// Release hands a canvas from Render back for reuse. The caller must not
// touch it afterwards.
func Release(canvas *image.RGBA) {
	canvases.put(canvas)
}
