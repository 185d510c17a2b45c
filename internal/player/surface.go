package player

import (
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/ivlev/elasticcanvas/internal/system"
)

// Surface is the fixed-resolution raster the player draws into exclusively.
type Surface interface {
	Bounds() image.Rectangle
	Clear()
	// DrawCover draws frame index scaled with CoverFit.
	DrawCover(index int, img image.Image)
}

// RasterSurface is an in-memory RGBA Surface.
type RasterSurface struct {
	mu     sync.Mutex
	img    *image.RGBA
	pool   *system.ImagePool
	scaler xdraw.Scaler
	onDraw func(index int)
	draws  int
	last   int
}

// NewRasterSurface allocates a w x h surface, borrowing from pool when given.
func NewRasterSurface(w, h int, pool *system.ImagePool) *RasterSurface {
	var img *image.RGBA
	if pool != nil {
		img = pool.Get(image.Pt(w, h))
	} else {
		img = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	return &RasterSurface{
		img:    img,
		pool:   pool,
		scaler: xdraw.ApproxBiLinear,
		last:   -1,
	}
}

// UseHighQuality switches to Catmull-Rom scaling for offline rendering.
func (s *RasterSurface) UseHighQuality() {
	s.mu.Lock()
	s.scaler = xdraw.CatmullRom
	s.mu.Unlock()
}

// OnDraw registers a hook called after every DrawCover.
func (s *RasterSurface) OnDraw(fn func(index int)) {
	s.mu.Lock()
	s.onDraw = fn
	s.mu.Unlock()
}

func (s *RasterSurface) Bounds() image.Rectangle {
	return s.img.Rect
}

func (s *RasterSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	xdraw.Draw(s.img, s.img.Rect, image.NewUniform(color.Black), image.Point{}, xdraw.Src)
}

func (s *RasterSurface) DrawCover(index int, img image.Image) {
	s.mu.Lock()
	src := img.Bounds()
	fit := CoverFit(src.Dx(), src.Dy(), s.img.Rect.Dx(), s.img.Rect.Dy())
	s.scaler.Scale(s.img, fit.Rect(), img, src, xdraw.Over, nil)
	s.draws++
	s.last = index
	hook := s.onDraw
	s.mu.Unlock()

	if hook != nil {
		hook(index)
	}
}

// Draws returns how many frames were drawn so far.
func (s *RasterSurface) Draws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draws
}

// Last returns the index of the last drawn frame, -1 before any draw.
func (s *RasterSurface) Last() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// WriteJPEG encodes the current contents.
func (s *RasterSurface) WriteJPEG(w io.Writer, quality int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return jpeg.Encode(w, s.img, &jpeg.Options{Quality: quality})
}

// Image exposes the backing buffer. It is only valid until the next draw.
func (s *RasterSurface) Image() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img
}

// WriteRaw writes the contents as packed RGBA rows.
func (s *RasterSurface) WriteRaw(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := w.Write(s.img.Pix)
	return err
}

// Release hands the buffer back to the pool. The surface is unusable afterwards.
func (s *RasterSurface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool != nil && s.img != nil {
		s.pool.Put(s.img)
	}
	s.img = &image.RGBA{}
}
