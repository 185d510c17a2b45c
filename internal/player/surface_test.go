package player

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/elasticcanvas/internal/system"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestRasterSurfaceCoverFillsSurface(t *testing.T) {
	s := NewRasterSurface(16, 9, nil)

	var hooked []int
	s.OnDraw(func(index int) { hooked = append(hooked, index) })

	s.Clear()
	s.DrawCover(7, solid(4, 4, color.RGBA{R: 255, A: 255}))

	var raw bytes.Buffer
	require.NoError(t, s.WriteRaw(&raw))
	pix := raw.Bytes()
	require.Len(t, pix, 16*9*4)

	// a square source covering a wide surface leaves no black margin
	for _, off := range []int{0, (16*9 - 1) * 4, 15 * 4, 8 * 16 * 4} {
		assert.Equal(t, []byte{255, 0, 0, 255}, pix[off:off+4], "offset %d", off)
	}

	assert.Equal(t, []int{7}, hooked)
	assert.Equal(t, 1, s.Draws())
	assert.Equal(t, 7, s.Last())
}

func TestRasterSurfaceClear(t *testing.T) {
	s := NewRasterSurface(4, 4, nil)
	s.DrawCover(0, solid(4, 4, color.RGBA{G: 255, A: 255}))
	s.Clear()

	var raw bytes.Buffer
	require.NoError(t, s.WriteRaw(&raw))
	assert.Equal(t, []byte{0, 0, 0, 255}, raw.Bytes()[:4])
}

func TestRasterSurfaceJPEG(t *testing.T) {
	pool := system.NewImagePool()
	s := NewRasterSurface(32, 18, pool)
	s.UseHighQuality()
	s.DrawCover(0, solid(8, 8, color.RGBA{B: 255, A: 255}))

	var buf bytes.Buffer
	require.NoError(t, s.WriteJPEG(&buf, 80))

	img, err := jpeg.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(32, 18), img.Bounds().Size())

	s.Release()
	assert.True(t, s.Bounds().Empty())
}
