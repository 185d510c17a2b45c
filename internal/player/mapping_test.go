package player

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressAndCursor(t *testing.T) {
	tests := []struct {
		scrollY    float64
		wantProg   float64
		wantCursor int
	}{
		{-300, 0, 0},
		{500, 0, 0},
		{1500, 0.5, 50},
		{2500, 1, 99},
		{9000, 1, 99},
		{510, 0.005, 0},
		{515, 0.0075, 1},
	}

	for _, tt := range tests {
		p := Progress(tt.scrollY, 500, 2000)
		assert.InDelta(t, tt.wantProg, p, 1e-9, "scrollY=%v", tt.scrollY)
		assert.Equal(t, tt.wantCursor, Cursor(p, 100), "scrollY=%v", tt.scrollY)
	}
}

func TestCursorIsDeterministic(t *testing.T) {
	for y := -1000.0; y <= 4000; y += 37 {
		first := Cursor(Progress(y, 0, 2000), 120)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, Cursor(Progress(y, 0, 2000), 120))
		}
		assert.GreaterOrEqual(t, first, 0)
		assert.LessOrEqual(t, first, 119)
	}
}

func TestCursorEdgeCases(t *testing.T) {
	assert.Equal(t, 0, Cursor(0.7, 1))
	assert.Equal(t, 0, Cursor(0.7, 0))
	assert.Equal(t, 4, Cursor(1.5, 5))
	assert.Equal(t, 0, Cursor(math.NaN(), 5))
	assert.Equal(t, 1.0, Progress(10, 0, 0))
	assert.Equal(t, 0.0, Progress(-10, 0, 0))
}

func TestOverlay(t *testing.T) {
	assert.Equal(t, 1.0, OverlayOpacity(0, 0.5))
	assert.InDelta(t, 0.5, OverlayOpacity(0.25, 0.5), 1e-9)
	assert.Equal(t, 0.0, OverlayOpacity(0.5, 0.5))
	assert.Equal(t, 0.0, OverlayOpacity(0.9, 0.5))

	assert.Equal(t, 0.0, OverlayOffset(0, 0.5, -100))
	assert.InDelta(t, -50, OverlayOffset(0.25, 0.5, -100), 1e-9)
	assert.Equal(t, -100.0, OverlayOffset(1, 0.5, -100))
}

func TestVideoTime(t *testing.T) {
	assert.InDelta(t, 6.0, VideoTime(0.5, 12), 1e-9)
	assert.Equal(t, 12.0, VideoTime(3, 12))
	assert.Equal(t, 0.0, VideoTime(-1, 12))
}

func TestCoverFit(t *testing.T) {
	tests := []struct {
		name       string
		srcW, srcH int
		dstW, dstH int
		wantScale  float64
	}{
		{"same aspect", 960, 540, 1920, 1080, 2},
		{"wide source", 2000, 500, 1920, 1080, 2.16},
		{"tall source", 1000, 2000, 1920, 1080, 1.92},
		{"larger than surface", 3840, 2400, 1920, 1080, 0.5},
		{"portrait surface", 1920, 1080, 390, 844, 844.0 / 1080},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fit := CoverFit(tt.srcW, tt.srcH, tt.dstW, tt.dstH)

			want := math.Max(float64(tt.dstW)/float64(tt.srcW), float64(tt.dstH)/float64(tt.srcH))
			assert.InDelta(t, want, fit.Scale, 1e-9)
			assert.InDelta(t, tt.wantScale, fit.Scale, 1e-9)

			// no unfilled margin on either axis
			assert.LessOrEqual(t, fit.X, 1e-9)
			assert.LessOrEqual(t, fit.Y, 1e-9)
			assert.GreaterOrEqual(t, fit.X+fit.W, float64(tt.dstW)-1e-9)
			assert.GreaterOrEqual(t, fit.Y+fit.H, float64(tt.dstH)-1e-9)

			// centered: the crop is symmetric
			assert.InDelta(t, (fit.X+fit.W)-float64(tt.dstW), -fit.X, 1e-9)
			assert.InDelta(t, (fit.Y+fit.H)-float64(tt.dstH), -fit.Y, 1e-9)
		})
	}
}

func TestCoverFitRect(t *testing.T) {
	fit := CoverFit(2000, 500, 1920, 1080)
	assert.Equal(t, image.Rect(-1200, 0, 3120, 1080), fit.Rect())
	assert.Equal(t, Fit{}, CoverFit(0, 10, 100, 100))
}
