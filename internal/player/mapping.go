package player

import (
	"image"
	"math"
)

// Progress maps a scroll position onto the pinned range. The result is
// recomputed from the absolute position every time, never accumulated.
func Progress(scrollY, sectionTop, scrollDistance float64) float64 {
	if scrollDistance <= 0 {
		if scrollY >= sectionTop {
			return 1
		}
		return 0
	}
	return clamp01((scrollY - sectionTop) / scrollDistance)
}

// Cursor picks the frame index for a progress value in a sequence of n frames.
func Cursor(progress float64, n int) int {
	if n <= 1 {
		return 0
	}
	c := int(math.Round(clamp01(progress) * float64(n-1)))
	if c > n-1 {
		c = n - 1
	}
	return c
}

// VideoTime is the seek position for the single-video variant.
func VideoTime(progress, duration float64) float64 {
	return clamp01(progress) * duration
}

// OverlayOpacity fades the hero copy out, reaching 0 at fadeEnd.
func OverlayOpacity(progress, fadeEnd float64) float64 {
	if fadeEnd <= 0 {
		return 0
	}
	return clamp01(1 - clamp01(progress)/fadeEnd)
}

// OverlayOffset lifts the hero copy by up to shift pixels over the fade.
func OverlayOffset(progress, fadeEnd, shift float64) float64 {
	if fadeEnd <= 0 {
		return shift
	}
	return shift * clamp01(clamp01(progress)/fadeEnd)
}

// Fit is a placement of a source image on a surface.
type Fit struct {
	Scale float64
	X, Y  float64 // top-left corner on the surface, negative when cropped
	W, H  float64 // scaled size
}

// Rect rounds the placement to surface pixels.
func (f Fit) Rect() image.Rectangle {
	x0 := int(math.Floor(f.X))
	y0 := int(math.Floor(f.Y))
	x1 := int(math.Ceil(f.X + f.W))
	y1 := int(math.Ceil(f.Y + f.H))
	return image.Rect(x0, y0, x1, y1)
}

// CoverFit scales a srcW x srcH image to fill dstW x dstH completely,
// keeping its aspect ratio and cropping the overflow evenly on both sides.
func CoverFit(srcW, srcH, dstW, dstH int) Fit {
	if srcW <= 0 || srcH <= 0 {
		return Fit{}
	}
	scale := math.Max(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	w := float64(srcW) * scale
	h := float64(srcH) * scale
	return Fit{
		Scale: scale,
		X:     (float64(dstW) - w) / 2,
		Y:     (float64(dstH) - h) / 2,
		W:     w,
		H:     h,
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
