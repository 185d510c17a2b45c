package source

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/elasticcanvas/internal/config"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestFrameURL(t *testing.T) {
	tests := []struct {
		template string
		index    int
		want     string
	}{
		{"/frames/%03d.png", 0, "/frames/001.png"},
		{"/frames/%03d.png", 99, "/frames/100.png"},
		{"/seed/frame%d/1920/1080", 4, "/seed/frame5/1920/1080"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FrameURL(tt.template, tt.index))
		})
	}
}

func TestFrameDecoded(t *testing.T) {
	assert.False(t, Frame{Index: 0}.Decoded())
	assert.False(t, Frame{Image: image.NewRGBA(image.Rectangle{})}.Decoded())
	assert.True(t, Frame{Image: solid(2, 2, color.White)}.Decoded())
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/frames/001.png":
			w.Header().Set("Content-Type", "image/png")
			png.Encode(w, solid(4, 3, color.White))
		case "/frames/002.png":
			w.Write([]byte("not an image"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.Client(), srv.URL+"/", "/frames/%03d.png", 3)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 3, src.FrameCount())
	assert.Equal(t, srv.URL+"/frames/003.png", src.Describe(2))

	img, err := src.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(4, 3), img.Bounds().Size())

	_, err = src.Fetch(context.Background(), 1)
	assert.ErrorContains(t, err, "decode")

	_, err = src.Fetch(context.Background(), 2)
	assert.ErrorContains(t, err, "404")
}

func TestHTTPSourceRejectsBadInput(t *testing.T) {
	_, err := NewHTTPSource(nil, "http://x", "/frames/%03d.png", 0)
	assert.Error(t, err)

	_, err = NewHTTPSource(nil, "http://x", "/frames/static.png", 3)
	assert.Error(t, err)
}

func TestHTTPSourceHonorsContext(t *testing.T) {
	src, err := NewHTTPSource(nil, "http://127.0.0.1:1", "/%03d.png", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Fetch(ctx, 0)
	assert.Error(t, err)
}

func TestImageSource(t *testing.T) {
	dir := t.TempDir()
	for i := 3; i >= 1; i-- {
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("%03d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, solid(i, i, color.Black)))
		f.Close()
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	src, err := NewImageSource(dir)
	require.NoError(t, err)

	assert.Equal(t, 3, src.FrameCount())
	assert.True(t, strings.HasSuffix(src.Describe(0), "001.png"))

	img, err := src.Fetch(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(3, 3), img.Bounds().Size())
}

func TestImageSourceEmptyDir(t *testing.T) {
	_, err := NewImageSource(t.TempDir())
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	src, err := Open(config.FramesConfig{Source: "http", BaseURL: "http://cdn", Template: "/f/%03d.jpg", Count: 7}, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, src.FrameCount())

	_, err = Open(config.FramesConfig{Source: "ftp"}, 0)
	assert.Error(t, err)
}

func TestVideoSampleTimes(t *testing.T) {
	v := &VideoSource{path: "hero.mp4", count: 5, duration: 8}

	assert.Equal(t, 0.0, v.timeAt(0))
	assert.Equal(t, 4.0, v.timeAt(2))
	assert.InDelta(t, 7.999, v.timeAt(4), 1e-9)

	single := &VideoSource{path: "hero.mp4", count: 1, duration: 8}
	assert.Equal(t, 0.0, single.timeAt(0))

	args := extractArgs("hero.mp4", 4)
	assert.Contains(t, args, "-ss")
	assert.Contains(t, args, "4.000000")
	assert.Equal(t, "-", args[len(args)-1])
}

func TestFitzPDFSource(t *testing.T) {
	path := filepath.Join("testdata", "lookbook.pdf")
	src, err := NewFitzPDFSource(path, 72)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 2, src.FrameCount())
	assert.Equal(t, path+"#page=2", src.Describe(1))

	// page 1 is filled red, page 2 blue; 200x100 pt at 72 dpi is 200x100 px
	tests := []struct {
		index   int
		wantRed bool
	}{
		{0, true},
		{1, false},
	}
	for _, tt := range tests {
		img, err := src.Fetch(context.Background(), tt.index)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(200, 100), img.Bounds().Size())

		c := color.RGBAModel.Convert(img.At(100, 50)).(color.RGBA)
		if tt.wantRed {
			assert.Greater(t, c.R, uint8(200), "page %d: %v", tt.index+1, c)
			assert.Less(t, c.B, uint8(50), "page %d: %v", tt.index+1, c)
		} else {
			assert.Greater(t, c.B, uint8(200), "page %d: %v", tt.index+1, c)
			assert.Less(t, c.R, uint8(50), "page %d: %v", tt.index+1, c)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Fetch(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenPDF(t *testing.T) {
	src, err := Open(config.FramesConfig{Source: "pdf", Path: filepath.Join("testdata", "lookbook.pdf"), DPI: 36}, 0)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 2, src.FrameCount())

	_, err = Open(config.FramesConfig{Source: "pdf", Path: filepath.Join("testdata", "missing.pdf")}, 0)
	assert.Error(t, err)
}
