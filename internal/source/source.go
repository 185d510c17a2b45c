package source

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/elasticcanvas/internal/config"
)

// Source is an ordered, fixed-length sequence of cinematic frames.
// The length never changes for the lifetime of a Source.
type Source interface {
	FrameCount() int
	// Describe returns the reference of frame i (URL or file path) for logs.
	Describe(index int) string
	Fetch(ctx context.Context, index int) (image.Image, error)
	Close() error
}

// Frame is a resolved asset handle. Image is nil while the frame is not decoded.
type Frame struct {
	Index int
	URL   string
	Image image.Image
}

// Decoded reports whether the frame can be drawn.
func (f Frame) Decoded() bool {
	return f.Image != nil && !f.Image.Bounds().Empty()
}

// FrameURL renders the 1-indexed name of frame index (0-based) from template.
func FrameURL(template string, index int) string {
	return fmt.Sprintf(template, index+1)
}

// Open builds the Source selected by cfg.Source.
func Open(cfg config.FramesConfig, fetchTimeout time.Duration) (Source, error) {
	switch cfg.Source {
	case "http":
		client := &http.Client{Timeout: fetchTimeout}
		return NewHTTPSource(client, cfg.BaseURL, cfg.Template, cfg.Count)
	case "dir":
		return NewImageSource(cfg.Path)
	case "pdf":
		return NewFitzPDFSource(cfg.Path, cfg.DPI)
	case "video":
		return NewVideoSource(cfg.Path, cfg.Count)
	default:
		return nil, fmt.Errorf("unknown frame source %q", cfg.Source)
	}
}

// FitzPDFSource turns every page of a lookbook PDF into one frame.
type FitzPDFSource struct {
	doc   *fitz.Document
	path  string
	dpi   int
	pages int
}

func NewFitzPDFSource(path string, dpi int) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &FitzPDFSource{doc: doc, path: path, dpi: dpi, pages: doc.NumPage()}, nil
}

func (f *FitzPDFSource) FrameCount() int {
	return f.pages
}

func (f *FitzPDFSource) Describe(index int) string {
	return fmt.Sprintf("%s#page=%d", f.path, index+1)
}

func (f *FitzPDFSource) Fetch(ctx context.Context, index int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// go-fitz documents are not safe for concurrent use, each fetch opens its own
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
