// Package hero owns the cinematic hero: it preloads the frame sequence once
// and hands the resolved frames directly to every player it mounts.
package hero

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"

	"go.uber.org/zap"

	"github.com/ivlev/elasticcanvas/internal/config"
	"github.com/ivlev/elasticcanvas/internal/logging"
	"github.com/ivlev/elasticcanvas/internal/player"
	"github.com/ivlev/elasticcanvas/internal/preload"
	"github.com/ivlev/elasticcanvas/internal/source"
)

var (
	ErrNotReady       = errors.New("hero: frames not ready")
	ErrAlreadyStarted = errors.New("hero: already started")
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseRetrying
	PhaseReady
	PhaseFailed
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseRetrying:
		return "retrying"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Options struct {
	Preload preload.Options
	Player  player.Options
	// Width and Height size the fallback poster.
	Width, Height int
	// Viewports narrower than this get a static first frame.
	SmallViewportWidth int
	// OnPhase observes transitions. It runs with the hero locked and must not call back into it.
	OnPhase func(Phase)
}

// OptionsFromConfig maps the site configuration onto hero options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Preload: preload.Options{
			Threshold:  cfg.Preload.Threshold,
			RetryDelay: cfg.Preload.RetryDelay,
			MaxRetries: cfg.Preload.MaxRetries,
			MinDisplay: cfg.Preload.MinDisplay,
		},
		Player: player.Options{
			ScrollDistance: cfg.Hero.ScrollDistance,
			FadeEnd:        cfg.Hero.FadeEnd,
		},
		Width:              cfg.Hero.Width,
		Height:             cfg.Hero.Height,
		SmallViewportWidth: cfg.Hero.SmallViewportWidth,
	}
}

// Status is the snapshot served to the loading screen.
type Status struct {
	Phase      string `json:"phase"`
	Attempt    int    `json:"attempt"`
	Loaded     int    `json:"loaded"`
	Failed     int    `json:"failed"`
	Total      int    `json:"total"`
	Percent    int    `json:"percent"`
	StatusText string `json:"status"`
	Ready      bool   `json:"ready"`
	Mounts     int    `json:"mounts"`
	Error      string `json:"error,omitempty"`
}

// Hero is the single owner of the preloaded frames.
type Hero struct {
	src    source.Source
	opts   Options
	logger *zap.Logger

	mu       sync.RWMutex
	phase    Phase
	progress preload.Progress
	result   *preload.Result
	err      error
	mounts   map[*Mount]struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	fallback image.Image
}

func New(src source.Source, opts Options, logger *zap.Logger) *Hero {
	return &Hero{
		src:    src,
		opts:   opts,
		logger: logging.OrNop(logger),
		mounts: make(map[*Mount]struct{}),
		progress: preload.Progress{
			Total:  src.FrameCount(),
			Status: statusText(opts.Preload.Status, 0),
		},
	}
}

// Start launches the preload in the background. It runs until the frames
// are ready, retries are exhausted, ctx is done or Close is called.
func (h *Hero) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.phase != PhaseIdle {
		return ErrAlreadyStarted
	}
	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})
	h.setPhase(PhaseLoading)

	go h.run(ctx)
	return nil
}

func (h *Hero) run(ctx context.Context) {
	defer close(h.done)

	opts := h.opts.Preload
	onProgress, onRetry := opts.OnProgress, opts.OnRetry
	opts.OnProgress = func(p preload.Progress) {
		h.mu.Lock()
		if h.phase == PhaseClosed {
			h.mu.Unlock()
			return
		}
		h.progress = p
		if h.phase == PhaseRetrying {
			h.setPhase(PhaseLoading)
		}
		h.mu.Unlock()
		if onProgress != nil {
			onProgress(p)
		}
	}
	opts.OnRetry = func(attempt int, last preload.Progress) {
		h.mu.Lock()
		if h.phase != PhaseClosed {
			// the next cycle starts from zero, the last one's 100% is stale
			h.progress = preload.Progress{Attempt: attempt, Total: last.Total, Status: preload.RetryingText}
			h.setPhase(PhaseRetrying)
		}
		h.mu.Unlock()
		if onRetry != nil {
			onRetry(attempt, last)
		}
	}

	res, err := preload.New(h.src, opts, h.logger).Load(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.phase == PhaseClosed {
		return
	}
	switch {
	case err == nil:
		h.result = res
		h.setPhase(PhaseReady)
	case errors.Is(err, preload.ErrExhausted):
		h.result = res
		h.err = err
		h.setPhase(PhaseFailed)
		h.logger.Error("hero disabled, serving poster", zap.Error(err))
	default:
		h.err = err
		h.setPhase(PhaseFailed)
		h.logger.Warn("hero preload stopped", zap.Error(err))
	}
}

// setPhase requires h.mu.
func (h *Hero) setPhase(p Phase) {
	if h.phase == p {
		return
	}
	h.logger.Debug("hero phase", zap.Stringer("from", h.phase), zap.Stringer("to", p))
	h.phase = p
	if h.opts.OnPhase != nil {
		h.opts.OnPhase(p)
	}
}

// Wait blocks until the preload has finished and returns its error.
func (h *Hero) Wait(ctx context.Context) error {
	h.mu.RLock()
	done := h.done
	h.mu.RUnlock()
	if done == nil {
		return ErrNotReady
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

func (h *Hero) Phase() Phase {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.phase
}

func (h *Hero) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := Status{
		Phase:      h.phase.String(),
		Attempt:    h.progress.Attempt,
		Loaded:     h.progress.Loaded,
		Failed:     h.progress.Failed,
		Total:      h.progress.Total,
		Percent:    h.progress.Percent,
		StatusText: h.progress.Status,
		Ready:      h.phase == PhaseReady,
		Mounts:     len(h.mounts),
	}
	if h.err != nil {
		st.Error = h.err.Error()
	}
	return st
}

// Frames returns the owned frame list once ready.
func (h *Hero) Frames() ([]source.Frame, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.phase != PhaseReady {
		return nil, ErrNotReady
	}
	return h.result.Frames, nil
}

// Poster returns the first ready frame, or a plain fallback while the
// frames are unavailable.
func (h *Hero) Poster() image.Image {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.phase == PhaseReady {
		if f, ok := h.result.First(); ok {
			return f.Image
		}
	}
	if h.fallback == nil {
		h.fallback = fallbackPoster(h.opts.Width, h.opts.Height)
	}
	return h.fallback
}

// PlayerOptions resolves player options for a viewport width (0 if unknown).
func (h *Hero) PlayerOptions(viewportWidth int) player.Options {
	opts := h.opts.Player
	opts.Logger = h.logger
	opts.SmallViewport = viewportWidth > 0 && viewportWidth < h.opts.SmallViewportWidth
	return opts
}

// RenderFrame draws the frame for scrollY without a binding.
func (h *Hero) RenderFrame(surface player.Surface, scrollY float64, viewportWidth int) (int, error) {
	frames, err := h.Frames()
	if err != nil {
		return -1, err
	}
	idx, ok := player.RenderAt(frames, surface, h.PlayerOptions(viewportWidth), scrollY)
	if !ok {
		return -1, ErrNotReady
	}
	return idx, nil
}

// Mount binds a new player to env. Each mount is bound once and torn down by its Close.
func (h *Hero) Mount(env player.ScrollEnv, surface player.Surface, viewportWidth int) (*Mount, error) {
	frames, err := h.Frames()
	if err != nil {
		return nil, err
	}
	p, err := player.New(frames, surface, h.PlayerOptions(viewportWidth))
	if err != nil {
		return nil, err
	}
	if err := p.Bind(env); err != nil {
		return nil, err
	}

	m := &Mount{hero: h, player: p}
	h.mu.Lock()
	if h.phase == PhaseClosed {
		h.mu.Unlock()
		p.Close()
		return nil, ErrNotReady
	}
	h.mounts[m] = struct{}{}
	h.mu.Unlock()
	return m, nil
}

// Close stops loading, waits for the loader and tears down every mount.
// It is safe to call more than once and before Start.
func (h *Hero) Close() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.setPhase(PhaseClosed)
	mounts := make([]*Mount, 0, len(h.mounts))
	for m := range h.mounts {
		mounts = append(mounts, m)
	}
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	for _, m := range mounts {
		m.Close()
	}
}

// Mount is one bound player.
type Mount struct {
	hero   *Hero
	player *player.Player
	once   sync.Once
}

func (m *Mount) Player() *player.Player { return m.player }

// Close releases the scroll binding. Repeated calls are no-ops.
func (m *Mount) Close() {
	m.once.Do(func() {
		m.player.Close()
		m.hero.mu.Lock()
		delete(m.hero.mounts, m)
		m.hero.mu.Unlock()
	})
}

func statusText(fn func(int) string, percent int) string {
	if fn == nil {
		return preload.StatusText(percent)
	}
	return fn(percent)
}

// fallbackPoster is a dark vertical gradient in the brand tone.
func fallbackPoster(w, h int) image.Image {
	if w <= 0 || h <= 0 {
		w, h = 1920, 1080
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		t := float64(y) / float64(h)
		c := color.RGBA{
			R: uint8(24 + 20*t),
			G: uint8(18 + 10*t),
			B: uint8(40 + 30*t),
			A: 255,
		}
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			row[x], row[x+1], row[x+2], row[x+3] = c.R, c.G, c.B, c.A
		}
	}
	return img
}
