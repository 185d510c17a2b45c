// Package player binds a pinned section's scroll range to a frame cursor
// and redraws the frame under the cursor whenever it changes.
package player

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/ivlev/elasticcanvas/internal/logging"
	"github.com/ivlev/elasticcanvas/internal/source"
)

const (
	DefaultScrollDistance = 2000
	DefaultFadeEnd        = 0.5
	// DefaultOverlayShift is how far the hero copy rises while fading.
	DefaultOverlayShift = -100
)

var (
	ErrNoFrames     = errors.New("player: no frames")
	ErrAlreadyBound = errors.New("player: already bound")
	ErrClosed       = errors.New("player: closed")
)

type Options struct {
	SectionTop     float64
	ScrollDistance float64
	FadeEnd        float64
	// SmallViewport skips the scroll binding and shows the first frame.
	SmallViewport bool
	Logger        *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.ScrollDistance <= 0 {
		o.ScrollDistance = DefaultScrollDistance
	}
	if o.FadeEnd <= 0 {
		o.FadeEnd = DefaultFadeEnd
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}

type state int

const (
	stateNew state = iota
	stateBound
	stateStatic
	stateClosed
)

// Player owns one binding between a ScrollEnv and a Surface.
type Player struct {
	frames  []source.Frame
	surface Surface
	opts    Options

	mu       sync.Mutex
	state    state
	cancel   func()
	progress float64
	pinned   bool
	drawn    int // index currently on the surface, -1 for none
	skipped  int
}

// New takes the resolved frames directly from their owner.
func New(frames []source.Frame, surface Surface, opts Options) (*Player, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	return &Player{
		frames:  frames,
		surface: surface,
		opts:    opts.withDefaults(),
		drawn:   -1,
	}, nil
}

// Bind attaches the player to env. It succeeds at most once. On a small
// viewport nothing is subscribed and the first frame is drawn statically.
func (p *Player) Bind(env ScrollEnv) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateClosed:
		return ErrClosed
	case stateBound, stateStatic:
		return ErrAlreadyBound
	}

	if p.opts.SmallViewport {
		p.state = stateStatic
		if i, ok := firstDecoded(p.frames); ok {
			p.draw(i)
		}
		p.opts.Logger.Debug("small viewport, static frame", zap.Int("index", p.drawn))
		return nil
	}

	p.cancel = env.Subscribe(p.Scroll)
	p.state = stateBound
	return nil
}

// Scroll handles one scroll position. Repeating a position never redraws.
func (p *Player) Scroll(scrollY float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != stateBound {
		return
	}

	top, dist := p.opts.SectionTop, p.opts.ScrollDistance
	p.progress = Progress(scrollY, top, dist)
	p.pinned = scrollY >= top && scrollY <= top+dist

	cursor := Cursor(p.progress, len(p.frames))
	if cursor == p.drawn {
		return
	}
	if !p.frames[cursor].Decoded() {
		p.skipped++
		return
	}
	p.draw(cursor)
}

func (p *Player) draw(index int) {
	p.surface.Clear()
	p.surface.DrawCover(index, p.frames[index].Image)
	p.drawn = index
}

// Close releases the scroll binding. Safe to call repeatedly or before Bind.
func (p *Player) Close() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.state = stateClosed
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Cursor returns the index on the surface, -1 before the first draw.
func (p *Player) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drawn
}

func (p *Player) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// Opacity is the hero copy opacity for the last scroll position.
func (p *Player) Opacity() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == stateStatic {
		return 1
	}
	return OverlayOpacity(p.progress, p.opts.FadeEnd)
}

// Offset is the vertical lift of the hero copy in pixels.
func (p *Player) Offset() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == stateStatic {
		return 0
	}
	return OverlayOffset(p.progress, p.opts.FadeEnd, DefaultOverlayShift)
}

// Pinned reports whether the last position fell inside the pinned range.
func (p *Player) Pinned() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pinned
}

// Skipped counts ticks whose frame was not decoded.
func (p *Player) Skipped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipped
}

// RenderAt draws the frame for scrollY onto surface without any binding.
// It falls back to the nearest decoded frame and reports which one it drew.
func RenderAt(frames []source.Frame, surface Surface, opts Options, scrollY float64) (int, bool) {
	opts = opts.withDefaults()

	var index int
	if opts.SmallViewport {
		i, ok := firstDecoded(frames)
		if !ok {
			return -1, false
		}
		index = i
	} else {
		cursor := Cursor(Progress(scrollY, opts.SectionTop, opts.ScrollDistance), len(frames))
		i, ok := nearestDecoded(frames, cursor)
		if !ok {
			return -1, false
		}
		index = i
	}

	surface.Clear()
	surface.DrawCover(index, frames[index].Image)
	return index, true
}

func firstDecoded(frames []source.Frame) (int, bool) {
	for i, f := range frames {
		if f.Decoded() {
			return i, true
		}
	}
	return -1, false
}

func nearestDecoded(frames []source.Frame, cursor int) (int, bool) {
	if cursor < 0 || cursor >= len(frames) {
		return -1, false
	}
	for d := 0; d < len(frames); d++ {
		if i := cursor - d; i >= 0 && frames[i].Decoded() {
			return i, true
		}
		if i := cursor + d; i < len(frames) && frames[i].Decoded() {
			return i, true
		}
	}
	return -1, false
}
