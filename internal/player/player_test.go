package player

import (
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ivlev/elasticcanvas/internal/source"
)

type recordingSurface struct {
	mu     sync.Mutex
	draws  []int
	clears int
}

func (s *recordingSurface) Bounds() image.Rectangle { return image.Rect(0, 0, 1920, 1080) }

func (s *recordingSurface) Clear() {
	s.mu.Lock()
	s.clears++
	s.mu.Unlock()
}

func (s *recordingSurface) DrawCover(index int, img image.Image) {
	s.mu.Lock()
	s.draws = append(s.draws, index)
	s.mu.Unlock()
}

func (s *recordingSurface) Draws() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.draws...)
}

func testFrames(n int, undecoded ...int) []source.Frame {
	frames := make([]source.Frame, n)
	for i := range frames {
		frames[i] = source.Frame{Index: i, Image: image.NewRGBA(image.Rect(0, 0, 16, 9))}
	}
	for _, i := range undecoded {
		frames[i].Image = nil
	}
	return frames
}

func TestPlayerDrawsOnCursorChangeOnly(t *testing.T) {
	feed := NewFeed()
	surface := &recordingSurface{}
	p, err := New(testFrames(5), surface, Options{ScrollDistance: 2000})
	require.NoError(t, err)
	require.NoError(t, p.Bind(feed))

	// binding alone draws nothing
	assert.Empty(t, surface.Draws())
	assert.Equal(t, -1, p.Cursor())

	feed.Publish(1000)
	assert.Equal(t, []int{2}, surface.Draws())
	assert.Equal(t, 2, p.Cursor())
	assert.InDelta(t, 0.5, p.Progress(), 1e-9)
	assert.Equal(t, 0.0, p.Opacity())
	assert.True(t, p.Pinned())

	// same cursor, no redraw
	feed.Publish(1000)
	feed.Publish(1100)
	assert.Equal(t, []int{2}, surface.Draws())

	feed.Publish(-400)
	assert.Equal(t, []int{2, 0}, surface.Draws())
	assert.False(t, p.Pinned())
	assert.Equal(t, 1.0, p.Opacity())

	feed.Publish(5000)
	assert.Equal(t, []int{2, 0, 4}, surface.Draws())
	assert.Equal(t, 3, surface.clears)
}

func TestPlayerSectionOffset(t *testing.T) {
	feed := NewFeed()
	surface := &recordingSurface{}
	p, err := New(testFrames(11), surface, Options{SectionTop: 800, ScrollDistance: 1000})
	require.NoError(t, err)
	require.NoError(t, p.Bind(feed))

	feed.Publish(1300)
	assert.Equal(t, 5, p.Cursor())
	assert.Equal(t, 0.0, p.Opacity())
	assert.Equal(t, float64(DefaultOverlayShift), p.Offset())
}

func TestPlayerSkipsUndecodedFrames(t *testing.T) {
	feed := NewFeed()
	surface := &recordingSurface{}
	p, err := New(testFrames(5, 2), surface, Options{})
	require.NoError(t, err)
	require.NoError(t, p.Bind(feed))

	feed.Publish(1000)
	assert.Empty(t, surface.Draws())
	assert.Equal(t, -1, p.Cursor())
	assert.Equal(t, 1, p.Skipped())

	// the skipped tick is not treated as drawn, so the next tick retries it
	feed.Publish(1000)
	assert.Equal(t, 2, p.Skipped())

	feed.Publish(1500)
	assert.Equal(t, []int{3}, surface.Draws())
	assert.Equal(t, 0, surface.clears-len(surface.Draws()))
}

func TestPlayerSmallViewport(t *testing.T) {
	feed := NewFeed()
	surface := &recordingSurface{}
	p, err := New(testFrames(5), surface, Options{SmallViewport: true})
	require.NoError(t, err)
	require.NoError(t, p.Bind(feed))

	assert.Equal(t, 0, feed.Listeners())
	assert.Equal(t, []int{0}, surface.Draws())
	assert.Equal(t, 1.0, p.Opacity())
	assert.Equal(t, 0.0, p.Offset())

	feed.Publish(1000)
	assert.Equal(t, []int{0}, surface.Draws())
}

func TestPlayerBindOnce(t *testing.T) {
	feed := NewFeed()
	p, err := New(testFrames(3), &recordingSurface{}, Options{})
	require.NoError(t, err)

	require.NoError(t, p.Bind(feed))
	assert.ErrorIs(t, p.Bind(feed), ErrAlreadyBound)
	assert.Equal(t, 1, feed.Listeners())

	p.Close()
	assert.ErrorIs(t, p.Bind(feed), ErrClosed)
	assert.Equal(t, 0, feed.Listeners())
}

func TestPlayerTeardownIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	// before Bind
	unbound, err := New(testFrames(3), &recordingSurface{}, Options{})
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		unbound.Close()
		unbound.Close()
	})

	feed := NewFeed()
	surface := &recordingSurface{}
	p, err := New(testFrames(3), surface, Options{})
	require.NoError(t, err)
	require.NoError(t, p.Bind(feed))
	require.Equal(t, 1, feed.Listeners())

	assert.NotPanics(t, func() {
		p.Close()
		p.Close()
	})
	assert.Equal(t, 0, feed.Listeners())

	feed.Publish(2000)
	assert.Empty(t, surface.Draws())
}

func TestPlayerConcurrentScroll(t *testing.T) {
	feed := NewFeed()
	surface := &recordingSurface{}
	p, err := New(testFrames(50), surface, Options{})
	require.NoError(t, err)
	require.NoError(t, p.Bind(feed))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := 0.0; y <= 2000; y += 10 {
				feed.Publish(y)
			}
		}()
	}
	wg.Wait()
	p.Close()

	for _, idx := range surface.Draws() {
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 50)
	}
	assert.Equal(t, 0, feed.Listeners())
}

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New(nil, &recordingSurface{}, Options{})
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestRenderAt(t *testing.T) {
	frames := testFrames(5, 2)

	surface := &recordingSurface{}
	idx, ok := RenderAt(frames, surface, Options{}, 1000)
	require.True(t, ok)
	// cursor 2 is not decoded, the nearest earlier frame wins
	assert.Equal(t, 1, idx)

	idx, ok = RenderAt(frames, surface, Options{}, 2000)
	require.True(t, ok)
	assert.Equal(t, 4, idx)

	idx, ok = RenderAt(testFrames(5, 0), surface, Options{SmallViewport: true}, 1500)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = RenderAt(testFrames(2, 0, 1), surface, Options{}, 0)
	assert.False(t, ok)

	assert.Equal(t, []int{1, 4, 1}, surface.Draws())
}
