package preload

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeSource fails fetches chosen by failOn(index, call), where call counts
// fetches of that index starting at 1.
type fakeSource struct {
	n      int
	failOn func(index, call int) bool
	block  bool

	mu    sync.Mutex
	calls []int
}

func newFakeSource(n int, failOn func(index, call int) bool) *fakeSource {
	return &fakeSource{n: n, failOn: failOn, calls: make([]int, n)}
}

func (f *fakeSource) FrameCount() int           { return f.n }
func (f *fakeSource) Describe(index int) string { return fmt.Sprintf("/frames/%03d.png", index+1) }
func (f *fakeSource) Close() error              { return nil }

func (f *fakeSource) Fetch(ctx context.Context, index int) (image.Image, error) {
	f.mu.Lock()
	f.calls[index]++
	call := f.calls[index]
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.failOn != nil && f.failOn(index, call) {
		return nil, errors.New("connection reset")
	}
	return image.NewRGBA(image.Rect(0, 0, 16, 9)), nil
}

func (f *fakeSource) callsFor(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[index]
}

func TestLoadThresholdGating(t *testing.T) {
	tests := []struct {
		name      string
		failing   int
		wantReady bool
	}{
		{"79 loaded", 21, false},
		{"80 loaded", 20, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource(100, func(index, call int) bool { return index < tt.failing })
			p := New(src, Options{Threshold: 0.8, MaxRetries: 0}, nil)

			res, err := p.Load(context.Background())
			require.NotNil(t, res)
			assert.Equal(t, tt.wantReady, res.Ready)
			assert.Equal(t, 100-tt.failing, res.Loaded)
			assert.Equal(t, tt.failing, res.Failed)
			if tt.wantReady {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrExhausted)
			}
		})
	}
}

func TestLoadRetriesWholeCycleAfterBackoff(t *testing.T) {
	defer goleak.VerifyNone(t)

	// frames 0 and 1 fail on the first attempt only
	src := newFakeSource(5, func(index, call int) bool { return call == 1 && index < 2 })

	var retries []int
	delay := 30 * time.Millisecond
	p := New(src, Options{
		Threshold:  0.8,
		RetryDelay: delay,
		MaxRetries: 3,
		OnRetry: func(attempt int, last Progress) {
			retries = append(retries, attempt)
			assert.Equal(t, 3, last.Loaded)
			assert.Equal(t, 100, last.Percent)
		},
	}, nil)

	start := time.Now()
	res, err := p.Load(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), delay)
	assert.True(t, res.Ready)
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, res.Frames, 5)
	assert.Equal(t, 5, res.Loaded)
	assert.Equal(t, []int{1}, retries)
	for i := 0; i < 5; i++ {
		assert.Equal(t, 2, src.callsFor(i), "frame %d", i)
		assert.True(t, res.Frames[i].Decoded())
		assert.Equal(t, Loaded, res.States[i])
	}
}

func TestLoadExhaustsRetries(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(4, func(index, call int) bool { return true })
	p := New(src, Options{RetryDelay: time.Millisecond, MaxRetries: 2}, nil)

	res, err := p.Load(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
	require.NotNil(t, res)
	assert.False(t, res.Ready)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, -1, res.FirstIndex)
	_, ok := res.First()
	assert.False(t, ok)
	for i := 0; i < 4; i++ {
		assert.Equal(t, 3, src.callsFor(i))
	}
}

func TestLoadCancelDuringBackoff(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(3, func(index, call int) bool { return true })
	ctx, cancel := context.WithCancel(context.Background())
	p := New(src, Options{
		RetryDelay: time.Hour,
		MaxRetries: 100,
		OnRetry:    func(int, Progress) { cancel() },
	}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := p.Load(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Load did not return after cancellation")
	}
}

func TestLoadCancelInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	src := newFakeSource(10, nil)
	src.block = true

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := New(src, Options{}, nil).Load(ctx)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoadEmptySequence(t *testing.T) {
	_, err := New(newFakeSource(0, nil), Options{}, nil).Load(context.Background())
	assert.ErrorIs(t, err, ErrEmptySequence)
}

func TestLoadProgressCallbacks(t *testing.T) {
	src := newFakeSource(20, func(index, call int) bool { return index%5 == 0 })

	var seen []Progress
	p := New(src, Options{OnProgress: func(pr Progress) { seen = append(seen, pr) }}, nil)

	res, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Ready)

	require.Len(t, seen, 20)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i].Percent, seen[i-1].Percent)
	}
	last := seen[len(seen)-1]
	assert.Equal(t, 100, last.Percent)
	assert.Equal(t, 16, last.Loaded)
	assert.Equal(t, 4, last.Failed)
	assert.Equal(t, "Ready to explore!", last.Status)
}

func TestLoadFirstFrameMarker(t *testing.T) {
	src := newFakeSource(5, func(index, call int) bool { return index == 0 })
	res, err := New(src, Options{}, nil).Load(context.Background())
	require.NoError(t, err)

	first, ok := res.First()
	require.True(t, ok)
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "/frames/002.png", first.URL)
}

func TestLoadHonorsMinDisplay(t *testing.T) {
	src := newFakeSource(3, nil)
	minDisplay := 40 * time.Millisecond

	start := time.Now()
	res, err := New(src, Options{MinDisplay: minDisplay}, nil).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.GreaterOrEqual(t, time.Since(start), minDisplay)
}

func TestLoadLocalizedStatus(t *testing.T) {
	src := newFakeSource(2, nil)
	var last Progress
	p := New(src, Options{
		Status:     func(percent int) string { return fmt.Sprintf("%d%%", percent) },
		OnProgress: func(pr Progress) { last = pr },
	}, nil)

	_, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100%", last.Status)
}
