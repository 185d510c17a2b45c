package preload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/elasticcanvas/internal/logging"
	"github.com/ivlev/elasticcanvas/internal/source"
)

const (
	DefaultThreshold  = 0.8
	DefaultRetryDelay = time.Second
)

var (
	ErrEmptySequence = errors.New("preload: empty frame sequence")
	ErrExhausted     = errors.New("preload: retries exhausted")
)

type Options struct {
	Threshold  float64
	RetryDelay time.Duration
	// MaxRetries bounds how many times a failed cycle is restarted.
	MaxRetries int
	// MinDisplay keeps readiness back until the loading screen has been up this long.
	MinDisplay time.Duration

	// Callbacks run serially, never concurrently with each other.
	OnProgress func(Progress)
	OnRetry    func(attempt int, last Progress)
	// Status localizes the status line; StatusText when nil.
	Status func(percent int) string
}

// Result is what a finished load publishes to its owner.
type Result struct {
	Ready    bool
	Frames   []source.Frame
	States   []LoadState
	Loaded   int
	Failed   int
	Attempts int
	// FirstIndex marks the first drawable frame, -1 when none loaded.
	FirstIndex int
}

// First returns the "first asset ready" frame.
func (r *Result) First() (source.Frame, bool) {
	if r == nil || r.FirstIndex < 0 || r.FirstIndex >= len(r.Frames) {
		return source.Frame{}, false
	}
	return r.Frames[r.FirstIndex], true
}

// Preloader acquires every frame of a Source once per attempt.
type Preloader struct {
	src    source.Source
	opts   Options
	logger *zap.Logger

	mu sync.Mutex // serializes tracker updates and callbacks
}

func New(src source.Source, opts Options, logger *zap.Logger) *Preloader {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Status == nil {
		opts.Status = StatusText
	}
	return &Preloader{
		src:    src,
		opts:   opts,
		logger: logging.OrNop(logger),
	}
}

// Load runs attempts until the threshold is met, retries are exhausted or
// ctx is done. Individual asset failures never surface as errors. On
// exhaustion the last Result comes back together with ErrExhausted.
func (p *Preloader) Load(ctx context.Context) (*Result, error) {
	total := p.src.FrameCount()
	if total == 0 {
		return nil, ErrEmptySequence
	}
	start := time.Now()

	for attempt := 1; ; attempt++ {
		res, last, err := p.cycle(ctx, attempt, total)
		if err != nil {
			return nil, err
		}

		if res.Ready {
			p.logger.Info("frames ready",
				zap.Int("attempt", attempt),
				zap.Int("loaded", res.Loaded),
				zap.Int("failed", res.Failed),
				zap.Int("total", total),
			)
			if err := sleep(ctx, p.opts.MinDisplay-time.Since(start)); err != nil {
				return nil, err
			}
			return res, nil
		}

		if attempt > p.opts.MaxRetries {
			p.logger.Error("not enough frames loaded, giving up",
				zap.Int("attempts", attempt),
				zap.Int("loaded", res.Loaded),
				zap.Int("total", total),
			)
			return res, fmt.Errorf("%w after %d attempts: %d/%d frames loaded", ErrExhausted, attempt, res.Loaded, total)
		}

		p.logger.Warn("not enough frames loaded, retrying",
			zap.Int("attempt", attempt),
			zap.Int("loaded", res.Loaded),
			zap.Int("total", total),
			zap.Duration("delay", p.opts.RetryDelay),
		)
		if p.opts.OnRetry != nil {
			p.mu.Lock()
			p.opts.OnRetry(attempt, last)
			p.mu.Unlock()
		}
		if err := sleep(ctx, p.opts.RetryDelay); err != nil {
			return nil, err
		}
	}
}

func (p *Preloader) cycle(ctx context.Context, attempt, total int) (*Result, Progress, error) {
	res := &Result{
		Frames:     make([]source.Frame, total),
		States:     make([]LoadState, total),
		Attempts:   attempt,
		FirstIndex: -1,
	}
	tracker := NewTracker(total)
	var last Progress

	var g errgroup.Group
	for i := 0; i < total; i++ {
		g.Go(func() error {
			url := p.src.Describe(i)
			img, err := p.src.Fetch(ctx, i)

			p.mu.Lock()
			defer p.mu.Unlock()

			res.Frames[i] = source.Frame{Index: i, URL: url}
			if err != nil || img == nil {
				res.States[i] = Failed
				tracker.Record(Failed)
				if ctx.Err() == nil {
					p.logger.Warn("frame failed", zap.Int("index", i), zap.String("url", url), zap.Error(err))
				}
			} else {
				res.Frames[i].Image = img
				res.States[i] = Loaded
				tracker.Record(Loaded)
			}

			last = p.snapshot(attempt, tracker)
			if p.opts.OnProgress != nil {
				p.opts.OnProgress(last)
			}
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, last, err
	}

	res.Loaded = tracker.Loaded()
	res.Failed = tracker.Failed()
	res.Ready = Ready(res.Loaded, total, p.opts.Threshold)
	for i, st := range res.States {
		if st == Loaded {
			res.FirstIndex = i
			break
		}
	}
	return res, last, nil
}

func (p *Preloader) snapshot(attempt int, t *Tracker) Progress {
	percent := t.Percent()
	return Progress{
		Attempt: attempt,
		Loaded:  t.Loaded(),
		Failed:  t.Failed(),
		Total:   t.Total(),
		Percent: percent,
		Status:  p.opts.Status(percent),
	}
}

// sleep waits d or until ctx is done, releasing its timer either way.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
