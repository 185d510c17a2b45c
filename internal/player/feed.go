package player

import "sync"

// ScrollEnv is the host scroll environment a Player binds to.
type ScrollEnv interface {
	// Subscribe registers fn for scroll positions. The returned cancel
	// removes it and may be called any number of times.
	Subscribe(fn func(scrollY float64)) (cancel func())
}

// Feed is a ScrollEnv driven by Publish, one per mount.
type Feed struct {
	mu        sync.RWMutex
	listeners map[uint64]func(float64)
	next      uint64
}

func NewFeed() *Feed {
	return &Feed{listeners: make(map[uint64]func(float64))}
}

func (f *Feed) Subscribe(fn func(scrollY float64)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.listeners[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners, id)
			f.mu.Unlock()
		})
	}
}

// Publish delivers a scroll position to every listener, in the caller's goroutine.
func (f *Feed) Publish(scrollY float64) {
	f.mu.RLock()
	fns := make([]func(float64), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(scrollY)
	}
}

// Listeners returns the number of active subscriptions.
func (f *Feed) Listeners() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners)
}
