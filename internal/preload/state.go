package preload

// LoadState is the per-asset acquisition state. Transitions only go
// Pending -> Loaded or Pending -> Failed.
type LoadState int

const (
	Pending LoadState = iota
	Loaded
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Progress is a snapshot of one load attempt.
type Progress struct {
	Attempt int    `json:"attempt"`
	Loaded  int    `json:"loaded"`
	Failed  int    `json:"failed"`
	Total   int    `json:"total"`
	Percent int    `json:"percent"`
	Status  string `json:"status"`
}

// Tracker aggregates completions of one attempt. It is order independent
// and its counters never decrease.
type Tracker struct {
	total  int
	loaded int
	failed int
}

func NewTracker(total int) *Tracker {
	return &Tracker{total: total}
}

// Record folds one completion in. Pending and completions past the total
// are ignored and reported as false.
func (t *Tracker) Record(state LoadState) bool {
	if t.Complete() {
		return false
	}
	switch state {
	case Loaded:
		t.loaded++
	case Failed:
		t.failed++
	default:
		return false
	}
	return true
}

func (t *Tracker) Loaded() int { return t.loaded }
func (t *Tracker) Failed() int { return t.failed }
func (t *Tracker) Total() int  { return t.total }

// Complete reports whether every asset has resolved.
func (t *Tracker) Complete() bool {
	return t.loaded+t.failed >= t.total
}

// Percent is the share of resolved assets, rounded to an integer.
// Failures count as resolved so the bar always reaches 100.
func (t *Tracker) Percent() int {
	if t.total <= 0 {
		return 100
	}
	done := t.loaded + t.failed
	return (done*100 + t.total/2) / t.total
}

// Ready applies the success threshold: loaded/total >= threshold.
func Ready(loaded, total int, threshold float64) bool {
	if total <= 0 {
		return false
	}
	return float64(loaded) >= threshold*float64(total)-1e-9
}

// StatusText returns the rotating loading-screen message for a percentage.
func StatusText(percent int) string {
	switch {
	case percent < 20:
		return "Loading cinematic frames..."
	case percent < 40:
		return "Preparing canvas..."
	case percent < 60:
		return "Optimizing performance..."
	case percent < 80:
		return "Finalizing experience..."
	case percent < 100:
		return "Almost ready..."
	default:
		return "Ready to explore!"
	}
}

// RetryingText is shown while a failed cycle waits to start again.
const RetryingText = "Some frames did not load. Retrying..."

// StatusKey maps a percentage to the dictionary key of its message.
func StatusKey(percent int) string {
	switch {
	case percent < 20:
		return "loading.status_frames"
	case percent < 40:
		return "loading.status_canvas"
	case percent < 60:
		return "loading.status_optimizing"
	case percent < 80:
		return "loading.status_finalizing"
	case percent < 100:
		return "loading.status_almost"
	default:
		return "loading.status_ready"
	}
}
