package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress is a point-in-time view of a run.
type Progress struct {
	Done    int
	Skipped int
	Total   int
	Elapsed time.Duration
}

// Percent returns Done as a share of Total. An empty run counts as complete.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Done) / float64(p.Total) * 100
}

// Rate returns processed capabilities per second.
func (p Progress) Rate() float64 {
	if p.Elapsed <= 0 {
		return 0
	}
	return float64(p.Done) / p.Elapsed.Seconds()
}

func (p Progress) String() string {
	s := fmt.Sprintf("Progress: %d/%d (%.1f%%) - %.1f capabilities/s", p.Done, p.Total, p.Percent(), p.Rate())
	if p.Skipped > 0 {
		s += fmt.Sprintf(" - %d skipped", p.Skipped)
	}
	return s
}

// ProgressTracker prints a carriage-return progress line every
// reportInterval capabilities. It is safe for concurrent use.
type ProgressTracker struct {
	mu       sync.Mutex
	w        io.Writer
	interval int
	now      func() time.Time

	progress Progress
	started  time.Time
	running  bool
	printed  int
}

// NewProgressTracker creates a tracker for total capabilities. A nil writer
// discards output; an interval below 1 reports on every increment.
func NewProgressTracker(w io.Writer, total, reportInterval int) *ProgressTracker {
	if w == nil {
		w = io.Discard
	}
	return &ProgressTracker{
		w:        w,
		interval: max(reportInterval, 1),
		now:      time.Now,
		progress: Progress{Total: total},
	}
}

// Start resets the counters and the clock.
func (t *ProgressTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.started = t.now()
	t.running = true
	t.printed = 0
	t.progress = Progress{Total: t.progress.Total}
}

// Increment records done more processed capabilities, skipped of which
// were left unchanged. Calls before Start are ignored.
func (t *ProgressTracker) Increment(done, skipped int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.progress.Done = min(t.progress.Done+done, t.progress.Total)
	t.progress.Skipped += skipped
	if t.progress.Done-t.printed >= t.interval {
		t.print()
	}
}

// Finish prints the final line.
func (t *ProgressTracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return
	}
	t.progress.Done = t.progress.Total
	t.print()
	fmt.Fprintln(t.w)
	t.running = false
}

// Snapshot returns the current progress.
func (t *ProgressTracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

// Elapsed returns the time since Start, or zero before it.
func (t *ProgressTracker) Elapsed() time.Duration {
	return t.Snapshot().Elapsed
}

func (t *ProgressTracker) snapshot() Progress {
	p := t.progress
	if !t.started.IsZero() {
		p.Elapsed = t.now().Sub(t.started)
	}
	return p
}

// print must be called with mu held.
func (t *ProgressTracker) print() {
	fmt.Fprintf(t.w, "\r%s", t.snapshot())
	t.printed = t.progress.Done
}
