package reembed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppingClock advances by step on every reading.
func steppingClock(step time.Duration) func() time.Time {
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(step)
		return current
	}
}

func newTestTracker(buf *bytes.Buffer, total, interval int) *ProgressTracker {
	tracker := NewProgressTracker(buf, total, interval)
	tracker.now = steppingClock(time.Second)
	return tracker
}

func TestProgress_String(t *testing.T) {
	tests := []struct {
		name string
		p    Progress
		want string
	}{
		{"halfway", Progress{Done: 50, Total: 100, Elapsed: 10 * time.Second}, "Progress: 50/100 (50.0%) - 5.0 capabilities/s"},
		{"skipped", Progress{Done: 4, Skipped: 1, Total: 4, Elapsed: 2 * time.Second}, "Progress: 4/4 (100.0%) - 2.0 capabilities/s - 1 skipped"},
		{"empty run", Progress{}, "Progress: 0/0 (100.0%) - 0.0 capabilities/s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.String())
		})
	}
}

func TestProgressTracker_ReportsEveryInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTestTracker(&buf, 1000, 100)
	tracker.Start()

	tracker.Increment(50, 0)
	assert.Empty(t, buf.String(), "below the interval")

	tracker.Increment(50, 0)
	assert.Contains(t, buf.String(), "\rProgress: 100/1000 (10.0%)")

	buf.Reset()
	tracker.Increment(99, 0)
	assert.Empty(t, buf.String(), "interval counts from the last printed line")

	tracker.Increment(151, 0)
	assert.Contains(t, buf.String(), "350/1000 (35.0%)")
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTestTracker(&buf, 100, 10)
	tracker.Start()
	tracker.Increment(75, 0)
	tracker.Finish()

	out := buf.String()
	require.True(t, strings.HasSuffix(out, "\n"))
	lines := strings.Split(strings.TrimSpace(out), "\r")
	assert.Contains(t, lines[len(lines)-1], "100/100 (100.0%)")

	// A finished tracker ignores further updates.
	buf.Reset()
	tracker.Increment(1, 0)
	tracker.Finish()
	assert.Empty(t, buf.String())
}

func TestProgressTracker_ClampsToTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTestTracker(&buf, 100, 10)
	tracker.Start()
	tracker.Increment(150, 0)

	assert.Equal(t, 100, tracker.Snapshot().Done)
	assert.Contains(t, buf.String(), "100/100")
}

func TestProgressTracker_Skipped(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTestTracker(&buf, 10, 5)
	tracker.Start()

	tracker.Increment(5, 2)
	assert.Equal(t, 2, tracker.Snapshot().Skipped)
	assert.Contains(t, buf.String(), "- 2 skipped")

	tracker.Increment(5, 0)
	tracker.Finish()
	snap := tracker.Snapshot()
	assert.Equal(t, 2, snap.Skipped)
	assert.Equal(t, 10, snap.Done)
}

func TestProgressTracker_Elapsed(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTestTracker(&buf, 10, 10)
	assert.Zero(t, tracker.Elapsed(), "zero before Start")

	tracker.Start()
	assert.Equal(t, time.Second, tracker.Elapsed())
	assert.Equal(t, 2*time.Second, tracker.Elapsed())
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := newTestTracker(&buf, 100, 10)

	tracker.Increment(10, 0)
	tracker.Finish()

	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Snapshot().Done)
}

func TestProgressTracker_NilWriter(t *testing.T) {
	tracker := NewProgressTracker(nil, 3, 0)
	tracker.Start()
	tracker.Increment(3, 0)
	tracker.Finish()
	assert.Equal(t, 3, tracker.Snapshot().Done)
}
