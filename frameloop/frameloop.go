// Package frameloop drives the per-frame tick of the visualizer.
package frameloop

import (
	"context"
	"sync"
	"time"
)

// Listener is invoked once per frame with the wall-clock time and the
// clamped elapsed delta in seconds.
type Listener func(now time.Time, dt float64)

// Driver schedules frames at a target rate. The measured frame delta is
// clamped to MaxDelta so animation never jumps after the process stalls
// (debugger pause, suspended host) and resumes.
type Driver struct {
	mu        sync.Mutex
	interval  time.Duration
	maxDelta  time.Duration
	listeners []Listener
}

// NewDriver constructs a driver targeting fps frames per second. maxDelta
// bounds the per-frame delta; zero selects the 100ms default.
func NewDriver(fps int, maxDelta time.Duration) *Driver {
	if fps <= 0 {
		fps = 60
	}
	if maxDelta <= 0 {
		maxDelta = 100 * time.Millisecond
	}
	return &Driver{
		interval: time.Second / time.Duration(fps),
		maxDelta: maxDelta,
	}
}

// AddListener registers a callback invoked on every frame, in registration
// order.
func (d *Driver) AddListener(fn Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Interval returns the frame interval.
func (d *Driver) Interval() time.Duration { return d.interval }

// Start runs the loop in its own goroutine until ctx is cancelled. It
// returns a channel closed when the loop exits.
func (d *Driver) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				dt := ClampDelta(now.Sub(last), d.maxDelta)
				last = now

				d.mu.Lock()
				listeners := append([]Listener(nil), d.listeners...)
				d.mu.Unlock()

				for _, fn := range listeners {
					fn(now, dt.Seconds())
				}
			}
		}
	}()
	return done
}

// ClampDelta bounds a frame delta to [0, max].
func ClampDelta(d, max time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > max {
		return max
	}
	return d
}
