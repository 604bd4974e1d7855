// Package timer measures elapsed wall time for diagnostics.
//
// A Timer always reports a well-defined, non-negative duration: before Stop it
// reports the running time, after Stop it reports the frozen value.
package timer

import (
	"sync"
	"time"
)

// Timer measures the time between Start and Stop
type Timer struct {
	mu      sync.Mutex
	start   time.Time
	elapsed time.Duration
	stopped bool
}

// Start returns a running timer
func Start() *Timer {
	return &Timer{start: time.Now()}
}

// Stop freezes the timer and returns the elapsed duration. Calling Stop again
// returns the first measurement.
func (t *Timer) Stop() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.elapsed = time.Since(t.start)
		t.stopped = true
	}
	return t.elapsed
}

// Elapsed returns the running duration, or the frozen one once stopped
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return t.elapsed
	}
	return time.Since(t.start)
}

// Stopped reports whether Stop has been called
func (t *Timer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Milliseconds returns Elapsed as fractional milliseconds
func (t *Timer) Milliseconds() float64 {
	return float64(t.Elapsed()) / float64(time.Millisecond)
}

// Track runs fn and returns its error together with its duration. The duration
// is recorded even when fn fails or panics.
func Track(fn func() error) (elapsed time.Duration, err error) {
	t := Start()
	defer func() {
		elapsed = t.Stop()
	}()
	err = fn()
	return elapsed, err
}
