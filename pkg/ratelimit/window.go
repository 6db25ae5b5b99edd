package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts time for the in-process limiter so throttle behavior
// is testable with a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// SlidingWindow is an in-process per-key sliding window counter. It
// guards engine mutations (start/stop/reduce and friends) without a
// network hop; the redis limiter covers the outer API tier.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	clock  Clock
	hits   map[string][]time.Time
}

// NewSlidingWindow creates a limiter allowing limit events per window per key
func NewSlidingWindow(limit int, window time.Duration, clock Clock) *SlidingWindow {
	if clock == nil {
		clock = SystemClock{}
	}
	return &SlidingWindow{
		limit:  limit,
		window: window,
		clock:  clock,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records an event for key and reports whether it fits the window.
// When rejected, retryAfter is how long until the oldest hit ages out.
func (w *SlidingWindow) Allow(key string) (allowed bool, retryAfter time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	cutoff := now.Add(-w.window)

	recent := w.hits[key][:0]
	for _, t := range w.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= w.limit {
		w.hits[key] = recent
		return false, recent[0].Sub(cutoff)
	}

	w.hits[key] = append(recent, now)
	return true, 0
}

// Reset clears all recorded hits for a key
func (w *SlidingWindow) Reset(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.hits, key)
}
