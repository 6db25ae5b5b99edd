package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestSlidingWindowAllowsUpToLimit(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	w := NewSlidingWindow(3, time.Minute, clock)

	for i := 0; i < 3; i++ {
		ok, _ := w.Allow("user-a")
		assert.True(t, ok, "hit %d should be allowed", i)
	}
	ok, retryAfter := w.Allow("user-a")
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestSlidingWindowKeysAreIndependent(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	w := NewSlidingWindow(1, time.Minute, clock)

	ok, _ := w.Allow("user-a")
	assert.True(t, ok)
	ok, _ = w.Allow("user-b")
	assert.True(t, ok)
	ok, _ = w.Allow("user-a")
	assert.False(t, ok)
}

func TestSlidingWindowAgesOutHits(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	w := NewSlidingWindow(2, time.Minute, clock)

	w.Allow("user-a")
	clock.now = clock.now.Add(30 * time.Second)
	w.Allow("user-a")

	ok, _ := w.Allow("user-a")
	assert.False(t, ok)

	// The first hit ages out, leaving room for one more.
	clock.now = clock.now.Add(45 * time.Second)
	ok, _ = w.Allow("user-a")
	assert.True(t, ok)
	ok, _ = w.Allow("user-a")
	assert.False(t, ok)
}

func TestSlidingWindowReset(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	w := NewSlidingWindow(1, time.Minute, clock)

	w.Allow("user-a")
	ok, _ := w.Allow("user-a")
	assert.False(t, ok)

	w.Reset("user-a")
	ok, _ = w.Allow("user-a")
	assert.True(t, ok)
}
