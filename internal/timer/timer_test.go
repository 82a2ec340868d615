package timer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told to, so tests never sleep.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestElapsedMode(t *testing.T) {
	clock := newFakeClock()
	tm := New(ModeElapsed, 0, WithNow(clock.now))

	require.Equal(t, time.Duration(0), tm.Elapsed())

	tm.Start()
	defer tm.Stop()
	clock.advance(42 * time.Second)

	require.Equal(t, 42*time.Second, tm.Elapsed())
	require.Equal(t, time.Duration(0), tm.Remaining())
}

func TestPauseExcludedFromElapsed(t *testing.T) {
	clock := newFakeClock()
	tm := New(ModeElapsed, 0, WithNow(clock.now))
	tm.Start()
	defer tm.Stop()

	clock.advance(10 * time.Second)
	tm.Pause()
	clock.advance(5 * time.Minute) // frozen
	require.Equal(t, 10*time.Second, tm.Elapsed())

	tm.Resume()
	clock.advance(20 * time.Second)
	require.Equal(t, 30*time.Second, tm.Elapsed())

	// Pause and Resume are idempotent.
	tm.Resume()
	tm.Pause()
	tm.Pause()
	require.Equal(t, 30*time.Second, tm.Elapsed())
}

func TestCountdownRemaining(t *testing.T) {
	clock := newFakeClock()
	tm := New(ModeCountdown, 10*time.Minute, WithNow(clock.now))
	tm.Start()
	defer tm.Stop()

	clock.advance(4 * time.Minute)
	require.Equal(t, 6*time.Minute, tm.Remaining())

	clock.advance(10 * time.Minute)
	require.Equal(t, time.Duration(0), tm.Remaining()) // never negative
}

func TestCountdownWarningsFireOnce(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	var warned []time.Duration
	tm := New(ModeCountdown, 10*time.Minute,
		WithNow(clock.now),
		WithWarnings([]time.Duration{5 * time.Minute, time.Minute}, func(rem time.Duration) {
			mu.Lock()
			warned = append(warned, rem)
			mu.Unlock()
		}))
	tm.Start()
	defer tm.Stop()

	clock.advance(4 * time.Minute)
	tm.Poll()
	tm.Poll() // threshold already fired, stays quiet
	mu.Lock()
	require.Equal(t, []time.Duration{6 * time.Minute}, warned)
	mu.Unlock()

	clock.advance(5*time.Minute + 30*time.Second)
	tm.Poll()
	mu.Lock()
	require.Equal(t, []time.Duration{6 * time.Minute, 30 * time.Second}, warned)
	mu.Unlock()
}

func TestCountdownExpiresOnce(t *testing.T) {
	clock := newFakeClock()
	var expired atomic.Int32
	tm := New(ModeCountdown, time.Minute,
		WithNow(clock.now),
		WithExpire(func() { expired.Add(1) }))
	tm.Start()
	defer tm.Stop()

	tm.Poll()
	require.Equal(t, int32(0), expired.Load())

	clock.advance(2 * time.Minute)
	tm.Poll()
	tm.Poll()
	require.Equal(t, int32(1), expired.Load())
}

func TestPollIgnoredWhilePaused(t *testing.T) {
	clock := newFakeClock()
	expired := 0
	tm := New(ModeCountdown, time.Minute,
		WithNow(clock.now),
		WithExpire(func() { expired++ }))
	tm.Start()
	defer tm.Stop()

	tm.Pause()
	clock.advance(5 * time.Minute)
	tm.Poll()
	require.Equal(t, 0, expired)
}

func TestStopRetainsElapsed(t *testing.T) {
	clock := newFakeClock()
	tm := New(ModeElapsed, 0, WithNow(clock.now))
	tm.Start()
	clock.advance(time.Minute)
	tm.Stop()

	clock.advance(time.Hour)
	require.Equal(t, time.Minute, tm.Elapsed())

	// Stopping twice is safe.
	tm.Stop()
}
