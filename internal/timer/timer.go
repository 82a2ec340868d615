// Package timer provides the elapsed/countdown clock consumed by exam
// mode sessions, with pause/resume and threshold warnings.
package timer

import (
	"sync"
	"time"
)

// Mode selects whether the timer counts up or down.
type Mode int

const (
	// ModeElapsed counts time since Start, unbounded.
	ModeElapsed Mode = iota
	// ModeCountdown counts down from a fixed duration and expires.
	ModeCountdown
)

// Warning is fired once when remaining time crosses its threshold.
type Warning struct {
	Threshold time.Duration
	fired     bool
}

// WarnFunc receives the remaining time when a warning threshold is crossed.
type WarnFunc func(remaining time.Duration)

// ExpireFunc is called once when a countdown reaches zero.
type ExpireFunc func()

// Timer is an elapsed or countdown clock. The zero value is not usable;
// construct with New.
type Timer struct {
	mu          sync.Mutex
	mode        Mode
	duration    time.Duration
	startedAt   time.Time
	pausedAt    time.Time
	accumulated time.Duration
	running     bool
	paused      bool
	warnings    []Warning
	onWarn      WarnFunc
	onExpire    ExpireFunc
	expired     bool
	stopTick    func()
	now         func() time.Time
}

// Option customizes a Timer.
type Option func(*Timer)

// WithWarnings arms warning thresholds (remaining time for countdown,
// elapsed time for elapsed mode).
func WithWarnings(thresholds []time.Duration, fn WarnFunc) Option {
	return func(t *Timer) {
		for _, th := range thresholds {
			t.warnings = append(t.warnings, Warning{Threshold: th})
		}
		t.onWarn = fn
	}
}

// WithExpire sets the countdown-expired callback.
func WithExpire(fn ExpireFunc) Option {
	return func(t *Timer) { t.onExpire = fn }
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

// New creates a timer. Duration is ignored in elapsed mode.
func New(mode Mode, duration time.Duration, opts ...Option) *Timer {
	t := &Timer{mode: mode, duration: duration, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins the clock and a once-per-second poll for warnings and
// expiry. Calling Start on a running timer is a no-op.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	t.running = true
	t.paused = false
	t.expired = false
	t.accumulated = 0
	t.startedAt = t.now()
	t.mu.Unlock()

	ticker := time.NewTicker(time.Second)
	done := make(chan struct{})
	t.mu.Lock()
	t.stopTick = func() {
		ticker.Stop()
		close(done)
	}
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				t.Poll()
			case <-done:
				return
			}
		}
	}()
}

// Pause freezes the clock. No-op while already paused or stopped.
func (t *Timer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || t.paused {
		return
	}
	t.paused = true
	t.pausedAt = t.now()
}

// Resume continues a paused clock.
func (t *Timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running || !t.paused {
		return
	}
	t.accumulated += t.pausedAt.Sub(t.startedAt)
	t.startedAt = t.now()
	t.paused = false
}

// Stop halts the clock and its poll goroutine. Elapsed time is retained.
func (t *Timer) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	if t.paused {
		t.accumulated += t.pausedAt.Sub(t.startedAt)
	} else {
		t.accumulated += t.now().Sub(t.startedAt)
	}
	t.running = false
	t.paused = false
	stop := t.stopTick
	t.stopTick = nil
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Elapsed returns total running time, pauses excluded.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsedLocked()
}

func (t *Timer) elapsedLocked() time.Duration {
	if !t.running {
		return t.accumulated
	}
	if t.paused {
		return t.accumulated + t.pausedAt.Sub(t.startedAt)
	}
	return t.accumulated + t.now().Sub(t.startedAt)
}

// Remaining returns time left on a countdown, never negative. Elapsed
// mode always reports zero.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked()
}

func (t *Timer) remainingLocked() time.Duration {
	if t.mode != ModeCountdown {
		return 0
	}
	rem := t.duration - t.elapsedLocked()
	if rem < 0 {
		rem = 0
	}
	return rem
}

// Poll checks warning thresholds and countdown expiry. The internal
// ticker calls it every second; tests call it directly with a fake clock.
func (t *Timer) Poll() {
	t.mu.Lock()
	if !t.running || t.paused {
		t.mu.Unlock()
		return
	}

	var fire []time.Duration
	var expired bool

	switch t.mode {
	case ModeCountdown:
		rem := t.remainingLocked()
		for i := range t.warnings {
			if !t.warnings[i].fired && rem <= t.warnings[i].Threshold {
				t.warnings[i].fired = true
				fire = append(fire, rem)
			}
		}
		if rem == 0 && !t.expired {
			t.expired = true
			expired = true
		}
	case ModeElapsed:
		el := t.elapsedLocked()
		for i := range t.warnings {
			if !t.warnings[i].fired && el >= t.warnings[i].Threshold {
				t.warnings[i].fired = true
				fire = append(fire, el)
			}
		}
	}
	onWarn := t.onWarn
	onExpire := t.onExpire
	t.mu.Unlock()

	if onWarn != nil {
		for _, v := range fire {
			onWarn(v)
		}
	}
	if expired && onExpire != nil {
		onExpire()
	}
}
