// Package sched provides the scheduled-task abstraction used for
// auto-save ticks and periodic syncs. Callers must invoke the returned
// cancel function on teardown so no timer outlives its owner.
package sched

import "time"

// Scheduler repeatedly runs a callback at a fixed interval.
type Scheduler interface {
	// Schedule starts running fn every interval and returns a cancel
	// function. Cancel is idempotent.
	Schedule(interval time.Duration, fn func()) (cancel func())
}

// TickerScheduler runs callbacks on real time.Ticker goroutines.
type TickerScheduler struct{}

func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{}
}

func (s *TickerScheduler) Schedule(interval time.Duration, fn func()) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var cancelled bool
	return func() {
		if cancelled {
			return
		}
		cancelled = true
		ticker.Stop()
		close(done)
	}
}

// ManualScheduler fires only when Tick is called, for tests.
type ManualScheduler struct {
	fns []func()
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) Schedule(interval time.Duration, fn func()) func() {
	idx := len(s.fns)
	s.fns = append(s.fns, fn)
	return func() {
		if idx < len(s.fns) {
			s.fns[idx] = nil
		}
	}
}

// Tick runs every scheduled callback once.
func (s *ManualScheduler) Tick() {
	for _, fn := range s.fns {
		if fn != nil {
			fn()
		}
	}
}
