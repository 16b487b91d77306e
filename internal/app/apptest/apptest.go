// Package apptest has deterministic stand-ins for the scheduler and the
// clock, so timer driven behaviour can be tested without sleeping.
package apptest

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/jsonrpcd/internal/app"
	"github.com/dkeye/jsonrpcd/internal/core"
)

type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

type Timer struct {
	s         *Scheduler
	fn        func()
	At        time.Time
	cancelled bool
	fired     bool
}

func (t *Timer) Cancel() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.cancelled || t.fired {
		return false
	}
	t.cancelled = true
	return true
}

func (t *Timer) Cancelled() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.cancelled
}

// Scheduler records timers and runs them only when told to.
type Scheduler struct {
	mu     sync.Mutex
	timers []*Timer
	reject bool
}

var _ core.Scheduler = (*Scheduler)(nil)

func NewScheduler() *Scheduler { return &Scheduler{} }

func (s *Scheduler) Schedule(fn func(), at time.Time) (core.Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return nil, app.ErrSchedulerRejected
	}
	t := &Timer{s: s, fn: fn, At: at}
	s.timers = append(s.timers, t)
	return t, nil
}

// Reject makes later Schedule calls fail like a shut down scheduler.
func (s *Scheduler) Reject() {
	s.mu.Lock()
	s.reject = true
	s.mu.Unlock()
}

// Armed returns the timers that neither fired nor were cancelled, earliest
// first.
func (s *Scheduler) Armed() []*Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Timer
	for _, t := range s.timers {
		if !t.cancelled && !t.fired {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// FireUntil runs every armed timer due at or before now and returns how
// many ran. Callbacks run without the scheduler lock held.
func (s *Scheduler) FireUntil(now time.Time) int {
	s.mu.Lock()
	var due []*Timer
	for _, t := range s.timers {
		if !t.cancelled && !t.fired && !t.At.After(now) {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].At.Before(due[j].At) })
	for _, t := range due {
		t.fn()
	}
	return len(due)
}

// Fire runs t as if its time had come, even if it was cancelled. This is
// how a callback that already started before Cancel is simulated.
func (s *Scheduler) Fire(t *Timer) {
	s.mu.Lock()
	t.fired = true
	s.mu.Unlock()
	t.fn()
}
