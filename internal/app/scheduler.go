package app

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/rs/zerolog/log"
)

var ErrSchedulerRejected = errors.New("scheduler rejected task: shutting down")

// Scheduler runs callbacks once at an absolute time. After Shutdown it
// refuses new work and cancels everything still pending.
type Scheduler struct {
	mu       sync.Mutex
	pending  map[*timer]struct{}
	shutdown bool
	now      func() time.Time
}

var _ core.Scheduler = (*Scheduler)(nil)

func NewScheduler() *Scheduler {
	return &Scheduler{
		pending: make(map[*timer]struct{}),
		now:     time.Now,
	}
}

type timer struct {
	s *Scheduler
	t *time.Timer
}

// Cancel reports whether the callback was prevented from running.
func (t *timer) Cancel() bool {
	stopped := t.t.Stop()
	t.s.forget(t)
	return stopped
}

func (s *Scheduler) Schedule(fn func(), at time.Time) (core.Timer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return nil, ErrSchedulerRejected
	}
	t := &timer{s: s}
	t.t = time.AfterFunc(at.Sub(s.now()), func() {
		s.forget(t)
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("module", "app.scheduler").Interface("panic", r).Msg("scheduled task panicked")
			}
		}()
		fn()
	})
	s.pending[t] = struct{}{}
	return t, nil
}

func (s *Scheduler) forget(t *timer) {
	s.mu.Lock()
	delete(s.pending, t)
	s.mu.Unlock()
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.shutdown = true
	pending := s.pending
	s.pending = make(map[*timer]struct{})
	s.mu.Unlock()

	for t := range pending {
		t.t.Stop()
	}
	log.Info().Str("module", "app.scheduler").Int("cancelled", len(pending)).Msg("scheduler shut down")
}
