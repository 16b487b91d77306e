package app

import (
	"sync"
	"time"

	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPingInterval = 5 * time.Second
	DefaultMissedPings  = 3
)

// WatchdogCloser is called when a transport stays silent past its deadline.
type WatchdogCloser func(tid core.TransportID, sid core.SessionID)

type watchdogEntry struct {
	transport core.TransportID
	sessionID core.SessionID
	lastPing  time.Time
	interval  time.Duration
	timer     core.Timer
	gen       uint64
}

// PingWatchdog tracks heartbeat liveness per transport. It refers to
// sessions by id only; the registry stays the owner of session values.
// An entry starts counting on its first ping.
type PingWatchdog struct {
	mu          sync.Mutex
	scheduler   core.Scheduler
	closer      WatchdogCloser
	enabled     bool
	interval    time.Duration
	missedPings int
	entries     map[core.TransportID]*watchdogEntry
	bySession   map[core.SessionID]core.TransportID
	now         func() time.Time
}

func NewPingWatchdog(scheduler core.Scheduler, closer WatchdogCloser) *PingWatchdog {
	return &PingWatchdog{
		scheduler:   scheduler,
		closer:      closer,
		enabled:     true,
		interval:    DefaultPingInterval,
		missedPings: DefaultMissedPings,
		entries:     make(map[core.TransportID]*watchdogEntry),
		bySession:   make(map[core.SessionID]core.TransportID),
		now:         time.Now,
	}
}

// SetDefaults changes the interval used when a ping does not carry one and
// how many intervals may pass without a ping.
func (w *PingWatchdog) SetDefaults(interval time.Duration, missedPings int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if interval > 0 {
		w.interval = interval
	}
	if missedPings > 0 {
		w.missedPings = missedPings
	}
}

func (w *PingWatchdog) SetClock(now func() time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = now
}

func (w *PingWatchdog) SetEnabled(enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enabled = enabled
	if !enabled {
		for _, e := range w.entries {
			w.stopLocked(e)
		}
	}
	log.Info().Str("module", "app.watchdog").Bool("enabled", enabled).Msg("ping watchdog toggled")
}

func (w *PingWatchdog) Enabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enabled
}

// PingReceived refreshes liveness of tid; a positive interval overrides the
// expected ping period for this transport.
func (w *PingWatchdog) PingReceived(tid core.TransportID, interval time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.enabled {
		return
	}
	e := w.entryLocked(tid)
	e.lastPing = w.now()
	if interval > 0 {
		e.interval = interval
	}
	w.armLocked(e)
}

func (w *PingWatchdog) AssociateSessionID(tid core.TransportID, sid core.SessionID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e := w.entryLocked(tid)
	w.unbindLocked(e)
	e.sessionID = sid
	w.bindLocked(e)
}

// UpdateTransportID moves tracking from oldID to newID.
func (w *PingWatchdog) UpdateTransportID(newID, oldID core.TransportID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[oldID]
	if !ok {
		return
	}
	delete(w.entries, oldID)
	w.unbindLocked(e)
	if prev, ok := w.entries[newID]; ok && prev != e {
		w.stopLocked(prev)
		w.unbindLocked(prev)
		if e.sessionID == "" {
			e.sessionID = prev.sessionID
		}
	}
	e.transport = newID
	w.entries[newID] = e
	w.bindLocked(e)
}

// DisablePingWatchdogForSession stops the deadline of a transport that is
// known to be gone. The session association is kept.
func (w *PingWatchdog) DisablePingWatchdogForSession(tid core.TransportID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.entries[tid]; ok {
		w.stopLocked(e)
	}
}

// RemoveSession forgets the entry associated with s and the entry of its
// current transport, unless that one belongs to another session.
func (w *PingWatchdog) RemoveSession(s *core.Session) {
	tid := s.TransportID()
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.bySession[s.ID()]; ok {
		if e, ok := w.entries[t]; ok {
			w.dropLocked(e)
		}
		delete(w.bySession, s.ID())
	}
	if e, ok := w.entries[tid]; ok && (e.sessionID == "" || e.sessionID == s.ID()) {
		w.dropLocked(e)
	}
}

// Tracked reports the session associated with tid, if tid is tracked.
func (w *PingWatchdog) Tracked(tid core.TransportID) (core.SessionID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[tid]
	if !ok {
		return "", false
	}
	return e.sessionID, true
}

func (w *PingWatchdog) entryLocked(tid core.TransportID) *watchdogEntry {
	e, ok := w.entries[tid]
	if !ok {
		e = &watchdogEntry{transport: tid, interval: w.interval}
		w.entries[tid] = e
	}
	return e
}

func (w *PingWatchdog) bindLocked(e *watchdogEntry) {
	if e.sessionID != "" {
		w.bySession[e.sessionID] = e.transport
	}
}

func (w *PingWatchdog) unbindLocked(e *watchdogEntry) {
	if e.sessionID != "" && w.bySession[e.sessionID] == e.transport {
		delete(w.bySession, e.sessionID)
	}
}

func (w *PingWatchdog) dropLocked(e *watchdogEntry) {
	w.stopLocked(e)
	w.unbindLocked(e)
	delete(w.entries, e.transport)
}

func (w *PingWatchdog) stopLocked(e *watchdogEntry) {
	if e.timer != nil {
		e.timer.Cancel()
		e.timer = nil
	}
	e.gen++
}

func (w *PingWatchdog) armLocked(e *watchdogEntry) {
	w.stopLocked(e)
	gen := e.gen
	deadline := e.lastPing.Add(e.interval * time.Duration(w.missedPings))
	t, err := w.scheduler.Schedule(func() { w.expire(e, gen) }, deadline)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.watchdog").Str("transport", string(e.transport)).Msg("cannot arm ping deadline")
		return
	}
	e.timer = t
}

func (w *PingWatchdog) expire(e *watchdogEntry, gen uint64) {
	w.mu.Lock()
	if e.gen != gen || w.entries[e.transport] != e {
		w.mu.Unlock()
		return
	}
	delete(w.entries, e.transport)
	w.unbindLocked(e)
	tid, sid, last := e.transport, e.sessionID, e.lastPing
	e.timer = nil
	w.mu.Unlock()

	log.Warn().Str("module", "app.watchdog").Str("transport", string(tid)).Str("sid", string(sid)).
		Time("last_ping", last).Msg("no ping received in time")
	if w.closer != nil {
		w.closer(tid, sid)
	}
}
