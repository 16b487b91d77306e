package app

import (
	"sort"
	"sync"

	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Session   *core.Session
	Transport core.TransportID
}

// Registry is the single owner of live sessions. Both indexes change under
// one lock, so a rebind is never observable half-done.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[core.SessionID]*sessionEntry
	byTransport map[core.TransportID]*core.Session
}

var _ core.SessionRegistry = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		sessions:    make(map[core.SessionID]*sessionEntry),
		byTransport: make(map[core.TransportID]*core.Session),
	}
}

func (r *Registry) Put(s *core.Session) {
	tid := s.TransportID()
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.sessions[s.ID()]; ok {
		r.unindexLocked(prev)
	}
	r.sessions[s.ID()] = &sessionEntry{Session: s, Transport: tid}
	if tid != "" {
		r.byTransport[tid] = s
	}
	log.Info().Str("module", "app.registry").Str("sid", string(s.ID())).Str("transport", string(tid)).Msg("session registered")
}

func (r *Registry) Get(id core.SessionID) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[id]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) GetByTransport(tid core.TransportID) (*core.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byTransport[tid]
	return s, ok
}

// UpdateTransportID re-indexes s under its current transport id. It is a
// no-op for sessions that are no longer registered.
func (r *Registry) UpdateTransportID(s *core.Session, oldTransportID core.TransportID) {
	tid := s.TransportID()
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[s.ID()]
	if !ok || e.Session != s {
		log.Warn().Str("module", "app.registry").Str("sid", string(s.ID())).Msg("rebind of unregistered session ignored")
		return
	}
	if cur, ok := r.byTransport[oldTransportID]; ok && cur == s {
		delete(r.byTransport, oldTransportID)
	}
	if e.Transport != oldTransportID {
		if cur, ok := r.byTransport[e.Transport]; ok && cur == s {
			delete(r.byTransport, e.Transport)
		}
	}
	e.Transport = tid
	if tid != "" {
		r.byTransport[tid] = s
	}
	log.Info().Str("module", "app.registry").Str("sid", string(s.ID())).Str("from", string(oldTransportID)).Str("to", string(tid)).Msg("transport rebound")
}

// Remove drops s from both indexes; removing twice is harmless.
func (r *Registry) Remove(s *core.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[s.ID()]
	if !ok || e.Session != s {
		return
	}
	r.unindexLocked(e)
	log.Info().Str("module", "app.registry").Str("sid", string(s.ID())).Msg("session removed")
}

func (r *Registry) unindexLocked(e *sessionEntry) {
	delete(r.sessions, e.Session.ID())
	if cur, ok := r.byTransport[e.Transport]; ok && cur == e.Session {
		delete(r.byTransport, e.Transport)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SessionInfo is a read-only view for the admin API.
type SessionInfo struct {
	ID                core.SessionID   `json:"id"`
	Transport         core.TransportID `json:"transport"`
	New               bool             `json:"new"`
	AwaitingReconnect bool             `json:"awaiting_reconnect"`
}

func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]SessionInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, SessionInfo{
			ID:                e.Session.ID(),
			Transport:         e.Session.TransportID(),
			New:               e.Session.IsNew(),
			AwaitingReconnect: e.Session.AwaitingReconnect(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
