package protocol

import (
	"errors"

	"github.com/dkeye/jsonrpcd/internal/app"
	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/dkeye/jsonrpcd/internal/domain"
	"github.com/rs/zerolog"
)

// getSession resolves by explicit session id, then by transport, and
// creates a session otherwise. An unknown explicit id falls through to
// creation; reconnect is the only method that rejects it.
func (m *Manager) getSession(factory core.ServerSessionFactory, tid core.TransportID, req *domain.Request) (*core.Session, error) {
	var s *core.Session
	if req.SessionID != "" {
		if found, ok := m.registry.Get(core.SessionID(req.SessionID)); ok && !found.IsClosed() {
			s = found
		} else {
			m.logger(zerolog.WarnLevel).Str("sid", req.SessionID).Msg("no session with specified id, creating a new one")
		}
	} else if tid != "" {
		if found, ok := m.registry.GetByTransport(tid); ok && !found.IsClosed() {
			s = found
		}
	}

	if s != nil {
		s.SetNew(false)
		return s, nil
	}

	created, err := m.createSession(factory, req)
	if err != nil {
		return nil, err
	}
	m.handler.AfterConnectionEstablished(created)
	return created, nil
}

func (m *Manager) createSession(factory core.ServerSessionFactory, req *domain.Request) (*core.Session, error) {
	id, err := m.secrets.NextSecret()
	if err != nil {
		return nil, err
	}
	s, err := factory.CreateSession(core.SessionID(id), req, m.registry)
	if err != nil {
		return nil, err
	}
	m.watchdog.AssociateSessionID(s.TransportID(), s.ID())
	m.registry.Put(s)
	m.metrics.SessionCreated()
	m.logger(zerolog.InfoLevel).Str("sid", string(s.ID())).Str("transport", string(s.TransportID())).Msg("session created")
	return s, nil
}

// ScheduleCloseIfTimeout is called when a transport drops. The session
// bound to it is closed after its reconnection timeout unless a reconnect
// cancels the timer first.
func (m *Manager) ScheduleCloseIfTimeout(tid core.TransportID, reason string) {
	s, ok := m.registry.GetByTransport(tid)
	if !ok {
		m.logger(zerolog.WarnLevel).Str("transport", string(tid)).Msg("transport is not associated with a session")
		return
	}

	closeAt := m.now().Add(s.ReconnectionTimeout())
	err := s.ArmCloseTimer(tid,
		func(fire func()) (core.Timer, error) { return m.scheduler.Schedule(fire, closeAt) },
		func() {
			m.metrics.CloseTimer("fired")
			m.finishClose(s, reason, causeTimeout)
		},
	)
	switch {
	case errors.Is(err, app.ErrSchedulerRejected):
		m.metrics.CloseTimer("rejected")
		m.logger(zerolog.WarnLevel).Str("sid", string(s.ID())).Str("transport", string(tid)).
			Msg("close timeout can not be set because the scheduler is shut down")
		return
	case errors.Is(err, core.ErrSessionClosed):
		m.logger(zerolog.DebugLevel).Str("sid", string(s.ID())).Msg("session already closed, no close timeout")
		return
	case errors.Is(err, core.ErrRebound):
		m.logger(zerolog.DebugLevel).Str("sid", string(s.ID())).Str("transport", string(tid)).
			Msg("session reconnected elsewhere, no close timeout")
		return
	case err != nil:
		m.metrics.CloseTimer("rejected")
		m.logger(zerolog.WarnLevel).Err(err).Str("sid", string(s.ID())).Msg("close timeout can not be set")
		return
	}

	m.metrics.CloseTimer("armed")
	m.logger(zerolog.InfoLevel).Str("sid", string(s.ID())).Str("transport", string(tid)).
		Time("close_at", closeAt).Msg("configuring close timeout")
	m.watchdog.DisablePingWatchdogForSession(tid)
}

// CloseSession removes s and notifies the handler. Only the first call
// has an effect.
func (m *Manager) CloseSession(s *core.Session, reason string) {
	if !s.MarkClosed() {
		m.logger(zerolog.DebugLevel).Str("sid", string(s.ID())).Msg("session already closed")
		return
	}
	m.finishClose(s, reason, causeClosed)
}

// CloseSessionByID closes a registered session; false if there is none.
func (m *Manager) CloseSessionByID(id core.SessionID, reason string) bool {
	s, ok := m.registry.Get(id)
	if !ok {
		return false
	}
	m.CloseSession(s, reason)
	s.CloseTransport()
	return true
}

// ReasonShutdown is reported for sessions still open when the server stops.
const ReasonShutdown = "server shutdown"

type sessionLister interface {
	List() []app.SessionInfo
}

// Shutdown turns the watchdog off and closes every registered session,
// returning how many were closed. It needs a registry that can list its
// sessions.
func (m *Manager) Shutdown(reason string) int {
	m.watchdog.SetEnabled(false)
	lister, ok := m.registry.(sessionLister)
	if !ok {
		return 0
	}
	closed := 0
	for _, info := range lister.List() {
		if m.CloseSessionByID(info.ID, reason) {
			closed++
		}
	}
	m.logger(zerolog.InfoLevel).Int("sessions", closed).Msg("manager shut down")
	return closed
}

func (m *Manager) finishClose(s *core.Session, reason, cause string) {
	m.logger(zerolog.InfoLevel).Str("sid", string(s.ID())).Str("transport", string(s.TransportID())).
		Str("reason", reason).Msg("removing session")
	m.registry.Remove(s)
	m.watchdog.RemoveSession(s)
	m.metrics.SessionClosed(cause)
	m.handler.AfterConnectionClosed(s, reason)
}

func (m *Manager) CancelCloseTimer(s *core.Session) {
	if s.CancelCloseTimer() {
		m.metrics.CloseTimer("cancelled")
		m.logger(zerolog.DebugLevel).Str("sid", string(s.ID())).Msg("close timer cancelled")
	}
}

// ProcessTransportError forwards to the handler; the session may be nil.
// Closing stays the transport's decision.
func (m *Manager) ProcessTransportError(tid core.TransportID, err error) {
	s, _ := m.registry.GetByTransport(tid)
	m.handler.HandleTransportError(s, err)
}

func (m *Manager) closeSilentTransport(tid core.TransportID, sid core.SessionID) {
	s, ok := m.registry.GetByTransport(tid)
	if !ok && sid != "" {
		s, ok = m.registry.Get(sid)
	}
	if !ok {
		m.logger(zerolog.WarnLevel).Str("transport", string(tid)).Msg("ping watchdog trying to close a non-registered session")
		return
	}
	if !s.MarkClosed() {
		return
	}
	m.finishClose(s, ReasonNoPing, causeWatchdog)
	s.CloseTransport()
}
