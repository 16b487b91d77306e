package protocol

import (
	"time"

	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/dkeye/jsonrpcd/internal/domain"
	"github.com/rs/zerolog"
)

func (m *Manager) processRequest(factory core.ServerSessionFactory, req *domain.Request, sender core.ResponseSender, tid core.TransportID) error {
	switch req.Method {
	case domain.MethodReconnect:
		m.logger(zerolog.DebugLevel).Str("transport", string(tid)).Stringer("req", req).Msg("Req->")
		return m.processReconnect(factory, req, sender, tid)
	case domain.MethodPing:
		m.logger(zerolog.TraceLevel).Str("transport", string(tid)).Stringer("req", req).Msg("Req->")
		return m.processPing(req, sender, tid)
	}

	s, err := m.getSession(factory, tid, req)
	if err != nil {
		m.logger(zerolog.ErrorLevel).Err(err).Str("transport", string(tid)).Msg("cannot resolve session")
		return m.replyError(sender, req, domain.AsResponseError(err))
	}
	m.logger(zerolog.DebugLevel).Str("sid", string(s.ID())).Str("transport", string(tid)).Stringer("req", req).Msg("Req->")

	if req.Method == domain.MethodPoll {
		return m.processPoll(s, req, sender)
	}
	if err := m.handler.HandleRequest(s, req, sender); err != nil {
		m.logger(zerolog.WarnLevel).Err(err).Str("sid", string(s.ID())).Str("method", req.Method).Msg("handler failed")
		return m.replyError(sender, req, domain.AsResponseError(err))
	}
	return nil
}

func (m *Manager) processReconnect(factory core.ServerSessionFactory, req *domain.Request, sender core.ResponseSender, tid core.TransportID) error {
	if req.SessionID == "" {
		s, err := m.getSession(factory, tid, req)
		if err != nil {
			m.logger(zerolog.ErrorLevel).Err(err).Str("transport", string(tid)).Msg("cannot resolve session")
			return m.replyError(sender, req, domain.AsResponseError(err))
		}
		return sendErr(sender.SendResponse(domain.NewResult(string(s.ID()), req.ID, domain.ReconnectionOK)))
	}

	sid := core.SessionID(req.SessionID)
	if s, ok := m.registry.Get(sid); ok {
		old, err := s.Rebind(tid)
		if err == nil {
			m.evictFromTransport(s, tid)
			factory.UpdateSessionOnReconnection(s)
			m.watchdog.UpdateTransportID(tid, old)
			m.registry.UpdateTransportID(s, old)
			m.metrics.Reconnect(true)
			m.logger(zerolog.InfoLevel).Str("sid", string(sid)).Str("from", string(old)).Str("to", string(tid)).Msg("session reconnected")
			return sendErr(sender.SendResponse(domain.NewResult(req.SessionID, req.ID, domain.ReconnectionSuccessful)))
		}
		m.logger(zerolog.InfoLevel).Str("sid", string(sid)).Msg("reconnect lost the race against session close")
	}

	m.metrics.Reconnect(false)
	m.logger(zerolog.InfoLevel).Str("sid", string(sid)).Str("transport", string(tid)).Msg("reconnect to unknown session")
	return sendErr(sender.SendResponse(domain.NewErrorResponse(req.ID, domain.ReconnectionError())))
}

// evictFromTransport closes the session that tid belonged to before s
// reconnected onto it. The connection stays open; it now carries s.
func (m *Manager) evictFromTransport(s *core.Session, tid core.TransportID) {
	other, ok := m.registry.GetByTransport(tid)
	if !ok || other == s {
		return
	}
	m.logger(zerolog.InfoLevel).Str("sid", string(other.ID())).Str("transport", string(tid)).
		Str("by", string(s.ID())).Msg("session replaced on its transport")
	m.CloseSession(other, ReasonReplaced)
}

type pingParams struct {
	Interval int64 `json:"interval"`
}

func (m *Manager) processPing(req *domain.Request, sender core.ResponseSender, tid core.TransportID) error {
	n := m.heartbeats.Add(1)
	if limit := m.maxHeartbeats.Load(); limit > 0 && n > limit {
		m.metrics.Ping(false)
		m.logger(zerolog.DebugLevel).Str("transport", string(tid)).Int64("heartbeat", n).Msg("heartbeat limit reached, ping dropped")
		return nil
	}

	var p pingParams
	if err := req.DecodeParams(&p); err != nil {
		m.logger(zerolog.DebugLevel).Err(err).Str("transport", string(tid)).Msg("ignoring ping params")
	}
	m.watchdog.PingReceived(tid, time.Duration(p.Interval)*time.Millisecond)
	m.metrics.Ping(true)

	pong := map[string]string{domain.PongPayloadField: domain.Pong}
	return sendErr(sender.SendPingResponse(domain.NewResult(req.SessionID, req.ID, pong)))
}

// processPoll delivers responses the client queued for server-initiated
// requests and acknowledges with an empty list.
func (m *Manager) processPoll(s *core.Session, req *domain.Request, sender core.ResponseSender) error {
	responses, err := domain.DecodeResponses(req.Params)
	if err != nil {
		m.logger(zerolog.WarnLevel).Err(err).Str("sid", string(s.ID())).Msg("bad poll params")
		return m.replyError(sender, req, domain.InvalidParams(err))
	}
	for _, resp := range responses {
		if !s.HandleResponse(resp) {
			m.logger(zerolog.WarnLevel).Str("sid", string(s.ID())).Str("id", domain.IDKey(resp.ID)).Msg("polled response has no pending request")
		}
	}
	return sendErr(sender.SendResponse(domain.NewResult(string(s.ID()), req.ID, []any{})))
}
