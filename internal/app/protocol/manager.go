// Package protocol implements the session layer beneath JSON-RPC: message
// classification, reserved methods (reconnect, ping, poll), session
// resolution and the close timers that give a dropped transport a grace
// period to come back.
package protocol

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dkeye/jsonrpcd/internal/app"
	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/dkeye/jsonrpcd/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// ReasonNoPing is reported to the handler when the watchdog closes a session.
	ReasonNoPing = "no ping received"
	// ReasonReplaced is reported for a session whose transport was taken
	// over by another session reconnecting.
	ReasonReplaced = "replaced by reconnect"
)

// Close causes, used as a metrics label.
const (
	causeTimeout  = "timeout"
	causeWatchdog = "watchdog"
	causeClosed   = "closed"
)

type Manager struct {
	handler   core.Handler
	registry  core.SessionRegistry
	scheduler core.Scheduler
	watchdog  *app.PingWatchdog
	secrets   core.SecretGenerator
	metrics   *app.Metrics
	label     string
	now       func() time.Time

	maxHeartbeats atomic.Int64
	heartbeats    atomic.Int64
}

type Option func(*Manager)

func WithLabel(label string) Option {
	return func(m *Manager) { m.label = label }
}

func WithSecretGenerator(g core.SecretGenerator) Option {
	return func(m *Manager) { m.secrets = g }
}

func WithMetrics(metrics *app.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

func WithMaxHeartbeats(n int) Option {
	return func(m *Manager) { m.SetMaxHeartbeats(n) }
}

func WithPingWatchdog(enabled bool) Option {
	return func(m *Manager) { m.SetPingWatchdog(enabled) }
}

// WithWatchdogDefaults sets the ping interval assumed when a ping carries
// none and how many intervals may pass silently.
func WithWatchdogDefaults(interval time.Duration, missedPings int) Option {
	return func(m *Manager) { m.watchdog.SetDefaults(interval, missedPings) }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
		m.watchdog.SetClock(now)
	}
}

func NewManager(handler core.Handler, registry core.SessionRegistry, scheduler core.Scheduler, opts ...Option) *Manager {
	m := &Manager{
		handler:   handler,
		registry:  registry,
		scheduler: scheduler,
		secrets:   app.SecretGenerator{},
		now:       time.Now,
	}
	m.watchdog = app.NewPingWatchdog(scheduler, m.closeSilentTransport)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) SetLabel(label string) { m.label = label }

// SetMaxHeartbeats limits how many pings this manager answers; later pings
// are dropped so that clients can be driven into a timeout. Meant for
// testing; 0 means unlimited.
func (m *Manager) SetMaxHeartbeats(n int) { m.maxHeartbeats.Store(int64(n)) }

func (m *Manager) SetPingWatchdog(enabled bool) { m.watchdog.SetEnabled(enabled) }

func (m *Manager) Watchdog() *app.PingWatchdog { return m.watchdog }

func (m *Manager) Registry() core.SessionRegistry { return m.registry }

func (m *Manager) logger(level zerolog.Level) *zerolog.Event {
	ev := log.WithLevel(level).Str("module", "app.protocol")
	if m.label != "" {
		ev = ev.Str("label", m.label)
	}
	return ev
}

// ProcessMessage decodes raw and dispatches it. Only decode failures and
// failures to write a response are returned.
func (m *Manager) ProcessMessage(raw []byte, factory core.ServerSessionFactory, sender core.ResponseSender, tid core.TransportID) error {
	msg, err := domain.Decode(raw)
	if err != nil {
		m.metrics.Message("invalid")
		m.logger(zerolog.WarnLevel).Err(err).Str("transport", string(tid)).Msg("discarding malformed message")
		return err
	}
	return m.ProcessDecoded(msg, factory, sender, tid)
}

func (m *Manager) ProcessDecoded(msg domain.Message, factory core.ServerSessionFactory, sender core.ResponseSender, tid core.TransportID) error {
	if msg.IsRequest() {
		m.metrics.Message("request")
		return m.processRequest(factory, msg.Request, sender, tid)
	}
	if msg.Response != nil {
		m.metrics.Message("response")
		m.processResponse(msg.Response, tid)
	}
	return nil
}

// processResponse resolves the session strictly by transport: a raw
// response carries no session handshake.
func (m *Manager) processResponse(resp *domain.Response, tid core.TransportID) {
	s, ok := m.registry.GetByTransport(tid)
	if !ok {
		m.logger(zerolog.WarnLevel).Str("transport", string(tid)).Str("id", domain.IDKey(resp.ID)).
			Msg("response dropped: no session bound to transport")
		return
	}
	if !s.HandleResponse(resp) {
		m.logger(zerolog.WarnLevel).Str("sid", string(s.ID())).Str("id", domain.IDKey(resp.ID)).
			Msg("response dropped: no pending request")
	}
}

func sendErr(err error) error {
	if err != nil {
		return fmt.Errorf("send response: %w", err)
	}
	return nil
}

func (m *Manager) replyError(sender core.ResponseSender, req *domain.Request, rerr *domain.ResponseError) error {
	if req.IsNotification() {
		return nil
	}
	resp := domain.NewErrorResponse(req.ID, rerr)
	resp.SessionID = req.SessionID
	return sendErr(sender.SendResponse(resp))
}
