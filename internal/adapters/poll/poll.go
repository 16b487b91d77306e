// Package poll serves the session protocol over plain HTTP. Each POST
// carries one message; the reply is a JSON array holding the response
// followed by every frame the server queued for the client since its last
// request.
package poll

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/jsonrpcd/internal/app/protocol"
	"github.com/dkeye/jsonrpcd/internal/config"
	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/dkeye/jsonrpcd/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ReasonIdle is passed to the close timer armed after every request.
	ReasonIdle = "http idle"

	cookieSessionKey = "jsonrpc_sid"
	mailboxLimit     = 256
)

var ErrResponseTimeout = errors.New("response timeout")

type Controller struct {
	manager             *protocol.Manager
	tracer              trace.Tracer
	readLimit           int64
	responseTimeout     time.Duration
	reconnectionTimeout time.Duration
	now                 func() time.Time

	mu    sync.Mutex
	boxes map[core.TransportID]*mailbox
}

func NewController(manager *protocol.Manager, cfg *config.Config) *Controller {
	return &Controller{
		manager:             manager,
		tracer:              otel.Tracer("jsonrpcd/adapters/poll"),
		readLimit:           cfg.ReadLimit,
		responseTimeout:     cfg.HTTPResponseTimeout,
		reconnectionTimeout: cfg.ReconnectionTimeout,
		now:                 time.Now,
		boxes:               make(map[core.TransportID]*mailbox),
	}
}

// exchange collects the responses of one HTTP request and creates or
// rebinds sessions onto the caller's mailbox.
type exchange struct {
	ctl *Controller
	box *mailbox

	mu        sync.Mutex
	responses []*domain.Response
	arrived   chan struct{}
	once      sync.Once
}

func newExchange(ctl *Controller, box *mailbox) *exchange {
	return &exchange{ctl: ctl, box: box, arrived: make(chan struct{})}
}

func (e *exchange) SendResponse(resp *domain.Response) error {
	e.mu.Lock()
	e.responses = append(e.responses, resp)
	e.mu.Unlock()
	e.once.Do(func() { close(e.arrived) })
	return nil
}

func (e *exchange) SendPingResponse(resp *domain.Response) error {
	return e.SendResponse(resp)
}

func (e *exchange) CreateSession(id core.SessionID, registerInfo any, _ core.SessionRegistry) (*core.Session, error) {
	e.box.reopen()
	return core.NewSession(id, e.box.tid, e.box, e.ctl.reconnectionTimeout, registerInfo), nil
}

// UpdateSessionOnReconnection carries frames still queued for the old
// transport over to the new one.
func (e *exchange) UpdateSessionOnReconnection(s *core.Session) {
	if old, ok := s.Transport().(*mailbox); ok && old != e.box {
		e.box.absorb(old)
		e.ctl.dropMailbox(old.tid)
	}
	e.box.reopen()
	s.SetTransport(e.box)
}

func (e *exchange) wait(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-e.arrived:
		return true
	case <-t.C:
		return false
	}
}

func (e *exchange) take() []*domain.Response {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.responses
	e.responses = nil
	return out
}

func (ctl *Controller) HandleHTTP(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, ctl.readLimit))
	if err != nil {
		log.Warn().Err(err).Str("module", "poll").Msg("read body")
		c.JSON(http.StatusBadRequest, []any{domain.NewParseErrorResponse()})
		return
	}
	msg, err := domain.Decode(body)
	if err != nil {
		log.Warn().Err(err).Str("module", "poll").Msg("bad message")
		c.JSON(http.StatusBadRequest, []any{domain.NewParseErrorResponse()})
		return
	}

	cookie := sessions.Default(c)
	if msg.IsRequest() && msg.Request.Method != domain.MethodReconnect && msg.Request.SessionID == "" {
		if sid, ok := cookie.Get(cookieSessionKey).(string); ok {
			msg.Request.SessionID = sid
		}
	}

	tid := transportID(c)
	box := ctl.mailbox(tid)
	registry := ctl.manager.Registry()
	if s, ok := registry.GetByTransport(tid); ok {
		ctl.manager.CancelCloseTimer(s)
	}

	ex := newExchange(ctl, box)
	timedOut := ctl.process(c.Request.Context(), msg, ex, tid)

	if s, ok := registry.GetByTransport(tid); ok {
		cookie.Set(cookieSessionKey, string(s.ID()))
		if err := cookie.Save(); err != nil {
			log.Warn().Err(err).Str("module", "poll").Msg("save cookie session")
		}
		ctl.manager.ScheduleCloseIfTimeout(tid, ReasonIdle)
	}
	box.touch(ctl.now())

	out := make([]any, 0)
	status := http.StatusOK
	if timedOut {
		status = http.StatusGatewayTimeout
		out = append(out, domain.NewErrorResponse(msg.Request.ID,
			domain.NewResponseError(domain.CodeInternalError, ErrResponseTimeout.Error())))
	}
	for _, r := range ex.take() {
		out = append(out, r)
	}
	for _, f := range box.Drain() {
		out = append(out, json.RawMessage(f))
	}
	c.JSON(status, out)
}

// process dispatches msg and reports whether the expected response failed
// to arrive in time.
func (ctl *Controller) process(ctx context.Context, msg domain.Message, ex *exchange, tid core.TransportID) bool {
	_, span := ctl.tracer.Start(ctx, "jsonrpc.message",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("jsonrpc.transport", "http"),
			attribute.String("jsonrpc.transport_id", string(tid)),
		),
	)
	defer span.End()

	if err := ctl.manager.ProcessDecoded(msg, ex, ex, tid); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn().Err(err).Str("module", "poll").Str("transport", string(tid)).Msg("message processing failed")
		return false
	}
	if !msg.IsRequest() || msg.Request.IsNotification() {
		return false
	}
	if ex.wait(ctl.responseTimeout) {
		return false
	}
	span.SetStatus(codes.Error, ErrResponseTimeout.Error())
	log.Warn().Str("module", "poll").Str("transport", string(tid)).Str("method", msg.Request.Method).Msg("no response in time")
	return true
}

func transportID(c *gin.Context) core.TransportID {
	token := c.GetString("client_token")
	if token == "" {
		token = uuid.NewString()
	}
	return core.TransportID("http:" + token)
}

func (ctl *Controller) mailbox(tid core.TransportID) *mailbox {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	box, ok := ctl.boxes[tid]
	if !ok {
		box = newMailbox(tid, mailboxLimit, ctl.now())
		ctl.boxes[tid] = box
	}
	return box
}

func (ctl *Controller) dropMailbox(tid core.TransportID) {
	ctl.mu.Lock()
	delete(ctl.boxes, tid)
	ctl.mu.Unlock()
}

func (ctl *Controller) Mailboxes() int {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return len(ctl.boxes)
}

// Prune forgets mailboxes that no session uses and that stayed idle
// longer than maxIdle. It returns how many were dropped.
func (ctl *Controller) Prune(maxIdle time.Duration) int {
	cutoff := ctl.now().Add(-maxIdle)
	registry := ctl.manager.Registry()

	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	dropped := 0
	for tid, box := range ctl.boxes {
		if _, bound := registry.GetByTransport(tid); bound {
			continue
		}
		if box.idleSince().Before(cutoff) {
			delete(ctl.boxes, tid)
			dropped++
		}
	}
	return dropped
}

// Run prunes idle mailboxes until ctx is done.
func (ctl *Controller) Run(ctx context.Context) error {
	interval := ctl.reconnectionTimeout
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := ctl.Prune(2 * interval); n > 0 {
				log.Debug().Str("module", "poll").Int("dropped", n).Msg("pruned idle mailboxes")
			}
		}
	}
}
