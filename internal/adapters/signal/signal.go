// Package signal serves the session protocol over WebSocket: one text
// frame per JSON-RPC message in both directions.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/jsonrpcd/internal/app/protocol"
	"github.com/dkeye/jsonrpcd/internal/config"
	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/dkeye/jsonrpcd/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// ReasonTransportClosed is passed to the close timer when a socket drops.
const ReasonTransportClosed = "transport closed"

const sendBuffer = 32

var ErrConnClosed = errors.New("connection closed")

type Controller struct {
	manager             *protocol.Manager
	upgrader            websocket.Upgrader
	tracer              trace.Tracer
	readLimit           int64
	writeWait           time.Duration
	pingPeriod          time.Duration
	pongWait            time.Duration
	reconnectionTimeout time.Duration

	mu    sync.Mutex
	conns map[core.TransportID]*wsConn
}

func NewController(manager *protocol.Manager, cfg *config.Config) *Controller {
	return &Controller{
		manager: manager,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		tracer:              otel.Tracer("jsonrpcd/adapters/signal"),
		readLimit:           cfg.ReadLimit,
		writeWait:           cfg.WriteWait,
		pingPeriod:          cfg.WSPingPeriod,
		pongWait:            cfg.PongWait(),
		reconnectionTimeout: cfg.ReconnectionTimeout,
		conns:               make(map[core.TransportID]*wsConn),
	}
}

// wsConn is both the Transport and the ResponseSender of one socket, and
// the session factory for messages arriving on it.
type wsConn struct {
	tid                 core.TransportID
	conn                *websocket.Conn
	send                chan core.Frame
	reconnectionTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

func (c *wsConn) SendResponse(resp *domain.Response) error {
	frame, err := domain.Encode(resp)
	if err != nil {
		return err
	}
	return c.TrySend(frame)
}

func (c *wsConn) SendPingResponse(resp *domain.Response) error {
	return c.SendResponse(resp)
}

func (c *wsConn) CreateSession(id core.SessionID, registerInfo any, _ core.SessionRegistry) (*core.Session, error) {
	return core.NewSession(id, c.tid, c, c.reconnectionTimeout, registerInfo), nil
}

func (c *wsConn) UpdateSessionOnReconnection(s *core.Session) {
	s.SetTransport(c)
}

func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &wsConn{
		tid:                 core.TransportID(uuid.NewString()),
		conn:                ws,
		send:                make(chan core.Frame, sendBuffer),
		reconnectionTimeout: ctl.reconnectionTimeout,
	}
	ctl.mu.Lock()
	ctl.conns[conn.tid] = conn
	ctl.mu.Unlock()
	log.Info().Str("module", "signal").Str("transport", string(conn.tid)).
		Str("client", c.GetString("client_token")).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, conn)
}

func (ctl *Controller) forget(tid core.TransportID) {
	ctl.mu.Lock()
	delete(ctl.conns, tid)
	ctl.mu.Unlock()
}

func (ctl *Controller) Connections() int {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return len(ctl.conns)
}

// CloseAll drops every socket; their sessions get the usual grace period.
func (ctl *Controller) CloseAll() {
	ctl.mu.Lock()
	conns := make([]*wsConn, 0, len(ctl.conns))
	for _, c := range ctl.conns {
		conns = append(conns, c)
	}
	ctl.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
