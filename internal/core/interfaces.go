//go:generate mockgen -destination=mocks/mocks.go -package=mocks . Transport,ResponseSender,ServerSessionFactory,Handler,SecretGenerator,Scheduler

package core

import (
	"errors"
	"time"

	"github.com/dkeye/jsonrpcd/internal/domain"
)

type SessionID string

// TransportID names one physical connection; it changes across reconnects.
type TransportID string

// Frame is an encoded outgoing message.
type Frame []byte

// ErrBackpressure is returned by TrySend when the peer does not keep up.
var ErrBackpressure = errors.New("backpressure")

// Transport abstracts the physical connection a session writes to.
// Owned by the adapter; the adapter must Close() it.
type Transport interface {
	TrySend(Frame) error
	Close()
}

// ResponseSender answers the request currently being processed. Ping
// responses go through a separate method so transports can treat them
// differently (e.g. skip logging or tracing).
type ResponseSender interface {
	SendResponse(resp *domain.Response) error
	SendPingResponse(resp *domain.Response) error
}

// ServerSessionFactory is supplied by the transport that received the
// message; it knows the transport binding of sessions it creates.
type ServerSessionFactory interface {
	CreateSession(id SessionID, registerInfo any, registry SessionRegistry) (*Session, error)
	// UpdateSessionOnReconnection runs after the session was rebound to a
	// new transport id, so the transport can swap its own state.
	UpdateSessionOnReconnection(s *Session)
}

// SessionRegistry indexes live sessions by id and by current transport.
type SessionRegistry interface {
	Put(s *Session)
	Get(id SessionID) (*Session, bool)
	GetByTransport(tid TransportID) (*Session, bool)
	UpdateTransportID(s *Session, oldTransportID TransportID)
	Remove(s *Session)
}

// Handler owns all application behavior. HandleRequest must answer through
// the sender itself; a returned error is reported to the client.
type Handler interface {
	AfterConnectionEstablished(s *Session)
	HandleRequest(s *Session, req *domain.Request, sender ResponseSender) error
	AfterConnectionClosed(s *Session, reason string)
	HandleTransportError(s *Session, err error)
}

type SecretGenerator interface {
	NextSecret() (string, error)
}

// Timer is a scheduled callback. Cancel prevents a callback that has not
// started yet; it never interrupts one already running.
type Timer interface {
	Cancel() bool
}

type Scheduler interface {
	Schedule(fn func(), at time.Time) (Timer, error)
}
