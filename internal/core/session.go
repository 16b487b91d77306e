package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/jsonrpcd/internal/domain"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrRebound       = errors.New("session moved to another transport")
	ErrNoTransport   = errors.New("session has no transport")
)

// Session is the transport-independent conversation state. The mutex
// orders reconnects against the close timer: whichever of Rebind and
// ClaimTimedClose takes it first wins, the other observes the result.
type Session struct {
	id                  SessionID
	registerInfo        any
	reconnectionTimeout time.Duration
	createdAt           time.Time

	mu          sync.Mutex
	transportID TransportID
	transport   Transport
	isNew       bool
	closeTimer  Timer
	timerGen    uint64
	armed       bool
	closed      bool
	done        chan struct{}
	attrs       map[string]any

	pmu     sync.Mutex
	pending map[string]chan *domain.Response
	nextID  atomic.Int64
}

func NewSession(
	id SessionID,
	tid TransportID,
	transport Transport,
	reconnectionTimeout time.Duration,
	registerInfo any,
) *Session {
	return &Session{
		id:                  id,
		registerInfo:        registerInfo,
		reconnectionTimeout: reconnectionTimeout,
		createdAt:           time.Now(),
		transportID:         tid,
		transport:           transport,
		isNew:               true,
		done:                make(chan struct{}),
		attrs:               make(map[string]any),
		pending:             make(map[string]chan *domain.Response),
	}
}

func (s *Session) ID() SessionID                      { return s.id }
func (s *Session) RegisterInfo() any                  { return s.registerInfo }
func (s *Session) ReconnectionTimeout() time.Duration { return s.reconnectionTimeout }
func (s *Session) CreatedAt() time.Time               { return s.createdAt }

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) TransportID() TransportID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transportID
}

func (s *Session) Transport() Transport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport
}

func (s *Session) SetTransport(t Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = t
}

func (s *Session) IsNew() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isNew
}

func (s *Session) SetNew(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isNew = v
}

func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// AwaitingReconnect reports whether a close timer is armed.
func (s *Session) AwaitingReconnect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

func (s *Session) Attribute(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.attrs[key]
	return v, ok
}

func (s *Session) SetAttribute(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attrs[key] = v
}

// ArmCloseTimer schedules onFire through schedule, replacing and cancelling
// any previous timer. onFire only runs if the timer is still armed when it
// fires. A session no longer bound to tid is left alone with ErrRebound:
// the transport that dropped is not its transport any more.
func (s *Session) ArmCloseTimer(tid TransportID, schedule func(fire func()) (Timer, error), onFire func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.transportID != tid {
		return ErrRebound
	}
	s.disarmLocked()
	gen := s.timerGen
	t, err := schedule(func() {
		if s.ClaimTimedClose(gen) {
			onFire()
		}
	})
	if err != nil {
		return err
	}
	s.closeTimer = t
	s.armed = true
	return nil
}

// ClaimTimedClose marks the session closed if the timer of generation gen
// is still the armed one.
func (s *Session) ClaimTimedClose(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.armed || gen != s.timerGen {
		return false
	}
	s.armed = false
	s.closeTimer = nil
	s.closeLocked()
	return true
}

// CancelCloseTimer disarms the pending close timer, if any.
func (s *Session) CancelCloseTimer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasArmed := s.armed
	s.disarmLocked()
	return wasArmed
}

// Rebind moves the session to a new transport id and disarms its close
// timer in one step. It fails once the session is closed.
func (s *Session) Rebind(tid TransportID) (TransportID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	s.disarmLocked()
	old := s.transportID
	s.transportID = tid
	return old, nil
}

// MarkClosed returns true for the first caller only.
func (s *Session) MarkClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.disarmLocked()
	s.closeLocked()
	return true
}

func (s *Session) disarmLocked() {
	if s.closeTimer != nil {
		s.closeTimer.Cancel()
		s.closeTimer = nil
	}
	s.armed = false
	s.timerGen++
}

func (s *Session) closeLocked() {
	s.closed = true
	close(s.done)
}

// CloseTransport drops the native connection without touching session state.
func (s *Session) CloseTransport() {
	if t := s.Transport(); t != nil {
		t.Close()
	}
}

// SendNotification writes a request without id through the current transport.
func (s *Session) SendNotification(method string, params any) error {
	req, err := domain.NewRequest(nil, method, params)
	if err != nil {
		return err
	}
	req.SessionID = string(s.id)
	return s.write(req)
}

// SendRequest writes a server-to-client request and waits for the matching
// response, which arrives through HandleResponse.
func (s *Session) SendRequest(ctx context.Context, method string, params any) (*domain.Response, error) {
	id := domain.IntID(s.nextID.Add(1))
	req, err := domain.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	req.SessionID = string(s.id)

	key := domain.IDKey(id)
	ch := make(chan *domain.Response, 1)
	s.pmu.Lock()
	s.pending[key] = ch
	s.pmu.Unlock()
	defer func() {
		s.pmu.Lock()
		delete(s.pending, key)
		s.pmu.Unlock()
	}()

	if err := s.write(req); err != nil {
		return nil, err
	}
	select {
	case resp := <-ch:
		return resp, nil
	case <-s.done:
		return nil, ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HandleResponse delivers a client response to the request waiting for it.
// It reports false when nothing was waiting.
func (s *Session) HandleResponse(resp *domain.Response) bool {
	key := domain.IDKey(resp.ID)
	s.pmu.Lock()
	ch, ok := s.pending[key]
	if ok {
		delete(s.pending, key)
	}
	s.pmu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

func (s *Session) write(v any) error {
	if s.IsClosed() {
		return ErrSessionClosed
	}
	t := s.Transport()
	if t == nil {
		return ErrNoTransport
	}
	frame, err := domain.Encode(v)
	if err != nil {
		return err
	}
	return t.TrySend(frame)
}
