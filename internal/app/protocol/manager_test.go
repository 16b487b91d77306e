package protocol_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/jsonrpcd/internal/app"
	"github.com/dkeye/jsonrpcd/internal/app/apptest"
	"github.com/dkeye/jsonrpcd/internal/app/protocol"
	"github.com/dkeye/jsonrpcd/internal/core"
	"github.com/dkeye/jsonrpcd/internal/core/mocks"
	"github.com/dkeye/jsonrpcd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type sender struct {
	mu        sync.Mutex
	responses []*domain.Response
	pings     []*domain.Response
}

func (s *sender) SendResponse(resp *domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
	return nil
}

func (s *sender) SendPingResponse(resp *domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings = append(s.pings, resp)
	return nil
}

func (s *sender) last(t *testing.T) *domain.Response {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.responses)
	return s.responses[len(s.responses)-1]
}

type frameSink struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (f *frameSink) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}

func (f *frameSink) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *frameSink) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// conn stands for one transport connection: it is the session factory and
// the sender for messages arriving on tid.
type conn struct {
	m         *protocol.Manager
	tid       core.TransportID
	timeout   time.Duration
	transport *frameSink
	out       *sender

	mu      sync.Mutex
	rebound []*core.Session
	// onRebind runs in the middle of a reconnect, after the session moved
	// to this connection and before the registry follows.
	onRebind func()
}

func (c *conn) CreateSession(id core.SessionID, info any, _ core.SessionRegistry) (*core.Session, error) {
	return core.NewSession(id, c.tid, c.transport, c.timeout, info), nil
}

func (c *conn) UpdateSessionOnReconnection(s *core.Session) {
	c.mu.Lock()
	c.rebound = append(c.rebound, s)
	hook := c.onRebind
	c.mu.Unlock()
	s.SetTransport(c.transport)
	if hook != nil {
		hook()
	}
}

func (c *conn) send(t *testing.T, raw string) {
	t.Helper()
	require.NoError(t, c.m.ProcessMessage([]byte(raw), c, c.out, c.tid))
}

type seqSecrets struct{ n atomic.Int64 }

func (g *seqSecrets) NextSecret() (string, error) {
	return fmt.Sprintf("s%d", g.n.Add(1)), nil
}

type fixture struct {
	handler  *mocks.MockHandler
	registry *app.Registry
	sched    *apptest.Scheduler
	clock    *apptest.Clock
	m        *protocol.Manager
}

func newFixture(t *testing.T, opts ...protocol.Option) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		handler:  mocks.NewMockHandler(ctrl),
		registry: app.NewRegistry(),
		sched:    apptest.NewScheduler(),
		clock:    apptest.NewClock(),
	}
	opts = append([]protocol.Option{
		protocol.WithSecretGenerator(&seqSecrets{}),
		protocol.WithClock(f.clock.Now),
		protocol.WithLabel("test"),
	}, opts...)
	f.m = protocol.NewManager(f.handler, f.registry, f.sched, opts...)
	return f
}

func (f *fixture) conn(tid core.TransportID, timeout time.Duration) *conn {
	return &conn{m: f.m, tid: tid, timeout: timeout, transport: &frameSink{}, out: &sender{}}
}

// echo answers every application request with its method name.
func (f *fixture) echo() {
	f.handler.EXPECT().HandleRequest(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(s *core.Session, req *domain.Request, out core.ResponseSender) error {
			return out.SendResponse(domain.NewResult(string(s.ID()), req.ID, req.Method))
		}).AnyTimes()
}

func (f *fixture) established(n int) {
	f.handler.EXPECT().AfterConnectionEstablished(gomock.Any()).Times(n)
}

func TestFirstContactCreatesSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := f.conn("t1", time.Second)

	var seen *core.Session
	f.handler.EXPECT().AfterConnectionEstablished(gomock.Any()).Do(func(s *core.Session) { seen = s })
	f.handler.EXPECT().HandleRequest(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(s *core.Session, req *domain.Request, out core.ResponseSender) error {
			assert.True(t, s.IsNew())
			return out.SendResponse(domain.NewResult(string(s.ID()), req.ID, "hi"))
		})

	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"hello"}`)

	require.NotNil(t, seen)
	assert.Equal(t, core.SessionID("s1"), seen.ID())
	got, ok := f.registry.GetByTransport("t1")
	require.True(t, ok)
	assert.Same(t, seen, got)
	assert.Equal(t, "s1", c.out.last(t).SessionID)
}

func TestSecondMessageReusesSessionAndClearsNew(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := f.conn("t1", time.Second)
	f.established(1)

	var flags []bool
	f.handler.EXPECT().HandleRequest(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(s *core.Session, req *domain.Request, out core.ResponseSender) error {
			flags = append(flags, s.IsNew())
			return out.SendResponse(domain.NewResult(string(s.ID()), req.ID, nil))
		}).Times(2)

	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	c.send(t, `{"jsonrpc":"2.0","id":2,"method":"b"}`)

	assert.Equal(t, []bool{true, false}, flags)
	assert.Equal(t, 1, f.registry.Len())
}

func TestExplicitSessionIDWinsOverTransport(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.echo()
	c1 := f.conn("t1", time.Second)
	c2 := f.conn("t2", time.Second)

	c1.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	c2.send(t, `{"jsonrpc":"2.0","id":2,"method":"b","sessionId":"s1"}`)

	assert.Equal(t, "s1", c2.out.last(t).SessionID)
	assert.Equal(t, 1, f.registry.Len())
}

func TestUnknownSessionIDCreatesSessionForOrdinaryRequests(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.echo()
	c := f.conn("t1", time.Second)

	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"a","sessionId":"gone"}`)

	resp := c.out.last(t)
	assert.False(t, resp.IsError())
	assert.Equal(t, "s1", resp.SessionID)
}

func TestReconnectWithoutSessionIDIsFirstContact(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	c := f.conn("t1", time.Second)

	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"reconnect"}`)

	resp := c.out.last(t)
	require.False(t, resp.IsError())
	assert.Equal(t, domain.ReconnectionOK, resp.Result)
	assert.Equal(t, "s1", resp.SessionID)
	_, ok := f.registry.Get("s1")
	assert.True(t, ok)
}

func TestReconnectToUnknownSessionFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := f.conn("t1", time.Second)

	c.send(t, `{"jsonrpc":"2.0","id":9,"method":"reconnect","sessionId":"nope"}`)

	resp := c.out.last(t)
	require.True(t, resp.IsError())
	assert.Equal(t, domain.CodeReconnectionError, resp.Error.Code)
	assert.Equal(t, domain.ReconnectionErrorMessage, resp.Error.Message)
	assert.Equal(t, "9", domain.IDKey(resp.ID))
	assert.Equal(t, 0, f.registry.Len())
}

func TestReconnectRebindsAndCancelsCloseTimer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.echo()
	c1 := f.conn("t1", time.Second)
	c2 := f.conn("t2", time.Second)

	c1.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	f.m.ScheduleCloseIfTimeout("t1", "transport closed")
	armed := f.sched.Armed()
	require.Len(t, armed, 1)
	assert.Equal(t, f.clock.Now().Add(time.Second), armed[0].At)

	s, _ := f.registry.Get("s1")
	assert.True(t, s.AwaitingReconnect())

	c2.send(t, `{"jsonrpc":"2.0","id":2,"method":"reconnect","sessionId":"s1"}`)

	resp := c2.out.last(t)
	require.False(t, resp.IsError())
	assert.Equal(t, domain.ReconnectionSuccessful, resp.Result)
	assert.Equal(t, "s1", resp.SessionID)
	assert.True(t, armed[0].Cancelled())
	assert.False(t, s.AwaitingReconnect())
	assert.Equal(t, []*core.Session{s}, c2.rebound)

	_, ok := f.registry.GetByTransport("t1")
	assert.False(t, ok)
	got, ok := f.registry.GetByTransport("t2")
	require.True(t, ok)
	assert.Same(t, s, got)

	f.sched.FireUntil(f.clock.Advance(time.Hour))
	assert.False(t, s.IsClosed())
}

func TestOldTransportDropDuringReconnectKeepsSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.echo()
	c1 := f.conn("t1", time.Second)
	c2 := f.conn("t2", time.Second)
	c1.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	s, _ := f.registry.Get("s1")

	// The old socket reports its drop while the registry still maps t1.
	c2.onRebind = func() { f.m.ScheduleCloseIfTimeout("t1", "transport closed") }
	c2.send(t, `{"jsonrpc":"2.0","id":2,"method":"reconnect","sessionId":"s1"}`)

	assert.Equal(t, domain.ReconnectionSuccessful, c2.out.last(t).Result)
	assert.False(t, s.AwaitingReconnect())
	assert.Empty(t, f.sched.Armed())

	f.sched.FireUntil(f.clock.Advance(time.Hour))
	assert.False(t, s.IsClosed())
	got, ok := f.registry.GetByTransport("t2")
	require.True(t, ok)
	assert.Same(t, s, got)
}

func TestReconnectOntoBusyTransportClosesDisplacedSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(2)
	f.echo()
	c1 := f.conn("t1", time.Second)
	c2 := f.conn("t2", time.Second)
	c1.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	c2.send(t, `{"jsonrpc":"2.0","id":1,"method":"b"}`)
	s1, _ := f.registry.Get("s1")
	s2, _ := f.registry.Get("s2")

	f.handler.EXPECT().AfterConnectionClosed(s2, protocol.ReasonReplaced)
	c2.send(t, `{"jsonrpc":"2.0","id":2,"method":"reconnect","sessionId":"s1"}`)
	assert.Equal(t, domain.ReconnectionSuccessful, c2.out.last(t).Result)

	assert.True(t, s2.IsClosed())
	assert.False(t, c2.transport.isClosed())
	_, ok := f.registry.Get("s2")
	assert.False(t, ok)
	list := f.registry.List()
	require.Len(t, list, 1)
	assert.Equal(t, core.SessionID("s1"), list[0].ID)
	assert.Equal(t, core.TransportID("t2"), list[0].Transport)

	// t2 now belongs to s1 alone, so its drop closes s1.
	f.handler.EXPECT().AfterConnectionClosed(s1, "transport closed")
	f.m.ScheduleCloseIfTimeout("t2", "transport closed")
	f.sched.FireUntil(f.clock.Advance(time.Second))
	assert.True(t, s1.IsClosed())
	assert.Equal(t, 0, f.registry.Len())
}

func TestCloseTimerClosesSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.echo()
	c := f.conn("t1", time.Second)
	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	s, _ := f.registry.Get("s1")

	f.m.ScheduleCloseIfTimeout("t1", "transport closed")
	assert.Equal(t, 0, f.sched.FireUntil(f.clock.Advance(999*time.Millisecond)))

	f.handler.EXPECT().AfterConnectionClosed(s, "transport closed")
	assert.Equal(t, 1, f.sched.FireUntil(f.clock.Advance(time.Millisecond)))

	assert.True(t, s.IsClosed())
	assert.Equal(t, 0, f.registry.Len())

	c2 := f.conn("t2", time.Second)
	c2.send(t, `{"jsonrpc":"2.0","id":2,"method":"reconnect","sessionId":"s1"}`)
	assert.Equal(t, domain.CodeReconnectionError, c2.out.last(t).Error.Code)
}

func TestTimerThatLostTheRaceDoesNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.echo()
	c1 := f.conn("t1", time.Second)
	c1.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	f.m.ScheduleCloseIfTimeout("t1", "transport closed")
	timer := f.sched.Armed()[0]

	c2 := f.conn("t2", time.Second)
	c2.send(t, `{"jsonrpc":"2.0","id":2,"method":"reconnect","sessionId":"s1"}`)

	// The callback started before the reconnect cancelled it.
	f.sched.Fire(timer)

	s, ok := f.registry.Get("s1")
	require.True(t, ok)
	assert.False(t, s.IsClosed())
}

func TestRejectedSchedulerKeepsSessionAlive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.echo()
	c := f.conn("t1", time.Second)
	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)

	f.sched.Reject()
	assert.NotPanics(t, func() { f.m.ScheduleCloseIfTimeout("t1", "transport closed") })

	s, ok := f.registry.Get("s1")
	require.True(t, ok)
	assert.False(t, s.AwaitingReconnect())
}

func TestScheduleCloseForUnknownTransportIsNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.m.ScheduleCloseIfTimeout("nobody", "transport closed")
	assert.Empty(t, f.sched.Armed())
}

func TestPingAnswersPongWithoutSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := f.conn("t1", time.Second)

	c.send(t, `{"jsonrpc":"2.0","id":3,"method":"ping"}`)

	require.Len(t, c.out.pings, 1)
	assert.Empty(t, c.out.responses)
	raw, err := domain.Encode(c.out.pings[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":3,"result":{"value":"pong"}}`, string(raw))
	assert.Equal(t, 0, f.registry.Len())

	// The watchdog now expects the next ping.
	assert.Len(t, f.sched.Armed(), 1)
}

func TestMaxHeartbeatsAnswersExactlyN(t *testing.T) {
	t.Parallel()

	f := newFixture(t, protocol.WithMaxHeartbeats(2))
	c := f.conn("t1", time.Second)

	for i := 1; i <= 3; i++ {
		c.send(t, fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"method":"ping"}`, i))
	}
	require.Len(t, c.out.pings, 2)
	assert.Equal(t, "2", domain.IDKey(c.out.pings[1].ID))
}

func TestWatchdogClosesSilentSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, protocol.WithWatchdogDefaults(time.Second, 3))
	f.established(1)
	f.echo()
	c := f.conn("t1", time.Second)
	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	c.send(t, `{"jsonrpc":"2.0","id":2,"method":"ping","params":{"interval":100}}`)
	s, _ := f.registry.Get("s1")

	assert.Equal(t, 0, f.sched.FireUntil(f.clock.Advance(299*time.Millisecond)))

	f.handler.EXPECT().AfterConnectionClosed(s, protocol.ReasonNoPing)
	assert.Equal(t, 1, f.sched.FireUntil(f.clock.Advance(time.Millisecond)))

	assert.True(t, s.IsClosed())
	assert.True(t, c.transport.isClosed())
	assert.Equal(t, 0, f.registry.Len())
}

func TestDisconnectStopsWatchdog(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.echo()
	c := f.conn("t1", time.Minute)
	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	c.send(t, `{"jsonrpc":"2.0","id":2,"method":"ping","params":{"interval":100}}`)
	require.Len(t, f.sched.Armed(), 1)

	f.m.ScheduleCloseIfTimeout("t1", "transport closed")

	armed := f.sched.Armed()
	require.Len(t, armed, 1)
	assert.Equal(t, f.clock.Now().Add(time.Minute), armed[0].At)

	// Pinging well past the watchdog deadline does not close the session.
	f.sched.FireUntil(f.clock.Advance(10 * time.Second))
	s, ok := f.registry.Get("s1")
	require.True(t, ok)
	assert.False(t, s.IsClosed())
}

func TestDisabledWatchdogNeverCloses(t *testing.T) {
	t.Parallel()

	f := newFixture(t, protocol.WithPingWatchdog(false))
	c := f.conn("t1", time.Second)
	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)

	assert.Len(t, c.out.pings, 1)
	assert.Empty(t, f.sched.Armed())
}

func TestPollDeliversClientResponses(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.echo()
	c := f.conn("t1", time.Second)
	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	s, _ := f.registry.Get("s1")

	type result struct {
		resp *domain.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.SendRequest(testContext(t), "getState", nil)
		done <- result{resp, err}
	}()
	require.Eventually(t, func() bool {
		c.transport.mu.Lock()
		defer c.transport.mu.Unlock()
		return len(c.transport.frames) == 1
	}, time.Second, time.Millisecond)

	var req domain.Request
	require.NoError(t, json.Unmarshal(c.transport.frames[0], &req))

	poll := fmt.Sprintf(`{"jsonrpc":"2.0","id":5,"method":"poll","params":[{"jsonrpc":"2.0","id":%s,"result":"ready"}]}`, req.ID)
	c.send(t, poll)

	res := <-done
	require.NoError(t, res.err)
	var state string
	require.NoError(t, res.resp.DecodeResult(&state))
	assert.Equal(t, "ready", state)

	ack := c.out.last(t)
	assert.Equal(t, "5", domain.IDKey(ack.ID))
	assert.Equal(t, []any{}, ack.Result)
}

func TestPollWithBadParamsIsInvalidParams(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	c := f.conn("t1", time.Second)
	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"poll","params":{"x":1}}`)

	assert.Equal(t, domain.CodeInvalidParams, c.out.last(t).Error.Code)
}

func TestRawResponseResolvedByTransport(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.echo()
	c := f.conn("t1", time.Second)
	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	s, _ := f.registry.Get("s1")

	done := make(chan *domain.Response, 1)
	go func() {
		resp, _ := s.SendRequest(testContext(t), "getState", nil)
		done <- resp
	}()
	require.Eventually(t, func() bool {
		c.transport.mu.Lock()
		defer c.transport.mu.Unlock()
		return len(c.transport.frames) == 1
	}, time.Second, time.Millisecond)

	c.send(t, `{"jsonrpc":"2.0","id":1,"result":42}`)
	resp := <-done
	require.NotNil(t, resp)
	var n int
	require.NoError(t, resp.DecodeResult(&n))
	assert.Equal(t, 42, n)

	// Responses from unknown transports are dropped without error.
	f.conn("t9", time.Second).send(t, `{"jsonrpc":"2.0","id":1,"result":42}`)
}

func TestHandlerErrorBecomesErrorResponse(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.handler.EXPECT().HandleRequest(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ *core.Session, req *domain.Request, _ core.ResponseSender) error {
			return domain.MethodNotFound(req.Method)
		}).Times(2)
	c := f.conn("t1", time.Second)

	c.send(t, `{"jsonrpc":"2.0","id":4,"method":"nope"}`)
	resp := c.out.last(t)
	require.True(t, resp.IsError())
	assert.Equal(t, domain.CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, "4", domain.IDKey(resp.ID))

	c.send(t, `{"jsonrpc":"2.0","method":"nope"}`)
	assert.Len(t, c.out.responses, 1)
}

func TestSecretFailureIsInternalError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	secrets := mocks.NewMockSecretGenerator(ctrl)
	secrets.EXPECT().NextSecret().Return("", fmt.Errorf("entropy exhausted"))

	f := newFixture(t, protocol.WithSecretGenerator(secrets))
	c := f.conn("t1", time.Second)
	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)

	resp := c.out.last(t)
	require.True(t, resp.IsError())
	assert.Equal(t, domain.CodeInternalError, resp.Error.Code)
	assert.Equal(t, 0, f.registry.Len())
}

func TestMalformedMessageReturnsDecodeError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	c := f.conn("t1", time.Second)

	err := f.m.ProcessMessage([]byte(`{oops`), c, c.out, c.tid)
	assert.ErrorIs(t, err, domain.ErrDecode)
	assert.Empty(t, c.out.responses)
}

func TestCloseSessionOnlyOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.echo()
	c := f.conn("t1", time.Second)
	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	s, _ := f.registry.Get("s1")

	f.handler.EXPECT().AfterConnectionClosed(s, "bye").Times(1)
	f.m.CloseSession(s, "bye")
	f.m.CloseSession(s, "bye")

	assert.Equal(t, 0, f.registry.Len())
	_, tracked := f.m.Watchdog().Tracked("t1")
	assert.False(t, tracked)
}

func TestCloseSessionByID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.echo()
	c := f.conn("t1", time.Second)
	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)

	f.handler.EXPECT().AfterConnectionClosed(gomock.Any(), "admin")
	assert.True(t, f.m.CloseSessionByID("s1", "admin"))
	assert.True(t, c.transport.isClosed())
	assert.False(t, f.m.CloseSessionByID("s1", "admin"))
}

func TestShutdownClosesEverySession(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(2)
	f.echo()
	a := f.conn("t1", time.Minute)
	b := f.conn("t2", time.Minute)
	a.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	b.send(t, `{"jsonrpc":"2.0","id":1,"method":"b"}`)
	f.m.ScheduleCloseIfTimeout("t2", "gone")

	f.handler.EXPECT().AfterConnectionClosed(gomock.Any(), protocol.ReasonShutdown).Times(2)
	assert.Equal(t, 2, f.m.Shutdown(protocol.ReasonShutdown))
	assert.Equal(t, 0, f.registry.Len())
	assert.True(t, a.transport.isClosed())
	assert.False(t, f.m.Watchdog().Enabled())

	// The pending close timer was cancelled by the shutdown.
	assert.Zero(t, f.sched.FireUntil(f.clock.Now().Add(time.Hour)))
}

func TestTransportErrorIsForwarded(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.established(1)
	f.echo()
	c := f.conn("t1", time.Second)
	c.send(t, `{"jsonrpc":"2.0","id":1,"method":"a"}`)
	s, _ := f.registry.Get("s1")

	boom := fmt.Errorf("reset by peer")
	f.handler.EXPECT().HandleTransportError(s, boom)
	f.handler.EXPECT().HandleTransportError(nil, boom)
	f.m.ProcessTransportError("t1", boom)
	f.m.ProcessTransportError("t404", boom)
}

func TestReconnectWithinTimeoutKeepsSession(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	handler := mocks.NewMockHandler(ctrl)
	handler.EXPECT().AfterConnectionEstablished(gomock.Any())
	registry := app.NewRegistry()
	sched := app.NewScheduler()
	t.Cleanup(sched.Shutdown)
	m := protocol.NewManager(handler, registry, sched)

	c1 := &conn{m: m, tid: "t1", timeout: 200 * time.Millisecond, transport: &frameSink{}, out: &sender{}}
	c1.send(t, `{"jsonrpc":"2.0","id":1,"method":"reconnect"}`)
	sid := c1.out.last(t).SessionID
	require.NotEmpty(t, sid)

	m.ScheduleCloseIfTimeout("t1", "transport closed")
	time.Sleep(100 * time.Millisecond)

	c2 := &conn{m: m, tid: "t2", timeout: 200 * time.Millisecond, transport: &frameSink{}, out: &sender{}}
	c2.send(t, fmt.Sprintf(`{"jsonrpc":"2.0","id":2,"method":"reconnect","sessionId":%q}`, sid))
	assert.Equal(t, domain.ReconnectionSuccessful, c2.out.last(t).Result)

	time.Sleep(250 * time.Millisecond)
	s, ok := registry.Get(core.SessionID(sid))
	require.True(t, ok)
	assert.False(t, s.IsClosed())
}

func TestReconnectAfterTimeoutFails(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	handler := mocks.NewMockHandler(ctrl)
	handler.EXPECT().AfterConnectionEstablished(gomock.Any())
	closed := make(chan string, 1)
	handler.EXPECT().AfterConnectionClosed(gomock.Any(), gomock.Any()).Do(func(_ *core.Session, reason string) {
		closed <- reason
	})
	registry := app.NewRegistry()
	sched := app.NewScheduler()
	t.Cleanup(sched.Shutdown)
	m := protocol.NewManager(handler, registry, sched)

	c1 := &conn{m: m, tid: "t1", timeout: 50 * time.Millisecond, transport: &frameSink{}, out: &sender{}}
	c1.send(t, `{"jsonrpc":"2.0","id":1,"method":"reconnect"}`)
	sid := c1.out.last(t).SessionID

	m.ScheduleCloseIfTimeout("t1", "transport closed")
	select {
	case reason := <-closed:
		assert.Equal(t, "transport closed", reason)
	case <-time.After(time.Second):
		t.Fatal("session was not closed")
	}

	c2 := &conn{m: m, tid: "t2", timeout: 50 * time.Millisecond, transport: &frameSink{}, out: &sender{}}
	c2.send(t, fmt.Sprintf(`{"jsonrpc":"2.0","id":2,"method":"reconnect","sessionId":%q}`, sid))
	resp := c2.out.last(t)
	require.True(t, resp.IsError())
	assert.Equal(t, domain.CodeReconnectionError, resp.Error.Code)
}
