package channel

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/pokerlive/internal/protocol"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// wsServer is an in-process game server endpoint. Every accepted connection is
// published on conns and its inbound frames on recv.
type wsServer struct {
	srv    *httptest.Server
	conns  chan *websocket.Conn
	tokens chan string
	recv   chan protocol.Message
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{
		conns:  make(chan *websocket.Conn, 8),
		tokens: make(chan string, 8),
		recv:   make(chan protocol.Message, 64),
	}
	upgrader := websocket.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.tokens <- r.URL.Query().Get("token")
		s.conns <- conn
		go func() {
			for {
				var msg protocol.Message
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				s.recv <- msg
			}
		}()
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *wsServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

func (s *wsServer) receive(t *testing.T) protocol.Message {
	t.Helper()
	select {
	case msg := <-s.recv:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a message")
		return protocol.Message{}
	}
}

// statusRecorder collects lifecycle transitions across goroutines
type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) record(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) count(s Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.statuses {
		if got == s {
			n++
		}
	}
	return n
}

// captureHandler publishes every inbound frame on a channel
type captureHandler struct {
	msgs chan *protocol.Message
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{msgs: make(chan *protocol.Message, 64)}
}

func (h *captureHandler) HandleMessage(msg *protocol.Message) {
	h.msgs <- msg
}

func (h *captureHandler) next(t *testing.T) *protocol.Message {
	t.Helper()
	select {
	case msg := <-h.msgs:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a handled message")
		return nil
	}
}

func TestSendQueuesWhileDisconnectedAndFlushesInOrder(t *testing.T) {
	t.Parallel()
	srv := newWSServer(t)
	ch := New(Config{URL: srv.srv.URL}, newCaptureHandler(), testLogger())

	require.NoError(t, ch.Send(protocol.MustMessage(protocol.TypeJoinRoom, protocol.JoinRoomData{RoomID: 3})))
	require.NoError(t, ch.Send(protocol.MustMessage(protocol.TypeChat, protocol.ChatData{RoomID: 3, Message: "one"})))
	require.NoError(t, ch.Send(protocol.MustMessage(protocol.TypeChat, protocol.ChatData{RoomID: 3, Message: "two"})))
	assert.Equal(t, 3, ch.QueueLen())
	assert.False(t, ch.IsConnected())

	require.NoError(t, ch.Connect(context.Background(), "tok-abc"))
	defer ch.Disconnect()

	assert.Equal(t, "tok-abc", <-srv.tokens)
	assert.Equal(t, protocol.TypeJoinRoom, srv.receive(t).Type)
	assert.Equal(t, protocol.TypeChat, srv.receive(t).Type)
	assert.Equal(t, protocol.TypeChat, srv.receive(t).Type)
	assert.Equal(t, 0, ch.QueueLen())
	assert.True(t, ch.IsConnected())
}

func TestConnectIsNoopWhenOpenWithSameToken(t *testing.T) {
	t.Parallel()
	srv := newWSServer(t)
	ch := New(Config{URL: srv.srv.URL}, newCaptureHandler(), testLogger())

	require.NoError(t, ch.Connect(context.Background(), "tok"))
	defer ch.Disconnect()
	srv.accept(t)

	require.NoError(t, ch.Connect(context.Background(), "tok"))

	select {
	case <-srv.conns:
		t.Fatal("same-token reconnect should not dial again")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnectWithNewTokenReplacesConnection(t *testing.T) {
	t.Parallel()
	srv := newWSServer(t)
	ch := New(Config{URL: srv.srv.URL}, newCaptureHandler(), testLogger())

	require.NoError(t, ch.Connect(context.Background(), "tok-old"))
	defer ch.Disconnect()
	assert.Equal(t, "tok-old", <-srv.tokens)
	srv.accept(t)

	require.NoError(t, ch.Connect(context.Background(), "tok-new"))
	assert.Equal(t, "tok-new", <-srv.tokens)
	srv.accept(t)
	assert.Equal(t, "tok-new", ch.Token())
}

func TestConnectWhileConnecting(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	ch := New(Config{URL: "ws://127.0.0.1:1"}, newCaptureHandler(), testLogger())
	ch.dialer = &websocket.Dialer{
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			<-release
			return nil, context.Canceled
		},
	}

	errs := make(chan error, 1)
	go func() { errs <- ch.Connect(context.Background(), "tok") }()

	require.Eventually(t, func() bool {
		return ch.State() == StateConnecting
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, ch.Connect(context.Background(), "tok"), ErrAlreadyConnecting)

	close(release)
	assert.Error(t, <-errs)
	assert.Equal(t, StateIdle, ch.State())
}

func TestDisconnectSupersedesInflightConnect(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	ch := New(Config{URL: "ws://127.0.0.1:1"}, newCaptureHandler(), testLogger())
	ch.dialer = &websocket.Dialer{
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			<-release
			return nil, context.Canceled
		},
	}

	errs := make(chan error, 1)
	go func() { errs <- ch.Connect(context.Background(), "tok") }()

	require.Eventually(t, func() bool {
		return ch.State() == StateConnecting
	}, time.Second, time.Millisecond)

	ch.Disconnect()
	close(release)

	assert.ErrorIs(t, <-errs, ErrSuperseded)
	assert.Equal(t, StateIdle, ch.State())
	assert.Empty(t, ch.Token())
}

func TestMalformedFrameDoesNotCloseConnection(t *testing.T) {
	t.Parallel()
	srv := newWSServer(t)
	handler := newCaptureHandler()
	ch := New(Config{URL: srv.srv.URL}, handler, testLogger())

	require.NoError(t, ch.Connect(context.Background(), "tok"))
	defer ch.Disconnect()
	conn := srv.accept(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteJSON(protocol.MustMessage(protocol.TypePong, nil)))

	msg := handler.next(t)
	assert.Equal(t, protocol.TypePong, msg.Type, "malformed frame is dropped, later frames still arrive")
	assert.True(t, ch.IsConnected())
}

func TestInboundFramesArriveInOrder(t *testing.T) {
	t.Parallel()
	srv := newWSServer(t)
	handler := newCaptureHandler()
	ch := New(Config{URL: srv.srv.URL}, handler, testLogger())

	require.NoError(t, ch.Connect(context.Background(), "tok"))
	defer ch.Disconnect()
	conn := srv.accept(t)

	types := []protocol.MessageType{
		protocol.TypeGameStarted,
		protocol.TypeGameState,
		protocol.TypeChatMessage,
		protocol.TypeGameResults,
	}
	for _, mt := range types {
		require.NoError(t, conn.WriteJSON(protocol.MustMessage(mt, nil)))
	}
	for _, mt := range types {
		assert.Equal(t, mt, handler.next(t).Type)
	}
}

func TestAbnormalCloseReconnectsWithSameToken(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := newWSServer(t)
	clock := quartz.NewMock(t)
	rec := &statusRecorder{}
	ch := New(Config{
		URL:      srv.srv.URL,
		Clock:    clock,
		OnStatus: rec.record,
	}, newCaptureHandler(), testLogger())

	require.NoError(t, ch.Connect(context.Background(), "tok"))
	defer ch.Disconnect()
	assert.Equal(t, "tok", <-srv.tokens)
	conn := srv.accept(t)

	// Drop the connection without a close frame
	require.NoError(t, conn.UnderlyingConn().Close())

	require.Eventually(t, func() bool {
		return ch.State() == StateWaitingBackoff
	}, 5*time.Second, time.Millisecond)

	clock.Advance(3 * time.Second).MustWait(ctx)

	assert.Equal(t, "tok", <-srv.tokens, "reconnect reuses the last credential token")
	srv.accept(t)
	require.Eventually(t, func() bool {
		return ch.IsConnected()
	}, 5*time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, rec.count(StatusReconnecting), 1)
	assert.Equal(t, 0, rec.count(StatusExhausted))
}

func TestNormalServerCloseDoesNotReconnect(t *testing.T) {
	t.Parallel()
	srv := newWSServer(t)
	clock := quartz.NewMock(t)
	rec := &statusRecorder{}
	ch := New(Config{
		URL:      srv.srv.URL,
		Clock:    clock,
		OnStatus: rec.record,
	}, newCaptureHandler(), testLogger())

	require.NoError(t, ch.Connect(context.Background(), "tok"))
	conn := srv.accept(t)

	deadline := time.Now().Add(time.Second)
	require.NoError(t, conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), deadline))

	require.Eventually(t, func() bool {
		return ch.State() == StateIdle
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, 0, rec.count(StatusReconnecting))
}

func TestDisconnectCancelsScheduledReconnect(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := newWSServer(t)
	clock := quartz.NewMock(t)
	rec := &statusRecorder{}
	ch := New(Config{
		URL:      srv.srv.URL,
		Clock:    clock,
		OnStatus: rec.record,
	}, newCaptureHandler(), testLogger())

	require.NoError(t, ch.Connect(context.Background(), "tok"))
	conn := srv.accept(t)
	require.NoError(t, conn.UnderlyingConn().Close())

	require.Eventually(t, func() bool {
		return ch.State() == StateWaitingBackoff
	}, 5*time.Second, time.Millisecond)

	ch.Disconnect()
	clock.Advance(3 * time.Second).MustWait(ctx)

	assert.Equal(t, StateIdle, ch.State())
	select {
	case <-srv.conns:
		t.Fatal("deliberate disconnect must not be followed by a reconnect")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReconnectExhaustionReportedOnce(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv := newWSServer(t)
	clock := quartz.NewMock(t)
	rec := &statusRecorder{}
	ch := New(Config{
		URL:                  srv.srv.URL,
		MaxReconnectAttempts: 2,
		Clock:                clock,
		OnStatus:             rec.record,
	}, newCaptureHandler(), testLogger())

	require.NoError(t, ch.Connect(context.Background(), "tok"))
	conn := srv.accept(t)

	// Take the server down entirely; the live connection drops and every
	// redial fails. Server.Close does not touch hijacked connections, so the
	// accepted conn must be dropped explicitly.
	srv.srv.Close()
	require.NoError(t, conn.UnderlyingConn().Close())

	for attempt := 0; attempt < 2; attempt++ {
		require.Eventually(t, func() bool {
			return ch.State() == StateWaitingBackoff
		}, 5*time.Second, time.Millisecond)
		clock.Advance(3 * time.Second).MustWait(ctx)
	}

	require.Eventually(t, func() bool {
		return rec.count(StatusExhausted) == 1
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, StateIdle, ch.State())
	assert.Equal(t, 2, rec.count(StatusReconnecting))

	// Settled: advancing time further changes nothing
	assert.Equal(t, 1, rec.count(StatusExhausted))
}

func TestSendDuringTeardownRequeues(t *testing.T) {
	t.Parallel()
	srv := newWSServer(t)
	clock := quartz.NewMock(t)
	ch := New(Config{URL: srv.srv.URL, Clock: clock}, newCaptureHandler(), testLogger())

	require.NoError(t, ch.Connect(context.Background(), "tok"))
	srv.accept(t)

	// Kill the transport underneath the channel. Whether Send observes the
	// open state before or after the close is noticed, the message must end
	// up queued, never dropped.
	ch.mu.Lock()
	conn := ch.conn
	ch.mu.Unlock()
	require.NotNil(t, conn)
	require.NoError(t, conn.UnderlyingConn().Close())

	require.NoError(t, ch.Send(protocol.MustMessage(protocol.TypeChat, protocol.ChatData{RoomID: 3, Message: "hi"})))
	assert.Equal(t, 1, ch.QueueLen())
}

func TestSendAfterDisconnectQueues(t *testing.T) {
	t.Parallel()
	srv := newWSServer(t)
	ch := New(Config{URL: srv.srv.URL}, newCaptureHandler(), testLogger())

	require.NoError(t, ch.Connect(context.Background(), "tok"))
	srv.accept(t)
	ch.Disconnect()

	require.NoError(t, ch.Send(protocol.MustMessage(protocol.TypePing, nil)))
	assert.Equal(t, 1, ch.QueueLen())
	assert.Equal(t, StateIdle, ch.State())
}

func TestQueueClearedOnDisconnect(t *testing.T) {
	t.Parallel()
	ch := New(Config{URL: "ws://127.0.0.1:1"}, newCaptureHandler(), testLogger())

	require.NoError(t, ch.Send(protocol.MustMessage(protocol.TypePing, nil)))
	require.NoError(t, ch.Send(protocol.MustMessage(protocol.TypePing, nil)))
	assert.Equal(t, 2, ch.QueueLen())

	ch.Disconnect()
	assert.Equal(t, 0, ch.QueueLen())
}

func TestBuildURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{"http scheme coerced", "http://example.com", "ws://example.com/ws?token=tok"},
		{"https scheme coerced", "https://example.com", "wss://example.com/ws?token=tok"},
		{"ws scheme kept", "ws://example.com/ws", "ws://example.com/ws?token=tok"},
		{"explicit path kept", "ws://example.com/socket", "ws://example.com/socket?token=tok"},
		{"default path applied", "ws://example.com/", "ws://example.com/ws?token=tok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := New(Config{URL: tt.url}, newCaptureHandler(), testLogger())
			got, err := ch.buildURL("tok")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedactToken(t *testing.T) {
	t.Parallel()

	redacted := redactToken("ws://example.com/ws?token=secret-value")
	assert.NotContains(t, redacted, "secret-value")
	assert.Contains(t, redacted, "token=%5Bredacted%5D")
}
