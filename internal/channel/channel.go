// Package channel owns the client's single logical websocket connection to
// the game server: dialing, lifecycle state, the outbound queue, and the
// bounded reconnection policy.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/lox/pokerlive/internal/protocol"
)

// State is the channel's lifecycle state
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateWaitingBackoff
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateWaitingBackoff:
		return "waiting-backoff"
	default:
		return "unknown"
	}
}

// Status is reported to the status callback on lifecycle transitions
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusOpen
	StatusReconnecting
	StatusExhausted
)

// String returns the status name
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	case StatusReconnecting:
		return "reconnecting"
	case StatusExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// ErrAlreadyConnecting is returned when Connect is called while another
// connect attempt is in flight. At most one physical connection attempt
// exists at a time; callers must not retry in a tight loop.
var ErrAlreadyConnecting = errors.New("connect already in progress")

// ErrSuperseded is returned when an in-flight connect attempt was cancelled
// by a Disconnect before it settled.
var ErrSuperseded = errors.New("connect superseded by disconnect")

// Handler receives every inbound frame, strictly in arrival order
type Handler interface {
	HandleMessage(*protocol.Message)
}

// StatusFunc observes channel lifecycle transitions
type StatusFunc func(Status)

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectDelay       = 3000 * time.Millisecond
)

// Config configures a Channel
type Config struct {
	// URL is the server base URL; http(s) schemes are coerced to ws(s) and
	// the /ws path is applied when none is set.
	URL string

	// MaxReconnectAttempts bounds the reconnect cycle (default 5)
	MaxReconnectAttempts int

	// ReconnectDelay is the fixed wait before each reconnect (default 3s)
	ReconnectDelay time.Duration

	// Clock injects time for the reconnect timer; defaults to the real clock
	Clock quartz.Clock

	// OnStatus, when set, is invoked on lifecycle transitions
	OnStatus StatusFunc
}

// Channel is a persistent full-duplex connection to the game server. Sends
// while disconnected are queued FIFO and flushed on the next successful
// connect. Abnormal closures trigger bounded reconnection with the last
// credential token; a deliberate Disconnect never does.
type Channel struct {
	dialer   *websocket.Dialer
	logger   *log.Logger
	clock    quartz.Clock
	handler  Handler
	onStatus StatusFunc

	url            string
	maxAttempts    int
	reconnectDelay time.Duration

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	token          string
	queue          []*protocol.Message
	attempts       int
	reconnectTimer *quartz.Timer

	// gen invalidates in-flight dials and readers across Disconnect calls so
	// a settling attempt cannot resurrect a closed channel
	gen int
}

// New creates a channel. The handler receives every inbound frame; it must
// not retain the message's Data beyond the call.
func New(cfg Config, handler Handler, logger *log.Logger) *Channel {
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	return &Channel{
		dialer:         websocket.DefaultDialer,
		logger:         logger.WithPrefix("channel"),
		clock:          cfg.Clock,
		handler:        handler,
		onStatus:       cfg.OnStatus,
		url:            cfg.URL,
		maxAttempts:    cfg.MaxReconnectAttempts,
		reconnectDelay: cfg.ReconnectDelay,
	}
}

// Connect dials the server, authenticating with the given bearer token. It
// is a no-op when already open with the same token and fails fast with
// ErrAlreadyConnecting when another attempt is in flight. On success the
// reconnect counter resets and queued messages flush in their original order.
func (c *Channel) Connect(ctx context.Context, token string) error {
	c.mu.Lock()
	switch c.state {
	case StateOpen:
		if c.token == token {
			c.mu.Unlock()
			return nil
		}
		// Token changed: drop the old connection before dialing anew
		c.closeLocked(websocket.CloseNormalClosure, "token changed")
	case StateConnecting:
		c.mu.Unlock()
		return ErrAlreadyConnecting
	}
	c.state = StateConnecting
	c.token = token
	gen := c.gen
	c.mu.Unlock()
	c.report(StatusConnecting)

	wsURL, err := c.buildURL(token)
	if err != nil {
		c.settleFailed(gen)
		return err
	}

	c.logger.Info("connecting", "url", redactToken(wsURL))
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrSuperseded
	}
	if err != nil {
		c.state = StateIdle
		c.mu.Unlock()
		c.report(StatusDisconnected)
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	flush := c.queue
	c.queue = nil
	c.mu.Unlock()

	c.report(StatusOpen)
	c.logger.Info("connected", "queued", len(flush))

	for _, msg := range flush {
		if err := c.writeMessage(conn, msg); err != nil {
			c.logger.Error("failed to flush queued message", "type", msg.Type, "error", err)
			break
		}
	}

	go c.readLoop(conn, gen)
	return nil
}

// Disconnect performs a graceful close. It always settles the channel in the
// idle state: the pending reconnect timer is cancelled, the outbound queue
// and stored token are cleared, and no reconnection is attempted.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.gen++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.closeLocked(websocket.CloseNormalClosure, "user disconnected")
	c.state = StateIdle
	c.token = ""
	c.queue = nil
	c.attempts = 0
	c.mu.Unlock()
	c.report(StatusDisconnected)
	c.logger.Info("disconnected")
}

// Send transmits a message immediately when open, and otherwise queues it
// for the next successful connect. Sending while disconnected is never an
// error; the queue is unbounded FIFO. A write that fails against a connection
// mid-teardown requeues the message rather than dropping it.
func (c *Channel) Send(msg *protocol.Message) error {
	c.mu.Lock()
	if c.state != StateOpen || c.conn == nil {
		c.enqueueLocked(msg)
		c.mu.Unlock()
		return nil
	}
	conn := c.conn
	c.mu.Unlock()

	if err := c.writeMessage(conn, msg); err != nil {
		c.logger.Debug("write failed, requeueing message", "type", msg.Type, "error", err)
		c.mu.Lock()
		c.enqueueLocked(msg)
		c.mu.Unlock()
	}
	return nil
}

// enqueueLocked appends msg to the outbound queue. Callers must hold mu.
func (c *Channel) enqueueLocked(msg *protocol.Message) {
	c.queue = append(c.queue, msg)
	c.logger.Debug("queued message while disconnected", "type", msg.Type, "queued", len(c.queue))
}

// State returns the channel's current lifecycle state
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the channel is open
func (c *Channel) IsConnected() bool {
	return c.State() == StateOpen
}

// Token returns the credential token of the current connection, if any
func (c *Channel) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// QueueLen returns the number of messages waiting for a live connection
func (c *Channel) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Channel) writeMessage(conn *websocket.Conn, msg *protocol.Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg)
}

// readLoop reads frames from one physical connection and hands them to the
// handler synchronously. One goroutine per connection keeps inbound frames
// strictly in arrival order. A frame that fails to parse is dropped without
// closing the connection.
func (c *Channel) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, gen, err)
			return
		}
		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Error("dropping malformed frame", "error", err)
			continue
		}
		c.handler.HandleMessage(&msg)
	}
}

// handleClose classifies a read failure. A close initiated by Disconnect (or
// any later generation) is ignored; an abnormal closure enters the reconnect
// cycle while attempts remain, and reports exhaustion exactly once when they
// run out.
func (c *Channel) handleClose(conn *websocket.Conn, gen int, err error) {
	c.mu.Lock()
	if c.gen != gen || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.state = StateIdle
		c.mu.Unlock()
		c.logger.Info("connection closed by server")
		c.report(StatusDisconnected)
		return
	}

	if c.attempts >= c.maxAttempts {
		c.state = StateIdle
		c.mu.Unlock()
		c.logger.Error("reconnect attempts exhausted", "attempts", c.maxAttempts)
		c.report(StatusExhausted)
		return
	}

	c.attempts++
	attempt := c.attempts
	c.state = StateWaitingBackoff
	token := c.token
	c.reconnectTimer = c.clock.AfterFunc(c.reconnectDelay, func() {
		c.reconnect(gen, token)
	})
	c.mu.Unlock()

	c.logger.Warn("connection lost, scheduling reconnect",
		"error", err, "attempt", attempt, "maxAttempts", c.maxAttempts,
		"delay", c.reconnectDelay)
	c.report(StatusReconnecting)
}

// reconnect is the timer callback for one bounded retry
func (c *Channel) reconnect(gen int, token string) {
	c.mu.Lock()
	if c.gen != gen || c.state != StateWaitingBackoff {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.reconnectTimer = nil
	c.mu.Unlock()

	if err := c.Connect(context.Background(), token); err != nil {
		c.logger.Warn("reconnect attempt failed", "error", err)
		// A failed dial consumes its attempt and retries on the same cadence
		c.mu.Lock()
		if c.gen != gen || c.state != StateIdle {
			c.mu.Unlock()
			return
		}
		if c.attempts >= c.maxAttempts {
			c.mu.Unlock()
			c.logger.Error("reconnect attempts exhausted", "attempts", c.maxAttempts)
			c.report(StatusExhausted)
			return
		}
		c.attempts++
		c.state = StateWaitingBackoff
		c.token = token
		c.reconnectTimer = c.clock.AfterFunc(c.reconnectDelay, func() {
			c.reconnect(gen, token)
		})
		c.mu.Unlock()
		c.report(StatusReconnecting)
	}
}

// closeLocked closes the physical connection with a close frame. Callers
// must hold mu.
func (c *Channel) closeLocked(code int, reason string) {
	if c.conn == nil {
		return
	}
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.conn.Close()
	c.conn = nil
}

func (c *Channel) report(s Status) {
	if c.onStatus != nil {
		c.onStatus(s)
	}
}

func (c *Channel) settleFailed(gen int) {
	c.mu.Lock()
	if c.gen == gen && c.state == StateConnecting {
		c.state = StateIdle
	}
	c.mu.Unlock()
	c.report(StatusDisconnected)
}

// buildURL converts the configured base URL into the websocket endpoint with
// the bearer token as a query parameter.
func (c *Channel) buildURL(token string) (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func redactToken(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return wsURL
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "[redacted]")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
