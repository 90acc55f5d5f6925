// Package client composes the connection channel, message router and session
// store into the typed client API the UI layer talks to.
package client

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/pokerlive/internal/auth"
	"github.com/lox/pokerlive/internal/channel"
	"github.com/lox/pokerlive/internal/protocol"
	"github.com/lox/pokerlive/internal/router"
	"github.com/lox/pokerlive/internal/session"
)

// ErrNotAuthenticated is returned when an operation requires a logged-in
// user and the credential provider has no token.
var ErrNotAuthenticated = errors.New("not authenticated")

// Config configures a Client
type Config struct {
	// ServerURL is the game server base URL
	ServerURL string

	// ReconnectAttempts and ReconnectDelay tune the channel's bounded
	// reconnect policy; zero values use the channel defaults.
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// Clock injects time; defaults to the real clock
	Clock quartz.Clock
}

// Client is the application-facing API: typed outbound operations plus the
// session store holding the normalized view of the game in progress.
type Client struct {
	ch     *channel.Channel
	store  *session.Store
	creds  auth.CredentialProvider
	logger *log.Logger
	roomID int

	onStatus channel.StatusFunc
	onNotice router.NoticeFunc
}

// New creates a client wired to the given credential provider
func New(cfg Config, creds auth.CredentialProvider, logger *log.Logger) *Client {
	c := &Client{
		creds:  creds,
		logger: logger.WithPrefix("client"),
	}

	c.store = session.NewStore(logger)
	builder := session.NewBuilder(logger)
	r := router.New(builder, c.store, func(n router.Notice) {
		if c.onNotice != nil {
			c.onNotice(n)
		}
	}, logger)

	c.ch = channel.New(channel.Config{
		URL:                  cfg.ServerURL,
		MaxReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
		Clock:                cfg.Clock,
		OnStatus: func(s channel.Status) {
			if c.onStatus != nil {
				c.onStatus(s)
			}
		},
	}, r, logger)

	return c
}

// OnStatus registers the lifecycle observer. Must be called before Connect.
func (c *Client) OnStatus(f channel.StatusFunc) {
	c.onStatus = f
}

// OnNotice registers the chat and lifecycle notice observer. Must be called
// before Connect.
func (c *Client) OnNotice(f router.NoticeFunc) {
	c.onNotice = f
}

// Store returns the session store for read access and subscriptions
func (c *Client) Store() *session.Store {
	return c.store
}

// Connect opens the channel using the provider's current token
func (c *Client) Connect(ctx context.Context) error {
	token, ok := c.creds.Token()
	if !ok {
		return ErrNotAuthenticated
	}
	return c.ch.Connect(ctx, token)
}

// Disconnect closes the channel deliberately; no reconnection follows
func (c *Client) Disconnect() {
	c.ch.Disconnect()
}

// IsConnected reports whether the channel is open
func (c *Client) IsConnected() bool {
	return c.ch.IsConnected()
}

// JoinRoom subscribes to a room's events. The room id is remembered for
// subsequent action sends.
func (c *Client) JoinRoom(roomID int) error {
	c.roomID = roomID
	return c.send(protocol.TypeJoinRoom, protocol.JoinRoomData{RoomID: roomID})
}

// LeaveRoom unsubscribes from the current room and clears the local session
// view and results record.
func (c *Client) LeaveRoom() error {
	err := c.send(protocol.TypeLeaveRoom, protocol.LeaveRoomData{RoomID: c.roomID})
	c.store.Clear()
	c.store.ClearResults()
	c.roomID = 0
	return err
}

// GameAction declares a betting action for the current room on behalf of the
// logged-in player.
func (c *Client) GameAction(action string, amount int) error {
	id, err := c.playerID()
	if err != nil {
		return err
	}
	return c.send(protocol.TypeGameAction, protocol.GameActionData{
		RoomID:   c.roomID,
		Action:   action,
		Amount:   amount,
		PlayerID: id,
	})
}

// Chat sends a chat line to the current room
func (c *Client) Chat(message string) error {
	return c.send(protocol.TypeChat, protocol.ChatData{RoomID: c.roomID, Message: message})
}

// StartGame asks the server to deal the next hand in the current room
func (c *Client) StartGame() error {
	return c.send(protocol.TypeStartGame, protocol.StartGameData{RoomID: c.roomID})
}

// ShowCards reveals the logged-in player's hole cards to the table
func (c *Client) ShowCards() error {
	id, err := c.playerID()
	if err != nil {
		return err
	}
	msg, err := protocol.NewMessage(protocol.TypeShowCards, map[string]interface{}{
		"room_id":   c.roomID,
		"player_id": id,
	})
	if err != nil {
		return err
	}
	return c.ch.Send(msg)
}

// Ping sends an application-level heartbeat
func (c *Client) Ping() error {
	return c.send(protocol.TypePing, nil)
}

func (c *Client) send(t protocol.MessageType, data interface{}) error {
	msg, err := protocol.NewMessage(t, data)
	if err != nil {
		return err
	}
	return c.ch.Send(msg)
}

// playerID resolves the logged-in player's canonical id from the credential
// provider's profile, when it carries one.
func (c *Client) playerID() (string, error) {
	if !c.creds.Authenticated() {
		return "", ErrNotAuthenticated
	}
	type profiled interface{ Profile() *auth.Profile }
	if p, ok := c.creds.(profiled); ok {
		if profile := p.Profile(); profile != nil {
			return profile.ID, nil
		}
	}
	return "", nil
}
