// Package protocol defines the websocket message envelope and the typed
// payloads exchanged with the game server.
package protocol

import "encoding/json"

// Message is the wire envelope for every frame in both directions
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MessageType tags a frame's payload shape
type MessageType string

// Client to server message types
const (
	TypeGameAction MessageType = "game_action"
	TypeJoinRoom   MessageType = "join_room"
	TypeLeaveRoom  MessageType = "leave_room"
	TypeChat       MessageType = "chat"
	TypeStartGame  MessageType = "start_game"
	TypeShowCards  MessageType = "show_cards"
	TypePing       MessageType = "ping"
)

// Server to client message types
const (
	TypeGameState    MessageType = "game_state"
	TypeGameStarted  MessageType = "game_started"
	TypePlayerJoined MessageType = "player_joined"
	TypePlayerLeft   MessageType = "player_left"
	TypeChatMessage  MessageType = "chat_message"
	TypeGameResults  MessageType = "game_results"
	TypeError        MessageType = "error"
	TypePong         MessageType = "pong"
)

// Client to server payloads

// GameActionData declares a betting action for a room
type GameActionData struct {
	RoomID   int    `json:"room_id"`
	Action   string `json:"action"`
	Amount   int    `json:"amount"`
	PlayerID string `json:"player_id"`
}

// JoinRoomData subscribes the connection to a room's events
type JoinRoomData struct {
	RoomID int `json:"room_id"`
}

// LeaveRoomData unsubscribes the connection from a room
type LeaveRoomData struct {
	RoomID int `json:"room_id"`
}

// ChatData carries an outbound chat line
type ChatData struct {
	RoomID  int    `json:"room_id"`
	Message string `json:"message"`
}

// StartGameData asks the server to deal the next hand
type StartGameData struct {
	RoomID int `json:"room_id"`
}

// ShowCardsData reveals a player's hole cards to the table. Inbound frames of
// the same type may also carry the revealed cards.
type ShowCardsData struct {
	RoomID   int             `json:"room_id,omitempty"`
	PlayerID json.RawMessage `json:"player_id"`
	Cards    json.RawMessage `json:"cards,omitempty"`
}

// Server to client payloads

// ChatMessageData is an inbound chat line
type ChatMessageData struct {
	RoomID   int    `json:"room_id"`
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// PlayerEventData announces a player joining or leaving a room
type PlayerEventData struct {
	RoomID   int    `json:"room_id"`
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
}

// ErrorData is sent when the server rejects a request
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewMessage creates a message with the given type and marshaled payload
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	if data == nil {
		return &Message{Type: msgType, Data: json.RawMessage("{}")}, nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{Type: msgType, Data: jsonData}, nil
}

// MustMessage is NewMessage for payloads that cannot fail to marshal
func MustMessage(msgType MessageType, data interface{}) *Message {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		panic(err)
	}
	return msg
}
