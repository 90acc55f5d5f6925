// Package router classifies inbound frames by their type tag and dispatches
// them to the session layer. It is deliberately tolerant: an unknown type or
// a malformed payload is logged and dropped, never fatal to the channel.
package router

import (
	"encoding/json"

	"github.com/charmbracelet/log"

	"github.com/lox/pokerlive/internal/protocol"
	"github.com/lox/pokerlive/internal/session"
)

// Notice is a lifecycle or chat event surfaced to the UI layer
type Notice struct {
	Type protocol.MessageType
	Text string
}

// NoticeFunc receives chat lines and lifecycle notifications
type NoticeFunc func(Notice)

// Router dispatches inbound frames. Collaborators are injected at
// construction; there is no runtime lookup.
type Router struct {
	builder *session.Builder
	store   *session.Store
	notice  NoticeFunc
	logger  *log.Logger
}

// New creates a router writing session state into store. The notice callback
// may be nil when no UI is attached.
func New(builder *session.Builder, store *session.Store, notice NoticeFunc, logger *log.Logger) *Router {
	return &Router{
		builder: builder,
		store:   store,
		notice:  notice,
		logger:  logger.WithPrefix("router"),
	}
}

// HandleMessage implements channel.Handler. Frames are processed to
// completion in arrival order; nothing here blocks.
func (r *Router) HandleMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeGameState:
		r.handleGameState(msg.Data)
	case protocol.TypeGameAction:
		// Acknowledgement only; the authoritative state arrives in a
		// separate game_state frame
		r.logger.Debug("game action acknowledged")
	case protocol.TypeGameStarted:
		r.post(msg.Type, "game started")
	case protocol.TypePlayerJoined:
		r.handlePlayerEvent(msg)
	case protocol.TypePlayerLeft:
		r.handlePlayerEvent(msg)
	case protocol.TypeChatMessage:
		r.handleChat(msg.Data)
	case protocol.TypeShowCards:
		r.handleShowCards(msg.Data)
	case protocol.TypeGameResults:
		r.handleResults(msg.Data)
	case protocol.TypeError:
		r.handleError(msg.Data)
	case protocol.TypePong:
		// Heartbeat reply, nothing to do
	default:
		r.logger.Debug("ignoring unknown message type", "type", msg.Type)
	}
}

func (r *Router) handleGameState(data json.RawMessage) {
	prior := r.store.Current()
	snap, err := r.builder.Build(prior, data)
	if err != nil {
		r.logger.Error("dropping malformed game state", "error", err)
		return
	}
	r.store.Replace(snap)
}

func (r *Router) handlePlayerEvent(msg *protocol.Message) {
	var ev protocol.PlayerEventData
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		r.logger.Error("dropping malformed player event", "type", msg.Type, "error", err)
		return
	}
	verb := "joined"
	if msg.Type == protocol.TypePlayerLeft {
		verb = "left"
	}
	r.post(msg.Type, ev.Username+" "+verb+" the room")
}

func (r *Router) handleChat(data json.RawMessage) {
	var chat protocol.ChatMessageData
	if err := json.Unmarshal(data, &chat); err != nil {
		r.logger.Error("dropping malformed chat message", "error", err)
		return
	}
	r.post(protocol.TypeChatMessage, chat.Username+": "+chat.Message)
}

func (r *Router) handleShowCards(data json.RawMessage) {
	var reveal protocol.ShowCardsData
	if err := json.Unmarshal(data, &reveal); err != nil {
		r.logger.Error("dropping malformed show cards message", "error", err)
		return
	}
	var rawID any
	if err := json.Unmarshal(reveal.PlayerID, &rawID); err != nil || rawID == nil {
		r.logger.Error("show cards message without player id")
		return
	}
	r.store.SetPlayerShowCards(session.CanonicalID(rawID), true)
}

func (r *Router) handleResults(data json.RawMessage) {
	var results session.GameResults
	if err := json.Unmarshal(data, &results); err != nil {
		r.logger.Error("dropping malformed game results", "error", err)
		return
	}
	r.store.SetResults(&results)
}

func (r *Router) handleError(data json.RawMessage) {
	var errData protocol.ErrorData
	if err := json.Unmarshal(data, &errData); err != nil {
		r.logger.Error("server error with malformed payload")
		return
	}
	r.logger.Error("server error", "message", errData.Message, "code", errData.Code)
	r.post(protocol.TypeError, "server error: "+errData.Message)
}

func (r *Router) post(t protocol.MessageType, text string) {
	if r.notice != nil {
		r.notice(Notice{Type: t, Text: text})
	}
}
