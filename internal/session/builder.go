package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/charmbracelet/log"
)

// ErrNotSessionState is returned when a payload carries neither a nested game
// object nor any recognizable session-state field.
var ErrNotSessionState = errors.New("payload is not a session state")

// Field aliases accepted from the server. The server has sent both snake_case
// and camelCase forms of these at various points; the first key present wins.
var (
	aliasGameID         = []string{"id", "room_id"}
	aliasCurrentBet     = []string{"current_bet", "currentBet"}
	aliasCommunityCards = []string{"community_cards", "communityCards"}
	aliasPhase          = []string{"stage", "phase"}
	aliasSmallBlind     = []string{"small_blind", "smallBlind"}
	aliasBigBlind       = []string{"big_blind", "bigBlind"}
	aliasDealerPosition = []string{"dealer_position", "dealerPosition"}
	aliasCurrentPlayer  = []string{"current_player", "currentPlayer"}
	aliasPlayerID       = []string{"user_id", "id"}
	aliasHoleCards      = []string{"hole_cards", "cards"}
)

// Fallback blind amounts when the payload declares neither naming convention
const (
	defaultSmallBlind = 10
	defaultBigBlind   = 20
)

// Builder converts raw server game-state payloads into normalized snapshots.
// Building is a pure transformation of its inputs; the logger only records
// expected anomalies such as an unresolvable current actor.
type Builder struct {
	logger *log.Logger
}

// NewBuilder creates a snapshot builder
func NewBuilder(logger *log.Logger) *Builder {
	return &Builder{logger: logger.WithPrefix("builder")}
}

// Build produces a new snapshot from a raw game_state payload. The payload
// may carry the game object nested under a "game" key or flat at the top
// level. Each accepted frame replaces the entire snapshot: the server sends
// complete state every time, and merging partial data across server ticks
// risks showing a view that mixes two of them. The prior snapshot contributes
// only the local show-cards override, which is client-observational and not
// server-authoritative.
func (b *Builder) Build(prior *Snapshot, raw json.RawMessage) (*Snapshot, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("malformed game state payload: %w", err)
	}

	data := payload
	if nested, ok := payload["game"].(map[string]any); ok {
		data = nested
	} else if _, ok := lookup(payload, aliasPhase); !ok {
		return nil, ErrNotSessionState
	}

	snap := &Snapshot{
		ID:             stringOr(data, aliasGameID, ""),
		Pot:            intOr(data, []string{"pot"}, 0),
		CurrentBet:     intOr(data, aliasCurrentBet, 0),
		Phase:          Phase(stringOr(data, aliasPhase, string(PhaseWaiting))),
		SmallBlind:     intOr(data, aliasSmallBlind, defaultSmallBlind),
		BigBlind:       intOr(data, aliasBigBlind, defaultBigBlind),
		DealerPosition: intOr(data, aliasDealerPosition, 0),
	}

	if rawPlayers, ok := data["players"].([]any); ok {
		snap.Players = make([]Player, 0, len(rawPlayers))
		for _, rp := range rawPlayers {
			pm, ok := rp.(map[string]any)
			if !ok {
				continue
			}
			snap.Players = append(snap.Players, b.buildPlayer(prior, pm))
		}
	}

	if rawCards, ok := lookup(data, aliasCommunityCards); ok {
		snap.CommunityCards = buildCards(rawCards)
	}

	b.resolveCurrentActor(snap, data)
	return snap, nil
}

// buildPlayer normalizes one player entry. Missing booleans default to their
// safe value: a player is presumed active, and presumed not folded, not
// all-in, not ready. Missing numerics default to zero and a missing seat to
// the unassigned sentinel.
func (b *Builder) buildPlayer(prior *Snapshot, pm map[string]any) Player {
	id := ""
	if v, ok := lookup(pm, aliasPlayerID); ok {
		id = CanonicalID(v)
	}

	p := Player{
		ID:         id,
		Username:   stringOr(pm, []string{"username"}, ""),
		Avatar:     stringOr(pm, []string{"avatar"}, ""),
		Chips:      intOr(pm, []string{"chips"}, 0),
		CurrentBet: intOr(pm, []string{"current_bet"}, 0),
		Position:   intOr(pm, []string{"position"}, PositionUnassigned),
		IsActive:   boolOr(pm, "is_active", true),
		IsFolded:   boolOr(pm, "is_folded", false),
		IsAllIn:    boolOr(pm, "is_all_in", false),
		IsReady:    boolOr(pm, "is_ready", false),
		ShowCards:  boolOr(pm, "show_cards", false),
		Action:     stringOr(pm, []string{"action"}, "none"),
	}

	if rawCards, ok := lookup(pm, aliasHoleCards); ok {
		p.Cards = buildCards(rawCards)
	}

	// Carry the local reveal override across full replacements
	if !p.ShowCards && prior != nil {
		if i := prior.FindPlayer(id); i != -1 && prior.Players[i].ShowCards {
			p.ShowCards = true
		}
	}

	return p
}

// resolveCurrentActor canonicalizes the declared actor id and locates it in
// the freshly built player list. A miss is expected (the player may have just
// left) and falls back to no actor and index 0 rather than failing the frame.
func (b *Builder) resolveCurrentActor(snap *Snapshot, data map[string]any) {
	raw, ok := lookup(data, aliasCurrentPlayer)
	if !ok || raw == nil {
		snap.CurrentPlayerID = ""
		snap.CurrentPlayerIndex = 0
		return
	}

	id := CanonicalID(raw)
	if i := snap.FindPlayer(id); i != -1 {
		snap.CurrentPlayerID = id
		snap.CurrentPlayerIndex = i
		return
	}

	b.logger.Warn("declared current player not found among players",
		"currentPlayer", id, "players", len(snap.Players))
	snap.CurrentPlayerID = ""
	snap.CurrentPlayerIndex = 0
}

// buildCards converts a raw card array, defaulting unknown suits to spades
// and unknown ranks to the lowest rank.
func buildCards(raw any) []Card {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	cards := make([]Card, 0, len(items))
	for _, it := range items {
		cm, ok := it.(map[string]any)
		if !ok {
			continue
		}
		card := Card{
			Suit:    Suit(stringOr(cm, []string{"suit"}, string(Spades))),
			Rank:    Rank(intOr(cm, []string{"rank"}, int(Two))),
			Display: stringOr(cm, []string{"display"}, ""),
		}
		if !card.Suit.Valid() {
			card.Suit = Spades
		}
		cards = append(cards, card)
	}
	return cards
}

// CanonicalID coerces a server-declared identifier to its canonical string
// form. The server sends ids as both JSON numbers and strings; all identifier
// equality in this layer is string equality after this coercion. Coercion is
// idempotent: canonicalizing an already-string id returns it unchanged.
func CanonicalID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case json.Number:
		return id.String()
	case float64:
		if id == math.Trunc(id) {
			return strconv.FormatInt(int64(id), 10)
		}
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return fmt.Sprint(id)
	}
}

// lookup returns the first present alias key in m
func lookup(m map[string]any, aliases []string) (any, bool) {
	for _, k := range aliases {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func stringOr(m map[string]any, aliases []string, fallback string) string {
	if v, ok := lookup(m, aliases); ok {
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			return CanonicalID(s)
		}
	}
	return fallback
}

func intOr(m map[string]any, aliases []string, fallback int) int {
	if v, ok := lookup(m, aliases); ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return fallback
}

func boolOr(m map[string]any, key string, fallback bool) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}
