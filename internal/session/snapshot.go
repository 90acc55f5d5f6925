package session

// Phase is one stage of a hand's progression
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhasePreflop  Phase = "preflop"
	PhaseFlop     Phase = "flop"
	PhaseTurn     Phase = "turn"
	PhaseRiver    Phase = "river"
	PhaseShowdown Phase = "showdown"
	PhaseFinished Phase = "finished"
)

// phaseOrder is the fixed progression a hand moves through
var phaseOrder = []Phase{
	PhaseWaiting,
	PhasePreflop,
	PhaseFlop,
	PhaseTurn,
	PhaseRiver,
	PhaseShowdown,
	PhaseFinished,
}

// Next returns the phase that follows p. The terminal phase returns itself.
func (p Phase) Next() Phase {
	for i, ph := range phaseOrder {
		if ph == p && i < len(phaseOrder)-1 {
			return phaseOrder[i+1]
		}
	}
	return p
}

// PositionUnassigned is the seat sentinel for a player without a seat index
const PositionUnassigned = -1

// Player is one seat's state within a snapshot. Players are owned by the
// snapshot that contains them and are replaced wholesale on every server
// state frame; only the local show-cards override survives between frames.
type Player struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Avatar     string `json:"avatar"`
	Chips      int    `json:"chips"`
	CurrentBet int    `json:"currentBet"`
	Cards      []Card `json:"cards"`
	Position   int    `json:"position"`
	IsActive   bool   `json:"isActive"`
	IsFolded   bool   `json:"isFolded"`
	IsAllIn    bool   `json:"isAllIn"`
	IsReady    bool   `json:"isReady"`
	ShowCards  bool   `json:"showCards"`
	Action     string `json:"action"`
}

// Snapshot is one complete, internally consistent view of the game session.
// Invariant: when CurrentPlayerID is non-empty, Players[CurrentPlayerIndex].ID
// equals CurrentPlayerID; when the declared actor cannot be resolved,
// CurrentPlayerID is empty and CurrentPlayerIndex is 0.
type Snapshot struct {
	ID                 string   `json:"id"`
	Players            []Player `json:"players"`
	CommunityCards     []Card   `json:"communityCards"`
	Pot                int      `json:"pot"`
	CurrentBet         int      `json:"currentBet"`
	CurrentPlayerIndex int      `json:"currentPlayerIndex"`
	CurrentPlayerID    string   `json:"currentPlayerId"`
	Phase              Phase    `json:"phase"`
	SmallBlind         int      `json:"smallBlind"`
	BigBlind           int      `json:"bigBlind"`
	DealerPosition     int      `json:"dealerPosition"`
}

// Clone returns a deep copy. Mutating the copy never affects the original,
// which is what lets the store hand out snapshots without locking readers.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		cp := p
		cp.Cards = append([]Card(nil), p.Cards...)
		out.Players[i] = cp
	}
	out.CommunityCards = append([]Card(nil), s.CommunityCards...)
	return &out
}

// AdvancePhase returns a copy moved to the next phase with the snapshot and
// per-player current bets cleared. This is optimistic UI smoothing between
// betting rounds; the server's next full snapshot remains authoritative and
// wholly replaces it. Advancing past the terminal phase is a no-op copy.
func (s *Snapshot) AdvancePhase() *Snapshot {
	out := s.Clone()
	next := s.Phase.Next()
	if next == s.Phase {
		return out
	}
	out.Phase = next
	out.CurrentBet = 0
	for i := range out.Players {
		out.Players[i].CurrentBet = 0
	}
	return out
}

// CurrentActor returns the player whose turn it is, or nil when the snapshot
// has no resolvable actor.
func (s *Snapshot) CurrentActor() *Player {
	if s == nil || s.CurrentPlayerID == "" {
		return nil
	}
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players) {
		return nil
	}
	p := s.Players[s.CurrentPlayerIndex]
	return &p
}

// FindPlayer returns the index of the player with the given canonical id,
// or -1 when absent.
func (s *Snapshot) FindPlayer(id string) int {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return i
		}
	}
	return -1
}
