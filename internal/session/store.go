package session

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Store holds the single current snapshot and results record for the client
// process. All mutation is atomic with respect to readers: a reader sees
// either the previous snapshot or the new one, never a partial update.
// Subscribers are notified after each mutation and read the new value back
// through the store's accessors.
type Store struct {
	mu      sync.RWMutex
	current *Snapshot
	results *GameResults
	subs    []chan struct{}
	logger  *log.Logger
}

// NewStore creates an empty session store
func NewStore(logger *log.Logger) *Store {
	return &Store{logger: logger.WithPrefix("session")}
}

// Subscribe returns a channel that receives a signal after every store
// mutation. Notification is non-blocking: a subscriber that has not drained
// its channel coalesces signals rather than stalling the event loop.
func (s *Store) Subscribe() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{}, 1)
	s.subs = append(s.subs, ch)
	return ch
}

func (s *Store) notify() {
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Replace installs a new snapshot wholesale, dropping the previous one
func (s *Store) Replace(snap *Snapshot) {
	s.mu.Lock()
	s.current = snap
	s.logger.Debug("snapshot replaced",
		"phase", snap.Phase, "players", len(snap.Players), "pot", snap.Pot)
	s.notify()
	s.mu.Unlock()
}

// Clear drops the current snapshot, e.g. when the user leaves the session
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = nil
	s.notify()
	s.mu.Unlock()
}

// Current returns a copy of the current snapshot, or nil when no session is
// active. The copy is the caller's to keep; later store mutations never
// change it.
func (s *Store) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// InSession reports whether a snapshot is currently held
func (s *Store) InSession() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// CurrentActor returns the player whose turn it is, or nil
func (s *Store) CurrentActor() *Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.CurrentActor()
}

// SetPlayerShowCards toggles the reveal flag for one player. This is the one
// per-player field the client owns; it does not wait for a server snapshot.
func (s *Store) SetPlayerShowCards(playerID string, show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	i := s.current.FindPlayer(playerID)
	if i == -1 {
		s.logger.Debug("show cards for unknown player", "playerID", playerID)
		return
	}
	next := s.current.Clone()
	next.Players[i].ShowCards = show
	s.current = next
	s.notify()
}

// AdvancePhase optimistically moves the held snapshot to the next phase,
// clearing stale bet amounts while the server's authoritative next-phase
// snapshot is in flight. No-op when no session is active.
func (s *Store) AdvancePhase() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	s.current = s.current.AdvancePhase()
	s.notify()
}

// SetResults installs a hand's results record, replacing any prior record
func (s *Store) SetResults(r *GameResults) {
	s.mu.Lock()
	s.results = r
	s.notify()
	s.mu.Unlock()
}

// ClearResults drops the held results record
func (s *Store) ClearResults() {
	s.mu.Lock()
	s.results = nil
	s.notify()
	s.mu.Unlock()
}

// Results returns a copy of the held results record, or nil. As with
// Current, later store mutations never change the copy.
func (s *Store) Results() *GameResults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.results.Clone()
}
