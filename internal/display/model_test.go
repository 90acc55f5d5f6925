package display

import (
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/pokerlive/internal/auth"
	"github.com/lox/pokerlive/internal/channel"
	"github.com/lox/pokerlive/internal/client"
	"github.com/lox/pokerlive/internal/router"
	"github.com/lox/pokerlive/internal/session"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newTestModel(t *testing.T) *Model {
	t.Helper()
	c := client.New(client.Config{ServerURL: "ws://127.0.0.1:1"}, auth.StaticToken("tok"), testLogger())
	m := New(c, testLogger())
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func TestViewWithoutSession(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	view := m.View()
	assert.Contains(t, view, "pokerlive")
	assert.Contains(t, view, "no active session")
}

func TestViewRendersSnapshot(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	m.client.Store().Replace(&session.Snapshot{
		Phase:      session.PhaseFlop,
		Pot:        150,
		CurrentBet: 20,
		SmallBlind: 10,
		BigBlind:   20,
		CommunityCards: []session.Card{
			session.NewCard(session.Hearts, session.Ace),
			session.NewCard(session.Spades, session.King),
		},
		Players: []session.Player{
			{ID: "7", Username: "alice", Chips: 480, CurrentBet: 20},
			{ID: "9", Username: "bob", Chips: 350, IsFolded: true},
		},
		CurrentPlayerID:    "7",
		CurrentPlayerIndex: 0,
	})
	m.Update(refreshMsg{})

	view := m.View()
	assert.Contains(t, view, "phase: flop")
	assert.Contains(t, view, "pot: $150")
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "bob")
	assert.Contains(t, view, "A♥")
	assert.Contains(t, view, "K♠")
	assert.Contains(t, view, "▸", "the actor row carries the turn marker")
	assert.Contains(t, view, "folded")
}

func TestViewRendersOwnHoleCards(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	// State frames are personalized server-side: the only hole cards present
	// are ones this viewer may see, and player entries carry no show_cards
	// key. They must render without any local reveal.
	b := session.NewBuilder(testLogger())
	snap, err := b.Build(nil, []byte(`{
		"stage": "flop",
		"players": [
			{"user_id": 7, "username": "alice", "hole_cards": [{"suit": "♠", "rank": 14}]},
			{"user_id": 9, "username": "bob"}
		]
	}`))
	require.NoError(t, err)
	require.False(t, snap.Players[0].ShowCards)

	m.client.Store().Replace(snap)
	m.Update(refreshMsg{})

	view := m.View()
	assert.Contains(t, view, "A♠")
	assert.NotContains(t, view, "shown")

	// A broadcast reveal adds the shown flag alongside the cards
	m.client.Store().SetPlayerShowCards("7", true)
	m.Update(refreshMsg{})
	view = m.View()
	assert.Contains(t, view, "A♠")
	assert.Contains(t, view, "shown")
}

func TestViewRendersResults(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	m.client.Store().Replace(&session.Snapshot{Phase: session.PhaseShowdown})
	m.client.Store().SetResults(&session.GameResults{
		PotAmount: 300,
		WinnerID:  "7",
		Results: []session.PlayerResult{
			{UserID: "7", Username: "alice", HandRank: "flush", WinAmount: 300, FinalChips: 780, Rank: 1},
			{UserID: "9", Username: "bob", HandRank: "pair", WinAmount: 0, FinalChips: 350, Rank: 2},
		},
	})
	m.Update(refreshMsg{})

	view := m.View()
	assert.Contains(t, view, "showdown")
	assert.Contains(t, view, "pot $300")
	assert.Contains(t, view, "flush")
	assert.Contains(t, view, "won $300")
}

func TestStatusTransitionsLogged(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	m.Update(statusMsg(channel.StatusOpen))
	m.Update(statusMsg(channel.StatusReconnecting))
	m.Update(statusMsg(channel.StatusExhausted))

	require.Len(t, m.eventLog, 3)
	assert.Equal(t, "connected", m.eventLog[0])
	assert.Contains(t, m.eventLog[1], "reconnecting")
	assert.Contains(t, m.eventLog[2], "exhausted")
	assert.Contains(t, m.View(), "gave up")
}

func TestNoticesLogged(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	m.Update(noticeMsg(router.Notice{Text: "bob joined the room"}))
	m.Update(noticeMsg(router.Notice{Text: "bob: gl all"}))

	require.Len(t, m.eventLog, 2)
	assert.Contains(t, m.LogPaneView(), "bob joined the room")
}

func TestProcessCommand(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	assert.True(t, m.processCommand("quit"))
	assert.True(t, m.processCommand("q"))
	assert.False(t, m.processCommand(""))

	m.processCommand("bogus")
	require.NotEmpty(t, m.eventLog)
	assert.Contains(t, m.eventLog[len(m.eventLog)-1], "unknown command")

	m.processCommand("raise")
	assert.Contains(t, m.eventLog[len(m.eventLog)-1], "usage: raise")

	m.processCommand("raise ten")
	assert.Contains(t, m.eventLog[len(m.eventLog)-1], "invalid amount")
}

func TestNextCommandAdvancesPhase(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	m.client.Store().Replace(&session.Snapshot{Phase: session.PhaseFlop})
	m.processCommand("next")

	assert.Equal(t, session.PhaseTurn, m.client.Store().Current().Phase)
}

func TestEnterKeySubmitsCommand(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	m.input.SetValue("bogus")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Empty(t, m.input.Value())
	require.NotEmpty(t, m.eventLog)
	assert.Contains(t, strings.Join(m.eventLog, "\n"), "unknown command")
}

func TestQuitKeys(t *testing.T) {
	t.Parallel()
	m := newTestModel(t)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, m.View(), "the quitting view is blank")
}
