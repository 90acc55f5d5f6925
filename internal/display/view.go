package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lox/pokerlive/internal/channel"
	"github.com/lox/pokerlive/internal/session"
)

// Styles contains all lipgloss styling for the table view
type Styles struct {
	TablePane lipgloss.Style
	LogPane   lipgloss.Style
	InputPane lipgloss.Style

	Header    lipgloss.Style
	Actor     lipgloss.Style
	Folded    lipgloss.Style
	RedCard   lipgloss.Style
	BlackCard lipgloss.Style
	Winner    lipgloss.Style
	Muted     lipgloss.Style
}

// DefaultStyles returns the default theme
func DefaultStyles() *Styles {
	return &Styles{
		TablePane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#04B575")).
			Padding(0, 1),
		LogPane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#626262")).
			Padding(0, 1),
		InputPane: lipgloss.NewStyle().
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			Bold(true),
		Actor: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true),
		Folded: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Strikethrough(true),
		RedCard: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B")).
			Bold(true),
		BlackCard: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Bold(true),
		Winner: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#96CEB4")).
			Bold(true),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")),
	}
}

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.renderTable(),
		m.LogPaneView(),
		m.styles.InputPane.Render(m.input.View()),
	)
}

// LogPaneView renders the event log pane
func (m *Model) LogPaneView() string {
	return m.styles.LogPane.Width(max(m.width-2, 40)).Render(m.logViewport.View())
}

func (m *Model) renderTable() string {
	var b strings.Builder

	b.WriteString(m.styles.Header.Render("pokerlive"))
	b.WriteString("  ")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	snap := m.snapshot
	if snap == nil {
		b.WriteString(m.styles.Muted.Render("no active session"))
		return m.styles.TablePane.Width(max(m.width-2, 40)).Render(b.String())
	}

	b.WriteString(fmt.Sprintf("phase: %s  pot: $%d  bet: $%d  blinds: $%d/$%d\n",
		snap.Phase, snap.Pot, snap.CurrentBet, snap.SmallBlind, snap.BigBlind))
	b.WriteString("board: ")
	b.WriteString(m.formatCards(snap.CommunityCards))
	b.WriteString("\n\n")

	for i, p := range snap.Players {
		b.WriteString(m.renderPlayer(snap, i, p))
		b.WriteString("\n")
	}

	if m.results != nil {
		b.WriteString("\n")
		b.WriteString(m.renderResults())
	}

	return m.styles.TablePane.Width(max(m.width-2, 40)).Render(b.String())
}

func (m *Model) renderStatus() string {
	switch m.status {
	case channel.StatusOpen:
		return m.styles.Winner.Render("● connected")
	case channel.StatusConnecting, channel.StatusReconnecting:
		return m.spin.View() + m.styles.Muted.Render(m.status.String())
	case channel.StatusExhausted:
		return m.styles.Actor.Render("○ disconnected (gave up)")
	default:
		return m.styles.Muted.Render("○ " + m.status.String())
	}
}

func (m *Model) renderPlayer(snap *session.Snapshot, i int, p session.Player) string {
	marker := "  "
	if snap.CurrentPlayerID != "" && i == snap.CurrentPlayerIndex {
		marker = m.styles.Actor.Render("▸ ")
	}

	name := p.Username
	if name == "" {
		name = p.ID
	}

	var flags []string
	if p.IsFolded {
		flags = append(flags, "folded")
	}
	if p.IsAllIn {
		flags = append(flags, "all-in")
	}
	if p.IsReady {
		flags = append(flags, "ready")
	}
	if p.ShowCards {
		flags = append(flags, "shown")
	}
	flagStr := ""
	if len(flags) > 0 {
		flagStr = " (" + strings.Join(flags, ", ") + ")"
	}

	// The server personalizes each state frame: hole cards present in a
	// snapshot are ones this viewer is allowed to see
	cards := ""
	if len(p.Cards) > 0 {
		cards = "  " + m.formatCards(p.Cards)
	}

	line := fmt.Sprintf("%s%-12s $%-6d bet $%-5d%s%s", marker, name, p.Chips, p.CurrentBet, flagStr, cards)
	if p.IsFolded {
		return m.styles.Folded.Render(line)
	}
	return line
}

func (m *Model) renderResults() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("showdown"))
	b.WriteString(fmt.Sprintf(" pot $%d\n", m.results.PotAmount))
	for _, r := range m.results.Results {
		line := fmt.Sprintf("  #%d %-12s %s  won $%d  stack $%d",
			r.Rank, r.Username, r.HandRank, r.WinAmount, r.FinalChips)
		if r.UserID == m.results.WinnerID {
			line = m.styles.Winner.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) formatCards(cards []session.Card) string {
	if len(cards) == 0 {
		return m.styles.Muted.Render("—")
	}
	formatted := make([]string, 0, len(cards))
	for _, c := range cards {
		if c.IsRed() {
			formatted = append(formatted, m.styles.RedCard.Render(c.String()))
		} else {
			formatted = append(formatted, m.styles.BlackCard.Render(c.String()))
		}
	}
	return strings.Join(formatted, " ")
}
