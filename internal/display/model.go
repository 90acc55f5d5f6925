// Package display renders the live table view. It observes the session
// store through its subscription channel and never mutates game state other
// than through the client's typed operations.
package display

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/pokerlive/internal/channel"
	"github.com/lox/pokerlive/internal/client"
	"github.com/lox/pokerlive/internal/router"
	"github.com/lox/pokerlive/internal/session"
)

// Messages fed into the bubbletea loop from the client's callbacks

type refreshMsg struct{}

type statusMsg channel.Status

type noticeMsg router.Notice

// Model is the bubbletea model for the table view
type Model struct {
	client *client.Client
	logger *log.Logger

	refresh  <-chan struct{}
	statusCh chan channel.Status
	noticeCh chan router.Notice

	snapshot *session.Snapshot
	results  *session.GameResults
	status   channel.Status

	logViewport viewport.Model
	input       textinput.Model
	spin        spinner.Model
	eventLog    []string
	styles      *Styles

	width    int
	height   int
	quitting bool
}

// New creates a display model. The returned status and notice channels must
// be wired into the client's callbacks before connecting.
func New(c *client.Client, logger *log.Logger) *Model {
	vp := viewport.New(80, 12)

	ti := textinput.New()
	ti.Placeholder = "call, raise 50, fold, check, allin, say <msg>, start, show, quit"
	ti.Prompt = "> "
	ti.CharLimit = 200
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &Model{
		client:   c,
		logger:   logger.WithPrefix("display"),
		refresh:  c.Store().Subscribe(),
		statusCh: make(chan channel.Status, 8),
		noticeCh: make(chan router.Notice, 32),
		status:   channel.StatusDisconnected,

		logViewport: vp,
		input:       ti,
		spin:        sp,
		styles:      DefaultStyles(),
	}
}

// StatusFunc returns the callback for channel status transitions
func (m *Model) StatusFunc() channel.StatusFunc {
	return func(s channel.Status) {
		select {
		case m.statusCh <- s:
		default:
		}
	}
}

// NoticeFunc returns the callback for chat and lifecycle notices
func (m *Model) NoticeFunc() router.NoticeFunc {
	return func(n router.Notice) {
		select {
		case m.noticeCh <- n:
		default:
		}
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spin.Tick,
		m.waitRefresh(),
		m.waitStatus(),
		m.waitNotice(),
	)
}

func (m *Model) waitRefresh() tea.Cmd {
	return func() tea.Msg {
		<-m.refresh
		return refreshMsg{}
	}
}

func (m *Model) waitStatus() tea.Cmd {
	return func() tea.Msg {
		return statusMsg(<-m.statusCh)
	}
}

func (m *Model) waitNotice() tea.Cmd {
	return func() tea.Msg {
		return noticeMsg(<-m.noticeCh)
	}
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logViewport.Width = msg.Width - 4
		m.input.Width = msg.Width - 8

	case refreshMsg:
		m.snapshot = m.client.Store().Current()
		m.results = m.client.Store().Results()
		cmds = append(cmds, m.waitRefresh())

	case statusMsg:
		m.status = channel.Status(msg)
		switch m.status {
		case channel.StatusReconnecting:
			m.addLog("connection lost, reconnecting…")
		case channel.StatusExhausted:
			m.addLog("disconnected: reconnect attempts exhausted")
		case channel.StatusOpen:
			m.addLog("connected")
		}
		cmds = append(cmds, m.waitStatus())

	case noticeMsg:
		m.addLog(msg.Text)
		cmds = append(cmds, m.waitNotice())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if quit := m.processCommand(line); quit {
				m.quitting = true
				return m, tea.Quit
			}
		case "pgup":
			m.logViewport.HalfViewUp()
		case "pgdown":
			m.logViewport.HalfViewDown()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// processCommand interprets one input line. Returns true when the user quit.
func (m *Model) processCommand(line string) bool {
	if line == "" {
		return false
	}
	parts := strings.Fields(line)
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	var err error
	switch cmd {
	case "quit", "q", "exit":
		return true
	case "call", "c":
		err = m.client.GameAction("call", 0)
	case "check", "ch":
		err = m.client.GameAction("check", 0)
	case "fold", "f":
		err = m.client.GameAction("fold", 0)
	case "allin", "a":
		err = m.client.GameAction("all-in", 0)
	case "raise", "r":
		if len(args) == 0 {
			m.addLog("usage: raise <amount>")
			return false
		}
		amount, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			m.addLog(fmt.Sprintf("invalid amount: %s", args[0]))
			return false
		}
		err = m.client.GameAction("raise", amount)
	case "say":
		err = m.client.Chat(strings.Join(args, " "))
	case "start":
		err = m.client.StartGame()
	case "show":
		err = m.client.ShowCards()
	case "next":
		// Optimistic phase advance while the server's snapshot is in flight
		m.client.Store().AdvancePhase()
	case "leave":
		err = m.client.LeaveRoom()
	case "ping":
		err = m.client.Ping()
	default:
		m.addLog(fmt.Sprintf("unknown command: %s", cmd))
		return false
	}

	if err != nil {
		m.addLog(fmt.Sprintf("error: %v", err))
	}
	return false
}

func (m *Model) addLog(entry string) {
	m.eventLog = append(m.eventLog, entry)
	m.logViewport.SetContent(strings.Join(m.eventLog, "\n"))
	if m.logViewport.Height > 0 {
		m.logViewport.GotoBottom()
	}
}
