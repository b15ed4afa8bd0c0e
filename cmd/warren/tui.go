// ABOUTME: Bubbletea model rendering the roster, transcript, and input line
// ABOUTME: Purely a consumer of engine snapshots; all mutation goes through the engine

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/2389/warren/internal/api"
	"github.com/2389/warren/internal/config"
	"github.com/2389/warren/internal/models"
	"github.com/2389/warren/internal/session"
	"github.com/2389/warren/internal/ws"
)

const (
	pollEvery      = 200 * time.Millisecond
	requestTimeout = 10 * time.Second
	sidebarWidth   = 28
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	connectedDot   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("●")
	offlineDot     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("●")
	sidebarStyle   = lipgloss.NewStyle().Width(sidebarWidth).BorderStyle(lipgloss.NormalBorder()).BorderRight(true)
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	userMsgStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	agentMsgStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	streamingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

type tickMsg time.Time

type sendResultMsg struct{ err error }

type settingsAppliedMsg struct {
	settings config.Settings
	err      error
}

type historyLoadedMsg struct{ agentID string }

type model struct {
	engine   *session.Engine
	apiCli   *api.Client
	channel  *ws.Client
	settings *config.Store
	current  config.Settings

	agents    []models.Agent
	cursor    int
	selected  string
	messages  []models.Message
	connected bool

	viewport     viewport.Model
	input        textinput.Model
	spin         spinner.Model
	loading      map[string]bool
	sendError    string
	showActivity bool
	width        int
	height       int
	ready        bool
}

func newModel(engine *session.Engine, apiCli *api.Client, channel *ws.Client, settings *config.Store, current config.Settings) model {
	ti := textinput.New()
	ti.Placeholder = "Type a command for the selected agent..."
	ti.CharLimit = 4096
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return model{
		engine:   engine,
		apiCli:   apiCli,
		channel:  channel,
		settings: settings,
		current:  current,
		input:    ti,
		spin:     sp,
		loading:  map[string]bool{},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tick(), m.spin.Tick, textinput.Blink)
}

func tick() tea.Cmd {
	return tea.Tick(pollEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// loadHistory primes the transcript from the offline cache, then fetches
// the authoritative page.
func (m *model) loadHistory(agentID string) tea.Cmd {
	m.loading[agentID] = true
	engine := m.engine
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		engine.PrimeFromCache(ctx, agentID)
		engine.LoadHistory(ctx, agentID)
		return historyLoadedMsg{agentID: agentID}
	}
}

func (m *model) send(text string) tea.Cmd {
	engine := m.engine
	agentID := m.selected
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return sendResultMsg{err: engine.Send(ctx, agentID, text)}
	}
}

// handleCommand runs a slash command from the input line. Server and token
// changes are probed against the new gateway before anything is saved.
func (m *model) handleCommand(text string) tea.Cmd {
	fields := strings.Fields(text)
	next := m.current

	switch fields[0] {
	case "/quit":
		return tea.Quit
	case "/server":
		if len(fields) != 2 {
			m.sendError = "usage: /server <url>"
			return nil
		}
		next.ServerURL = fields[1]
	case "/token":
		if len(fields) != 2 {
			m.sendError = "usage: /token <token>"
			return nil
		}
		next.AuthToken = fields[1]
	case "/notify":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			m.sendError = "usage: /notify on|off"
			return nil
		}
		next.EnableNotifications = fields[1] == "on"
		m.engine.SetNotificationsEnabled(next.EnableNotifications)
		if err := m.settings.Save(next); err != nil {
			m.sendError = err.Error()
			return nil
		}
		m.current = next
		return nil
	default:
		m.sendError = "unknown command: " + fields[0]
		return nil
	}

	return m.applySettings(next)
}

// applySettings probes the candidate gateway and, only on success, persists
// the settings and repoints the HTTP client and the channel.
func (m *model) applySettings(next config.Settings) tea.Cmd {
	apiCli, channel, store := m.apiCli, m.channel, m.settings
	return func() tea.Msg {
		if err := next.Validate(); err != nil {
			return settingsAppliedMsg{err: err}
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if !api.New(next.ServerURL, next.AuthToken, nil).Health(ctx) {
			return settingsAppliedMsg{err: fmt.Errorf("gateway at %s is not responding", next.ServerURL)}
		}

		if err := store.Save(next); err != nil {
			return settingsAppliedMsg{err: err}
		}
		apiCli.SetConfig(next.ServerURL, next.AuthToken)
		channel.Disconnect()
		if err := channel.Connect(ctx, next.ServerURL, next.AuthToken); err != nil {
			return settingsAppliedMsg{settings: next, err: fmt.Errorf("saved, but reconnect failed: %w", err)}
		}
		return settingsAppliedMsg{settings: next}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		vpWidth := m.width - sidebarWidth - 3
		vpHeight := m.height - 5
		if !m.ready {
			m.viewport = viewport.New(vpWidth, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = vpWidth
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.renderTranscript())

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "shift+tab", "ctrl+p":
			m.moveCursor(-1)
			cmds = append(cmds, m.selectUnderCursor())
		case "tab", "ctrl+n":
			m.moveCursor(1)
			cmds = append(cmds, m.selectUnderCursor())
		case "ctrl+r":
			if m.selected != "" {
				cmds = append(cmds, m.loadHistory(m.selected))
			}
		case "ctrl+t":
			m.showActivity = !m.showActivity
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			switch {
			case strings.HasPrefix(text, "/"):
				m.input.Reset()
				m.sendError = ""
				cmds = append(cmds, m.handleCommand(text))
			case text != "" && m.selected != "":
				m.input.Reset()
				m.sendError = ""
				cmds = append(cmds, m.send(text))
			}
		case "pgup":
			m.viewport.HalfViewUp()
		case "pgdown":
			m.viewport.HalfViewDown()
		}

	case tickMsg:
		if cmd := m.refresh(); cmd != nil {
			cmds = append(cmds, cmd)
		}
		cmds = append(cmds, tick())

	case historyLoadedMsg:
		delete(m.loading, msg.agentID)
		m.refresh()

	case sendResultMsg:
		if msg.err != nil {
			m.sendError = "send failed: " + msg.err.Error()
		}

	case settingsAppliedMsg:
		if msg.err != nil {
			m.sendError = msg.err.Error()
		} else {
			m.current = msg.settings
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *model) moveCursor(delta int) {
	if len(m.agents) == 0 {
		return
	}
	m.cursor = (m.cursor + delta + len(m.agents)) % len(m.agents)
}

func (m *model) selectUnderCursor() tea.Cmd {
	if m.cursor >= len(m.agents) {
		return nil
	}
	id := m.agents[m.cursor].ID
	if id == m.selected {
		return nil
	}
	m.selected = id
	m.sendError = ""
	// Best-effort; stats arrive whenever the channel is up.
	_ = m.channel.RequestContextStats(id)
	return m.loadHistory(id)
}

// refresh pulls fresh snapshots from the engine. It returns a command when
// the selected transcript needs a fetch.
func (m *model) refresh() tea.Cmd {
	m.agents = m.engine.Agents()
	m.connected = m.engine.IsConnected()
	if m.cursor >= len(m.agents) {
		m.cursor = 0
	}
	var cmd tea.Cmd
	if m.selected == "" && len(m.agents) > 0 {
		m.selected = m.agents[m.cursor].ID
		_ = m.channel.RequestContextStats(m.selected)
		cmd = m.loadHistory(m.selected)
	}
	if m.selected == "" {
		return nil
	}

	atBottom := m.viewport.AtBottom()
	m.messages = m.engine.Messages(m.selected)
	if m.ready {
		m.viewport.SetContent(m.renderTranscript())
		if atBottom {
			m.viewport.GotoBottom()
		}
	}

	// A session_updated or command_started push makes the transcript
	// stale; refetch unless a fetch is already in flight.
	if cmd == nil && m.engine.Dirty(m.selected) && !m.loading[m.selected] {
		cmd = m.loadHistory(m.selected)
	}
	return cmd
}

func (m model) renderTranscript() string {
	if len(m.messages) == 0 {
		return dimStyle.Render("No messages yet.")
	}

	var b strings.Builder
	for _, msg := range m.messages {
		when := time.UnixMilli(msg.Timestamp).Format("15:04:05")
		switch {
		case !msg.IsAgent:
			b.WriteString(userMsgStyle.Render(fmt.Sprintf("[%s] you", when)))
		case msg.Streaming:
			b.WriteString(streamingStyle.Render(fmt.Sprintf("[%s] agent …", when)))
		default:
			b.WriteString(agentMsgStyle.Render(fmt.Sprintf("[%s] agent", when)))
		}
		b.WriteString("\n")
		b.WriteString(msg.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m model) renderSidebar() string {
	var b strings.Builder
	for i, a := range m.agents {
		line := fmt.Sprintf("%s %s", statusGlyph(a.Status), a.Name)
		if i == m.cursor {
			line = selectedStyle.Render("▸ " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
		if a.CurrentTask != "" {
			b.WriteString(dimStyle.Render("    " + truncate(a.CurrentTask, sidebarWidth-5)))
			b.WriteString("\n")
		}
	}
	if len(m.agents) == 0 {
		b.WriteString(dimStyle.Render("no agents"))
	}
	return b.String()
}

func (m model) renderActivity() string {
	acts := m.engine.Activities()
	if len(acts) == 0 {
		return dimStyle.Render("no activity")
	}

	var b strings.Builder
	for i := len(acts) - 1; i >= 0; i-- {
		a := acts[i]
		when := time.UnixMilli(a.Timestamp).Format("15:04")
		b.WriteString(dimStyle.Render(when) + " " + selectedStyle.Render(a.AgentName))
		b.WriteString("\n")
		b.WriteString("  " + truncate(a.Message, sidebarWidth-3))
		b.WriteString("\n")
	}
	return b.String()
}

func statusGlyph(status models.AgentStatus) string {
	switch status {
	case models.StatusWorking:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render("▶")
	case models.StatusError, models.StatusOrphaned:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("✗")
	case models.StatusWaiting, models.StatusWaitingPermission:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Render("?")
	case models.StatusOffline:
		return dimStyle.Render("○")
	default:
		return dimStyle.Render("·")
	}
}

func truncate(s string, n int) string {
	if n <= 1 || len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func (m model) View() string {
	if !m.ready {
		return "loading..."
	}

	dot := offlineDot
	label := "offline"
	if m.connected {
		dot = connectedDot
		label = "live"
	}
	header := titleStyle.Render("warren") + "  " + dot + " " + dimStyle.Render(label)
	if stats, ok := m.engine.ContextStats(m.selected); ok {
		header += "  " + dimStyle.Render(fmt.Sprintf("%s ctx %.0f%%", stats.Model, stats.UsedPercent))
	}
	if m.loading[m.selected] {
		header += "  " + m.spin.View() + dimStyle.Render(" loading history")
	}

	sidebar := m.renderSidebar()
	if m.showActivity {
		sidebar = m.renderActivity()
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebarStyle.Height(m.viewport.Height).Render(sidebar),
		" "+m.viewport.View(),
	)

	footer := m.input.View()
	switch {
	case m.sendError != "":
		footer += "\n" + errStyle.Render(m.sendError)
	case m.current.EnableNotifications:
		if ns := m.engine.Notifications(); len(ns) > 0 {
			n := ns[len(ns)-1]
			footer += "\n" + dimStyle.Render(fmt.Sprintf("%s: %s %s", n.AgentName, n.Title, n.Message))
		}
	}

	return header + "\n" + body + "\n" + footer
}
