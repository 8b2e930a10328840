package shell

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/llehouerou/rpcbridge/internal/bridge"
	"github.com/llehouerou/rpcbridge/internal/errmsg"
	"github.com/llehouerou/rpcbridge/internal/presence"
	"github.com/llehouerou/rpcbridge/internal/track"
)

const (
	maxLogLines = 500
	// headerHeight covers title, track, presence and the help line.
	headerHeight = 4
)

type (
	eventMsg         struct{ event bridge.Event }
	eventsClosedMsg  struct{}
	reconnectTickMsg struct{ gen int }
	clockTickMsg     time.Time
)

// Model is the bubbletea model of the interactive shell.
type Model struct {
	bridge Bridge
	opts   Options
	keys   keyMap

	logView viewport.Model
	lines   []string

	status     string
	serverAddr string
	running    bool
	track      *track.State
	presence   presence.Status

	periodic bool
	tickGen  int

	width  int
	height int
}

// New creates the interactive shell model.
func New(b Bridge, opts Options) Model {
	return Model{
		bridge:   b,
		opts:     opts,
		keys:     defaultKeyMap(),
		logView:  viewport.New(80, 10),
		status:   "Server stopped",
		track:    b.Track(),
		presence: b.PresenceStatus(),
		periodic: opts.reconnectInterval() > 0,
	}
}

// Init starts listening for bridge events and the timers.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForEvent(m.bridge.Events()), clockTickCmd()}
	if m.periodic {
		cmds = append(cmds, reconnectTickCmd(m.opts.reconnectInterval(), m.tickGen))
	}
	return tea.Batch(cmds...)
}

func waitForEvent(ch <-chan bridge.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: e}
	}
}

func reconnectTickCmd(interval time.Duration, gen int) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return reconnectTickMsg{gen: gen}
	})
}

func clockTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return clockTickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLog()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.applyEvent(msg.event)
		return m, waitForEvent(m.bridge.Events())

	case eventsClosedMsg:
		return m, tea.Quit

	case reconnectTickMsg:
		// Ticks from before the last toggle are stale.
		if !m.periodic || msg.gen != m.tickGen {
			return m, nil
		}
		m.bridge.ReconnectPresence()
		return m, reconnectTickCmd(m.opts.reconnectInterval(), m.tickGen)

	case clockTickMsg:
		return m, clockTickCmd()
	}

	var cmd tea.Cmd
	m.logView, cmd = m.logView.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Start):
		m.bridge.StartServer()
	case key.Matches(msg, m.keys.Stop):
		m.bridge.StopServer()
	case key.Matches(msg, m.keys.Reconnect):
		m.bridge.ReconnectPresence()
	case key.Matches(msg, m.keys.Clear):
		m.bridge.ClearTrack()
	case key.Matches(msg, m.keys.Periodic):
		if m.opts.reconnectInterval() <= 0 {
			return m, nil
		}
		m.periodic = !m.periodic
		m.tickGen++
		if m.periodic {
			return m, reconnectTickCmd(m.opts.reconnectInterval(), m.tickGen)
		}
	default:
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) applyEvent(e bridge.Event) {
	switch e := e.(type) {
	case bridge.LogEvent:
		m.appendLog(e)
	case bridge.StatusEvent:
		m.status = e.Text
	case bridge.TrackEvent:
		m.track = e.Track
		if e.Track != nil && m.opts.Notifier != nil {
			if err := m.opts.Notifier.TrackChanged(e.Track); err != nil {
				m.appendLog(bridge.LogEvent{
					Level:   bridge.LevelWarning,
					Message: errmsg.Format(errmsg.OpNotify, err),
					Time:    m.opts.now(),
				})
			}
		}
	case bridge.PresenceEvent:
		m.presence = e.Status
	case bridge.ServerStartedEvent:
		m.running = true
		m.serverAddr = e.Addr.String()
	case bridge.ServerStoppedEvent:
		m.running = false
		m.serverAddr = ""
	}
}

func (m *Model) appendLog(e bridge.LogEvent) {
	atBottom := m.logView.AtBottom()
	line := fmt.Sprintf("%s %s %s",
		subtleStyle.Render(e.Time.Format("15:04:05")),
		levelStyle(e.Level).Render(fmt.Sprintf("[%s]", e.Level)),
		baseStyle.Render(sanitize(e.Message)),
	)
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
	m.logView.SetContent(strings.Join(m.lines, "\n"))
	if atBottom {
		m.logView.GotoBottom()
	}
}

func (m *Model) resizeLog() {
	// The log pane border takes two rows and two columns.
	m.logView.Width = max(m.width-2, 0)
	m.logView.Height = max(m.height-headerHeight-2, 1)
	m.logView.SetContent(strings.Join(m.lines, "\n"))
	m.logView.GotoBottom()
}

// View implements tea.Model.
func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	line := lipgloss.NewStyle().MaxWidth(width)
	rows := []string{
		line.Render(m.headerLine()),
		line.Render(m.trackLine(width)),
		line.Render(m.presenceLine()),
		logPaneStyle.Render(m.logView.View()),
		line.Render(m.helpLine()),
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) headerLine() string {
	server := offStyle.Render("● stopped")
	if m.running {
		server = onStyle.Render("● " + m.serverAddr)
	}
	return fmt.Sprintf("%s  %s  %s", titleStyle.Render("RPC Bridge"), server, mutedStyle.Render(m.status))
}

func (m Model) trackLine(width int) string {
	if !m.track.Complete() {
		return mutedStyle.Render("  No track")
	}
	icon := "▶"
	if m.track.Paused {
		icon = "⏸"
	}
	// Leave room for the icon and the position.
	title := truncate(m.track.Artist+" - "+m.track.Title, width-20)
	line := fmt.Sprintf("  %s %s", icon, title)
	if m.track.Album != "" {
		line += mutedStyle.Render(" (" + sanitize(m.track.Album) + ")")
	}
	pos := m.track.PositionAt(m.opts.now())
	if m.track.Duration > 0 {
		line += mutedStyle.Render(fmt.Sprintf("  %s / %s", formatDuration(pos), formatDuration(m.track.Duration)))
	} else {
		line += mutedStyle.Render("  " + formatDuration(pos))
	}
	return baseStyle.Render(line)
}

func (m Model) presenceLine() string {
	host := m.opts.HostName
	if host == "" {
		host = "Presence"
	}
	state := m.presence.State.String()
	if m.presence.State == presence.Connected {
		state = onStyle.Render(state)
	} else {
		state = offStyle.Render(state)
	}
	parts := []string{fmt.Sprintf("  %s: %s", host, state)}
	if !m.presence.LastAttempt.IsZero() {
		parts = append(parts, "last attempt "+humanize.RelTime(m.presence.LastAttempt, m.opts.now(), "ago", "from now"))
	}
	if m.presence.RetryCount > 0 {
		parts = append(parts, fmt.Sprintf("%d failed %s", m.presence.RetryCount, plural(m.presence.RetryCount, "attempt")))
	}
	if m.opts.reconnectInterval() > 0 {
		if m.periodic {
			parts = append(parts, "auto-reconnect every "+m.opts.reconnectInterval().String())
		} else {
			parts = append(parts, "auto-reconnect paused")
		}
	}
	return mutedStyle.Render(strings.Join(parts, " · "))
}

func (m Model) helpLine() string {
	var parts []string
	for _, b := range m.keys.bindings() {
		h := b.Help()
		parts = append(parts, titleStyle.Render(h.Key)+" "+subtleStyle.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
