package shell

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/llehouerou/rpcbridge/internal/bridge"
)

// Palette, shared by the header, status lines and log pane.
var (
	colorPrimary = lipgloss.Color("#a78bfa")
	colorFgBase  = lipgloss.Color("#c0c0c0")
	colorMuted   = lipgloss.Color("#808080")
	colorSubtle  = lipgloss.Color("#585858")
	colorSuccess = lipgloss.Color("#a3be8c")
	colorError   = lipgloss.Color("#bf616a")
	colorWarning = lipgloss.Color("#f1a208")
	colorInfo    = lipgloss.Color("#88c0d0")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	baseStyle   = lipgloss.NewStyle().Foreground(colorFgBase)
	mutedStyle  = lipgloss.NewStyle().Foreground(colorMuted)
	subtleStyle = lipgloss.NewStyle().Foreground(colorSubtle)
	onStyle     = lipgloss.NewStyle().Foreground(colorSuccess)
	offStyle    = lipgloss.NewStyle().Foreground(colorError)

	logPaneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorSubtle)
)

// levelStyle colors the level tag of a log line.
func levelStyle(l bridge.Level) lipgloss.Style {
	s := lipgloss.NewStyle().Bold(true)
	switch l {
	case bridge.LevelError:
		return s.Foreground(colorError)
	case bridge.LevelWarning:
		return s.Foreground(colorWarning)
	case bridge.LevelSuccess:
		return s.Foreground(colorSuccess)
	case bridge.LevelServer, bridge.LevelRPC:
		return s.Foreground(colorPrimary)
	case bridge.LevelRecv:
		return s.Foreground(colorInfo)
	default:
		return s.Foreground(colorMuted)
	}
}
