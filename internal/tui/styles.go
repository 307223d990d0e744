package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nwchenyw/tw-live-frontend/internal/dashboard"
)

// Dark broadcast palette
var (
	Primary   = lipgloss.Color("#FF6B35")
	Secondary = lipgloss.Color("#1E88E5")
	Success   = lipgloss.Color("#4CAF50")
	Warning   = lipgloss.Color("#FFB74D")
	Error     = lipgloss.Color("#F44336")

	Text       = lipgloss.Color("#E0E0E0")
	TextBright = lipgloss.Color("#FFFFFF")
	Muted      = lipgloss.Color("#90A4AE")

	OnAir      = lipgloss.Color("#FF1744")
	HeaderBg   = lipgloss.Color("#1C2128")
	BorderDark = lipgloss.Color("#30363D")
	SelectedBg = lipgloss.Color("#1A237E")
)

var (
	HeaderStyle = lipgloss.NewStyle().
		Foreground(TextBright).
		Background(HeaderBg).
		Bold(true).
		Padding(0, 1)

	PanelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderDark).
		Foreground(Text).
		Padding(0, 1)

	ColumnHeaderStyle = lipgloss.NewStyle().
		Foreground(Primary).
		Bold(true)

	SelectedStyle = lipgloss.NewStyle().
		Background(SelectedBg).
		Foreground(TextBright)

	ConnectedStyle = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	DisconnectedStyle = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)

	InfoStyle = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	WarningStyle = lipgloss.NewStyle().
		Foreground(Warning)

	MutedStyle = lipgloss.NewStyle().
		Foreground(Muted)

	InputStyle = lipgloss.NewStyle().
		Foreground(TextBright).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(Primary)
)

// statusStyle colours a row's status cell.
func statusStyle(s dashboard.Status) lipgloss.Style {
	switch s {
	case dashboard.StatusLive:
		return lipgloss.NewStyle().Foreground(OnAir).Bold(true)
	case dashboard.StatusError:
		return lipgloss.NewStyle().Foreground(Warning).Bold(true)
	default:
		return MutedStyle
	}
}

func statusIcon(s dashboard.Status) string {
	switch s {
	case dashboard.StatusLive:
		return "● LIVE"
	case dashboard.StatusError:
		return "▲ ERROR"
	default:
		return "○ OFFLINE"
	}
}
