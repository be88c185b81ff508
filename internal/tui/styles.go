package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"hostpin/internal/runner"
)

// Palette by role. Run states share their colours with latency bands:
// green is idle or fast, amber is busy or slow, red is failed or timing out.
var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#0B7A75", Dark: "#3FD0C9"}
	colorText   = lipgloss.AdaptiveColor{Light: "#1B1F23", Dark: "#ECEFF1"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#8A9099", Dark: "#6E7681"}
	colorRule   = lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#30363D"}

	colorIdle   = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	colorBusy   = lipgloss.AdaptiveColor{Light: "#9A6700", Dark: "#D29922"}
	colorFailed = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
)

var (
	logoStyle        = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).PaddingRight(2)
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Underline(true).Padding(0, 2)
	inactiveTabStyle = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 2)
	ruleStyle        = lipgloss.NewStyle().Foreground(colorRule)

	helpBarStyle  = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
	helpKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	helpDescStyle = lipgloss.NewStyle().Foreground(colorMuted)
	helpSepStyle  = lipgloss.NewStyle().Foreground(colorRule)

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	dimStyle      = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorIdle)
	warningStyle  = lipgloss.NewStyle().Foreground(colorBusy)
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorFailed)
	spinnerStyle  = lipgloss.NewStyle().Foreground(colorBusy)

	cardStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorRule).Padding(1, 2)
	cardTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1)
	cardLabelStyle = lipgloss.NewStyle().Foreground(colorMuted).Width(12)
	cardValueStyle = lipgloss.NewStyle().Foreground(colorText)

	notifSuccessStyle = successStyle.Padding(0, 1)
	notifErrorStyle   = errorStyle.Padding(0, 1)
)

func pillStyle(bg lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(bg).
		Padding(0, 1)
}

// statePill labels the header with the run in progress, a failed last run,
// or idle.
func statePill(state runner.State, lastFailed bool) string {
	switch {
	case state != runner.StateIdle:
		label := strings.ToUpper(strings.ReplaceAll(string(state), "_", " "))
		return pillStyle(colorBusy).Render(label)
	case lastFailed:
		return pillStyle(colorFailed).Render("LAST RUN FAILED")
	default:
		return pillStyle(colorIdle).Render("IDLE")
	}
}

// latencyStyle colours a probe latency by band.
func latencyStyle(ms float64) lipgloss.Style {
	switch {
	case ms < 150:
		return lipgloss.NewStyle().Foreground(colorIdle)
	case ms < 600:
		return lipgloss.NewStyle().Foreground(colorBusy)
	default:
		return lipgloss.NewStyle().Foreground(colorFailed)
	}
}
