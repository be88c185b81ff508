package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"hostpin/internal/runner"
)

var tabNames = []string{"Status", "Run", "Log", "Settings"}

func renderHeader(activeTab int, state runner.State, lastFailed bool, width int) string {
	logo := logoStyle.Render("HOSTPIN")

	pill := statePill(state, lastFailed)

	// Tabs.
	var tabs []string
	for i, name := range tabNames {
		if i == activeTab {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	tabBar := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	// First row: logo + pill right-aligned.
	pillWidth := lipgloss.Width(pill)
	logoWidth := lipgloss.Width(logo)
	gap := width - logoWidth - pillWidth
	if gap < 1 {
		gap = 1
	}
	topRow := logo + strings.Repeat(" ", gap) + pill

	// Separator.
	sep := ruleStyle.Render(strings.Repeat("─", max(width, 0)))

	return lipgloss.JoinVertical(lipgloss.Left, topRow, tabBar, sep)
}

func renderFooter(helpText string, width int) string {
	sep := ruleStyle.Render(strings.Repeat("─", max(width, 0)))
	return lipgloss.JoinVertical(lipgloss.Left, sep, helpBarStyle.Render(helpText))
}

func renderHelpBar(showFull bool) string {
	if showFull {
		return renderFullHelp()
	}
	return renderShortHelp()
}

func renderShortHelp() string {
	bindings := keys.ShortHelp()
	var parts []string
	for _, b := range bindings {
		if !b.Enabled() {
			continue
		}
		k := helpKeyStyle.Render(b.Help().Key)
		d := helpDescStyle.Render(b.Help().Desc)
		parts = append(parts, k+" "+d)
	}
	return strings.Join(parts, helpSepStyle.Render(" | "))
}

func renderFullHelp() string {
	groups := keys.FullHelp()
	var lines []string
	for _, group := range groups {
		var parts []string
		for _, b := range group {
			if !b.Enabled() {
				continue
			}
			k := helpKeyStyle.Render(b.Help().Key)
			d := helpDescStyle.Render(b.Help().Desc)
			parts = append(parts, k+" "+d)
		}
		lines = append(lines, strings.Join(parts, helpSepStyle.Render("  ")))
	}
	return strings.Join(lines, "\n")
}
