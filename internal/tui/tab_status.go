package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"hostpin/internal/hosts"
	"hostpin/internal/storage/models"
)

type statusModel struct {
	width  int
	height int

	loaded     bool
	assignment models.Assignment
	lastRun    *time.Time
	block      *hosts.Block
	hostsErr   error
}

func newStatusModel() statusModel {
	return statusModel{}
}

func (sm *statusModel) setSize(w, h int) {
	sm.width = w
	sm.height = h
}

func (sm *statusModel) setStatus(msg statusLoadedMsg) {
	sm.loaded = true
	sm.assignment = msg.assignment
	sm.lastRun = msg.lastRun
	sm.block = msg.block
	sm.hostsErr = msg.hostsErr
}

func (sm *statusModel) View() string {
	if !sm.loaded {
		return forceHeight(dimStyle.Render("Loading status..."), sm.width, sm.height)
	}

	w := sm.width - 6
	if w < 30 {
		w = 30
	}

	sections := []string{sm.viewAssignment(), sm.viewHosts()}
	if sm.width > 100 {
		halfW := (w - 4) / 2
		left := cardStyle.Width(halfW).Render(sections[0])
		right := cardStyle.Width(halfW).Render(sections[1])
		return forceHeight(lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right), sm.width, sm.height)
	}

	var rendered []string
	for _, s := range sections {
		rendered = append(rendered, cardStyle.Width(w).Render(s))
	}
	return forceHeight(lipgloss.JoinVertical(lipgloss.Left, rendered...), sm.width, sm.height)
}

func (sm *statusModel) viewAssignment() string {
	rows := []string{cardTitleStyle.Render("Last Assignment")}

	if sm.lastRun != nil {
		ago := formatDuration(time.Since(*sm.lastRun))
		rows = append(rows, sm.row("Updated", sm.lastRun.Local().Format("2006-01-02 15:04:05")+dimStyle.Render(" ("+ago+" ago)")))
	} else {
		rows = append(rows, sm.row("Updated", dimStyle.Render("never")))
	}

	if len(sm.assignment) == 0 {
		rows = append(rows, "", dimStyle.Render("No assignment yet. Press u to run."))
		return lipgloss.JoinVertical(lipgloss.Left, rows...)
	}

	rows = append(rows, "")
	for _, e := range sm.assignment {
		value := e.Address + " " + formatLatency(e.LatencyMS)
		if e.Source == models.SourceFallback {
			value = e.Address + " " + warningStyle.Render("fallback")
		}
		rows = append(rows, e.Domain, "  "+value)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (sm *statusModel) viewHosts() string {
	rows := []string{cardTitleStyle.Render("Hosts File")}

	switch {
	case sm.hostsErr != nil:
		rows = append(rows, errorStyle.Render(truncate(sm.hostsErr.Error(), 60)))
	case sm.block == nil:
		rows = append(rows, dimStyle.Render("No managed block"))
	default:
		rows = append(rows, sm.row("Stamp", sm.block.Stamp), "")
		for _, m := range sm.block.Entries {
			rows = append(rows, fmt.Sprintf("%-16s %s", m.Address, m.Domain))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (sm *statusModel) row(label, value string) string {
	return cardLabelStyle.Render(label+":") + " " + cardValueStyle.Render(value)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
