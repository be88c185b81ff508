package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hostpin/internal/storage/models"
)

// eventItem implements list.Item for the event log.
type eventItem struct {
	event models.Event
}

func (i eventItem) Title() string       { return i.event.Message }
func (i eventItem) FilterValue() string { return i.event.Message }
func (i eventItem) Description() string {
	return i.event.Time.Local().Format("2006-01-02 15:04:05")
}

// eventItemDelegate renders each event on one line.
type eventItemDelegate struct{}

func (d eventItemDelegate) Height() int                             { return 1 }
func (d eventItemDelegate) Spacing() int                            { return 0 }
func (d eventItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d eventItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ei, ok := item.(eventItem)
	if !ok {
		return
	}

	prefix := "  "
	msgStyle := lipgloss.NewStyle().Foreground(colorText)
	if index == m.Index() {
		prefix = "> "
		msgStyle = selectedStyle
	}

	fmt.Fprintf(w, "%s%s %s %s",
		prefix,
		dimStyle.Render(ei.Description()),
		levelStyle(ei.event.Level).Render(fmt.Sprintf("%-5s", ei.event.Level)),
		msgStyle.Render(truncate(ei.event.Message, max(m.Width()-30, 20))))
}

func levelStyle(level string) lipgloss.Style {
	switch level {
	case models.LevelError:
		return errorStyle
	case models.LevelWarn:
		return warningStyle
	default:
		return dimStyle
	}
}

// logModel shows the most recent events, newest first.
type logModel struct {
	list   list.Model
	width  int
	height int
}

func newLogModel() logModel {
	l := list.New(nil, eventItemDelegate{}, 0, 0)
	l.Title = "Events"
	l.SetShowHelp(false)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.Styles.FilterPrompt = lipgloss.NewStyle().Foreground(colorAccent)
	l.Styles.FilterCursor = lipgloss.NewStyle().Foreground(colorAccent)

	return logModel{list: l}
}

func (lm *logModel) setSize(w, h int) {
	lm.width = w
	lm.height = h
	lm.list.SetSize(w, h)
}

func (lm *logModel) setEvents(events []models.Event) {
	items := make([]list.Item, len(events))
	for i, e := range events {
		items[len(events)-1-i] = eventItem{event: e}
	}
	lm.list.SetItems(items)
}

// filtering reports whether the filter prompt has the keyboard.
func (lm *logModel) filtering() bool {
	return lm.list.FilterState() == list.Filtering
}

func (lm *logModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	var cmd tea.Cmd
	lm.list, cmd = lm.list.Update(msg)
	return cmd
}

func (lm *logModel) View() string {
	return forceHeight(lm.list.View(), lm.width, lm.height)
}
