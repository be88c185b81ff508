package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit    key.Binding
	Help    key.Binding
	TabNext key.Binding
	TabPrev key.Binding
	Enter   key.Binding
	Back    key.Binding
	Run     key.Binding
	Refresh key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	TabNext: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next tab"),
	),
	TabPrev: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev tab"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "edit"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Run: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "update hosts"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
}

// ShortHelp returns a compact list for the help bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.TabNext, k.Run, k.Refresh, k.Help, k.Quit}
}

// FullHelp returns grouped bindings for the expanded help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.TabNext, k.TabPrev, k.Enter, k.Back},
		{k.Run, k.Refresh},
		{k.Help, k.Quit},
	}
}
