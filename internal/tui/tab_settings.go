package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hostpin/internal/storage"
	"hostpin/internal/storage/models"
)

// settingKind distinguishes free-text settings from choice-based settings.
type settingKind int

const (
	settingText   settingKind = iota // Free-text input (numbers).
	settingList                      // Comma separated list.
	settingChoice                    // Cycle through predefined options.
)

// settingDef defines a setting's display metadata.
type settingDef struct {
	key         string
	label       string
	description string
	kind        settingKind
	choices     []string // Only for settingChoice.
}

var settingDefs = []settingDef{
	{key: storage.KeyAddresses, label: "Addresses", description: "Candidate IP addresses, comma separated", kind: settingList},
	{key: storage.KeyDomains, label: "Domains", description: "Domains pinned in the hosts file, comma separated", kind: settingList},
	{key: storage.KeyInterval, label: "Interval", description: "Seconds between automatic runs, 0 disables", kind: settingText},
	{key: storage.KeyWorkers, label: "Probe Workers", description: "Concurrent probes", kind: settingText},
	{key: storage.KeyTimeout, label: "Probe Timeout", description: "Per-probe timeout (ms)", kind: settingText},
	{key: storage.KeyStrategy, label: "Probe Strategy", description: "How an address is measured", kind: settingChoice, choices: storage.Strategies},
	{key: storage.KeyBackupKeep, label: "Backups Kept", description: "Hosts backups to keep, 0 keeps all", kind: settingText},
}

type settingsModel struct {
	settings map[string]string
	cursor   int
	editing  bool
	input    textinput.Model
	width    int
	height   int
}

func newSettingsModel() settingsModel {
	ti := textinput.New()
	ti.CharLimit = 2048
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorAccent)
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorText)

	return settingsModel{
		settings: make(map[string]string),
		input:    ti,
	}
}

func (sm *settingsModel) setSize(w, h int) {
	sm.width = w
	sm.height = h
	sm.input.Width = w / 2
}

func (sm *settingsModel) setSettings(s map[string]string) {
	if s == nil {
		s = make(map[string]string)
	}
	sm.settings = s
}

func (sm *settingsModel) currentDef() settingDef {
	if sm.cursor >= 0 && sm.cursor < len(settingDefs) {
		return settingDefs[sm.cursor]
	}
	return settingDefs[0]
}

func (sm *settingsModel) currentValue() string {
	return sm.value(sm.currentDef())
}

// value returns the display form of a setting; lists are comma separated.
func (sm *settingsModel) value(def settingDef) string {
	v := sm.settings[def.key]
	if def.kind == settingList {
		return strings.Join(models.ParseList(v), ", ")
	}
	return v
}

// choiceIndex returns the current index in the choices slice for a choice setting.
func (sm *settingsModel) choiceIndex(def settingDef) int {
	val := sm.currentValue()
	for i, c := range def.choices {
		if c == val {
			return i
		}
	}
	return 0
}

func (sm *settingsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if sm.editing {
		return sm.updateEditing(msg, root)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		def := sm.currentDef()

		switch msg.String() {
		case "up", "k":
			if sm.cursor > 0 {
				sm.cursor--
			}
		case "down", "j":
			if sm.cursor < len(settingDefs)-1 {
				sm.cursor++
			}
		case "enter":
			if def.kind == settingChoice {
				// Cycle to next choice on enter.
				return sm.cycleChoice(root, 1)
			}
			// Text setting: open editor.
			sm.editing = true
			sm.input.SetValue(sm.currentValue())
			sm.input.Focus()
			return textinput.Blink
		case "left", "h":
			if def.kind == settingChoice {
				return sm.cycleChoice(root, -1)
			}
		case "right", "l":
			if def.kind == settingChoice {
				return sm.cycleChoice(root, 1)
			}
		}
	}
	return nil
}

// cycleChoice moves to the next/prev choice and saves it.
func (sm *settingsModel) cycleChoice(root *Model, dir int) tea.Cmd {
	def := sm.currentDef()
	idx := sm.choiceIndex(def)
	idx = (idx + dir + len(def.choices)) % len(def.choices)
	val := def.choices[idx]
	sm.settings[def.key] = val
	return saveSetting(root.store, def.key, val)
}

func (sm *settingsModel) updateEditing(msg tea.Msg, root *Model) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Back):
			sm.editing = false
			sm.input.Blur()
			return nil
		case msg.String() == "enter":
			sm.editing = false
			sm.input.Blur()
			def := sm.currentDef()
			val := strings.TrimSpace(sm.input.Value())
			if def.kind == settingList {
				val = models.FormatList(models.ParseList(val))
			}
			sm.settings[def.key] = val
			return saveSetting(root.store, def.key, val)
		}
	}

	var cmd tea.Cmd
	sm.input, cmd = sm.input.Update(msg)
	return cmd
}

func (sm *settingsModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	valueW := max(sm.width-22, 10)
	for i, def := range settingDefs {
		isSelected := i == sm.cursor
		val := sm.value(def)

		var line string
		if isSelected {
			label := lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Width(18).Render("> " + def.label)
			switch {
			case sm.editing:
				line = label + sm.input.View()
			case def.kind == settingChoice:
				line = label + sm.renderChoices(def, val)
			default:
				line = label + lipgloss.NewStyle().Foreground(colorText).Render(truncate(val, valueW))
			}
		} else {
			label := lipgloss.NewStyle().Foreground(colorText).Width(18).Render("  " + def.label)
			line = label + lipgloss.NewStyle().Foreground(colorMuted).Render(truncate(val, valueW))
		}

		b.WriteString(line + "\n")

		// Show description for selected item.
		if isSelected && !sm.editing {
			hint := def.description
			if def.kind == settingChoice {
				hint += "  (enter/arrows to change)"
			} else {
				hint += "  (enter to edit)"
			}
			b.WriteString(lipgloss.NewStyle().
				Foreground(colorMuted).
				PaddingLeft(2).
				Render("  "+hint) + "\n")
		}
	}

	return forceHeight(b.String(), sm.width, sm.height)
}

// renderChoices renders the choice selector with the active choice highlighted.
func (sm *settingsModel) renderChoices(def settingDef, current string) string {
	var parts []string
	for _, c := range def.choices {
		if c == current {
			parts = append(parts, lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAccent).
				Render("["+c+"]"))
		} else {
			parts = append(parts, lipgloss.NewStyle().
				Foreground(colorMuted).
				Render(" "+c+" "))
		}
	}
	return strings.Join(parts, " ")
}
