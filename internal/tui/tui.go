// Package tui is the interactive terminal view: last assignment, live run
// progress, the event log and settings.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hostpin/internal/runner"
	"hostpin/internal/storage"
)

// Tab indices.
const (
	tabStatus   = 0
	tabRun      = 1
	tabLog      = 2
	tabSettings = 3
	tabCount    = 4
)

// Runner executes runs. *runner.Runner implements it.
type Runner interface {
	Run(ctx context.Context, req runner.Request) *runner.Result
	State() runner.State
}

// HostsReader reads the current hosts document.
type HostsReader interface {
	Read() (string, error)
}

// Model is the root BubbleTea model.
type Model struct {
	// Dependencies.
	store   storage.Storage
	runner  Runner
	hosts   HostsReader
	program *tea.Program

	// Dimensions.
	width  int
	height int

	// Navigation.
	activeTab int
	showHelp  bool

	// Run state.
	running    bool
	lastResult *runner.Result

	// Tab models.
	statusTab   statusModel
	runTab      runModel
	logTab      logModel
	settingsTab settingsModel

	// Notification.
	notification    string
	notificationErr bool
	notifVersion    int

	// Spinner for async operations.
	spinner spinner.Model
}

// Deps holds all dependencies injected into the TUI.
type Deps struct {
	Storage storage.Storage
	Runner  Runner
	Hosts   HostsReader
}

// NewModel creates a new root Model.
func NewModel(deps Deps) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	return &Model{
		store:       deps.Storage,
		runner:      deps.Runner,
		hosts:       deps.Hosts,
		activeTab:   tabStatus,
		spinner:     s,
		statusTab:   newStatusModel(),
		runTab:      newRunModel(),
		logTab:      newLogModel(),
		settingsTab: newSettingsModel(),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		loadStatus(m.store, m.hosts),
		loadEvents(m.store),
		loadSettings(m.store),
		statusTick(),
		m.spinner.Tick,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	prevNotifVersion := m.notifVersion

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		ch := m.contentHeight()
		m.statusTab.setSize(msg.Width, ch)
		m.runTab.setSize(msg.Width, ch)
		m.logTab.setSize(msg.Width, ch)
		m.settingsTab.setSize(msg.Width, ch)
		return m, nil

	case tea.KeyMsg:
		if cmd := m.handleGlobalKey(msg); cmd != nil {
			return m, cmd
		}

	// Data loading.
	case statusLoadedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Load failed: %v", msg.err), true)
		} else {
			m.statusTab.setStatus(msg)
			if m.lastResult == nil {
				m.runTab.setAssignment(msg.assignment)
			}
		}
	case eventsLoadedMsg:
		if msg.err == nil {
			m.logTab.setEvents(msg.events)
		}
	case settingsLoadedMsg:
		if msg.err == nil {
			m.settingsTab.setSettings(msg.settings)
		}

	// Run.
	case runProgressMsg:
		m.runTab.updateProgress(msg)
	case runDoneMsg:
		m.running = false
		m.lastResult = msg.result
		m.runTab.setResult(msg.result)
		if msg.result.State == runner.StateDone {
			m.setNotification(fmt.Sprintf("Hosts updated: %d domains, %d/%d probes ok",
				len(msg.result.Assignment), msg.result.Succeeded, msg.result.Tested), false)
		} else {
			m.setNotification(fmt.Sprintf("Run failed: %s", msg.result.Reason), true)
		}
		cmds = append(cmds, loadStatus(m.store, m.hosts), loadEvents(m.store))

	// Status polling picks up runs made by a daemon in another process.
	case statusTickMsg:
		if !m.running {
			cmds = append(cmds, loadStatus(m.store, m.hosts))
			if m.activeTab == tabLog {
				cmds = append(cmds, loadEvents(m.store))
			}
		}
		cmds = append(cmds, statusTick())

	// Settings.
	case settingSavedMsg:
		if msg.err != nil {
			m.setNotification(fmt.Sprintf("Save failed: %v", msg.err), true)
			cmds = append(cmds, loadSettings(m.store))
		} else {
			m.setNotification(fmt.Sprintf("Saved %s", msg.key), false)
		}

	// Notification.
	case clearNotificationMsg:
		if msg.version == m.notifVersion {
			m.notification = ""
			m.notificationErr = false
		}
	}

	// Spinner.
	if m.running {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Schedule notification auto-clear when a new notification was set.
	if m.notifVersion > prevNotifVersion && m.notification != "" {
		cmds = append(cmds, clearNotification(4*time.Second, m.notifVersion))
	}

	// Delegate to active tab.
	switch m.activeTab {
	case tabRun:
		cmds = append(cmds, m.runTab.Update(msg, m))
	case tabLog:
		cmds = append(cmds, m.logTab.Update(msg, m))
	case tabSettings:
		cmds = append(cmds, m.settingsTab.Update(msg, m))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	state := runner.StateIdle
	if m.runner != nil {
		state = m.runner.State()
	}
	if m.running && state == runner.StateIdle {
		state = runner.StatePrivilegeCheck
	}
	lastFailed := m.lastResult != nil && m.lastResult.State == runner.StateFailed
	header := renderHeader(m.activeTab, state, lastFailed, m.width)

	var content string
	switch m.activeTab {
	case tabStatus:
		content = m.statusTab.View()
	case tabRun:
		content = m.runTab.View(m.spinner, m.running)
	case tabLog:
		content = m.logTab.View()
	case tabSettings:
		content = m.settingsTab.View()
	}

	var notif string
	if m.notification != "" {
		if m.notificationErr {
			notif = notifErrorStyle.Render("! " + m.notification)
		} else {
			notif = notifSuccessStyle.Render("* " + m.notification)
		}
	}

	helpText := renderHelpBar(m.showHelp)
	footer := renderFooter(helpText, m.width)

	parts := []string{header}
	if notif != "" {
		parts = append(parts, notif)
	}
	parts = append(parts, content, footer)
	output := lipgloss.JoinVertical(lipgloss.Left, parts...)

	// Force exactly m.height lines to prevent BubbleTea rendering drift.
	return forceHeight(output, m.width, m.height)
}

// forceHeight ensures the string has exactly `height` lines, each padded to `width`.
func forceHeight(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	blank := strings.Repeat(" ", width)
	for len(lines) < height {
		lines = append(lines, blank)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) contentHeight() int {
	overhead := 5
	if m.showHelp {
		overhead += 2
	}
	h := m.height - overhead
	if h < 1 {
		h = 1
	}
	return h
}

// startRun begins a run unless one is already in flight from this view.
func (m *Model) startRun() tea.Cmd {
	if m.running || m.runner == nil {
		return nil
	}
	m.running = true
	m.runTab.reset()
	m.activeTab = tabRun
	return tea.Batch(runNow(m.runner, m.program), m.spinner.Tick)
}

func (m *Model) handleGlobalKey(msg tea.KeyMsg) tea.Cmd {
	// Don't intercept while a setting is being edited or the log is filtered.
	if m.activeTab == tabSettings && m.settingsTab.editing {
		return nil
	}
	if m.activeTab == tabLog && m.logTab.filtering() {
		return nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		m.resize()
		return nil

	case key.Matches(msg, keys.TabNext):
		m.activeTab = (m.activeTab + 1) % tabCount
		return m.onTabChange()

	case key.Matches(msg, keys.TabPrev):
		m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		return m.onTabChange()

	case key.Matches(msg, keys.Run):
		return m.startRun()

	case key.Matches(msg, keys.Refresh):
		return tea.Batch(
			loadStatus(m.store, m.hosts),
			loadEvents(m.store),
			loadSettings(m.store),
		)
	}

	return nil
}

func (m *Model) onTabChange() tea.Cmd {
	if m.activeTab == tabLog {
		return loadEvents(m.store)
	}
	return nil
}

func (m *Model) resize() {
	if m.width == 0 {
		return
	}
	ch := m.contentHeight()
	m.statusTab.setSize(m.width, ch)
	m.runTab.setSize(m.width, ch)
	m.logTab.setSize(m.width, ch)
	m.settingsTab.setSize(m.width, ch)
}

func (m *Model) setNotification(text string, isErr bool) {
	m.notification = text
	m.notificationErr = isErr
	m.notifVersion++
}

// NewProgram creates a bubbletea program with alt screen.
func NewProgram(deps Deps) *tea.Program {
	m := NewModel(deps)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.program = p
	return p
}
