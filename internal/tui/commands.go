package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"hostpin/internal/hosts"
	"hostpin/internal/runner"
	"hostpin/internal/storage"
	"hostpin/internal/storage/models"
)

// eventLimit is how many events the log tab shows.
const eventLimit = 200

// loadStatus fetches the last assignment, last run time and the managed
// block currently in the hosts file.
func loadStatus(store storage.Storage, hostsFile HostsReader) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		assignment, err := store.LoadAssignment(ctx)
		if err != nil {
			return statusLoadedMsg{err: err}
		}
		lastRun, err := store.GetLastRunTime(ctx)
		if err != nil {
			return statusLoadedMsg{err: err}
		}

		msg := statusLoadedMsg{assignment: assignment, lastRun: lastRun}
		if hostsFile != nil {
			text, err := hostsFile.Read()
			if err != nil {
				msg.hostsErr = err
			} else if block, ok := hosts.ParseManagedBlock(text); ok {
				msg.block = block
			}
		}
		return msg
	}
}

// loadEvents fetches the most recent events.
func loadEvents(store storage.Storage) tea.Cmd {
	return func() tea.Msg {
		events, err := store.GetRecentEvents(context.Background(), eventLimit)
		return eventsLoadedMsg{events: events, err: err}
	}
}

// loadSettings fetches all application settings.
func loadSettings(store storage.Storage) tea.Cmd {
	return func() tea.Msg {
		settings, err := store.GetAllSettings(context.Background())
		return settingsLoadedMsg{settings: settings, err: err}
	}
}

// runNow executes one run with the stored settings, reporting every probe
// through p.Send. p may be nil.
func runNow(r Runner, p *tea.Program) tea.Cmd {
	return func() tea.Msg {
		req := runner.Request{}
		if p != nil {
			req.Progress = func(outcome *models.Outcome, current, total int) {
				p.Send(runProgressMsg{outcome: outcome, current: current, total: total})
			}
		}
		return runDoneMsg{result: r.Run(context.Background(), req)}
	}
}

// statusTick returns a tea.Cmd that fires after 5 seconds.
func statusTick() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return statusTickMsg{}
	})
}

// saveSetting validates and saves a single setting.
func saveSetting(store storage.Storage, key, value string) tea.Cmd {
	return func() tea.Msg {
		if err := storage.ValidateSetting(key, value); err != nil {
			return settingSavedMsg{key: key, err: err}
		}
		if key == storage.KeyAddresses || key == storage.KeyDomains {
			value = models.FormatList(models.ParseList(value))
		}
		err := store.SetSetting(context.Background(), key, value)
		return settingSavedMsg{key: key, err: err}
	}
}

// clearNotification returns a command that fires after a delay.
func clearNotification(d time.Duration, version int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearNotificationMsg{version: version}
	})
}
