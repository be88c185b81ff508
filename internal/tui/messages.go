package tui

import (
	"time"

	"hostpin/internal/hosts"
	"hostpin/internal/runner"
	"hostpin/internal/storage/models"
)

// Data loading messages.

type statusLoadedMsg struct {
	assignment models.Assignment
	lastRun    *time.Time
	block      *hosts.Block
	hostsErr   error
	err        error
}

type eventsLoadedMsg struct {
	events []models.Event
	err    error
}

type settingsLoadedMsg struct {
	settings map[string]string
	err      error
}

// Run lifecycle messages.

type runProgressMsg struct {
	outcome *models.Outcome
	current int
	total   int
}

type runDoneMsg struct {
	result *runner.Result
}

// Status polling messages.

type statusTickMsg struct{}

// Settings update messages.

type settingSavedMsg struct {
	key string
	err error
}

// Notification message.

type clearNotificationMsg struct {
	version int
}
