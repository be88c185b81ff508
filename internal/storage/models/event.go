package models

import "time"

// Event levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Event is a human-readable log line shown to the operator
type Event struct {
	ID      int64     `json:"id"`
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

func (e Event) String() string {
	return "[" + e.Time.Format("2006-01-02 15:04:05") + "] " + e.Message
}
