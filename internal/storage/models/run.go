package models

import "time"

// Run is the persisted summary of one orchestrated run
type Run struct {
	ID         int64      `json:"id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	State      string     `json:"state"`
	Reason     string     `json:"reason,omitempty"` // empty unless failed
	Assignment Assignment `json:"assignment,omitempty"`
	BackupPath string     `json:"backup_path,omitempty"`
}
