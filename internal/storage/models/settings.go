package models

import "time"

// Settings is the typed view of the runtime-mutable settings.
type Settings struct {
	Addresses  []string      `json:"addresses"`
	Domains    []string      `json:"domains"`
	Interval   time.Duration `json:"interval"`
	Workers    int           `json:"workers"`
	Timeout    time.Duration `json:"timeout"`
	Strategy   string        `json:"strategy"`
	BackupKeep int           `json:"backup_keep"`
}
