package storage

import (
	"context"
	"time"

	"hostpin/internal/storage/models"
)

// Setting keys
const (
	KeyAddresses      = "addresses"
	KeyDomains        = "domains"
	KeyInterval       = "interval"      // seconds
	KeyWorkers        = "probe_workers"
	KeyTimeout        = "probe_timeout" // milliseconds
	KeyStrategy       = "probe_strategy"
	KeyBackupKeep     = "backup_keep"
	KeyLastAssignment = "last_assignment"
	KeyLastRun        = "last_run"
)

// Storage defines the interface for data persistence
type Storage interface {
	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetAllSettings(ctx context.Context) (map[string]string, error)
	SeedSettings(ctx context.Context, defaults map[string]string) error

	// Typed settings
	LoadSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, settings *models.Settings) error

	// Last known assignment
	LoadAssignment(ctx context.Context) (models.Assignment, error)
	SaveAssignment(ctx context.Context, assignment models.Assignment, at time.Time) error
	GetLastRunTime(ctx context.Context) (*time.Time, error)

	// Event log
	AppendEvents(ctx context.Context, events []models.Event) error
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)

	// Run history
	RecordRun(ctx context.Context, run *models.Run) error
	GetRecentRuns(ctx context.Context, limit int) ([]*models.Run, error)

	// Transactions
	BeginTx(ctx context.Context) (Transaction, error)

	// Close closes the storage connection
	Close() error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Storage
}
