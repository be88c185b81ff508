package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"hostpin/internal/storage"
	"hostpin/internal/storage/models"
)

// maxEvents bounds the event log table.
const maxEvents = 1000

// dbHandle is the common interface between *sql.DB and *sql.Tx.
type dbHandle interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB implements the Storage interface using SQLite
type DB struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	storage := &DB{db: db}

	// Run migrations
	if err := runMigrations(storage); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) handle() dbHandle { return d.db }

// BeginTx starts a new transaction
func (d *DB) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx implements the Transaction interface
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error    { return t.tx.Commit() }
func (t *Tx) Rollback() error  { return t.tx.Rollback() }
func (t *Tx) handle() dbHandle { return t.tx }

func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *Tx) Close() error { return nil }

// ─── Settings operations ────────────────────────────────────────────────────

func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	return getSetting(ctx, d.handle(), key)
}
func (t *Tx) GetSetting(ctx context.Context, key string) (string, error) {
	return getSetting(ctx, t.handle(), key)
}

func getSetting(ctx context.Context, h dbHandle, key string) (string, error) {
	var value string
	err := h.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting not found: %s", key)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, d.handle(), key, value)
}
func (t *Tx) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, t.handle(), key, value)
}

func setSetting(ctx context.Context, h dbHandle, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	_, err := h.ExecContext(ctx, query, key, value)
	return err
}

func (d *DB) GetAllSettings(ctx context.Context) (map[string]string, error) {
	return getAllSettings(ctx, d.handle())
}
func (t *Tx) GetAllSettings(ctx context.Context) (map[string]string, error) {
	return getAllSettings(ctx, t.handle())
}

func getAllSettings(ctx context.Context, h dbHandle) (map[string]string, error) {
	rows, err := h.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (d *DB) SeedSettings(ctx context.Context, defaults map[string]string) error {
	return seedSettings(ctx, d.handle(), defaults)
}
func (t *Tx) SeedSettings(ctx context.Context, defaults map[string]string) error {
	return seedSettings(ctx, t.handle(), defaults)
}

// seedSettings inserts defaults for keys that have never been set.
func seedSettings(ctx context.Context, h dbHandle, defaults map[string]string) error {
	for key, value := range defaults {
		if _, err := h.ExecContext(ctx,
			"INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)", key, value,
		); err != nil {
			return fmt.Errorf("failed to seed setting %s: %w", key, err)
		}
	}
	return nil
}

// ─── Typed settings ─────────────────────────────────────────────────────────

func (d *DB) LoadSettings(ctx context.Context) (*models.Settings, error) {
	return loadSettings(ctx, d.handle())
}
func (t *Tx) LoadSettings(ctx context.Context) (*models.Settings, error) {
	return loadSettings(ctx, t.handle())
}

func loadSettings(ctx context.Context, h dbHandle) (*models.Settings, error) {
	raw, err := getAllSettings(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return storage.DecodeSettings(raw)
}

func (d *DB) SaveSettings(ctx context.Context, settings *models.Settings) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := saveSettings(ctx, tx, settings); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
func (t *Tx) SaveSettings(ctx context.Context, settings *models.Settings) error {
	return saveSettings(ctx, t.handle(), settings)
}

func saveSettings(ctx context.Context, h dbHandle, settings *models.Settings) error {
	for key, value := range storage.EncodeSettings(settings) {
		if err := setSetting(ctx, h, key, value); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}
	return nil
}

// ─── Assignment operations ──────────────────────────────────────────────────

func (d *DB) LoadAssignment(ctx context.Context) (models.Assignment, error) {
	return loadAssignment(ctx, d.handle())
}
func (t *Tx) LoadAssignment(ctx context.Context) (models.Assignment, error) {
	return loadAssignment(ctx, t.handle())
}

func loadAssignment(ctx context.Context, h dbHandle) (models.Assignment, error) {
	var raw string
	err := h.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", storage.KeyLastAssignment).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var assignment models.Assignment
	if err := json.Unmarshal([]byte(raw), &assignment); err != nil {
		return nil, fmt.Errorf("failed to decode last assignment: %w", err)
	}
	return assignment, nil
}

func (d *DB) SaveAssignment(ctx context.Context, assignment models.Assignment, at time.Time) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := saveAssignment(ctx, tx, assignment, at); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
func (t *Tx) SaveAssignment(ctx context.Context, assignment models.Assignment, at time.Time) error {
	return saveAssignment(ctx, t.handle(), assignment, at)
}

func saveAssignment(ctx context.Context, h dbHandle, assignment models.Assignment, at time.Time) error {
	data, err := json.Marshal(assignment)
	if err != nil {
		return fmt.Errorf("failed to encode assignment: %w", err)
	}
	if err := setSetting(ctx, h, storage.KeyLastAssignment, string(data)); err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return setSetting(ctx, h, storage.KeyLastRun, at.Format(time.RFC3339))
}

func (d *DB) GetLastRunTime(ctx context.Context) (*time.Time, error) {
	return getLastRunTime(ctx, d.handle())
}
func (t *Tx) GetLastRunTime(ctx context.Context) (*time.Time, error) {
	return getLastRunTime(ctx, t.handle())
}

func getLastRunTime(ctx context.Context, h dbHandle) (*time.Time, error) {
	var raw string
	err := h.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", storage.KeyLastRun).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last run time: %w", err)
	}
	return &ts, nil
}

// ─── Event log ──────────────────────────────────────────────────────────────

func (d *DB) AppendEvents(ctx context.Context, events []models.Event) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := appendEvents(ctx, tx, events); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
func (t *Tx) AppendEvents(ctx context.Context, events []models.Event) error {
	return appendEvents(ctx, t.handle(), events)
}

func appendEvents(ctx context.Context, h dbHandle, events []models.Event) error {
	for _, ev := range events {
		if _, err := h.ExecContext(ctx,
			"INSERT INTO events (ts, level, message) VALUES (?, ?, ?)",
			ev.Time, ev.Level, ev.Message,
		); err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
	}
	_, err := h.ExecContext(ctx, `
		DELETE FROM events
		WHERE id NOT IN (SELECT id FROM events ORDER BY id DESC LIMIT ?)
	`, maxEvents)
	return err
}

func (d *DB) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return getRecentEvents(ctx, d.handle(), limit)
}
func (t *Tx) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return getRecentEvents(ctx, t.handle(), limit)
}

// getRecentEvents returns the newest limit events, oldest first.
func getRecentEvents(ctx context.Context, h dbHandle, limit int) ([]models.Event, error) {
	rows, err := h.QueryContext(ctx,
		"SELECT id, ts, level, message FROM events ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Time, &ev.Level, &ev.Message); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	return events, nil
}

// ─── Run history ────────────────────────────────────────────────────────────

func (d *DB) RecordRun(ctx context.Context, run *models.Run) error {
	return recordRun(ctx, d.handle(), run)
}
func (t *Tx) RecordRun(ctx context.Context, run *models.Run) error {
	return recordRun(ctx, t.handle(), run)
}

func recordRun(ctx context.Context, h dbHandle, run *models.Run) error {
	assignment, err := json.Marshal(run.Assignment)
	if err != nil {
		return fmt.Errorf("failed to encode run assignment: %w", err)
	}
	query := `
		INSERT INTO runs (started_at, finished_at, state, reason, assignment, backup_path)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := h.ExecContext(ctx, query,
		run.StartedAt, run.FinishedAt, run.State, run.Reason, string(assignment), run.BackupPath,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

func (d *DB) GetRecentRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	return getRecentRuns(ctx, d.handle(), limit)
}
func (t *Tx) GetRecentRuns(ctx context.Context, limit int) ([]*models.Run, error) {
	return getRecentRuns(ctx, t.handle(), limit)
}

func getRecentRuns(ctx context.Context, h dbHandle, limit int) ([]*models.Run, error) {
	query := `
		SELECT id, started_at, finished_at, state, reason, assignment, backup_path
		FROM runs
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := h.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run := &models.Run{}
		var assignment string
		err := rows.Scan(
			&run.ID, &run.StartedAt, &run.FinishedAt, &run.State, &run.Reason,
			&assignment, &run.BackupPath,
		)
		if err != nil {
			return nil, err
		}
		if assignment != "" && assignment != "null" {
			if err := json.Unmarshal([]byte(assignment), &run.Assignment); err != nil {
				return nil, fmt.Errorf("failed to decode run %d assignment: %w", run.ID, err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
