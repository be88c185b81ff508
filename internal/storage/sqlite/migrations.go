package sqlite

const schema = `
-- Application settings (addresses, domains, interval, last assignment, ...)
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Operator-facing event log
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts TIMESTAMP NOT NULL,
    level TEXT NOT NULL DEFAULT 'info',
    message TEXT NOT NULL
);

-- Run history
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    state TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    assignment TEXT NOT NULL DEFAULT '',
    backup_path TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

CREATE TRIGGER IF NOT EXISTS update_settings_timestamp AFTER UPDATE ON settings
BEGIN
    UPDATE settings SET updated_at = CURRENT_TIMESTAMP WHERE key = NEW.key;
END;
`

const defaultData = `
-- Insert default settings. Address pool and domains are seeded from the
-- config file by the app.
INSERT OR IGNORE INTO settings (key, value) VALUES
    ('interval', '0'),
    ('probe_workers', '16'),
    ('probe_timeout', '3000'),
    ('probe_strategy', 'https'),
    ('backup_keep', '10');
`

// runMigrations executes the database schema and default data
func runMigrations(db *DB) error {
	// Execute schema
	if _, err := db.db.Exec(schema); err != nil {
		return err
	}

	// Insert default data
	if _, err := db.db.Exec(defaultData); err != nil {
		return err
	}

	return nil
}
