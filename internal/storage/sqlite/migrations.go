package sqlite

const schema = `
-- Login audit trail
CREATE TABLE IF NOT EXISTS login_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL,
    success BOOLEAN NOT NULL,
    remote_addr TEXT,
    user_agent TEXT,
    occurred_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_login_events_username ON login_events(username);
CREATE INDEX IF NOT EXISTS idx_login_events_occurred ON login_events(occurred_at);

-- Periodic service status samples recorded by the monitor
CREATE TABLE IF NOT EXISTS status_samples (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    service_active BOOLEAN NOT NULL,
    tun_up BOOLEAN NOT NULL,
    current_node TEXT,
    sampled_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_status_samples_sampled ON status_samples(sampled_at);
`

func runMigrations(d *DB) error {
	_, err := d.db.Exec(schema)
	return err
}
