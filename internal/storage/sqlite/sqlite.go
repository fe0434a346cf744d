package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB records management history: login attempts for audit and periodic
// service status samples from the monitor. This is append-mostly telemetry,
// kept separate from the JSON control-plane documents.
type DB struct {
	db *sql.DB
}

// New opens (and migrates) the history database at dbPath.
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	d := &DB{db: db}
	if err := runMigrations(d); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return d, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// LoginEvent is one recorded authentication attempt.
type LoginEvent struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Success    bool      `json:"success"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RecordLogin appends a login attempt to the audit trail.
func (d *DB) RecordLogin(ctx context.Context, ev *LoginEvent) error {
	query := `
		INSERT INTO login_events (username, success, remote_addr, user_agent, occurred_at)
		VALUES (?, ?, ?, ?, ?)
	`
	res, err := d.db.ExecContext(ctx, query,
		ev.Username, ev.Success, ev.RemoteAddr, ev.UserAgent, ev.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record login event: %w", err)
	}
	ev.ID, _ = res.LastInsertId()
	return nil
}

// RecentLogins returns the most recent login attempts, newest first.
func (d *DB) RecentLogins(ctx context.Context, limit int) ([]*LoginEvent, error) {
	query := `
		SELECT id, username, success, remote_addr, user_agent, occurred_at
		FROM login_events
		ORDER BY occurred_at DESC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login events: %w", err)
	}
	defer rows.Close()

	var events []*LoginEvent
	for rows.Next() {
		ev := &LoginEvent{}
		if err := rows.Scan(&ev.ID, &ev.Username, &ev.Success, &ev.RemoteAddr, &ev.UserAgent, &ev.OccurredAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// StatusSample is one monitor observation of the managed service.
type StatusSample struct {
	ID            int64     `json:"id"`
	ServiceActive bool      `json:"service_active"`
	TunUp         bool      `json:"tun_up"`
	CurrentNode   string    `json:"current_node,omitempty"`
	SampledAt     time.Time `json:"sampled_at"`
}

// RecordStatus appends a status sample.
func (d *DB) RecordStatus(ctx context.Context, s *StatusSample) error {
	query := `
		INSERT INTO status_samples (service_active, tun_up, current_node, sampled_at)
		VALUES (?, ?, ?, ?)
	`
	res, err := d.db.ExecContext(ctx, query,
		s.ServiceActive, s.TunUp, s.CurrentNode, s.SampledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record status sample: %w", err)
	}
	s.ID, _ = res.LastInsertId()
	return nil
}

// StatusHistory returns recent status samples, newest first.
func (d *DB) StatusHistory(ctx context.Context, limit int) ([]*StatusSample, error) {
	query := `
		SELECT id, service_active, tun_up, current_node, sampled_at
		FROM status_samples
		ORDER BY sampled_at DESC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query status samples: %w", err)
	}
	defer rows.Close()

	var samples []*StatusSample
	for rows.Next() {
		s := &StatusSample{}
		if err := rows.Scan(&s.ID, &s.ServiceActive, &s.TunUp, &s.CurrentNode, &s.SampledAt); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Prune deletes telemetry older than the retention window.
func (d *DB) Prune(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().Add(-retention)
	if _, err := d.db.ExecContext(ctx, `DELETE FROM login_events WHERE occurred_at < ?`, cutoff); err != nil {
		return err
	}
	_, err := d.db.ExecContext(ctx, `DELETE FROM status_samples WHERE sampled_at < ?`, cutoff)
	return err
}
