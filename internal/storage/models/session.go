package models

import "time"

// Session represents a logged-in session. The map key in the persisted
// document is the opaque token; the token is the caller's credential and is
// never embedded in API responses.
type Session struct {
	Token     string    `json:"-"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`

	// Absolute expiry. Validation never extends it.
	ExpiresAt time.Time `json:"expires_at"`

	// Sliding activity marker, refreshed on every successful validation.
	LastActivity time.Time `json:"last_activity"`

	// Client metadata for audit.
	RemoteAddr string `json:"remote_addr,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

// Expired reports whether the session's absolute expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionDocument is the persisted session table, keyed by token.
type SessionDocument struct {
	Sessions map[string]*Session `json:"sessions"`
}
