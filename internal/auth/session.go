package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hytun/internal/storage"
	"hytun/internal/storage/jsonfile"
	"hytun/internal/storage/models"
	pkgerrors "hytun/pkg/errors"
)

const sessionsDocument = "sessions"

// ClientMeta is recorded on the session for audit.
type ClientMeta struct {
	RemoteAddr string
	UserAgent  string
}

// SessionManager issues, validates, and revokes login sessions. Tokens are
// opaque crypto-random identifiers; the session table is mirrored in memory
// and persisted wholesale on every mutation.
//
// Session lifecycle: Active until the absolute expiry passes or the session
// is revoked; the reaper removes dead entries but Validate rejects them
// independently.
type SessionManager struct {
	mu       sync.Mutex
	store    storage.DocumentStore
	creds    *CredentialStore
	ttl      func() time.Duration
	sessions map[string]*models.Session
}

// NewSessionManager loads persisted sessions and attaches the credential
// store the manager authenticates against.
func NewSessionManager(store storage.DocumentStore, creds *CredentialStore, ttl func() time.Duration) (*SessionManager, error) {
	sm := &SessionManager{
		store:    store,
		creds:    creds,
		ttl:      ttl,
		sessions: make(map[string]*models.Session),
	}

	var doc models.SessionDocument
	err := store.Load(sessionsDocument, &doc)
	switch {
	case err == nil:
		for token, s := range doc.Sessions {
			s.Token = token
			sm.sessions[token] = s
		}
	case errors.Is(err, jsonfile.ErrNotExist):
		// First run, nothing to restore.
	default:
		return nil, err
	}

	return sm, nil
}

// Login authenticates the credentials (lockout gate included) and issues a
// new session token. The token is returned to the caller exactly once and
// never appears in logs.
func (sm *SessionManager) Login(username, password string, meta ClientMeta) (string, error) {
	if err := sm.creds.Authenticate(username, password); err != nil {
		return "", err
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	session := &models.Session{
		Token:        token,
		Username:     username,
		CreatedAt:    now,
		ExpiresAt:    now.Add(sm.ttl()),
		LastActivity: now,
		RemoteAddr:   meta.RemoteAddr,
		UserAgent:    meta.UserAgent,
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.sessions[token] = session
	if err := sm.persist(); err != nil {
		delete(sm.sessions, token)
		return "", err
	}
	return token, nil
}

// Validate returns the session for a token if it is still live, refreshing
// the sliding last-activity marker. The absolute expiry is never extended.
// Expired or unknown tokens report ErrUnauthenticated whether or not the
// reaper has run.
func (sm *SessionManager) Validate(token string) (*models.Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	s, ok := sm.sessions[token]
	if !ok {
		return nil, pkgerrors.ErrUnauthenticated
	}

	now := time.Now()
	if s.Expired(now) {
		delete(sm.sessions, token)
		sm.persistBestEffort()
		return nil, pkgerrors.ErrUnauthenticated
	}

	s.LastActivity = now
	sm.persistBestEffort()

	snapshot := *s
	return &snapshot, nil
}

// Revoke removes a session. Revoking an unknown or already-revoked token is
// a no-op.
func (sm *SessionManager) Revoke(token string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.sessions[token]; !ok {
		return nil
	}
	delete(sm.sessions, token)
	return sm.persist()
}

// RevokeUser removes every session belonging to the account, e.g. after a
// password change.
func (sm *SessionManager) RevokeUser(username string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	removed := false
	for token, s := range sm.sessions {
		if s.Username == username {
			delete(sm.sessions, token)
			removed = true
		}
	}
	if !removed {
		return nil
	}
	return sm.persist()
}

// Reap removes sessions whose absolute expiry has passed and returns how
// many were removed. This is advisory cleanup; Validate rejects expired
// sessions on its own.
func (sm *SessionManager) Reap() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	removed := 0
	for token, s := range sm.sessions {
		if s.Expired(now) {
			delete(sm.sessions, token)
			removed++
		}
	}
	if removed > 0 {
		sm.persistBestEffort()
	}
	return removed
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

func (sm *SessionManager) persist() error {
	doc := models.SessionDocument{Sessions: sm.sessions}
	return sm.store.Save(sessionsDocument, doc)
}

func (sm *SessionManager) persistBestEffort() {
	if err := sm.persist(); err != nil {
		slog.Error("failed to persist session document", "error", err)
	}
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
