package auth

import (
	"errors"
	"testing"
	"time"

	pkgerrors "hytun/pkg/errors"
)

func newTestSessions(t *testing.T, ttl time.Duration) (*SessionManager, *CredentialStore, *memStore) {
	t.Helper()

	cs, store := newTestCreds(t)
	sm, err := NewSessionManager(store, cs, func() time.Duration { return ttl })
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	return sm, cs, store
}

func TestLoginAndValidate(t *testing.T) {
	sm, _, _ := newTestSessions(t, time.Hour)

	token, err := sm.Login(DefaultAdminUser, "knownpw", ClientMeta{RemoteAddr: "203.0.113.9"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(token))
	}

	session, err := sm.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if session.Username != DefaultAdminUser {
		t.Errorf("username = %q", session.Username)
	}
	if session.RemoteAddr != "203.0.113.9" {
		t.Errorf("remote addr = %q", session.RemoteAddr)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	sm, _, _ := newTestSessions(t, time.Hour)

	if _, err := sm.Login(DefaultAdminUser, "wrong", ClientMeta{}); !errors.Is(err, pkgerrors.ErrInvalidCredentials) {
		t.Fatalf("Login returned %v, want ErrInvalidCredentials", err)
	}
	if sm.Count() != 0 {
		t.Error("failed login left a session behind")
	}
}

func TestValidateUnknownToken(t *testing.T) {
	sm, _, _ := newTestSessions(t, time.Hour)

	if _, err := sm.Validate("deadbeef"); !errors.Is(err, pkgerrors.ErrUnauthenticated) {
		t.Fatalf("Validate returned %v, want ErrUnauthenticated", err)
	}
}

// Expired sessions are rejected by Validate itself, whether or not the
// reaper has run.
func TestValidateExpiredSession(t *testing.T) {
	sm, _, _ := newTestSessions(t, -time.Minute)

	token, err := sm.Login(DefaultAdminUser, "knownpw", ClientMeta{})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if _, err := sm.Validate(token); !errors.Is(err, pkgerrors.ErrUnauthenticated) {
		t.Fatalf("Validate returned %v, want ErrUnauthenticated", err)
	}
	if sm.Count() != 0 {
		t.Error("expired session not removed on Validate")
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	sm, _, _ := newTestSessions(t, time.Hour)

	token, err := sm.Login(DefaultAdminUser, "knownpw", ClientMeta{})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := sm.Revoke(token); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if err := sm.Revoke(token); err != nil {
		t.Fatalf("second Revoke failed: %v", err)
	}
	if _, err := sm.Validate(token); !errors.Is(err, pkgerrors.ErrUnauthenticated) {
		t.Error("revoked token still validates")
	}
}

func TestRevokeUserRemovesAllSessions(t *testing.T) {
	sm, _, _ := newTestSessions(t, time.Hour)

	for i := 0; i < 3; i++ {
		if _, err := sm.Login(DefaultAdminUser, "knownpw", ClientMeta{}); err != nil {
			t.Fatalf("Login failed: %v", err)
		}
	}
	if sm.Count() != 3 {
		t.Fatalf("Count = %d, want 3", sm.Count())
	}

	if err := sm.RevokeUser(DefaultAdminUser); err != nil {
		t.Fatalf("RevokeUser failed: %v", err)
	}
	if sm.Count() != 0 {
		t.Errorf("Count = %d after RevokeUser, want 0", sm.Count())
	}
}

func TestReap(t *testing.T) {
	sm, _, _ := newTestSessions(t, -time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := sm.Login(DefaultAdminUser, "knownpw", ClientMeta{}); err != nil {
			t.Fatalf("Login failed: %v", err)
		}
	}

	if n := sm.Reap(); n != 2 {
		t.Errorf("Reap removed %d sessions, want 2", n)
	}
	if n := sm.Reap(); n != 0 {
		t.Errorf("second Reap removed %d sessions, want 0", n)
	}
}

func TestSessionsSurviveRestart(t *testing.T) {
	sm, cs, store := newTestSessions(t, time.Hour)

	token, err := sm.Login(DefaultAdminUser, "knownpw", ClientMeta{})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	sm2, err := NewSessionManager(store, cs, func() time.Duration { return time.Hour })
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	session, err := sm2.Validate(token)
	if err != nil {
		t.Fatalf("Validate after restart failed: %v", err)
	}
	if session.Username != DefaultAdminUser {
		t.Errorf("username = %q after restart", session.Username)
	}
}
