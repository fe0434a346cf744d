package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"hytun/internal/storage"
	"hytun/internal/storage/jsonfile"
	"hytun/internal/storage/models"
	pkgerrors "hytun/pkg/errors"
)

const usersDocument = "users"

// DefaultAdminUser is the account created on first run.
const DefaultAdminUser = "admin"

// AccountInfo is the externally visible view of an account. It never
// carries the password hash.
type AccountInfo struct {
	Username  string            `json:"username"`
	Role      models.Role       `json:"role"`
	Status    models.UserStatus `json:"status"`
	LastLogin *time.Time        `json:"last_login,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Locked    bool              `json:"locked"`
}

// CredentialStore owns the account document. Secrets are stored as bcrypt
// hashes only; plaintext passwords exist transiently in call arguments and
// are never logged or persisted.
type CredentialStore struct {
	mu      sync.Mutex
	store   storage.DocumentStore
	lockout *LockoutPolicy
	users   []*models.User

	// dummyHash absorbs verification work for unknown usernames so lookup
	// misses and hash mismatches are indistinguishable to a caller timing
	// responses.
	dummyHash []byte
}

// NewCredentialStore loads the account document, migrating legacy plaintext
// records and bootstrapping a default admin on first run.
func NewCredentialStore(store storage.DocumentStore, lockout *LockoutPolicy) (*CredentialStore, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte(randomSecret(16)), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	cs := &CredentialStore{
		store:     store,
		lockout:   lockout,
		dummyHash: dummy,
	}

	var doc models.UserDocument
	err = store.Load(usersDocument, &doc)
	switch {
	case err == nil:
		cs.users = doc.Users
		if err := cs.migrateLegacy(); err != nil {
			return nil, err
		}
	case errors.Is(err, jsonfile.ErrNotExist):
		if err := cs.bootstrap(); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return cs, nil
}

// bootstrap creates the default admin account with a random password and
// logs the credential exactly once so the operator can capture it.
func (cs *CredentialStore) bootstrap() error {
	password := randomSecret(12)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	cs.users = []*models.User{{
		Username:     DefaultAdminUser,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Status:       models.UserActive,
		CreatedAt:    time.Now(),
	}}

	if err := cs.persist(); err != nil {
		return err
	}

	slog.Warn("================================================================")
	slog.Warn("first run: created default admin account",
		"username", DefaultAdminUser, "password", password)
	slog.Warn("this password is shown only once; change it after logging in")
	slog.Warn("================================================================")
	return nil
}

// migrateLegacy re-hashes accounts that an older release stored with a
// plaintext password field. Runs once at load; the plaintext is blanked
// before the document is written back.
func (cs *CredentialStore) migrateLegacy() error {
	migrated := false
	for _, u := range cs.users {
		if u.Password == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u.PasswordHash = string(hash)
		u.Password = ""
		migrated = true
		slog.Info("migrated legacy plaintext credential", "username", u.Username)
	}
	if migrated {
		return cs.persist()
	}
	return nil
}

// Authenticate verifies a login attempt, applying the lockout gate before
// any hashing work. Unknown usernames, wrong passwords, and disabled
// accounts all report the same ErrInvalidCredentials.
func (cs *CredentialStore) Authenticate(username, password string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := time.Now()
	u := cs.lookup(username)
	if u == nil {
		// Burn comparable time for unknown accounts.
		bcrypt.CompareHashAndPassword(cs.dummyHash, []byte(password))
		return pkgerrors.ErrInvalidCredentials
	}

	if err := cs.lockout.Check(u, now); err != nil {
		cs.persistBestEffort()
		return err
	}

	if u.Status != models.UserActive {
		bcrypt.CompareHashAndPassword(cs.dummyHash, []byte(password))
		return pkgerrors.ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		cs.lockout.RecordFailure(u, now)
		if err := cs.persist(); err != nil {
			slog.Error("failed to persist lockout state", "error", err)
		}
		return pkgerrors.ErrInvalidCredentials
	}

	cs.lockout.RecordSuccess(u)
	u.LastLogin = &now
	if err := cs.persist(); err != nil {
		slog.Error("failed to persist login state", "error", err)
	}
	return nil
}

// Verify checks a password without touching lockout state. Used for
// re-authentication inside already-authenticated flows (password change,
// rename).
func (cs *CredentialStore) Verify(username, password string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	u := cs.lookup(username)
	if u == nil {
		bcrypt.CompareHashAndPassword(cs.dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// SetPassword re-hashes and persists a new password for the account.
func (cs *CredentialStore) SetPassword(username, newPassword string) error {
	if len(newPassword) < 6 {
		return fmt.Errorf("password must be at least 6 characters")
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	u := cs.lookup(username)
	if u == nil {
		return pkgerrors.ErrUserNotFound
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return cs.persist()
}

// Rename changes an account's username. It requires the caller to supply
// the correct current password and the new name to be unused.
func (cs *CredentialStore) Rename(username, newUsername, currentPassword string) error {
	if newUsername == "" {
		return fmt.Errorf("new username must not be empty")
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	u := cs.lookup(username)
	if u == nil {
		return pkgerrors.ErrUserNotFound
	}
	if cs.lookup(newUsername) != nil {
		return pkgerrors.ErrUserExists
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)) != nil {
		return pkgerrors.ErrInvalidCredentials
	}

	u.Username = newUsername
	return cs.persist()
}

// Get returns the public view of an account.
func (cs *CredentialStore) Get(username string) (*AccountInfo, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	u := cs.lookup(username)
	if u == nil {
		return nil, pkgerrors.ErrUserNotFound
	}
	return accountInfo(u), nil
}

// List returns the public view of all accounts.
func (cs *CredentialStore) List() []*AccountInfo {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	out := make([]*AccountInfo, 0, len(cs.users))
	for _, u := range cs.users {
		out = append(out, accountInfo(u))
	}
	return out
}

func accountInfo(u *models.User) *AccountInfo {
	return &AccountInfo{
		Username:  u.Username,
		Role:      u.Role,
		Status:    u.Status,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
		Locked:    u.LockedUntil != nil && time.Now().Before(*u.LockedUntil),
	}
}

func (cs *CredentialStore) lookup(username string) *models.User {
	for _, u := range cs.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func (cs *CredentialStore) persist() error {
	return cs.store.Save(usersDocument, models.UserDocument{Users: cs.users})
}

func (cs *CredentialStore) persistBestEffort() {
	if err := cs.persist(); err != nil {
		slog.Error("failed to persist user document", "error", err)
	}
}

func randomSecret(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the platform is unusable for issuing
		// any credential.
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)[:n]
}
