package auth

import (
	"time"

	"hytun/internal/storage/models"
	pkgerrors "hytun/pkg/errors"
)

// LockoutPolicy enforces temporary account lockout after repeated failed
// logins. Thresholds are read through funcs so settings changes take effect
// without restarting. The policy mutates lockout state on user records; the
// owning store persists them.
type LockoutPolicy struct {
	threshold func() int
	duration  func() time.Duration
}

// NewLockoutPolicy creates a policy with the given configuration sources.
func NewLockoutPolicy(threshold func() int, duration func() time.Duration) *LockoutPolicy {
	return &LockoutPolicy{threshold: threshold, duration: duration}
}

// Check gates an authentication attempt. A locked account is rejected
// before any hashing work happens. A lock whose expiry has passed is
// cleared lazily here.
func (p *LockoutPolicy) Check(u *models.User, now time.Time) error {
	if u.LockedUntil == nil {
		return nil
	}
	if now.Before(*u.LockedUntil) {
		return pkgerrors.ErrAccountLocked
	}
	u.LockedUntil = nil
	u.FailedAttempts = 0
	return nil
}

// RecordFailure counts a failed verification. Reaching the threshold locks
// the account for the configured duration and resets the counter.
func (p *LockoutPolicy) RecordFailure(u *models.User, now time.Time) {
	u.FailedAttempts++
	if u.FailedAttempts >= p.threshold() {
		until := now.Add(p.duration())
		u.LockedUntil = &until
		u.FailedAttempts = 0
	}
}

// RecordSuccess clears all lockout state.
func (p *LockoutPolicy) RecordSuccess(u *models.User) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
}
