package models

import "time"

// Role determines what management operations an account may perform.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// UserStatus is the lifecycle state of an account.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserDisabled UserStatus = "disabled"
)

// User represents a management account. PasswordHash is a bcrypt hash and
// must never leave the auth package.
type User struct {
	Username     string     `json:"username"`
	PasswordHash string     `json:"password_hash"`
	Role         Role       `json:"role"`
	Status       UserStatus `json:"status"`

	// Lockout state, maintained by the lockout policy.
	FailedAttempts int        `json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`

	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	// Password is only set by legacy documents that stored the secret in
	// the clear. It is hashed and blanked during load migration.
	Password string `json:"password,omitempty"`
}

// UserDocument is the persisted account list.
type UserDocument struct {
	Users []*User `json:"users"`
}
