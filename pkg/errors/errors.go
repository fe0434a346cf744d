package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// Node errors
	ErrInvalidLink   = errors.New("invalid node link")
	ErrDuplicateNode = errors.New("node with same server and port already exists")
	ErrNodeNotFound  = errors.New("node not found")
	ErrNoCurrentNode = errors.New("no node selected")

	// Auth errors
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrUnauthorized       = errors.New("insufficient privileges")
	ErrUserExists         = errors.New("username already taken")
	ErrUserNotFound       = errors.New("user not found")

	// Persistence errors
	ErrPersistence = errors.New("failed to persist store")

	// Service errors
	ErrServiceNotRunning = errors.New("service is not running")
	ErrCommandTimeout    = errors.New("command timed out")
	ErrCommandFailed     = errors.New("command failed")

	// Subscription errors
	ErrSubscriptionFetchFailed = errors.New("failed to fetch subscription")
	ErrSubscriptionEmpty       = errors.New("subscription contains no usable links")
)

// ParseError reports a malformed node link. The raw input is user-supplied
// and safe to echo back to the caller.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid link %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidLink
}

// NodeError represents a node-related error
type NodeError struct {
	NodeID string
	Name   string
	Err    error
}

func (e *NodeError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("node '%s' (ID: %s): %v", e.Name, e.NodeID, e.Err)
	}
	return fmt.Sprintf("node (ID: %s): %v", e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// CommandError represents a failed or timed-out external command. Stderr is
// captured for logging; callers surface a generic failure to end users.
type CommandError struct {
	Cmd      string
	ExitCode int
	Stderr   string
	Timeout  bool
}

func (e *CommandError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("command '%s' timed out", e.Cmd)
	}
	if e.Stderr != "" {
		return fmt.Sprintf("command '%s' exited %d: %s", e.Cmd, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("command '%s' exited %d", e.Cmd, e.ExitCode)
}

func (e *CommandError) Unwrap() error {
	if e.Timeout {
		return ErrCommandTimeout
	}
	return ErrCommandFailed
}

// StoreError represents a persistence failure for a named document.
type StoreError struct {
	Document string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store '%s': %v", e.Document, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// FetchError represents a failed subscription download. StatusCode is zero
// when the request never produced a response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch '%s': HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch '%s': %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return ErrSubscriptionFetchFailed
}

// Permanent reports whether retrying the request cannot help.
func (e *FetchError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// SubscriptionError represents a subscription-related error
type SubscriptionError struct {
	URL  string
	Name string
	Err  error
}

func (e *SubscriptionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("subscription '%s': %v", e.Name, e.Err)
	}
	return fmt.Sprintf("subscription '%s': %v", e.URL, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}
