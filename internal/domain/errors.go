package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not found")
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrAuthentication matches every AuthenticationError.
	ErrAuthentication = errors.New("authentication failed")
	// ErrTransport matches every TransportError.
	ErrTransport = errors.New("persistence backend unavailable")
	// ErrConflict is returned by repositories when a unique key is already taken.
	ErrConflict = errors.New("already exists")
)

// Resource names used in NotFoundError.
const (
	ResourceDailyActivity = "daily activity"
	ResourceManualEntry   = "manual entry"
	ResourceUser          = "user"
)

// ValidationError lists every constraint an input violated.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// Is reports ErrValidation equivalence.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports a lookup by id or date with no match.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// Is reports ErrNotFound equivalence.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AuthenticationError covers bad credentials and duplicate usernames.
type AuthenticationError struct {
	Reason string
}

func (e *AuthenticationError) Error() string {
	return "authentication failed: " + e.Reason
}

// Is reports ErrAuthentication equivalence.
func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// TransportError is returned when the persistence backend is unreachable or answers with a failure status.
// It is surfaced as-is; callers decide whether to retry.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": transport failure"
	}
}

// Unwrap exposes the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }

// Is reports ErrTransport equivalence.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Violations extracts the constraint list from a validation failure, or nil.
func Violations(err error) []string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Violations
	}
	return nil
}
