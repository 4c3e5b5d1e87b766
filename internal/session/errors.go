package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSuperseded is returned when a newer session request was issued while
	// this one was in flight. Its result was discarded.
	ErrSuperseded = errors.New("session: superseded by a newer request")
	// ErrInvalidRole is returned when the identity service hands back a user
	// without a known role.
	ErrInvalidRole = errors.New("session: user has no valid role")
)

// AuthOperationError reports a failed login or registration. The caller shows
// it to the user; session state is unchanged.
type AuthOperationError struct {
	Op  string
	Err error
}

func (e *AuthOperationError) Error() string {
	return fmt.Sprintf("session: %s failed: %v", e.Op, e.Err)
}

func (e *AuthOperationError) Unwrap() error { return e.Err }

// AuthValidationError reports that a stored token was rejected. It is
// recovered by clearing the stored credentials and is only logged.
type AuthValidationError struct {
	Err error
}

func (e *AuthValidationError) Error() string {
	return fmt.Sprintf("session: stored token rejected: %v", e.Err)
}

func (e *AuthValidationError) Unwrap() error { return e.Err }
