package tracking

import (
	"errors"
	"fmt"
)

// Sentinel errors for the tracking package.
var (
	// ErrNotConnected indicates an action was attempted while the
	// transport is down. Reported to the caller, never retried
	// automatically.
	ErrNotConnected = errors.New("tracking: not connected")

	// ErrAlreadyConnected indicates a redundant connect.
	ErrAlreadyConnected = errors.New("tracking: already connected")

	// ErrInvalidTransition indicates a session action in the wrong state.
	// The session state is unchanged.
	ErrInvalidTransition = errors.New("tracking: invalid session transition")

	// ErrSessionActive indicates a session is already tracking or paused;
	// it must be stopped explicitly before a new one starts.
	ErrSessionActive = errors.New("tracking: session already active")

	// ErrMaxReconnect indicates the reconnect budget is exhausted.
	// Terminal until an explicit Connect.
	ErrMaxReconnect = errors.New("tracking: max reconnect attempts exceeded")

	// ErrClosed indicates the component was closed and cannot be reused.
	ErrClosed = errors.New("tracking: closed")
)

// ConnectionError represents a transport-level failure. It is handled
// locally by the connection manager's backoff loop and surfaces to
// consumers only as status events.
type ConnectionError struct {
	// Reason describes what failed.
	Reason string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("tracking: connection error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("tracking: connection error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// IsNotConnected returns true if the error indicates no usable connection.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrMaxReconnect)
}
