package voicesession

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrPermissionDenied indicates the user denied microphone access.
	// Fatal to the session; requires explicit retry.
	ErrPermissionDenied = errors.New("voicesession: microphone permission denied")

	// ErrConnectionTimeout indicates the room connection lost the race
	// against the fixed connect timeout.
	ErrConnectionTimeout = errors.New("voicesession: connection timed out")

	// ErrNotConnected indicates an operation that requires a live room
	// connection was attempted without one.
	ErrNotConnected = errors.New("voicesession: not connected")
)

// TransportError wraps an underlying network or media error.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("voicesession: transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AudioConfigError indicates the device denied the requested audio routing.
// It is reported to the caller but must not corrupt the session state
// machine.
type AudioConfigError struct {
	Mode RouteMode
	Err  error
}

func (e *AudioConfigError) Error() string {
	return fmt.Sprintf("voicesession: audio route %s denied: %v", e.Mode, e.Err)
}

func (e *AudioConfigError) Unwrap() error { return e.Err }

// MalformedCommandError describes an inbound control message that failed to
// decode. It is logged and dropped; a single malformed message must not
// terminate an otherwise healthy session.
type MalformedCommandError struct {
	Reason string
	Raw    []byte
}

func (e *MalformedCommandError) Error() string {
	return fmt.Sprintf("voicesession: malformed command: %s", e.Reason)
}

// userMessage reduces an error to a short human-readable string attached to
// the error state. Raw detail stays in the logs.
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access is required to ask questions."
	case errors.Is(err, ErrConnectionTimeout):
		return "Could not reach the voice service. Check your connection and try again."
	default:
		return "The voice session ended unexpectedly. Please try again."
	}
}
