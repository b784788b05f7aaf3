// internal/room/errors.go
package room

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the registry and membership tracker.
// Callers should match them with errors.Is.
var (
	// ErrNotFound indicates no active room matches the given id or code.
	ErrNotFound = errors.New("room not found")

	// ErrWrongPassword indicates a join credential mismatch against a
	// password-protected room.
	ErrWrongPassword = errors.New("wrong room password")

	// ErrRoomFull indicates membership is already at maxPlayers.
	ErrRoomFull = errors.New("room is full")

	// ErrAlreadyStarted indicates a join was attempted against a room whose
	// game is already in progress.
	ErrAlreadyStarted = errors.New("game already started")

	// ErrAlreadyMember indicates the participant already holds a seat.
	// The registry treats this as an idempotent success on join.
	ErrAlreadyMember = errors.New("participant already seated")

	// ErrClosed indicates a lifecycle transition was attempted on a room
	// that has already reached its terminal state.
	ErrClosed = errors.New("room is closed")

	// ErrCodeSpaceExhausted indicates the active-room set has consumed the
	// entire code space. This is a service-level capacity alarm, never a
	// per-request condition worth retrying.
	ErrCodeSpaceExhausted = errors.New("room code space exhausted")
)

// ValidationError reports a room spec field the registry rejected. The HTTP
// layer validates request shape first; the registry re-checks only the
// invariants it depends on.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid room spec: %s %s", e.Field, e.Reason)
}
