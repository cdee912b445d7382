package tracking

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every *Error unwraps to one of them.
var (
	// ErrValidation is returned for malformed input. No state is mutated.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned for unknown workers and missing active sessions.
	ErrNotFound = errors.New("not found")

	// ErrUpstream marks a failed best-effort side effect. It is logged and
	// never returned to callers of UpdatePosition.
	ErrUpstream = errors.New("upstream failure")
)

// Machine-readable error codes.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeWorkerNotFound  = "WORKER_NOT_FOUND"
	CodeNoActiveSession = "NO_ACTIVE_SESSION"
)

// Error is a caller-facing failure with a stable code and a human message.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func validationError(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...), Err: ErrValidation}
}

func workerNotFound(workerID string) *Error {
	return &Error{Code: CodeWorkerNotFound, Message: fmt.Sprintf("worker %q not found", workerID), Err: ErrNotFound}
}

func noActiveSession(workerID string) *Error {
	return &Error{Code: CodeNoActiveSession, Message: fmt.Sprintf("no active tracking session for worker %q", workerID), Err: ErrNotFound}
}
