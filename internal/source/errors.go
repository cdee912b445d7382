package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// ErrorCode classifies device location failures.
type ErrorCode string

const (
	CodePermissionDenied    ErrorCode = "PERMISSION_DENIED"
	CodePositionUnavailable ErrorCode = "POSITION_UNAVAILABLE"
	CodeTimeout             ErrorCode = "TIMEOUT"
	CodeUnknown             ErrorCode = "UNKNOWN"
)

// Sentinels a Locator can wrap to have its failures classified.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
)

// LocationError is a classified location failure with a hint the user can act on.
type LocationError struct {
	Code    ErrorCode
	Message string
	Hint    string
	Err     error
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LocationError) Unwrap() error { return e.Err }

var descriptions = map[ErrorCode]struct{ message, hint string }{
	CodePermissionDenied: {
		message: "location access was denied",
		hint:    "allow location access for the tracking app in the device settings",
	},
	CodePositionUnavailable: {
		message: "the device could not determine its position",
		hint:    "move to an open area with a clear view of the sky, or enable network location",
	},
	CodeTimeout: {
		message: "determining the position took too long",
		hint:    "check that location services are enabled; the next attempt follows automatically",
	},
	CodeUnknown: {
		message: "an unexpected location error occurred",
		hint:    "restart tracking; contact support if the problem persists",
	},
}

// NewLocationError builds a LocationError with the standard message and hint for code.
func NewLocationError(code ErrorCode, err error) *LocationError {
	d, ok := descriptions[code]
	if !ok {
		code = CodeUnknown
		d = descriptions[CodeUnknown]
	}
	return &LocationError{Code: code, Message: d.message, Hint: d.hint, Err: err}
}

// Classify maps a locator error to a LocationError. Errors that already are
// one are returned as is.
func Classify(err error) *LocationError {
	if err == nil {
		return nil
	}

	var lerr *LocationError
	if errors.As(err, &lerr) {
		return lerr
	}

	var netErr net.Error
	switch {
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, os.ErrPermission):
		return NewLocationError(CodePermissionDenied, err)
	case errors.Is(err, ErrPositionUnavailable):
		return NewLocationError(CodePositionUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return NewLocationError(CodeTimeout, err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewLocationError(CodeTimeout, err)
	default:
		return NewLocationError(CodeUnknown, err)
	}
}
