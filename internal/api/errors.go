package api

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrSessionExpired is returned when the refresh token is itself
	// expired or rejected, so the session cannot be recovered.
	ErrSessionExpired = errors.New("session expired")

	// ErrUnauthenticated is returned when an operation needs a session
	// and none is present.
	ErrUnauthenticated = errors.New("not authenticated")
)

// Error is a structured rejection from the backend: a non-2xx status with
// a message body. Network failures are plain wrapped errors, not *Error.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// AsError unwraps a server rejection from err, if present.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
