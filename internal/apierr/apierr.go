// Package apierr maps the daemon's domain errors onto HTTP status codes so
// IPC handlers stay thin wrappers around Supervisor calls, the way every
// handler in the original implementation mapped one error to one status.
package apierr

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrAlreadyRunning = errors.New("instance already running")
	ErrNotRunning     = errors.New("instance not running")
	ErrValidation     = errors.New("validation failed")
	ErrProtocol       = errors.New("protocol error")
	ErrConflict       = errors.New("conflict")
)

// StatusFor returns the HTTP status code a domain error should be reported as.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotRunning):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrProtocol):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
