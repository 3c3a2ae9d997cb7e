package files

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound       = errors.New("file not found")
	ErrDuplicate      = errors.New("file already exists")
	ErrNoFiles        = errors.New("no files in upload")
	ErrFileTooLarge   = errors.New("upload exceeds maximum size")
	ErrInvalidSession = errors.New("invalid session id")
)

// MapHTTPStatus converts domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrNoFiles), errors.Is(err, ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
