package customtools

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/vertex-agent/internal/sandbox"
)

var (
	ErrNotFound       = errors.New("custom tool not found")
	ErrDuplicate      = errors.New("custom tool already exists")
	ErrInvalidCode    = sandbox.ErrInvalidCode
	ErrInvalidRequest = errors.New("invalid custom tool request")
)

// MapHTTPStatus converts domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidCode), errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
