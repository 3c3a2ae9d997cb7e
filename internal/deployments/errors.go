package deployments

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound    = errors.New("deployment not found")
	ErrDuplicate   = errors.New("an active deployment already exists for this target")
	ErrInvalidType = errors.New("invalid deployment type")
)

// MapHTTPStatus converts deployment errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
