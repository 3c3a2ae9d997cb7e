package dispatch

import (
	"errors"
	"net/http"
)

var (
	ErrExecution            = errors.New("agent execution failed")
	ErrUnsupportedFramework = errors.New("framework execution not supported")
	ErrModel                = errors.New("model generation failed")
)

// MapHTTPStatus converts dispatch errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnsupportedFramework):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
