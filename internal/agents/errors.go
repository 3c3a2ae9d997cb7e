package agents

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/vertex-agent/internal/deployments"
	"github.com/JaimeStill/vertex-agent/internal/dispatch"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
)

var (
	ErrNotFound           = errors.New("agent not found")
	ErrDuplicate          = errors.New("agent already exists")
	ErrDeleted            = errors.New("agent is deleted")
	ErrNoActiveDeployment = errors.New("no active deployment for this project and region")
	ErrInvalidRequest     = errors.New("invalid request")
)

// MapHTTPStatus converts agent errors, and the errors of the systems agents
// orchestrate, to HTTP status codes. A missing deployment and a missing
// agent are both 404 but keep distinct messages.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoActiveDeployment):
		return http.StatusNotFound
	case errors.Is(err, ErrDeleted), errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, reconcile.ErrValidation),
		errors.Is(err, reconcile.ErrMissingProjectID),
		errors.Is(err, deployments.ErrInvalidType):
		return http.StatusBadRequest
	case errors.Is(err, dispatch.ErrUnsupportedFramework):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
