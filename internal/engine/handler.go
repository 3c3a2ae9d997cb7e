package engine

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/pkg/handlers"
	"github.com/JaimeStill/vertex-agent/pkg/routes"
)

// Handler exposes read access to the engines that exist remotely,
// including ones not created through this service.
type Handler struct {
	remote        Remote
	defaultRegion string
	logger        *slog.Logger
}

func NewHandler(remote Remote, defaultRegion string, logger *slog.Logger) *Handler {
	return &Handler{
		remote:        remote,
		defaultRegion: defaultRegion,
		logger:        logger.With("handler", "engines"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:      "/engines",
		Tags:        []string{"Engines"},
		Description: "Reasoning engines on Vertex AI Agent Engine",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: Spec.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: Spec.Find},
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	target, err := h.target(r)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	engines, err := h.remote.List(r.Context(), target)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, engines)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	target, err := h.target(r)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	e, err := h.remote.Get(r.Context(), ResourceName(target, r.PathValue("id")))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, e)
}

func (h *Handler) target(r *http.Request) (Target, error) {
	params := reconcile.ParamsFromQuery(r.URL.Query())
	project, err := params.RequireProject()
	if err != nil {
		return Target{}, err
	}
	return Target{Project: project, Region: params.EffectiveRegion(h.defaultRegion)}, nil
}
