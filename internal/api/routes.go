package api

import (
	"net/http"

	"github.com/JaimeStill/vertex-agent/internal/agents"
	"github.com/JaimeStill/vertex-agent/internal/config"
	"github.com/JaimeStill/vertex-agent/internal/customtools"
	"github.com/JaimeStill/vertex-agent/internal/engine"
	"github.com/JaimeStill/vertex-agent/internal/files"
	"github.com/JaimeStill/vertex-agent/pkg/openapi"
	"github.com/JaimeStill/vertex-agent/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	spec *openapi.Spec,
	runtime *Runtime,
	domain *Domain,
	cfg *config.Config,
) {
	agentsHandler := agents.NewHandler(domain.Agents, runtime.Logger, runtime.Pagination)
	toolsHandler := customtools.NewHandler(domain.CustomTools, runtime.Logger, runtime.Pagination)
	filesHandler := files.NewHandler(domain.Files, runtime.Logger, cfg.Storage.MaxUploadSizeBytes())
	enginesHandler := engine.NewHandler(runtime.Engines, cfg.Vertex.DefaultRegion, runtime.Logger)

	spec.Components.AddSchemas(agents.Spec.Schemas())
	spec.Components.AddSchemas(customtools.Spec.Schemas())
	spec.Components.AddSchemas(files.Spec.Schemas())
	spec.Components.AddSchemas(engine.Spec.Schemas())

	routes.Register(
		mux,
		cfg.API.BasePath,
		spec,
		agentsHandler.Routes(),
		toolsHandler.Routes(),
		filesHandler.Routes(),
		enginesHandler.Routes(),
	)
}
