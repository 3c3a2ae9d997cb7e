package api

import (
	"github.com/JaimeStill/vertex-agent/internal/agents"
	"github.com/JaimeStill/vertex-agent/internal/config"
	"github.com/JaimeStill/vertex-agent/internal/customtools"
	"github.com/JaimeStill/vertex-agent/internal/deployments"
	"github.com/JaimeStill/vertex-agent/internal/dispatch"
	"github.com/JaimeStill/vertex-agent/internal/files"
	"github.com/JaimeStill/vertex-agent/internal/testruns"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Agents      agents.System
	CustomTools customtools.System
	Files       files.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	db := runtime.Database.Connection()

	toolsSys := customtools.New(
		customtools.NewStore(db, runtime.Pagination),
		runtime.Sandbox,
		runtime.Logger,
	)

	dispatcher := dispatch.New(
		dispatch.NewVertexModel(
			cfg.Vertex.RequestTimeoutDuration(),
			cfg.Vertex.RetryConfig(),
			runtime.Logger,
		),
		dispatch.NewResolver(runtime.Sandbox, toolsSys, runtime.Logger),
		runtime.Logger,
	)

	deps := agents.Dependencies{
		Deployments: deployments.NewStore(db),
		Tests:       testruns.NewStore(db),
		Runner:      dispatcher,
		Engines:     runtime.Engines,
	}
	// A nil *cloudrun.Client must not become a non-nil interface.
	if runtime.CloudRun != nil {
		deps.CloudRun = runtime.CloudRun
	}

	agentsSys := agents.New(
		agents.Config{
			DefaultProject: cfg.Vertex.DefaultProject,
			DefaultRegion:  cfg.Vertex.DefaultRegion,
			FallbackModel:  cfg.Vertex.FallbackModel,
		},
		agents.NewStore(db, runtime.Pagination),
		deps,
		runtime.Logger,
	)

	filesSys := files.New(
		files.NewStore(db),
		runtime.Storage,
		files.Config{
			ContentPath: cfg.API.BasePath + "/files",
			URLTTL:      cfg.Storage.SignedURLTTLDuration(),
		},
		runtime.Logger,
	)

	return &Domain{
		Agents:      agentsSys,
		CustomTools: toolsSys,
		Files:       filesSys,
	}
}
