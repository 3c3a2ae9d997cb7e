package api

import (
	"fmt"

	"github.com/JaimeStill/vertex-agent/internal/cloudrun"
	"github.com/JaimeStill/vertex-agent/internal/config"
	"github.com/JaimeStill/vertex-agent/internal/engine"
	"github.com/JaimeStill/vertex-agent/internal/infrastructure"
	"github.com/JaimeStill/vertex-agent/internal/sandbox"
	"github.com/JaimeStill/vertex-agent/pkg/pagination"
	"github.com/JaimeStill/vertex-agent/pkg/storage"
)

// Runtime extends Infrastructure with API-specific configuration and the
// remote clients shared across domain systems.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Sandbox    *sandbox.Sandbox
	Engines    *engine.Client

	// CloudRun is nil when no runner image is configured.
	CloudRun *cloudrun.Client
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) (*Runtime, error) {
	logger := infra.Logger.With("module", "api")
	lc := infra.Lifecycle

	staging, err := newStaging(cfg, infra)
	if err != nil {
		return nil, err
	}

	engines := engine.New(cfg.Vertex.EngineConfig(), staging, logger)
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		if err := engines.Close(); err != nil {
			logger.Error("engine client close failed", "error", err)
		}
	})

	var runner *cloudrun.Client
	if cfg.CloudRun.Image != "" {
		runner, err = cloudrun.New(lc.Context(), cfg.CloudRun.DeployerConfig(&cfg.Vertex), logger)
		if err != nil {
			return nil, fmt.Errorf("cloud run init failed: %w", err)
		}
	} else {
		logger.Info("cloud run deployments disabled", "reason", "no runner image configured")
	}

	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: lc,
			Logger:    logger,
			Database:  infra.Database,
			Storage:   infra.Storage,
		},
		Pagination: cfg.API.Pagination,
		Sandbox:    sandbox.New(cfg.Sandbox.TimeoutDuration(), cfg.Sandbox.MaxSteps, logger, cfg.Sandbox.Options()...),
		Engines:    engines,
		CloudRun:   runner,
	}, nil
}

// newStaging opens the bucket that receives engine requirements files.
// Without a staging bucket engines are created from the inline spec alone.
func newStaging(cfg *config.Config, infra *infrastructure.Infrastructure) (storage.System, error) {
	if cfg.Vertex.StagingBucket == "" {
		return nil, nil
	}

	stagingCfg := cfg.Storage
	stagingCfg.Backend = storage.BackendGCS
	stagingCfg.Bucket = cfg.Vertex.StagingBucket

	staging, err := storage.New(&stagingCfg, infra.Logger.With("bucket", "staging"))
	if err != nil {
		return nil, fmt.Errorf("staging storage init failed: %w", err)
	}
	if err := staging.Start(infra.Lifecycle); err != nil {
		return nil, fmt.Errorf("staging storage start failed: %w", err)
	}
	return staging, nil
}
