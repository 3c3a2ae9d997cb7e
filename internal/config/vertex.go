package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/vertex-agent/internal/engine"
	"github.com/JaimeStill/vertex-agent/internal/reconcile"
	"github.com/JaimeStill/vertex-agent/pkg/retry"
)

const (
	EnvVertexProject       = "GOOGLE_CLOUD_PROJECT"
	EnvVertexRegion        = "GOOGLE_CLOUD_REGION"
	EnvVertexFallbackModel = "VERTEX_FALLBACK_MODEL"
	EnvVertexStagingBucket = "VERTEX_STAGING_BUCKET"
)

// VertexConfig holds defaults for Vertex AI calls.
type VertexConfig struct {
	DefaultProject string `toml:"default_project"`
	DefaultRegion  string `toml:"default_region"`
	FallbackModel  string `toml:"fallback_model"`

	// StagingBucket receives the requirements file of each deployed engine.
	StagingBucket string `toml:"staging_bucket"`
	PythonVersion string `toml:"python_version"`

	RequestTimeout string `toml:"request_timeout"`
	RetryAttempts  int    `toml:"retry_attempts"`
	RetryInterval  string `toml:"retry_interval"`
}

func (c *VertexConfig) RequestTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.RequestTimeout)
	return d
}

// RetryConfig builds the backoff policy shared by remote clients.
func (c *VertexConfig) RetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = c.RetryAttempts
	if d, err := time.ParseDuration(c.RetryInterval); err == nil {
		cfg.InitialInterval = d
	}
	return cfg
}

// EngineConfig adapts the section to the Agent Engine client.
func (c *VertexConfig) EngineConfig() engine.Config {
	return engine.Config{
		Timeout:       c.RequestTimeoutDuration(),
		Retry:         c.RetryConfig(),
		StagingBucket: c.StagingBucket,
		PythonVersion: c.PythonVersion,
	}
}

func (c *VertexConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

func (c *VertexConfig) Merge(overlay *VertexConfig) {
	if overlay.DefaultProject != "" {
		c.DefaultProject = overlay.DefaultProject
	}
	if overlay.DefaultRegion != "" {
		c.DefaultRegion = overlay.DefaultRegion
	}
	if overlay.FallbackModel != "" {
		c.FallbackModel = overlay.FallbackModel
	}
	if overlay.StagingBucket != "" {
		c.StagingBucket = overlay.StagingBucket
	}
	if overlay.PythonVersion != "" {
		c.PythonVersion = overlay.PythonVersion
	}
	if overlay.RequestTimeout != "" {
		c.RequestTimeout = overlay.RequestTimeout
	}
	if overlay.RetryAttempts != 0 {
		c.RetryAttempts = overlay.RetryAttempts
	}
	if overlay.RetryInterval != "" {
		c.RetryInterval = overlay.RetryInterval
	}
}

func (c *VertexConfig) loadDefaults() {
	if c.DefaultRegion == "" {
		c.DefaultRegion = reconcile.DefaultRegion
	}
	if c.FallbackModel == "" {
		c.FallbackModel = reconcile.DefaultModel
	}
	if c.PythonVersion == "" {
		c.PythonVersion = "3.10"
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = "60s"
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = 3
	}
	if c.RetryInterval == "" {
		c.RetryInterval = "500ms"
	}
}

func (c *VertexConfig) loadEnv() {
	if v := os.Getenv(EnvVertexProject); v != "" {
		c.DefaultProject = v
	}
	if v := os.Getenv(EnvVertexRegion); v != "" {
		c.DefaultRegion = v
	}
	if v := os.Getenv(EnvVertexFallbackModel); v != "" {
		c.FallbackModel = v
	}
	if v := os.Getenv(EnvVertexStagingBucket); v != "" {
		c.StagingBucket = v
	}
	if v := os.Getenv("VERTEX_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RetryAttempts = n
		}
	}
}

func (c *VertexConfig) validate() error {
	if _, err := time.ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf("invalid request_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.RetryInterval); err != nil {
		return fmt.Errorf("invalid retry_interval: %w", err)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be positive")
	}
	return nil
}
