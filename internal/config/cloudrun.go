package config

import (
	"fmt"
	"os"
	"time"

	"github.com/JaimeStill/vertex-agent/internal/cloudrun"
)

// CloudRunConfig describes the runner container deployed for CLOUD_RUN
// deployments.
type CloudRunConfig struct {
	Image string `toml:"image"`

	// ServiceAccount is a fmt pattern that receives the project id.
	// Example: "agent-runner@%s.iam.gserviceaccount.com"
	ServiceAccount string `toml:"service_account"`

	CPU          string `toml:"cpu"`
	Memory       string `toml:"memory"`
	Timeout      string `toml:"timeout"`
	PollInterval string `toml:"poll_interval"`
}

// DeployerConfig adapts the section to the Cloud Run client, sharing the
// Vertex request timeout and retry policy.
func (c *CloudRunConfig) DeployerConfig(vertex *VertexConfig) cloudrun.Config {
	timeout, _ := time.ParseDuration(c.Timeout)
	poll, _ := time.ParseDuration(c.PollInterval)
	return cloudrun.Config{
		Image:          c.Image,
		ServiceAccount: c.ServiceAccount,
		CPU:            c.CPU,
		Memory:         c.Memory,
		Timeout:        timeout,
		PollInterval:   poll,
		RequestTimeout: vertex.RequestTimeoutDuration(),
		Retry:          vertex.RetryConfig(),
	}
}

func (c *CloudRunConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

func (c *CloudRunConfig) Merge(overlay *CloudRunConfig) {
	if overlay.Image != "" {
		c.Image = overlay.Image
	}
	if overlay.ServiceAccount != "" {
		c.ServiceAccount = overlay.ServiceAccount
	}
	if overlay.CPU != "" {
		c.CPU = overlay.CPU
	}
	if overlay.Memory != "" {
		c.Memory = overlay.Memory
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.PollInterval != "" {
		c.PollInterval = overlay.PollInterval
	}
}

func (c *CloudRunConfig) loadDefaults() {
	if c.CPU == "" {
		c.CPU = "1"
	}
	if c.Memory == "" {
		c.Memory = "512Mi"
	}
	if c.Timeout == "" {
		c.Timeout = "300s"
	}
	if c.PollInterval == "" {
		c.PollInterval = "5s"
	}
}

func (c *CloudRunConfig) loadEnv() {
	if v := os.Getenv("CLOUD_RUN_IMAGE"); v != "" {
		c.Image = v
	}
	if v := os.Getenv("CLOUD_RUN_SERVICE_ACCOUNT"); v != "" {
		c.ServiceAccount = v
	}
}

func (c *CloudRunConfig) validate() error {
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if d, err := time.ParseDuration(c.PollInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid poll_interval %q", c.PollInterval)
	}
	return nil
}
