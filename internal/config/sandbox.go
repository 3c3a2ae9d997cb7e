package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/vertex-agent/internal/sandbox"
	"github.com/docker/go-units"
)

const (
	IsolationProcess = "process"
	IsolationNone    = "none"
)

// SandboxConfig bounds a single custom tool call. With process isolation
// each call runs in a worker process limited to MemoryLimit.
type SandboxConfig struct {
	Timeout     string `toml:"timeout"`
	MaxSteps    uint64 `toml:"max_steps"`
	Isolation   string `toml:"isolation"`
	MemoryLimit string `toml:"memory_limit"`

	memoryLimitVal int64
}

func (c *SandboxConfig) MemoryLimitBytes() int64 {
	return c.memoryLimitVal
}

// Options returns the sandbox options matching the section.
func (c *SandboxConfig) Options() []sandbox.Option {
	if c.Isolation != IsolationProcess {
		return nil
	}
	return []sandbox.Option{sandbox.WithIsolation(c.memoryLimitVal)}
}

func (c *SandboxConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

func (c *SandboxConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

func (c *SandboxConfig) Merge(overlay *SandboxConfig) {
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.MaxSteps != 0 {
		c.MaxSteps = overlay.MaxSteps
	}
	if overlay.Isolation != "" {
		c.Isolation = overlay.Isolation
	}
	if overlay.MemoryLimit != "" {
		c.MemoryLimit = overlay.MemoryLimit
	}
}

func (c *SandboxConfig) loadDefaults() {
	if c.Timeout == "" {
		c.Timeout = "2s"
	}
	if c.MaxSteps == 0 {
		c.MaxSteps = 1_000_000
	}
	if c.Isolation == "" {
		c.Isolation = IsolationProcess
	}
	if c.MemoryLimit == "" {
		c.MemoryLimit = "256MiB"
	}
}

func (c *SandboxConfig) loadEnv() {
	if v := os.Getenv("SANDBOX_TIMEOUT"); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv("SANDBOX_MAX_STEPS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.MaxSteps = n
		}
	}
	if v := os.Getenv("SANDBOX_ISOLATION"); v != "" {
		c.Isolation = v
	}
	if v := os.Getenv("SANDBOX_MEMORY_LIMIT"); v != "" {
		c.MemoryLimit = v
	}
}

func (c *SandboxConfig) validate() error {
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid timeout %q", c.Timeout)
	}
	if c.Isolation != IsolationProcess && c.Isolation != IsolationNone {
		return fmt.Errorf("isolation must be %q or %q, got %q", IsolationProcess, IsolationNone, c.Isolation)
	}
	n, err := units.RAMInBytes(c.MemoryLimit)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid memory_limit %q", c.MemoryLimit)
	}
	c.memoryLimitVal = n
	return nil
}
