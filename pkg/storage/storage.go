// Package storage provides blob storage for uploaded files with a local
// filesystem backend and a Google Cloud Storage backend.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/vertex-agent/pkg/lifecycle"
)

// System defines blob storage operations shared by every backend.
type System interface {
	// Store saves data at key, overwriting existing content.
	Store(ctx context.Context, key string, data []byte) error

	// Retrieve returns the data at key or ErrNotFound.
	Retrieve(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key under prefix and reports how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// Validate reports whether key exists.
	Validate(ctx context.Context, key string) (bool, error)

	// URL returns a time-limited download URL for key, or ErrURLUnsupported.
	URL(ctx context.Context, key string) (string, error)

	Start(lc *lifecycle.Coordinator) error
}

// New creates the backend selected by cfg.Backend.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	switch cfg.Backend {
	case BackendFilesystem, "":
		return newFilesystem(cfg, logger)
	case BackendGCS:
		return newGCS(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
