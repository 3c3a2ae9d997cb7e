package storage

import "errors"

var (
	ErrNotFound         = errors.New("storage: key not found")
	ErrPermissionDenied = errors.New("storage: permission denied")

	// ErrInvalidKey covers empty keys and path traversal attempts.
	ErrInvalidKey = errors.New("storage: invalid key")

	// ErrURLUnsupported is returned by backends that cannot mint direct
	// download URLs. Callers serve the content themselves instead.
	ErrURLUnsupported = errors.New("storage: direct urls not supported")
)
