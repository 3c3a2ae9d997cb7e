// Package testruns keeps the append-only history of playground runs.
package testruns

import (
	"time"

	"github.com/google/uuid"
)

// DefaultLimit caps history queries that do not specify a limit.
const DefaultLimit = 20

// MaxLimit is the largest history page a caller may request.
const MaxLimit = 200

// TestRecord is one playground turn. Records are never updated.
type TestRecord struct {
	ID        uuid.UUID      `json:"id"`
	AgentID   uuid.UUID      `json:"agentId"`
	Query     string         `json:"query"`
	Response  string         `json:"response"`
	Metrics   map[string]any `json:"metrics"`
	Success   bool           `json:"success"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ClampLimit normalizes a requested history size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
