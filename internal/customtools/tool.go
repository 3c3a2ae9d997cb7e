// Package customtools stores user-authored tool functions and executes them
// through the sandbox. A tool is validated before it is persisted, so every
// stored tool parses and defines exactly one public function.
package customtools

import (
	"time"

	"github.com/google/uuid"
)

// CustomTool is an immutable, user-authored tool definition.
type CustomTool struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	Function    string    `json:"function"`
	Parameters  []string  `json:"parameters"`
	OwnerID     *string   `json:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateCommand contains the data required to submit a new tool.
type CreateCommand struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Code        string  `json:"code"`
	OwnerID     *string `json:"owner_id,omitempty"`
}

// ExecuteResult wraps the stringified outcome of a tool invocation.
type ExecuteResult struct {
	Result string `json:"result"`
}
