package customtools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JaimeStill/vertex-agent/internal/sandbox"
	"github.com/JaimeStill/vertex-agent/pkg/pagination"
	"github.com/google/uuid"
)

// System defines the custom tool operations.
type System interface {
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[CustomTool], error)
	Find(ctx context.Context, id uuid.UUID) (*CustomTool, error)
	Create(ctx context.Context, cmd CreateCommand) (*CustomTool, error)
	Execute(ctx context.Context, id uuid.UUID, params map[string]any) (string, error)
}

type system struct {
	store   Store
	sandbox *sandbox.Sandbox
	logger  *slog.Logger
}

// New creates the tool system over store, validating and running code in sb.
func New(store Store, sb *sandbox.Sandbox, logger *slog.Logger) System {
	return &system{
		store:   store,
		sandbox: sb,
		logger:  logger.With("system", "customtools"),
	}
}

func (s *system) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[CustomTool], error) {
	return s.store.List(ctx, page, filters)
}

func (s *system) Find(ctx context.Context, id uuid.UUID) (*CustomTool, error) {
	return s.store.Find(ctx, id)
}

// Create validates the submitted code and persists the tool only when
// validation succeeds. Rejected submissions leave no trace in the store.
func (s *system) Create(ctx context.Context, cmd CreateCommand) (*CustomTool, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}

	info, err := s.sandbox.Validate(ctx, cmd.Code)
	if err != nil {
		s.logger.Info("custom tool rejected", "name", name, "error", err)
		return nil, err
	}

	tool, err := s.store.Insert(ctx, CustomTool{
		ID:          uuid.New(),
		Name:        name,
		Description: cmd.Description,
		Code:        cmd.Code,
		Function:    info.Name,
		Parameters:  info.Params,
		OwnerID:     cmd.OwnerID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("custom tool created", "id", tool.ID, "name", tool.Name, "function", tool.Function)
	return tool, nil
}

// Execute runs the stored tool. Only a missing tool is reported as an
// error; every failure inside the tool is returned as the result string.
func (s *system) Execute(ctx context.Context, id uuid.UUID, params map[string]any) (string, error) {
	tool, err := s.store.Find(ctx, id)
	if err != nil {
		return "", err
	}

	result := s.sandbox.Run(ctx, tool.Code, params)
	s.logger.Debug("custom tool executed", "id", id, "function", tool.Function)
	return result, nil
}
