package main

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/JaimeStill/vertex-agent/internal/customtools"
	"github.com/JaimeStill/vertex-agent/pkg/pagination"
)

//go:embed seeds/*.json
var seedFiles embed.FS

func init() {
	registerSeeder(&ToolSeeder{})
}

// ToolSeedData represents the JSON structure for custom tool seed files.
type ToolSeedData struct {
	Tools []customtools.CreateCommand `json:"tools"`
}

// ToolSeeder creates the sample custom tools agents can reference by id.
type ToolSeeder struct {
	file string
}

func (s *ToolSeeder) Name() string {
	return "tools"
}

func (s *ToolSeeder) Description() string {
	return "Seeds sample Starlark custom tools"
}

// SetFile configures an external seed file path, overriding the embedded default.
func (s *ToolSeeder) SetFile(path string) {
	s.file = path
}

// Seed creates every tool whose name is not already taken.
func (s *ToolSeeder) Seed(ctx context.Context, deps *Deps) error {
	data, err := s.loadSeedData()
	if err != nil {
		return err
	}

	for _, cmd := range data.Tools {
		exists, err := toolExists(ctx, deps.Tools, cmd.Name)
		if err != nil {
			return fmt.Errorf("lookup tool %s: %w", cmd.Name, err)
		}
		if exists {
			deps.Logger.Info("tool already seeded", "name", cmd.Name)
			continue
		}

		tool, err := deps.Tools.Create(ctx, cmd)
		if err != nil {
			return fmt.Errorf("create tool %s: %w", cmd.Name, err)
		}
		deps.Logger.Info("tool seeded", "name", tool.Name, "id", tool.ID, "function", tool.Function)
	}

	return nil
}

func (s *ToolSeeder) loadSeedData() (*ToolSeedData, error) {
	var (
		content []byte
		err     error
	)

	if s.file != "" {
		content, err = os.ReadFile(s.file)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
	} else {
		content, err = seedFiles.ReadFile("seeds/custom_tools.json")
		if err != nil {
			return nil, fmt.Errorf("read embedded seed file: %w", err)
		}
	}

	var data ToolSeedData
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("parse seed data: %w", err)
	}

	return &data, nil
}

// toolExists reports whether a tool with exactly this name is stored. The
// name filter matches substrings, so candidates are compared here.
func toolExists(ctx context.Context, tools customtools.System, name string) (bool, error) {
	page := pagination.PageRequest{Page: 1, PageSize: 100}
	result, err := tools.List(ctx, page, customtools.Filters{Name: &name})
	if err != nil {
		return false, err
	}
	for _, t := range result.Data {
		if t.Name == name {
			return true, nil
		}
	}
	return false, nil
}
