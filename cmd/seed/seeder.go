// Package main provides the seed command for populating the database with
// initial data. Seeders run through the domain systems so seeded records
// pass the same validation as API requests.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/JaimeStill/vertex-agent/internal/customtools"
)

// Seeder defines the interface for database seeders.
type Seeder interface {
	// Name returns the unique identifier for this seeder.
	Name() string

	// Description returns a human-readable description of what this seeder does.
	Description() string

	// Seed populates its domain. Seeding an already seeded database is a no-op.
	Seed(ctx context.Context, deps *Deps) error
}

// Deps are the systems seeders write through.
type Deps struct {
	Tools  customtools.System
	Logger *slog.Logger
}

var seeders = map[string]Seeder{}

// registerSeeder adds a seeder to the global registry.
// Seeders self-register via init() functions.
func registerSeeder(s Seeder) {
	seeders[s.Name()] = s
}

func getSeeder(name string) (Seeder, bool) {
	s, ok := seeders[name]
	return s, ok
}

// listSeeders returns all registered seeders ordered by name.
func listSeeders() []Seeder {
	result := make([]Seeder, 0, len(seeders))
	for _, s := range seeders {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

func runSeeder(ctx context.Context, deps *Deps, name string) error {
	seeder, ok := getSeeder(name)
	if !ok {
		return fmt.Errorf("seeder not found: %s", name)
	}
	if err := seeder.Seed(ctx, deps); err != nil {
		return fmt.Errorf("seed %s: %w", name, err)
	}
	return nil
}

func runAllSeeders(ctx context.Context, deps *Deps) error {
	for _, s := range listSeeders() {
		if err := runSeeder(ctx, deps, s.Name()); err != nil {
			return err
		}
	}
	return nil
}
