package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/vertex-agent/internal/config"
	"github.com/JaimeStill/vertex-agent/internal/customtools"
	"github.com/JaimeStill/vertex-agent/internal/sandbox"
	"github.com/JaimeStill/vertex-agent/pkg/logging"
)

func main() {
	if sandbox.IsWorker() {
		os.Exit(sandbox.ServeWorker())
	}

	var (
		all   = flag.Bool("all", false, "Run all seeders")
		tools = flag.Bool("tools", false, "Seed custom tools")
		file  = flag.String("file", "", "External seed file (overrides embedded)")
		list  = flag.Bool("list", false, "List available seeders")
	)
	flag.Parse()

	if *list {
		fmt.Println("Available seeders:")
		for _, s := range listSeeders() {
			fmt.Printf("  - %s: %s\n", s.Name(), s.Description())
		}
		return
	}

	if !*all && !*tools {
		fmt.Println("usage: seed [-all|-tools] [-file <path>] [-list]")
		flag.PrintDefaults()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed:", err)
	}
	if err := cfg.Finalize(); err != nil {
		log.Fatal("config finalize failed:", err)
	}

	db, err := sql.Open("pgx", cfg.Database.Dsn())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	logger := logging.New(&cfg.Logging).With("cmd", "seed")
	sb := sandbox.New(cfg.Sandbox.TimeoutDuration(), cfg.Sandbox.MaxSteps, logger, cfg.Sandbox.Options()...)
	deps := &Deps{
		Tools:  customtools.New(customtools.NewStore(db, cfg.API.Pagination), sb, logger),
		Logger: logger,
	}

	switch {
	case *all:
		if err := runAllSeeders(ctx, deps); err != nil {
			log.Fatalf("seeding failed: %v", err)
		}
		fmt.Println("all seeders completed successfully")

	case *tools:
		if *file != "" {
			if seeder, ok := getSeeder("tools"); ok {
				seeder.(*ToolSeeder).SetFile(*file)
			}
		}
		if err := runSeeder(ctx, deps, "tools"); err != nil {
			log.Fatalf("seeding failed: %v", err)
		}
		fmt.Println("custom tools seeded successfully")
	}
}
