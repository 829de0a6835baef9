package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Rrens/oneonone-bot/internal/config"
	"github.com/Rrens/oneonone-bot/internal/repository/postgres"
)

func main() {
	down := flag.Bool("down", false, "roll back the most recent migration")
	source := flag.String("source", "", "migration source URL (defaults to database.migrations)")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Database.Driver != "postgres" {
		fmt.Fprintf(os.Stderr, "Migrations only apply to postgres; %s creates its schema on startup\n", cfg.Database.Driver)
		os.Exit(1)
	}

	sourceURL := cfg.Database.Migrations
	if *source != "" {
		sourceURL = *source
	}

	if *down {
		fmt.Printf("Rolling back last migration from %s...\n", sourceURL)
		if err := postgres.RollbackMigration(cfg.Database.DSN(), sourceURL); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
			os.Exit(1)
		}
		fmt.Println("✅ Rollback applied successfully")
		return
	}

	fmt.Printf("Applying migrations from %s...\n", sourceURL)
	if err := postgres.RunMigrations(cfg.Database.DSN(), sourceURL); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Migrations applied successfully")
}
