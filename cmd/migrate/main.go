package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/opentrusty/storefront/internal/config"
	"github.com/opentrusty/storefront/internal/store/postgres"
)

const usage = `usage: migrate [up | down [steps] | status | version]

The database is read from DATABASE_URL, or from the DB_* settings otherwise.`

func main() {
	ctx := context.Background()

	dsn, err := databaseURL()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		if err := postgres.RunMigrations(ctx, dsn); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		fmt.Println("✓ Migrations applied")
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil || n < 1 {
				log.Fatalf("Invalid step count %q", os.Args[2])
			}
			steps = n
		}
		if err := postgres.RollbackMigrations(ctx, dsn, steps); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		fmt.Printf("✓ Rolled back %d migration(s)\n", steps)
	case "status":
		if err := postgres.MigrationStatus(ctx, dsn); err != nil {
			log.Fatalf("Status failed: %v", err)
		}
	case "version":
		v, err := postgres.MigrationVersion(ctx, dsn)
		if err != nil {
			log.Fatalf("Version failed: %v", err)
		}
		fmt.Printf("Current version: %d\n", v)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func databaseURL() (string, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	return cfg.Database.DSN(), nil
}
