package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/opentrusty/storefront/internal/config"
	"github.com/opentrusty/storefront/internal/store/postgres"
)

// clean-db removes every account for local development. Stores are kept.
func main() {
	ctx := context.Background()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		dsn = cfg.Database.DSN()
	}

	db, err := postgres.New(ctx, postgres.Config{DSN: dsn, MaxOpenConns: 1})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	fmt.Println("Cleaning database...")

	if err := db.TruncateAccounts(ctx); err != nil {
		log.Fatalf("Failed to clean accounts: %v", err)
	}

	fmt.Println("✓ Cleared accounts")
}
