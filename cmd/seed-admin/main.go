// seed-admin creates or updates the admin console user.
//
// Usage:
//
//	SEED_ADMIN_PASSWORD=... DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/stageworks/roster_backend/config"
	"github.com/stageworks/roster_backend/models"
)

func main() {
	ctx := context.Background()
	username := config.StringFromEnv("SEED_ADMIN_USERNAME", "admin")
	name := config.StringFromEnv("SEED_ADMIN_NAME", "Administrator")
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "SEED_ADMIN_PASSWORD is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.Migrate(db); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	user, created, err := models.UpsertAdmin(ctx, db, username, name, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin: %v\n", err)
		os.Exit(1)
	}
	action := "updated admin user"
	if created {
		action = "created admin user"
	}
	config.LogInfo(config.GetLogger(), "seed-admin", "main", action, map[string]any{"username": user.Username, "id": user.ID})
}
