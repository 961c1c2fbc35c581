package config

import (
	"context"
	"fmt"
	"log"
	"os"

	"cmsmini/internal/model"
	"cmsmini/internal/utils"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Default passwords from the original deployment. Kept as a fallback so a
// fresh install is usable, but a warning is logged when they are in effect.
const (
	defaultAdminPassword  = "admin123"
	defaultEditorPassword = "editor123"
)

// SeedUsers provisions the two bootstrap accounts, "admin" (role admin) and
// "editor" (role editor), if they do not exist yet. Passwords come from
// ADMIN_PASSWORD and EDITOR_PASSWORD, falling back to insecure defaults.
func SeedUsers(ctx context.Context, db *pgxpool.Pool) error {
	seeds := []struct {
		username   string
		role       string
		passwdVar  string
		defaultPwd string
	}{
		{"admin", model.RoleAdmin, "ADMIN_PASSWORD", defaultAdminPassword},
		{"editor", model.RoleEditor, "EDITOR_PASSWORD", defaultEditorPassword},
	}

	for _, seed := range seeds {
		var count int
		err := db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE username = $1`, seed.username).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check seed user %s: %w", seed.username, err)
		}
		if count != 0 {
			continue
		}

		password := os.Getenv(seed.passwdVar)
		if password == "" {
			password = seed.defaultPwd
			log.Printf("WARNING: %s not set, seeding user %q with the default password. Change it before exposing this service.", seed.passwdVar, seed.username)
		}

		hash, err := utils.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash password for seed user %s: %w", seed.username, err)
		}

		_, err = db.Exec(ctx,
			`INSERT INTO users (username, password_hash, role) VALUES ($1, $2, $3)`,
			seed.username, hash, seed.role)
		if err != nil {
			return fmt.Errorf("failed to create seed user %s: %w", seed.username, err)
		}
		log.Printf("Seeded user %q with role %s", seed.username, seed.role)
	}

	return nil
}
