package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"chat_gateway/internal/auth"
	"chat_gateway/internal/config"
	"chat_gateway/internal/models"
	"chat_gateway/internal/storage"
)

// Bootstrap tool: creates a user directly in the Postgres store. Only useful
// for database-backed deployments; the in-memory store registers over HTTP.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		fmt.Fprintln(os.Stderr, "ERROR: DATABASE_URL must be set")
		os.Exit(1)
	}

	username := os.Getenv("BOOTSTRAP_USERNAME")
	email := os.Getenv("BOOTSTRAP_EMAIL")
	password := os.Getenv("BOOTSTRAP_PASSWORD")
	if username == "" || email == "" || password == "" {
		fmt.Fprintln(os.Stderr, "ERROR: BOOTSTRAP_USERNAME, BOOTSTRAP_EMAIL and BOOTSTRAP_PASSWORD must be set")
		os.Exit(1)
	}
	if !strings.Contains(email, "@") {
		fmt.Fprintf(os.Stderr, "ERROR: Invalid email format: %s\n", email)
		os.Exit(1)
	}
	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "ERROR: Password must be at least 8 characters long")
		os.Exit(1)
	}

	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: hash,
		Credits:      cfg.StartingCredits,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := storage.NewUserRepository(db).Create(ctx, user); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to create user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created user %s (%s) with %d credits\n", user.Username, user.ID, user.Credits)
}
