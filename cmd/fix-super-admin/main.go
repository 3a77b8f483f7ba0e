package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/ept-backend/internal/config"
	"github.com/stemsi/ept-backend/internal/database"
	"github.com/stemsi/ept-backend/internal/logger"
	"github.com/stemsi/ept-backend/internal/repository"
	"github.com/stemsi/ept-backend/internal/service"
)

func main() {
	email := flag.String("email", "", "Email of the admin to promote")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if *email == "" {
		fmt.Println("Usage: fix-super-admin -email admin@example.com")
		return
	}

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	adminService := service.NewAdminService(repository.NewAdminRepository(pool))

	fmt.Println("=== Fix Super Admin Permissions ===")
	fmt.Printf("This command will assign ALL available permissions to %s.\n", *email)

	admin, err := adminService.GrantAllPermissions(ctx, strings.ToLower(strings.TrimSpace(*email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			fmt.Printf("Error: No admin with email %s\n", *email)
			return
		}
		log.Fatal().Err(err).Msg("Failed to grant permissions")
	}

	fmt.Printf("\nSuccess! %s (ID %d) now has full access: %s\n", admin.Email, admin.ID, strings.Join(admin.Permissions, ", "))
}
