// Command purge-sessions deletes expired game sessions and their messages.
// It runs the same sweep as the in-process reaper, for use as a cron job or
// a one-off cleanup against a database the server is not currently holding.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/fweigel/mordspiel/internal/config"
	"github.com/fweigel/mordspiel/internal/reaper"
	"github.com/fweigel/mordspiel/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close database", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := reaper.RunOnce(ctx, repo)
	if err != nil {
		slog.Error("Purge failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Purge complete", "deleted", deleted)
}
