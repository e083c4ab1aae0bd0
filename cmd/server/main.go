// Mordspiel - Murder Mystery Session Orchestrator
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fweigel/mordspiel/internal/api"
	"github.com/fweigel/mordspiel/internal/config"
	"github.com/fweigel/mordspiel/internal/game"
	"github.com/fweigel/mordspiel/internal/genclient"
	"github.com/fweigel/mordspiel/internal/identity"
	"github.com/fweigel/mordspiel/internal/middleware"
	"github.com/fweigel/mordspiel/internal/progress"
	"github.com/fweigel/mordspiel/internal/reaper"
	"github.com/fweigel/mordspiel/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	gen := genclient.NewHTTPClient(genclient.HTTPClientConfig{
		BaseURL:         cfg.AIServiceURL,
		GenerateTimeout: cfg.GenerateTimeout,
		RequestTimeout:  cfg.RequestTimeout,
	}, logger)

	if err := gen.Health(context.Background()); err != nil {
		// The AI service may come up later; the orchestrator still serves
		// replay and state reads meanwhile.
		slog.Warn("AI service not reachable at startup", "url", cfg.AIServiceURL, "error", err)
	} else {
		slog.Info("AI service connected", "url", cfg.AIServiceURL)
	}

	// Initialize services.
	broker := progress.NewBroker()
	orchestrator := game.NewService(repo, gen, cfg.SessionTTL)

	// Initialize handlers.
	gameHandler := api.NewGameHandler(orchestrator, cfg.Debug)
	progressHandler := api.NewProgressHandler(broker)
	healthHandler := api.NewHealthHandler(repo, gen)
	wsHandler := progress.NewWebSocketHandler(broker, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(corsOrigins(cfg)))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	// Public routes.
	healthHandler.RegisterHealth(r)
	gameHandler.RegisterRoutes(r)

	// Called by the generation pipeline, not by browsers.
	progressHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/progress", wsHandler.ServeHTTP)

	// Generation responses take tens of seconds, so the write timeout has
	// to cover a full scenario run plus response encoding.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.GenerateTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the session reaper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reaper.StartWorker(ctx, repo, cfg.ReapInterval)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func corsOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
