// Career Dojo - Professional role-play simulation server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/okonev/careerdojo/internal/ai"
	"github.com/okonev/careerdojo/internal/api"
	"github.com/okonev/careerdojo/internal/config"
	"github.com/okonev/careerdojo/internal/dojo"
	"github.com/okonev/careerdojo/internal/events"
	"github.com/okonev/careerdojo/internal/identity"
	"github.com/okonev/careerdojo/internal/middleware"
	"github.com/okonev/careerdojo/internal/store"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Assemble the generation failover chain and the orchestrator.
	router := ai.BuildChain(ctx, ai.ChainConfig{
		GroqKeys:   cfg.GroqAPIKeys,
		OpenAIKeys: cfg.OpenAIAPIKeys,
		GeminiKeys: cfg.GeminiAPIKeys,
	})
	gen := ai.NewService(router)

	hub := events.NewHub()
	svc := dojo.NewService(repo, gen, hub)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo)
	dojoHandler := api.NewDojoHandler(baseHandler, svc)
	wsHandler := events.NewWebSocketHandler(repo, hub, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	dojoHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/dojo", wsHandler.ServeHTTP)

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // generation calls may block on slow providers
		IdleTimeout:  120 * time.Second,
	}

	// Start abandonment janitor.
	dojo.StartJanitor(ctx, repo, hub, cfg.SessionTTL)
	slog.Info("Session janitor started", "session_ttl", cfg.SessionTTL)

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
