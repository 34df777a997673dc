// DeepCode - AI coding assistant chat server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/deepcode-chat/internal/api"
	"github.com/ashureev/deepcode-chat/internal/archive"
	"github.com/ashureev/deepcode-chat/internal/chat"
	"github.com/ashureev/deepcode-chat/internal/config"
	"github.com/ashureev/deepcode-chat/internal/engine"
	"github.com/ashureev/deepcode-chat/internal/export"
	"github.com/ashureev/deepcode-chat/internal/identity"
	"github.com/ashureev/deepcode-chat/internal/middleware"
	"github.com/ashureev/deepcode-chat/internal/progress"
	"github.com/ashureev/deepcode-chat/internal/reaper"
	"github.com/ashureev/deepcode-chat/internal/render"
	"github.com/ashureev/deepcode-chat/internal/store"
	"github.com/ashureev/deepcode-chat/web"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "engine", cfg.EngineMode())

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

	archives, err := archive.NewWriter(cfg.ArchiveDir)
	if err != nil {
		slog.Error("Failed to initialize archive directory", "error", err)
		os.Exit(1)
	}
	slog.Info("Archive directory ready", "dir", archives.Dir())

	eng, err := engine.New(cfg, logger)
	if err != nil {
		slog.Warn("Engine unavailable, falling back to offline planning", "mode", cfg.EngineMode(), "error", err)
		eng = engine.NewOffline()
	}
	defer eng.Close()

	conversationLogger, err := chat.NewConversationLogger(chat.ConversationLogConfig{
		Enabled:       cfg.ConversationLog.Enabled,
		Dir:           cfg.ConversationLog.Dir,
		GlobalEnabled: cfg.ConversationLog.GlobalEnabled,
		GlobalPath:    cfg.ConversationLog.GlobalPath,
		QueueSize:     cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Warn("failed to close conversation logger", "error", closeErr)
		}
	}()

	// Initialize services.
	hub := progress.NewHub()
	chatService := chat.NewService(repo, eng, archives, hub, conversationLogger, chat.Options{
		MinRequirementsLength: cfg.MinRequirementsLength,
		PlanTimeout:           cfg.Engine.PlanTimeout,
		PipelineTimeout:       cfg.Engine.PipelineTimeout,
		EnableIndexing:        cfg.Engine.EnableIndexing,
	})

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Stop()

	// Initialize handlers.
	chatHandler := api.NewChatHandler(chatService, render.New(), limiter, cfg.MaxRequestBodySize)
	pageHandler := api.NewPageHandler(cfg.EngineMode(), export.Formats())
	healthHandler := api.NewHealthHandler(repo, eng)
	wsHandler := progress.NewHandler(hub, websocketOrigins(cfg))

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(corsOrigins(cfg), identity.SessionHeaderName))
	r.Use(identity.Middleware(repo, cfg.IsDevelopment()))

	r.Route("/api", func(r chi.Router) {
		healthHandler.RegisterHealth(r)
		pageHandler.Register(r)
		chatHandler.Register(r)
	})

	// WebSocket endpoint.
	r.Get("/ws/progress", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Code generation can run for PipelineTimeout inside one request.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Engine.PipelineTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reaper.Start(ctx, repo, chatService, cfg.SessionTTL, reaper.DefaultInterval, hub.CloseSession)

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

// websocketOrigins returns extra origin patterns for the progress socket.
// Same-origin connections are always accepted.
func websocketOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" {
		return nil
	}
	u, err := url.Parse(cfg.FrontendURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
