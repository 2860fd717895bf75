// FinPlan - AI Personal Finance Planner Server
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

	"github.com/ashureev/finplan/internal/agent"
	"github.com/ashureev/finplan/internal/api"
	"github.com/ashureev/finplan/internal/config"
	"github.com/ashureev/finplan/internal/identity"
	"github.com/ashureev/finplan/internal/metrics"
	"github.com/ashureev/finplan/internal/middleware"
	"github.com/ashureev/finplan/internal/platform"
	"github.com/ashureev/finplan/internal/session"
	"github.com/ashureev/finplan/internal/speech"
	"github.com/ashureev/finplan/internal/store"
	"github.com/ashureev/finplan/web"
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

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "chat_model", cfg.Agent.ChatModel)

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

	// Agents and recognizers are built per session from the keys the user
	// enters; nothing provider-specific is created here.
	sessions := session.NewStore(cfg.SessionTTL, session.Deps{
		Agents: agent.NewOpenAIFactory(cfg.Agent, logger),
		Recognizers: func(chatAPIKey string) speech.Recognizer {
			return speech.NewWhisperRecognizer(chatAPIKey, cfg.Agent.OpenAIBaseURL, cfg.Speech.TranscriptionModel)
		},
		HistoryDepth: cfg.Agent.HistoryDepth,
		PlanTimeout:  cfg.PlanTimeout,
		SpeechWait:   cfg.Speech.WaitTimeout,
		Logger:       logger,
	})
	defer sessions.Flush()

	platforms := platform.NewService(repo, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration)
	defer limiter.Close()
	limit := middleware.RateLimit(limiter, func(r *http.Request) string {
		return identity.SessionIDFromContext(r.Context())
	})

	healthHandler := api.NewHealthHandler(repo, sessions)
	sessionHandler := api.NewSessionHandler(sessions, api.SessionHandlerConfig{
		MaxRequestBodySize: cfg.SSE.MaxRequestBodySize,
		KeepaliveInterval:  cfg.SSE.KeepaliveInterval,
		IsDevelopment:      cfg.IsDevelopment(),
	})
	platformHandler := api.NewPlatformHandler(platforms, cfg.SSE.MaxRequestBodySize)
	recordHandler := api.NewRecordHandler(sessions, cfg.Speech, cfg.FrontendURL, cfg.IsDevelopment())

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(cfg.IsDevelopment()))

		sessionHandler.RegisterRoutes(r, limit)
		platformHandler.RegisterRoutes(r, limit)
		r.Get("/ws/session/record/{field}", recordHandler.ServeHTTP)

		r.Handle("/*", web.SPAHandler())
	})

	// Plan streams hold the response open, so there is no write timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	platform.StartRetentionWorker(ctx, repo, cfg.RequestRetention)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

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
