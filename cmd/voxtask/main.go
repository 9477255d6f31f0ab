package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/voxtask/voxtask/internal/adapter/anthropic"
	"github.com/voxtask/voxtask/internal/adapter/deepgram"
	vthttp "github.com/voxtask/voxtask/internal/adapter/http"
	"github.com/voxtask/voxtask/internal/adapter/otel"
	"github.com/voxtask/voxtask/internal/adapter/postgres"
	"github.com/voxtask/voxtask/internal/adapter/ws"
	"github.com/voxtask/voxtask/internal/config"
	"github.com/voxtask/voxtask/internal/logger"
	"github.com/voxtask/voxtask/internal/resilience"
	"github.com/voxtask/voxtask/internal/service"
	"github.com/voxtask/voxtask/internal/tools"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"model", cfg.Anthropic.Model,
		"max_iterations", cfg.Agent.MaxIterations,
	)

	ctx := context.Background()

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	shutdownOtel := otel.InitTracer(cfg.Logging.Service)
	defer func() { _ = shutdownOtel(ctx) }()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Services ---

	store := postgres.NewStore(pool)
	hub := ws.NewHub()

	registry := tools.NewRegistry(store, log, nil)
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	llmClient := anthropic.NewClient(cfg.Anthropic, breaker)

	costSvc := service.NewCostService(store, log)
	agentSvc := service.NewAgentService(store, llmClient, registry, costSvc, metrics, cfg.Agent, log)

	fluxClient := deepgram.NewClient(cfg.Deepgram)
	bridge := ws.NewBridge(fluxClient, agentSvc, cfg.Agent, log)

	// --- HTTP ---

	handlers := vthttp.NewHandlers(store, agentSvc, costSvc, hub)

	r := chi.NewRouter()

	r.Use(vthttp.CORS(cfg.Server.CORSOrigin))
	r.Use(vthttp.Logger)
	r.Use(vthttp.SecurityHeaders)
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	// WebSocket endpoints (no timeout middleware: long-lived connections)
	r.Get("/ws", hub.HandleWS)
	r.Get("/ws/agent", bridge.HandleAgent)
	r.Get("/ws/transcribe", bridge.HandleTranscribe)

	// API routes
	limiter := vthttp.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	stopSweep := limiter.StartCleanup(time.Minute, 10*time.Minute)
	defer stopSweep()

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(60 * time.Second))
		r.Use(limiter.Limit)
		vthttp.MountRoutes(r, handlers)
	})

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
