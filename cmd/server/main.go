// Package main is the entrypoint for the Kontrategy API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kontrategy/kontrategy-api/internal/ai"
	"github.com/kontrategy/kontrategy-api/internal/analysis"
	"github.com/kontrategy/kontrategy-api/internal/api"
	"github.com/kontrategy/kontrategy-api/internal/api/handler"
	"github.com/kontrategy/kontrategy-api/internal/apify"
	"github.com/kontrategy/kontrategy-api/internal/cache"
	"github.com/kontrategy/kontrategy-api/internal/config"
	"github.com/kontrategy/kontrategy-api/internal/jobs"
	"github.com/kontrategy/kontrategy-api/internal/metrics"
	"github.com/kontrategy/kontrategy-api/internal/ratelimit"
	"github.com/kontrategy/kontrategy-api/internal/store"
)

const shutdownTimeout = 30 * time.Second

var logLevel = new(slog.LevelVar)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logLevel.Set(cfg.Server.LogLevel)
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Redis
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 3. Wire components
	a, err := newApp(cfg, redisCache)
	if err != nil {
		return err
	}
	a.executor.Start(context.Background())

	// 4. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout. The HTTP server stops first so no new
	// jobs arrive while the executor drains.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	if err := a.executor.Shutdown(shutdownCtx); err != nil {
		slog.Warn("job executor did not drain before deadline", "error", err)
	}

	if serveErr != nil {
		return serveErr
	}
	slog.Info("server stopped gracefully")
	return nil
}

type app struct {
	router   http.Handler
	executor *jobs.Executor
}

// newApp builds every component on top of an existing cache connection.
func newApp(cfg *config.Config, c cache.Cache) (*app, error) {
	scorer, err := ai.NewProvider(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", scorer.Name(), "model", scorer.Model())

	jobStore := store.NewRedisStore(c, cfg.Jobs.TTL)
	limiter := ratelimit.New(c, cfg.RateLimit.Max, cfg.RateLimit.Window)

	tasks := apify.NewHTTPClient(apify.Config{
		BaseURL:           cfg.Apify.BaseURL,
		Token:             cfg.Apify.Token,
		ProfileActor:      cfg.Apify.ProfileActor,
		PostsActor:        cfg.Apify.PostsActor,
		PollInterval:      cfg.Apify.PollInterval,
		HTTPTimeout:       cfg.Apify.HTTPTimeout,
		RequestsPerSecond: cfg.Apify.RequestsPerSecond,
	})

	pipeline := analysis.NewPipeline(tasks, ai.NewService(scorer, cfg.AI.InferenceTimeout), analysis.Config{
		PostsLimit:  cfg.Analysis.PostsLimit,
		MaxImages:   cfg.Analysis.MaxImages,
		TaskTimeout: cfg.Apify.PollTimeout,
	})

	executor := jobs.NewExecutor(jobStore, limiter, pipeline, jobs.Config{
		Workers:    cfg.Jobs.Workers,
		QueueDepth: cfg.Jobs.QueueDepth,
		Timeout:    cfg.Jobs.Timeout,
	})

	router := api.NewRouter(api.Dependencies{
		AllowedOrigins:        cfg.Server.CORSAllowedOrigins,
		TrustForwardedHeaders: cfg.Server.TrustForwardedHeaders,
		RootHandler:           handler.Root,
		HealthHandler:         handler.NewHealthHandler(jobStore),
		MetricsHandler:        metrics.Handler(),
		StartAnalysis:         handler.NewStartAnalysisHandler(executor),
		AnalysisStatus:        handler.NewJobStatusHandler(jobStore),
	})

	return &app{router: router, executor: executor}, nil
}
