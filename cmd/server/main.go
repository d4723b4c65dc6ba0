// Package main is the entrypoint for the OpenShorts API server.
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

	"github.com/openshorts/openshorts/internal/api"
	"github.com/openshorts/openshorts/internal/api/handler"
	mw "github.com/openshorts/openshorts/internal/api/middleware"
	"github.com/openshorts/openshorts/internal/api/response"
	"github.com/openshorts/openshorts/internal/config"
	"github.com/openshorts/openshorts/internal/janitor"
	"github.com/openshorts/openshorts/internal/orchestrator"
	"github.com/openshorts/openshorts/internal/socialpost"
	"github.com/openshorts/openshorts/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env, "max_concurrent", cfg.Jobs.MaxConcurrent)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to the job store
	jobStore, err := store.NewRedisStore(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis store: %w", err)
	}
	defer jobStore.Close()

	if err := jobStore.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 3. Start the orchestrator
	orch := orchestrator.New(orchestrator.Config{
		MaxConcurrent: int64(cfg.Jobs.MaxConcurrent),
		PollInterval:  cfg.Jobs.PollInterval,
		RunnerCommand: cfg.Jobs.RunnerCommand,
		OutputDir:     cfg.Jobs.OutputDir,
		SecretEnv:     cfg.Jobs.SecretEnv,
	}, jobStore, slog.Default())
	go orch.Run(ctx)

	// 4. Start the file janitor
	sweeper := janitor.New(janitor.Config{
		OutputDir: cfg.Jobs.OutputDir,
		UploadDir: cfg.Jobs.UploadDir,
		Retention: cfg.Jobs.FileRetention,
		Interval:  cfg.Jobs.SweepInterval,
	}, slog.Default())
	go sweeper.Run(ctx)

	// 5. Social posting client
	social := socialpost.NewClient(cfg.Social.BaseURL, cfg.Social.Timeout)

	// 6. Build router with dependencies
	submitCfg := handler.SubmitConfig{
		UploadDir:      cfg.Jobs.UploadDir,
		MaxUploadBytes: int64(cfg.Jobs.MaxUploadMB) << 20,
		FallbackSecret: os.Getenv(cfg.Jobs.SecretEnv),
	}

	deps := api.Dependencies{
		RateLimit: mw.NewRateLimit(jobStore, cfg.Server.RateLimitPerMin),

		HealthHandler:         healthHandler(jobStore),
		SubmitHandler:         handler.NewSubmitHandler(orch, submitCfg),
		StatusHandler:         handler.NewStatusHandler(orch),
		ResultHandler:         handler.NewResultHandler(orch),
		SocialPostHandler:     handler.NewSocialPostHandler(orch, social),
		SocialProfilesHandler: handler.NewSocialProfilesHandler(social),

		VideoDir: cfg.Jobs.OutputDir,
	}

	router := api.NewRouter(deps)

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks job store connectivity.
func healthHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"store": "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["store"] = "degraded"
		}

		if checks["store"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
