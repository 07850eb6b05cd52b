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

	"github.com/casedesk/casedesk/internal/api"
	"github.com/casedesk/casedesk/internal/api/uistatic"
	"github.com/casedesk/casedesk/internal/auth"
	"github.com/casedesk/casedesk/internal/bootstrap"
	"github.com/casedesk/casedesk/internal/config"
	"github.com/casedesk/casedesk/internal/observability"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", slog.Any("error", err))
		return 1
	}
	cfg, err := config.LoadFromEnv("casedesk-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return 1
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	runtime, err := bootstrap.NewRuntime(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize query relay", slog.Any("error", err))
		return 1
	}
	defer func() { _ = runtime.Close() }()

	deps := api.Dependencies{
		Logger: logger,
		Relay:  runtime.Relay,
		UI:     uistatic.Handler(),
		Readiness: []api.ReadinessCheck{
			api.CheckAPIKey(cfg),
			{Name: "case_store", Probe: runtime.Engine.HealthCheck},
			api.CheckObjectStoreConfig(cfg),
		},
		ReadinessTimeout: time.Second,
	}
	if cfg.Auth.Required {
		keys, err := auth.ParseStaticKeys(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			return 1
		}
		deps.Keys = keys
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("store_driver", cfg.Store.Driver),
			slog.String("model", cfg.AI.Model),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		return 1
	}
	return 0
}
