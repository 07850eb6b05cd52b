package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/casedesk/casedesk/internal/bootstrap"
	"github.com/casedesk/casedesk/internal/chat"
	"github.com/casedesk/casedesk/internal/config"
	"github.com/casedesk/casedesk/internal/observability"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup runs before the process exits.
func run() int {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		return 1
	}
	cfg, err := config.LoadFromEnv("casedesk-chat")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := chat.Options{In: os.Stdin, Out: os.Stdout, Logger: logger}
	if err := cfg.AI.RequireAPIKey(); err != nil {
		opts.CredentialErr = err
	} else {
		runtime, err := bootstrap.NewRuntime(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "initialize query relay: %v\n", err)
			return 1
		}
		defer func() { _ = runtime.Close() }()

		histories, err := bootstrap.NewHistories(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "initialize history: %v\n", err)
			return 1
		}
		defer func() { _ = histories.Close() }()

		sessionID := "terminal-" + uuid.NewString()
		logger.Debug("chat session started", slog.String("session_id", sessionID))
		opts.Relay = runtime.Relay
		opts.History = histories.ForSession(sessionID)
	}

	session, err := chat.NewSession(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start chat: %v\n", err)
		return 1
	}
	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return 1
	}
	return 0
}
