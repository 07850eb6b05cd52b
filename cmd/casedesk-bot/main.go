package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/casedesk/casedesk/internal/bootstrap"
	"github.com/casedesk/casedesk/internal/config"
	"github.com/casedesk/casedesk/internal/conversation"
	"github.com/casedesk/casedesk/internal/observability"
	"github.com/casedesk/casedesk/internal/telegram"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup runs before the process exits.
func run() int {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", slog.Any("error", err))
		return 1
	}
	cfg, err := config.LoadFromEnv("casedesk-bot")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return 1
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	if err := cfg.AI.RequireAPIKey(); err != nil {
		logger.Error("bot cannot start without a model credential", slog.Any("error", err))
		return 1
	}
	botCfg, err := telegram.LoadConfig(nil)
	if err != nil {
		logger.Error("failed to load telegram config", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runtime, err := bootstrap.NewRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize query relay", slog.Any("error", err))
		return 1
	}
	defer func() { _ = runtime.Close() }()

	histories, err := bootstrap.NewHistories(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize history", slog.Any("error", err))
		return 1
	}
	defer func() { _ = histories.Close() }()
	sessions := conversation.NewSessions(func(chatID int64) conversation.History {
		return histories.ForSession(fmt.Sprintf("telegram-%d", chatID))
	})

	api, err := telegram.Connect(botCfg)
	if err != nil {
		logger.Error("failed to connect to telegram", slog.Any("error", err))
		return 1
	}
	bot, err := telegram.NewBot(api, runtime.Relay, sessions, botCfg.AllowedChats, logger)
	if err != nil {
		logger.Error("failed to initialize bot", slog.Any("error", err))
		return 1
	}

	update := tgbotapi.NewUpdate(0)
	update.Timeout = botCfg.UpdateTimeout
	updates := api.GetUpdatesChan(update)
	defer api.StopReceivingUpdates()

	logger.Info("telegram bot started", slog.String("username", api.Self.UserName))
	if err := bot.Run(ctx, updates); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("telegram bot stopped with error", slog.Any("error", err))
		return 1
	}
	logger.Info("telegram bot stopped")
	return 0
}
