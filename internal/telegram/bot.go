package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/casedesk/casedesk/internal/conversation"
	"github.com/casedesk/casedesk/internal/relay"
)

const (
	startCmd   = "start"
	historyCmd = "history"

	// Telegram rejects longer messages.
	maxMessageRunes = 4096
)

type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Sender is the part of *tgbotapi.BotAPI the bot replies through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot relays chat messages to the query relay. Each chat has its own
// history; updates are handled one at a time.
type Bot struct {
	sender   Sender
	relay    Asker
	sessions *conversation.Sessions[int64]
	allowed  map[int64]struct{}
	logger   *slog.Logger
}

func NewBot(sender Sender, asker Asker, sessions *conversation.Sessions[int64], allowedChats []int64, logger *slog.Logger) (*Bot, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if asker == nil {
		return nil, fmt.Errorf("relay is required")
	}
	if sessions == nil {
		sessions = conversation.NewSessions(func(int64) conversation.History { return conversation.NewMemory() })
	}
	if logger == nil {
		logger = slog.Default()
	}
	var allowed map[int64]struct{}
	if len(allowedChats) > 0 {
		allowed = make(map[int64]struct{}, len(allowedChats))
		for _, id := range allowedChats {
			allowed[id] = struct{}{}
		}
	}
	return &Bot{sender: sender, relay: asker, sessions: sessions, allowed: allowed, logger: logger}, nil
}

// Connect logs in with the bot token.
func Connect(cfg Config) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	api.Debug = cfg.Debug
	return api, nil
}

// Run consumes updates until ctx is done or the channel closes.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				b.HandleMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	if !b.isAllowed(chatID) {
		b.logger.WarnContext(ctx, "dropped message from chat outside allowlist", slog.Int64("chat_id", chatID))
		return
	}

	switch msg.Command() {
	case startCmd:
		b.reply(ctx, chatID, "Ask me a question about the case register, for example: How many cases are in the Dubai office?")
		return
	case historyCmd:
		b.replyHistory(ctx, chatID)
		return
	}

	question := strings.TrimSpace(msg.Text)
	if question == "" {
		return
	}

	answer, err := b.relay.Ask(ctx, question)
	if err != nil {
		if errors.Is(err, relay.ErrEmptyQuestion) {
			return
		}
		b.logger.ErrorContext(ctx, "query agent failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		b.reply(ctx, chatID, "Sorry, the question could not be answered right now.")
		return
	}
	if err := b.sessions.Get(chatID).Append(ctx, question, answer); err != nil {
		b.logger.ErrorContext(ctx, "record conversation failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
	}
	b.reply(ctx, chatID, answer)
}

func (b *Bot) replyHistory(ctx context.Context, chatID int64) {
	entries, err := b.sessions.Get(chatID).Entries(ctx)
	if err != nil {
		b.logger.ErrorContext(ctx, "load conversation failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
		b.reply(ctx, chatID, "Sorry, the conversation could not be loaded.")
		return
	}
	if len(entries) == 0 {
		b.reply(ctx, chatID, "No questions yet.")
		return
	}
	var sb strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&sb, "%s: %s\n", entry.Speaker, entry.Text)
	}
	b.reply(ctx, chatID, strings.TrimSuffix(sb.String(), "\n"))
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	for _, part := range splitMessage(text, maxMessageRunes) {
		if _, err := b.sender.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			b.logger.ErrorContext(ctx, "send telegram message failed", slog.Int64("chat_id", chatID), slog.Any("error", err))
			return
		}
	}
}

func (b *Bot) isAllowed(chatID int64) bool {
	if b.allowed == nil {
		return true
	}
	_, ok := b.allowed[chatID]
	return ok
}

func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	parts := make([]string, 0, len(runes)/limit+1)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
