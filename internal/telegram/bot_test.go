package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/casedesk/casedesk/internal/conversation"
)

func TestHandleMessageRepliesWithAnswerAndRecordsHistory(t *testing.T) {
	sender := &fakeSender{}
	asker := &fakeAsker{answer: "12 cases."}
	sessions := conversation.NewSessions(func(int64) conversation.History { return conversation.NewMemory() })
	bot := newTestBot(t, sender, asker, sessions, nil)

	bot.HandleMessage(context.Background(), textMessage(10, "How many cases are in office X?"))

	if len(asker.questions) != 1 || asker.questions[0] != "How many cases are in office X?" {
		t.Fatalf("questions = %#v", asker.questions)
	}
	if len(sender.sent) != 1 || sender.sent[0].Text != "12 cases." || sender.sent[0].ChatID != 10 {
		t.Fatalf("sent = %#v", sender.sent)
	}
	entries, _ := sessions.Get(10).Entries(context.Background())
	if len(entries) != 2 || entries[0].Speaker != conversation.SpeakerUser || entries[1].Text != "12 cases." {
		t.Fatalf("entries = %#v", entries)
	}
	other, _ := sessions.Get(11).Entries(context.Background())
	if len(other) != 0 {
		t.Fatalf("history leaked into another chat: %#v", other)
	}
}

func TestHistoryCommandRendersConversation(t *testing.T) {
	sender := &fakeSender{}
	bot := newTestBot(t, sender, &fakeAsker{answer: "7."}, nil, nil)

	bot.HandleMessage(context.Background(), commandMessage(5, "/history"))
	bot.HandleMessage(context.Background(), textMessage(5, "Cases in office Y?"))
	bot.HandleMessage(context.Background(), commandMessage(5, "/history"))

	if len(sender.sent) != 3 {
		t.Fatalf("sent = %#v", sender.sent)
	}
	if sender.sent[0].Text != "No questions yet." {
		t.Fatalf("empty history reply = %q", sender.sent[0].Text)
	}
	if sender.sent[2].Text != "User: Cases in office Y?\nBot: 7." {
		t.Fatalf("history reply = %q", sender.sent[2].Text)
	}
}

func TestHandleMessageAgentFailure(t *testing.T) {
	sender := &fakeSender{}
	sessions := conversation.NewSessions(func(int64) conversation.History { return conversation.NewMemory() })
	bot := newTestBot(t, sender, &fakeAsker{err: errors.New("model down")}, sessions, nil)

	bot.HandleMessage(context.Background(), textMessage(1, "q"))

	if len(sender.sent) != 1 || !strings.HasPrefix(sender.sent[0].Text, "Sorry") {
		t.Fatalf("sent = %#v", sender.sent)
	}
	entries, _ := sessions.Get(1).Entries(context.Background())
	if len(entries) != 0 {
		t.Fatalf("failed exchange recorded: %#v", entries)
	}
}

func TestHandleMessageRespectsAllowlist(t *testing.T) {
	sender := &fakeSender{}
	asker := &fakeAsker{answer: "ok"}
	bot := newTestBot(t, sender, asker, nil, []int64{42})

	bot.HandleMessage(context.Background(), textMessage(7, "q"))
	bot.HandleMessage(context.Background(), textMessage(42, "q"))

	if len(asker.questions) != 1 {
		t.Fatalf("relay calls = %d, want 1", len(asker.questions))
	}
	if len(sender.sent) != 1 || sender.sent[0].ChatID != 42 || sender.sent[0].Text != "ok" {
		t.Fatalf("sent = %#v", sender.sent)
	}
}

func TestRunStopsWhenUpdatesClose(t *testing.T) {
	sender := &fakeSender{}
	asker := &fakeAsker{answer: "ok"}
	bot := newTestBot(t, sender, asker, nil, nil)

	updates := make(chan tgbotapi.Update, 2)
	updates <- tgbotapi.Update{Message: textMessage(1, "a")}
	updates <- tgbotapi.Update{}
	close(updates)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := bot.Run(ctx, updates); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(asker.questions) != 1 {
		t.Fatalf("relay calls = %d", len(asker.questions))
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	bot := newTestBot(t, &fakeSender{}, &fakeAsker{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := bot.Run(ctx, make(chan tgbotapi.Update)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestSplitMessage(t *testing.T) {
	if parts := splitMessage("short", 10); len(parts) != 1 || parts[0] != "short" {
		t.Fatalf("parts = %#v", parts)
	}
	parts := splitMessage("aaaa\nbbbb\ncccc", 10)
	if len(parts) != 2 || parts[0] != "aaaa\nbbbb\n" || parts[1] != "cccc" {
		t.Fatalf("parts = %#v", parts)
	}
	long := strings.Repeat("x", 25)
	parts = splitMessage(long, 10)
	if len(parts) != 3 || strings.Join(parts, "") != long {
		t.Fatalf("parts = %#v", parts)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(map[string]string{
		"CASEDESK_TELEGRAM_BOT_TOKEN":     "123:abc",
		"CASEDESK_TELEGRAM_ALLOWED_CHATS": "1,2",
	})
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Token != "123:abc" || len(cfg.AllowedChats) != 2 || cfg.AllowedChats[1] != 2 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.UpdateTimeout != 60 || cfg.Debug {
		t.Fatalf("defaults = %+v", cfg)
	}

	if _, err := LoadConfig(map[string]string{}); err == nil {
		t.Fatal("expected missing token error")
	}
	if _, err := LoadConfig(map[string]string{"CASEDESK_TELEGRAM_BOT_TOKEN": "  "}); err == nil {
		t.Fatal("expected empty token error")
	}
	if _, err := LoadConfig(map[string]string{"CASEDESK_TELEGRAM_BOT_TOKEN": "t", "CASEDESK_TELEGRAM_UPDATE_TIMEOUT": "0"}); err == nil {
		t.Fatal("expected timeout validation error")
	}
}

type sentMessage struct {
	ChatID int64
	Text   string
}

type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, errors.New("unexpected chattable")
	}
	f.sent = append(f.sent, sentMessage{ChatID: msg.ChatID, Text: msg.Text})
	return tgbotapi.Message{}, nil
}

type fakeAsker struct {
	answer    string
	err       error
	questions []string
}

func (f *fakeAsker) Ask(_ context.Context, question string) (string, error) {
	f.questions = append(f.questions, question)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func newTestBot(t *testing.T, sender Sender, asker Asker, sessions *conversation.Sessions[int64], allowed []int64) *Bot {
	t.Helper()
	bot, err := NewBot(sender, asker, sessions, allowed, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewBot() error = %v", err)
	}
	return bot
}

func textMessage(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
}

func commandMessage(chatID int64, text string) *tgbotapi.Message {
	msg := textMessage(chatID, text)
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	return msg
}
