package chat

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/casedesk/casedesk/internal/config"
	"github.com/casedesk/casedesk/internal/conversation"
)

func TestRunRendersFullHistoryAfterEachQuestion(t *testing.T) {
	asker := &scriptedAsker{answers: map[string]string{
		"How many cases are in office X?": "12 cases.",
		"And in office Y?":                "7 cases.",
	}}
	history := conversation.NewMemory()
	out := &bytes.Buffer{}

	session, err := NewSession(Options{
		Relay:   asker,
		History: history,
		In:      strings.NewReader("How many cases are in office X?\n\nAnd in office Y?\n"),
		Out:     out,
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(asker.calls) != 2 {
		t.Fatalf("relay calls = %d, want 2", len(asker.calls))
	}
	entries, err := history.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	for i, entry := range entries {
		want := conversation.SpeakerUser
		if i%2 == 1 {
			want = conversation.SpeakerBot
		}
		if entry.Speaker != want {
			t.Fatalf("entry %d speaker = %q, want %q", i, entry.Speaker, want)
		}
	}

	text := out.String()
	if strings.Count(text, "User: How many cases are in office X?") != 2 {
		t.Fatalf("first question should be rendered after both turns:\n%s", text)
	}
	if strings.Count(text, "Bot: 7 cases.") != 1 {
		t.Fatalf("second answer rendered unexpectedly:\n%s", text)
	}
	last := text[strings.LastIndex(text, "User: How many"):]
	wantOrder := []string{"User: How many cases are in office X?", "Bot: 12 cases.", "User: And in office Y?", "Bot: 7 cases."}
	pos := 0
	for _, line := range wantOrder {
		idx := strings.Index(last[pos:], line)
		if idx < 0 {
			t.Fatalf("final render missing %q in order:\n%s", line, last)
		}
		pos += idx + len(line)
	}
}

func TestRunStopsOnExit(t *testing.T) {
	asker := &scriptedAsker{answers: map[string]string{"q1": "a1"}}
	session, err := NewSession(Options{
		Relay: asker,
		In:    strings.NewReader("q1\nEXIT\nq2\n"),
		Out:   &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(asker.calls) != 1 || asker.calls[0] != "q1" {
		t.Fatalf("calls = %#v", asker.calls)
	}
}

func TestRunWithMissingCredentialNeverCallsRelay(t *testing.T) {
	asker := &scriptedAsker{}
	out := &bytes.Buffer{}
	session, err := NewSession(Options{
		Relay:         asker,
		In:            strings.NewReader("How many cases?\n"),
		Out:           out,
		CredentialErr: config.ErrMissingAPIKey,
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	err = session.Run(context.Background())
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Fatalf("Run() error = %v, want ErrMissingAPIKey", err)
	}
	if len(asker.calls) != 0 {
		t.Fatalf("relay calls = %d, want 0", len(asker.calls))
	}
	if !strings.Contains(out.String(), "OPENAI_API_KEY") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunShowsAgentErrorAndContinues(t *testing.T) {
	asker := &scriptedAsker{
		answers: map[string]string{"good": "fine"},
		errs:    map[string]error{"bad": errors.New("model unavailable")},
	}
	history := conversation.NewMemory()
	out := &bytes.Buffer{}
	session, err := NewSession(Options{Relay: asker, History: history, In: strings.NewReader("bad\ngood\n"), Out: out})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := session.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "Error: model unavailable") {
		t.Fatalf("output = %q", out.String())
	}
	entries, _ := history.Entries(context.Background())
	if len(entries) != 2 || entries[0].Text != "good" {
		t.Fatalf("entries = %#v", entries)
	}
}

func TestRunReturnsHistoryFailure(t *testing.T) {
	session, err := NewSession(Options{
		Relay:   &scriptedAsker{answers: map[string]string{"q": "a"}},
		History: failingHistory{},
		In:      strings.NewReader("q\n"),
		Out:     &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	if err := session.Run(context.Background()); err == nil {
		t.Fatal("expected history error")
	}
}

func TestNewSessionValidation(t *testing.T) {
	if _, err := NewSession(Options{In: strings.NewReader(""), Out: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected relay error")
	}
	if _, err := NewSession(Options{Relay: &scriptedAsker{}}); err == nil {
		t.Fatal("expected io error")
	}
}

type scriptedAsker struct {
	answers map[string]string
	errs    map[string]error
	calls   []string
}

func (s *scriptedAsker) Ask(_ context.Context, question string) (string, error) {
	s.calls = append(s.calls, question)
	if err, ok := s.errs[question]; ok {
		return "", err
	}
	return s.answers[question], nil
}

type failingHistory struct{}

func (failingHistory) Append(context.Context, string, string) error {
	return errors.New("disk full")
}

func (failingHistory) Entries(context.Context) ([]conversation.Entry, error) {
	return nil, nil
}
