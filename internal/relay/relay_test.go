package relay

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/casedesk/casedesk/internal/schema"
)

func TestBuildPromptFramesDictionaryWithBlankLines(t *testing.T) {
	want := "Refer to the following data dictionary for context:\n\n\n" +
		schema.Context() + "\n\n\nHow many cases are in office X?"
	if got := BuildPrompt("How many cases are in office X?"); got != want {
		t.Fatalf("BuildPrompt() = %q, want %q", got, want)
	}
}

func TestBuildPromptKeepsSchemaThenQuestion(t *testing.T) {
	questions := []string{
		"How many cases are in office X?",
		"  leading and trailing spaces  ",
		"multi\nline\nquestion",
		"أعط عدد الحالات",
	}
	for _, question := range questions {
		prompt := BuildPrompt(question)
		schemaAt := strings.Index(prompt, schema.Context())
		if schemaAt < 0 {
			t.Fatalf("prompt for %q does not contain schema context verbatim", question)
		}
		if !strings.HasSuffix(prompt, question) {
			t.Fatalf("prompt for %q does not end with the question", question)
		}
		if schemaAt+len(schema.Context()) > len(prompt)-len(question) {
			t.Fatalf("schema context is not placed before question %q", question)
		}
		if !strings.HasPrefix(prompt, "Refer to the following data dictionary for context:") {
			t.Fatalf("prompt prefix = %q", prompt[:40])
		}
	}
}

func TestAskReturnsAgentAnswerUnmodified(t *testing.T) {
	agent := &fakeAgent{answer: "  There are 12 cases in office X.\n"}
	r, err := New(agent)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := r.Ask(context.Background(), "How many cases are in office X?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if got != agent.answer {
		t.Fatalf("Ask() = %q, want %q", got, agent.answer)
	}
	if len(agent.prompts) != 1 || agent.prompts[0] != BuildPrompt("How many cases are in office X?") {
		t.Fatalf("prompts = %#v", agent.prompts)
	}
}

func TestAskDoesNotCache(t *testing.T) {
	agent := &fakeAgent{answer: "42"}
	r, err := New(agent)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := r.Ask(context.Background(), "same question"); err != nil {
			t.Fatalf("Ask() error = %v", err)
		}
	}
	if len(agent.prompts) != 2 {
		t.Fatalf("agent calls = %d, want 2", len(agent.prompts))
	}
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	agent := &fakeAgent{answer: "unused"}
	r, err := New(agent)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, question := range []string{"", "   ", "\n\t"} {
		_, err := r.Ask(context.Background(), question)
		if !errors.Is(err, ErrEmptyQuestion) {
			t.Fatalf("Ask(%q) error = %v, want ErrEmptyQuestion", question, err)
		}
	}
	if len(agent.prompts) != 0 {
		t.Fatalf("agent called %d times for blank input", len(agent.prompts))
	}
}

func TestAskPropagatesAgentError(t *testing.T) {
	boom := errors.New("upstream 401")
	r, err := New(&fakeAgent{err: boom})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = r.Ask(context.Background(), "anything")
	if !errors.Is(err, boom) {
		t.Fatalf("Ask() error = %v, want wrapped %v", err, boom)
	}
}

func TestNewRequiresAgent(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil agent")
	}
}

type fakeAgent struct {
	prompts []string
	answer  string
	err     error
}

func (f *fakeAgent) Answer(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}
