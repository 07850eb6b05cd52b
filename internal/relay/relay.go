package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/casedesk/casedesk/internal/observability"
	"github.com/casedesk/casedesk/internal/schema"
)

// The dictionary is framed by blank lines on both sides, three newlines in all.
const preamble = "Refer to the following data dictionary for context:\n\n\n"

var ErrEmptyQuestion = errors.New("question is required")

// Agent answers a fully assembled prompt. Implementations may run arbitrary
// read queries against the case store.
type Agent interface {
	Answer(ctx context.Context, prompt string) (string, error)
}

type Relay struct {
	agent Agent
}

func New(agent Agent) (*Relay, error) {
	if agent == nil {
		return nil, fmt.Errorf("agent is required")
	}
	return &Relay{agent: agent}, nil
}

// BuildPrompt places the data dictionary ahead of the unmodified question.
func BuildPrompt(question string) string {
	return preamble + schema.Context() + "\n\n\n" + question
}

// Ask forwards one question to the agent and returns its answer as is.
// Every call reaches the agent; nothing is cached.
func (r *Relay) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		observability.ObserveRelay(observability.RelayOutcomeRejected, 0)
		return "", ErrEmptyQuestion
	}

	start := time.Now()
	answer, err := r.agent.Answer(ctx, BuildPrompt(question))
	if err != nil {
		observability.ObserveRelay(observability.RelayOutcomeFailed, time.Since(start))
		return "", fmt.Errorf("query agent: %w", err)
	}
	observability.ObserveRelay(observability.RelayOutcomeAnswered, time.Since(start))
	return answer, nil
}
