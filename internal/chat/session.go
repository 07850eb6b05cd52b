package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/casedesk/casedesk/internal/conversation"
)

const (
	prompt         = "> "
	maxLineBytes   = 1 << 20
	missingKeyHelp = "Set OPENAI_API_KEY (or CASEDESK_AI_API_KEY) and start the chat again."
)

type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

type Options struct {
	Relay   Asker
	History conversation.History
	In      io.Reader
	Out     io.Writer
	Logger  *slog.Logger
	// CredentialErr, when set, is shown instead of starting the session.
	CredentialErr error
}

// Session is one interactive conversation on a terminal. Questions are
// handled one at a time.
type Session struct {
	relay         Asker
	history       conversation.History
	in            io.Reader
	out           io.Writer
	logger        *slog.Logger
	credentialErr error
}

func NewSession(opts Options) (*Session, error) {
	if opts.CredentialErr == nil && opts.Relay == nil {
		return nil, fmt.Errorf("relay is required")
	}
	if opts.In == nil || opts.Out == nil {
		return nil, fmt.Errorf("input and output are required")
	}
	history := opts.History
	if history == nil {
		history = conversation.NewMemory()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		relay:         opts.Relay,
		history:       history,
		in:            opts.In,
		out:           opts.Out,
		logger:        logger,
		credentialErr: opts.CredentialErr,
	}, nil
}

// Run reads questions until EOF, "exit" or "quit". A missing credential ends
// the session before any question is read.
func (s *Session) Run(ctx context.Context) error {
	if s.credentialErr != nil {
		fmt.Fprintf(s.out, "Error: %v\n%s\n", s.credentialErr, missingKeyHelp)
		return s.credentialErr
	}

	fmt.Fprintln(s.out, "Ask a question about the case register. Type exit to leave.")
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(s.out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(question) {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := s.interact(ctx, question); err != nil {
			return err
		}
	}
}

func (s *Session) interact(ctx context.Context, question string) error {
	answer, err := s.relay.Ask(ctx, question)
	if err != nil {
		s.logger.ErrorContext(ctx, "query agent failed", slog.Any("error", err))
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return nil
	}
	if err := s.history.Append(ctx, question, answer); err != nil {
		return fmt.Errorf("record conversation: %w", err)
	}
	return s.render(ctx)
}

func (s *Session) render(ctx context.Context) error {
	entries, err := s.history.Entries(ctx)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	fmt.Fprintln(s.out)
	for _, entry := range entries {
		fmt.Fprintf(s.out, "%s: %s\n", entry.Speaker, entry.Text)
	}
	fmt.Fprintln(s.out)
	return nil
}
