package casedeskctl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

type command struct {
	usage string
	run   func(ctx context.Context, env *runEnv, args []string) int
}

type runEnv struct {
	client *Client
	raw    bool
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

var commands map[string]command

// Filled in init: runAsk reaches writeUsage, which reads commands.
func init() {
	commands = map[string]command{
		"health": {usage: "health            GET /v1/health", run: getCommand("/v1/health")},
		"ready":  {usage: "ready             GET /v1/ready", run: getCommand("/v1/ready")},
		"ask":    {usage: "ask <question>    POST /chat", run: runAsk},
		"repl":   {usage: "repl              ask one question per stdin line", run: runREPL},
	}
}

var commandOrder = []string{"health", "ready", "ask", "repl"}

func Run(ctx context.Context, args []string, opts Options) int {
	stdout := writerOr(opts.Stdout)
	stderr := writerOr(opts.Stderr)

	fs := flag.NewFlagSet("casedeskctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("base-url", stringOr(opts.BaseURL, "http://localhost:8080"), "casedesk API base URL")
	apiKey := fs.String("api-key", opts.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(opts.Timeout, 2*time.Minute), "HTTP timeout per request")
	raw := fs.Bool("raw", false, "print JSON responses verbatim instead of the answer text")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	name := strings.TrimSpace(fs.Arg(0))
	cmd, ok := commands[name]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", name)
		writeUsage(stderr)
		return 2
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: *timeout}
	}
	env := &runEnv{
		client: &Client{BaseURL: *baseURL, APIKey: *apiKey, HTTP: httpClient},
		raw:    *raw,
		stdin:  opts.Stdin,
		stdout: stdout,
		stderr: stderr,
	}
	return cmd.run(ctx, env, fs.Args()[1:])
}

func getCommand(path string) func(context.Context, *runEnv, []string) int {
	return func(ctx context.Context, env *runEnv, _ []string) int {
		body, err := env.client.Do(ctx, http.MethodGet, path, nil)
		if err != nil {
			_, _ = fmt.Fprintf(env.stderr, "request failed: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(env.stdout, formatJSON(body))
		return 0
	}
}

func runAsk(ctx context.Context, env *runEnv, args []string) int {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		_, _ = fmt.Fprintln(env.stderr, "ask requires a question")
		writeUsage(env.stderr)
		return 2
	}
	if env.raw {
		body, err := env.client.Do(ctx, http.MethodPost, "/chat", map[string]string{"user_input": question})
		if err != nil {
			_, _ = fmt.Fprintf(env.stderr, "request failed: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(env.stdout, formatJSON(body))
		return 0
	}
	answer, err := env.client.Ask(ctx, question)
	if err != nil {
		_, _ = fmt.Fprintf(env.stderr, "request failed: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(env.stdout, answer)
	return 0
}

// runREPL keeps going after failed questions; the exit code reports whether
// any failed.
func runREPL(ctx context.Context, env *runEnv, _ []string) int {
	if env.stdin == nil {
		_, _ = fmt.Fprintln(env.stderr, "repl needs stdin")
		return 2
	}
	failed := false
	scanner := bufio.NewScanner(env.stdin)
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		answer, err := env.client.Ask(ctx, question)
		if err != nil {
			failed = true
			_, _ = fmt.Fprintf(env.stderr, "request failed: %v\n", err)
			continue
		}
		_, _ = fmt.Fprintf(env.stdout, "User: %s\nBot: %s\n", question, answer)
	}
	if err := scanner.Err(); err != nil {
		_, _ = fmt.Fprintf(env.stderr, "read stdin: %v\n", err)
		return 1
	}
	if failed {
		return 1
	}
	return 0
}

func formatJSON(raw []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(raw), "", "  "); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return out.String()
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: casedeskctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "commands:")
	for _, name := range commandOrder {
		_, _ = fmt.Fprintln(w, "  "+commands[name].usage)
	}
}

func writerOr(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

func stringOr(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
