package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/casedesk/casedesk/internal/cli/casedeskctl"
	"github.com/casedesk/casedesk/internal/config"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	timeout := parseDurationWithDefault(strings.TrimSpace(os.Getenv("CASEDESK_CLI_TIMEOUT")), 2*time.Minute)
	options := casedeskctl.Options{
		BaseURL: envOr("CASEDESK_API_URL", "http://localhost:8080"),
		APIKey:  strings.TrimSpace(os.Getenv("CASEDESK_API_KEY")),
		Timeout: timeout,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	code := casedeskctl.Run(context.Background(), os.Args[1:], options)
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDurationWithDefault(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid CASEDESK_CLI_TIMEOUT %q; using %s\n", raw, fallback)
		return fallback
	}
	return parsed
}
