package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/casedesk/casedesk/internal/nl2sql"
	"github.com/casedesk/casedesk/internal/observability"
	"github.com/casedesk/casedesk/internal/query"
)

var ErrQueryNotAllowed = errors.New("only read-only SELECT queries are allowed")

type Config struct {
	RowLimit   int
	SampleRows int
}

// SQLAgent answers a prompt in one pass: translate to SQL, run it, describe
// the rows.
type SQLAgent struct {
	engine     query.Engine
	translator nl2sql.Translator
	summarizer nl2sql.Summarizer
	cfg        Config
	logger     *slog.Logger
}

func New(engine query.Engine, translator nl2sql.Translator, summarizer nl2sql.Summarizer, cfg Config, logger *slog.Logger) (*SQLAgent, error) {
	if engine == nil {
		return nil, fmt.Errorf("query engine is required")
	}
	if translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if summarizer == nil {
		return nil, fmt.Errorf("summarizer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLAgent{
		engine:     engine,
		translator: translator,
		summarizer: summarizer,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

func (a *SQLAgent) Answer(ctx context.Context, prompt string) (string, error) {
	tables, err := a.engine.Tables(ctx, a.cfg.SampleRows)
	if err != nil {
		return "", fmt.Errorf("load table context: %w", err)
	}

	translated, err := a.translator.Translate(ctx, nl2sql.Request{
		NaturalLanguage: prompt,
		Tables:          tables,
	})
	if err != nil {
		return "", fmt.Errorf("translate question: %w", err)
	}
	if !isAllowedSQL(translated.SQL) {
		observability.ObserveAgentSQL(observability.SQLOutcomeBlocked)
		a.logger.Warn("generated sql rejected", "sql", translated.SQL, "model", translated.Model)
		return "", fmt.Errorf("%w: %q", ErrQueryNotAllowed, translated.SQL)
	}

	start := time.Now()
	result, err := a.engine.Execute(ctx, query.Request{SQL: translated.SQL, RowLimit: a.cfg.RowLimit})
	if err != nil {
		observability.ObserveAgentSQL(observability.SQLOutcomeFailed)
		return "", fmt.Errorf("execute generated sql: %w", err)
	}
	observability.ObserveAgentSQL(observability.SQLOutcomeExecuted)
	a.logger.Debug("generated sql executed",
		"sql", translated.SQL,
		"rows", len(result.Rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	answer, err := a.summarizer.Summarize(ctx, nl2sql.SummaryRequest{
		Question: prompt,
		SQL:      translated.SQL,
		Columns:  result.Columns,
		Rows:     result.Rows,
	})
	if err != nil {
		return "", fmt.Errorf("summarize result: %w", err)
	}
	return answer, nil
}

var writeKeywords = map[string]struct{}{
	"insert": {}, "update": {}, "delete": {}, "merge": {}, "drop": {},
	"create": {}, "alter": {}, "truncate": {}, "grant": {}, "revoke": {},
	"attach": {}, "detach": {}, "copy": {}, "install": {}, "load": {},
	"pragma": {}, "set": {}, "call": {}, "export": {}, "import": {},
}

func isAllowedSQL(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	normalized = strings.TrimSpace(strings.TrimRight(normalized, "; \t\r\n"))
	if normalized == "" {
		return false
	}
	if !strings.HasPrefix(normalized, "select") && !strings.HasPrefix(normalized, "with") {
		return false
	}
	stripped := stripQuoted(normalized)
	if strings.Contains(stripped, ";") {
		return false
	}
	for _, word := range strings.FieldsFunc(stripped, func(r rune) bool {
		return !(r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	}) {
		if _, ok := writeKeywords[word]; ok {
			return false
		}
	}
	return true
}

// stripQuoted blanks out string literals and quoted identifiers.
func stripQuoted(sqlText string) string {
	var b strings.Builder
	var quote rune
	for _, r := range sqlText {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
