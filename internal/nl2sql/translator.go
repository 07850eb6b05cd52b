package nl2sql

import (
	"context"

	"github.com/casedesk/casedesk/internal/query"
)

type Request struct {
	NaturalLanguage string        `json:"natural_language"`
	Tables          []query.Table `json:"tables"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// SummaryRequest carries a question together with the rows its SQL produced.
type SummaryRequest struct {
	Question string
	SQL      string
	Columns  []string
	Rows     [][]any
}

type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}
