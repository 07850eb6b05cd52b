package query

import (
	"context"
	"time"
)

type Request struct {
	SQL      string
	RowLimit int
}

type Result struct {
	Columns  []string
	Rows     [][]any
	Duration time.Duration
}

// Table describes one relation visible to the engine, with optional sample
// rows for prompting.
type Table struct {
	Name       string   `json:"table_name"`
	Columns    []string `json:"columns"`
	SampleRows [][]any  `json:"sample_rows,omitempty"`
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
	Tables(ctx context.Context, sampleRows int) ([]Table, error)
}
