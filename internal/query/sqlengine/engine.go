package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/casedesk/casedesk/internal/query"
	"github.com/casedesk/casedesk/internal/schema"
	"github.com/casedesk/casedesk/internal/storage"
)

// Engine runs read queries against one shared database handle. The handle
// is used concurrently without extra locking; database/sql pools it.
type Engine struct {
	db *sql.DB

	mu       sync.Mutex
	attached []string
}

func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

func (e *Engine) HealthCheck(ctx context.Context) error {
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping case store: %w", err)
	}
	return nil
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if request.RowLimit > 0 {
		// The newline keeps a trailing line comment from swallowing the paren.
		sqlText = fmt.Sprintf("SELECT * FROM (\n%s\n) AS q LIMIT %d", sqlText, request.RowLimit)
	}

	start := time.Now()
	columns, rows, err := e.collect(ctx, sqlText)
	if err != nil {
		return query.Result{}, err
	}
	return query.Result{
		Columns:  columns,
		Rows:     rows,
		Duration: time.Since(start),
	}, nil
}

func (e *Engine) Tables(ctx context.Context, sampleRows int) ([]query.Table, error) {
	listSQL := `
SELECT table_name, column_name
FROM information_schema.columns
WHERE table_schema NOT IN ('information_schema', 'pg_catalog')
ORDER BY table_name, ordinal_position`
	rows, err := e.db.QueryContext(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("list table columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]query.Table, 0)
	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			return nil, fmt.Errorf("scan table column: %w", err)
		}
		if len(tables) == 0 || tables[len(tables)-1].Name != tableName {
			tables = append(tables, query.Table{Name: tableName})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, columnName)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table columns: %w", err)
	}
	_ = rows.Close()

	if sampleRows <= 0 {
		return tables, nil
	}
	for i := range tables {
		sampleSQL := fmt.Sprintf("SELECT * FROM %s LIMIT %d", schema.QuoteIdent(tables[i].Name), sampleRows)
		_, sample, err := e.collect(ctx, sampleSQL)
		if err != nil {
			continue
		}
		tables[i].SampleRows = sample
	}
	return tables, nil
}

// AttachParquet downloads a parquet object and exposes it as a view. The
// local copy lives until Close.
func (e *Engine) AttachParquet(ctx context.Context, store storage.ObjectStore, key, view string) error {
	if store == nil {
		return fmt.Errorf("object store is required")
	}
	if strings.TrimSpace(view) == "" {
		return fmt.Errorf("view name is required")
	}

	workDir, err := os.MkdirTemp("", "casedesk-dataset-")
	if err != nil {
		return fmt.Errorf("create dataset temp dir: %w", err)
	}

	localPath := filepath.Join(workDir, sanitizeFileComponent(view)+".parquet")
	if err := storage.DownloadFile(ctx, store, key, localPath); err != nil {
		_ = os.RemoveAll(workDir)
		return err
	}

	viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, schema.QuoteIdent(view), quoteString(localPath))
	if _, err := e.db.ExecContext(ctx, viewSQL); err != nil {
		_ = os.RemoveAll(workDir)
		return fmt.Errorf("create view %q: %w", view, err)
	}

	e.mu.Lock()
	e.attached = append(e.attached, workDir)
	e.mu.Unlock()
	return nil
}

// Close removes local copies of attached datasets. The database handle is
// owned by the caller.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, dir := range e.attached {
		_ = os.RemoveAll(dir)
	}
	e.attached = nil
	return nil
}

func (e *Engine) collect(ctx context.Context, sqlText string) ([]string, [][]any, error) {
	rows, err := e.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, resultRows, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		case time.Time:
			normalized[i] = typed.UTC().Format(time.RFC3339)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "dataset"
	}
	return value
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
