package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/casedesk/casedesk/internal/schema"
)

func WriteParquet(w io.Writer, records []CaseRecord) error {
	writer := parquet.NewGenericWriter[CaseRecord](w)
	if _, err := writer.Write(records); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write case records: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func WriteParquetFile(path string, records []CaseRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if err := WriteParquet(file, records); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %q: %w", path, err)
	}
	return nil
}

func ReadParquet(r io.ReaderAt, size int64) ([]CaseRecord, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open case records: %w", err)
	}
	reader := parquet.NewGenericReader[CaseRecord](file)
	defer func() { _ = reader.Close() }()

	records := make([]CaseRecord, 0, reader.NumRows())
	batch := make([]CaseRecord, 256)
	for {
		n, err := reader.Read(batch)
		records = append(records, batch[:n]...)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read case records: %w", err)
		}
	}
}

// LoadIntoStore replaces the cases table of a DuckDB store with the contents
// of a local parquet file.
func LoadIntoStore(ctx context.Context, db *sql.DB, parquetPath string) (int64, error) {
	if strings.TrimSpace(parquetPath) == "" {
		return 0, fmt.Errorf("parquet path is required")
	}
	table := schema.QuoteIdent(schema.TableName)
	createSQL := fmt.Sprintf(
		"CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet('%s')",
		table,
		strings.ReplaceAll(parquetPath, "'", "''"),
	)
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("load %s table: %w", schema.TableName, err)
	}

	var count int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s rows: %w", schema.TableName, err)
	}
	return count, nil
}
