package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const migrationTable = "casedesk_schema_migrations"

var migrationNamePattern = regexp.MustCompile(`^([0-9]+)_(.+)\.(up|down)\.sql$`)

// Runner applies the embedded history schema migrations in version order.
type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

type step struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// Status reports one known migration and whether the database has it.
type Status struct {
	Version int64
	Name    string
	Applied bool
}

// Up applies pending migrations, at most steps of them when steps > 0.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	items, applied, err := r.prepare(ctx, db, "ASC")
	if err != nil {
		return 0, err
	}
	done := make(map[int64]bool, len(applied))
	for _, version := range applied {
		done[version] = true
	}

	count := 0
	for _, item := range items {
		if done[item.Version] {
			continue
		}
		if steps > 0 && count >= steps {
			break
		}
		err := runInTx(ctx, db, item.UpSQL, `INSERT INTO `+migrationTable+` (version) VALUES ($1)`, item.Version)
		if err != nil {
			return count, fmt.Errorf("apply migration %d (%s): %w", item.Version, item.Name, err)
		}
		count++
	}
	return count, nil
}

// Down rolls back the newest applied migrations, one when steps <= 0.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	items, applied, err := r.prepare(ctx, db, "DESC")
	if err != nil {
		return 0, err
	}
	byVersion := make(map[int64]step, len(items))
	for _, item := range items {
		byVersion[item.Version] = item
	}

	count := 0
	for _, version := range applied {
		if count >= steps {
			break
		}
		item, ok := byVersion[version]
		if !ok {
			return count, fmt.Errorf("applied migration %d is missing from source", version)
		}
		err := runInTx(ctx, db, item.DownSQL, `DELETE FROM `+migrationTable+` WHERE version = $1`, item.Version)
		if err != nil {
			return count, fmt.Errorf("rollback migration %d (%s): %w", item.Version, item.Name, err)
		}
		count++
	}
	return count, nil
}

func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	items, applied, err := r.prepare(ctx, db, "ASC")
	if err != nil {
		return nil, err
	}
	done := make(map[int64]bool, len(applied))
	for _, version := range applied {
		done[version] = true
	}
	out := make([]Status, 0, len(items))
	for _, item := range items {
		out = append(out, Status{Version: item.Version, Name: item.Name, Applied: done[item.Version]})
	}
	return out, nil
}

func (r *Runner) prepare(ctx context.Context, db *sql.DB, order string) ([]step, []int64, error) {
	items, err := loadMigrations(r.fsys)
	if err != nil {
		return nil, nil, err
	}
	if err := ensureMigrationTable(ctx, db); err != nil {
		return nil, nil, err
	}
	applied, err := appliedVersions(ctx, db, order)
	if err != nil {
		return nil, nil, err
	}
	return items, applied, nil
}

func ensureMigrationTable(ctx context.Context, db *sql.DB) error {
	query := `
CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
	version BIGINT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

// runInTx executes a migration script and its bookkeeping statement
// atomically.
func runInTx(ctx context.Context, db *sql.DB, script, bookkeeping string, version int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return tx.Commit()
}

func appliedVersions(ctx context.Context, db *sql.DB, order string) ([]int64, error) {
	if order != "ASC" && order != "DESC" {
		return nil, fmt.Errorf("invalid version order %q", order)
	}
	rows, err := db.QueryContext(ctx, `SELECT version FROM `+migrationTable+` ORDER BY version `+order)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return versions, nil
}

func loadMigrations(fsys fs.FS) ([]step, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	byVersion := map[int64]step{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := path.Base(entry.Name())
		matches := migrationNamePattern.FindStringSubmatch(base)
		if len(matches) != 4 {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", base, err)
		}
		script, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		item := byVersion[version]
		if item.Name != "" && item.Name != matches[2] {
			return nil, fmt.Errorf("migration %d has conflicting names %q and %q", version, item.Name, matches[2])
		}
		item.Version = version
		item.Name = matches[2]
		if matches[3] == "up" {
			item.UpSQL = string(script)
		} else {
			item.DownSQL = string(script)
		}
		byVersion[version] = item
	}

	items := make([]step, 0, len(byVersion))
	for _, item := range byVersion {
		if strings.TrimSpace(item.UpSQL) == "" {
			return nil, fmt.Errorf("migration %d missing up SQL", item.Version)
		}
		if strings.TrimSpace(item.DownSQL) == "" {
			return nil, fmt.Errorf("migration %d missing down SQL", item.Version)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Version < items[j].Version })
	return items, nil
}
