//go:build integration

package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/casedesk/casedesk/internal/conversation"
	historypostgres "github.com/casedesk/casedesk/internal/conversation/postgres"
)

func TestRunnerAppliesAndRollsBackConversationSchema(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("CASEDESK_TEST_HISTORY_DSN"))
	if dsn == "" {
		t.Skip("CASEDESK_TEST_HISTORY_DSN is not set")
	}
	db := openIsolatedSchema(t, dsn)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	runner := NewRunner()

	if applied, err := runner.Up(ctx, db, 0); err != nil || applied < 1 {
		t.Fatalf("Up() = %d, %v", applied, err)
	}
	if applied, err := runner.Up(ctx, db, 0); err != nil || applied != 0 {
		t.Fatalf("second Up() = %d, %v; want no-op", applied, err)
	}
	if !relationExists(t, db, "conversation_entry") {
		t.Fatal("conversation_entry missing after Up")
	}

	history := historypostgres.NewStore(db).ForSession("it-session")
	if err := history.Append(ctx, "How many cases are in office X?", "12"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	entries, err := history.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 2 || entries[0].Speaker != conversation.SpeakerUser || entries[1].Speaker != conversation.SpeakerBot {
		t.Fatalf("entries = %+v", entries)
	}

	statuses, err := runner.Status(ctx, db)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	for _, status := range statuses {
		if !status.Applied {
			t.Fatalf("status = %+v, want applied", status)
		}
	}

	if rolledBack, err := runner.Down(ctx, db, len(statuses)); err != nil || rolledBack != len(statuses) {
		t.Fatalf("Down() = %d, %v", rolledBack, err)
	}
	if relationExists(t, db, "conversation_entry") {
		t.Fatal("conversation_entry still present after Down")
	}
}

// openIsolatedSchema points a pool at a throwaway schema so runs never touch
// tables of the target database.
func openIsolatedSchema(t *testing.T, dsn string) *sql.DB {
	t.Helper()
	schemaName := fmt.Sprintf("casedesk_it_%d", time.Now().UnixNano())

	admin, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = admin.Close() })
	if _, err := admin.Exec(`CREATE SCHEMA ` + schemaName); err != nil {
		t.Fatalf("CREATE SCHEMA failed: %v", err)
	}
	t.Cleanup(func() {
		if _, err := admin.Exec(`DROP SCHEMA ` + schemaName + ` CASCADE`); err != nil {
			t.Errorf("DROP SCHEMA failed: %v", err)
		}
	})

	parsed, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("url.Parse() error = %v", err)
	}
	query := parsed.Query()
	query.Set("search_path", schemaName)
	parsed.RawQuery = query.Encode()

	db, err := sql.Open("pgx", parsed.String())
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func relationExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var exists bool
	if err := db.QueryRow(`SELECT to_regclass($1) IS NOT NULL`, name).Scan(&exists); err != nil {
		t.Fatalf("to_regclass(%q) failed: %v", name, err)
	}
	return exists
}
