package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/casedesk/casedesk/internal/conversation"
)

const insertEntrySQL = `
INSERT INTO conversation_entry (session_id, speaker, text)
VALUES ($1, $2, $3)`

func TestAppendWritesUserThenBotInOneTransaction(t *testing.T) {
	db, mock := newSQLMock(t)
	history := NewStore(db).ForSession("session-1")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertEntrySQL)).
		WithArgs("session-1", "User", "How many cases are in office X?").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertEntrySQL)).
		WithArgs("session-1", "Bot", "There are 12.").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	if err := history.Append(context.Background(), "How many cases are in office X?", "There are 12."); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestAppendRollsBackWhenBotInsertFails(t *testing.T) {
	db, mock := newSQLMock(t)
	history := NewStore(db).ForSession("session-1")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(insertEntrySQL)).
		WithArgs("session-1", "User", "q").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertEntrySQL)).
		WithArgs("session-1", "Bot", "a").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	if err := history.Append(context.Background(), "q", "a"); err == nil {
		t.Fatal("expected error")
	}
	assertSQLMock(t, mock)
}

func TestAppendRequiresSessionID(t *testing.T) {
	db, mock := newSQLMock(t)
	if err := NewStore(db).ForSession("  ").Append(context.Background(), "q", "a"); err == nil {
		t.Fatal("expected error for blank session id")
	}
	assertSQLMock(t, mock)
}

func TestEntriesReturnsInsertionOrder(t *testing.T) {
	db, mock := newSQLMock(t)
	history := NewStore(db).ForSession("session-2")
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT speaker, text, created_at
FROM conversation_entry
WHERE session_id = $1
ORDER BY entry_id ASC`)).
		WithArgs("session-2").
		WillReturnRows(sqlmock.NewRows([]string{"speaker", "text", "created_at"}).
			AddRow("User", "hello", now).
			AddRow("Bot", "hi", now))

	entries, err := history.Entries(context.Background())
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d", len(entries))
	}
	if entries[0].Speaker != conversation.SpeakerUser || entries[1].Speaker != conversation.SpeakerBot {
		t.Fatalf("speakers = %s/%s", entries[0].Speaker, entries[1].Speaker)
	}
	if !entries[1].CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v", entries[1].CreatedAt)
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations were not met: %v", err)
	}
}
