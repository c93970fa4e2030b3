package dbadmin

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func TestResetDropsEveryTable(t *testing.T) {
	svc, mock, _ := newTestService(t)
	expectListTables(mock, "posts", "users")
	mock.ExpectExec(regexp.QuoteMeta(disableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS `posts`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS `users`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(enableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))

	outcome, err := svc.Reset(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if outcome.Dropped != 2 || !outcome.Success() {
		t.Fatalf("outcome = %#v", outcome)
	}
	assertSQLMock(t, mock)
}

func TestResetContinuesAfterFailedDrop(t *testing.T) {
	svc, mock, _ := newTestService(t)
	expectListTables(mock, "a", "b", "c")
	mock.ExpectExec(regexp.QuoteMeta(disableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS `a`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS `b`")).WillReturnError(&mysql.MySQLError{
		Number:  1051,
		Message: "Unknown table 'proj_p1.b'",
	})
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS `c`")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(enableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))

	outcome, err := svc.Reset(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if outcome.Dropped != 2 {
		t.Fatalf("Dropped = %d, want 2", outcome.Dropped)
	}
	if len(outcome.Errors) != 1 || outcome.Errors[0].Table != "b" {
		t.Fatalf("Errors = %#v", outcome.Errors)
	}
	if outcome.Errors[0].Message != "Error 1051: Unknown table 'proj_p1.b'" {
		t.Fatalf("message = %q", outcome.Errors[0].Message)
	}
	assertSQLMock(t, mock)
}

func TestResetEmptyDatabase(t *testing.T) {
	svc, mock, _ := newTestService(t)
	expectListTables(mock)
	mock.ExpectExec(regexp.QuoteMeta(disableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(enableForeignKeyChecks)).WillReturnResult(sqlmock.NewResult(0, 0))

	outcome, err := svc.Reset(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if outcome.Dropped != 0 || len(outcome.Errors) != 0 {
		t.Fatalf("outcome = %#v", outcome)
	}
	assertSQLMock(t, mock)
}
