package postgres

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/tenantdb/tenantdb/internal/tenant"
)

const insertAuditQuery = `
INSERT INTO dump_audit (project_id, operation, object_key, statements_total, statements_failed, tables_dropped, actor)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func TestRecordOperationStoresImportCounts(t *testing.T) {
	db, mock := newSQLMock(t)
	registry := NewRegistry(db, Defaults{})

	mock.ExpectExec(regexp.QuoteMeta(insertAuditQuery)).
		WithArgs("p1", "import", nil, int64(12), int64(2), nil, "owner-a").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := registry.RecordOperation(context.Background(), tenant.AuditEntry{
		ProjectID:        "p1",
		Operation:        tenant.OperationImport,
		StatementsTotal:  12,
		StatementsFailed: 2,
		Actor:            "owner-a",
	})
	if err != nil {
		t.Fatalf("RecordOperation() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestRecordOperationStoresResetDrops(t *testing.T) {
	db, mock := newSQLMock(t)
	registry := NewRegistry(db, Defaults{})

	mock.ExpectExec(regexp.QuoteMeta(insertAuditQuery)).
		WithArgs("p1", "reset", nil, nil, nil, int64(3), nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := registry.RecordOperation(context.Background(), tenant.AuditEntry{
		ProjectID:     "p1",
		Operation:     tenant.OperationReset,
		TablesDropped: 3,
	})
	if err != nil {
		t.Fatalf("RecordOperation() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestRecordOperationRejectsUnknownOperation(t *testing.T) {
	db, mock := newSQLMock(t)
	registry := NewRegistry(db, Defaults{})

	if err := registry.RecordOperation(context.Background(), tenant.AuditEntry{ProjectID: "p1", Operation: "truncate"}); err == nil {
		t.Fatal("expected unsupported operation error")
	}
	assertSQLMock(t, mock)
}
