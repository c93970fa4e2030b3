package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tenantdb/tenantdb/internal/tenant"
)

func (r *Registry) RecordOperation(ctx context.Context, entry tenant.AuditEntry) error {
	if strings.TrimSpace(entry.ProjectID) == "" {
		return fmt.Errorf("audit entry project id is required")
	}
	switch entry.Operation {
	case tenant.OperationExport, tenant.OperationImport, tenant.OperationReset, tenant.OperationRestore:
	default:
		return fmt.Errorf("unsupported audit operation %q", entry.Operation)
	}

	query := `
INSERT INTO dump_audit (project_id, operation, object_key, statements_total, statements_failed, tables_dropped, actor)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := r.db.ExecContext(ctx, query,
		entry.ProjectID,
		string(entry.Operation),
		nullString(entry.ObjectKey),
		nullCount(entry.Operation == tenant.OperationImport || entry.Operation == tenant.OperationRestore, entry.StatementsTotal),
		nullCount(entry.Operation == tenant.OperationImport || entry.Operation == tenant.OperationRestore, entry.StatementsFailed),
		nullCount(entry.Operation == tenant.OperationReset, entry.TablesDropped),
		nullString(entry.Actor),
	); err != nil {
		return fmt.Errorf("insert dump audit: %w", err)
	}
	return nil
}

func nullString(value string) sql.NullString {
	value = strings.TrimSpace(value)
	return sql.NullString{String: value, Valid: value != ""}
}

func nullCount(applies bool, value int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(value), Valid: applies}
}
