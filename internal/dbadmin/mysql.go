package dbadmin

import (
	"context"
	"database/sql"
	"strings"
)

// queryer is satisfied by *sql.DB and *sql.Conn.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	disableForeignKeyChecks = "SET FOREIGN_KEY_CHECKS=0"
	enableForeignKeyChecks  = "SET FOREIGN_KEY_CHECKS=1"
)

func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = quoteIdent(name)
	}
	return strings.Join(quoted, ", ")
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

// orderClause orders by the primary key when one exists, otherwise by every
// column, so that consecutive pages do not overlap.
func orderClause(columns []ColumnDescriptor) string {
	keys := make([]string, 0, len(columns))
	for _, column := range columns {
		if column.KeyRole == KeyPrimary {
			keys = append(keys, column.Name)
		}
	}
	if len(keys) == 0 {
		for _, column := range columns {
			keys = append(keys, column.Name)
		}
	}
	return quoteIdents(keys)
}

func columnNames(columns []ColumnDescriptor) []string {
	names := make([]string, len(columns))
	for i, column := range columns {
		names[i] = column.Name
	}
	return names
}
