package dbadmin

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const listTablesQuery = `
SELECT TABLE_NAME, COALESCE(TABLE_ROWS, 0), COALESCE(DATA_LENGTH, 0) + COALESCE(INDEX_LENGTH, 0)
FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`

const describeTableQuery = `
SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_KEY, COLUMN_DEFAULT, EXTRA
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

// ListTables returns the base tables of the project database ordered by
// name. Row counts are the engine's estimates.
func (s *Service) ListTables(ctx context.Context, projectID string) (tables []TableDescriptor, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "list_tables", projectID, start, err) }()

	sess, err := s.openSession(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer sess.release()

	ctx, cancel := context.WithTimeout(ctx, s.Config.QueryTimeout)
	defer cancel()
	return listTables(ctx, sess.db)
}

// DescribeTable returns the columns of table in physical order.
func (s *Service) DescribeTable(ctx context.Context, projectID, table string) (columns []ColumnDescriptor, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "describe_table", projectID, start, err) }()

	sess, err := s.openSession(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer sess.release()

	ctx, cancel := context.WithTimeout(ctx, s.Config.QueryTimeout)
	defer cancel()
	return describeTable(ctx, sess.db, table)
}

func listTables(ctx context.Context, q queryer) ([]TableDescriptor, error) {
	rows, err := q.QueryContext(ctx, listTablesQuery)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("list tables: %w", err))
	}
	defer func() { _ = rows.Close() }()

	tables := make([]TableDescriptor, 0)
	for rows.Next() {
		var table TableDescriptor
		if err := rows.Scan(&table.Name, &table.EstimatedRows, &table.SizeBytes); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, fmt.Errorf("list tables: %w", err))
	}
	return tables, nil
}

// describeTable checks that table is an exact member of the catalog before
// reading its columns. Identifiers reach SQL text only after this check.
func describeTable(ctx context.Context, q queryer, table string) ([]ColumnDescriptor, error) {
	if strings.TrimSpace(table) == "" {
		return nil, invalidArgument("table name is required")
	}
	tables, err := listTables(ctx, q)
	if err != nil {
		return nil, err
	}
	if !containsTable(tables, table) {
		return nil, fmt.Errorf("table %q: %w", table, ErrTableNotFound)
	}
	return readColumns(ctx, q, table)
}

// readColumns reads the column catalog of a table already known to exist.
func readColumns(ctx context.Context, q queryer, table string) ([]ColumnDescriptor, error) {
	rows, err := q.QueryContext(ctx, describeTableQuery, table)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("describe table %s: %w", table, err))
	}
	defer func() { _ = rows.Close() }()

	columns := make([]ColumnDescriptor, 0)
	for rows.Next() {
		var (
			column     ColumnDescriptor
			nullable   string
			key        string
			defaultVal sql.NullString
		)
		if err := rows.Scan(&column.Name, &column.DeclaredType, &nullable, &key, &defaultVal, &column.Extra); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		column.Nullable = strings.EqualFold(nullable, "YES")
		column.KeyRole = keyRole(key)
		if defaultVal.Valid {
			value := defaultVal.String
			column.Default = &value
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, fmt.Errorf("describe table %s: %w", table, err))
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("table %q: %w", table, ErrTableNotFound)
	}
	return columns, nil
}

func containsTable(tables []TableDescriptor, name string) bool {
	for _, table := range tables {
		if table.Name == name {
			return true
		}
	}
	return false
}

func keyRole(columnKey string) KeyRole {
	switch strings.ToUpper(strings.TrimSpace(columnKey)) {
	case "PRI":
		return KeyPrimary
	case "UNI":
		return KeyUnique
	case "MUL":
		return KeyIndex
	default:
		return KeyNone
	}
}
