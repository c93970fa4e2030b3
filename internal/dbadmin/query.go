package dbadmin

import (
	"context"
	"fmt"
	"time"
)

const rowCountQuery = "SELECT ROW_COUNT()"

// Execute runs one arbitrary SQL statement. Whether the result is a read or
// a write is decided by the server response: a result set with columns is
// a read, anything else is a write whose affected row count is read back on
// the same connection. No statement filtering happens here.
func (s *Service) Execute(ctx context.Context, projectID, sqlText string) (result QueryResult, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "execute", projectID, start, err) }()

	statement := stripTrailingSemicolons(sqlText)
	if statement == "" {
		return QueryResult{}, invalidArgument("query is required")
	}

	sess, err := s.openSession(ctx, projectID)
	if err != nil {
		return QueryResult{}, err
	}
	defer sess.release()

	ctx, cancel := context.WithTimeout(ctx, s.Config.QueryTimeout)
	defer cancel()

	conn, err := sess.pin(ctx)
	if err != nil {
		return QueryResult{}, err
	}
	defer func() { _ = conn.Close() }()

	began := s.Clock()
	rows, err := conn.QueryContext(ctx, statement)
	if err != nil {
		return QueryResult{}, classify(ctx, err)
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return QueryResult{}, classify(ctx, err)
	}

	if len(columns) == 0 {
		if err := rows.Close(); err != nil {
			return QueryResult{}, classify(ctx, err)
		}
		if err := rows.Err(); err != nil {
			return QueryResult{}, classify(ctx, err)
		}
		var affected int64
		if err := conn.QueryRowContext(ctx, rowCountQuery).Scan(&affected); err != nil {
			return QueryResult{}, classify(ctx, fmt.Errorf("read affected rows: %w", err))
		}
		if affected < 0 {
			affected = 0
		}
		return QueryResult{
			Write:    &WriteResult{RowsAffected: affected},
			Duration: s.Clock().Sub(began),
		}, nil
	}

	columns = uniqueColumnNames(columns)
	read := &ReadResult{Columns: columns, Rows: make([]Record, 0)}
	for rows.Next() {
		if len(read.Rows) >= s.Config.MaxResultRows {
			read.Truncated = true
			break
		}
		values, err := scanRow(rows, len(columns))
		if err != nil {
			_ = rows.Close()
			return QueryResult{}, fmt.Errorf("scan result row: %w", err)
		}
		for i, value := range values {
			values[i] = displayValue(value, kindText, s.Config.BlobPreviewBytes)
		}
		read.Rows = append(read.Rows, NewRecord(columns, values))
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return QueryResult{}, classify(ctx, err)
	}
	_ = rows.Close()

	return QueryResult{Read: read, Duration: s.Clock().Sub(began)}, nil
}
