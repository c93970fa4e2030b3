package dbadmin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tenantdb/tenantdb/internal/observability"
)

// DumpFilename is the download name of an export generated at t.
func DumpFilename(databaseName string, t time.Time) string {
	return fmt.Sprintf("%s_%s.sql", databaseName, t.UTC().Format("20060102_150405"))
}

// Export writes a SQL script that recreates every table of the project
// database with its rows. The script is accepted by Import. Output is
// streamed; when a failure happens after bytes reached w, the partial
// script stays in w and the error is returned with summary.Bytes > 0.
func (s *Service) Export(ctx context.Context, projectID string, w io.Writer) (summary ExportSummary, err error) {
	start := time.Now()
	defer func() {
		observability.AddExportBytes(summary.Bytes)
		s.observe(ctx, "export", projectID, start, err)
	}()

	sess, err := s.openSession(ctx, projectID)
	if err != nil {
		return ExportSummary{}, err
	}
	defer sess.release()

	ctx, cancel := context.WithTimeout(ctx, s.Config.ExportTimeout)
	defer cancel()

	conn, err := sess.pin(ctx)
	if err != nil {
		return ExportSummary{}, err
	}
	defer func() { _ = conn.Close() }()

	tables, err := listTables(ctx, conn)
	if err != nil {
		return ExportSummary{}, err
	}

	counter := &countingWriter{w: w}
	out := bufio.NewWriterSize(counter, 64<<10)
	summary = ExportSummary{
		Database:    sess.target.DatabaseName,
		Tables:      len(tables),
		GeneratedAt: s.Clock().UTC(),
	}
	defer func() {
		// A failure before anything reached w leaves w untouched so the
		// caller can still report the error cleanly.
		if err == nil || counter.n > 0 {
			if flushErr := out.Flush(); err == nil && flushErr != nil {
				err = fmt.Errorf("flush export: %w", flushErr)
			}
		}
		summary.Bytes = counter.n
	}()

	fmt.Fprintf(out, "-- Database Export: %s\n", summary.Database)
	fmt.Fprintf(out, "-- Generated: %s\n", summary.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "-- Tables: %d\n\n", len(tables))
	fmt.Fprintf(out, "%s;\n", disableForeignKeyChecks)

	for _, table := range tables {
		rowsWritten, err := s.exportTable(ctx, conn, out, table.Name)
		summary.Rows += rowsWritten
		if err != nil {
			return summary, err
		}
	}

	fmt.Fprintf(out, "\n%s;\n", enableForeignKeyChecks)
	return summary, nil
}

func (s *Service) exportTable(ctx context.Context, q queryer, out *bufio.Writer, table string) (int64, error) {
	createSQL, err := showCreateTable(ctx, q, table)
	if err != nil {
		return 0, err
	}
	columns, err := readColumns(ctx, q, table)
	if err != nil {
		return 0, err
	}

	fmt.Fprintf(out, "\n-- Table: %s\n", quoteIdent(table))
	fmt.Fprintf(out, "DROP TABLE IF EXISTS %s;\n", quoteIdent(table))
	fmt.Fprintf(out, "%s;\n", stripTrailingSemicolons(createSQL))

	stored := storedColumns(columns)
	if len(stored) == 0 {
		return 0, nil
	}
	names := columnNames(stored)
	kinds := kindsOf(stored)
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		quoteIdents(names), quoteIdent(table), orderClause(columns)))
	if err != nil {
		return 0, classify(ctx, fmt.Errorf("export rows of %s: %w", table, err))
	}
	defer func() { _ = rows.Close() }()

	insertPrefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES\n", quoteIdent(table), quoteIdents(names))
	var (
		written int64
		inBatch int
	)
	literals := make([]string, len(names))
	for rows.Next() {
		values, err := scanRow(rows, len(names))
		if err != nil {
			return written, fmt.Errorf("scan export row of %s: %w", table, err)
		}
		for i, value := range values {
			literals[i] = sqlLiteral(value, kinds[i])
		}
		if inBatch == 0 {
			out.WriteString(insertPrefix)
		} else {
			out.WriteString(",\n")
		}
		out.WriteString("(" + strings.Join(literals, ", ") + ")")
		inBatch++
		written++
		if inBatch >= s.Config.ExportBatchRows {
			out.WriteString(";\n")
			inBatch = 0
		}
	}
	if err := rows.Err(); err != nil {
		return written, classify(ctx, fmt.Errorf("export rows of %s: %w", table, err))
	}
	if inBatch > 0 {
		out.WriteString(";\n")
	}
	return written, nil
}

// storedColumns drops generated columns. The server computes them on insert
// and rejects explicit values (error 3105).
func storedColumns(columns []ColumnDescriptor) []ColumnDescriptor {
	out := make([]ColumnDescriptor, 0, len(columns))
	for _, column := range columns {
		extra := strings.ToUpper(column.Extra)
		if strings.Contains(extra, "VIRTUAL GENERATED") || strings.Contains(extra, "STORED GENERATED") {
			continue
		}
		out = append(out, column)
	}
	return out
}

func showCreateTable(ctx context.Context, q queryer, table string) (string, error) {
	rows, err := q.QueryContext(ctx, "SHOW CREATE TABLE "+quoteIdent(table))
	if err != nil {
		return "", classify(ctx, fmt.Errorf("show create table %s: %w", table, err))
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", classify(ctx, fmt.Errorf("show create table %s: %w", table, err))
		}
		return "", fmt.Errorf("table %q: %w", table, ErrTableNotFound)
	}
	var name, createSQL string
	if err := rows.Scan(&name, &createSQL); err != nil {
		return "", fmt.Errorf("scan create table %s: %w", table, err)
	}
	return createSQL, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
