package dbadmin

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

// ReadRows returns page (1-based) of table holding at most limit rows, plus
// the table's total row count. Out of range arguments are rejected, not
// clamped.
func (s *Service) ReadRows(ctx context.Context, projectID, table string, page, limit int) (result RowPage, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "read_rows", projectID, start, err) }()

	s.ensureDefaults()
	if page < 1 {
		return RowPage{}, invalidArgument("page must be >= 1")
	}
	if limit < 1 || limit > s.Config.MaxPageSize {
		return RowPage{}, invalidArgument("limit must be between 1 and %d", s.Config.MaxPageSize)
	}
	if page-1 > math.MaxInt/limit {
		return RowPage{}, invalidArgument("page is out of range")
	}

	sess, err := s.openSession(ctx, projectID)
	if err != nil {
		return RowPage{}, err
	}
	defer sess.release()

	ctx, cancel := context.WithTimeout(ctx, s.Config.QueryTimeout)
	defer cancel()

	columns, err := describeTable(ctx, sess.db, table)
	if err != nil {
		return RowPage{}, err
	}
	names := columnNames(columns)
	kinds := kindsOf(columns)
	offset := (page - 1) * limit

	selectQuery := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT %d OFFSET %d",
		quoteIdents(names), quoteIdent(table), orderClause(columns), limit, offset)
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(table))

	var (
		total int64
		data  []Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sess.db.QueryRowContext(gctx, countQuery).Scan(&total); err != nil {
			return classify(gctx, fmt.Errorf("count rows of %s: %w", table, err))
		}
		return nil
	})
	g.Go(func() error {
		rows, err := sess.db.QueryContext(gctx, selectQuery)
		if err != nil {
			return classify(gctx, fmt.Errorf("read rows of %s: %w", table, err))
		}
		defer func() { _ = rows.Close() }()

		data = make([]Record, 0, limit)
		for rows.Next() {
			values, err := scanRow(rows, len(names))
			if err != nil {
				return fmt.Errorf("scan row of %s: %w", table, err)
			}
			for i := range values {
				values[i] = displayValue(values[i], kinds[i], s.Config.BlobPreviewBytes)
			}
			data = append(data, NewRecord(names, values))
		}
		if err := rows.Err(); err != nil {
			return classify(gctx, fmt.Errorf("read rows of %s: %w", table, err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return RowPage{}, err
	}

	return RowPage{
		Columns: names,
		Rows:    data,
		Total:   total,
		Page:    page,
		Limit:   limit,
	}, nil
}
