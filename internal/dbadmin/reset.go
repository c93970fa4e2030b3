package dbadmin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tenantdb/tenantdb/internal/observability"
)

// Reset drops every base table of the project database. Foreign key checks
// are disabled for the duration so that drop order does not matter. A table
// that fails to drop is recorded and the remaining tables are still
// attempted.
func (s *Service) Reset(ctx context.Context, projectID string) (outcome ResetOutcome, err error) {
	start := time.Now()
	defer func() {
		observability.AddResetTablesDropped(outcome.Dropped)
		s.observe(ctx, "reset", projectID, start, err)
	}()

	sess, err := s.openSession(ctx, projectID)
	if err != nil {
		return ResetOutcome{}, err
	}
	defer sess.release()

	conn, err := sess.pinWithin(ctx, s.Config.StatementTimeout)
	if err != nil {
		return ResetOutcome{}, err
	}
	defer func() { _ = conn.Close() }()

	listCtx, cancel := context.WithTimeout(ctx, s.Config.QueryTimeout)
	tables, err := listTables(listCtx, conn)
	cancel()
	if err != nil {
		return ResetOutcome{}, err
	}

	fkCtx, cancel := context.WithTimeout(ctx, s.Config.StatementTimeout)
	_, err = conn.ExecContext(fkCtx, disableForeignKeyChecks)
	err = classify(fkCtx, err)
	cancel()
	if err != nil {
		return ResetOutcome{}, fmt.Errorf("disable foreign key checks: %w", err)
	}
	defer func() {
		restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Config.StatementTimeout)
		defer cancel()
		if _, restoreErr := conn.ExecContext(restoreCtx, enableForeignKeyChecks); restoreErr != nil && s.Logger != nil {
			s.Logger.WarnContext(ctx, "restore foreign key checks failed",
				slog.String("project_id", projectID),
				slog.Any("error", restoreErr),
			)
		}
	}()

	outcome = ResetOutcome{Errors: make([]ResetError, 0)}
	for _, table := range tables {
		dropCtx, cancel := context.WithTimeout(ctx, s.Config.StatementTimeout)
		_, dropErr := conn.ExecContext(dropCtx, "DROP TABLE IF EXISTS "+quoteIdent(table.Name))
		classified := classify(dropCtx, dropErr)
		cancel()
		if dropErr != nil {
			outcome.Errors = append(outcome.Errors, ResetError{Table: table.Name, Message: classified.Error()})
			continue
		}
		outcome.Dropped++
	}
	return outcome, nil
}
