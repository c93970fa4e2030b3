package dbadmin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tenantdb/tenantdb/internal/observability"
)

const statementPreviewLen = 200

// Import executes every statement of script in order on a single
// connection, so session settings made by earlier statements apply to later
// ones. A statement rejected by the server is recorded and execution
// continues. A failure of the connection itself, including a statement
// timeout, stops the import; the remaining statements are counted as
// skipped and the outcome is returned with Aborted set. Statements that ran
// before a failure stay applied.
func (s *Service) Import(ctx context.Context, projectID, script string) (outcome ImportOutcome, err error) {
	start := time.Now()
	defer func() {
		observability.ObserveImportStatements(outcome.StatementsSucceeded, len(outcome.Errors))
		s.observe(ctx, "import", projectID, start, err)
	}()

	statements := SplitStatements(script)
	if len(statements) == 0 {
		return ImportOutcome{}, invalidArgument("script contains no SQL statements")
	}

	sess, err := s.openSession(ctx, projectID)
	if err != nil {
		return ImportOutcome{}, err
	}
	defer sess.release()

	conn, err := sess.pinWithin(ctx, s.Config.StatementTimeout)
	if err != nil {
		return ImportOutcome{}, err
	}
	defer func() { _ = conn.Close() }()

	importCtx, cancelImport := context.WithTimeout(ctx, s.Config.ImportTimeout)
	defer cancelImport()

	outcome = ImportOutcome{StatementsTotal: len(statements), Errors: make([]ImportError, 0)}
	for i, statement := range statements {
		if ctxErr := importCtx.Err(); ctxErr != nil {
			outcome.abort(len(statements)-i, s.importStopReason(ctx, ctxErr))
			break
		}

		stmtCtx, cancel := context.WithTimeout(importCtx, s.Config.StatementTimeout)
		_, execErr := conn.ExecContext(stmtCtx, statement.Text)
		classified := classify(stmtCtx, execErr)
		cancel()

		if execErr == nil {
			outcome.StatementsSucceeded++
			continue
		}

		outcome.Errors = append(outcome.Errors, ImportError{
			StatementIndex: i + 1,
			Line:           statement.Line,
			Statement:      preview(statement.Text),
			Message:        classified.Error(),
		})
		if isServerError(execErr) {
			continue
		}

		reason := "connection failed"
		switch {
		case importCtx.Err() != nil:
			reason = s.importStopReason(ctx, importCtx.Err())
		case errors.Is(classified, ErrDeadlineExceeded):
			reason = fmt.Sprintf("statement %d exceeded the %s timeout", i+1, s.Config.StatementTimeout)
		}
		outcome.abort(len(statements)-i-1, reason)
		if s.Logger != nil {
			s.Logger.WarnContext(ctx, "import aborted",
				slog.String("project_id", projectID),
				slog.Int("statement", i+1),
				slog.Int("skipped", outcome.StatementsSkipped),
				slog.Any("error", execErr),
			)
		}
		break
	}
	return outcome, nil
}

func (s *Service) importStopReason(parent context.Context, err error) string {
	if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("import exceeded the %s timeout", s.Config.ImportTimeout)
	}
	return err.Error()
}

func (o *ImportOutcome) abort(skipped int, reason string) {
	o.Aborted = true
	o.AbortReason = reason
	o.StatementsSkipped = skipped
}

func preview(statement string) string {
	runes := []rune(statement)
	if len(runes) <= statementPreviewLen {
		return statement
	}
	return string(runes[:statementPreviewLen]) + "…"
}
