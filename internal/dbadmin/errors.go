package dbadmin

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/tenantdb/tenantdb/internal/tenant"
)

var (
	ErrTableNotFound    = errors.New("dbadmin: table not found")
	ErrInvalidArgument  = errors.New("dbadmin: invalid argument")
	ErrDeadlineExceeded = errors.New("dbadmin: deadline exceeded")
	ErrUnavailable      = errors.New("dbadmin: database unavailable")
)

// ArgumentError is a caller mistake. Its message is safe to show as is.
type ArgumentError struct {
	Message string
}

func (e *ArgumentError) Error() string {
	return e.Message
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

func invalidArgument(format string, args ...any) error {
	return &ArgumentError{Message: fmt.Sprintf(format, args...)}
}

// ExecutionError is an error reported by the tenant database server for a
// statement. Message is the server text, unmodified.
type ExecutionError struct {
	Number   uint16
	SQLState string
	Message  string
}

func (e *ExecutionError) Error() string {
	return e.Message
}

// classify maps driver errors onto the package's error taxonomy. Server
// errors become *ExecutionError. Deadlines become ErrDeadlineExceeded. Any
// other failure means the connection itself is unusable.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return &ExecutionError{
			Number:   mysqlErr.Number,
			SQLState: string(mysqlErr.SQLState[:]),
			Message:  mysqlErr.Error(),
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrDeadlineExceeded, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// isServerError reports whether err was produced by the server for a single
// statement, leaving the session usable.
func isServerError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return true
	}
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}

func errorClass(err error) string {
	var execErr *ExecutionError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, tenant.ErrNotFound):
		return "project_not_found"
	case errors.Is(err, tenant.ErrNotProvisioned):
		return "not_provisioned"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrTableNotFound):
		return "table_not_found"
	case errors.As(err, &execErr):
		return "execution_error"
	case errors.Is(err, ErrDeadlineExceeded):
		return "deadline_exceeded"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
