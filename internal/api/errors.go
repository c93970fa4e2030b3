package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tenantdb/tenantdb/internal/archive"
	"github.com/tenantdb/tenantdb/internal/dbadmin"
	"github.com/tenantdb/tenantdb/internal/tenant"
)

// writeAdminError maps project database errors onto the error envelope.
// Server-reported statement errors keep their raw text; infrastructure
// failures are reported without internal details.
func writeAdminError(ctx context.Context, w http.ResponseWriter, err error) {
	var execErr *dbadmin.ExecutionError
	switch {
	case errors.Is(err, tenant.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "PROJECT_NOT_FOUND", "project was not found", false, nil)
	case errors.Is(err, tenant.ErrNotProvisioned):
		writeError(ctx, w, http.StatusConflict, "DATABASE_NOT_PROVISIONED", "project database is not provisioned", false, nil)
	case errors.Is(err, dbadmin.ErrTableNotFound):
		writeError(ctx, w, http.StatusNotFound, "TABLE_NOT_FOUND", "table was not found", false, nil)
	case errors.Is(err, archive.ErrDumpNotFound):
		writeError(ctx, w, http.StatusNotFound, "DUMP_NOT_FOUND", "dump was not found", false, nil)
	case errors.Is(err, archive.ErrDumpTooLarge):
		writeError(ctx, w, http.StatusRequestEntityTooLarge, "DUMP_TOO_LARGE", "dump exceeds the import size limit", false, nil)
	case errors.Is(err, dbadmin.ErrInvalidArgument):
		writeError(ctx, w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), false, nil)
	case errors.As(err, &execErr):
		writeError(ctx, w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", execErr.Message, false, map[string]any{
			"error_number": execErr.Number,
			"sql_state":    execErr.SQLState,
		})
	case errors.Is(err, dbadmin.ErrDeadlineExceeded):
		writeError(ctx, w, http.StatusGatewayTimeout, "QUERY_TIMEOUT", "operation exceeded its time limit", true, nil)
	case errors.Is(err, dbadmin.ErrUnavailable):
		writeError(ctx, w, http.StatusBadGateway, "DATABASE_UNAVAILABLE", "project database is unavailable", true, nil)
	case errors.Is(err, context.Canceled):
		writeError(ctx, w, http.StatusRequestTimeout, "REQUEST_CANCELED", "request was canceled", false, nil)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", true, nil)
	}
}
