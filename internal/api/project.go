package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tenantdb/tenantdb/internal/auth"
	"github.com/tenantdb/tenantdb/internal/tenant"
)

// projectFromRequest returns the project named in the URL after checking
// that the caller's identity covers it. It writes the error response and
// returns ok=false when the request must stop.
func projectFromRequest(deps Dependencies, w http.ResponseWriter, r *http.Request) (string, bool) {
	if deps.Admin == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DATABASE_ADMIN_NOT_CONFIGURED", "database admin dependency is not configured", false, nil)
		return "", false
	}
	projectID := strings.TrimSpace(r.PathValue("project"))
	if projectID == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "PROJECT_REQUIRED", "project path parameter is required", false, nil)
		return "", false
	}
	if err := requireProject(r, projectID); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return "", false
	}
	return projectID, true
}

// requireProject allows anonymous requests, which only reach handlers when
// auth is disabled.
func requireProject(r *http.Request, projectID string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	if identity.AllowsProject(projectID) {
		return nil
	}
	return fmt.Errorf("api key is not allowed to access project %q", projectID)
}

func actorFromRequest(r *http.Request) string {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return ""
	}
	return identity.Owner
}

func recordAudit(ctx context.Context, deps Dependencies, entry tenant.AuditEntry) {
	if deps.Auditor == nil {
		return
	}
	if err := deps.Auditor.RecordOperation(context.WithoutCancel(ctx), entry); err != nil && deps.Logger != nil {
		deps.Logger.WarnContext(ctx, "record audit entry failed",
			slog.String("project_id", entry.ProjectID),
			slog.String("operation", string(entry.Operation)),
			slog.Any("error", err),
		)
	}
}
