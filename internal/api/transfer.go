package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/tenantdb/tenantdb/internal/dbadmin"
	"github.com/tenantdb/tenantdb/internal/tenant"
)

type importRequest struct {
	SQL string `json:"sql"`
}

type importResponse struct {
	Success bool `json:"success"`
	dbadmin.ImportOutcome
}

type resetResponse struct {
	Success bool `json:"success"`
	dbadmin.ResetOutcome
}

func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectFromRequest(deps, w, r)
	if !ok {
		return
	}
	target, err := deps.Admin.Credentials(r.Context(), projectID)
	if err != nil {
		writeAdminError(r.Context(), w, err)
		return
	}

	filename := dbadmin.DumpFilename(target.DatabaseName, deps.Clock())
	out := &attachmentWriter{w: w, filename: filename}
	summary, err := deps.Admin.Export(r.Context(), projectID, out)
	if err != nil {
		if !out.started {
			writeAdminError(r.Context(), w, err)
			return
		}
		if deps.Logger != nil {
			deps.Logger.ErrorContext(r.Context(), "export aborted mid-stream",
				slog.String("project_id", projectID),
				slog.Int64("bytes", summary.Bytes),
				slog.Any("error", err),
			)
		}
		// Headers are already sent. Abort so the client sees a truncated transfer.
		panic(http.ErrAbortHandler)
	}
	out.start()

	recordAudit(r.Context(), deps, tenant.AuditEntry{
		ProjectID: projectID,
		Operation: tenant.OperationExport,
		ObjectKey: filename,
		Actor:     actorFromRequest(r),
	})
}

// attachmentWriter defers the download headers until the first byte so an
// export that fails early can still answer with a JSON error.
type attachmentWriter struct {
	w        http.ResponseWriter
	filename string
	started  bool
}

func (a *attachmentWriter) start() {
	if a.started {
		return
	}
	a.started = true
	header := a.w.Header()
	header.Set("Content-Type", "application/sql; charset=utf-8")
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.filename}))
	a.w.WriteHeader(http.StatusOK)
}

func (a *attachmentWriter) Write(p []byte) (int, error) {
	a.start()
	return a.w.Write(p)
}

func handleImport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectFromRequest(deps, w, r)
	if !ok {
		return
	}
	script, err := readImportScript(w, r, deps.MaxImportBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(r.Context(), w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "import script exceeds the size limit", false, map[string]any{"limit_bytes": tooLarge.Limit})
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_IMPORT_BODY", "invalid import request body", false, map[string]any{"details": err.Error()})
		return
	}

	outcome, err := deps.Admin.Import(r.Context(), projectID, script)
	if err != nil {
		writeAdminError(r.Context(), w, err)
		return
	}
	recordAudit(r.Context(), deps, tenant.AuditEntry{
		ProjectID:        projectID,
		Operation:        tenant.OperationImport,
		StatementsTotal:  outcome.StatementsTotal,
		StatementsFailed: len(outcome.Errors),
		Actor:            actorFromRequest(r),
	})
	writeJSON(w, http.StatusOK, newImportResponse(outcome))
}

// readImportScript accepts a JSON body {"sql": "..."}, a multipart upload
// in the "file" field, or the raw script as the request body.
func readImportScript(w http.ResponseWriter, r *http.Request, maxBytes int64) (string, error) {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var request importRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&request); err != nil {
			return "", err
		}
		return request.SQL, nil
	case "multipart/form-data":
		file, _, err := r.FormFile("file")
		if err != nil {
			return "", fmt.Errorf("read uploaded file: %w", err)
		}
		defer func() { _ = file.Close() }()
		script, err := io.ReadAll(file)
		if err != nil {
			return "", err
		}
		return string(script), nil
	default:
		script, err := io.ReadAll(r.Body)
		if err != nil {
			return "", err
		}
		return string(script), nil
	}
}

func newImportResponse(outcome dbadmin.ImportOutcome) importResponse {
	if outcome.Errors == nil {
		outcome.Errors = []dbadmin.ImportError{}
	}
	return importResponse{Success: outcome.Success(), ImportOutcome: outcome}
}

func handleReset(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectFromRequest(deps, w, r)
	if !ok {
		return
	}
	outcome, err := deps.Admin.Reset(r.Context(), projectID)
	if err != nil {
		writeAdminError(r.Context(), w, err)
		return
	}
	recordAudit(r.Context(), deps, tenant.AuditEntry{
		ProjectID:     projectID,
		Operation:     tenant.OperationReset,
		TablesDropped: outcome.Dropped,
		Actor:         actorFromRequest(r),
	})
	if outcome.Errors == nil {
		outcome.Errors = []dbadmin.ResetError{}
	}
	writeJSON(w, http.StatusOK, resetResponse{Success: outcome.Success(), ResetOutcome: outcome})
}
