package api

import (
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/tenantdb/tenantdb/internal/archive"
	"github.com/tenantdb/tenantdb/internal/tenant"
)

type dumpItem struct {
	archive.Dump
	Size string `json:"size"`
}

func newDumpItem(dump archive.Dump) dumpItem {
	size := dump.SizeBytes
	if size < 0 {
		size = 0
	}
	return dumpItem{Dump: dump, Size: humanize.IBytes(uint64(size))}
}

func dumpArchiveFromRequest(deps Dependencies, w http.ResponseWriter, r *http.Request) (string, bool) {
	projectID, ok := projectFromRequest(deps, w, r)
	if !ok {
		return "", false
	}
	if deps.Archive == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "DUMP_ARCHIVE_NOT_CONFIGURED", "object storage for dumps is not configured", false, nil)
		return "", false
	}
	return projectID, true
}

func handleListDumps(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	projectID, ok := dumpArchiveFromRequest(deps, w, r)
	if !ok {
		return
	}
	dumps, err := deps.Archive.List(r.Context(), projectID)
	if err != nil {
		writeAdminError(r.Context(), w, err)
		return
	}
	items := make([]dumpItem, 0, len(dumps))
	for _, dump := range dumps {
		items = append(items, newDumpItem(dump))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": projectID,
		"dumps":      items,
	})
}

func handleSaveDump(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	projectID, ok := dumpArchiveFromRequest(deps, w, r)
	if !ok {
		return
	}
	dump, summary, err := deps.Archive.Save(r.Context(), projectID)
	if err != nil {
		writeAdminError(r.Context(), w, err)
		return
	}
	recordAudit(r.Context(), deps, tenant.AuditEntry{
		ProjectID: projectID,
		Operation: tenant.OperationExport,
		ObjectKey: dump.Key,
		Actor:     actorFromRequest(r),
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"dump":    newDumpItem(dump),
		"summary": summary,
	})
}

func handleRestoreDump(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	projectID, ok := dumpArchiveFromRequest(deps, w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	outcome, err := deps.Archive.Restore(r.Context(), projectID, name)
	if err != nil {
		writeAdminError(r.Context(), w, err)
		return
	}
	recordAudit(r.Context(), deps, tenant.AuditEntry{
		ProjectID:        projectID,
		Operation:        tenant.OperationRestore,
		ObjectKey:        name,
		StatementsTotal:  outcome.StatementsTotal,
		StatementsFailed: len(outcome.Errors),
		Actor:            actorFromRequest(r),
	})
	writeJSON(w, http.StatusOK, newImportResponse(outcome))
}

func handleDeleteDump(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	projectID, ok := dumpArchiveFromRequest(deps, w, r)
	if !ok {
		return
	}
	name := r.PathValue("name")
	if err := deps.Archive.Delete(r.Context(), projectID, name); err != nil {
		writeAdminError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "name": name})
}
