package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/tenantdb/tenantdb/internal/dbadmin"
)

type tableItem struct {
	Name      string `json:"name"`
	Rows      int64  `json:"rows"`
	Size      string `json:"size"`
	SizeBytes int64  `json:"size_bytes"`
}

func handleCredentials(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectFromRequest(deps, w, r)
	if !ok {
		return
	}
	target, err := deps.Admin.Credentials(r.Context(), projectID)
	if err != nil {
		writeAdminError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": projectID,
		"host":       target.Host,
		"port":       target.Port,
		"database":   target.DatabaseName,
		"username":   target.Username,
		"password":   target.Password,
	})
}

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectFromRequest(deps, w, r)
	if !ok {
		return
	}
	tables, err := deps.Admin.ListTables(r.Context(), projectID)
	if err != nil {
		writeAdminError(r.Context(), w, err)
		return
	}
	items := make([]tableItem, 0, len(tables))
	for _, table := range tables {
		size := table.SizeBytes
		if size < 0 {
			size = 0
		}
		items = append(items, tableItem{
			Name:      table.Name,
			Rows:      table.EstimatedRows,
			Size:      humanize.IBytes(uint64(size)),
			SizeBytes: table.SizeBytes,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": projectID,
		"tables":     items,
	})
}

func handleDescribeTable(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectFromRequest(deps, w, r)
	if !ok {
		return
	}
	table := r.PathValue("table")
	columns, err := deps.Admin.DescribeTable(r.Context(), projectID, table)
	if err != nil {
		writeAdminError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":   table,
		"columns": columns,
	})
}

func handleTableData(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectFromRequest(deps, w, r)
	if !ok {
		return
	}
	page, err := intQueryParam(r, "page", 1)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), false, nil)
		return
	}
	limit, err := intQueryParam(r, "limit", deps.DefaultPageSize)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), false, nil)
		return
	}

	result, err := deps.Admin.ReadRows(r.Context(), projectID, r.PathValue("table"), page, limit)
	if err != nil {
		writeAdminError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func intQueryParam(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &dbadmin.ArgumentError{Message: name + " must be an integer"}
	}
	return value, nil
}
