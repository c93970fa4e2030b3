package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tenantdb/tenantdb/internal/dbadmin"
)

type queryRequest struct {
	Query string `json:"query"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	projectID, ok := projectFromRequest(deps, w, r)
	if !ok {
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Query) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_ARGUMENT", "query is required", false, nil)
		return
	}

	result, err := deps.Admin.Execute(r.Context(), projectID, request.Query)
	if err != nil {
		writeAdminError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, newQueryResponse(result))
}

func newQueryResponse(result dbadmin.QueryResult) map[string]any {
	response := map[string]any{
		"kind":        result.Kind(),
		"duration":    result.Duration.String(),
		"duration_ms": result.Duration.Milliseconds(),
	}
	if result.Read != nil {
		rows := result.Read.Rows
		if rows == nil {
			rows = []dbadmin.Record{}
		}
		response["columns"] = result.Read.Columns
		response["rows"] = rows
		response["truncated"] = result.Read.Truncated
		return response
	}
	affected := int64(0)
	if result.Write != nil {
		affected = result.Write.RowsAffected
	}
	response["rows_affected"] = affected
	return response
}
