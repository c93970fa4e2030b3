package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tenantdb/tenantdb/internal/dbadmin"
)

func TestQueryEndpointReturnsReadResult(t *testing.T) {
	admin := newFakeAdmin()
	admin.result = dbadmin.QueryResult{
		Read: &dbadmin.ReadResult{
			Columns: []string{"id", "id_2"},
			Rows:    []dbadmin.Record{dbadmin.NewRecord([]string{"id", "id_2"}, []any{"1", "7"})},
		},
		Duration: 12 * time.Millisecond,
	}
	h := NewHandler(loadTestConfig(t, map[string]string{}), Dependencies{Admin: admin})

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/p1/database/query", strings.NewReader(`{"query":"SELECT u.id, p.id FROM users u JOIN posts p"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body["kind"] != "read" {
		t.Fatalf("kind = %v", body["kind"])
	}
	columns, _ := body["columns"].([]any)
	if len(columns) != 2 {
		t.Fatalf("columns = %#v", body["columns"])
	}
	if body["duration_ms"] != float64(12) {
		t.Fatalf("duration_ms = %v", body["duration_ms"])
	}
	if _, ok := body["rows_affected"]; ok {
		t.Fatal("read result must not carry rows_affected")
	}
	if !strings.Contains(rr.Body.String(), `"rows":[{"id":"1","id_2":"7"}]`) {
		t.Fatalf("rows = %s, want records keyed by column", rr.Body.String())
	}
	if len(admin.queries) != 1 || !strings.HasPrefix(admin.queries[0], "SELECT u.id") {
		t.Fatalf("queries = %#v", admin.queries)
	}
}

func TestQueryEndpointReturnsWriteResult(t *testing.T) {
	admin := newFakeAdmin()
	admin.result = dbadmin.QueryResult{Write: &dbadmin.WriteResult{RowsAffected: 0}, Duration: time.Millisecond}
	h := NewHandler(loadTestConfig(t, map[string]string{}), Dependencies{Admin: admin})

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/p1/database/query", strings.NewReader(`{"query":"UPDATE users SET email = email WHERE 1 = 0"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body["kind"] != "write" || body["rows_affected"] != float64(0) {
		t.Fatalf("body = %#v", body)
	}
	if _, ok := body["columns"]; ok {
		t.Fatal("write result must not carry columns")
	}
}

func TestQueryEndpointRejectsEmptyAndMalformedBodies(t *testing.T) {
	admin := newFakeAdmin()
	h := NewHandler(loadTestConfig(t, map[string]string{}), Dependencies{Admin: admin})

	tests := []struct {
		body string
		code string
	}{
		{body: `{"query":"   "}`, code: "INVALID_ARGUMENT"},
		{body: `{"sql":"SELECT 1"}`, code: "INVALID_JSON"},
		{body: `not json`, code: "INVALID_JSON"},
	}
	for _, tc := range tests {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/projects/p1/database/query", strings.NewReader(tc.body)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q status = %d", tc.body, rr.Code)
		}
		assertErrorCode(t, rr, tc.code)
	}
	if len(admin.queries) != 0 {
		t.Fatalf("queries = %#v, want none", admin.queries)
	}
}

func TestQueryEndpointSurfacesServerErrorText(t *testing.T) {
	admin := newFakeAdmin()
	admin.err = &dbadmin.ExecutionError{Number: 1146, SQLState: "42S02", Message: "Error 1146 (42S02): Table 'proj_p1.nope' doesn't exist"}
	h := NewHandler(loadTestConfig(t, map[string]string{}), Dependencies{Admin: admin})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/projects/p1/database/query", strings.NewReader(`{"query":"SELECT * FROM nope"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body["error_code"] != "QUERY_EXECUTION_FAILED" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
	if body["message"] != "Error 1146 (42S02): Table 'proj_p1.nope' doesn't exist" {
		t.Fatalf("message = %v", body["message"])
	}
}
