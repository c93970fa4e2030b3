package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tenantdb/tenantdb/internal/dbadmin"
	"github.com/tenantdb/tenantdb/internal/tenant"
)

func TestWriteAdminErrorMapping(t *testing.T) {
	tests := []struct {
		err       error
		status    int
		code      string
		retryable bool
	}{
		{err: tenant.ErrNotFound, status: http.StatusNotFound, code: "PROJECT_NOT_FOUND"},
		{err: fmt.Errorf("project p1 is %q: %w", "provisioning", tenant.ErrNotProvisioned), status: http.StatusConflict, code: "DATABASE_NOT_PROVISIONED"},
		{err: dbadmin.ErrTableNotFound, status: http.StatusNotFound, code: "TABLE_NOT_FOUND"},
		{err: &dbadmin.ArgumentError{Message: "limit must be between 1 and 100"}, status: http.StatusBadRequest, code: "INVALID_ARGUMENT"},
		{err: &dbadmin.ExecutionError{Number: 1064, Message: "Error 1064 (42000): syntax"}, status: http.StatusBadRequest, code: "QUERY_EXECUTION_FAILED"},
		{err: fmt.Errorf("%w: context deadline exceeded", dbadmin.ErrDeadlineExceeded), status: http.StatusGatewayTimeout, code: "QUERY_TIMEOUT", retryable: true},
		{err: fmt.Errorf("%w: dial tcp: refused", dbadmin.ErrUnavailable), status: http.StatusBadGateway, code: "DATABASE_UNAVAILABLE", retryable: true},
		{err: fmt.Errorf("boom"), status: http.StatusInternalServerError, code: "INTERNAL_ERROR", retryable: true},
	}
	for _, tc := range tests {
		rr := httptest.NewRecorder()
		writeAdminError(context.Background(), rr, tc.err)
		if rr.Code != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, rr.Code, tc.status)
		}
		assertErrorCode(t, rr, tc.code)
		if retryable := decodeBody(t, rr)["retryable"]; retryable != tc.retryable {
			t.Fatalf("%v: retryable = %v, want %v", tc.err, retryable, tc.retryable)
		}
	}
}

func TestWriteAdminErrorHidesInfrastructureDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	writeAdminError(context.Background(), rr, fmt.Errorf("%w: dial tcp 10.0.0.7:3306: connect: connection refused", dbadmin.ErrUnavailable))
	if message := decodeBody(t, rr)["message"]; message != "project database is unavailable" {
		t.Fatalf("message = %v", message)
	}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	return body
}
