package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tenantdb/tenantdb/internal/auth"
	"github.com/tenantdb/tenantdb/internal/config"
)

func TestHealthEndpoint(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{})

	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{})

	h := NewHandler(cfg, Dependencies{
		Readiness: func(rctx context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{
		"TENANTDB_AUTH_REQUIRED": "true",
	})
	validator, err := auth.NewStaticAPIKeyValidator("k1:owner-a:p1")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Admin:          newFakeAdmin(),
	})

	unauthResp := httptest.NewRecorder()
	h.ServeHTTP(unauthResp, httptest.NewRequest(http.MethodGet, "/v1/projects/p1/database/tables", nil))
	if unauthResp.Code != http.StatusUnauthorized {
		t.Fatalf("unauth status = %d", unauthResp.Code)
	}

	authReq := httptest.NewRequest(http.MethodGet, "/v1/projects/p1/database/tables", nil)
	authReq.Header.Set("X-API-Key", "k1")
	authResp := httptest.NewRecorder()
	h.ServeHTTP(authResp, authReq)
	if authResp.Code != http.StatusOK {
		t.Fatalf("auth status = %d, body=%s", authResp.Code, authResp.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(authResp.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if body["project_id"] != "p1" {
		t.Fatalf("project_id = %v", body["project_id"])
	}
}

func TestProtectedRouteRejectsForeignProject(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{
		"TENANTDB_AUTH_REQUIRED": "true",
	})
	validator, err := auth.NewStaticAPIKeyValidator("k1:owner-a:p1")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}
	admin := newFakeAdmin()
	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Admin:          admin,
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/projects/p2/database/reset", nil)
	req.Header.Set("Authorization", "Bearer k1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	assertErrorCode(t, rr, "FORBIDDEN")
	if admin.resetCalls != 0 {
		t.Fatalf("reset calls = %d, want 0", admin.resetCalls)
	}
}

func TestAuthRequiredWithoutMiddlewareFailsClosed(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{
		"TENANTDB_AUTH_REQUIRED": "true",
	})
	h := NewHandler(cfg, Dependencies{Admin: newFakeAdmin()})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/projects/p1/database/tables", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	assertErrorCode(t, rr, "AUTH_MIDDLEWARE_MISSING")
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	err := combined(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func TestCheckObjectStoreConfigIgnoresDisabledStore(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{})
	cfg.ObjectStore.Endpoint = ""
	if err := CheckObjectStoreConfig(cfg)(context.Background()); err != nil {
		t.Fatalf("CheckObjectStoreConfig() error = %v", err)
	}
	cfg.ObjectStore.Enabled = true
	if err := CheckObjectStoreConfig(cfg)(context.Background()); err == nil {
		t.Fatal("expected missing endpoint error")
	}
}

func loadTestConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load("tenantdb-api", mapLookup(env))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v, body=%s", err, rr.Body.String())
	}
	if body["error_code"] != want {
		t.Fatalf("error_code = %v, want %s (body=%s)", body["error_code"], want, rr.Body.String())
	}
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
