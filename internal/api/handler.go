package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tenantdb/tenantdb/internal/archive"
	"github.com/tenantdb/tenantdb/internal/config"
	"github.com/tenantdb/tenantdb/internal/dbadmin"
	"github.com/tenantdb/tenantdb/internal/observability"
	"github.com/tenantdb/tenantdb/internal/tenant"
)

type ReadinessCheck func(ctx context.Context) error

// DatabaseAdmin is the project database surface served by the API.
// *dbadmin.Service implements it.
type DatabaseAdmin interface {
	Credentials(ctx context.Context, projectID string) (tenant.Database, error)
	ListTables(ctx context.Context, projectID string) ([]dbadmin.TableDescriptor, error)
	DescribeTable(ctx context.Context, projectID, table string) ([]dbadmin.ColumnDescriptor, error)
	ReadRows(ctx context.Context, projectID, table string, page, limit int) (dbadmin.RowPage, error)
	Execute(ctx context.Context, projectID, sqlText string) (dbadmin.QueryResult, error)
	Export(ctx context.Context, projectID string, w io.Writer) (dbadmin.ExportSummary, error)
	Import(ctx context.Context, projectID, script string) (dbadmin.ImportOutcome, error)
	Reset(ctx context.Context, projectID string) (dbadmin.ResetOutcome, error)
}

type DumpArchive interface {
	Save(ctx context.Context, projectID string) (archive.Dump, dbadmin.ExportSummary, error)
	List(ctx context.Context, projectID string) ([]archive.Dump, error)
	Restore(ctx context.Context, projectID, name string) (dbadmin.ImportOutcome, error)
	Delete(ctx context.Context, projectID, name string) error
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Admin             DatabaseAdmin
	Archive           DumpArchive
	Auditor           tenant.Auditor
	DefaultPageSize   int
	MaxImportBytes    int64
	Clock             func() time.Time
}

const projectDatabasePath = "/v1/projects/{project}/database"

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	if deps.DefaultPageSize <= 0 {
		deps.DefaultPageSize = cfg.Admin.DefaultPageSize
	}
	if deps.MaxImportBytes <= 0 {
		deps.MaxImportBytes = cfg.Admin.MaxImportBytes
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	routes := []struct {
		pattern string
		handle  func(Dependencies, http.ResponseWriter, *http.Request)
	}{
		{"GET " + projectDatabasePath + "/credentials", handleCredentials},
		{"GET " + projectDatabasePath + "/tables", handleListTables},
		{"GET " + projectDatabasePath + "/tables/{table}", handleDescribeTable},
		{"GET " + projectDatabasePath + "/tables/{table}/data", handleTableData},
		{"POST " + projectDatabasePath + "/query", handleQuery},
		{"GET " + projectDatabasePath + "/export", handleExport},
		{"POST " + projectDatabasePath + "/import", handleImport},
		{"POST " + projectDatabasePath + "/reset", handleReset},
		{"GET " + projectDatabasePath + "/dumps", handleListDumps},
		{"POST " + projectDatabasePath + "/dumps", handleSaveDump},
		{"POST " + projectDatabasePath + "/dumps/{name}/restore", handleRestoreDump},
		{"DELETE " + projectDatabasePath + "/dumps/{name}", handleDeleteDump},
	}

	protected := http.NewServeMux()
	for _, route := range routes {
		handle := route.handle
		protected.HandleFunc(route.pattern, func(w http.ResponseWriter, r *http.Request) {
			handle(deps, w, r)
		})
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for _, route := range routes {
		mux.Handle(route.pattern, protectedHandler)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckRegistryDSN(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Registry.DSN == "" {
			return errors.New("registry dsn is not configured")
		}
		return nil
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.ObjectStore.Enabled {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
