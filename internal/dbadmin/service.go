// Package dbadmin implements the owner-facing operations on a project's
// tenant database: catalog browsing, paginated reads, ad-hoc SQL, dump
// export and import, and destructive reset.
package dbadmin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tenantdb/tenantdb/internal/observability"
	"github.com/tenantdb/tenantdb/internal/tenant"
)

// Pools hands out pooled handles for tenant databases.
type Pools interface {
	Acquire(ctx context.Context, target tenant.Database) (*sql.DB, func(), error)
	Forget(projectID string)
}

type Config struct {
	QueryTimeout     time.Duration
	StatementTimeout time.Duration
	ExportTimeout    time.Duration
	ImportTimeout    time.Duration
	MaxResultRows    int
	MaxPageSize      int
	ExportBatchRows  int
	BlobPreviewBytes int
}

type Service struct {
	Resolver tenant.Resolver
	Pools    Pools
	Config   Config
	Logger   *slog.Logger
	Clock    func() time.Time
}

func (s *Service) ensureDefaults() {
	if s.Config.QueryTimeout <= 0 {
		s.Config.QueryTimeout = 30 * time.Second
	}
	if s.Config.StatementTimeout <= 0 {
		s.Config.StatementTimeout = 60 * time.Second
	}
	if s.Config.ExportTimeout <= 0 {
		s.Config.ExportTimeout = 10 * time.Minute
	}
	if s.Config.ImportTimeout <= 0 {
		s.Config.ImportTimeout = 10 * time.Minute
	}
	if s.Config.MaxResultRows <= 0 {
		s.Config.MaxResultRows = 10000
	}
	if s.Config.MaxPageSize <= 0 {
		s.Config.MaxPageSize = 100
	}
	if s.Config.ExportBatchRows <= 0 {
		s.Config.ExportBatchRows = 100
	}
	if s.Config.BlobPreviewBytes <= 0 {
		s.Config.BlobPreviewBytes = 64
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
}

// Credentials returns the connection parameters of the project's database.
func (s *Service) Credentials(ctx context.Context, projectID string) (tenant.Database, error) {
	s.ensureDefaults()
	if s.Resolver == nil {
		return tenant.Database{}, fmt.Errorf("resolver is required")
	}
	return s.Resolver.Resolve(ctx, projectID)
}

// session resolves the project and leases its pool.
type session struct {
	target  tenant.Database
	db      *sql.DB
	release func()
}

func (s *Service) openSession(ctx context.Context, projectID string) (session, error) {
	s.ensureDefaults()
	if s.Resolver == nil || s.Pools == nil {
		return session{}, fmt.Errorf("resolver and pools are required")
	}
	target, err := s.Resolver.Resolve(ctx, projectID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) || errors.Is(err, tenant.ErrNotProvisioned) {
			s.Pools.Forget(projectID)
		}
		return session{}, err
	}
	db, release, err := s.Pools.Acquire(ctx, target)
	if err != nil {
		return session{}, classify(ctx, err)
	}
	return session{target: target, db: db, release: release}, nil
}

// pin takes one connection from the pool so that session state such as
// SET FOREIGN_KEY_CHECKS applies to every following statement.
func (s session) pin(ctx context.Context) (*sql.Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return conn, nil
}

// pinWithin is pin with its own deadline. The wait for a free connection of
// a saturated pool is bounded by timeout; the returned connection is not.
func (s session) pinWithin(ctx context.Context, timeout time.Duration) (*sql.Conn, error) {
	pinCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.pin(pinCtx)
}

func (s *Service) observe(ctx context.Context, operation, projectID string, start time.Time, err error) {
	elapsed := time.Since(start)
	class := errorClass(err)
	observability.ObserveAdminOperation(operation, class, elapsed)
	if s.Logger == nil {
		return
	}
	if err != nil {
		s.Logger.WarnContext(ctx, "tenant database operation failed",
			slog.String("operation", operation),
			slog.String("project_id", projectID),
			slog.String("outcome", class),
			slog.String("duration", elapsed.String()),
			slog.Any("error", err),
		)
		return
	}
	s.Logger.DebugContext(ctx, "tenant database operation completed",
		slog.String("operation", operation),
		slog.String("project_id", projectID),
		slog.String("duration", elapsed.String()),
	)
}
