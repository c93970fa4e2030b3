package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/tenantdb/tenantdb/internal/tenant"
)

const statusReady = "ready"

// Defaults fill registry columns left NULL by the provisioner. Provisioned
// databases use the database name as both user name and password unless the
// row says otherwise.
type Defaults struct {
	Host string
	Port int
}

type Registry struct {
	db       *sql.DB
	defaults Defaults
}

func NewRegistry(db *sql.DB, defaults Defaults) *Registry {
	return &Registry{db: db, defaults: defaults}
}

func (r *Registry) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping registry db: %w", err)
	}
	return nil
}

func (r *Registry) Resolve(ctx context.Context, projectID string) (tenant.Database, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return tenant.Database{}, tenant.ErrNotFound
	}

	query := `
SELECT status, database_name, db_host, db_port, db_user, db_password
FROM project_database
WHERE project_id = $1`

	var (
		status       string
		databaseName sql.NullString
		host         sql.NullString
		port         sql.NullInt64
		user         sql.NullString
		password     sql.NullString
	)
	if err := r.db.QueryRowContext(ctx, query, projectID).Scan(
		&status,
		&databaseName,
		&host,
		&port,
		&user,
		&password,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tenant.Database{}, tenant.ErrNotFound
		}
		return tenant.Database{}, fmt.Errorf("resolve project database: %w", err)
	}

	name := strings.TrimSpace(databaseName.String)
	if status != statusReady || name == "" {
		return tenant.Database{}, fmt.Errorf("project %s is %q: %w", projectID, status, tenant.ErrNotProvisioned)
	}

	out := tenant.Database{
		ProjectID:    projectID,
		Host:         r.defaults.Host,
		Port:         r.defaults.Port,
		DatabaseName: name,
		Username:     name,
		Password:     name,
	}
	if host.Valid && strings.TrimSpace(host.String) != "" {
		out.Host = strings.TrimSpace(host.String)
	}
	if port.Valid && port.Int64 > 0 {
		out.Port = int(port.Int64)
	}
	if user.Valid && user.String != "" {
		out.Username = user.String
	}
	if password.Valid {
		out.Password = password.String
	}
	return out, nil
}
