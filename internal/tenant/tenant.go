package tenant

import (
	"context"
	"errors"
	"net"
	"strconv"
)

var (
	ErrNotFound       = errors.New("tenant: project not found")
	ErrNotProvisioned = errors.New("tenant: database not provisioned")
)

// Database holds the connection parameters of the single MySQL schema
// provisioned for a project.
type Database struct {
	ProjectID    string
	Host         string
	Port         int
	DatabaseName string
	Username     string
	Password     string
}

func (d Database) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// Resolver maps a project id to its tenant database. Implementations must
// return ErrNotFound for unknown projects and ErrNotProvisioned when the
// project exists but has no usable database yet.
type Resolver interface {
	Resolve(ctx context.Context, projectID string) (Database, error)
}

// Operation names a destructive or bulk action recorded in the audit trail.
type Operation string

const (
	OperationExport  Operation = "export"
	OperationImport  Operation = "import"
	OperationReset   Operation = "reset"
	OperationRestore Operation = "restore"
)

type AuditEntry struct {
	ProjectID        string
	Operation        Operation
	ObjectKey        string
	StatementsTotal  int
	StatementsFailed int
	TablesDropped    int
	Actor            string
}

type Auditor interface {
	RecordOperation(ctx context.Context, entry AuditEntry) error
}
