package api

import (
	"context"
	"io"
	"sync"

	"github.com/tenantdb/tenantdb/internal/archive"
	"github.com/tenantdb/tenantdb/internal/dbadmin"
	"github.com/tenantdb/tenantdb/internal/tenant"
)

type fakeAdmin struct {
	mu sync.Mutex

	err error

	tables   []dbadmin.TableDescriptor
	columns  map[string][]dbadmin.ColumnDescriptor
	page     dbadmin.RowPage
	result   dbadmin.QueryResult
	script   string
	exportFn func(w io.Writer) (dbadmin.ExportSummary, error)
	outcome  dbadmin.ImportOutcome
	reset    dbadmin.ResetOutcome

	readCalls  []readCall
	queries    []string
	imported   []string
	resetCalls int
}

type readCall struct {
	table string
	page  int
	limit int
}

func newFakeAdmin() *fakeAdmin {
	return &fakeAdmin{
		tables: []dbadmin.TableDescriptor{
			{Name: "posts", EstimatedRows: 12, SizeBytes: 16384},
			{Name: "users", EstimatedRows: 3, SizeBytes: 2 << 20},
		},
		columns: map[string][]dbadmin.ColumnDescriptor{
			"users": {
				{Name: "id", DeclaredType: "int", KeyRole: dbadmin.KeyPrimary, Extra: "auto_increment"},
				{Name: "email", DeclaredType: "varchar(255)", KeyRole: dbadmin.KeyUnique},
			},
		},
	}
}

func (f *fakeAdmin) Credentials(_ context.Context, projectID string) (tenant.Database, error) {
	if f.err != nil {
		return tenant.Database{}, f.err
	}
	name := "proj_" + projectID
	return tenant.Database{ProjectID: projectID, Host: "paas-mysql", Port: 3306, DatabaseName: name, Username: name, Password: name}, nil
}

func (f *fakeAdmin) ListTables(context.Context, string) ([]dbadmin.TableDescriptor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tables, nil
}

func (f *fakeAdmin) DescribeTable(_ context.Context, _ string, table string) ([]dbadmin.ColumnDescriptor, error) {
	if f.err != nil {
		return nil, f.err
	}
	columns, ok := f.columns[table]
	if !ok {
		return nil, dbadmin.ErrTableNotFound
	}
	return columns, nil
}

func (f *fakeAdmin) ReadRows(_ context.Context, _ string, table string, page, limit int) (dbadmin.RowPage, error) {
	f.mu.Lock()
	f.readCalls = append(f.readCalls, readCall{table: table, page: page, limit: limit})
	f.mu.Unlock()
	if f.err != nil {
		return dbadmin.RowPage{}, f.err
	}
	out := f.page
	out.Page = page
	out.Limit = limit
	return out, nil
}

func (f *fakeAdmin) Execute(_ context.Context, _ string, sqlText string) (dbadmin.QueryResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, sqlText)
	f.mu.Unlock()
	if f.err != nil {
		return dbadmin.QueryResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeAdmin) Export(_ context.Context, projectID string, w io.Writer) (dbadmin.ExportSummary, error) {
	if f.exportFn != nil {
		return f.exportFn(w)
	}
	if f.err != nil {
		return dbadmin.ExportSummary{}, f.err
	}
	n, err := io.WriteString(w, f.script)
	return dbadmin.ExportSummary{Database: "proj_" + projectID, Bytes: int64(n)}, err
}

func (f *fakeAdmin) Import(_ context.Context, _ string, script string) (dbadmin.ImportOutcome, error) {
	f.mu.Lock()
	f.imported = append(f.imported, script)
	f.mu.Unlock()
	if f.err != nil {
		return dbadmin.ImportOutcome{}, f.err
	}
	return f.outcome, nil
}

func (f *fakeAdmin) Reset(context.Context, string) (dbadmin.ResetOutcome, error) {
	f.mu.Lock()
	f.resetCalls++
	f.mu.Unlock()
	if f.err != nil {
		return dbadmin.ResetOutcome{}, f.err
	}
	return f.reset, nil
}

type fakeAuditor struct {
	mu      sync.Mutex
	entries []tenant.AuditEntry
	err     error
}

func (f *fakeAuditor) RecordOperation(_ context.Context, entry tenant.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return f.err
}

type fakeArchive struct {
	dumps    []archive.Dump
	saved    archive.Dump
	outcome  dbadmin.ImportOutcome
	err      error
	restored []string
	deleted  []string
}

func (f *fakeArchive) Save(context.Context, string) (archive.Dump, dbadmin.ExportSummary, error) {
	if f.err != nil {
		return archive.Dump{}, dbadmin.ExportSummary{}, f.err
	}
	return f.saved, dbadmin.ExportSummary{Database: "proj_p1", Tables: 2, Rows: 15, Bytes: f.saved.SizeBytes}, nil
}

func (f *fakeArchive) List(context.Context, string) ([]archive.Dump, error) {
	return f.dumps, f.err
}

func (f *fakeArchive) Restore(_ context.Context, _ string, name string) (dbadmin.ImportOutcome, error) {
	f.restored = append(f.restored, name)
	if f.err != nil {
		return dbadmin.ImportOutcome{}, f.err
	}
	return f.outcome, nil
}

func (f *fakeArchive) Delete(_ context.Context, _ string, name string) error {
	f.deleted = append(f.deleted, name)
	return f.err
}
