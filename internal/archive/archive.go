// Package archive keeps SQL dumps of project databases in object storage so
// that a project owner can save the current state and restore it later.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tenantdb/tenantdb/internal/dbadmin"
	"github.com/tenantdb/tenantdb/internal/observability"
	"github.com/tenantdb/tenantdb/internal/storage"
	"github.com/tenantdb/tenantdb/internal/tenant"
)

var (
	ErrDumpNotFound = errors.New("archive: dump not found")
	ErrDumpTooLarge = errors.New("archive: dump exceeds restore size limit")

	errUploadStopped = errors.New("archive: dump upload stopped")
)

const contentTypeSQL = "application/sql"

// Admin is the subset of dbadmin.Service the archive drives.
type Admin interface {
	Credentials(ctx context.Context, projectID string) (tenant.Database, error)
	Export(ctx context.Context, projectID string, w io.Writer) (dbadmin.ExportSummary, error)
	Import(ctx context.Context, projectID, script string) (dbadmin.ImportOutcome, error)
}

type Dump struct {
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

type Options struct {
	// MaxRestoreBytes bounds the script read back on restore. Zero means
	// no limit.
	MaxRestoreBytes int64
	Logger          *slog.Logger
	Clock           func() time.Time
	NewID           func() string
}

type Archive struct {
	store           storage.ObjectStore
	admin           Admin
	maxRestoreBytes int64
	logger          *slog.Logger
	clock           func() time.Time
	newID           func() string
}

func New(store storage.ObjectStore, admin Admin, opts Options) *Archive {
	a := &Archive{
		store:           store,
		admin:           admin,
		maxRestoreBytes: opts.MaxRestoreBytes,
		logger:          opts.Logger,
		clock:           opts.Clock,
		newID:           opts.NewID,
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if a.clock == nil {
		a.clock = time.Now
	}
	if a.newID == nil {
		a.newID = func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:8] }
	}
	return a
}

// Save exports the project database straight into a new dump object. The
// export is streamed through a pipe so the script is never held in memory.
// A failed export leaves no object behind.
func (a *Archive) Save(ctx context.Context, projectID string) (dump Dump, summary dbadmin.ExportSummary, err error) {
	start := time.Now()
	defer func() { a.observe(ctx, "dump_save", projectID, start, err) }()

	target, err := a.admin.Credentials(ctx, projectID)
	if err != nil {
		return Dump{}, dbadmin.ExportSummary{}, err
	}
	createdAt := a.clock().UTC()
	key, err := storage.BuildDumpPath(projectID, target.DatabaseName, createdAt, a.newID())
	if err != nil {
		return Dump{}, dbadmin.ExportSummary{}, fmt.Errorf("build dump path: %w", err)
	}

	reader, writer := io.Pipe()
	exported := make(chan error, 1)
	go func() {
		var exportErr error
		summary, exportErr = a.admin.Export(ctx, projectID, writer)
		_ = writer.CloseWithError(exportErr)
		exported <- exportErr
	}()

	info, putErr := a.store.Put(ctx, key, reader, -1, storage.PutOptions{ContentType: contentTypeSQL})
	// Unblocks the exporter when Put gave up before draining the pipe.
	_ = reader.CloseWithError(errUploadStopped)
	exportErr := <-exported

	switch {
	case exportErr != nil && !errors.Is(exportErr, errUploadStopped):
		if putErr == nil {
			if deleteErr := a.store.Delete(context.WithoutCancel(ctx), key); deleteErr != nil {
				a.logger.WarnContext(ctx, "remove partial dump failed", slog.String("key", key), slog.Any("error", deleteErr))
			}
		}
		return Dump{}, summary, exportErr
	case putErr != nil:
		return Dump{}, summary, fmt.Errorf("upload dump %s: %w", key, putErr)
	case exportErr != nil:
		return Dump{}, summary, exportErr
	}

	size := info.Size
	if size <= 0 {
		size = summary.Bytes
	}
	return Dump{
		Name:      path.Base(key),
		Key:       key,
		SizeBytes: size,
		CreatedAt: createdAt,
	}, summary, nil
}

// List returns the project's dumps, newest first.
func (a *Archive) List(ctx context.Context, projectID string) ([]Dump, error) {
	prefix, err := storage.DumpPrefix(projectID)
	if err != nil {
		return nil, invalidName(err)
	}
	objects, err := a.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list dumps: %w", err)
	}
	dumps := make([]Dump, 0, len(objects))
	for i := len(objects) - 1; i >= 0; i-- {
		object := objects[i]
		if !strings.HasSuffix(object.Key, ".sql") {
			continue
		}
		dumps = append(dumps, Dump{
			Name:      path.Base(object.Key),
			Key:       object.Key,
			SizeBytes: object.Size,
			CreatedAt: object.LastModified.UTC(),
		})
	}
	return dumps, nil
}

// Restore replays a saved dump against the project database. The outcome
// follows Import: statement failures are reported, not returned as errors.
func (a *Archive) Restore(ctx context.Context, projectID, name string) (outcome dbadmin.ImportOutcome, err error) {
	start := time.Now()
	defer func() { a.observe(ctx, "dump_restore", projectID, start, err) }()

	key, err := storage.DumpPathForName(projectID, name)
	if err != nil {
		return dbadmin.ImportOutcome{}, invalidName(err)
	}
	body, err := a.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return dbadmin.ImportOutcome{}, fmt.Errorf("%s: %w", name, ErrDumpNotFound)
		}
		return dbadmin.ImportOutcome{}, fmt.Errorf("download dump %s: %w", key, err)
	}
	defer func() { _ = body.Close() }()

	var source io.Reader = body
	if a.maxRestoreBytes > 0 {
		source = io.LimitReader(body, a.maxRestoreBytes+1)
	}
	script, err := io.ReadAll(source)
	if err != nil {
		return dbadmin.ImportOutcome{}, fmt.Errorf("read dump %s: %w", key, err)
	}
	if a.maxRestoreBytes > 0 && int64(len(script)) > a.maxRestoreBytes {
		return dbadmin.ImportOutcome{}, fmt.Errorf("%s: %w", name, ErrDumpTooLarge)
	}
	return a.admin.Import(ctx, projectID, string(script))
}

func (a *Archive) Delete(ctx context.Context, projectID, name string) error {
	key, err := storage.DumpPathForName(projectID, name)
	if err != nil {
		return invalidName(err)
	}
	if _, err := a.store.Stat(ctx, key); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("%s: %w", name, ErrDumpNotFound)
		}
		return fmt.Errorf("stat dump %s: %w", key, err)
	}
	if err := a.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete dump %s: %w", key, err)
	}
	a.logger.InfoContext(ctx, "dump deleted", slog.String("project_id", projectID), slog.String("key", key))
	return nil
}

func (a *Archive) observe(ctx context.Context, operation, projectID string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	elapsed := time.Since(start)
	observability.ObserveAdminOperation(operation, outcome, elapsed)
	if err != nil {
		a.logger.WarnContext(ctx, "dump archive operation failed",
			slog.String("operation", operation),
			slog.String("project_id", projectID),
			slog.Any("error", err),
		)
		return
	}
	a.logger.InfoContext(ctx, "dump archive operation completed",
		slog.String("operation", operation),
		slog.String("project_id", projectID),
		slog.String("duration", elapsed.String()),
	)
}

func invalidName(err error) error {
	return &dbadmin.ArgumentError{Message: err.Error()}
}
