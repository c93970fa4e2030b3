package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tenantdb/tenantdb/internal/api"
	"github.com/tenantdb/tenantdb/internal/archive"
	"github.com/tenantdb/tenantdb/internal/auth"
	"github.com/tenantdb/tenantdb/internal/config"
	"github.com/tenantdb/tenantdb/internal/dbadmin"
	"github.com/tenantdb/tenantdb/internal/dbpool"
	"github.com/tenantdb/tenantdb/internal/observability"
	s3store "github.com/tenantdb/tenantdb/internal/storage/s3"
	tenantpostgres "github.com/tenantdb/tenantdb/internal/tenant/postgres"
)

func main() {
	cfg, err := config.LoadFromEnv("tenantdb-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	registryDB, err := tenantpostgres.Open(context.Background(), tenantpostgres.DBConfig{
		DSN:             cfg.Registry.DSN,
		MaxOpenConns:    cfg.Registry.MaxOpenConns,
		MaxIdleConns:    cfg.Registry.MaxIdleConns,
		ConnMaxIdleTime: cfg.Registry.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Registry.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open registry db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = registryDB.Close() }()

	registry := tenantpostgres.NewRegistry(registryDB, tenantpostgres.Defaults{
		Host: cfg.Tenant.DefaultHost,
		Port: cfg.Tenant.DefaultPort,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pools := dbpool.New(dbpool.Config{
		MaxOpenConns:    cfg.Tenant.MaxOpenConns,
		MaxIdleConns:    cfg.Tenant.MaxIdleConns,
		ConnMaxLifetime: cfg.Tenant.ConnMaxLifetime,
		IdleEvictAfter:  cfg.Tenant.IdleEvictAfter,
		EvictInterval:   cfg.Tenant.EvictInterval,
		DialTimeout:     cfg.Tenant.DialTimeout,
		ReadTimeout:     cfg.Tenant.ReadTimeout,
		WriteTimeout:    cfg.Tenant.WriteTimeout,
	}, logger)
	defer pools.Close()
	go func() {
		if err := pools.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("tenant pool evictor stopped", slog.Any("error", err))
		}
	}()

	admin := &dbadmin.Service{
		Resolver: registry,
		Pools:    pools,
		Config: dbadmin.Config{
			QueryTimeout:     cfg.Admin.QueryTimeout,
			StatementTimeout: cfg.Admin.StatementTimeout,
			ExportTimeout:    cfg.Admin.ExportTimeout,
			ImportTimeout:    cfg.Admin.ImportTimeout,
			MaxResultRows:    cfg.Admin.MaxResultRows,
			MaxPageSize:      cfg.Admin.MaxPageSize,
			ExportBatchRows:  cfg.Admin.ExportBatchRows,
			BlobPreviewBytes: cfg.Admin.BlobPreviewBytes,
		},
		Logger: logger,
	}

	deps := api.Dependencies{
		Logger:  logger,
		Admin:   admin,
		Auditor: registry,
		Readiness: api.CombineReadinessChecks(
			api.CheckRegistryDSN(cfg),
			registry.HealthCheck,
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}

	if cfg.ObjectStore.Enabled {
		objectStore, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		deps.Archive = archive.New(objectStore, admin, archive.Options{
			MaxRestoreBytes: cfg.Admin.MaxImportBytes,
			Logger:          logger,
		})
	}

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.Bool("dump_archive", deps.Archive != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
