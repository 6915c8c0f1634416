package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"fileshare/internal/config"
	"fileshare/internal/database"
	"fileshare/internal/database/migration"
	"fileshare/internal/remote"
	"fileshare/internal/repository"
	"fileshare/internal/repository/postgres"
	"fileshare/internal/repository/rest"
	"fileshare/internal/storage"
)

// backends are the two stores the file service writes to.
type backends struct {
	Storage    storage.Storage
	Repository repository.FileRepository
	db         *sql.DB
}

func (b *backends) Close() {
	if b.db != nil {
		_ = b.db.Close()
	}
}

// buildBackends wires the configured object storage and metadata backends.
// The supabase and rest backends share one instrumented HTTP client.
func buildBackends(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*backends, error) {
	var client *remote.Client
	if cfg.StorageBackend == config.StorageBackendSupabase || cfg.MetadataBackend == config.MetadataBackendREST {
		client = remote.NewClient(remote.NewHTTPClient(cfg.RemoteTimeout()), cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	}

	b := &backends{}

	var err error
	switch cfg.StorageBackend {
	case config.StorageBackendSupabase:
		b.Storage, err = storage.NewSupabase(client, cfg.Bucket)
	case config.StorageBackendMinIO:
		b.Storage, err = storage.NewMinIO(cfg.MinIO, cfg.Bucket)
	default:
		err = fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}

	switch cfg.MetadataBackend {
	case config.MetadataBackendREST:
		b.Repository = rest.NewFileREST(client, cfg.Table)
	case config.MetadataBackendPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("metadata database: %w", err)
		}
		if err := migration.EnsureMigrated(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("metadata migration: %w", err)
		}
		b.db = db
		b.Repository = postgres.NewFilePostgres(db)
	default:
		return nil, fmt.Errorf("unknown metadata backend %q", cfg.MetadataBackend)
	}

	logger.Info("backends ready",
		slog.String("storage", cfg.StorageBackend),
		slog.String("metadata", cfg.MetadataBackend),
		slog.String("bucket", cfg.Bucket),
	)
	return b, nil
}
