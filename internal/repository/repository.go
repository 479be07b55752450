// Package repository opens the storage backend selected by configuration.
package repository

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/rule"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/sqlite"
)

// Repositories bundles the repositories of one storage backend.
type Repositories struct {
	Driver  string
	Records attendance.RecordRepository
	Catalog rule.CatalogRepository
	Persons rule.PersonRepository

	migrate func(ctx context.Context) error
	close   func()
}

// Open connects to the configured backend.
func Open(ctx context.Context, cfg *config.Config) (*Repositories, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolConfig{
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return &Repositories{
			Driver:  config.DriverPostgres,
			Records: postgresql.NewRecordRepository(db),
			Catalog: postgresql.NewCatalogRepository(db),
			Persons: postgresql.NewPersonRepository(db),
			migrate: func(ctx context.Context) error { return postgresql.Migrate(ctx, db) },
			close:   db.Close,
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Repositories{
			Driver:  config.DriverSQLite,
			Records: sqlite.NewRecordRepository(db),
			Catalog: sqlite.NewCatalogRepository(db),
			Persons: sqlite.NewPersonRepository(db),
			migrate: func(ctx context.Context) error { return sqlite.Migrate(ctx, db) },
			close:   func() { _ = db.Close() },
		}, nil
	}

	return nil, fmt.Errorf("unsupported storage driver %q", cfg.Database.Driver)
}

// Migrate applies the backend's embedded schema.
func (r *Repositories) Migrate(ctx context.Context) error {
	return r.migrate(ctx)
}

func (r *Repositories) Close() {
	r.close()
}
