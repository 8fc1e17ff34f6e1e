// Package migration applies the embedded schema migrations of the gapfill
// store through golang-migrate. It is intended for local and development
// bootstrap; production schemas are usually owned by a separate pipeline.
package migration

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	config "github.com/tigerroll/gapfill/pkg/impute/core/config"
	exception "github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	logger "github.com/tigerroll/gapfill/pkg/impute/support/util/logger"
)

const moduleName = "migration"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded DDL to the configured store.
type Migrator struct {
	db     *gorm.DB
	dbType string
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *gorm.DB, cfg *config.Config) *Migrator {
	return &Migrator{db: db, dbType: cfg.Gapfill.Database.Type}
}

// databaseDriver retrieves a migrate/v4 Driver based on the database type.
func (m *Migrator) databaseDriver(sqlDB *sql.DB) (database.Driver, error) {
	switch m.dbType {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{})
	case "sqlite", "":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.dbType)
	}
}

func (m *Migrator) instance() (*migrate.Migrate, error) {
	sqlDB, err := m.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source driver: %w", err)
	}

	dbDriver, err := m.databaseDriver(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	return migrate.NewWithInstance("iofs", sourceDriver, m.dbType, dbDriver)
}

// Up applies all pending migrations. An already current schema is not an error.
func (m *Migrator) Up(ctx context.Context) error {
	logger.Infof("Applying schema migrations (DB: %s)", m.dbType)

	inst, err := m.instance()
	if err != nil {
		return exception.NewEngineError(exception.KindStoreUnavailable, moduleName, "failed to create migrate instance", err)
	}

	if err := inst.Up(); err != nil && err != migrate.ErrNoChange {
		return exception.NewEngineError(exception.KindStoreUnavailable, moduleName, "schema migration failed", err)
	}

	version, dirty, err := inst.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return exception.NewEngineError(exception.KindStoreUnavailable, moduleName, "failed to read schema version", err)
	}
	logger.Infof("Schema migrations applied (version=%d, dirty=%t).", version, dirty)
	return nil
}
