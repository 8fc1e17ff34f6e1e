// Package gorm provides the GORM-backed database connection of the readings
// store. Concrete drivers register a dialector factory from their own
// subpackage init, so binaries choose their drivers with blank imports.
package gorm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/fx"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/tigerroll/gapfill/pkg/impute/core/config"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
	"github.com/tigerroll/gapfill/pkg/impute/support/util/logger"
)

// DialectorFactory builds a gorm.Dialector from the database configuration.
type DialectorFactory func(cfg config.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// GetDialectorFactory retrieves the DialectorFactory for the given DB type.
func GetDialectorFactory(dbType string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dbType]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s (missing driver import?)", dbType)
	}
	return factory, nil
}

// GormWriter redirects GORM log output to the application logger.
// SQL statements go to DEBUG, everything else to INFO.
type GormWriter struct{}

// Printf implements the gorm logger Writer interface.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if strings.Contains(msg, "SELECT") || strings.Contains(msg, "INSERT") ||
		strings.Contains(msg, "UPDATE") || strings.Contains(msg, "DELETE") {
		logger.Debugf("[GORM] %s", msg)
	} else {
		logger.Infof("[GORM] %s", msg)
	}
}

func newGormLogger() gorm_logger.Interface {
	return gorm_logger.New(&GormWriter{}, gorm_logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gorm_logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Connect opens a GORM connection for the configured database type and
// applies the pool settings.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	factory, err := GetDialectorFactory(cfg.Type)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, "database",
			fmt.Sprintf("failed to resolve dialector for '%s'", cfg.Type), err)
	}
	dialector, err := factory(cfg)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, "database",
			fmt.Sprintf("failed to create dialector for '%s'", cfg.Type), err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, "database",
			fmt.Sprintf("failed to open '%s' connection", cfg.Type), err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, "database",
			"failed to get underlying sql.DB", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	if cfg.Pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.Pool.ConnMaxLifetime) * time.Second)
	}

	logger.Infof("Established database connection (%s)", cfg.Type)
	return db, nil
}

// NewDatabase is the fx provider of the readings store connection, closed on
// application stop.
func NewDatabase(lc fx.Lifecycle, cfg *config.Config) (*gorm.DB, error) {
	db, err := Connect(cfg.Gapfill.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			logger.Infof("Closing database connection...")
			return sqlDB.Close()
		},
	})
	return db, nil
}

// Module is an Fx module that provides the GORM database connection.
var Module = fx.Options(
	fx.Provide(NewDatabase),
)
