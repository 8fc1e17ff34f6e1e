// Package postgres registers the PostgreSQL dialector for the readings store.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/gapfill/pkg/impute/adapter/database/gorm"
	"github.com/tigerroll/gapfill/pkg/impute/core/config"
)

func init() {
	gormadapter.RegisterDialector("postgres", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)
		return postgres.Open(dsn), nil
	})
}
