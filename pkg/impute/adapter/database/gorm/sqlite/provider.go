// Package sqlite registers the SQLite dialector for the readings store.
package sqlite

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/gapfill/pkg/impute/adapter/database/gorm"
	"github.com/tigerroll/gapfill/pkg/impute/core/config"
)

func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		return sqlite.Open(cfg.Database), nil
	})
}
