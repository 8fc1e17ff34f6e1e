// Package mysql registers the MySQL dialector for the readings store.
package mysql

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	gormadapter "github.com/tigerroll/gapfill/pkg/impute/adapter/database/gorm"
	"github.com/tigerroll/gapfill/pkg/impute/core/config"
)

func init() {
	gormadapter.RegisterDialector("mysql", func(cfg config.DatabaseConfig) (gorm.Dialector, error) {
		var auth string
		if cfg.User != "" {
			auth = cfg.User
			if cfg.Password != "" {
				auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Password)
			}
			auth += "@"
		}
		dsn := fmt.Sprintf("%stcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			auth, cfg.Host, cfg.Port, cfg.Database)
		return mysql.Open(dsn), nil
	})
}
