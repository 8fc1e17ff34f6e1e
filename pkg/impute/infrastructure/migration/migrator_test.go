package migration_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	config "github.com/tigerroll/gapfill/pkg/impute/core/config"
	migration "github.com/tigerroll/gapfill/pkg/impute/infrastructure/migration"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "gapfill.db")), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func TestMigrator_Up(t *testing.T) {
	db := newSQLiteDB(t)

	cfg := config.NewConfig()
	cfg.Gapfill.Database.Type = "sqlite"

	m := migration.NewMigrator(db, cfg)
	require.NoError(t, m.Up(context.Background()))

	expected := []string{
		"stations",
		"readings",
		"model_artifacts",
		"training_log",
		"imputation_log",
		"validation_log",
	}
	for _, table := range expected {
		var count int64
		err := db.Raw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&count).Error
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "table %s should exist", table)
	}

	// A second run is a no-op, not an error.
	require.NoError(t, m.Up(context.Background()))
}

func TestMigrator_UnsupportedDatabaseType(t *testing.T) {
	db := newSQLiteDB(t)

	cfg := config.NewConfig()
	cfg.Gapfill.Database.Type = "oracle"

	m := migration.NewMigrator(db, cfg)
	require.Error(t, m.Up(context.Background()))
}
