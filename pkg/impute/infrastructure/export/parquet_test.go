package export_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storage "github.com/tigerroll/gapfill/pkg/impute/adapter/storage"
	config "github.com/tigerroll/gapfill/pkg/impute/core/config"
	model "github.com/tigerroll/gapfill/pkg/impute/core/domain/model"
	export "github.com/tigerroll/gapfill/pkg/impute/infrastructure/export"
	inmemory "github.com/tigerroll/gapfill/pkg/impute/infrastructure/repository/inmemory"
	itest "github.com/tigerroll/gapfill/pkg/impute/test"
)

func appendImputation(t *testing.T, repo *inmemory.Repository, stationID string, ts, createdAt time.Time) {
	t.Helper()
	bound := 0.5
	err := repo.AppendImputationLog(context.Background(), &model.ImputationLog{
		ID:           uuid.NewString(),
		StationID:    stationID,
		Timestamp:    ts,
		Parameter:    model.Parameter,
		Value:        4.2,
		Method:       "recurrent_model",
		WindowStart:  ts.Add(-24 * time.Hour),
		WindowEnd:    ts.Add(-time.Hour),
		ModelVersion: 1,
		ErrorBound:   &bound,
		ModelStatus:  string(model.ArtifactCertified),
		CreatedAt:    createdAt,
	})
	require.NoError(t, err)
}

func TestAuditExporter_ExportStation(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRepository()
	require.NoError(t, repo.Register(ctx, &model.Station{ID: "st-001", Name: "one"}))

	day1 := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 7, 2, 9, 0, 0, 0, time.UTC)
	appendImputation(t, repo, "st-001", itest.HourAt(10), day1)
	appendImputation(t, repo, "st-001", itest.HourAt(11), day1.Add(time.Minute))
	appendImputation(t, repo, "st-001", itest.HourAt(40), day2)

	baseDir := t.TempDir()
	store, err := storage.NewLocalStore(baseDir, "")
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.Gapfill.Export = map[string]interface{}{
		"output_base_dir": "audit",
		"compression":     "SNAPPY",
	}

	exporter, err := export.NewAuditExporter(repo, repo, store, cfg)
	require.NoError(t, err)
	n, err := exporter.ExportStation(ctx, "st-001", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// One Parquet object per creation day.
	var files []string
	err = filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, files, 2)

	seen := map[string]bool{}
	for _, f := range files {
		assert.Equal(t, ".parquet", filepath.Ext(f))
		seen[filepath.Base(filepath.Dir(f))] = true

		data, err := os.ReadFile(f)
		require.NoError(t, err)
		require.Greater(t, len(data), 8)
		assert.True(t, bytes.HasPrefix(data, []byte("PAR1")))
		assert.True(t, bytes.HasSuffix(data, []byte("PAR1")))
	}
	assert.True(t, seen["dt=2025-07-01"])
	assert.True(t, seen["dt=2025-07-02"])
}

func TestAuditExporter_ExportAllStations(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRepository()
	require.NoError(t, repo.Register(ctx, &model.Station{ID: "st-a"}))
	require.NoError(t, repo.Register(ctx, &model.Station{ID: "st-b"}))

	created := time.Date(2025, 7, 3, 12, 0, 0, 0, time.UTC)
	appendImputation(t, repo, "st-a", itest.HourAt(5), created)

	store, err := storage.NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	exporter, err := export.NewAuditExporter(repo, repo, store, config.NewConfig())
	require.NoError(t, err)
	n, err := exporter.Export(ctx, time.Time{})
	require.NoError(t, err)

	// st-b has no rows and is skipped without error.
	assert.Equal(t, 1, n)
}

func TestNewAuditExporter_InvalidCompression(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.Gapfill.Export["compression"] = "LZO"

	repo := inmemory.NewRepository()
	_, err = export.NewAuditExporter(repo, repo, store, cfg)
	require.Error(t, err)
}

func TestAuditExporter_SinceFilter(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewRepository()
	require.NoError(t, repo.Register(ctx, &model.Station{ID: "st-001"}))

	old := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	appendImputation(t, repo, "st-001", itest.HourAt(1), old)
	appendImputation(t, repo, "st-001", itest.HourAt(2), recent)

	store, err := storage.NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	exporter, err := export.NewAuditExporter(repo, repo, store, config.NewConfig())
	require.NoError(t, err)
	n, err := exporter.ExportStation(ctx, "st-001", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
