package predict

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/gapfill/pkg/impute/core/metrics"
	"github.com/tigerroll/gapfill/pkg/impute/engine/train"
)

// countingStore serves one fixed blob and counts reads.
type countingStore struct {
	blob []byte
	gets int
}

func (s *countingStore) Put(ctx context.Context, name string, data []byte) error { return nil }
func (s *countingStore) Delete(ctx context.Context, name string) error           { return nil }
func (s *countingStore) Get(ctx context.Context, name string) ([]byte, error) {
	s.gets++
	return s.blob, nil
}

func testBlob(t *testing.T) []byte {
	t.Helper()
	saved := &train.SavedModel{
		StationID:  "st-001",
		Version:    1,
		WindowSize: 4,
		Scaler:     train.FitScaler([]float64{0, 1}),
		Network:    train.NewNetwork([]int{2}, 0, 1),
	}
	blob, err := saved.Encode()
	require.NoError(t, err)
	return blob
}

func TestModelCache_TTLAndInvalidation(t *testing.T) {
	store := &countingStore{blob: testBlob(t)}
	cache := NewModelCache(store, time.Hour, metrics.NewNoOpMetricRecorder())
	clock := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }
	ctx := context.Background()

	// First load fetches, the second hits the cache.
	_, err := cache.Load(ctx, "st-001/v1.json", "st-001", 1)
	require.NoError(t, err)
	_, err = cache.Load(ctx, "st-001/v1.json", "st-001", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, store.gets)

	// A different version is a separate entry.
	_, err = cache.Load(ctx, "st-001/v2.json", "st-001", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, store.gets)

	// TTL expiry forces a refetch.
	clock = clock.Add(2 * time.Hour)
	_, err = cache.Load(ctx, "st-001/v1.json", "st-001", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, store.gets)

	// Invalidation drops the whole station.
	_, err = cache.Load(ctx, "st-001/v1.json", "st-001", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, store.gets)
	cache.Invalidate("st-001")
	_, err = cache.Load(ctx, "st-001/v1.json", "st-001", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, store.gets)
}
