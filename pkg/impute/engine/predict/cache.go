package predict

import (
	"context"
	"sync"
	"time"

	"github.com/tigerroll/gapfill/pkg/impute/adapter/storage"
	"github.com/tigerroll/gapfill/pkg/impute/core/metrics"
	"github.com/tigerroll/gapfill/pkg/impute/engine/train"
)

// cacheEntry pins one decoded model with its load time.
type cacheEntry struct {
	model    *train.SavedModel
	loadedAt time.Time
}

// ModelCache keeps decoded models in memory per (station, version) with a
// TTL, so a sweep over many gaps of one station decodes the blob once.
// Invalidate drops a station's entries after retraining or rollback.
type ModelCache struct {
	store    storage.ObjectStore
	ttl      time.Duration
	recorder metrics.MetricRecorder

	mu      sync.RWMutex
	entries map[string]map[int]cacheEntry
	now     func() time.Time
}

// NewModelCache creates a cache reading blobs from the given store.
func NewModelCache(store storage.ObjectStore, ttl time.Duration, recorder metrics.MetricRecorder) *ModelCache {
	return &ModelCache{
		store:    store,
		ttl:      ttl,
		recorder: recorder,
		entries:  make(map[string]map[int]cacheEntry),
		now:      time.Now,
	}
}

// Load returns the decoded model for (station, version), fetching and
// decoding the blob on a miss or an expired entry.
func (c *ModelCache) Load(ctx context.Context, objectName, stationID string, version int) (*train.SavedModel, error) {
	c.mu.RLock()
	entry, ok := c.entries[stationID][version]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.loadedAt) < c.ttl {
		c.recorder.RecordCacheAccess(ctx, true)
		return entry.model, nil
	}
	c.recorder.RecordCacheAccess(ctx, false)

	blob, err := c.store.Get(ctx, objectName)
	if err != nil {
		return nil, err
	}
	m, err := train.DecodeModel(blob)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.entries[stationID] == nil {
		c.entries[stationID] = make(map[int]cacheEntry)
	}
	c.entries[stationID][version] = cacheEntry{model: m, loadedAt: c.now()}
	c.mu.Unlock()
	return m, nil
}

// Invalidate drops all cached versions of one station.
func (c *ModelCache) Invalidate(stationID string) {
	c.mu.Lock()
	delete(c.entries, stationID)
	c.mu.Unlock()
}
