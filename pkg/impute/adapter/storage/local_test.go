package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "models")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "st-001/v1.json", []byte(`{"v":1}`)))

	data, err := store.Get(ctx, "st-001/v1.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":1}`), data)

	// Overwrite replaces the content in full.
	require.NoError(t, store.Put(ctx, "st-001/v1.json", []byte(`{"v":2}`)))
	data, err = store.Get(ctx, "st-001/v1.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":2}`), data)

	require.NoError(t, store.Delete(ctx, "st-001/v1.json"))
	_, err = store.Get(ctx, "st-001/v1.json")
	assert.True(t, errors.Is(err, ErrObjectNotFound))

	// Deleting an absent object is not an error.
	assert.NoError(t, store.Delete(ctx, "st-001/v1.json"))
}

func TestLocalStore_GetMissing(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "nope.json")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}
