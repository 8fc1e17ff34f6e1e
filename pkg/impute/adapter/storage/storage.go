// Package storage provides the blob store adapters used for model weight
// artifacts and audit exports. A local filesystem adapter and a Google Cloud
// Storage adapter are available; both are addressed through ObjectStore.
package storage

import (
	"context"
	"errors"
)

// ErrObjectNotFound is returned by Get when no object exists under the name.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is a minimal blob store. Put must be atomic per object: readers
// either see the previous content or the full new content, never a partial
// write.
type ObjectStore interface {
	// Put writes the object, replacing any existing content under name.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the full content of the object, or ErrObjectNotFound.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes the object. Deleting an absent object is not an error.
	Delete(ctx context.Context, name string) error
}
