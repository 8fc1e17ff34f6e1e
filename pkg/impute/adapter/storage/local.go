package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
)

// LocalStore keeps objects as files under a base directory. Writes go to a
// temp file first and are renamed into place, so a crash mid-write never
// leaves a truncated object visible.
type LocalStore struct {
	baseDir string
	prefix  string
}

// NewLocalStore creates the base directory if needed and returns the store.
func NewLocalStore(baseDir, prefix string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			fmt.Sprintf("failed to create base directory '%s'", baseDir), err)
	}
	return &LocalStore{baseDir: baseDir, prefix: prefix}, nil
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(s.prefix), filepath.FromSlash(name))
}

// Put writes the object via a temp file and an atomic rename.
func (s *LocalStore) Put(_ context.Context, name string, data []byte) error {
	target := s.path(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			fmt.Sprintf("failed to create directory for object '%s'", name), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			fmt.Sprintf("failed to create temp file for object '%s'", name), err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			fmt.Sprintf("failed to write object '%s'", name), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			fmt.Sprintf("failed to close object '%s'", name), err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			fmt.Sprintf("failed to publish object '%s'", name), err)
	}
	return nil
}

// Get reads the full object content.
func (s *LocalStore) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			fmt.Sprintf("failed to read object '%s'", name), err)
	}
	return data, nil
}

// Delete removes the object file; a missing file is ignored.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := os.Remove(s.path(name))
	if err != nil && !os.IsNotExist(err) {
		return exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			fmt.Sprintf("failed to delete object '%s'", name), err)
	}
	return nil
}
