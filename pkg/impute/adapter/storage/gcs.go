package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/tigerroll/gapfill/pkg/impute/support/util/exception"
)

// GCSStore keeps objects in a Google Cloud Storage bucket. GCS object writes
// are already atomic, so no staging is needed.
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStore opens a GCS client against the given bucket. credentialsFile
// may be empty, in which case application default credentials are used.
func NewGCSStore(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			"failed to create GCS client", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSStore) object(name string) *gcs.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path.Join(s.prefix, name))
}

// Put uploads the object, replacing any existing content.
func (s *GCSStore) Put(ctx context.Context, name string, data []byte) error {
	w := s.object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			fmt.Sprintf("failed to write object '%s' to bucket '%s'", name, s.bucket), err)
	}
	if err := w.Close(); err != nil {
		return exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			fmt.Sprintf("failed to finalize object '%s' in bucket '%s'", name, s.bucket), err)
	}
	return nil
}

// Get downloads the full object content.
func (s *GCSStore) Get(ctx context.Context, name string) ([]byte, error) {
	r, err := s.object(name).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			fmt.Sprintf("failed to open object '%s' in bucket '%s'", name, s.bucket), err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			fmt.Sprintf("failed to read object '%s' from bucket '%s'", name, s.bucket), err)
	}
	return data, nil
}

// Delete removes the object; an absent object is ignored.
func (s *GCSStore) Delete(ctx context.Context, name string) error {
	err := s.object(name).Delete(ctx)
	if err != nil && !errors.Is(err, gcs.ErrObjectNotExist) {
		return exception.NewEngineError(exception.KindStoreUnavailable, "storage",
			fmt.Sprintf("failed to delete object '%s' from bucket '%s'", name, s.bucket), err)
	}
	return nil
}

// Close releases the underlying client.
func (s *GCSStore) Close() error { return s.client.Close() }
