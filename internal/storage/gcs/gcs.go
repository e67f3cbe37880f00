// Package gcs implements a Google Cloud Storage blob store.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/inkseal/inkseal/internal/storage"
)

// Store keeps objects in a single GCS bucket.
type Store struct {
	client          *gstorage.Client
	bucket          *gstorage.BucketHandle
	bucketName      string
	credentialsFile string
}

// StoreOptionFunc configures a Store before connecting.
type StoreOptionFunc func(*Store)

// WithBucket sets the bucket name.
func WithBucket(name string) StoreOptionFunc {
	return func(s *Store) { s.bucketName = name }
}

// WithCredentialsFile sets an explicit service-account credentials file.
// When unset, application default credentials are used.
func WithCredentialsFile(path string) StoreOptionFunc {
	return func(s *Store) { s.credentialsFile = path }
}

// New connects a GCS-backed blob store.
func New(ctx context.Context, opts ...StoreOptionFunc) (*Store, error) {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	if s.bucketName == "" {
		return nil, errors.New("gcs store: bucket not set")
	}

	var clientOpts []option.ClientOption
	clientOpts = append(clientOpts, gstorage.WithDisabledClientMetrics())
	if s.credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(s.credentialsFile))
	}
	client, err := gstorage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gcs store: %w", err)
	}
	s.client = client
	s.bucket = client.Bucket(s.bucketName)
	return s, nil
}

var _ storage.BlobStore = (*Store)(nil)

// Put writes data under path. With overwrite=false the write carries a
// DoesNotExist precondition, so write-once promotion is enforced by the
// bucket, not by a racy pre-check.
func (s *Store) Put(ctx context.Context, path string, data []byte, contentType string, overwrite bool) error {
	obj := s.bucket.Object(path)
	if !overwrite {
		obj = obj.If(gstorage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs store: %w", err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("%q: %w", path, storage.ErrExists)
		}
		return fmt.Errorf("gcs store: %w", err)
	}
	return nil
}

// Get reads the full object at path.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	r, err := s.bucket.Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%q: %w", path, storage.ErrNotExist)
		}
		return nil, fmt.Errorf("gcs store: %w", err)
	}
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs store: %w", err)
	}
	return data, nil
}

// Delete removes the object at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	err := s.bucket.Object(path).Delete(ctx)
	if errors.Is(err, gstorage.ErrObjectNotExist) {
		return fmt.Errorf("%q: %w", path, storage.ErrNotExist)
	}
	if err != nil {
		return fmt.Errorf("gcs store: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 412
}
