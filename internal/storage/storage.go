// Package storage defines the object-storage collaborator used for document
// artifacts. Two namespaces exist under one store: originals/ and signed/,
// both addressed by document ID.
package storage

import (
	"context"
	"errors"
)

// Sentinels for backend-agnostic condition handling. Backends translate
// their native errors into these; services map them onto the error taxonomy.
var (
	// ErrExists is returned by Put with overwrite=false when the path is
	// already occupied. Required for write-once artifact promotion.
	ErrExists = errors.New("object already exists")

	// ErrNotExist is returned by Get/Delete for a missing path.
	ErrNotExist = errors.New("object does not exist")
)

// BlobStore stores immutable document artifacts.
type BlobStore interface {
	// Put writes data under path. With overwrite=false the write fails with
	// ErrExists if the path is occupied; the check and the write are atomic.
	Put(ctx context.Context, path string, data []byte, contentType string, overwrite bool) error

	// Get reads the full object at path, ErrNotExist if absent.
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete removes the object at path, ErrNotExist if absent.
	Delete(ctx context.Context, path string) error
}

// OriginalPath returns the originals-namespace locator for a document ID.
func OriginalPath(docID string) string { return "originals/" + docID + ".pdf" }

// SignedPath returns the signed-namespace locator for a document ID.
func SignedPath(docID string) string { return "signed/" + docID + ".pdf" }
