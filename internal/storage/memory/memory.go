// Package memory implements an in-memory blob store for tests and dev mode.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/inkseal/inkseal/internal/storage"
)

// Store keeps objects in a map guarded by a mutex.
type Store struct {
	mu      sync.Mutex
	objects map[string][]byte
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

var _ storage.BlobStore = (*Store)(nil)

// Put stores a copy of data under path.
func (s *Store) Put(ctx context.Context, path string, data []byte, _ string, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; ok && !overwrite {
		return fmt.Errorf("%q: %w", path, storage.ErrExists)
	}
	s.objects[path] = append([]byte(nil), data...)
	return nil
}

// Get returns a copy of the object at path.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("%q: %w", path, storage.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

// Delete removes the object at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[path]; !ok {
		return fmt.Errorf("%q: %w", path, storage.ErrNotExist)
	}
	delete(s.objects, path)
	return nil
}

// Len reports the number of stored objects.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
