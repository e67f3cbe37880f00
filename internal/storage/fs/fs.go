// Package fs implements a local-filesystem blob store for development and tests.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/inkseal/inkseal/internal/storage"
)

// Store keeps objects as plain files under a root directory.
type Store struct {
	root string
}

// New creates the root directory if needed and returns a store over it.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("fs store: empty root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("fs store: %w", err)
	}
	return &Store{root: root}, nil
}

var _ storage.BlobStore = (*Store)(nil)

func (s *Store) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("fs store: invalid path %q", path)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes data to a temp file and renames it into place. With
// overwrite=false the destination is created with O_EXCL so the
// exists-check and the write are one atomic syscall.
func (s *Store) Put(ctx context.Context, path string, data []byte, _ string, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("fs store: %w", err)
	}
	if overwrite {
		return os.WriteFile(dst, data, 0o644)
	}
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%q: %w", path, storage.ErrExists)
		}
		return fmt.Errorf("fs store: %w", err)
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("fs store: %w", err)
	}
	return f.Close()
}

// Get reads the full object at path.
func (s *Store) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%q: %w", path, storage.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("fs store: %w", err)
	}
	return data, nil
}

// Delete removes the object at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := s.resolve(path)
	if err != nil {
		return err
	}
	err = os.Remove(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%q: %w", path, storage.ErrNotExist)
	}
	if err != nil {
		return fmt.Errorf("fs store: %w", err)
	}
	return nil
}
