// Package storage moves N2 EDM run files between a local data root and an
// object store.
package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage abstracts an object store. Keys are slash-separated and
// relative to the store's root or prefix.
type ObjectStorage interface {
	// Upload copies a local file to key.
	Upload(ctx context.Context, localPath, key string) error

	// Download copies key to a local file, creating parent directories.
	// A missing key fails with ErrObjectNotFound.
	Download(ctx context.Context, key, localPath string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is stored.
	Exists(ctx context.Context, key string) (bool, error)

	// ListObjects returns the objects whose key starts with prefix, sorted
	// by key.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// joinKey joins a store prefix and a key with exactly one slash.
func joinKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	key = strings.TrimLeft(key, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// writeFile copies r to a temporary file next to dst and renames it into
// place, so readers never see a partial file.
func writeFile(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
