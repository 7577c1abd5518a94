// Package cache implements the dependency-layer cache.
//
// Entries are tar archives of a container path (typically a package
// manager's download directory), addressed by a content key computed
// over the files that determine the step's result. The store is a flat
// directory of tar files; entries are written atomically and never
// mutated, so concurrent builds can share a store without locking.
package cache

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/zerr"
)

// Filesystem-backed layer cache.
type Store struct {
	dir string
}

// Creates a store rooted at the given directory.
//
// The directory is created on first write, not here, so constructing a
// store for a build that never caches touches nothing on disk.
func NewStore(dir string) *Store {
	return &Store{dir: filepath.Clean(dir)}
}

// Opens the cached tar archive for a key.
//
// Returns false when the key has no entry. The caller must close the
// returned reader.
func (s *Store) Get(key string) (io.ReadCloser, bool, error) {
	f, err := os.Open(s.entryPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, zerr.With(zerr.Wrap(err, "failed to open cache entry"), "key", key)
	}
	return f, true, nil
}

// Writes a tar archive under a key.
//
// The archive is staged in a temporary file and renamed into place, so a
// concurrent reader never observes a partial entry. An existing entry for
// the same key is left untouched; identical keys imply identical content.
func (s *Store) Put(key string, r io.Reader) (err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return zerr.Wrap(err, "failed to create cache directory")
	}

	path := s.entryPath(key)
	if _, statErr := os.Stat(path); statErr == nil {
		return nil
	}

	tmp, err := os.CreateTemp(s.dir, key+".tmp-*")
	if err != nil {
		return zerr.Wrap(err, "failed to stage cache entry")
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write cache entry"), "key", key)
	}
	if err = tmp.Close(); err != nil {
		return zerr.Wrap(err, "failed to close cache entry")
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return zerr.Wrap(err, "failed to commit cache entry")
	}
	return nil
}

// Returns the on-disk path for a key.
func (s *Store) entryPath(key string) string {
	return filepath.Join(s.dir, key+".tar")
}
