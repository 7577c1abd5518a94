package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
)

// Marker hashed in place of an input file that does not exist, so a
// lockfile appearing later produces a different key than its absence.
const absentMarker = "\x00absent\x00"

// Computes the cache key for a run step.
//
// The key covers the stage's base image reference, the command itself,
// and the name and content of each declared input file in declaration
// order. Input paths are resolved relative to the project root. Missing
// input files are not an error; their absence is part of the key.
func Key(baseRef, command string, inputs []string, root string) (string, error) {
	h := xxhash.New()

	writeField(h, baseRef)
	writeField(h, command)

	for _, input := range inputs {
		writeField(h, input)

		path := input
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}

		if err := writeFileContent(h, path); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// Hashes a string followed by a separator byte.
func writeField(h *xxhash.Digest, s string) {
	_, _ = h.WriteString(s)
	_, _ = h.Write([]byte{0})
}

// Hashes a file's content, or the absent marker when it does not exist.
func writeFileContent(h *xxhash.Digest, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeField(h, absentMarker)
			return nil
		}
		return zerr.With(zerr.Wrap(err, "failed to open cache input"), "path", path)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to hash cache input"), "path", path)
	}
	writeField(h, "")
	return nil
}
