package cache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kilnhq/kilnd/internal/cache"
)

func writeInput(t *testing.T, root, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
}

func TestKey_Deterministic(t *testing.T) {
	root := t.TempDir()
	writeInput(t, root, "Cargo.toml", "[package]\nname = \"engine\"\n")

	a, err := cache.Key("rust:1.83", "cargo fetch", []string{"Cargo.toml"}, root)
	require.NoError(t, err)

	b, err := cache.Key("rust:1.83", "cargo fetch", []string{"Cargo.toml"}, root)
	require.NoError(t, err)

	require.Equal(t, a, b)
	require.Len(t, a, 16)
}

func TestKey_InputContentChangesKey(t *testing.T) {
	root := t.TempDir()
	writeInput(t, root, "Cargo.toml", "[package]\nname = \"engine\"\n")

	before, err := cache.Key("rust:1.83", "cargo fetch", []string{"Cargo.toml"}, root)
	require.NoError(t, err)

	writeInput(t, root, "Cargo.toml", "[package]\nname = \"engine\"\nedition = \"2021\"\n")

	after, err := cache.Key("rust:1.83", "cargo fetch", []string{"Cargo.toml"}, root)
	require.NoError(t, err)

	require.NotEqual(t, before, after)
}

func TestKey_UndeclaredFilesIgnored(t *testing.T) {
	root := t.TempDir()
	writeInput(t, root, "Cargo.toml", "[package]\n")
	writeInput(t, root, "main.rs", "fn main() {}\n")

	before, err := cache.Key("rust:1.83", "cargo fetch", []string{"Cargo.toml"}, root)
	require.NoError(t, err)

	// Source changes must not invalidate a dependency-keyed entry.
	writeInput(t, root, "main.rs", "fn main() { println!(\"hi\"); }\n")

	after, err := cache.Key("rust:1.83", "cargo fetch", []string{"Cargo.toml"}, root)
	require.NoError(t, err)

	require.Equal(t, before, after)
}

func TestKey_AbsentInputIsPartOfKey(t *testing.T) {
	root := t.TempDir()
	writeInput(t, root, "Cargo.toml", "[package]\n")

	absent, err := cache.Key("rust:1.83", "cargo fetch", []string{"Cargo.toml", "Cargo.lock"}, root)
	require.NoError(t, err)

	writeInput(t, root, "Cargo.lock", "# lock\n")

	present, err := cache.Key("rust:1.83", "cargo fetch", []string{"Cargo.toml", "Cargo.lock"}, root)
	require.NoError(t, err)

	require.NotEqual(t, absent, present)
}

func TestKey_BaseImageAndCommandChangeKey(t *testing.T) {
	root := t.TempDir()
	writeInput(t, root, "Cargo.toml", "[package]\n")

	base, err := cache.Key("rust:1.83", "cargo fetch", []string{"Cargo.toml"}, root)
	require.NoError(t, err)

	otherImage, err := cache.Key("rust:1.84", "cargo fetch", []string{"Cargo.toml"}, root)
	require.NoError(t, err)
	require.NotEqual(t, base, otherImage)

	otherCommand, err := cache.Key("rust:1.83", "cargo fetch --locked", []string{"Cargo.toml"}, root)
	require.NoError(t, err)
	require.NotEqual(t, base, otherCommand)
}
