package testutil

import (
	"bytes"
	"io/fs"
	"path"
	"sort"
	"testing"

	"github.com/jmgilman/go/fs/core"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

// Entries maps archive entry names to their contents.
type Entries map[string][]byte

// ZipBytes writes entries into an in-memory ZIP archive in name order.
// Names ending in "/" become directory entries.
func ZipBytes(t testing.TB, entries Entries) []byte {
	t.Helper()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := w.Create(name)
		require.NoError(t, err)
		if len(entries[name]) > 0 {
			_, err = f.Write(entries[name])
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// ClassJar builds a jar holding a valid class for every name plus a
// manifest.
func ClassJar(t testing.TB, names ...string) []byte {
	t.Helper()

	entries := Entries{"META-INF/MANIFEST.MF": []byte("Manifest-Version: 1.0\n")}
	for _, name := range names {
		entries[name+".class"] = SimpleClass(name)
	}
	return ZipBytes(t, entries)
}

// WriteFile writes data to name in fsys, creating parent directories.
func WriteFile(t testing.TB, fsys core.FS, name string, data []byte) {
	t.Helper()

	if dir := path.Dir(name); dir != "." {
		require.NoError(t, fsys.MkdirAll(dir, 0o755))
	}
	require.NoError(t, fsys.WriteFile(name, data, fs.FileMode(0o644)))
}
