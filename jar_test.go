package classpath

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/classpath/classfile"
	"github.com/jmgilman/go/classpath/internal/cache"
	"github.com/jmgilman/go/classpath/internal/testutil"
)

// countingArchive counts entry opens so tests can assert when I/O happens.
type countingArchive struct {
	*ZipArchive
	opens  atomic.Int64
	closes atomic.Int64
}

func (c *countingArchive) Open(name string) (io.ReadCloser, error) {
	c.opens.Add(1)
	rc, err := c.ZipArchive.Open(name)
	if err != nil {
		return nil, err
	}
	return &countingCloser{ReadCloser: rc, closes: &c.closes}, nil
}

type countingCloser struct {
	io.ReadCloser
	closes *atomic.Int64
}

func (c *countingCloser) Close() error {
	c.closes.Add(1)
	return c.ReadCloser.Close()
}

func newCountingArchive(t *testing.T, entries testutil.Entries) *countingArchive {
	t.Helper()
	archive, err := NewArchiveFromBytes("test.jar", testutil.ZipBytes(t, entries))
	require.NoError(t, err)
	return &countingArchive{ZipArchive: archive}
}

func newJar(t *testing.T, archive Archive, opts ...Option) *JarResolver {
	t.Helper()
	r, err := NewJarResolver(archive, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestJarResolver_EmptyArchive(t *testing.T) {
	archive := newCountingArchive(t, testutil.Entries{
		"META-INF/MANIFEST.MF": []byte("Manifest-Version: 1.0\n"),
		"readme.txt":           []byte("hello"),
	})
	r := newJar(t, archive)

	assert.Empty(t, r.Classes())
	assert.Empty(t, r.Packages())
	assert.True(t, r.IsEmpty())

	result := r.Resolve(context.Background(), "com/foo/Bar")
	assert.Equal(t, StatusNotFound, result.Status)
	assert.False(t, result.Found())
	assert.Nil(t, result.Origin)
	assert.Zero(t, archive.opens.Load())
}

func TestJarResolver_SingleClass(t *testing.T) {
	ctx := context.Background()
	archive := newCountingArchive(t, testutil.Entries{
		"com/foo/Bar.class": testutil.SimpleClass("com/foo/Bar"),
	})
	r := newJar(t, archive)

	assert.Equal(t, []string{"com/foo/Bar"}, r.Classes())
	assert.Equal(t, []string{"com", "com/foo"}, r.Packages())
	assert.False(t, r.IsEmpty())
	assert.Equal(t, "test.jar", r.String())

	class, ok := FindClass(ctx, r, "com/foo/Bar")
	require.True(t, ok)
	assert.Equal(t, "com/foo/Bar", class.Name)
	assert.Equal(t, testutil.ObjectClass, class.SuperName)

	_, ok = FindClass(ctx, r, "com/foo/Baz")
	assert.False(t, ok)

	owner, ok := r.Locate("com/foo/Bar")
	require.True(t, ok)
	assert.Same(t, r, owner)
	_, ok = r.Locate("com/foo/Baz")
	assert.False(t, ok)
}

func TestJarResolver_HardMissPerformsNoIO(t *testing.T) {
	archive := newCountingArchive(t, testutil.Entries{
		"a/B.class": testutil.SimpleClass("a/B"),
	})
	r := newJar(t, archive)

	for i := 0; i < 3; i++ {
		assert.Equal(t, StatusNotFound, r.Resolve(context.Background(), "a/Missing").Status)
	}

	assert.Zero(t, archive.opens.Load())
	assert.Equal(t, int64(3), r.Stats().HardMisses)
}

func TestJarResolver_CachedLookupPerformsNoIO(t *testing.T) {
	ctx := context.Background()
	archive := newCountingArchive(t, testutil.Entries{
		"a/B.class": testutil.SimpleClass("a/B"),
	})
	r := newJar(t, archive)

	first := r.Resolve(ctx, "a/B")
	require.True(t, first.Found())
	second := r.Resolve(ctx, "a/B")
	require.True(t, second.Found())

	assert.Same(t, first.Class, second.Class)
	assert.Equal(t, int64(1), archive.opens.Load())
	assert.Equal(t, int64(1), archive.closes.Load())

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Builds)
}

func TestJarResolver_CorruptedClass(t *testing.T) {
	ctx := context.Background()
	archive := newCountingArchive(t, testutil.Entries{
		"com/foo/Bar.class":  []byte("definitely not a class"),
		"com/foo/Good.class": testutil.SimpleClass("com/foo/Good"),
	})
	r := newJar(t, archive)

	for i := 0; i < 2; i++ {
		result := r.Resolve(ctx, "com/foo/Bar")
		assert.False(t, result.Found())
		assert.Equal(t, StatusInvalid, result.Status)
		assert.Same(t, r, result.Origin)
		assert.Equal(t, CodeClassParseFailed, errors.GetCode(result.Err))
		assert.ErrorIs(t, result.Err, classfile.ErrBadMagic)
	}

	// Failures are retried, never cached.
	assert.Equal(t, int64(2), archive.opens.Load())
	assert.Equal(t, int64(2), archive.closes.Load())
	assert.Equal(t, int64(2), r.Stats().BuildFailures)

	assert.Contains(t, r.Classes(), "com/foo/Bar")
	_, ok := r.Locate("com/foo/Bar")
	assert.True(t, ok)

	_, ok = FindClass(ctx, r, "com/foo/Good")
	assert.True(t, ok, "a failure for one key must not affect others")
}

func TestJarResolver_NeverSubstitutesAnotherClass(t *testing.T) {
	archive := newCountingArchive(t, testutil.Entries{
		"com/foo/Bar.class": testutil.SimpleClass("com/foo/Other"),
	})
	r := newJar(t, archive)

	result := r.Resolve(context.Background(), "com/foo/Bar")
	assert.Equal(t, StatusInvalid, result.Status)
	assert.Nil(t, result.Class)
	assert.ErrorIs(t, result.Err, classfile.ErrNameMismatch)
}

func TestJarResolver_ParserContract(t *testing.T) {
	tests := []struct {
		name   string
		parser classfile.ParserFunc
		status Status
	}{
		{
			name: "parser returns another class",
			parser: func(string, io.Reader) (*classfile.ClassFile, error) {
				return &classfile.ClassFile{Name: "x/Other"}, nil
			},
			status: StatusInvalid,
		},
		{
			name: "parser returns nil without error",
			parser: func(string, io.Reader) (*classfile.ClassFile, error) {
				return nil, nil
			},
			status: StatusInvalid,
		},
		{
			name: "parser returns plain error",
			parser: func(string, io.Reader) (*classfile.ClassFile, error) {
				return nil, io.ErrNoProgress
			},
			status: StatusInvalid,
		},
		{
			name: "custom parser succeeds",
			parser: func(name string, r io.Reader) (*classfile.ClassFile, error) {
				_, err := io.ReadAll(r)
				return &classfile.ClassFile{Name: name}, err
			},
			status: StatusFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := newCountingArchive(t, testutil.Entries{"x/Y.class": []byte("bytes")})
			r := newJar(t, archive, WithParser(tt.parser))

			result := r.Resolve(context.Background(), "x/Y")
			assert.Equal(t, tt.status, result.Status)
			if tt.status != StatusFound {
				assert.Equal(t, CodeClassParseFailed, errors.GetCode(result.Err))
			}
		})
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }
func (brokenReader) Close() error { return nil }

type brokenArchive struct{ *ZipArchive }

func (brokenArchive) Open(string) (io.ReadCloser, error) { return brokenReader{}, nil }

func TestJarResolver_ReadFailure(t *testing.T) {
	archive, err := NewArchiveFromBytes("test.jar", testutil.ClassJar(t, "a/B"))
	require.NoError(t, err)
	r := newJar(t, brokenArchive{archive})

	result := r.Resolve(context.Background(), "a/B")
	assert.Equal(t, StatusFailedToRead, result.Status)
	assert.Equal(t, CodeClassReadFailed, errors.GetCode(result.Err))
	assert.ErrorIs(t, result.Err, io.ErrClosedPipe)
}

func TestJarResolver_RebuildsReclaimedClass(t *testing.T) {
	ctx := context.Background()
	archive := newCountingArchive(t, testutil.Entries{
		"a/B.class": testutil.SimpleClass("a/B"),
	})
	r := newJar(t, archive, WithCacheConfig(CacheConfig{DisableRetention: true}))

	snapshot := func() classfile.ClassFile {
		first := r.Resolve(ctx, "a/B")
		require.True(t, first.Found())
		return *first.Class
	}()

	reclaimed := false
	for i := 0; i < 10 && !reclaimed; i++ {
		runtime.GC()
		reclaimed = r.classes.store.State("a/B") == cache.StateReclaimed
	}
	require.True(t, reclaimed, "class should be reclaimed once unreachable")

	second := r.Resolve(ctx, "a/B")
	require.True(t, second.Found())
	assert.Equal(t, snapshot, *second.Class, "rebuilding must be deterministic")
	assert.Equal(t, int64(2), archive.opens.Load())
	assert.Equal(t, int64(1), r.Stats().Reclaims)
	assert.Equal(t, []string{"a/B"}, r.Classes(), "index survives reclamation")
}

func TestJarResolver_Release(t *testing.T) {
	ctx := context.Background()
	archive := newCountingArchive(t, testutil.Entries{"a/B.class": testutil.SimpleClass("a/B")})
	r := newJar(t, archive)

	require.True(t, r.Resolve(ctx, "a/B").Found())
	assert.Equal(t, 1, r.classes.store.Retained())

	r.Release(ctx)
	assert.Equal(t, 0, r.classes.store.Retained())
	assert.True(t, r.Resolve(ctx, "a/B").Found())
}

func TestJarResolver_ClassesStable(t *testing.T) {
	ctx := context.Background()
	names := []string{"a/A", "a/B", "b/C", "Top"}
	archive := newCountingArchive(t, testutil.Entries{
		"a/A.class": testutil.SimpleClass("a/A"),
		"a/B.class": testutil.SimpleClass("a/B"),
		"b/C.class": []byte("broken"),
		"Top.class": testutil.SimpleClass("Top"),
	})
	r := newJar(t, archive, WithCacheConfig(CacheConfig{MaxRetained: 1}))

	before := r.Classes()
	for i := 0; i < 5; i++ {
		for _, name := range append(names, "missing/X") {
			r.Resolve(ctx, name)
		}
	}

	assert.Equal(t, before, r.Classes())
	assert.Equal(t, []string{"Top", "a/A", "a/B", "b/C"}, r.Classes())
	assert.Equal(t, []string{"", "a", "b"}, r.Packages())

	mutated := r.Classes()
	mutated[0] = "changed"
	assert.Equal(t, before, r.Classes(), "Classes must return a copy")
}

func TestJarResolver_AbsentIffNotIndexed(t *testing.T) {
	ctx := context.Background()
	archive := newCountingArchive(t, testutil.Entries{
		"p/One.class":   testutil.SimpleClass("p/One"),
		"p/Two.class":   testutil.SimpleClass("p/Two"),
		"p/Three.class": testutil.SimpleClass("p/Three"),
	})
	r := newJar(t, archive, WithCacheConfig(CacheConfig{DisableRetention: true}))

	probe := []string{"p/Two", "p/Missing", "p/One", "q/One", "p/Three", "p/Two"}
	for round := 0; round < 3; round++ {
		for _, name := range probe {
			_, indexed := r.Locate(name)
			_, found := FindClass(ctx, r, name)
			assert.Equal(t, indexed, found, "name %s", name)
		}
		runtime.GC()
	}
}

func TestJarResolver_ConcurrentResolve(t *testing.T) {
	ctx := context.Background()
	archive := newCountingArchive(t, testutil.Entries{
		"a/B.class": testutil.SimpleClass("a/B"),
		"a/C.class": testutil.SimpleClass("a/C"),
	})
	r := newJar(t, archive, WithCacheConfig(CacheConfig{MaxRetained: 1}))

	expected, err := classfile.ParseBytes("a/B", testutil.SimpleClass("a/B"))
	require.NoError(t, err)

	const workers = 16
	results := make([]Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "a/B"
			if i%4 == 0 {
				r.Resolve(ctx, "a/C")
			}
			results[i] = r.Resolve(ctx, name)
		}(i)
	}
	wg.Wait()

	for _, result := range results {
		require.True(t, result.Found())
		assert.Equal(t, *expected, *result.Class)
	}
	assert.Equal(t, archive.opens.Load(), archive.closes.Load())
}

func TestJarResolver_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	archive := newCountingArchive(t, testutil.Entries{
		"a/B.class": testutil.SimpleClass("a/B"),
		"a/C.class": []byte("broken"),
	})
	r := newJar(t, archive, WithLogger(logger))

	r.Resolve(context.Background(), "a/B")
	r.Resolve(context.Background(), "a/B")
	r.Resolve(context.Background(), "a/C")

	out := buf.String()
	assert.Contains(t, out, "indexed archive")
	assert.Contains(t, out, "classes=2")
	assert.Contains(t, out, "cache miss")
	assert.Contains(t, out, "cache hit")
	assert.Contains(t, out, "failed to resolve class")
	assert.Contains(t, out, "status=invalid")
}

func TestJarResolver_SharedMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := NewMetrics("classes", nil)

	one := newJar(t, newCountingArchive(t, testutil.Entries{"a/A.class": testutil.SimpleClass("a/A")}), WithMetrics(metrics))
	two := newJar(t, newCountingArchive(t, testutil.Entries{"b/B.class": testutil.SimpleClass("b/B")}), WithMetrics(metrics))

	one.Resolve(ctx, "a/A")
	two.Resolve(ctx, "b/B")
	two.Resolve(ctx, "b/B")

	assert.Same(t, metrics, one.Metrics())
	assert.Equal(t, int64(2), metrics.Snapshot().Misses)
	assert.Equal(t, int64(1), metrics.Snapshot().Hits)
}

func TestJarResolver_InvalidCacheConfig(t *testing.T) {
	archive := newCountingArchive(t, testutil.Entries{})
	_, err := NewJarResolver(archive, WithCacheConfig(CacheConfig{MaxRetained: -5}))
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
}

func TestOpenJar(t *testing.T) {
	fsys := billy.NewMemory()
	testutil.WriteFile(t, fsys, "libs/app.jar", testutil.ClassJar(t, "com/app/Main", "com/app/util/Strings"))

	r, err := OpenJar(fsys, "libs/app.jar")
	require.NoError(t, err)

	assert.Equal(t, "libs/app.jar", r.String())
	assert.Equal(t, []string{"com/app/Main", "com/app/util/Strings"}, r.Classes())
	assert.Equal(t, []string{"com", "com/app", "com/app/util"}, r.Packages())
	assert.True(t, HasPackage(r, "com/app/util"))
	assert.False(t, HasPackage(r, "org"))

	class, ok := FindClass(context.Background(), r, "com/app/util/Strings")
	require.True(t, ok)
	assert.Equal(t, "com/app/util", class.Package())

	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())

	_, err = OpenJar(fsys, "libs/missing.jar")
	assert.Equal(t, CodeArchiveUnreadable, errors.GetCode(err))
}
