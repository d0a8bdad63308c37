package classpath

import (
	"context"
	"io"
	"runtime"
	"sync"

	"github.com/jmgilman/go/fs/core"

	"github.com/jmgilman/go/classpath/internal/cache"
)

// JarResolver resolves classes from a single archive. The class index is
// built when the resolver is created; class bytes are read and parsed on
// first lookup and cached under memory-reclaimable handles.
//
// A JarResolver is safe for concurrent use.
type JarResolver struct {
	archive Archive
	classes *lazyClasses

	closeOnce sync.Once
	closeErr  error
	cleanup   runtime.Cleanup
}

// OpenJar opens the archive at path in fsys and indexes it.
func OpenJar(fsys core.ReadFS, path string, opts ...Option) (*JarResolver, error) {
	archive, err := OpenArchive(fsys, path)
	if err != nil {
		return nil, err
	}

	r, err := NewJarResolver(archive, opts...)
	if err != nil {
		_ = archive.Close()
		return nil, err
	}
	return r, nil
}

// NewJarResolver indexes archive and returns a resolver over it. The
// resolver takes ownership of archive and closes it on Close.
func NewJarResolver(archive Archive, opts ...Option) (*JarResolver, error) {
	o := applyOptions(opts)

	index, err := buildIndex(archive)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(index))
	for key := range index {
		keys = append(keys, key)
	}

	open := func(key string) (io.ReadCloser, error) {
		return archive.Open(index[key])
	}

	classes, err := newLazyClasses(archive.Name(), keys, open, o)
	if err != nil {
		return nil, err
	}

	r := &JarResolver{archive: archive, classes: classes}
	r.cleanup = runtime.AddCleanup(r, func(a Archive) { _ = a.Close() }, archive)

	o.logger.WithOperation(cache.OpIndexArchive).Info(context.Background(), "indexed archive",
		"archive", archive.Name(),
		"classes", len(keys))

	return r, nil
}

// String returns the archive path.
func (r *JarResolver) String() string {
	return r.archive.Name()
}

// Archive returns the archive backing the resolver.
func (r *JarResolver) Archive() Archive {
	return r.archive
}

// Classes returns a sorted copy of the class index.
func (r *JarResolver) Classes() []string {
	return append([]string(nil), r.classes.classes...)
}

// Packages returns the packages of the indexed classes, sorted.
func (r *JarResolver) Packages() []string {
	return append([]string(nil), r.classes.packages...)
}

// IsEmpty reports whether the archive holds no classes.
func (r *JarResolver) IsEmpty() bool {
	return len(r.classes.classes) == 0
}

// Contains reports whether name is in the class index.
func (r *JarResolver) Contains(name string) bool {
	return r.classes.contains(name)
}

// Resolve returns the class called name, parsing it if it is not cached.
func (r *JarResolver) Resolve(ctx context.Context, name string) Result {
	return r.classes.resolve(ctx, r, name)
}

// Locate returns r if name is in the class index.
func (r *JarResolver) Locate(name string) (Resolver, bool) {
	if !r.Contains(name) {
		return nil, false
	}
	return r, true
}

// Stats returns the resolver's cache counters.
func (r *JarResolver) Stats() CacheStats {
	return r.classes.metrics.Snapshot()
}

// Metrics returns the metrics the resolver records into.
func (r *JarResolver) Metrics() *Metrics {
	return r.classes.metrics
}

// Release drops the strong references to recently used classes so the
// garbage collector may reclaim them. The index is kept.
func (r *JarResolver) Release(ctx context.Context) {
	r.classes.release(ctx)
}

// Close releases cached classes and closes the archive.
func (r *JarResolver) Close() error {
	r.closeOnce.Do(func() {
		r.cleanup.Stop()
		r.classes.release(context.Background())
		r.closeErr = r.archive.Close()
	})
	return r.closeErr
}
