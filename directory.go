package classpath

import (
	"context"
	"io"
	"io/fs"
	"path"
	"path/filepath"

	"github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/fs/core"

	"github.com/jmgilman/go/classpath/classfile"
	"github.com/jmgilman/go/classpath/internal/cache"
)

// DirectoryFS is the filesystem capability a DirectoryResolver needs.
type DirectoryFS interface {
	core.ReadFS
	core.WalkFS
}

// DirectoryResolver resolves classes from a directory tree of .class files,
// such as a compiler output directory. The tree is walked once when the
// resolver is created; classes are parsed lazily like in JarResolver.
type DirectoryResolver struct {
	fsys    DirectoryFS
	root    string
	classes *lazyClasses
}

// NewDirectoryResolver walks root in fsys and indexes every class file below
// it. Class names are the slash separated paths relative to root.
func NewDirectoryResolver(fsys DirectoryFS, root string, opts ...Option) (*DirectoryResolver, error) {
	o := applyOptions(opts)
	root = path.Clean(filepath.ToSlash(root))

	info, err := fsys.Stat(root)
	if err != nil {
		return nil, errors.WrapWithContext(err, CodeArchiveUnreadable, "failed to stat class directory",
			map[string]interface{}{"directory": root})
	}
	if !info.IsDir() {
		return nil, errors.WithContextMap(errors.New(CodeArchiveUnreadable, "class path is not a directory"),
			map[string]interface{}{"directory": root})
	}

	var keys []string
	err = fsys.Walk(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if key, ok := classKey(filepath.ToSlash(rel)); ok {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapWithContext(err, CodeArchiveUnreadable, "failed to walk class directory",
			map[string]interface{}{"directory": root})
	}

	r := &DirectoryResolver{fsys: fsys, root: root}
	r.classes, err = newLazyClasses(root, keys, r.open, o)
	if err != nil {
		return nil, err
	}

	o.logger.WithOperation(cache.OpIndexArchive).Info(context.Background(), "indexed class directory",
		"directory", root,
		"classes", len(keys))

	return r, nil
}

func (r *DirectoryResolver) open(key string) (io.ReadCloser, error) {
	return r.fsys.Open(path.Join(r.root, key+classfile.Suffix))
}

// String returns the directory path.
func (r *DirectoryResolver) String() string {
	return r.root
}

// Classes returns a sorted copy of the class index.
func (r *DirectoryResolver) Classes() []string {
	return append([]string(nil), r.classes.classes...)
}

// Packages returns the packages of the indexed classes, sorted.
func (r *DirectoryResolver) Packages() []string {
	return append([]string(nil), r.classes.packages...)
}

// IsEmpty reports whether the directory holds no classes.
func (r *DirectoryResolver) IsEmpty() bool {
	return len(r.classes.classes) == 0
}

// Resolve returns the class called name, parsing it if it is not cached.
func (r *DirectoryResolver) Resolve(ctx context.Context, name string) Result {
	return r.classes.resolve(ctx, r, name)
}

// Locate returns r if name is in the class index.
func (r *DirectoryResolver) Locate(name string) (Resolver, bool) {
	if !r.classes.contains(name) {
		return nil, false
	}
	return r, true
}

// Stats returns the resolver's cache counters.
func (r *DirectoryResolver) Stats() CacheStats {
	return r.classes.metrics.Snapshot()
}

// Release drops the strong references to recently used classes.
func (r *DirectoryResolver) Release(ctx context.Context) {
	r.classes.release(ctx)
}
