package classpath

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmgilman/go/classpath/classfile"
	"github.com/jmgilman/go/classpath/internal/cache"
)

// openFunc opens the bytes of one indexed class.
type openFunc func(key string) (io.ReadCloser, error)

// lazyClasses is the index plus parse-on-demand cache shared by the
// archive and directory resolvers.
type lazyClasses struct {
	moniker  string
	open     openFunc
	parser   classfile.Parser
	store    *cache.Store[string, classfile.ClassFile]
	metrics  *cache.Metrics
	logger   *cache.Logger
	classes  []string
	packages []string
}

func newLazyClasses(moniker string, keys []string, open openFunc, o *options) (*lazyClasses, error) {
	metrics := o.metrics
	if metrics == nil {
		metrics = cache.NewMetrics(MetricsNamespace, "classes", prometheus.Labels{"resolver": moniker})
	}

	store, err := cache.NewStore[string, classfile.ClassFile](o.cache, metrics)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid class cache configuration")
	}
	store.Index(keys...)

	classes := slices.Clone(keys)
	slices.Sort(classes)

	return &lazyClasses{
		moniker:  moniker,
		open:     open,
		parser:   o.parser,
		store:    store,
		metrics:  metrics,
		logger:   o.logger.With("resolver", moniker),
		classes:  classes,
		packages: packagesOf(classes),
	}, nil
}

func (l *lazyClasses) resolve(ctx context.Context, owner Resolver, name string) Result {
	class, state := l.store.Load(name)
	switch state {
	case cache.StateUnindexed:
		l.metrics.RecordHardMiss()
		return Result{Status: StatusNotFound}
	case cache.StateLive:
		l.metrics.RecordHit()
		cache.LogCacheHit(ctx, l.logger, cache.OpResolveClass, name)
		return Result{Class: class, Origin: owner, Status: StatusFound}
	}

	l.metrics.RecordMiss(state == cache.StateReclaimed)
	cache.LogCacheMiss(ctx, l.logger, cache.OpResolveClass, name, state)

	start := time.Now()
	class, status, err := l.build(name)
	l.metrics.RecordBuild(time.Since(start), err)
	if err != nil {
		l.logger.WithOperation(cache.OpResolveClass).Warn(ctx, "failed to resolve class",
			"key", name,
			"status", status.String(),
			"error", err)
		return Result{Origin: owner, Status: status, Err: err}
	}

	// Concurrent builds of the same key race here; the last store wins.
	l.store.Store(name, class)
	return Result{Class: class, Origin: owner, Status: StatusFound}
}

// build reads and parses one class. The entry stream is closed on every
// path.
func (l *lazyClasses) build(name string) (*classfile.ClassFile, Status, error) {
	rc, err := l.open(name)
	if err != nil {
		return nil, StatusFailedToRead, errors.WrapWithContext(err, CodeClassReadFailed, "failed to open class",
			map[string]interface{}{"class": name, "resolver": l.moniker})
	}
	defer func() { _ = rc.Close() }()

	r := &trackingReader{r: rc}
	class, err := l.parser.Parse(name, r)
	switch {
	case r.err != nil:
		return nil, StatusFailedToRead, errors.WrapWithContext(r.err, CodeClassReadFailed, "failed to read class",
			map[string]interface{}{"class": name, "resolver": l.moniker})
	case err != nil:
		if errors.GetCode(err) != CodeClassParseFailed {
			err = errors.WrapWithContext(err, CodeClassParseFailed, "parser rejected class",
				map[string]interface{}{"class": name, "resolver": l.moniker})
		}
		return nil, StatusInvalid, err
	case class == nil || class.Name != name:
		// Never hand out a class under another class's name.
		return nil, StatusInvalid, errors.WithContextMap(
			errors.New(CodeClassParseFailed, "parser returned a different class"),
			map[string]interface{}{"class": name, "resolver": l.moniker})
	}
	return class, StatusFound, nil
}

func (l *lazyClasses) contains(name string) bool {
	return l.store.Contains(name)
}

func (l *lazyClasses) release(ctx context.Context) {
	l.logger.WithOperation(cache.OpReleaseMemory).Debug(ctx, "releasing retained classes",
		"retained", l.store.Retained())
	l.store.Release()
}

// trackingReader remembers the first non-EOF error of the underlying
// stream so I/O failures can be told apart from parse failures.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
