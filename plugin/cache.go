package plugin

import (
	"context"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/fs/core"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmgilman/go/classpath"
	"github.com/jmgilman/go/classpath/internal/cache"
)

// Cache maps plugin files to built plugins. Plugins are built at most once
// at a time across the whole cache and are held through memory-reclaimable
// handles, so an unused plugin may be collected and is rebuilt on its next
// lookup.
//
// A Cache is safe for concurrent use.
type Cache struct {
	fsys    core.ReadFS
	builder Builder
	logger  *cache.Logger

	// mu serializes every lookup and build.
	mu    sync.Mutex
	store *cache.Store[string, Plugin]
}

// NewCache creates a Cache that checks plugin files in fsys and builds
// missing plugins with builder.
func NewCache(fsys core.ReadFS, builder Builder, opts ...Option) (*Cache, error) {
	o := applyOptions(opts)

	metrics := o.metrics
	if metrics == nil {
		metrics = classpath.NewMetrics(MetricsSubsystem, prometheus.Labels{})
	}

	store, err := cache.NewStore[string, Plugin](o.cache, metrics)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid plugin cache configuration")
	}

	return &Cache{
		fsys:    fsys,
		builder: builder,
		logger:  o.logger,
		store:   store,
	}, nil
}

// GetOrCreate returns the plugin built from the file at p. A missing file
// fails with errors.CodeNotFound. Build failures are returned as is and are
// not cached, so the next call builds again.
func (c *Cache) GetOrCreate(ctx context.Context, p string) (*Plugin, error) {
	key := FileKey(p)

	c.mu.Lock()
	defer c.mu.Unlock()

	exists, err := c.fsys.Exists(p)
	if err != nil {
		return nil, errors.WrapWithContext(err, CodePluginIO, "failed to check plugin file",
			map[string]interface{}{"plugin": p})
	}
	if !exists {
		return nil, errors.WithContextMap(errors.New(errors.CodeNotFound, "plugin file does not exist"),
			map[string]interface{}{"plugin": p})
	}

	metrics := c.store.Metrics()
	plugin, state := c.store.Load(key)
	if state == cache.StateLive {
		metrics.RecordHit()
		cache.LogCacheHit(ctx, c.logger, cache.OpBuildPlugin, key)
		return plugin, nil
	}

	metrics.RecordMiss(state == cache.StateReclaimed)
	cache.LogCacheMiss(ctx, c.logger, cache.OpBuildPlugin, key, state)

	start := time.Now()
	plugin, err = c.builder.Build(ctx, p)
	if err == nil && plugin == nil {
		err = invalidf(p, "plugin builder returned no plugin")
	}
	metrics.RecordBuild(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	c.store.Store(key, plugin)
	return plugin, nil
}

// Len returns the number of plugin files that were built at least once.
func (c *Cache) Len() int {
	return c.store.Len()
}

// Stats returns the cache counters.
func (c *Cache) Stats() classpath.CacheStats {
	return c.store.Metrics().Snapshot()
}

// Metrics returns the metrics the cache records into.
func (c *Cache) Metrics() *classpath.Metrics {
	return c.store.Metrics()
}

// Release drops the strong references to recently used plugins so the
// garbage collector may reclaim the ones nobody else holds.
func (c *Cache) Release(ctx context.Context) {
	c.logger.WithOperation(cache.OpReleaseMemory).Debug(ctx, "releasing retained plugins",
		"retained", c.store.Retained())
	c.store.Release()
}

// FileKey returns the cache identity of a plugin path: the cleaned,
// slash separated path rooted at "/". The file's contents and modification
// time are not part of the key.
func FileKey(p string) string {
	return path.Join("/", filepath.ToSlash(p))
}
