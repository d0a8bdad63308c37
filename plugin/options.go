package plugin

import (
	"log/slog"

	"github.com/jmgilman/go/classpath"
	"github.com/jmgilman/go/classpath/internal/cache"
)

// MetricsSubsystem is the Prometheus subsystem of plugin cache metrics.
const MetricsSubsystem = "plugins"

// Option configures a Creator or a Cache.
type Option func(*options)

type options struct {
	logger    *cache.Logger
	resolvers []classpath.Option
	cache     classpath.CacheConfig
	metrics   *classpath.Metrics
}

func applyOptions(opts []Option) *options {
	o := &options{logger: cache.NewNopLogger()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger for plugin builds and cache events. The logger
// is also handed to the class resolvers a Creator opens.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = cache.FromSlog(logger)
		o.resolvers = append(o.resolvers, classpath.WithLogger(logger))
	}
}

// WithResolverOptions passes opts to every class resolver a Creator opens.
func WithResolverOptions(opts ...classpath.Option) Option {
	return func(o *options) {
		o.resolvers = append(o.resolvers, opts...)
	}
}

// WithCacheConfig sets how many plugins a Cache keeps strongly reachable.
func WithCacheConfig(config classpath.CacheConfig) Option {
	return func(o *options) {
		o.cache = config
	}
}

// WithMetrics makes a Cache record into m.
func WithMetrics(m *classpath.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
