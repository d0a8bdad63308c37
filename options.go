package classpath

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmgilman/go/classpath/classfile"
	"github.com/jmgilman/go/classpath/internal/cache"
)

// MetricsNamespace is the Prometheus namespace used by resolver metrics.
const MetricsNamespace = "classpath"

// CacheConfig controls how many parsed classes a resolver keeps strongly
// reachable. Classes beyond the bound are held through weak pointers and
// may be reclaimed by the garbage collector.
type CacheConfig = cache.Config

// CacheStats is a point-in-time view of a resolver's cache counters.
type CacheStats = cache.MetricsSnapshot

// Metrics records cache activity. It implements prometheus.Collector.
type Metrics = cache.Metrics

// NewMetrics creates a Metrics instance that can be shared between
// resolvers through WithMetrics and registered with a Prometheus registry.
func NewMetrics(subsystem string, labels prometheus.Labels) *Metrics {
	return cache.NewMetrics(MetricsNamespace, subsystem, labels)
}

// Option configures a resolver.
type Option func(*options)

type options struct {
	logger  *cache.Logger
	parser  classfile.Parser
	cache   CacheConfig
	metrics *Metrics
}

func defaultOptions() *options {
	return &options{
		logger: cache.NewNopLogger(),
		parser: classfile.DefaultParser,
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger used for index and cache events.
// A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = cache.FromSlog(logger)
	}
}

// WithParser replaces the class-file parser.
func WithParser(parser classfile.Parser) Option {
	return func(o *options) {
		if parser != nil {
			o.parser = parser
		}
	}
}

// WithCacheConfig sets the retention behavior of the class cache.
func WithCacheConfig(config CacheConfig) Option {
	return func(o *options) {
		o.cache = config
	}
}

// WithMetrics makes the resolver record into m instead of a private
// Metrics instance.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
