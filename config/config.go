// Package config loads the settings of the class resolvers and the plugin
// cache from CUE, JSON or YAML files.
//
// Every format is checked against the same embedded CUE schema, so a YAML
// file and a CUE file with the same content produce the same Config:
//
//	loader := config.NewLoader(billy.NewLocal(), logger)
//	cfg, err := loader.Load(ctx, "/etc/verifier/cache.yaml")
//	if err != nil {
//	    return err
//	}
//
//	jar, err := classpath.OpenJar(fsys, path, cfg.ResolverOptions(logger)...)
package config

import (
	"io"
	"log/slog"

	"github.com/jmgilman/go/errors"

	"github.com/jmgilman/go/classpath"
	"github.com/jmgilman/go/classpath/internal/cache"
	"github.com/jmgilman/go/classpath/plugin"
)

// Config holds the resolver and plugin cache settings.
type Config struct {
	// Classes bounds the parsed classes each resolver keeps resident.
	Classes CacheConfig `json:"classes" yaml:"classes"`
	// Plugins bounds the built plugins the plugin cache keeps resident.
	Plugins CacheConfig `json:"plugins" yaml:"plugins"`
	Logging Logging     `json:"logging" yaml:"logging"`
	// Workers is the parallelism of batch resolution. Zero uses GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// CacheConfig is the file form of classpath.CacheConfig.
type CacheConfig struct {
	MaxRetained      int  `json:"maxRetained" yaml:"maxRetained"`
	DisableRetention bool `json:"disableRetention" yaml:"disableRetention"`
}

// Logging configures the logger built by Logging.Logger.
type Logging struct {
	// Level is one of debug, info, warn or error.
	Level string `json:"level" yaml:"level"`
	// JSON selects JSON output instead of text.
	JSON bool `json:"json" yaml:"json"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if !c.Classes.DisableRetention && c.Classes.MaxRetained == 0 {
		c.Classes.MaxRetained = cache.DefaultMaxRetained
	}
	if !c.Plugins.DisableRetention && c.Plugins.MaxRetained == 0 {
		c.Plugins.MaxRetained = DefaultMaxRetainedPlugins
	}
}

// DefaultMaxRetainedPlugins is the default number of plugins kept resident.
const DefaultMaxRetainedPlugins = 64

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.Classes.validate(); err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "invalid classes cache configuration")
	}
	if err := c.Plugins.validate(); err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "invalid plugins cache configuration")
	}
	if _, err := cache.ParseLogLevel(c.Logging.Level); err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "invalid logging configuration")
	}
	if c.Workers < 0 {
		return errors.Newf(errors.CodeInvalidConfig, "workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// Resolver converts the setting to a classpath.CacheConfig.
func (c CacheConfig) Resolver() classpath.CacheConfig {
	return classpath.CacheConfig{
		MaxRetained:      c.MaxRetained,
		DisableRetention: c.DisableRetention,
	}
}

func (c CacheConfig) validate() error {
	config := c.Resolver()
	return config.Validate()
}

// ResolverOptions returns the class resolver options described by c.
// A nil logger leaves logging disabled.
func (c *Config) ResolverOptions(logger *slog.Logger) []classpath.Option {
	opts := []classpath.Option{classpath.WithCacheConfig(c.Classes.Resolver())}
	if logger != nil {
		opts = append(opts, classpath.WithLogger(logger))
	}
	return opts
}

// PluginOptions returns the plugin Creator and Cache options described by c.
func (c *Config) PluginOptions(logger *slog.Logger) []plugin.Option {
	opts := []plugin.Option{
		plugin.WithCacheConfig(c.Plugins.Resolver()),
		plugin.WithResolverOptions(classpath.WithCacheConfig(c.Classes.Resolver())),
	}
	if logger != nil {
		opts = append(opts, plugin.WithLogger(logger))
	}
	return opts
}

// Logger builds a slog.Logger writing to w.
func (l Logging) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := cache.ParseLogLevel(l.Level)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "invalid log level %q", l.Level)
	}
	return cache.NewSlogLogger(cache.LogConfig{
		Level:  level,
		JSON:   l.JSON,
		Output: w,
	}), nil
}
