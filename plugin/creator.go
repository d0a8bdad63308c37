package plugin

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/klauspost/compress/zip"

	"github.com/jmgilman/go/classpath"
	"github.com/jmgilman/go/classpath/internal/cache"
)

// Builder constructs a Plugin from the file at path.
type Builder interface {
	Build(ctx context.Context, path string) (*Plugin, error)
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(ctx context.Context, path string) (*Plugin, error)

// Build calls f(ctx, path).
func (f BuilderFunc) Build(ctx context.Context, path string) (*Plugin, error) {
	return f(ctx, path)
}

// Creator builds plugins from plugin jars, plugin zips and unpacked plugin
// directories.
type Creator struct {
	fsys      classpath.DirectoryFS
	logger    *cache.Logger
	resolvers []classpath.Option
}

// NewCreator returns a Creator reading plugin files from fsys.
func NewCreator(fsys classpath.DirectoryFS, opts ...Option) *Creator {
	o := applyOptions(opts)
	return &Creator{
		fsys:      fsys,
		logger:    o.logger.WithOperation(cache.OpBuildPlugin),
		resolvers: o.resolvers,
	}
}

// Build parses the plugin's descriptor and opens resolvers over its classes.
// Malformed plugins fail with CodePluginInvalid and read failures with
// CodePluginIO.
func (c *Creator) Build(ctx context.Context, p string) (*Plugin, error) {
	start := time.Now()

	plugin, err := c.build(p)
	if err != nil {
		c.logger.Warn(ctx, "failed to build plugin",
			"plugin", p,
			"error", err)
		return nil, err
	}

	c.logger.Info(ctx, "built plugin",
		"plugin", p,
		"id", plugin.ID,
		"version", plugin.Version,
		"warnings", len(plugin.Warnings),
		"duration", time.Since(start))
	return plugin, nil
}

func (c *Creator) build(p string) (*Plugin, error) {
	info, err := c.fsys.Stat(p)
	if err != nil {
		return nil, errors.WrapWithContext(err, CodePluginIO, "failed to stat plugin file",
			map[string]interface{}{"plugin": p})
	}

	switch ext := strings.ToLower(filepath.Ext(p)); {
	case info.IsDir():
		return c.buildFromDirectory(p)
	case ext == ".jar":
		return c.buildFromJar(p)
	case ext == ".zip":
		return c.buildFromZip(p)
	default:
		return nil, invalidf(p, "unsupported plugin file %q: expected a .jar, a .zip or a directory", filepath.Base(p))
	}
}

func (c *Creator) buildFromJar(p string) (*Plugin, error) {
	archive, err := classpath.OpenArchive(c.fsys, p)
	if err != nil {
		return nil, archiveFailure(err, p)
	}

	jar, err := classpath.NewJarResolver(archive, c.resolvers...)
	if err != nil {
		_ = archive.Close()
		return nil, archiveFailure(err, p)
	}

	plugin, err := descriptorFromArchive(archive, p)
	if err != nil {
		_ = jar.Close()
		return nil, err
	}
	if plugin == nil {
		_ = jar.Close()
		return nil, invalidf(p, "plugin descriptor %s is not found", DescriptorPath)
	}

	plugin.Classes = jar
	plugin.closers = append(plugin.closers, jar)
	return plugin, nil
}

// buildFromZip reads a plugin distribution: a zip with a single root
// directory whose lib/ folder holds the plugin jars. The jars are loaded
// into memory so the zip can be closed.
func (c *Creator) buildFromZip(p string) (*Plugin, error) {
	archive, err := classpath.OpenArchive(c.fsys, p)
	if err != nil {
		return nil, archiveFailure(err, p)
	}
	defer func() { _ = archive.Close() }()

	entries, err := archive.Entries()
	if err != nil {
		return nil, archiveFailure(err, p)
	}

	root, err := singleRoot(p, entries)
	if err != nil {
		return nil, err
	}

	libDir := root + "/lib/"
	var jarEntries []string
	for _, entry := range entries {
		rest, ok := strings.CutPrefix(entry, libDir)
		if ok && rest != "" && !strings.Contains(rest, "/") && isJar(rest) {
			jarEntries = append(jarEntries, entry)
		}
	}
	sort.Strings(jarEntries)

	var (
		plugin    *Plugin
		resolvers []classpath.Resolver
		jars      []*classpath.JarResolver
	)
	closeAll := func() {
		for _, jar := range jars {
			_ = jar.Close()
		}
	}

	for _, entry := range jarEntries {
		data, err := archive.ReadFile(entry)
		if err != nil {
			closeAll()
			return nil, errors.WrapWithContext(err, CodePluginIO, "failed to read plugin jar",
				map[string]interface{}{"plugin": p, "entry": entry})
		}

		inner, err := classpath.NewArchiveFromBytes(p+"!/"+entry, data)
		if err != nil {
			closeAll()
			return nil, archiveFailure(err, p)
		}

		jar, err := classpath.NewJarResolver(inner, c.resolvers...)
		if err != nil {
			closeAll()
			return nil, archiveFailure(err, p)
		}
		jars = append(jars, jar)
		resolvers = append(resolvers, jar)

		if plugin == nil {
			plugin, err = descriptorFromArchive(inner, p)
			if err != nil {
				closeAll()
				return nil, err
			}
		}
	}

	if plugin == nil {
		closeAll()
		return nil, invalidf(p, "plugin descriptor %s is not found in any jar under %s", DescriptorPath, libDir)
	}

	plugin.Classes = classpath.NewComposite(resolvers...)
	for _, jar := range jars {
		plugin.closers = append(plugin.closers, jar)
	}
	return plugin, nil
}

// buildFromDirectory reads an unpacked plugin: a directory with either its
// own META-INF/plugin.xml or a lib/ folder of jars, and an optional
// classes/ folder.
func (c *Creator) buildFromDirectory(dir string) (*Plugin, error) {
	var (
		plugin    *Plugin
		resolvers []classpath.Resolver
		closers   []*classpath.JarResolver
	)
	closeAll := func() {
		for _, jar := range closers {
			_ = jar.Close()
		}
	}

	descriptor := path.Join(dir, DescriptorPath)
	exists, err := c.fsys.Exists(descriptor)
	if err != nil {
		return nil, errors.WrapWithContext(err, CodePluginIO, "failed to check plugin descriptor",
			map[string]interface{}{"plugin": dir})
	}
	if exists {
		data, err := c.fsys.ReadFile(descriptor)
		if err != nil {
			return nil, errors.WrapWithContext(err, CodePluginIO, "failed to read plugin descriptor",
				map[string]interface{}{"plugin": dir})
		}
		if plugin, err = ParseDescriptor(dir, data); err != nil {
			return nil, err
		}
	}

	classesDir := path.Join(dir, "classes")
	if ok, _ := c.fsys.Exists(classesDir); ok {
		classes, err := classpath.NewDirectoryResolver(c.fsys, classesDir, c.resolvers...)
		if err != nil {
			return nil, archiveFailure(err, dir)
		}
		resolvers = append(resolvers, classes)
	}

	libDir := path.Join(dir, "lib")
	if ok, _ := c.fsys.Exists(libDir); ok {
		entries, err := c.fsys.ReadDir(libDir)
		if err != nil {
			return nil, errors.WrapWithContext(err, CodePluginIO, "failed to list plugin lib directory",
				map[string]interface{}{"plugin": dir})
		}

		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if !entry.IsDir() && isJar(entry.Name()) {
				names = append(names, entry.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			archive, err := classpath.OpenArchive(c.fsys, path.Join(libDir, name))
			if err != nil {
				closeAll()
				return nil, archiveFailure(err, dir)
			}
			jar, err := classpath.NewJarResolver(archive, c.resolvers...)
			if err != nil {
				_ = archive.Close()
				closeAll()
				return nil, archiveFailure(err, dir)
			}
			closers = append(closers, jar)
			resolvers = append(resolvers, jar)

			if plugin == nil {
				if plugin, err = descriptorFromArchive(archive, dir); err != nil {
					closeAll()
					return nil, err
				}
			}
		}
	}

	if plugin == nil {
		closeAll()
		return nil, invalidf(dir, "plugin descriptor %s is not found", DescriptorPath)
	}

	plugin.Classes = classpath.NewComposite(resolvers...)
	for _, jar := range closers {
		plugin.closers = append(plugin.closers, jar)
	}
	return plugin, nil
}

// descriptorFromArchive parses the descriptor of archive. It returns a nil
// Plugin without error when the archive has no descriptor.
func descriptorFromArchive(archive *classpath.ZipArchive, p string) (*Plugin, error) {
	if !archive.Has(DescriptorPath) {
		return nil, nil
	}
	data, err := archive.ReadFile(DescriptorPath)
	if err != nil {
		return nil, errors.WrapWithContext(err, CodePluginIO, "failed to read plugin descriptor",
			map[string]interface{}{"plugin": p, "archive": archive.Name()})
	}
	return ParseDescriptor(p, data)
}

// singleRoot returns the one top-level directory every entry lives under.
func singleRoot(p string, entries []string) (string, error) {
	root := ""
	for _, entry := range entries {
		first, _, nested := strings.Cut(entry, "/")
		if !nested {
			return "", invalidf(p, "plugin zip must contain a single root directory, found file %q", entry)
		}
		switch {
		case root == "":
			root = first
		case root != first:
			return "", invalidf(p, "plugin zip must contain a single root directory, found %q and %q", root, first)
		}
	}
	if root == "" {
		return "", invalidf(p, "plugin zip is empty")
	}
	return root, nil
}

// archiveFailure maps archive errors onto plugin error codes. Files that are
// not valid zips are malformed plugins; everything else is an I/O failure.
func archiveFailure(err error, p string) error {
	ctx := map[string]interface{}{"plugin": p}
	if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) || errors.Is(err, zip.ErrChecksum) {
		return errors.WrapWithContext(err, CodePluginInvalid, "plugin archive is corrupted", ctx)
	}
	return errors.WrapWithContext(err, CodePluginIO, "failed to read plugin archive", ctx)
}

func invalidf(p, format string, args ...any) error {
	return invalidPlugin(p, []Problem{{Level: LevelError, Message: fmt.Sprintf(format, args...)}})
}

func isJar(name string) bool {
	return strings.EqualFold(path.Ext(name), ".jar")
}
