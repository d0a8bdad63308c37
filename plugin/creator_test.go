package plugin

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/jmgilman/go/errors"
	"github.com/jmgilman/go/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/go/classpath"
	"github.com/jmgilman/go/classpath/internal/testutil"
)

func buildPlugin(t *testing.T, fsys *billy.MemoryFS, p string, opts ...Option) *Plugin {
	t.Helper()
	plugin, err := NewCreator(fsys, opts...).Build(context.Background(), p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = plugin.Close() })
	return plugin
}

func TestCreator_Jar(t *testing.T) {
	ctx := context.Background()
	fsys := billy.NewMemory()
	d := testutil.ValidDescriptor("com.acme.sample")
	testutil.WriteFile(t, fsys, "plugins/sample.jar", d.PluginJar(t, "com/acme/Sample", "com/acme/ui/Window"))

	p := buildPlugin(t, fsys, "plugins/sample.jar")

	assert.Equal(t, "com.acme.sample", p.ID)
	assert.Equal(t, "plugins/sample.jar", p.OriginalFile)
	require.NotNil(t, p.Classes)
	assert.Equal(t, []string{"com/acme/Sample", "com/acme/ui/Window"}, p.Classes.Classes())

	class, ok := classpath.FindClass(ctx, p.Classes, "com/acme/ui/Window")
	require.True(t, ok)
	assert.Equal(t, "com/acme/ui/Window", class.Name)
}

func TestCreator_JarWithoutDescriptor(t *testing.T) {
	fsys := billy.NewMemory()
	testutil.WriteFile(t, fsys, "lib.jar", testutil.ClassJar(t, "com/acme/Util"))

	_, err := NewCreator(fsys).Build(context.Background(), "lib.jar")
	require.Error(t, err)
	assert.Equal(t, CodePluginInvalid, errors.GetCode(err))
	assert.Contains(t, Problems(err)[0], "META-INF/plugin.xml is not found")
}

func TestCreator_InvalidDescriptor(t *testing.T) {
	fsys := billy.NewMemory()
	d := testutil.ValidDescriptor("com.acme.sample")
	d.Version = ""
	testutil.WriteFile(t, fsys, "sample.jar", d.PluginJar(t))

	_, err := NewCreator(fsys).Build(context.Background(), "sample.jar")
	require.Error(t, err)
	assert.Equal(t, CodePluginInvalid, errors.GetCode(err))
	assert.Contains(t, Problems(err), "property <version> is not specified")
}

func TestCreator_CorruptedJar(t *testing.T) {
	fsys := billy.NewMemory()
	testutil.WriteFile(t, fsys, "broken.jar", []byte("definitely not a zip file"))

	_, err := NewCreator(fsys).Build(context.Background(), "broken.jar")
	require.Error(t, err)
	assert.Equal(t, CodePluginInvalid, errors.GetCode(err))
}

func TestCreator_MissingFile(t *testing.T) {
	_, err := NewCreator(billy.NewMemory()).Build(context.Background(), "missing.jar")
	require.Error(t, err)
	assert.Equal(t, CodePluginIO, errors.GetCode(err))
}

func TestCreator_UnsupportedFile(t *testing.T) {
	fsys := billy.NewMemory()
	testutil.WriteFile(t, fsys, "notes.txt", []byte("hello"))

	_, err := NewCreator(fsys).Build(context.Background(), "notes.txt")
	require.Error(t, err)
	assert.Equal(t, CodePluginInvalid, errors.GetCode(err))
}

func TestCreator_Zip(t *testing.T) {
	ctx := context.Background()
	fsys := billy.NewMemory()
	d := testutil.ValidDescriptor("com.acme.sample")

	zipped := testutil.ZipBytes(t, testutil.Entries{
		"sample/":                 nil,
		"sample/lib/":             nil,
		"sample/lib/deps.jar":     testutil.ClassJar(t, "org/dep/Helper", "com/acme/Shadowed"),
		"sample/lib/sample.jar":   d.PluginJar(t, "com/acme/Sample", "com/acme/Shadowed"),
		"sample/lib/nested/x.jar": testutil.ClassJar(t, "org/ignored/X"),
		"sample/README.txt":       []byte("readme"),
	})
	testutil.WriteFile(t, fsys, "dist/sample.zip", zipped)

	p := buildPlugin(t, fsys, "dist/sample.zip")

	assert.Equal(t, "com.acme.sample", p.ID)
	assert.Equal(t, []string{"com/acme/Sample", "com/acme/Shadowed", "org/dep/Helper"}, p.Classes.Classes())

	composite, ok := p.Classes.(*classpath.CompositeResolver)
	require.True(t, ok)
	require.Len(t, composite.Resolvers(), 2)
	assert.Equal(t, "dist/sample.zip!/sample/lib/deps.jar", composite.Resolvers()[0].String())

	owner, ok := p.Classes.Locate("com/acme/Shadowed")
	require.True(t, ok)
	assert.Equal(t, "dist/sample.zip!/sample/lib/deps.jar", owner.String())

	_, ok = classpath.FindClass(ctx, p.Classes, "com/acme/Sample")
	assert.True(t, ok)
}

func TestCreator_ZipErrors(t *testing.T) {
	d := testutil.ValidDescriptor("com.acme.sample")

	tests := []struct {
		name    string
		entries func(t *testing.T) testutil.Entries
		problem string
	}{
		{
			name: "file at the root",
			entries: func(t *testing.T) testutil.Entries {
				return testutil.Entries{"sample.jar": d.PluginJar(t)}
			},
			problem: "must contain a single root directory",
		},
		{
			name: "two roots",
			entries: func(t *testing.T) testutil.Entries {
				return testutil.Entries{
					"a/lib/a.jar": d.PluginJar(t),
					"b/lib/b.jar": d.PluginJar(t),
				}
			},
			problem: "must contain a single root directory",
		},
		{
			name: "empty",
			entries: func(t *testing.T) testutil.Entries {
				return testutil.Entries{}
			},
			problem: "plugin zip is empty",
		},
		{
			name: "no descriptor",
			entries: func(t *testing.T) testutil.Entries {
				return testutil.Entries{"sample/lib/deps.jar": testutil.ClassJar(t, "org/dep/Helper")}
			},
			problem: "is not found in any jar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := billy.NewMemory()
			testutil.WriteFile(t, fsys, "sample.zip", testutil.ZipBytes(t, tt.entries(t)))

			_, err := NewCreator(fsys).Build(context.Background(), "sample.zip")
			require.Error(t, err)
			assert.Equal(t, CodePluginInvalid, errors.GetCode(err))
			require.NotEmpty(t, Problems(err))
			assert.Contains(t, Problems(err)[0], tt.problem)
		})
	}
}

func TestCreator_Directory(t *testing.T) {
	ctx := context.Background()
	fsys := billy.NewMemory()
	d := testutil.ValidDescriptor("com.acme.sample")

	testutil.WriteFile(t, fsys, "idea/plugins/sample/lib/sample.jar", d.PluginJar(t, "com/acme/Sample"))
	testutil.WriteFile(t, fsys, "idea/plugins/sample/lib/notes.txt", []byte("ignored"))
	testutil.WriteFile(t, fsys, "idea/plugins/sample/classes/com/acme/Patched.class", testutil.SimpleClass("com/acme/Patched"))

	p := buildPlugin(t, fsys, "idea/plugins/sample")

	assert.Equal(t, "com.acme.sample", p.ID)
	assert.Equal(t, []string{"com/acme/Patched", "com/acme/Sample"}, p.Classes.Classes())

	owner, ok := p.Classes.Locate("com/acme/Patched")
	require.True(t, ok)
	assert.Equal(t, "idea/plugins/sample/classes", owner.String())

	_, ok = classpath.FindClass(ctx, p.Classes, "com/acme/Sample")
	assert.True(t, ok)
}

func TestCreator_DirectoryWithOwnDescriptor(t *testing.T) {
	fsys := billy.NewMemory()
	d := testutil.ValidDescriptor("com.acme.exploded")
	testutil.WriteFile(t, fsys, "exploded/META-INF/plugin.xml", d.XML())
	testutil.WriteFile(t, fsys, "exploded/classes/com/acme/Main.class", testutil.SimpleClass("com/acme/Main"))

	p := buildPlugin(t, fsys, "exploded")

	assert.Equal(t, "com.acme.exploded", p.ID)
	assert.Equal(t, []string{"com/acme/Main"}, p.Classes.Classes())
}

func TestCreator_DirectoryWithoutDescriptor(t *testing.T) {
	fsys := billy.NewMemory()
	testutil.WriteFile(t, fsys, "bare/lib/deps.jar", testutil.ClassJar(t, "org/dep/Helper"))

	_, err := NewCreator(fsys).Build(context.Background(), "bare")
	require.Error(t, err)
	assert.Equal(t, CodePluginInvalid, errors.GetCode(err))
}

func TestCreator_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fsys := billy.NewMemory()
	d := testutil.ValidDescriptor("com.acme.sample")
	testutil.WriteFile(t, fsys, "sample.jar", d.PluginJar(t, "com/acme/Sample"))

	buildPlugin(t, fsys, "sample.jar", WithLogger(logger))

	out := buf.String()
	assert.Contains(t, out, "built plugin")
	assert.Contains(t, out, "operation=build_plugin")
	assert.Contains(t, out, "id=com.acme.sample")
	assert.Contains(t, out, "indexed archive")
}

func TestPlugin_Close(t *testing.T) {
	fsys := billy.NewMemory()
	d := testutil.ValidDescriptor("com.acme.sample")
	testutil.WriteFile(t, fsys, "sample.jar", d.PluginJar(t, "com/acme/Sample"))

	p, err := NewCreator(fsys).Build(context.Background(), "sample.jar")
	require.NoError(t, err)

	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())
}

func TestBuilderFunc(t *testing.T) {
	want := &Plugin{ID: "x"}
	var b Builder = BuilderFunc(func(_ context.Context, p string) (*Plugin, error) {
		assert.Equal(t, "x.jar", p)
		return want, nil
	})

	got, err := b.Build(context.Background(), "x.jar")
	require.NoError(t, err)
	assert.Same(t, want, got)
}
