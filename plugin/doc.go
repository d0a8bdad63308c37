// Package plugin builds IDE plugin objects from plugin files and caches them
// by file path.
//
// A Plugin is built from a plugin jar, a plugin zip (one root directory with
// a lib/ folder of jars) or an unpacked plugin directory. Building parses
// the META-INF/plugin.xml descriptor, validates it and opens a class
// resolver over the plugin's jars.
//
// The Cache is meant to be created once at the composition root and shared:
//
//	fsys := billy.NewLocal()
//	plugins, err := plugin.NewCache(fsys, plugin.NewCreator(fsys))
//	if err != nil {
//	    return err
//	}
//
//	p, err := plugins.GetOrCreate(ctx, "/plugins/my-plugin.zip")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(p, p.IsCompatibleWith(build))
//
// Every build runs under one cache-wide lock, so a slow build delays all
// other lookups. Cached plugins are held through weak pointers behind a
// small LRU and are rebuilt if the garbage collector reclaimed them. A plugin
// file replaced in place is not detected; the cached plugin keeps being
// returned.
package plugin
