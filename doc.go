// Package classpath resolves JVM class names to parsed class files drawn
// from jar archives and class directories.
//
// Every concrete resolver satisfies the Resolver interface, so consumers
// never need to know whether a class came from a jar, a directory or a union
// of both. Archive-backed resolvers index the class entries once when they
// are created and parse each class lazily on first lookup. Parsed classes are
// kept in a memory-reclaimable cache: recently used classes stay strongly
// reachable up to a configurable bound, everything else is held through weak
// pointers and is rebuilt transparently after the garbage collector drops it.
//
// Basic usage:
//
//	jar, err := classpath.OpenJar(billy.NewLocal(), "/path/to/library.jar")
//	if err != nil {
//	    return err
//	}
//	defer jar.Close()
//
//	if class, ok := classpath.FindClass(ctx, jar, "com/foo/Bar"); ok {
//	    fmt.Println(class.SuperName)
//	}
//
// Several resolvers can be chained into a classpath:
//
//	cp := classpath.NewComposite(jar, classesDir, runtimeJar)
//	result := cp.Resolve(ctx, "com/foo/Bar")
//	if result.Found() {
//	    fmt.Println("found in", result.Origin)
//	}
//
// Lookups are safe for concurrent use. Two goroutines asking for the same
// uncached class may both parse it; the last one to finish owns the slot.
package classpath
