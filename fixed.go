package classpath

import (
	"context"
	"slices"

	"github.com/jmgilman/go/classpath/classfile"
)

// Empty is a Resolver that knows no classes.
var Empty Resolver = emptyResolver{}

type emptyResolver struct{}

func (emptyResolver) String() string { return "empty" }
func (emptyResolver) Classes() []string { return nil }
func (emptyResolver) Packages() []string { return nil }
func (emptyResolver) IsEmpty() bool { return true }
func (emptyResolver) Resolve(context.Context, string) Result { return Result{Status: StatusNotFound} }
func (emptyResolver) Locate(string) (Resolver, bool) { return nil, false }

// FixedResolver serves a fixed set of already parsed classes. The classes
// are held strongly for the resolver's lifetime.
type FixedResolver struct {
	moniker  string
	classes  map[string]*classfile.ClassFile
	names    []string
	packages []string
}

// NewFixedResolver returns a resolver over classes. When two classes share
// a name the first one wins.
func NewFixedResolver(moniker string, classes ...*classfile.ClassFile) *FixedResolver {
	r := &FixedResolver{
		moniker: moniker,
		classes: make(map[string]*classfile.ClassFile, len(classes)),
	}
	for _, class := range classes {
		if class == nil {
			continue
		}
		if _, exists := r.classes[class.Name]; exists {
			continue
		}
		r.classes[class.Name] = class
		r.names = append(r.names, class.Name)
	}
	slices.Sort(r.names)
	r.packages = packagesOf(r.names)
	return r
}

// String returns the moniker given at construction.
func (r *FixedResolver) String() string {
	return r.moniker
}

// Classes returns the class names, sorted.
func (r *FixedResolver) Classes() []string {
	return append([]string(nil), r.names...)
}

// Packages returns the packages of the classes, sorted.
func (r *FixedResolver) Packages() []string {
	return append([]string(nil), r.packages...)
}

// IsEmpty reports whether the resolver holds no classes.
func (r *FixedResolver) IsEmpty() bool {
	return len(r.names) == 0
}

// Resolve returns the class called name.
func (r *FixedResolver) Resolve(_ context.Context, name string) Result {
	class, ok := r.classes[name]
	if !ok {
		return Result{Status: StatusNotFound}
	}
	return Result{Class: class, Origin: r, Status: StatusFound}
}

// Locate returns r if it holds name.
func (r *FixedResolver) Locate(name string) (Resolver, bool) {
	if _, ok := r.classes[name]; !ok {
		return nil, false
	}
	return r, true
}
