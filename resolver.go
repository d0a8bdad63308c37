package classpath

import (
	"context"
	"fmt"
	"slices"

	"github.com/jmgilman/go/classpath/classfile"
)

// Resolver is the lookup surface shared by every source of classes.
//
// Class names are internal names such as "com/foo/Bar". The String method
// returns the resolver's moniker, a stable display identity that callers may
// also use as a map key.
type Resolver interface {
	fmt.Stringer

	// Classes returns every class name the resolver can answer for, sorted.
	// The set never changes during the resolver's lifetime.
	Classes() []string

	// Packages returns every package that contains a class, including parent
	// packages, sorted. The default package is reported as "".
	Packages() []string

	// IsEmpty reports whether the resolver knows no classes at all.
	IsEmpty() bool

	// Resolve looks up a class by name. A name the resolver does not know
	// yields StatusNotFound without any I/O.
	Resolve(ctx context.Context, name string) Result

	// Locate returns the concrete resolver that owns name.
	Locate(name string) (Resolver, bool)
}

// Status classifies the outcome of a Resolve call.
type Status int

const (
	// StatusNotFound means no resolver owns the name.
	StatusNotFound Status = iota
	// StatusFound means the class was resolved.
	StatusFound
	// StatusFailedToRead means the class is known but its bytes could not
	// be read.
	StatusFailedToRead
	// StatusInvalid means the class is known but its bytes were rejected by
	// the parser.
	StatusInvalid
)

// String returns a string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusNotFound:
		return "not_found"
	case StatusFound:
		return "found"
	case StatusFailedToRead:
		return "failed_to_read"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Result is the outcome of resolving one class.
type Result struct {
	// Class is set only when Status is StatusFound.
	Class *classfile.ClassFile
	// Origin is the concrete resolver that owns the name. It is nil when
	// Status is StatusNotFound.
	Origin Resolver
	Status Status
	// Err describes why a known class could not be produced.
	Err error
}

// Found reports whether the class was resolved.
func (r Result) Found() bool {
	return r.Status == StatusFound && r.Class != nil
}

// FindClass resolves name against r and returns the class only when it was
// found. Read and parse failures are reported as absent.
func FindClass(ctx context.Context, r Resolver, name string) (*classfile.ClassFile, bool) {
	result := r.Resolve(ctx, name)
	if !result.Found() {
		return nil, false
	}
	return result.Class, true
}

// HasPackage reports whether r has at least one class in pkg or in one of
// its sub-packages.
func HasPackage(r Resolver, pkg string) bool {
	_, found := slices.BinarySearch(r.Packages(), pkg)
	return found
}

// packagesOf returns the sorted set of packages and parent packages of the
// given class names.
func packagesOf(classes []string) []string {
	seen := make(map[string]struct{})
	for _, name := range classes {
		pkg := classfile.PackageOf(name)
		if pkg == "" {
			seen[""] = struct{}{}
			continue
		}
		for pkg != "" {
			if _, ok := seen[pkg]; ok {
				break
			}
			seen[pkg] = struct{}{}
			pkg = classfile.PackageOf(pkg)
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}
