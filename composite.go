package classpath

import (
	"context"
	"strings"
)

// CompositeResolver is an ordered union of resolvers. Lookups try each
// resolver in classpath order and the first one that owns a name answers.
type CompositeResolver struct {
	resolvers []Resolver
}

// NewComposite chains resolvers in search order. Nested composites are
// flattened and empty resolvers are dropped. With nothing left it returns
// Empty, with a single resolver left it returns that resolver.
func NewComposite(resolvers ...Resolver) Resolver {
	flat := make([]Resolver, 0, len(resolvers))
	for _, r := range resolvers {
		switch r := r.(type) {
		case nil:
			continue
		case *CompositeResolver:
			flat = append(flat, r.resolvers...)
		default:
			if !r.IsEmpty() {
				flat = append(flat, r)
			}
		}
	}

	switch len(flat) {
	case 0:
		return Empty
	case 1:
		return flat[0]
	default:
		return &CompositeResolver{resolvers: flat}
	}
}

// Resolvers returns the chained resolvers in search order.
func (c *CompositeResolver) Resolvers() []Resolver {
	return append([]Resolver(nil), c.resolvers...)
}

// String lists the monikers of the chained resolvers.
func (c *CompositeResolver) String() string {
	names := make([]string, len(c.resolvers))
	for i, r := range c.resolvers {
		names[i] = r.String()
	}
	return "[" + strings.Join(names, ", ") + "]"
}

// Classes returns the union of all class names, sorted.
func (c *CompositeResolver) Classes() []string {
	set := make(map[string]struct{})
	for _, r := range c.resolvers {
		for _, name := range r.Classes() {
			set[name] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Packages returns the union of all packages, sorted.
func (c *CompositeResolver) Packages() []string {
	set := make(map[string]struct{})
	for _, r := range c.resolvers {
		for _, pkg := range r.Packages() {
			set[pkg] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// IsEmpty reports whether none of the chained resolvers knows a class.
func (c *CompositeResolver) IsEmpty() bool {
	for _, r := range c.resolvers {
		if !r.IsEmpty() {
			return false
		}
	}
	return true
}

// Resolve asks the first resolver that owns name. A failure to read or
// parse is reported as is; later resolvers are not consulted.
func (c *CompositeResolver) Resolve(ctx context.Context, name string) Result {
	if owner, ok := c.Locate(name); ok {
		return owner.Resolve(ctx, name)
	}
	return Result{Status: StatusNotFound}
}

// Locate returns the concrete resolver that owns name.
func (c *CompositeResolver) Locate(name string) (Resolver, bool) {
	for _, r := range c.resolvers {
		if owner, ok := r.Locate(name); ok {
			return owner, true
		}
	}
	return nil, false
}
