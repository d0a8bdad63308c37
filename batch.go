package classpath

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jmgilman/go/classpath/classfile"
)

// BatchResult holds the outcome of ResolveAll, keyed by class name.
type BatchResult struct {
	Results map[string]Result
}

// Found returns the classes that were resolved.
func (b BatchResult) Found() map[string]*classfile.ClassFile {
	found := make(map[string]*classfile.ClassFile)
	for name, result := range b.Results {
		if result.Found() {
			found[name] = result.Class
		}
	}
	return found
}

// Missing returns the names no resolver owns.
func (b BatchResult) Missing() []string {
	return b.namesWith(func(r Result) bool { return r.Status == StatusNotFound })
}

// Failed returns the names that are known but could not be read or parsed.
func (b BatchResult) Failed() []string {
	return b.namesWith(func(r Result) bool {
		return r.Status == StatusFailedToRead || r.Status == StatusInvalid
	})
}

func (b BatchResult) namesWith(match func(Result) bool) []string {
	set := make(map[string]struct{})
	for name, result := range b.Results {
		if match(result) {
			set[name] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// ResolveAll resolves names against r using up to workers goroutines.
// A workers value below one uses GOMAXPROCS. Per-class failures are
// recorded in the result; only cancellation of ctx aborts the batch, in
// which case the context error is returned along with whatever was
// resolved so far.
func ResolveAll(ctx context.Context, r Resolver, names []string, workers int) (BatchResult, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(names))
	attempted := make([]bool, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, name := range names {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.Resolve(gctx, name)
			attempted[i] = true
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	batch := BatchResult{Results: make(map[string]Result, len(names))}
	for i, name := range names {
		if !attempted[i] {
			continue
		}
		batch.Results[name] = results[i]
	}
	return batch, err
}
