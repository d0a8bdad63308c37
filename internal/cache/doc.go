// Package cache provides the memory-reclaimable storage shared by the class
// resolvers and the plugin cache.
//
// # Slots
//
// A Store maps keys to slots. A slot moves through three states:
//
//   - unindexed: the key has no slot at all, a permanent miss
//   - pending: the key is known but its value has never been built
//   - built: the slot holds a weak pointer to the last value stored
//
// A built slot whose weak pointer no longer yields a value has been
// reclaimed by the garbage collector. Callers treat reclaimed exactly like
// pending and rebuild, so a reclaimed value is retried rather than being
// remembered as a failure.
//
// # Retention
//
// Weak pointers alone would let the collector drop a value the moment the
// last caller lets go of it. To keep hot values resident, the Store also
// holds strong references to the most recently used values in a bounded
// LRU (github.com/hashicorp/golang-lru/v2). Values that fall out of the LRU
// stay reachable through their weak pointer for as long as someone else
// holds them and are reclaimed afterwards. The bound is Config.MaxRetained.
//
// # Thread Safety
//
// Store, Metrics and Logger are safe for concurrent use. Concurrent stores
// for the same key are allowed; the last writer's value wins.
package cache
