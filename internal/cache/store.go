package cache

import (
	"fmt"
	"sync"
	"weak"

	lru "github.com/hashicorp/golang-lru/v2"
)

// State describes what a Store knows about a key.
type State int

const (
	// StateUnindexed means the key has no slot.
	StateUnindexed State = iota
	// StatePending means the key has a slot that was never built.
	StatePending
	// StateLive means the slot holds a value that is still reachable.
	StateLive
	// StateReclaimed means the slot was built but its value has been collected.
	StateReclaimed
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateUnindexed:
		return "unindexed"
	case StatePending:
		return "pending"
	case StateLive:
		return "live"
	case StateReclaimed:
		return "reclaimed"
	default:
		return "unknown"
	}
}

// slot is the per-key cache entry. A zero ref with built unset is pending.
type slot[V any] struct {
	built bool
	ref   weak.Pointer[V]
}

// Store is a memory-reclaimable map from keys to values.
// See the package documentation for the slot life cycle.
type Store[K comparable, V any] struct {
	mu       sync.RWMutex
	slots    map[K]*slot[V]
	retained *lru.Cache[K, *V]
	metrics  *Metrics
}

// NewStore creates a Store with the given retention configuration.
// A nil metrics value records into a private Metrics instance.
func NewStore[K comparable, V any](config Config, metrics *Metrics) (*Store[K, V], error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	config.SetDefaults()

	if metrics == nil {
		metrics = NewMetrics("", "", nil)
	}

	s := &Store[K, V]{
		slots:   make(map[K]*slot[V]),
		metrics: metrics,
	}

	if !config.DisableRetention {
		retained, err := lru.NewWithEvict[K, *V](config.MaxRetained, func(K, *V) {
			metrics.RecordEviction()
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create retention cache: %w", err)
		}
		s.retained = retained
	}

	return s, nil
}

// Index registers keys as pending. Keys that already have a slot are left
// untouched.
func (s *Store[K, V]) Index(keys ...K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if _, exists := s.slots[key]; !exists {
			s.slots[key] = &slot[V]{}
		}
	}
}

// Contains reports whether key has a slot, regardless of its payload.
func (s *Store[K, V]) Contains(key K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.slots[key]
	return exists
}

// Keys returns every key that has a slot, in no particular order.
func (s *Store[K, V]) Keys() []K {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]K, 0, len(s.slots))
	for key := range s.slots {
		keys = append(keys, key)
	}
	return keys
}

// Len returns the number of slots.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.slots)
}

// Load returns the live value for key together with the slot state.
// The value is non-nil only when the state is StateLive. A live value is
// marked as recently used.
func (s *Store[K, V]) Load(key K) (*V, State) {
	s.mu.RLock()
	entry, exists := s.slots[key]
	if !exists {
		s.mu.RUnlock()
		return nil, StateUnindexed
	}
	if !entry.built {
		s.mu.RUnlock()
		return nil, StatePending
	}
	value := entry.ref.Value()
	s.mu.RUnlock()

	if value == nil {
		return nil, StateReclaimed
	}

	s.retain(key, value)
	return value, StateLive
}

// State returns the slot state for key without touching recency.
func (s *Store[K, V]) State(key K) State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.slots[key]
	switch {
	case !exists:
		return StateUnindexed
	case !entry.built:
		return StatePending
	case entry.ref.Value() == nil:
		return StateReclaimed
	default:
		return StateLive
	}
}

// Store places value in the slot for key under a fresh weak pointer,
// creating the slot if needed. Any previous value in the slot is replaced.
func (s *Store[K, V]) Store(key K, value *V) {
	if value == nil {
		return
	}

	s.mu.Lock()
	entry, exists := s.slots[key]
	if !exists {
		entry = &slot[V]{}
		s.slots[key] = entry
	}
	entry.built = true
	entry.ref = weak.Make(value)
	s.mu.Unlock()

	if s.retained != nil {
		s.retained.Add(key, value)
	}
}

// Retained returns how many values are currently held by strong reference.
func (s *Store[K, V]) Retained() int {
	if s.retained == nil {
		return 0
	}
	return s.retained.Len()
}

// Release drops every strong reference held by the retention LRU. Slots
// and their weak pointers are kept, so values still in use elsewhere stay
// resolvable.
func (s *Store[K, V]) Release() {
	if s.retained != nil {
		s.retained.Purge()
	}
}

// Metrics returns the metrics the Store records into.
func (s *Store[K, V]) Metrics() *Metrics {
	return s.metrics
}

func (s *Store[K, V]) retain(key K, value *V) {
	if s.retained == nil {
		return
	}
	if current, ok := s.retained.Get(key); ok && current == value {
		return
	}
	s.retained.Add(key, value)
}
