package store

import (
	"sync"

	"github.com/krisalay/memocache/types"
)

/*
This file defines how data is actually stored inside the cache.

The store is shared by every caller that holds the cache, so access follows a
reader/writer discipline:
- Lookups take the read lock. Many lookups can run at the same time.
- Inserts take the write lock. An insert excludes every other read and write.

The store never calls user code while holding its lock. The (possibly slow)
computation that produces a value runs outside of it.
*/

// Store is a concurrency-safe map from key to cache entry.
type Store[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]*types.CacheEntry[V]
}

func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{data: make(map[K]*types.CacheEntry[V])}
}

// Get retrieves the entry for key, stale or not.
// Deciding whether it is still fresh is the caller's job.
func (s *Store[K, V]) Get(key K) (*types.CacheEntry[V], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ent, ok := s.data[key]
	return ent, ok
}

/*
Put inserts or replaces the entry for key.

There is no version check: whoever writes last wins. Entries are replaced as a
whole, so a reader holding the old pointer keeps seeing a consistent value.
*/
func (s *Store[K, V]) Put(key K, ent *types.CacheEntry[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = ent
}

// Len returns how many entries are stored, stale ones included.
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}
