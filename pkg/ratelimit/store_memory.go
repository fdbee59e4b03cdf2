package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryRateLimitStore keeps request timestamps in a map guarded by
// an RWMutex. It is bounded: when maxKeys distinct keys exist, the
// least recently used tenth of them is evicted before a new key is
// admitted. Suitable for a single-process API; a multi-replica
// deployment would need a shared store behind the same interface.
type InMemoryRateLimitStore struct {
	mu       sync.RWMutex
	requests map[string]*keyEntry
	maxKeys  int
	clock    Clock
	lru      *lruIndex
}

type keyEntry struct {
	timestamps []time.Time
	lastAccess time.Time
}

// InMemoryStoreConfig configures the store.
type InMemoryStoreConfig struct {
	// MaxKeys bounds the number of distinct keys held. Zero or negative
	// means the default of 10000.
	MaxKeys int

	// Clock defaults to SystemClock.
	Clock Clock
}

// DefaultInMemoryStoreConfig returns production defaults.
func DefaultInMemoryStoreConfig() InMemoryStoreConfig {
	return InMemoryStoreConfig{
		MaxKeys: 10000,
		Clock:   &SystemClock{},
	}
}

// NewInMemoryRateLimitStore builds a store from config, filling in
// defaults for zero values.
func NewInMemoryRateLimitStore(config InMemoryStoreConfig) *InMemoryRateLimitStore {
	if config.MaxKeys <= 0 {
		config.MaxKeys = 10000
	}
	if config.Clock == nil {
		config.Clock = &SystemClock{}
	}
	return &InMemoryRateLimitStore{
		requests: make(map[string]*keyEntry),
		maxKeys:  config.MaxKeys,
		clock:    config.Clock,
		lru:      newLRUIndex(),
	}
}

// AddRequest records one timestamp for key, evicting cold keys first
// when the store is full and key is new.
func (s *InMemoryRateLimitStore) AddRequest(ctx context.Context, key string, timestamp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recordLocked(key, timestamp)
	return nil
}

// GetRequests returns timestamps for key strictly after cutoff.
func (s *InMemoryRateLimitStore) GetRequests(ctx context.Context, key string, cutoff time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.requests[key]
	if !ok {
		return []time.Time{}, nil
	}

	result := make([]time.Time, 0, len(entry.timestamps))
	for _, ts := range entry.timestamps {
		if ts.After(cutoff) {
			result = append(result, ts)
		}
	}
	return result, nil
}

// GetRequestCount counts timestamps for key strictly after cutoff.
func (s *InMemoryRateLimitStore) GetRequestCount(ctx context.Context, key string, cutoff time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.countLocked(key, cutoff), nil
}

// Cleanup drops timestamps at or before cutoff and deletes keys left
// with none. Run it periodically; the window check itself never prunes.
func (s *InMemoryRateLimitStore) Cleanup(ctx context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entry := range s.requests {
		kept := entry.timestamps[:0]
		for _, ts := range entry.timestamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(s.requests, key)
			s.lru.remove(key)
			continue
		}
		entry.timestamps = kept
	}
	return nil
}

// KeyCount reports the number of live keys.
func (s *InMemoryRateLimitStore) KeyCount(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.requests), nil
}

// CheckAndAddRequest implements AtomicRateLimitStore: the count and the
// record happen under one lock acquisition, so concurrent callers can
// never jointly exceed limit.
func (s *InMemoryRateLimitStore) CheckAndAddRequest(ctx context.Context, key string, timestamp, cutoff time.Time, limit int) (bool, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.countLocked(key, cutoff)
	if current >= limit {
		return false, current, nil
	}

	s.recordLocked(key, timestamp)
	return true, current + 1, nil
}

func (s *InMemoryRateLimitStore) countLocked(key string, cutoff time.Time) int {
	entry, ok := s.requests[key]
	if !ok {
		return 0
	}
	count := 0
	for _, ts := range entry.timestamps {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

func (s *InMemoryRateLimitStore) recordLocked(key string, timestamp time.Time) {
	entry, exists := s.requests[key]
	if !exists && len(s.requests) >= s.maxKeys {
		s.evictLRULocked()
	}

	if !exists {
		entry = &keyEntry{timestamps: make([]time.Time, 0, 16)}
		s.requests[key] = entry
	}
	entry.lastAccess = timestamp
	entry.timestamps = append(entry.timestamps, timestamp)
	s.lru.touch(key)
}

// evictLRULocked removes the coldest tenth of keys, at least one, so a
// burst of new clients does not cause an eviction per request.
func (s *InMemoryRateLimitStore) evictLRULocked() {
	evictCount := s.maxKeys / 10
	if evictCount < 1 {
		evictCount = 1
	}
	for evicted := 0; evicted < evictCount && s.lru.tail != nil; evicted++ {
		key := s.lru.tail.key
		delete(s.requests, key)
		s.lru.remove(key)
	}
}

// lruIndex is a doubly-linked list of keys, most recently used at the
// head, with a map for O(1) lookup.
type lruIndex struct {
	head *lruNode
	tail *lruNode
	keys map[string]*lruNode
}

type lruNode struct {
	key  string
	prev *lruNode
	next *lruNode
}

func newLRUIndex() *lruIndex {
	return &lruIndex{keys: make(map[string]*lruNode)}
}

func (l *lruIndex) touch(key string) {
	if _, ok := l.keys[key]; ok {
		l.remove(key)
	}

	node := &lruNode{key: key, next: l.head}
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.keys[key] = node
}

func (l *lruIndex) remove(key string) {
	node, ok := l.keys[key]
	if !ok {
		return
	}

	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	delete(l.keys, key)
}
